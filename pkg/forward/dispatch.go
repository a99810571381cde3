package forward

import (
	"fmt"

	"github.com/tinyland-inc/forwardbot/pkg/rules"
)

// TextMode selects how plain text from human senders is relayed.
type TextMode string

const (
	// TextModeForward uses the platform's native forward, keeping the
	// original sender attribution.
	TextModeForward TextMode = "forward"
	// TextModeCopy resends the text with an origin header.
	TextModeCopy TextMode = "copy"
)

const DefaultUnknownChatLabel = "unknown chat"

// ActionKind is the closed set of outbound operations.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionForward
	ActionSendText
	ActionSendPhoto
	ActionSendVideo
	ActionSendDocument
	ActionSendVoice
)

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionForward:
		return "forward"
	case ActionSendText:
		return "send_text"
	case ActionSendPhoto:
		return "send_photo"
	case ActionSendVideo:
		return "send_video"
	case ActionSendDocument:
		return "send_document"
	case ActionSendVoice:
		return "send_voice"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// Action describes one outbound send. Which fields are set depends on Kind:
// ActionForward uses Source and MessageID, ActionSendText uses Text, and the
// media kinds use FileID with Text as caption.
type Action struct {
	Kind        ActionKind
	Destination string
	Source      string
	MessageID   int
	FileID      string
	Text        string
	// Reason is set for ActionNone.
	Reason error
}

// Policy decides the outbound action for a matched rule. The zero value
// forwards plain text natively and labels untitled chats "unknown chat".
type Policy struct {
	TextMode         TextMode
	UnknownChatLabel string
}

// Header is the origin line prepended to resent text and captions.
func (p Policy) Header(msg InboundMessage) string {
	title := msg.SourceName
	if title == "" {
		title = p.UnknownChatLabel
	}
	if title == "" {
		title = DefaultUnknownChatLabel
	}
	return fmt.Sprintf("📨 From %s:\n", title)
}

// Decide returns exactly one action for rule and msg. Automated senders are
// always relayed as text only, attachments are dropped.
func (p Policy) Decide(rule rules.Rule, msg InboundMessage) Action {
	dest := rule.Destination
	header := p.Header(msg)

	if msg.Sender == SenderAutomated {
		return Action{Kind: ActionSendText, Destination: dest, Text: header + msg.Text}
	}

	switch msg.Media {
	case MediaText:
		if p.TextMode == TextModeCopy {
			return Action{Kind: ActionSendText, Destination: dest, Text: header + msg.Text}
		}
		return Action{
			Kind:        ActionForward,
			Destination: dest,
			Source:      msg.Source,
			MessageID:   msg.MessageID,
		}
	case MediaPhoto:
		return p.media(ActionSendPhoto, dest, header, msg)
	case MediaVideo:
		return p.media(ActionSendVideo, dest, header, msg)
	case MediaDocument:
		return p.media(ActionSendDocument, dest, header, msg)
	case MediaVoice:
		return p.media(ActionSendVoice, dest, header, msg)
	case MediaUnsupported:
		return Action{Kind: ActionNone, Destination: dest, Reason: ErrUnsupportedMedia}
	default:
		return Action{
			Kind:        ActionNone,
			Destination: dest,
			Reason:      fmt.Errorf("%w: %s", ErrUnsupportedMedia, msg.Media),
		}
	}
}

func (p Policy) media(kind ActionKind, dest, header string, msg InboundMessage) Action {
	return Action{
		Kind:        kind,
		Destination: dest,
		FileID:      msg.FileID,
		Text:        header + msg.Text,
	}
}
