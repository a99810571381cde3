// Package forward matches inbound messages against forwarding rules and turns
// each match into an outbound action.
//
// The flow is Handler.Handle -> Matches -> Policy.Decide -> Sender.
package forward

import "errors"

var (
	// ErrMalformedEvent is reported when an event carries no usable message.
	ErrMalformedEvent = errors.New("malformed inbound event")
	// ErrUnsupportedMedia marks a message kind that is recorded and skipped.
	ErrUnsupportedMedia = errors.New("unsupported media kind")
)

// SenderKind classifies who sent a message.
type SenderKind int

const (
	SenderHuman SenderKind = iota
	SenderAutomated
)

func (k SenderKind) String() string {
	switch k {
	case SenderHuman:
		return "human"
	case SenderAutomated:
		return "automated"
	default:
		return "unknown"
	}
}

// MediaKind classifies the content of a message.
type MediaKind int

const (
	MediaText MediaKind = iota
	MediaPhoto
	MediaVideo
	MediaDocument
	MediaVoice
	MediaUnsupported
)

func (k MediaKind) String() string {
	switch k {
	case MediaText:
		return "text"
	case MediaPhoto:
		return "photo"
	case MediaVideo:
		return "video"
	case MediaDocument:
		return "document"
	case MediaVoice:
		return "voice"
	default:
		return "unsupported"
	}
}

// InboundMessage is the decoded form of one inbound event. It lives only for
// the duration of a Handle call.
type InboundMessage struct {
	Source     string // conversation the message arrived in
	SourceName string // display title of that conversation, may be empty
	MessageID  int
	SenderID   string
	Sender     SenderKind
	Media      MediaKind
	// FileID is the platform handle of the attached media, empty for text.
	FileID string
	// Text is the message body or the media caption.
	Text string
}

// Event is anything that can be decoded into an InboundMessage. Decode
// returns an error wrapping ErrMalformedEvent when there is no usable message.
type Event interface {
	Decode() (InboundMessage, error)
}

// MessageEvent wraps an already decoded message.
type MessageEvent InboundMessage

func (e MessageEvent) Decode() (InboundMessage, error) {
	msg := InboundMessage(e)
	if msg.Source == "" {
		return InboundMessage{}, ErrMalformedEvent
	}
	return msg, nil
}
