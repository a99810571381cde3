package forward

import (
	"context"
	"fmt"

	"github.com/tinyland-inc/forwardbot/pkg/rules"
)

// Sender is the outbound transport. Conversation identifiers are the same
// strings rules are stored with.
type Sender interface {
	SendText(ctx context.Context, destination, text string) error
	ForwardNative(ctx context.Context, destination, source string, messageID int) error
	SendPhoto(ctx context.Context, destination, fileID, caption string) error
	SendVideo(ctx context.Context, destination, fileID, caption string) error
	SendDocument(ctx context.Context, destination, fileID, caption string) error
	SendVoice(ctx context.Context, destination, fileID, caption string) error
}

// SendError reports a failed outbound action for one rule.
type SendError struct {
	Rule   rules.Rule
	Action ActionKind
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s to %s (rule %q): %v", e.Action, e.Rule.Destination, e.Rule.Keyword, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Execute performs action through s. ActionNone is a no-op.
func Execute(ctx context.Context, s Sender, action Action) error {
	switch action.Kind {
	case ActionNone:
		return nil
	case ActionForward:
		return s.ForwardNative(ctx, action.Destination, action.Source, action.MessageID)
	case ActionSendText:
		return s.SendText(ctx, action.Destination, action.Text)
	case ActionSendPhoto:
		return s.SendPhoto(ctx, action.Destination, action.FileID, action.Text)
	case ActionSendVideo:
		return s.SendVideo(ctx, action.Destination, action.FileID, action.Text)
	case ActionSendDocument:
		return s.SendDocument(ctx, action.Destination, action.FileID, action.Text)
	case ActionSendVoice:
		return s.SendVoice(ctx, action.Destination, action.FileID, action.Text)
	default:
		return fmt.Errorf("unknown action kind %s", action.Kind)
	}
}
