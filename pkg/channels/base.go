package channels

import (
	"context"
	"strings"
	"sync/atomic"
	"unicode/utf16"

	"github.com/google/uuid"

	"github.com/tinyland-inc/forwardbot/pkg/bus"
	"github.com/tinyland-inc/forwardbot/pkg/forward"
	"github.com/tinyland-inc/forwardbot/pkg/logger"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

// BaseChannelOption is a functional option for configuring a BaseChannel.
type BaseChannelOption func(*BaseChannel)

// WithMaxMessageLength sets the maximum message length (in UTF-16 code units) for a channel.
// Longer outbound texts are truncated. A value of 0 means no limit.
func WithMaxMessageLength(n int) BaseChannelOption {
	return func(c *BaseChannel) { c.maxMessageLength = n }
}

// WithMaxCaptionLength sets the maximum media caption length (in UTF-16 code units).
func WithMaxCaptionLength(n int) BaseChannelOption {
	return func(c *BaseChannel) { c.maxCaptionLength = n }
}

type BaseChannel struct {
	bus              *bus.MessageBus
	running          atomic.Bool
	name             string
	allowList        []string
	maxMessageLength int
	maxCaptionLength int
}

func NewBaseChannel(
	name string,
	bus *bus.MessageBus,
	allowList []string,
	opts ...BaseChannelOption,
) *BaseChannel {
	bc := &BaseChannel{
		bus:       bus,
		name:      name,
		allowList: allowList,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// MaxMessageLength returns the maximum message length (in UTF-16 code units) for this channel.
// A value of 0 means no limit.
func (c *BaseChannel) MaxMessageLength() int {
	return c.maxMessageLength
}

func (c *BaseChannel) MaxCaptionLength() int {
	return c.maxCaptionLength
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

// IsAllowed reports whether senderID may issue rule commands. An empty
// allow list admits everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	// Extract parts from compound senderID like "123456|username"
	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		// Strip leading "@" from allowed value for username matching
		trimmed := strings.TrimPrefix(allowed, "@")
		allowedID := trimmed
		allowedUser := ""
		if idx := strings.Index(trimmed, "|"); idx > 0 {
			allowedID = trimmed[:idx]
			allowedUser = trimmed[idx+1:]
		}

		if senderID == allowed ||
			idPart == allowed ||
			senderID == trimmed ||
			idPart == trimmed ||
			idPart == allowedID ||
			(allowedUser != "" && senderID == allowedUser) ||
			(userPart != "" && (userPart == allowed || userPart == trimmed || userPart == allowedUser)) {
			return true
		}
	}

	return false
}

// PublishEvent hands a non-command event to the ingestion workers.
func (c *BaseChannel) PublishEvent(ctx context.Context, chatID, messageID string, ev forward.Event) {
	msg := bus.InboundMessage{
		Channel:   c.name,
		ChatID:    chatID,
		MessageID: messageID,
		EventKey:  BuildEventKey(c.name, chatID, messageID),
		Event:     ev,
	}

	if err := c.bus.PublishInbound(ctx, msg); err != nil {
		logger.WarnCF(c.name, "Failed to queue inbound event", map[string]any{
			"event": msg.EventKey,
			"error": err.Error(),
		})
	}
}

// Reply queues a command reply for delivery through Send.
func (c *BaseChannel) Reply(ctx context.Context, chatID string, replyTo int, content string) {
	msg := bus.OutboundMessage{
		Channel: c.name,
		ChatID:  chatID,
		Content: content,
		ReplyTo: replyTo,
	}
	if err := c.bus.PublishOutbound(ctx, msg); err != nil {
		logger.WarnCF(c.name, "Failed to queue reply", map[string]any{
			"chat_id": chatID,
			"error":   err.Error(),
		})
	}
}

func (c *BaseChannel) SetRunning(running bool) {
	c.running.Store(running)
}

// BuildEventKey constructs a unique key for an inbound event.
func BuildEventKey(channel, chatID, messageID string) string {
	id := messageID
	if id == "" {
		id = uuid.New().String()
	}
	return channel + ":" + chatID + ":" + id
}

// Truncate cuts s to at most limit UTF-16 code units, which is how Telegram
// measures text and caption length. limit <= 0 means no limit.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf16Len(s) <= limit {
		return s
	}

	// Reserve one unit for the ellipsis.
	budget := limit - 1
	used := 0
	for i, r := range s {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if used+n > budget {
			return s[:i] + "…"
		}
		used += n
	}
	return s
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
