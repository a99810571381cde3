package bus

import "github.com/tinyland-inc/forwardbot/pkg/forward"

// InboundMessage is a non-command message waiting for ingestion.
type InboundMessage struct {
	Channel   string        `json:"channel"`
	ChatID    string        `json:"chat_id"`
	MessageID string        `json:"message_id,omitempty"` // platform message ID
	EventKey  string        `json:"event_key"`            // channel:chat:message, unique per event
	Event     forward.Event `json:"-"`
}

// OutboundMessage is a reply to a command issuer.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
	ReplyTo int    `json:"reply_to,omitempty"`
}
