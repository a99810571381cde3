package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/forwardbot/pkg/forward"
)

func TestMessageBus_InboundRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()
	ctx := context.Background()

	msg := InboundMessage{
		Channel:  "telegram",
		ChatID:   "100",
		EventKey: "telegram:100:1",
		Event:    forward.MessageEvent{Source: "100", Text: "urgent"},
	}
	require.NoError(t, mb.PublishInbound(ctx, msg))

	got, ok := mb.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "telegram:100:1", got.EventKey)

	decoded, err := got.Event.Decode()
	require.NoError(t, err)
	assert.Equal(t, "urgent", decoded.Text)
}

func TestMessageBus_OutboundRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()
	ctx := context.Background()

	require.NoError(t, mb.PublishOutbound(ctx, OutboundMessage{Channel: "telegram", ChatID: "1", Content: "ok"}))

	got, ok := mb.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "ok", got.Content)
}

func TestMessageBus_Closed(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()
	mb.Close()

	err := mb.PublishInbound(context.Background(), InboundMessage{})
	assert.ErrorIs(t, err, ErrBusClosed)

	_, ok := mb.ConsumeInbound(context.Background())
	assert.False(t, ok)
}

func TestMessageBus_ConsumeHonorsContext(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok := mb.ConsumeInbound(ctx)
	assert.False(t, ok)
}

func TestMessageBus_BufferSizeAndDepth(t *testing.T) {
	mb := NewMessageBus(WithBufferSize(2))
	defer mb.Close()
	ctx := context.Background()

	require.NoError(t, mb.PublishInbound(ctx, InboundMessage{EventKey: "a"}))
	require.NoError(t, mb.PublishInbound(ctx, InboundMessage{EventKey: "b"}))
	assert.Equal(t, 2, mb.InboundDepth())

	full, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, mb.PublishInbound(full, InboundMessage{EventKey: "c"}), context.DeadlineExceeded)
}
