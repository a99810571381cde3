package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/tinyland-inc/forwardbot/pkg/bus"
	"github.com/tinyland-inc/forwardbot/pkg/commands"
	"github.com/tinyland-inc/forwardbot/pkg/config"
	"github.com/tinyland-inc/forwardbot/pkg/forward"
	"github.com/tinyland-inc/forwardbot/pkg/logger"
	"github.com/tinyland-inc/forwardbot/pkg/utils"
)

const (
	telegramMaxMessageLength = 4096
	telegramMaxCaptionLength = 1024
	secretTokenHeader        = "X-Telegram-Bot-Api-Secret-Token"
	maxWebhookBody           = 1 << 20
)

// telegramAPI is the subset of *telego.Bot used by the channel.
type telegramAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	ForwardMessage(ctx context.Context, params *telego.ForwardMessageParams) (*telego.Message, error)
	SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error)
	SendVideo(ctx context.Context, params *telego.SendVideoParams) (*telego.Message, error)
	SendDocument(ctx context.Context, params *telego.SendDocumentParams) (*telego.Message, error)
	SendVoice(ctx context.Context, params *telego.SendVoiceParams) (*telego.Message, error)
	SetWebhook(ctx context.Context, params *telego.SetWebhookParams) error
	DeleteWebhook(ctx context.Context, params *telego.DeleteWebhookParams) error
	UpdatesViaLongPolling(
		ctx context.Context,
		params *telego.GetUpdatesParams,
		options ...telego.LongPollingOption,
	) (<-chan telego.Update, error)
}

// TelegramChannel receives updates by webhook or long polling, routes rule
// commands to the command router and queues everything else for ingestion.
// It is also the outbound forward.Sender.
type TelegramChannel struct {
	*BaseChannel
	bot      telegramAPI
	config   config.TelegramConfig
	commands *commands.Router

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTelegramChannel(
	cfg config.TelegramConfig,
	mb *bus.MessageBus,
	router *commands.Router,
) (*TelegramChannel, error) {
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return newTelegramChannel(bot, cfg, mb, router), nil
}

func newTelegramChannel(
	api telegramAPI,
	cfg config.TelegramConfig,
	mb *bus.MessageBus,
	router *commands.Router,
) *TelegramChannel {
	base := NewBaseChannel("telegram", mb, cfg.AllowFrom,
		WithMaxMessageLength(telegramMaxMessageLength),
		WithMaxCaptionLength(telegramMaxCaptionLength),
	)
	return &TelegramChannel{
		BaseChannel: base,
		bot:         api,
		config:      cfg,
		commands:    router,
	}
}

// Start registers the webhook, or in polling mode removes any webhook and
// starts consuming getUpdates.
func (c *TelegramChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.IsRunning() {
		return fmt.Errorf("telegram channel already running")
	}

	switch c.config.Mode {
	case config.ModePolling:
		if err := c.bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}

		pollCtx, cancel := context.WithCancel(ctx)
		updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
			Timeout:        30,
			AllowedUpdates: []string{"message", "channel_post"},
		})
		if err != nil {
			cancel()
			return fmt.Errorf("start long polling: %w", err)
		}
		c.cancel = cancel
		c.done = make(chan struct{})
		go c.poll(pollCtx, updates, c.done)

		logger.InfoC("telegram", "Long polling started")
	default:
		err := c.bot.SetWebhook(ctx, &telego.SetWebhookParams{
			URL:            c.config.WebhookEndpoint(),
			SecretToken:    c.config.WebhookSecret,
			AllowedUpdates: []string{"message", "channel_post"},
		})
		if err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		logger.InfoCF("telegram", "Webhook registered", map[string]any{
			"url": strings.TrimRight(c.config.WebhookURL, "/"),
		})
	}

	c.SetRunning(true)
	return nil
}

func (c *TelegramChannel) poll(ctx context.Context, updates <-chan telego.Update, done chan struct{}) {
	defer close(done)
	for update := range updates {
		c.processUpdate(ctx, updateEvent{update: update})
	}
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	c.SetRunning(false)
	logger.InfoC("telegram", "Telegram channel stopped")
	return nil
}

// WebhookHandler accepts Telegram update deliveries. Every request that
// passes the secret check is acknowledged with 200 so Telegram does not
// redeliver, including undecodable ones.
func (c *TelegramChannel) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if c.config.WebhookSecret != "" && r.Header.Get(secretTokenHeader) != c.config.WebhookSecret {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		ev := updateEvent{}
		if err != nil {
			ev.err = fmt.Errorf("%w: reading body: %w", forward.ErrMalformedEvent, err)
		} else if err := json.Unmarshal(body, &ev.update); err != nil {
			ev.err = fmt.Errorf("%w: %w", forward.ErrMalformedEvent, err)
		}

		c.processUpdate(r.Context(), ev)
		w.WriteHeader(http.StatusOK)
	})
}

// processUpdate routes commands and queues everything else. Command messages
// are never forwarded.
func (c *TelegramChannel) processUpdate(ctx context.Context, ev updateEvent) {
	msg := ev.message()
	if msg == nil {
		c.PublishEvent(ctx, "", "", ev)
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	if commands.IsCommand(msg.Text) {
		c.handleCommand(ctx, chatID, msg)
		return
	}

	c.PublishEvent(ctx, chatID, strconv.Itoa(msg.MessageID), ev)
}

func (c *TelegramChannel) handleCommand(ctx context.Context, chatID string, msg *telego.Message) {
	if c.commands == nil {
		return
	}
	senderID := senderIdentity(msg)
	if !c.IsAllowed(senderID) {
		logger.WarnCF("telegram", "Command from sender outside allow list", map[string]any{
			"sender_id": senderID,
			"chat_id":   chatID,
		})
		return
	}

	reply, handled := c.commands.Execute(ctx, msg.Text)
	if !handled {
		return
	}
	c.Reply(ctx, chatID, msg.MessageID, reply)
}

// Send delivers a command reply.
func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	to, err := telegramChatID(msg.ChatID)
	if err != nil {
		return err
	}
	params := tu.Message(to, Truncate(msg.Content, c.MaxMessageLength()))
	if msg.ReplyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: msg.ReplyTo, AllowSendingWithoutReply: true}
	}
	_, err = c.bot.SendMessage(ctx, params)
	return err
}

func (c *TelegramChannel) SendText(ctx context.Context, destination, text string) error {
	to, err := telegramChatID(destination)
	if err != nil {
		return err
	}
	_, err = c.bot.SendMessage(ctx, tu.Message(to, Truncate(text, c.MaxMessageLength())))
	return err
}

func (c *TelegramChannel) ForwardNative(ctx context.Context, destination, source string, messageID int) error {
	to, err := telegramChatID(destination)
	if err != nil {
		return err
	}
	from, err := telegramChatID(source)
	if err != nil {
		return err
	}
	_, err = c.bot.ForwardMessage(ctx, &telego.ForwardMessageParams{
		ChatID:     to,
		FromChatID: from,
		MessageID:  messageID,
	})
	return err
}

func (c *TelegramChannel) SendPhoto(ctx context.Context, destination, fileID, caption string) error {
	to, err := telegramChatID(destination)
	if err != nil {
		return err
	}
	_, err = c.bot.SendPhoto(ctx, &telego.SendPhotoParams{
		ChatID:  to,
		Photo:   tu.FileFromID(fileID),
		Caption: Truncate(caption, c.MaxCaptionLength()),
	})
	return err
}

func (c *TelegramChannel) SendVideo(ctx context.Context, destination, fileID, caption string) error {
	to, err := telegramChatID(destination)
	if err != nil {
		return err
	}
	_, err = c.bot.SendVideo(ctx, &telego.SendVideoParams{
		ChatID:  to,
		Video:   tu.FileFromID(fileID),
		Caption: Truncate(caption, c.MaxCaptionLength()),
	})
	return err
}

func (c *TelegramChannel) SendDocument(ctx context.Context, destination, fileID, caption string) error {
	to, err := telegramChatID(destination)
	if err != nil {
		return err
	}
	_, err = c.bot.SendDocument(ctx, &telego.SendDocumentParams{
		ChatID:   to,
		Document: tu.FileFromID(fileID),
		Caption:  Truncate(caption, c.MaxCaptionLength()),
	})
	return err
}

func (c *TelegramChannel) SendVoice(ctx context.Context, destination, fileID, caption string) error {
	to, err := telegramChatID(destination)
	if err != nil {
		return err
	}
	_, err = c.bot.SendVoice(ctx, &telego.SendVoiceParams{
		ChatID:  to,
		Voice:   tu.FileFromID(fileID),
		Caption: Truncate(caption, c.MaxCaptionLength()),
	})
	return err
}

var _ forward.Sender = (*TelegramChannel)(nil)
var _ Channel = (*TelegramChannel)(nil)

func telegramChatID(id string) (telego.ChatID, error) {
	n, username, err := utils.ParseChatID(id)
	if err != nil {
		return telego.ChatID{}, err
	}
	if username != "" {
		return tu.Username(username), nil
	}
	return tu.ID(n), nil
}

// updateEvent is a Telegram update waiting to be decoded by the ingestion
// handler. err is set when the delivery itself could not be parsed.
type updateEvent struct {
	update telego.Update
	err    error
}

func (e updateEvent) message() *telego.Message {
	if e.err != nil {
		return nil
	}
	if e.update.Message != nil {
		return e.update.Message
	}
	return e.update.ChannelPost
}

func (e updateEvent) Decode() (forward.InboundMessage, error) {
	if e.err != nil {
		return forward.InboundMessage{}, e.err
	}
	return DecodeUpdate(e.update)
}

// DecodeUpdate converts a Telegram update carrying a message or channel post.
func DecodeUpdate(update telego.Update) (forward.InboundMessage, error) {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil {
		return forward.InboundMessage{}, fmt.Errorf("%w: update %d has no message", forward.ErrMalformedEvent, update.UpdateID)
	}
	if msg.Chat.ID == 0 {
		return forward.InboundMessage{}, fmt.Errorf("%w: update %d has no chat", forward.ErrMalformedEvent, update.UpdateID)
	}

	in := forward.InboundMessage{
		Source:     strconv.FormatInt(msg.Chat.ID, 10),
		SourceName: chatTitle(msg.Chat),
		MessageID:  msg.MessageID,
		SenderID:   senderIdentity(msg),
		Sender:     forward.SenderHuman,
	}
	if msg.From != nil && msg.From.IsBot {
		in.Sender = forward.SenderAutomated
	}

	switch {
	case len(msg.Photo) > 0:
		in.Media = forward.MediaPhoto
		in.FileID = msg.Photo[len(msg.Photo)-1].FileID
		in.Text = msg.Caption
	case msg.Video != nil:
		in.Media = forward.MediaVideo
		in.FileID = msg.Video.FileID
		in.Text = msg.Caption
	case msg.Document != nil:
		in.Media = forward.MediaDocument
		in.FileID = msg.Document.FileID
		in.Text = msg.Caption
	case msg.Voice != nil:
		in.Media = forward.MediaVoice
		in.FileID = msg.Voice.FileID
		in.Text = msg.Caption
	case msg.Text != "":
		in.Media = forward.MediaText
		in.Text = msg.Text
	default:
		in.Media = forward.MediaUnsupported
		in.Text = msg.Caption
	}

	return in, nil
}

func chatTitle(chat telego.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	if chat.Username != "" {
		return "@" + chat.Username
	}
	return strings.TrimSpace(chat.FirstName + " " + chat.LastName)
}

// senderIdentity returns "id|username" as understood by IsAllowed.
func senderIdentity(msg *telego.Message) string {
	switch {
	case msg.From != nil:
		id := strconv.FormatInt(msg.From.ID, 10)
		if msg.From.Username != "" {
			return id + "|" + msg.From.Username
		}
		return id
	case msg.SenderChat != nil:
		return strconv.FormatInt(msg.SenderChat.ID, 10)
	default:
		return ""
	}
}
