package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/forwardbot/cmd/forwardbot/internal"
	"github.com/tinyland-inc/forwardbot/pkg/bus"
	"github.com/tinyland-inc/forwardbot/pkg/channels"
	"github.com/tinyland-inc/forwardbot/pkg/commands"
	"github.com/tinyland-inc/forwardbot/pkg/config"
	"github.com/tinyland-inc/forwardbot/pkg/forward"
	"github.com/tinyland-inc/forwardbot/pkg/health"
	"github.com/tinyland-inc/forwardbot/pkg/logger"
	"github.com/tinyland-inc/forwardbot/pkg/rules"
)

const shutdownTimeout = 20 * time.Second

func gatewayCmd(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	msgBus := bus.NewMessageBus(bus.WithBufferSize(cfg.Forward.Workers * 16))

	telegram, err := channels.NewTelegramChannel(cfg.Telegram, msgBus, commands.NewRouter(store))
	if err != nil {
		return fmt.Errorf("error creating telegram channel: %w", err)
	}

	handler := newHandler(cfg.Forward, store, telegram)

	healthServer := health.NewServer(cfg.Gateway.Host, cfg.Gateway.Port)
	if cfg.Telegram.Mode == config.ModeWebhook {
		healthServer.Handle(http.MethodPost, cfg.Telegram.EffectiveWebhookPath(), telegram.WebhookHandler())
	}
	healthServer.RegisterCheck("telegram", func(context.Context) error {
		if !telegram.IsRunning() {
			return errors.New("channel not running")
		}
		return nil
	})
	healthServer.SetStats(func() any {
		return map[string]any{
			"forward":       handler.Stats().Snapshot(),
			"sources":       len(store.Sources()),
			"inbound_queue": msgBus.InboundDepth(),
		}
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("health", "Health server error", map[string]any{"error": err.Error()})
			serverErr <- err
		}
	}()

	if err := telegram.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = healthServer.Stop(shutdownCtx)
		return fmt.Errorf("error starting telegram channel: %w", err)
	}
	healthServer.SetReady(true)

	var loops errgroup.Group
	loops.Go(func() error { return runIngestion(ctx, msgBus, handler, cfg.Forward.Workers) })
	loops.Go(func() error { return runReplies(ctx, msgBus, telegram) })

	fmt.Printf("✓ Gateway started on %s:%d (%s mode)\n", cfg.Gateway.Host, cfg.Gateway.Port, cfg.Telegram.Mode)
	fmt.Println("Press Ctrl+C to stop")

	select {
	case <-ctx.Done():
	case err = <-serverErr:
	}

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if stopErr := healthServer.Stop(shutdownCtx); stopErr != nil {
		logger.WarnCF("health", "Health server shutdown", map[string]any{"error": stopErr.Error()})
	}
	_ = telegram.Stop(shutdownCtx)
	msgBus.Close()
	stop()
	_ = loops.Wait()

	fmt.Println("✓ Gateway stopped")
	return err
}

// openStore loads the rule store. An unreadable store is fatal only when
// storage.strict is set; otherwise the gateway starts with no rules.
func openStore(ctx context.Context, sc config.StorageConfig) (*rules.Store, error) {
	p, err := rules.OpenPersister(sc.Driver, sc.Path)
	if err != nil {
		return nil, fmt.Errorf("error opening rule storage: %w", err)
	}
	store := rules.NewStore(p)
	if err := store.Load(ctx); err != nil {
		if sc.Strict {
			store.Close()
			return nil, fmt.Errorf("error loading rules: %w", err)
		}
		logger.WarnCF("rules", "Starting with no rules", map[string]any{
			"path":  sc.Path,
			"error": err.Error(),
		})
	}
	return store, nil
}

func newHandler(fc config.ForwardConfig, store forward.RuleSource, sender forward.Sender) *forward.Handler {
	return forward.NewHandler(store, sender,
		forward.WithPolicy(forward.Policy{
			TextMode:         forward.TextMode(fc.TextMode),
			UnknownChatLabel: fc.UnknownChatLabel,
		}),
		forward.WithSendTimeout(fc.SendTimeout()),
	)
}

// runIngestion feeds queued events to at most workers concurrent Handle
// calls until the bus closes or ctx is done. In-flight events are allowed to
// finish; their sends are still bounded by the per-send timeout.
func runIngestion(ctx context.Context, mb *bus.MessageBus, h *forward.Handler, workers int) error {
	var g errgroup.Group
	g.SetLimit(workers)

	work := context.WithoutCancel(ctx)
	for {
		msg, ok := mb.ConsumeInbound(ctx)
		if !ok {
			break
		}
		g.Go(func() error {
			out := h.Handle(work, msg.Event)
			if failed := out.Failed(); len(failed) > 0 {
				logger.DebugCF("forward", "Event finished with failures", map[string]any{
					"event":  msg.EventKey,
					"failed": len(failed),
				})
			}
			return nil
		})
	}

	if depth := mb.InboundDepth(); depth > 0 {
		logger.WarnCF("forward", "Dropping queued events on shutdown", map[string]any{"count": depth})
	}
	return g.Wait()
}

// runReplies delivers command replies until the bus closes or ctx is done.
func runReplies(ctx context.Context, mb *bus.MessageBus, ch channels.Channel) error {
	for {
		msg, ok := mb.SubscribeOutbound(ctx)
		if !ok {
			return nil
		}
		if err := ch.Send(ctx, msg); err != nil {
			logger.ErrorCF(ch.Name(), "Failed to send reply", map[string]any{
				"chat_id": msg.ChatID,
				"error":   err.Error(),
			})
		}
	}
}
