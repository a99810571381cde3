package rules

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/forwardbot/cmd/forwardbot/internal"
	"github.com/tinyland-inc/forwardbot/pkg/config"
	"github.com/tinyland-inc/forwardbot/pkg/forward"
	"github.com/tinyland-inc/forwardbot/pkg/rules"
	"github.com/tinyland-inc/forwardbot/pkg/utils"
)

func NewRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage forwarding rules offline",
		Example: `  forwardbot rules list
  forwardbot rules add -1001234 @alerts_feed breaking news
  forwardbot rules test -1001234 "breaking news from the wire"`,
	}

	addCmd := &cobra.Command{
		Use:   "add SOURCE DESTINATION KEYWORD...",
		Short: "Append a forwarding rule",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			return addRule(cmd.Context(), cfg.Storage, args, cmd.OutOrStdout())
		},
	}

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List forwarding rules",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			return listRules(cmd.Context(), cfg.Storage, cmd.OutOrStdout())
		},
	}

	testCmd := &cobra.Command{
		Use:   "test SOURCE TEXT...",
		Short: "Show which rules a text message from SOURCE would trigger",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			return testRules(cmd.Context(), cfg.Storage, cfg.Forward, args, cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(addCmd, listCmd, testCmd)
	return cmd
}

// openStore always refuses a corrupt store here, regardless of
// storage.strict, so an offline edit cannot overwrite unreadable data.
func openStore(ctx context.Context, sc config.StorageConfig) (*rules.Store, error) {
	p, err := rules.OpenPersister(sc.Driver, sc.Path)
	if err != nil {
		return nil, err
	}
	store := rules.NewStore(p)
	if err := store.Load(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func addRule(ctx context.Context, sc config.StorageConfig, args []string, out io.Writer) error {
	store, err := openStore(ctx, sc)
	if err != nil {
		return err
	}
	defer store.Close()

	rule, err := store.AppendRule(ctx, args[0], args[1], strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ %s → %s: '%s'\n", rule.Source, rule.Destination, rule.Keyword)
	return nil
}

func listRules(ctx context.Context, sc config.StorageConfig, out io.Writer) error {
	store, err := openStore(ctx, sc)
	if err != nil {
		return err
	}
	defer store.Close()

	sources := store.Sources()
	if len(sources) == 0 {
		fmt.Fprintln(out, "No forwarding rules.")
		return nil
	}
	for _, source := range sources {
		fmt.Fprintf(out, "%s\n", source)
		for _, r := range store.RulesFor(source) {
			fmt.Fprintf(out, "  → %s: '%s'\n", r.Destination, r.Keyword)
		}
	}
	return nil
}

// testRules runs a text message through the real ingestion path with an
// outbound side that only prints.
func testRules(
	ctx context.Context,
	sc config.StorageConfig,
	fc config.ForwardConfig,
	args []string,
	out io.Writer,
) error {
	source, err := utils.CanonicalChatID(args[0])
	if err != nil {
		return err
	}

	store, err := openStore(ctx, sc)
	if err != nil {
		return err
	}
	defer store.Close()

	h := forward.NewHandler(store, dryRunSender{out: out},
		forward.WithPolicy(forward.Policy{
			TextMode:         forward.TextMode(fc.TextMode),
			UnknownChatLabel: fc.UnknownChatLabel,
		}),
	)
	outcome := h.Handle(ctx, forward.MessageEvent{
		Source: source,
		Media:  forward.MediaText,
		Text:   strings.Join(args[1:], " "),
	})
	if len(outcome.Results) == 0 {
		fmt.Fprintln(out, "No rules matched.")
	}
	return nil
}

type dryRunSender struct {
	out io.Writer
}

func (s dryRunSender) SendText(_ context.Context, destination, text string) error {
	fmt.Fprintf(s.out, "send text to %s: %q\n", destination, text)
	return nil
}

func (s dryRunSender) ForwardNative(_ context.Context, destination, source string, _ int) error {
	fmt.Fprintf(s.out, "forward from %s to %s\n", source, destination)
	return nil
}

func (s dryRunSender) SendPhoto(_ context.Context, destination, _, caption string) error {
	return s.SendText(context.Background(), destination, caption)
}

func (s dryRunSender) SendVideo(_ context.Context, destination, _, caption string) error {
	return s.SendText(context.Background(), destination, caption)
}

func (s dryRunSender) SendDocument(_ context.Context, destination, _, caption string) error {
	return s.SendText(context.Background(), destination, caption)
}

func (s dryRunSender) SendVoice(_ context.Context, destination, _, caption string) error {
	return s.SendText(context.Background(), destination, caption)
}
