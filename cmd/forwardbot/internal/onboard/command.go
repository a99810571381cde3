package onboard

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/forwardbot/cmd/forwardbot/internal"
	"github.com/tinyland-inc/forwardbot/pkg/config"
)

func NewOnboardCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "onboard",
		Aliases: []string{"o"},
		Short:   "Write a default config file",
		Args:    cobra.NoArgs,
		Example: `  forwardbot onboard
  forwardbot onboard --config /etc/forwardbot/config.json --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeDefaultConfig(internal.GetConfigPath(), force, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func writeDefaultConfig(path string, force bool, out io.Writer) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	fmt.Fprintf(out, "%s Config written to %s\n", internal.Logo, path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Set telegram.token (or BOT_TOKEN) and telegram.webhook_url")
	fmt.Fprintln(out, "  2. Run: forwardbot gateway")
	return nil
}
