// ForwardBot - keyword based message forwarding for Telegram
// License: MIT

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/forwardbot/cmd/forwardbot/internal"
	"github.com/tinyland-inc/forwardbot/cmd/forwardbot/internal/gateway"
	"github.com/tinyland-inc/forwardbot/cmd/forwardbot/internal/onboard"
	"github.com/tinyland-inc/forwardbot/cmd/forwardbot/internal/rules"
	"github.com/tinyland-inc/forwardbot/cmd/forwardbot/internal/version"
)

func NewForwardbotCommand() *cobra.Command {
	short := fmt.Sprintf("%s forwardbot - keyword forwarding bot v%s\n\n", internal.Logo, internal.GetVersion())

	var configPath string

	cmd := &cobra.Command{
		Use:     "forwardbot",
		Short:   short,
		Example: "forwardbot gateway",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			internal.SetConfigPath(configPath)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file path (default: ~/.forwardbot/config.json)")

	cmd.AddCommand(
		onboard.NewOnboardCommand(),
		gateway.NewGatewayCommand(),
		rules.NewRulesCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewForwardbotCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
