// Package app provides the entry point for the ui-proxy command-line
// application.
package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agent-assist/ui-proxy/pkg/api"
	"github.com/agent-assist/ui-proxy/pkg/config"
	"github.com/agent-assist/ui-proxy/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "ui-proxy",
	DisableAutoGenTag: true,
	Short:             "Authentication and API proxy for the agent assist UI modules",
	Long: `ui-proxy sits between the agent assist UI modules running in a contact
center desktop and the conversational AI backend. It drives the OAuth login
flow against the contact center's identity provider, issues its own
short-lived tokens to the UI, and forwards allow-listed API requests to the
regional backend endpoint using the server's machine credentials.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proxy server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

// NewRootCmd creates the root command for the ui-proxy CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.AddCommand(serveCmd)
	return rootCmd
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infow("starting ui-proxy",
		"port", cfg.Port,
		"environment", cfg.Environment,
	)
	return api.Serve(ctx, cfg)
}
