// Package main is the entry point for the ui-proxy server.
package main

import (
	"os"

	"github.com/agent-assist/ui-proxy/cmd/ui-proxy/app"
	"github.com/agent-assist/ui-proxy/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		logger.Errorf("ui-proxy exited with error: %v", err)
		os.Exit(1)
	}
}
