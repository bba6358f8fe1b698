package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/mirage-client/internal/config"
	"github.com/vovakirdan/mirage-client/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	root := &cobra.Command{
		Use:           "mirage",
		Short:         "Client for the Mirage polling chat service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	loadConfig := func() (config.Config, error) {
		logger := log.New("info")
		cfg, path, err := config.Load(logger, configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return cfg, nil
	}

	root.AddCommand(
		newRegisterCmd(loadConfig),
		newChatCmd(loadConfig),
		newServeCmd(loadConfig),
	)
	return root
}
