package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/log"
)

type options struct {
	configPath     string
	serverURL      string
	username       string
	channel        string
	backoff        string
	reconnectDelay time.Duration
	maxAttempts    int
	statusAddr     string
	logLevel       string
	logFormat      string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "wirechat-client",
		Short:         "Interactive client for wirechat channels",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd, opts)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to config file")
	flags.StringVar(&opts.serverURL, "server", "", "chat server WebSocket URL")
	flags.StringVarP(&opts.username, "user", "u", "", "username to join as")
	flags.StringVar(&opts.channel, "channel", "", "channel to join")
	flags.StringVar(&opts.backoff, "backoff", "", "reconnect strategy: fixed or exponential")
	flags.DurationVar(&opts.reconnectDelay, "reconnect-delay", 0, "delay before each reconnect attempt")
	flags.IntVar(&opts.maxAttempts, "max-attempts", 0, "maximum reconnect attempts")
	flags.StringVar(&opts.statusAddr, "status-addr", "", "listen address of the local status API (disabled when empty)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: console or json")

	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	bootLogger := log.New("info", "console", cmd.ErrOrStderr())

	cfg, path, err := config.Load(bootLogger, opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, opts, &cfg)

	logger := log.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	logger.Debug().Str("config", path).Str("server", cfg.ServerURL).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	logger.Info().Str("user", cfg.Username).Str("channel", cfg.Channel).Msg("starting wirechat client")
	if err := application.Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("client stopped")
	return nil
}

// applyFlags overrides config values with flags set on the command line.
func applyFlags(cmd *cobra.Command, opts options, cfg *config.Config) {
	cfg.UpdateFrom(config.Config{
		ServerURL:            opts.serverURL,
		Username:             opts.username,
		Channel:              opts.channel,
		Backoff:              opts.backoff,
		ReconnectDelay:       opts.reconnectDelay,
		MaxReconnectAttempts: opts.maxAttempts,
		StatusAddr:           opts.statusAddr,
		LogLevel:             opts.logLevel,
		LogFormat:            opts.logFormat,
	})

	// UpdateFrom skips zero values, which are meaningful here when set explicitly.
	flags := cmd.Flags()
	if flags.Changed("max-attempts") {
		cfg.MaxReconnectAttempts = opts.maxAttempts
	}
	if flags.Changed("reconnect-delay") {
		cfg.ReconnectDelay = opts.reconnectDelay
	}
	if flags.Changed("status-addr") {
		cfg.StatusAddr = opts.statusAddr
	}
}
