package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-client/internal/config"
)

func TestApplyFlagsOnlyOverridesChanged(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--user", "ada",
		"--max-attempts", "0",
		"--reconnect-delay", "500ms",
	}))

	var opts options
	opts.username, _ = cmd.Flags().GetString("user")
	opts.maxAttempts, _ = cmd.Flags().GetInt("max-attempts")
	opts.reconnectDelay, _ = cmd.Flags().GetDuration("reconnect-delay")

	cfg := config.Default()
	applyFlags(cmd, opts, &cfg)

	require.Equal(t, "ada", cfg.Username)
	require.Equal(t, 0, cfg.MaxReconnectAttempts)
	require.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay)
	require.Equal(t, config.Default().Channel, cfg.Channel)
	require.Equal(t, config.Default().ServerURL, cfg.ServerURL)
}

func TestApplyFlagsExplicitEmptyStatusAddrDisablesAPI(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--status-addr", "",
		"--log-level", "debug",
		"--channel", "random",
	}))

	var opts options
	opts.statusAddr, _ = cmd.Flags().GetString("status-addr")
	opts.logLevel, _ = cmd.Flags().GetString("log-level")
	opts.channel, _ = cmd.Flags().GetString("channel")

	cfg := config.Default()
	cfg.StatusAddr = "127.0.0.1:9090"
	cfg.MaxReconnectAttempts = 7
	applyFlags(cmd, opts, &cfg)

	require.Empty(t, cfg.StatusAddr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "random", cfg.Channel)
	require.Equal(t, 7, cfg.MaxReconnectAttempts, "unset flag keeps the configured value")
}
