package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/log"
	"github.com/vovakirdan/wirechat-client/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ws_smoke: %v\n", err)
		os.Exit(1)
	}
}

// run joins a channel through the connection manager, sends one message and waits
// for the server to echo it back as the user's own message.
func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "username to join as")
	channel := flag.String("channel", "general", "channel name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := log.New(level, "console", os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := core.DefaultConfig()
	cfg.ServerURL = *addr
	cfg.Params = core.Params{Username: *user, Channel: *channel}
	cfg.MaxAttempts = 0

	m := core.New(cfg, ws.NewDialer(ws.DefaultConfig(), logger), core.WithLogger(logger))
	go func() { _ = m.Run(ctx) }()
	defer m.Disconnect()

	sent := false
	printed := 0
	for {
		select {
		case <-ctx.Done():
			return errors.New("timed out waiting for echo")
		case snap := <-m.Updates():
			if snap.Phase == core.PhaseTerminated {
				return errors.New("connection closed")
			}
			for _, msg := range snap.Messages[min(printed, len(snap.Messages)):] {
				fmt.Printf("Received: kind=%s channel=%s user=%s text=%q ts=%s\n",
					msg.Kind, msg.Channel, msg.Author, msg.Body, msg.Timestamp)
				if sent && msg.Body == *text && snap.Own(msg) {
					return nil
				}
			}
			printed = len(snap.Messages)

			if !sent && snap.Identity != "" {
				if err := m.TrySend(*text); err != nil {
					return fmt.Errorf("send: %w", err)
				}
				sent = true
			}
		}
	}
}
