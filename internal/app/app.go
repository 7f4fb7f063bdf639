package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/core"
	transporthttp "github.com/vovakirdan/wirechat-client/internal/transport/http"
	"github.com/vovakirdan/wirechat-client/internal/transport/ws"
)

// App wires together the connection manager, its transport and consumers.
type App struct {
	manager         *core.Manager
	console         *Console
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration. The console reads
// from in and writes to out; a nil in disables it. A nil logger disables logging.
func New(cfg config.Config, logger *zerolog.Logger, in io.Reader, out io.Writer) (*App, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dialer := ws.NewDialer(ws.Config{
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ReadLimit:    ws.DefaultConfig().ReadLimit,
	}, logger)

	manager := core.New(core.Config{
		ServerURL:      cfg.ServerURL,
		Params:         core.Params{Username: cfg.Username, Channel: cfg.Channel},
		ReconnectDelay: cfg.ReconnectDelay,
		MaxAttempts:    cfg.MaxReconnectAttempts,
		DedupCapacity:  cfg.DedupCapacity,
	}, dialer,
		core.WithLogger(logger),
		core.WithBackOff(newBackOff(cfg)),
	)

	a := &App{
		manager:         manager,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}
	if in != nil {
		a.console = NewConsole(manager, in, out, logger)
	}
	if cfg.StatusAddr != "" {
		a.server = transporthttp.NewServer(manager, cfg, logger)
	}
	return a, nil
}

// Manager returns the connection manager.
func (a *App) Manager() *core.Manager {
	return a.manager
}

func newBackOff(cfg config.Config) backoff.BackOff {
	if cfg.Backoff == config.BackoffExponential {
		return core.ExponentialBackOff(cfg.ReconnectDelay, cfg.MaxReconnectDelay)
	}
	return backoff.NewConstantBackOff(cfg.ReconnectDelay)
}

// Run starts the manager and its consumers and blocks until context cancellation,
// the console quitting, or a fatal error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := a.manager.Run(ctx); err != nil {
			a.log.Error().Err(err).Msg("connection manager stopped")
		}
	}()

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() {
			a.log.Info().Str("addr", a.server.Addr).Msg("status api listening")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- err
				return
			}
			serverErr <- nil
		}()
	}

	consoleDone := make(chan error, 1)
	if a.console != nil {
		go func() { consoleDone <- a.console.Run(ctx) }()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = err
		a.server = nil
	case err := <-consoleDone:
		runErr = err
	}

	if a.server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer shutdownCancel()

		a.log.Info().Msg("shutting down status api")
		if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
	}

	cancel()
	select {
	case <-a.manager.Done():
	case <-time.After(a.shutdownTimeout):
		a.log.Warn().Msg("connection manager did not stop in time")
	}
	return runErr
}
