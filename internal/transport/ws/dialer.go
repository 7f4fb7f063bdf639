// Package ws implements the chat transport over WebSocket.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

// Config tunes the WebSocket transport.
type Config struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		ReadLimit:    1 << 20,
	}
}

// Dialer opens WebSocket connections and reports their lifecycle to a handler.
type Dialer struct {
	cfg Config
	log *zerolog.Logger
}

// NewDialer builds a Dialer. A nil logger disables logging.
func NewDialer(cfg Config, logger *zerolog.Logger) *Dialer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dialer{cfg: cfg, log: logger}
}

// Dial starts the handshake in the background and returns immediately.
func (d *Dialer) Dial(ctx context.Context, target string, h core.TransportHandler) (core.Conn, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &conn{
		cfg:    d.cfg,
		log:    d.log,
		target: target,
		h:      h,
		cancel: cancel,
	}
	go c.run(ctx)

	return c, nil
}

type conn struct {
	cfg    Config
	log    *zerolog.Logger
	target string
	h      core.TransportHandler
	cancel context.CancelFunc

	mu      sync.Mutex
	ws      *websocket.Conn
	open    bool
	closing bool
}

func (c *conn) run(ctx context.Context) {
	defer c.cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	wsConn, _, err := websocket.Dial(dialCtx, c.target, nil)
	dialCancel()
	if err != nil {
		if c.isClosing() {
			c.h.OnClose(int(websocket.StatusNormalClosure), "closed before open")
			return
		}
		c.h.OnError(fmt.Errorf("dial: %w", err))
		c.h.OnClose(int(websocket.StatusAbnormalClosure), "dial failed")
		return
	}
	if c.cfg.ReadLimit > 0 {
		wsConn.SetReadLimit(c.cfg.ReadLimit)
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = wsConn.Close(websocket.StatusNormalClosure, "bye")
		c.h.OnClose(int(websocket.StatusNormalClosure), "closed before open")
		return
	}
	c.ws = wsConn
	c.open = true
	c.mu.Unlock()

	c.log.Debug().Str("target", c.target).Msg("ws connected")
	c.h.OnOpen()

	code, reason := c.readLoop(ctx, wsConn)

	c.mu.Lock()
	c.open = false
	c.mu.Unlock()

	c.h.OnClose(code, reason)
}

func (c *conn) readLoop(ctx context.Context, wsConn *websocket.Conn) (int, string) {
	for {
		_, data, err := wsConn.Read(ctx)
		if err != nil {
			// Treat expected shutdowns quietly.
			if c.isClosing() || errors.Is(err, context.Canceled) {
				return int(websocket.StatusNormalClosure), "closed by client"
			}

			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) {
				return int(closeErr.Code), closeErr.Reason
			}

			c.log.Warn().Err(err).Str("target", c.target).Msg("read ws message")
			c.h.OnError(fmt.Errorf("read: %w", err))
			return int(websocket.StatusAbnormalClosure), err.Error()
		}

		c.h.OnMessage(data)
	}
}

// Send writes one text message.
func (c *conn) Send(data []byte) error {
	c.mu.Lock()
	wsConn, open := c.ws, c.open
	c.mu.Unlock()

	if !open || wsConn == nil {
		return core.ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteTimeout)
	defer cancel()

	if err := wsConn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close starts a normal closure without waiting for the peer.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.open = false
	wsConn := c.ws
	c.mu.Unlock()

	if wsConn == nil {
		// Still dialing: abort the handshake.
		c.cancel()
		return nil
	}

	go func() {
		if err := wsConn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
			c.log.Debug().Err(err).Msg("ws close handshake")
		}
		c.cancel()
	}()
	return nil
}

// IsOpen reports whether the handshake completed and the connection is still up.
func (c *conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *conn) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}
