package core

import (
	"context"
	"fmt"
	"net/url"
)

// Dialer opens duplex message transports.
//
// Dial must not block on the network: it returns a handle right away and reports
// the outcome through the handler (OnOpen, or OnError followed by OnClose). After
// OnClose no further callbacks are delivered for that handle.
type Dialer interface {
	Dial(ctx context.Context, target string, h TransportHandler) (Conn, error)
}

// Conn is an open or opening transport handle.
type Conn interface {
	// Send writes one text message. It fails when the transport is not open.
	Send(data []byte) error
	// Close starts a normal closure. OnClose still fires.
	Close() error
	// IsOpen reports whether the transport finished its handshake and has not closed.
	IsOpen() bool
}

// TransportHandler receives transport lifecycle callbacks, in delivery order.
type TransportHandler interface {
	OnOpen()
	OnMessage(data []byte)
	OnError(err error)
	OnClose(code int, reason string)
}

// BuildTarget embeds username and channel as URL-encoded query parameters.
func BuildTarget(serverURL string, p Params) (string, error) {
	if !p.Complete() {
		return "", ErrIncompleteParams
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}

	q := u.Query()
	q.Set("username", p.Username)
	q.Set("channel", p.Channel)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
