package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

type fakeConn struct {
	target string
	h      TransportHandler

	mu     sync.Mutex
	open   bool
	closed bool
	sent   [][]byte
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return errors.New("fake: not open")
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.closed = true
	return nil
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) lastSent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

// Accept simulates a completed handshake.
func (c *fakeConn) Accept() {
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
	c.h.OnOpen()
}

func (c *fakeConn) Deliver(raw string) {
	c.h.OnMessage([]byte(raw))
}

func (c *fakeConn) Fail(err error) {
	c.h.OnError(err)
}

// Drop simulates the server going away.
func (c *fakeConn) Drop(code int) {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	c.h.OnClose(code, "")
}

type fakeDialer struct {
	dialed chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeConn, 32)}
}

func (d *fakeDialer) Dial(_ context.Context, target string, h TransportHandler) (Conn, error) {
	c := &fakeConn{target: target, h: h}
	d.dialed <- c
	return c, nil
}

func startManager(t *testing.T, cfg Config, opts ...Option) (*Manager, *fakeDialer, *clock.Mock) {
	t.Helper()

	dialer := newFakeDialer()
	mock := clock.NewMock()
	m := New(cfg, dialer, append([]Option{WithClock(mock)}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})

	return m, dialer, mock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ServerURL = "ws://chat.test/ws"
	return cfg
}

func mustDial(t *testing.T, d *fakeDialer) *fakeConn {
	t.Helper()

	select {
	case c := <-d.dialed:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a dial")
		return nil
	}
}

func expectNoDial(t *testing.T, d *fakeDialer) {
	t.Helper()

	select {
	case c := <-d.dialed:
		t.Fatalf("unexpected dial to %s", c.target)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitFor(t *testing.T, m *Manager, cond func(Snapshot) bool, msg string) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(m.Snapshot()) }, 2*time.Second, 5*time.Millisecond, msg)
}

// connectAs starts a session and completes the handshake.
func connectAs(t *testing.T, m *Manager, d *fakeDialer, p Params) *fakeConn {
	t.Helper()

	require.NoError(t, m.SetParams(p))
	c := mustDial(t, d)
	c.Accept()
	waitFor(t, m, func(s Snapshot) bool { return s.Status == StateConnected }, "connected")
	return c
}

func wire(typ, user, userID, content, ts string) string {
	data, err := json.Marshal(proto.Inbound{
		Type:      typ,
		Username:  user,
		UserID:    userID,
		Content:   content,
		Timestamp: ts,
		Channel:   "general",
	})
	if err != nil {
		panic(err)
	}
	return string(data)
}
