package app

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/log"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// startChatServer runs a minimal chat server that greets the user and echoes messages back.
func startChatServer(t *testing.T) string {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		user := r.URL.Query().Get("username")
		channel := r.URL.Query().Get("channel")

		_ = wsjson.Write(ctx, conn, proto.Inbound{
			Type:      proto.TypeUserConnected,
			Username:  user,
			UserID:    "u-" + user,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Channel:   channel,
		})

		for {
			var out proto.Outbound
			if err := wsjson.Read(ctx, conn, &out); err != nil {
				return
			}
			_ = wsjson.Write(ctx, conn, proto.Inbound{
				Type:      proto.TypeMessage,
				Username:  user,
				UserID:    "u-" + user,
				Content:   out.Content,
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
				Channel:   channel,
			})
		}
	}))
	t.Cleanup(ts.Close)

	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func testAppConfig(serverURL string) config.Config {
	cfg := config.Default()
	cfg.ServerURL = serverURL
	cfg.Username = "ada"
	cfg.Channel = "general"
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ServerURL = "http://localhost"
	_, err := New(cfg, log.Nop(), nil, io.Discard)
	require.Error(t, err)
}

func TestNilLoggerIsSilent(t *testing.T) {
	cfg := testAppConfig("ws://127.0.0.1:1/ws")
	cfg.StatusAddr = "127.0.0.1:0"

	a, err := New(cfg, nil, nil, io.Discard)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx))
}

func TestAppConsoleRoundTrip(t *testing.T) {
	cfg := testAppConfig(startChatServer(t))

	inR, inW := io.Pipe()
	defer inW.Close()
	out := &syncBuffer{}

	a, err := New(cfg, log.Nop(), inR, out)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	waitOutput(t, out, "[general] * ada joined")
	require.Eventually(t, func() bool { return a.Manager().Identity() == "u-ada" }, 2*time.Second, 5*time.Millisecond)

	_, err = io.WriteString(inW, "hello there\n")
	require.NoError(t, err)
	waitOutput(t, out, "[general] ada (you): hello there")

	_, err = io.WriteString(inW, "/quit\n")
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	require.Equal(t, core.PhaseTerminated, a.Manager().Snapshot().Phase)
}

func TestAppStatusAPI(t *testing.T) {
	cfg := testAppConfig(startChatServer(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg.StatusAddr = ln.Addr().String()
	require.NoError(t, ln.Close())

	a, err := New(cfg, log.Nop(), nil, io.Discard)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	base := "http://" + cfg.StatusAddr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/session")
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		var s struct {
			Status   string `json:"status"`
			Identity string `json:"identity"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
			return false
		}
		return s.Status == "connected" && s.Identity == "u-ada"
	}, 3*time.Second, 20*time.Millisecond)

	resp, err := http.Post(base+"/messages", "application/json", strings.NewReader(`{"content":"via api"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		for _, msg := range a.Manager().Messages() {
			if msg.Body == "via api" && msg.IsOwn(a.Manager().Identity()) {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
