package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/log"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeSession struct {
	updates chan core.Snapshot

	mu           sync.Mutex
	snap         core.Snapshot
	connected    bool
	sent         []string
	starts       int
	disconnected bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{updates: make(chan core.Snapshot, 16)}
}

func (s *fakeSession) Snapshot() core.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *fakeSession) Updates() <-chan core.Snapshot { return s.updates }

func (s *fakeSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	return nil
}

func (s *fakeSession) Send(body string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return false
	}
	s.sent = append(s.sent, body)
	return true
}

func (s *fakeSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = true
}

func (s *fakeSession) publish(snap core.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.connected = snap.Status == core.StateConnected
	s.mu.Unlock()
	s.updates <- snap
}

func runConsole(t *testing.T, s Session, in io.Reader) (*syncBuffer, <-chan error) {
	t.Helper()

	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- NewConsole(s, in, out, log.Nop()).Run(ctx) }()
	return out, done
}

func waitOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	require.Eventually(t, func() bool { return strings.Contains(out.String(), want) },
		2*time.Second, 5*time.Millisecond, "output %q missing %q", out.String(), want)
}

func TestConsoleRendersMessagesOnce(t *testing.T) {
	s := newFakeSession()
	inR, inW := io.Pipe()
	defer inW.Close()
	out, _ := runConsole(t, s, inR)

	joined := core.Message{Kind: core.KindUserJoined, Author: "ada", AuthorID: "u1", Channel: "general"}
	own := core.Message{Kind: core.KindMessage, Author: "ada", AuthorID: "u1", Body: "hi", Channel: "general"}
	other := core.Message{Kind: core.KindMessage, Author: "bob", AuthorID: "u2", Body: "yo", Channel: "general"}

	s.publish(core.Snapshot{Status: core.StateConnected, Phase: core.PhaseConnected, Identity: "u1", SessionID: "s1",
		Messages: []core.Message{joined}})
	s.publish(core.Snapshot{Status: core.StateConnected, Phase: core.PhaseConnected, Identity: "u1", SessionID: "s1",
		Messages: []core.Message{joined, own, other}})

	waitOutput(t, out, "[general] bob: yo")
	text := out.String()
	require.Equal(t, 1, strings.Count(text, "* connected"))
	require.Equal(t, 1, strings.Count(text, "[general] * ada joined"))
	require.Contains(t, text, "[general] ada (you): hi")
}

func TestConsoleReportsRetryAndTermination(t *testing.T) {
	s := newFakeSession()
	inR, inW := io.Pipe()
	defer inW.Close()
	out, _ := runConsole(t, s, inR)

	s.publish(core.Snapshot{Status: core.StateDisconnected, Phase: core.PhaseDisconnected, Attempts: 2})
	waitOutput(t, out, "* disconnected (reconnect attempt 2)")

	s.publish(core.Snapshot{Status: core.StateDisconnected, Phase: core.PhaseTerminated, Attempts: 5})
	waitOutput(t, out, "session ended")
}

func TestConsoleCommands(t *testing.T) {
	s := newFakeSession()
	inR, inW := io.Pipe()
	defer inW.Close()
	out, done := runConsole(t, s, inR)

	write := func(line string) {
		_, err := io.WriteString(inW, line+"\n")
		require.NoError(t, err)
	}

	write("offline line")
	waitOutput(t, out, "message not sent")

	s.publish(core.Snapshot{Status: core.StateConnected, Phase: core.PhaseConnected,
		Params: core.Params{Username: "ada", Channel: "general"}})
	waitOutput(t, out, "* connected")

	write("hello")
	write("/connect")
	write("/status")
	waitOutput(t, out, "status=connected phase=connected user=ada channel=general")

	write("/quit")
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not quit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Equal(t, []string{"hello"}, s.sent)
	require.Equal(t, 1, s.starts)
	require.True(t, s.disconnected)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestConsoleWithoutLoggerToleratesWriteErrors(t *testing.T) {
	s := newFakeSession()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- NewConsole(s, strings.NewReader("offline line\n/status\n"), failingWriter{}, nil).Run(ctx)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop")
	}
}

func TestConsoleStopsAtEndOfInput(t *testing.T) {
	_, done := runConsole(t, newFakeSession(), strings.NewReader(""))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop")
	}
}
