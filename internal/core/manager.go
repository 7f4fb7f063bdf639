package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/utils"
)

// closeAbnormal mirrors the WebSocket 1006 status used when no close frame was seen.
const closeAbnormal = 1006

// Config is the policy of a Manager.
type Config struct {
	ServerURL      string
	Params         Params
	ReconnectDelay time.Duration
	// MaxAttempts counts scheduled retries, so a session sees at most MaxAttempts+1 closes.
	MaxAttempts    int
	DedupCapacity  int
}

// DefaultConfig returns the stock reconnection policy.
func DefaultConfig() Config {
	return Config{
		ServerURL:      "ws://localhost:8080/ws",
		ReconnectDelay: 3 * time.Second,
		MaxAttempts:    5,
		DedupCapacity:  10000,
	}
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.log = logger
		}
	}
}

// WithClock replaces the clock that schedules retries.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithBackOff replaces the fixed reconnect delay with another policy.
// The attempt bound still comes from Config.MaxAttempts.
func WithBackOff(b backoff.BackOff) Option {
	return func(m *Manager) { m.backoff = b }
}

// ExponentialBackOff grows the delay from initial up to maxDelay between attempts.
func ExponentialBackOff(initial, maxDelay time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxDelay
	b.Reset()
	return b
}

// Manager owns one persistent connection to the chat server.
//
// All state transitions happen on the goroutine running Run: transport callbacks,
// retry timers and consumer calls are turned into events and commands consumed there
// one at a time. Consumers read state through Snapshot and Updates.
type Manager struct {
	cfg     Config
	dialer  Dialer
	clock   clock.Clock
	backoff backoff.BackOff
	log     *zerolog.Logger

	commands chan Command
	events   chan Event
	updates  chan Snapshot
	done     chan struct{}
	running  atomic.Bool

	// Owned by the Run goroutine.
	ctx      context.Context
	conn     Conn
	gen      uint64
	attempts int
	retry    *clock.Timer
	retrySeq uint64
	seen     *lru.Cache[DedupKey, struct{}]

	mu   sync.RWMutex
	view Snapshot
}

// New constructs a Manager. Call Run to start processing.
func New(cfg Config, dialer Dialer, opts ...Option) *Manager {
	if cfg.DedupCapacity <= 0 {
		cfg.DedupCapacity = DefaultConfig().DedupCapacity
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}

	nop := zerolog.Nop()
	m := &Manager{
		cfg:      cfg,
		dialer:   dialer,
		clock:    clock.New(),
		backoff:  backoff.NewConstantBackOff(cfg.ReconnectDelay),
		log:      &nop,
		commands: make(chan Command, 16),
		events:   make(chan Event, 256),
		updates:  make(chan Snapshot, 1),
		done:     make(chan struct{}),
		view: Snapshot{
			Status: StateDisconnected,
			Phase:  PhaseIdle,
			Params: cfg.Params,
		},
	}
	for _, opt := range opts {
		opt(m)
	}

	// Capacity is validated above, so the error is impossible.
	m.seen, _ = lru.New[DedupKey, struct{}](cfg.DedupCapacity)
	return m
}

// Run processes commands and events until ctx is cancelled. On return the pending
// retry is cancelled and the transport is closed. Run may be called once.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("connection manager already running")
	}
	m.ctx = ctx
	defer m.teardown()

	if m.view.Params.Complete() {
		if err := m.connect(); err != nil {
			m.log.Warn().Err(err).Msg("initial connect")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-m.commands:
			m.handleCommand(cmd)
		case ev := <-m.events:
			m.handleEvent(ev)
		}
	}
}

// Start opens the connection with the current params. It is a no-op while a
// transport is open or being opened.
func (m *Manager) Start() error {
	return m.do(Command{Kind: CommandStart})
}

// SetParams replaces the join params. When no session is active and both values are
// set, a new session starts.
func (m *Manager) SetParams(p Params) error {
	return m.do(Command{Kind: CommandSetParams, Params: p})
}

// Send transmits body and reports whether it was handed to the transport.
// Messages are dropped, not queued, while disconnected.
func (m *Manager) Send(body string) bool {
	return m.TrySend(body) == nil
}

// TrySend is Send with the failure reason.
func (m *Manager) TrySend(body string) error {
	return m.do(Command{Kind: CommandSend, Body: body})
}

// Disconnect ends the session: retries are cancelled, the transport is closed and
// the message log, dedup set and identity are cleared.
func (m *Manager) Disconnect() {
	_ = m.do(Command{Kind: CommandDisconnect})
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Status returns the current connection status.
func (m *Manager) Status() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view.Status
}

// Identity returns the server-assigned identity, empty before assignment.
func (m *Manager) Identity() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view.Identity
}

// Messages returns the message log in arrival order.
func (m *Manager) Messages() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.view.Messages)
}

// Updates delivers the latest snapshot after every change. Only the newest pending
// snapshot is kept, so a slow reader skips intermediate states.
func (m *Manager) Updates() <-chan Snapshot {
	return m.updates
}

// Done is closed once Run has returned.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) do(cmd Command) error {
	cmd.Reply = make(chan error, 1)
	select {
	case m.commands <- cmd:
	case <-m.done:
		return ErrManagerStopped
	}
	select {
	case err := <-cmd.Reply:
		return err
	case <-m.done:
		return ErrManagerStopped
	}
}

func (m *Manager) post(ev Event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Manager) handleCommand(cmd Command) {
	var err error
	switch cmd.Kind {
	case CommandStart:
		err = m.connect()
	case CommandSetParams:
		err = m.setParams(cmd.Params)
	case CommandSend:
		err = m.send(cmd.Body)
	case CommandDisconnect:
		m.disconnect()
	default:
		err = fmt.Errorf("unknown command %d", cmd.Kind)
	}
	if cmd.Reply != nil {
		cmd.Reply <- err
	}
}

func (m *Manager) handleEvent(ev Event) {
	if ev.Kind == EventRetryFired {
		m.onRetryFired(ev.Gen)
		return
	}
	if ev.Gen != m.gen || m.conn == nil {
		m.log.Debug().Int("kind", int(ev.Kind)).Uint64("gen", ev.Gen).Msg("ignoring event from superseded transport")
		return
	}

	switch ev.Kind {
	case EventOpened:
		m.onOpened()
	case EventPayload:
		m.onPayload(ev.Data)
	case EventTransportError:
		m.log.Error().Err(ev.Err).Msg("transport error")
		m.update(func(v *Snapshot) { v.Status = StateError })
	case EventClosed:
		m.conn = nil
		m.onClosed(ev.Code, ev.Reason)
	}
}

func (m *Manager) connect() error {
	if m.conn != nil {
		m.log.Debug().Bool("open", m.conn.IsOpen()).Msg("already connected")
		return nil
	}

	params := m.view.Params
	target, err := BuildTarget(m.cfg.ServerURL, params)
	if err != nil {
		return err
	}

	m.cancelRetry()
	if m.view.Phase == PhaseIdle || m.view.Phase == PhaseTerminated {
		m.beginSession()
	}

	m.gen++
	m.update(func(v *Snapshot) {
		v.Status = StateConnecting
		v.Phase = PhaseConnecting
	})
	m.log.Info().
		Str("session_id", m.view.SessionID).
		Str("username", params.Username).
		Str("channel", params.Channel).
		Int("attempt", m.attempts).
		Msg("connecting")

	conn, err := m.dialer.Dial(m.ctx, target, handler{m: m, gen: m.gen})
	if err != nil {
		m.log.Error().Err(err).Msg("open transport")
		m.update(func(v *Snapshot) { v.Status = StateError })
		m.onClosed(closeAbnormal, err.Error())
		return nil
	}
	m.conn = conn
	return nil
}

// beginSession resets the per-session state before the first dial of a session.
func (m *Manager) beginSession() {
	m.attempts = 0
	m.backoff.Reset()
	m.seen.Purge()
	m.update(func(v *Snapshot) {
		v.SessionID = utils.NewID()
		v.Identity = ""
		v.Messages = nil
		v.Attempts = 0
	})
}

func (m *Manager) onOpened() {
	m.attempts = 0
	m.backoff.Reset()
	m.update(func(v *Snapshot) {
		v.Status = StateConnected
		v.Phase = PhaseConnected
		v.Attempts = 0
	})
	m.log.Info().Str("session_id", m.view.SessionID).Msg("connected")
}

func (m *Manager) onPayload(data []byte) {
	msg, err := decodeMessage(data)
	if err != nil {
		m.log.Warn().Err(err).Int("bytes", len(data)).Msg("discarding malformed payload")
		return
	}

	key := msg.Key()
	if m.seen.Contains(key) {
		m.log.Debug().Str("author", msg.Author).Str("timestamp", msg.Timestamp).Msg("duplicate message ignored")
		return
	}
	m.seen.Add(key, struct{}{})

	m.update(func(v *Snapshot) {
		if msg.Kind == KindUserJoined && msg.AuthorID != "" && v.Identity == "" {
			v.Identity = msg.AuthorID
			m.log.Info().Str("identity", msg.AuthorID).Msg("session identity assigned")
		}
		v.Messages = append(v.Messages, msg)
	})
}

func (m *Manager) onClosed(code int, reason string) {
	m.update(func(v *Snapshot) {
		v.Status = StateDisconnected
		v.Phase = PhaseDisconnected
		v.Identity = ""
	})
	m.log.Info().Int("code", code).Str("reason", reason).Msg("connection closed")

	if m.attempts >= m.cfg.MaxAttempts {
		m.terminate("max reconnect attempts reached")
		return
	}

	delay := m.backoff.NextBackOff()
	if delay == backoff.Stop {
		m.terminate("backoff policy stopped retries")
		return
	}

	m.attempts++
	m.scheduleRetry(delay)
	m.update(func(v *Snapshot) { v.Attempts = m.attempts })
	m.log.Info().
		Int("attempt", m.attempts).
		Int("max", m.cfg.MaxAttempts).
		Dur("delay", delay).
		Msg("reconnect scheduled")
}

func (m *Manager) terminate(why string) {
	m.update(func(v *Snapshot) { v.Phase = PhaseTerminated })
	m.log.Warn().Int("attempts", m.attempts).Msg(why)
}

func (m *Manager) scheduleRetry(delay time.Duration) {
	m.cancelRetry()
	seq := m.retrySeq
	m.retry = m.clock.AfterFunc(delay, func() {
		m.post(Event{Kind: EventRetryFired, Gen: seq})
	})
}

// cancelRetry stops the pending timer and invalidates a firing already queued.
func (m *Manager) cancelRetry() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	m.retrySeq++
}

func (m *Manager) onRetryFired(seq uint64) {
	if m.retry == nil || seq != m.retrySeq {
		return
	}
	m.retry = nil

	if err := m.connect(); err != nil {
		m.log.Warn().Err(err).Msg("reconnect skipped")
		m.terminate("reconnect impossible with current params")
	}
}

func (m *Manager) setParams(p Params) error {
	m.update(func(v *Snapshot) { v.Params = p })

	switch m.view.Phase {
	case PhaseIdle, PhaseTerminated:
		if p.Complete() {
			return m.connect()
		}
	}
	return nil
}

func (m *Manager) send(body string) error {
	if m.conn == nil || !m.conn.IsOpen() {
		m.log.Debug().Msg("cannot send message: not connected")
		return ErrNotConnected
	}

	text := strings.TrimSpace(body)
	if text == "" {
		return ErrEmptyBody
	}

	data, err := proto.EncodeOutbound(text)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := m.conn.Send(data); err != nil {
		m.log.Warn().Err(err).Msg("send message")
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (m *Manager) disconnect() {
	m.log.Info().Str("session_id", m.view.SessionID).Msg("user initiated disconnect")

	m.cancelRetry()
	m.attempts = m.cfg.MaxAttempts
	if m.conn != nil {
		conn := m.conn
		m.conn = nil
		m.gen++
		if err := conn.Close(); err != nil {
			m.log.Debug().Err(err).Msg("close transport")
		}
	}
	m.seen.Purge()

	m.update(func(v *Snapshot) {
		v.Status = StateDisconnected
		v.Phase = PhaseTerminated
		v.Identity = ""
		v.Messages = nil
		v.Attempts = m.attempts
	})
}

func (m *Manager) teardown() {
	m.cancelRetry()
	if m.conn != nil {
		conn := m.conn
		m.conn = nil
		m.gen++
		_ = conn.Close()
	}
	close(m.done)
}

// update mutates the view and publishes the result. Only the Run goroutine calls it.
func (m *Manager) update(fn func(v *Snapshot)) {
	m.mu.Lock()
	fn(&m.view)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	select {
	case m.updates <- snap:
	default:
		select {
		case <-m.updates:
		default:
		}
		select {
		case m.updates <- snap:
		default:
		}
	}
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := m.view
	snap.Messages = slices.Clone(m.view.Messages)
	return snap
}
