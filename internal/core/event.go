package core

// EventKind is a signal the manager loop consumes from transports and timers.
type EventKind int

const (
	// EventOpened reports a completed handshake.
	EventOpened EventKind = iota
	// EventPayload carries one inbound transport message.
	EventPayload
	// EventTransportError reports a transport failure; a close follows.
	EventTransportError
	// EventClosed reports the end of a transport.
	EventClosed
	// EventRetryFired reports that the reconnect delay elapsed.
	EventRetryFired
)

// Event is delivered to the manager loop.
// Gen fences transport events: only the current transport's events apply.
// For EventRetryFired it carries the timer sequence instead.
type Event struct {
	Kind   EventKind
	Gen    uint64
	Data   []byte
	Err    error
	Code   int
	Reason string
}

// handler adapts transport callbacks for one dial into loop events.
type handler struct {
	m   *Manager
	gen uint64
}

func (h handler) OnOpen() {
	h.m.post(Event{Kind: EventOpened, Gen: h.gen})
}

func (h handler) OnMessage(data []byte) {
	h.m.post(Event{Kind: EventPayload, Gen: h.gen, Data: data})
}

func (h handler) OnError(err error) {
	h.m.post(Event{Kind: EventTransportError, Gen: h.gen, Err: err})
}

func (h handler) OnClose(code int, reason string) {
	h.m.post(Event{Kind: EventClosed, Gen: h.gen, Code: code, Reason: reason})
}
