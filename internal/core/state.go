package core

// ConnectionState is the status value exposed to consumers.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	// StateError is transient: the close that follows a transport error drives recovery.
	StateError
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Phase is the position of the manager in its session lifecycle.
type Phase int

const (
	// PhaseIdle means no session has been started yet.
	PhaseIdle Phase = iota
	// PhaseConnecting means a transport is being opened.
	PhaseConnecting
	// PhaseConnected means the transport is open.
	PhaseConnected
	// PhaseDisconnected means the transport closed and a retry is pending.
	PhaseDisconnected
	// PhaseTerminated means the session ended by user request or exhausted retries.
	PhaseTerminated
)

// String returns the string representation of a Phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseDisconnected:
		return "disconnected"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Params are the join parameters of a session.
type Params struct {
	Username string
	Channel  string
}

// Complete reports whether both values are set.
func (p Params) Complete() bool {
	return p.Username != "" && p.Channel != ""
}

// Snapshot is an immutable view of the manager for rendering.
type Snapshot struct {
	Status    ConnectionState
	Phase     Phase
	Identity  string
	Params    Params
	Attempts  int
	SessionID string
	Messages  []Message
}

// Own reports whether msg was authored by the local user of this snapshot.
func (s Snapshot) Own(msg Message) bool {
	return msg.IsOwn(s.Identity)
}
