package core

// CommandKind describes what the consumer wants the manager to do.
type CommandKind int

const (
	// CommandStart opens a transport with the current params unless one is already open.
	CommandStart CommandKind = iota
	// CommandSetParams replaces the join params and starts a session when none is active.
	CommandSetParams
	// CommandSend transmits a chat body over the open transport.
	CommandSend
	// CommandDisconnect ends the session and silences retries.
	CommandDisconnect
)

// Command represents an action requested by the consumer.
// Reply, when set, receives the result once the loop has processed the command.
type Command struct {
	Kind   CommandKind
	Params Params
	Body   string
	Reply  chan error
}
