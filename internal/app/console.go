package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

// Session is the connection manager surface the console drives.
type Session interface {
	Snapshot() core.Snapshot
	Updates() <-chan core.Snapshot
	Start() error
	Send(body string) bool
	Disconnect()
}

// Console is an interactive line-based consumer of a chat session.
type Console struct {
	session Session
	in      io.Reader
	out     io.Writer
	log     *zerolog.Logger
	outMu   sync.Mutex

	// render state, owned by the render goroutine
	printed   int
	sessionID string
	status    core.ConnectionState
	phase     core.Phase
}

// NewConsole creates a console reading commands from in and printing to out.
// A nil logger disables logging.
func NewConsole(session Session, in io.Reader, out io.Writer, logger *zerolog.Logger) *Console {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Console{
		session: session,
		in:      in,
		out:     out,
		log:     logger,
		status:  core.StateDisconnected,
		phase:   core.PhaseIdle,
	}
}

// Run renders session updates and executes input lines until ctx is done, input ends,
// or the user types /quit.
//
// Reads from in cannot be interrupted: when Run returns for another reason, the reader
// goroutine stays blocked until in yields a line or EOF. For stdin that is the end of
// the process.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		c.render(ctx)
	}()

	lines := make(chan string)
	readErr := make(chan error, 1)
	// Not joined on return; see Run.
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	defer func() {
		cancel()
		<-rendered
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if quit := c.execute(line); quit {
				return nil
			}
		}
	}
}

func (c *Console) execute(line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "/quit":
		c.session.Disconnect()
		return true
	case "/connect":
		if err := c.session.Start(); err != nil {
			c.printf("cannot connect: %v\n", err)
		}
	case "/status":
		s := c.session.Snapshot()
		c.printf("status=%s phase=%s user=%s channel=%s identity=%s attempts=%d messages=%d\n",
			s.Status, s.Phase, s.Params.Username, s.Params.Channel, s.Identity, s.Attempts, len(s.Messages))
	default:
		if !c.session.Send(line) {
			c.printf("! message not sent: not connected\n")
		}
	}
	return false
}

func (c *Console) render(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-c.session.Updates():
			c.renderSnapshot(snap)
		}
	}
}

func (c *Console) renderSnapshot(s core.Snapshot) {
	if s.Status != c.status || s.Phase != c.phase {
		c.status, c.phase = s.Status, s.Phase
		line := fmt.Sprintf("* %s", s.Status)
		switch {
		case s.Phase == core.PhaseDisconnected && s.Attempts > 0:
			line += fmt.Sprintf(" (reconnect attempt %d)", s.Attempts)
		case s.Phase == core.PhaseTerminated:
			line += " (session ended, /connect to start again)"
		}
		c.printf("%s\n", line)
	}

	if s.SessionID != c.sessionID || len(s.Messages) < c.printed {
		c.sessionID = s.SessionID
		c.printed = 0
	}
	for _, msg := range s.Messages[c.printed:] {
		c.printf("%s\n", formatMessage(msg, s.Own(msg)))
	}
	c.printed = len(s.Messages)
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.log.Debug().Err(err).Msg("console write")
	}
}

func formatMessage(msg core.Message, own bool) string {
	switch msg.Kind {
	case core.KindSystem:
		return fmt.Sprintf("[%s] * %s", msg.Channel, msg.Body)
	case core.KindUserJoined:
		return fmt.Sprintf("[%s] * %s joined", msg.Channel, msg.Author)
	}
	author := msg.Author
	if own {
		author += " (you)"
	}
	return fmt.Sprintf("[%s] %s: %s", msg.Channel, author, msg.Body)
}
