package delegate

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/charmbracelet/ssh"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/rugwirobaker/flowsink/internal/flowsink"
)

// Terminal is a flowsink.Delegate that writes yielded bytes to an
// interactive SSH session. Terminal itself never calls SetWritable;
// writability is left to whoever owns the Sink.
type Terminal struct {
	id      string
	session ssh.Session

	mu          sync.Mutex
	writeExpiry time.Duration
}

// NewTerminal wraps sesh as a delegate. writeExpiry is stored on the
// Terminal but DidYield does not apply it: each write blocks for as
// long as sesh.Write blocks, whatever writeExpiry is.
func NewTerminal(sesh ssh.Session, writeExpiry time.Duration) (*Terminal, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("delegate: generate terminal session id: %w", err)
	}
	return &Terminal{id: id, session: sesh, writeExpiry: writeExpiry}, nil
}

func (t *Terminal) ID() string { return t.id }

func (t *Terminal) DidYield(elements []flowsink.Element) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := make([]byte, 0, len(elements))
	for _, e := range elements {
		b, ok := e.(byte)
		if !ok {
			slog.Error("delegate.Terminal: non-byte element", "session", t.id, "type", fmt.Sprintf("%T", e))
			continue
		}
		buf = append(buf, b)
	}

	if len(buf) == 0 {
		return
	}

	if _, err := t.session.Write(buf); err != nil {
		slog.Warn("delegate.Terminal: write to session failed", "session", t.id, "error", err)
	}
}

func (t *Terminal) DidTerminate(err error) {
	exitCode := 0
	if err != nil {
		exitCode = 1
		slog.Warn("delegate.Terminal: session terminated with error", "session", t.id, "error", err)
	}
	_ = t.session.Exit(exitCode)
}
