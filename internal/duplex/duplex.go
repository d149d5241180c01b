// Package duplex packages a flowsink writer/sink pair together with a
// read half and a close ratchet into a single bidirectional session. It
// sits outside internal/flowsink's core: the core knows nothing about
// half-closure, readers, or transports.
package duplex

import (
	"context"
	"io"
	"log/slog"

	"github.com/rugwirobaker/flowsink/internal/closeratchet"
	"github.com/rugwirobaker/flowsink/internal/flowsink"
)

// Session pairs the write half of a flowsink pipe (a Writer/Sink)
// with a read half (an io.Reader an owner drains, e.g. a net.Conn's
// inbound side) and a Ratchet coordinating when both halves are done.
type Session struct {
	id string

	writer *flowsink.Writer
	sink   *flowsink.Sink
	reader io.Reader

	ratchet *closeratchet.Ratchet

	// closeOutput tears down the write half's downstream transport
	// without touching the read half. nil is valid: some transports
	// only support full closure.
	closeOutput func() error
	// closeAll tears down the whole session, both halves.
	closeAll func() error
}

// New builds a Session. halfCloseEnabled makes a write half that closes
// first run closeOutput right away; full teardown (closeAll) always
// waits until both halves have closed, matching closeratchet.New's
// semantics.
func New(id string, writer *flowsink.Writer, sink *flowsink.Sink, reader io.Reader, halfCloseEnabled bool, closeOutput, closeAll func() error) *Session {
	return &Session{
		id:          id,
		writer:      writer,
		sink:        sink,
		reader:      reader,
		ratchet:     closeratchet.New(halfCloseEnabled),
		closeOutput: closeOutput,
		closeAll:    closeAll,
	}
}

func (s *Session) Writer() *flowsink.Writer { return s.writer }
func (s *Session) Sink() *flowsink.Sink     { return s.sink }

// Pump reads from the read half and turns each chunk into a Yield call
// until the reader returns an error (including io.EOF), at which point
// it closes the read half of the ratchet. It is meant to run on its own
// goroutine.
func (s *Session) Pump(ctx context.Context) {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.reader.Read(buf)
		if n > 0 {
			elements := make([]flowsink.Element, n)
			for i := 0; i < n; i++ {
				elements[i] = buf[i]
			}
			if yieldErr := s.writer.Yield(ctx, elements...); yieldErr != nil {
				slog.Debug("duplex: yield after read failed", "session", s.id, "error", yieldErr)
				break
			}
		}
		if err != nil {
			if err != io.EOF {
				slog.Debug("duplex: read half error", "session", s.id, "error", err)
			}
			break
		}
	}
	s.CloseRead()
}

// CloseRead reports that the read half is done (peer hung up, or the
// session is being torn down from that side) and runs whatever action
// the ratchet decides.
func (s *Session) CloseRead() {
	s.apply(s.ratchet.CloseRead())
}

// CloseWrite reports that the write half is done — typically called
// after Writer.Finish/FinishWithError — and runs whatever action the
// ratchet decides.
func (s *Session) CloseWrite() {
	s.apply(s.ratchet.CloseWrite())
}

func (s *Session) apply(action closeratchet.Action) {
	switch action {
	case closeratchet.ActionNothing:
	case closeratchet.ActionCloseOutput:
		if s.closeOutput != nil {
			if err := s.closeOutput(); err != nil {
				slog.Debug("duplex: close output half failed", "session", s.id, "error", err)
			}
		}
	case closeratchet.ActionClose:
		_ = s.writer.Close()
		_ = s.sink.Close()
		if s.closeAll != nil {
			if err := s.closeAll(); err != nil {
				slog.Debug("duplex: close session failed", "session", s.id, "error", err)
			}
		}
	}
}
