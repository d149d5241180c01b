// Package closeratchet coordinates a two-half close: a read side and a
// write side, each closing independently and at most once. Whichever
// half closes last returns the action that triggers full teardown.
package closeratchet

import (
	"fmt"
	"sync"
)

// Action describes what the caller of CloseRead/CloseWrite should do
// next. It carries no payload of its own; callers switch on it.
type Action int

const (
	// ActionNothing means the ratchet is waiting on the peer half to
	// close too; do nothing yet.
	ActionNothing Action = iota
	// ActionClose means both halves are now closed; perform full
	// teardown.
	ActionClose
	// ActionCloseOutput means only the write side's downstream
	// transport should be half-closed; the read side stays open.
	ActionCloseOutput
)

func (a Action) String() string {
	switch a {
	case ActionNothing:
		return "nothing"
	case ActionClose:
		return "close"
	case ActionCloseOutput:
		return "close-output"
	default:
		return fmt.Sprintf("closeratchet.Action(%d)", int(a))
	}
}

type half int

const (
	halfNone half = iota
	halfRead
	halfWrite
	halfBoth
)

// Ratchet is a pure, synchronous, allocation-free half-close
// coordinator. It performs no I/O; callers execute the returned Action
// themselves.
type Ratchet struct {
	mu               sync.Mutex
	closed           half
	halfCloseEnabled bool
}

// New creates a Ratchet. When halfCloseEnabled is true, closing the
// write side alone (before the read side closes) yields
// ActionCloseOutput instead of waiting for the peer.
func New(halfCloseEnabled bool) *Ratchet {
	return &Ratchet{halfCloseEnabled: halfCloseEnabled}
}

// CloseRead closes the read half. Closing an already-closed read half
// is a programming error and panics.
func (r *Ratchet) CloseRead() Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.closed {
	case halfNone:
		r.closed = halfRead
		return ActionNothing
	case halfWrite:
		r.closed = halfBoth
		return ActionClose
	case halfRead, halfBoth:
		panic("closeratchet: CloseRead called on an already-closed read half")
	default:
		panic("closeratchet: unreachable half state")
	}
}

// CloseWrite closes the write half. Closing an already-closed write
// half is a programming error and panics.
func (r *Ratchet) CloseWrite() Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.closed {
	case halfNone:
		r.closed = halfWrite
		if r.halfCloseEnabled {
			return ActionCloseOutput
		}
		return ActionNothing
	case halfRead:
		r.closed = halfBoth
		return ActionClose
	case halfWrite, halfBoth:
		panic("closeratchet: CloseWrite called on an already-closed write half")
	default:
		panic("closeratchet: unreachable half state")
	}
}

// BothClosed reports whether both halves have been closed.
func (r *Ratchet) BothClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed == halfBoth
}
