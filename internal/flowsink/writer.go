package flowsink

import "context"

// Writer is the producer-facing handle returned by New. Any number of
// goroutines may call Yield concurrently; Finish/FinishWithError/Close
// are idempotent and may be called from any goroutine.
type Writer struct {
	s *storage
}

// Yield delivers elements to the sink, or enqueues and blocks the
// caller until the sink becomes writable, the writer or sink finishes,
// or ctx is done — whichever happens first. A call with no elements
// returns nil immediately without touching the state machine.
//
// Elements passed in a single Yield call always reach the delegate as a
// contiguous group, in the order given. No ordering is guaranteed
// between elements from concurrent Yield calls.
func (w *Writer) Yield(ctx context.Context, elements ...Element) error {
	return w.s.yield(ctx.Done(), elements)
}

// Finish is equivalent to FinishWithError(nil).
func (w *Writer) Finish() {
	w.s.writerFinish(nil)
}

// FinishWithError marks the writer finished. Idempotent: only the
// first call (whether Finish, FinishWithError, or Close) has any
// effect. Already-parked Yield calls resume normally, with their
// buffered elements retained for later delivery; subsequent Yield
// calls fail with ErrAlreadyFinished.
func (w *Writer) FinishWithError(err error) {
	w.s.writerFinish(err)
}

// Close asserts that no producer is currently parked and nothing
// remains buffered, then finishes the writer. Call FinishWithError
// first if producers might still be in flight. Safe to call more than
// once.
func (w *Writer) Close() error {
	w.s.writerDeinit()
	return nil
}
