package flowsink

// Sink is the consumer-facing handle returned by New. SetWritable is
// meant to be called by a single owning goroutine at a time (the
// "synchronous consumer" of the design); Finish/FinishWithError/Close
// are idempotent and safe from any goroutine.
type Sink struct {
	s *storage
}

// SetWritable toggles writability. Flipping false -> true drains any
// buffered elements to the delegate and resumes every parked producer
// normally. Flipping true -> false is recorded and returns immediately.
// Setting the same value twice is a no-op.
func (sk *Sink) SetWritable(writable bool) {
	sk.s.setWritable(writable)
}

// Finish is equivalent to FinishWithError(nil).
func (sk *Sink) Finish() {
	sk.s.sinkFinish(nil)
}

// FinishWithError marks the sink finished. Idempotent. Every parked
// producer resumes with err (or ErrAlreadyFinished if err is nil) and
// its queued elements are discarded — they never reach the delegate.
// DidTerminate(err) is called exactly once, deferred until any
// in-flight callout returns if necessary.
func (sk *Sink) FinishWithError(err error) {
	sk.s.sinkFinish(err)
}

// Close is the idiomatic-Go substitute for "last reference to the sink
// handle dropped": it finishes the sink cleanly. Safe to call more than
// once, and safe to call alongside Finish/FinishWithError.
func (sk *Sink) Close() error {
	sk.s.sinkFinish(nil)
	return nil
}
