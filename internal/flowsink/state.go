package flowsink

// Element is the sink-supplied value type. It is opaque to the state
// machine: flowsink never inspects it, only moves it in FIFO order
// between a producer's Yield call and the delegate's DidYield callout.
type Element any

// state is a tagged union with exactly the cases from the design
// document. Every transition consumes the current state value and
// produces a brand-new one; nothing mutates a state value that
// storage.state currently points to.
type state interface {
	isState()
}

// initialState is the state before any yield or finish has happened.
type initialState struct {
	writable bool
}

func (initialState) isState() {}

// streamingState is normal operation: the sink may be writable or not,
// a delegate callout may be in flight, and producers may be parked.
type streamingState struct {
	writable     bool
	inOutcall    bool
	cancelledIDs []uint64
	suspended    []suspendedYield
	buffer       []Element
}

func (streamingState) isState() {}

// writerFinishedState means the producer side finished but buffered
// elements remain to be delivered once writable again.
type writerFinishedState struct {
	buffer []Element
	err    error
}

func (writerFinishedState) isState() {}

// finishedState is terminal: DidTerminate has been (or is about to be)
// called exactly once.
type finishedState struct {
	sinkErr error
}

func (finishedState) isState() {}

// modifyingState is a transient sentinel storage.withLock installs
// while computing a transition, so that any reentrant observation of
// storage.state mid-transition panics instead of aliasing stale data.
type modifyingState struct{}

func (modifyingState) isState() {}

// suspendedYield records a parked producer: the yieldID used to
// correlate cancellation, and a one-shot resume function that wakes it.
type suspendedYield struct {
	yieldID uint64
	resume  func(error)
}

// resumeCall is a single pending resumption to run outside the lock.
type resumeCall struct {
	resume func(error)
	err    error
}

// effects is the "action" value a transition returns: everything that
// must happen outside the lock as a result of one event. Fields are
// independent and any subset may be populated.
type effects struct {
	resumes      []resumeCall
	yield        []Element
	terminate    bool
	terminateErr error
}

func (e effects) hasYield() bool { return e.yield != nil }

func withResumeAll(suspended []suspendedYield, err error) []resumeCall {
	calls := make([]resumeCall, 0, len(suspended))
	for _, sy := range suspended {
		calls = append(calls, resumeCall{resume: sy.resume, err: err})
	}
	return calls
}

// removeCancelledID returns ids with target removed, preserving order.
func removeCancelledID(ids []uint64, target uint64) []uint64 {
	out := ids[:0:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func isCancelled(ids []uint64, target uint64) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

// yieldOutcomeKind is the classifier result of transitionYield: what
// the calling goroutine must do next, after the lock is released.
type yieldOutcomeKind int

const (
	yieldDelivered yieldOutcomeKind = iota
	yieldBuffered
	yieldSuspend
	yieldThrow
)

type yieldOutcome struct {
	kind yieldOutcomeKind
	err  error
}

// transitionSetWritable applies a writability change to st, returning
// the new state and any effects that follow from it.
func transitionSetWritable(st state, w bool) (state, effects) {
	switch s := st.(type) {
	case initialState:
		return initialState{writable: w}, effects{}

	case streamingState:
		if s.writable == w {
			return s, effects{}
		}
		if !w {
			s.writable = false
			return s, effects{}
		}
		// false -> true
		if s.inOutcall {
			s.writable = true
			return s, effects{}
		}
		if len(s.buffer) == 0 {
			eff := effects{resumes: withResumeAll(s.suspended, nil)}
			s.writable = true
			s.suspended = nil
			return s, eff
		}
		eff := effects{
			resumes: withResumeAll(s.suspended, nil),
			yield:   s.buffer,
		}
		s.writable = true
		s.inOutcall = true
		s.suspended = nil
		s.buffer = nil
		return s, eff

	case writerFinishedState:
		if !w {
			return s, effects{}
		}
		if len(s.buffer) == 0 {
			return finishedState{sinkErr: s.err}, effects{terminate: true, terminateErr: s.err}
		}
		eff := effects{yield: s.buffer}
		return writerFinishedState{buffer: nil, err: s.err}, eff

	case finishedState:
		return s, effects{}

	default:
		panic("flowsink: setWritable observed an invalid state")
	}
}

// transitionYield implements the yield(seq, id) row of the event table.
// It never touches cancelledIDs/suspended/buffer of a state the caller
// doesn't also receive back: the returned state is the sole owner of
// its slices from this point on.
func transitionYield(st state, id uint64, elems []Element) (state, effects, yieldOutcome) {
	switch s := st.(type) {
	case initialState:
		next := streamingState{writable: s.writable, inOutcall: s.writable}
		if s.writable {
			return next, effects{yield: elems}, yieldOutcome{kind: yieldDelivered}
		}
		return next, effects{}, yieldOutcome{kind: yieldSuspend}

	case streamingState:
		if isCancelled(s.cancelledIDs, id) {
			s.cancelledIDs = removeCancelledID(s.cancelledIDs, id)
			switch {
			case s.writable && !s.inOutcall:
				s.inOutcall = true
				return s, effects{yield: elems}, yieldOutcome{kind: yieldDelivered}
			case s.writable && s.inOutcall:
				s.buffer = append(s.buffer, elems...)
				return s, effects{}, yieldOutcome{kind: yieldBuffered}
			default: // !writable
				s.buffer = append(s.buffer, elems...)
				return s, effects{}, yieldOutcome{kind: yieldBuffered}
			}
		}
		switch {
		case s.writable && !s.inOutcall:
			s.inOutcall = true
			return s, effects{yield: elems}, yieldOutcome{kind: yieldDelivered}
		case s.writable && s.inOutcall:
			s.buffer = append(s.buffer, elems...)
			return s, effects{}, yieldOutcome{kind: yieldBuffered}
		default: // !writable
			return s, effects{}, yieldOutcome{kind: yieldSuspend}
		}

	case writerFinishedState:
		return s, effects{}, yieldOutcome{kind: yieldThrow, err: ErrAlreadyFinished}

	case finishedState:
		err := s.sinkErr
		if err == nil {
			err = ErrAlreadyFinished
		}
		return s, effects{}, yieldOutcome{kind: yieldThrow, err: err}

	default:
		panic("flowsink: yield observed an invalid state")
	}
}

// transitionRegisterSuspended implements register_suspended(id, resume,
// seq), appending a parked producer's resume handle and its elements to
// the buffer. Only reachable from streamingState, immediately after
// transitionYield classified the same call as yieldSuspend, under the
// same lock acquisition.
func transitionRegisterSuspended(st state, id uint64, resume func(error), elems []Element) state {
	s, ok := st.(streamingState)
	if !ok {
		panic("flowsink: registerSuspended called outside streamingState")
	}
	s.suspended = append(s.suspended, suspendedYield{yieldID: id, resume: resume})
	s.buffer = append(s.buffer, elems...)
	return s
}

// transitionCancel implements the cancel(id) row.
func transitionCancel(st state, id uint64) (state, effects) {
	switch s := st.(type) {
	case initialState:
		return streamingState{writable: s.writable, cancelledIDs: []uint64{id}}, effects{}

	case streamingState:
		for i, sy := range s.suspended {
			if sy.yieldID == id {
				removed := sy
				s.suspended = append(append([]suspendedYield{}, s.suspended[:i]...), s.suspended[i+1:]...)
				return s, effects{resumes: []resumeCall{{resume: removed.resume, err: nil}}}
			}
		}
		s.cancelledIDs = append(s.cancelledIDs, id)
		return s, effects{}

	case writerFinishedState, finishedState:
		return s, effects{}

	default:
		panic("flowsink: cancel observed an invalid state")
	}
}

// transitionWriterFinish implements writer_finish(err).
func transitionWriterFinish(st state, err error) (state, effects) {
	switch s := st.(type) {
	case initialState:
		return finishedState{}, effects{terminate: true}

	case streamingState:
		if len(s.buffer) == 0 {
			if s.inOutcall {
				return writerFinishedState{err: err}, effects{resumes: withResumeAll(s.suspended, nil)}
			}
			return finishedState{}, effects{
				resumes:      withResumeAll(s.suspended, nil),
				terminate:    true,
				terminateErr: err,
			}
		}
		return writerFinishedState{buffer: s.buffer, err: err}, effects{resumes: withResumeAll(s.suspended, nil)}

	case writerFinishedState, finishedState:
		return s, effects{}

	default:
		panic("flowsink: writerFinish observed an invalid state")
	}
}

// transitionSinkFinish implements sink_finish(err).
func transitionSinkFinish(st state, err error) (state, effects) {
	resumeErr := err
	if resumeErr == nil {
		resumeErr = ErrAlreadyFinished
	}

	switch s := st.(type) {
	case initialState:
		return finishedState{sinkErr: err}, effects{terminate: true, terminateErr: err}

	case streamingState:
		if s.inOutcall {
			return writerFinishedState{err: err}, effects{resumes: withResumeAll(s.suspended, resumeErr)}
		}
		return finishedState{sinkErr: err}, effects{
			resumes:      withResumeAll(s.suspended, resumeErr),
			terminate:    true,
			terminateErr: err,
		}

	case writerFinishedState:
		return finishedState{sinkErr: err}, effects{terminate: true, terminateErr: err}

	case finishedState:
		return s, effects{}

	default:
		panic("flowsink: sinkFinish observed an invalid state")
	}
}

// transitionWriterDeinit implements the writer_deinit row.
func transitionWriterDeinit(st state) (state, effects) {
	switch s := st.(type) {
	case initialState:
		return finishedState{}, effects{terminate: true}

	case streamingState:
		if len(s.suspended) != 0 || len(s.buffer) != 0 {
			panic("flowsink: writer deinitialized with suspended producers or a non-empty buffer")
		}
		return finishedState{}, effects{terminate: true}

	case writerFinishedState, finishedState:
		return s, effects{}

	default:
		panic("flowsink: writerDeinit observed an invalid state")
	}
}

// transitionUnbuffer implements unbuffer_queued_events, called in a
// loop by the outcall driver after every delegate callout returns.
func transitionUnbuffer(st state) (state, effects) {
	switch s := st.(type) {
	case streamingState:
		if !s.inOutcall {
			panic("flowsink: unbufferQueuedEvents called while not in an outcall")
		}
		if len(s.buffer) == 0 {
			s.inOutcall = false
			return s, effects{}
		}
		eff := effects{yield: s.buffer}
		s.buffer = nil
		return s, eff

	case writerFinishedState:
		if len(s.buffer) == 0 {
			return finishedState{sinkErr: s.err}, effects{terminate: true, terminateErr: s.err}
		}
		eff := effects{yield: s.buffer}
		return writerFinishedState{err: s.err}, eff

	case finishedState:
		return s, effects{}

	default:
		panic("flowsink: unbufferQueuedEvents observed an invalid state")
	}
}
