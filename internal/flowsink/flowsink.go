// Package flowsink implements an asynchronous, back-pressured writer
// that bridges many concurrent producer goroutines to a single logical,
// synchronous consumer (a "sink"). Producers call Writer.Yield, which
// delivers elements to a Delegate while the sink reports itself
// writable, and parks the calling goroutine when it does not.
package flowsink

// New builds a linked Writer/Sink pair sharing one state machine.
// initialWritable sets the sink's writability before any SetWritable
// call. delegate receives DidYield/DidTerminate callouts, always
// outside any flowsink lock and never concurrently with itself.
func New(initialWritable bool, delegate Delegate) (*Writer, *Sink) {
	s := newStorage(initialWritable, delegate)
	return &Writer{s: s}, &Sink{s: s}
}
