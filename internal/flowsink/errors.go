package flowsink

import "errors"

// ErrAlreadyFinished is returned by Yield once the writer or the sink
// has finished, and has no producer-caused cause of its own.
var ErrAlreadyFinished = errors.New("flowsink: writer or sink already finished")
