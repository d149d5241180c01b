package delegate

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mdlayher/vsock"

	"github.com/rugwirobaker/flowsink/internal/flowsink"
)

// NewVsock builds a Stream delegate backed by a vsock connection to
// cid/port. Each batch is encoded as raw bytes. terminate is called at
// most once on a permanent write failure.
func NewVsock(terminate func(error), cid, port uint32, compressMin int, reconnectMin, reconnectMax time.Duration) (*Stream, error) {
	factory := func(ctx context.Context) (io.WriteCloser, error) {
		conn, err := vsock.Dial(cid, port, nil)
		if err != nil {
			return nil, fmt.Errorf("delegate: dial vsock %d:%d: %w", cid, port, err)
		}
		return conn, nil
	}
	return NewStream(terminate, factory, compressMin, reconnectMin, reconnectMax, encodeByteElements)
}

func encodeByteElements(elements []flowsink.Element) ([]byte, error) {
	out := make([]byte, 0, len(elements))
	for _, e := range elements {
		b, ok := e.(byte)
		if !ok {
			return nil, fmt.Errorf("delegate: element %T is not a byte", e)
		}
		out = append(out, b)
	}
	return out, nil
}
