package duplex_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rugwirobaker/flowsink/internal/duplex"
	"github.com/rugwirobaker/flowsink/internal/flowsink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDelegate struct {
	mu       sync.Mutex
	received []byte
	done     chan struct{}
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{done: make(chan struct{})}
}

func (d *recordingDelegate) DidYield(elements []flowsink.Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range elements {
		d.received = append(d.received, e.(byte))
	}
}

func (d *recordingDelegate) DidTerminate(error) {
	close(d.done)
}

func (d *recordingDelegate) bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte{}, d.received...)
}

func TestSessionPumpDeliversReaderBytes(t *testing.T) {
	d := newRecordingDelegate()
	writer, sink := flowsink.New(true, d)

	var outputClosed, allClosed bool
	sesh := duplex.New("sesh-1", writer, sink, strings.NewReader("hello"), true,
		func() error { outputClosed = true; return nil },
		func() error { allClosed = true; return nil },
	)

	sesh.Pump(context.Background())

	require.Eventually(t, func() bool { return len(d.bytes()) == 5 }, time.Second, time.Millisecond)
	assert.Equal(t, []byte("hello"), d.bytes())

	writer.Finish()
	sesh.CloseWrite()

	select {
	case <-d.done:
	case <-time.After(time.Second):
		t.Fatal("delegate never terminated")
	}

	assert.True(t, outputClosed || allClosed, "half-close should have fired one teardown action")
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.EOF }

func TestSessionPumpEmptyReaderClosesReadHalf(t *testing.T) {
	d := newRecordingDelegate()
	writer, sink := flowsink.New(true, d)

	closedAll := make(chan struct{})
	sesh := duplex.New("sesh-2", writer, sink, errReader{}, false,
		nil,
		func() error { close(closedAll); return nil },
	)

	sesh.Pump(context.Background())
	writer.Finish()
	sesh.CloseWrite()

	select {
	case <-closedAll:
	case <-time.After(time.Second):
		t.Fatal("expected full close after both halves close with half-close disabled")
	}
}
