// Package delegate provides real, transport-backed implementations of
// flowsink.Delegate: a reconnecting byte-stream writer, a vsock
// transport, and an interactive SSH/PTY terminal.
package delegate

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/klauspost/compress/zstd"
	"github.com/valyala/bytebufferpool"

	"github.com/rugwirobaker/flowsink/internal/flowsink"
)

// ConnFactory opens a fresh downstream connection.
type ConnFactory func(ctx context.Context) (io.WriteCloser, error)

// Stream is a flowsink.Delegate that writes each yielded batch, as a
// length-prefixed frame of bytes, to a reconnecting downstream
// connection. Batches are pooled through bytebufferpool and compressed
// with zstd when they are at least compressMin bytes long.
type Stream struct {
	terminate   func(error)
	factory     ConnFactory
	compressMin int

	mu      sync.Mutex
	conn    io.WriteCloser
	backoff backoff.Backoff
	encoder *zstd.Encoder
	closed  bool

	encodeBatch func([]flowsink.Element) ([]byte, error)
}

// NewStream builds a Stream delegate. terminate is called at most once,
// with the write error when a frame still cannot be written after one
// reconnect (failed dials during a reconnect are retried with backoff
// without limit), or with the error from encodeBatch — ordinarily
// sink.FinishWithError, passed as a
// closure so the Sink can be constructed after the delegate (flowsink.New
// needs a Delegate up front; the Delegate here needs the terminate
// action, not the whole Sink). reconnectMin/reconnectMax bound the
// exponential backoff between reconnect attempts; either left at zero
// falls back to a 100ms/10s window. encodeBatch converts a batch of
// elements into the bytes to send; callers working with byte-producing
// writers (see duplex.Session.Pump) typically pass a function that
// asserts each element is a byte and appends it.
func NewStream(terminate func(error), factory ConnFactory, compressMin int, reconnectMin, reconnectMax time.Duration, encodeBatch func([]flowsink.Element) ([]byte, error)) (*Stream, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("delegate: build zstd encoder: %w", err)
	}
	if reconnectMin <= 0 {
		reconnectMin = 100 * time.Millisecond
	}
	if reconnectMax <= 0 {
		reconnectMax = 10 * time.Second
	}
	return &Stream{
		terminate:   terminate,
		factory:     factory,
		compressMin: compressMin,
		encoder:     enc,
		encodeBatch: encodeBatch,
		backoff: backoff.Backoff{
			Min:    reconnectMin,
			Max:    reconnectMax,
			Factor: 2,
			Jitter: true,
		},
	}, nil
}

func (s *Stream) DidYield(elements []flowsink.Element) {
	payload, err := s.encodeBatch(elements)
	if err != nil {
		slog.Error("delegate.Stream: encode batch failed", "error", err)
		s.terminate(err)
		return
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	compressed := len(payload) >= s.compressMin
	if compressed {
		buf.B = s.encoder.EncodeAll(payload, buf.B[:0])
	} else {
		buf.B = append(buf.B[:0], payload...)
	}

	if err := s.writeFrame(compressed, buf.B); err != nil {
		slog.Error("delegate.Stream: write failed permanently", "error", err)
		s.terminate(err)
	}
}

func (s *Stream) DidTerminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	if err != nil {
		slog.Warn("delegate.Stream: terminated with error", "error", err)
	}
}

// writeFrame sends a 5-byte header (1 flag byte: compressed or not, 4
// length bytes) followed by payload, reconnecting with backoff on
// failure.
func (s *Stream) writeFrame(compressed bool, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.EOF
	}

	header := make([]byte, 5)
	if compressed {
		header[0] = 1
	}
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))

	if s.conn == nil {
		if err := s.renewLocked(); err != nil {
			return err
		}
	}

	if _, err := s.conn.Write(header); err == nil {
		_, err = s.conn.Write(payload)
		if err == nil {
			return nil
		}
	}

	if err := s.renewLocked(); err != nil {
		return err
	}
	if _, err := s.conn.Write(header); err != nil {
		return err
	}
	_, err := s.conn.Write(payload)
	return err
}

func (s *Stream) renewLocked() error {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.backoff.Reset()
	for {
		if s.closed {
			return io.EOF
		}
		conn, err := s.factory(context.Background())
		if err != nil {
			time.Sleep(s.backoff.Duration())
			continue
		}
		s.conn = conn
		return nil
	}
}
