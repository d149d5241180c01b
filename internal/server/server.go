// Package server accepts downstream connections and feeds each one's
// inbound bytes into a flowsink writer, forwarding every yielded batch
// through a configured delegate.
package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/rugwirobaker/flowsink/internal/config"
	"github.com/rugwirobaker/flowsink/internal/delegate"
	"github.com/rugwirobaker/flowsink/internal/duplex"
	"github.com/rugwirobaker/flowsink/internal/flowsink"
)

var LogLevel struct {
	sync.Mutex
	slog.LevelVar
}

type Server struct {
	ls  net.Listener
	cfg *config.Config
}

func New(listener net.Listener, cfg *config.Config) *Server {
	return &Server{ls: listener, cfg: cfg}
}

// Run accepts connections until the listener is closed, spawning one
// session per connection. Each session's delegate forwards batches back
// out over the same connection, so flowsink is exercised end to end
// without a second downstream hop; the exception is cfg.Delegate
// "vsock" with a non-zero VsockCID, where batches go to that vsock peer.
func (s *Server) Run(ctx context.Context) error {
	for {
		conn, err := s.ls.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	id, err := gonanoid.New()
	if err != nil {
		slog.Error("server: generate session id", "error", err)
		id = conn.RemoteAddr().String()
	}

	var sink *flowsink.Sink
	terminate := func(terminateErr error) { sink.FinishWithError(terminateErr) }

	var stream *delegate.Stream
	if s.cfg.Delegate == "vsock" && s.cfg.VsockCID != 0 {
		stream, err = delegate.NewVsock(terminate, s.cfg.VsockCID, s.cfg.VsockPort, s.cfg.CompressionMin, s.cfg.ReconnectMin, s.cfg.ReconnectMax)
	} else {
		stream, err = delegate.NewStream(
			terminate,
			func(context.Context) (io.WriteCloser, error) { return conn, nil },
			s.cfg.CompressionMin,
			s.cfg.ReconnectMin,
			s.cfg.ReconnectMax,
			echoEncoder,
		)
	}
	if err != nil {
		slog.Error("server: build stream delegate", "session", id, "error", err)
		_ = conn.Close()
		return
	}

	var writer *flowsink.Writer
	writer, sink = flowsink.New(s.cfg.InitialWritable, stream)

	sesh := duplex.New(id, writer, sink, conn, true,
		func() error { return nil },
		func() error { return conn.Close() },
	)

	slog.Info("server: session accepted", "session", id, "remote", conn.RemoteAddr())
	sesh.Pump(ctx)
}

func echoEncoder(elements []flowsink.Element) ([]byte, error) {
	out := make([]byte, 0, len(elements))
	for _, e := range elements {
		out = append(out, e.(byte))
	}
	return out, nil
}
