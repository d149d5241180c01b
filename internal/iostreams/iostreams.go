// Package iostreams threads the process's standard streams through a
// context.Context so commands can be tested against fakes instead of
// the real terminal.
package iostreams

import (
	"context"
	"io"
	"os"
)

type IOStreams struct {
	In     io.ReadCloser
	Out    io.Writer
	ErrOut io.Writer
}

func NewStream(stdin io.ReadCloser, stdout, stderr io.Writer) *IOStreams {
	return &IOStreams{
		In:     stdin,
		Out:    stdout,
		ErrOut: stderr,
	}
}

func System() *IOStreams {
	return NewStream(os.Stdin, os.Stdout, os.Stderr)
}

type contextKey struct{}

func NewContext(ctx context.Context, io *IOStreams) context.Context {
	return context.WithValue(ctx, contextKey{}, io)
}

func FromContext(ctx context.Context) *IOStreams {
	io, _ := ctx.Value(contextKey{}).(*IOStreams)
	if io == nil {
		return System()
	}
	return io
}
