package main

import (
	"context"
	"fmt"

	"github.com/rugwirobaker/flowsink/internal/command"
	"github.com/rugwirobaker/flowsink/internal/iostreams"
	"github.com/spf13/cobra"
)

// version is set via -ldflags "-X main.version=..." at build time.
var version = "dev"

func NewVersionCommand() *cobra.Command {
	const (
		long  = "Prints the flowsink build version"
		short = "Prints the flowsink build version"
	)

	return command.New("version", short, long, runVersion)
}

func runVersion(ctx context.Context) error {
	io := iostreams.FromContext(ctx)
	fmt.Fprintln(io.Out, version)
	return nil
}
