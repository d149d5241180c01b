package main

import (
	"github.com/rugwirobaker/flowsink/internal/command"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	const (
		long  = "flowsink bridges many concurrent producers to a single synchronous sink, with back-pressure and cooperative cancellation."
		short = "flowsink is an asynchronous, back-pressured writer"
	)

	cmd := command.New("flowsink", short, long, nil)

	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
	}

	cmd.AddCommand(
		NewServeCommand(),
		NewBenchCommand(),
		NewVersionCommand(),
	)
	return cmd
}
