package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/rugwirobaker/flowsink/internal/command"
	"github.com/rugwirobaker/flowsink/internal/flag"
	"github.com/rugwirobaker/flowsink/internal/flowsink"
	"github.com/rugwirobaker/flowsink/internal/iostreams"
)

func NewBenchCommand() *cobra.Command {
	const (
		longDesc  = "Runs N producer goroutines calling Yield in a loop against an in-memory sink and reports throughput."
		shortDesc = "Benchmarks writer throughput"
	)
	cmd := command.New("bench", shortDesc, longDesc, runBench)

	flag.Add(cmd,
		flag.Int{
			Name:        "producers",
			Description: "Number of concurrent producer goroutines",
			Default:     8,
		},
		flag.Duration{
			Name:        "duration",
			Description: "How long to run the benchmark",
			Default:     5 * time.Second,
		},
	)

	return cmd
}

type countingDelegate struct {
	count atomic.Uint64
}

func (d *countingDelegate) DidYield(elements []flowsink.Element) {
	d.count.Add(uint64(len(elements)))
}

func (d *countingDelegate) DidTerminate(error) {}

func runBench(ctx context.Context) error {
	io := iostreams.FromContext(ctx)
	producers := flag.GetInt(ctx, "producers")
	duration := flag.GetDuration(ctx, "duration")

	d := &countingDelegate{}
	writer, sink := flowsink.New(true, d)
	sink.SetWritable(true)

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-runCtx.Done():
					return
				default:
				}
				if err := writer.Yield(runCtx, byte(0)); err != nil {
					return
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	writer.Finish()

	total := d.count.Load()
	fmt.Fprintf(io.Out, "producers=%d duration=%s elements=%d throughput=%.0f/s\n",
		producers, elapsed.Round(time.Millisecond), total, float64(total)/elapsed.Seconds())
	return nil
}
