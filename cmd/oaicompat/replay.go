package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/i2y/oaicompat/aggregate"
	"github.com/i2y/oaicompat/metrics"
	"github.com/i2y/oaicompat/provider"
	"github.com/i2y/oaicompat/replay"
	"github.com/i2y/oaicompat/sse"
)

type replayOptions struct {
	dir       string
	chunkSize int
	lenient   bool
	frames    bool
}

func newReplayCmd(flags *globalFlags) *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <pattern>",
		Short: "Aggregate recorded SSE captures",
		Long: `Replay feeds every capture matching the pattern through the stream
aggregator and prints one summary line per capture. Patterns support ** to
match across directories.`,
		Example: `  oaicompat replay "**/*.sse" --dir replay/testdata
  oaicompat replay "captures/*.sse" --chunk-size 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, flags, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", ".", "directory the pattern is matched in")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "deliver captures in chunks of this many bytes (0: whole body)")
	cmd.Flags().BoolVar(&opts.lenient, "lenient", false, "accept a stream that ends without [DONE] after a finish reason")
	cmd.Flags().BoolVar(&opts.frames, "frames", false, "also print every SSE frame of each capture")

	return cmd
}

func runReplay(cmd *cobra.Command, flags *globalFlags, opts *replayOptions, pattern string) error {
	captures, err := replay.Load(opts.dir, pattern)
	if err != nil {
		return err
	}
	if len(captures) == 0 {
		return fmt.Errorf("no captures match %q in %s", pattern, opts.dir)
	}

	logger := flags.logger(cmd.ErrOrStderr())
	aggOpts := []aggregate.Option{aggregate.WithLogger(logger)}
	if opts.lenient {
		aggOpts = append(aggOpts, aggregate.WithLenientEnd())
	}

	collector := metrics.NewCollector(nil)
	out := cmd.OutOrStdout()
	for _, c := range captures {
		start := time.Now()
		resp, stats, err := replay.Run(c.Data, opts.chunkSize, aggOpts...)
		if err == nil && resp != nil {
			err = resp.Err
		}
		collector.ObserveRequest(metrics.ModeStream, err, time.Since(start))
		collector.AddFrames(stats.Frames)
		collector.ObserveResponse(resp)
		collector.ObserveStream(resp, err)

		printSummary(out, c.Name, resp, stats, err)
		if opts.frames {
			if err := printFrames(out, c.Data); err != nil {
				return fmt.Errorf("%s: %w", c.Name, err)
			}
		}
	}

	return flags.dumpMetrics(cmd, collector)
}

func printSummary(w io.Writer, name string, resp *provider.Response, stats aggregate.Stats, err error) {
	if resp == nil {
		fmt.Fprintf(w, "%s\tframes=%d\tfatal: %v\n", name, stats.Frames, err)
		return
	}

	status := "ok"
	if err != nil {
		status = err.Error()
	}
	fmt.Fprintf(w, "%s\tframes=%d\tfinish=%s\ttext=%q\ttool_calls=%d\tpending=%d\terrors=%d\t%s\n",
		name, stats.Frames, finishLabel(resp.FinishReason), resp.Content,
		len(resp.ToolCalls), len(resp.PendingToolCalls), len(resp.Errors), status)
}

func finishLabel(r provider.FinishReason) string {
	if r == "" {
		return "none"
	}
	return string(r)
}

func printFrames(w io.Writer, data []byte) error {
	r := sse.NewReader(bytes.NewReader(data))
	for i := 1; ; i++ {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch {
		case f.Done:
			fmt.Fprintf(w, "  #%d [DONE]\n", i)
		case f.Event != "":
			fmt.Fprintf(w, "  #%d event=%s %s\n", i, f.Event, f.Data)
		default:
			fmt.Fprintf(w, "  #%d %s\n", i, f.Data)
		}
	}
}
