package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/coder/quartz"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/querystats/observe"
	"github.com/jonwraymond/querystats/recorder"
)

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Aggregate a log of executed commands",
		Long: `Reads one sample per line as Extended JSON, from file or stdin:

  {"command": {"find": "c", "filter": {"a": 1}}, "execMicros": 120, "docsReturned": 1}

and prints one aggregated entry per query stats key. Drop counts are
written to stderr.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := &lineExporter{w: cmd.OutOrStdout()}
			p, err := newPipeline(cfg, observe.Nop(), out, quartz.NewReal())
			if err != nil {
				return err
			}

			drops := map[recorder.Reason]int{}
			err = readLines(in, func(line int, data []byte) error {
				rec, err := parseRecord(data)
				if err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				req, err := rec.request()
				if err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				if o := p.recorder.Record(ctx, req, rec.execContext(), rec.sample()); !o.Recorded() {
					drops[o.Reason]++
				}
				return nil
			})
			if err != nil {
				_ = p.recorder.Close(ctx)
				return err
			}
			if err := p.recorder.Close(ctx); err != nil {
				return err
			}

			for _, r := range slices.Sorted(maps.Keys(drops)) {
				fmt.Fprintf(cmd.ErrOrStderr(), "dropped %s: %d\n", r, drops[r])
			}
			return nil
		},
	}
	return cmd
}
