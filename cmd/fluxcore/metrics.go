package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fluxcore/engine/internal/perf"
)

// metricsCmd replays a Lake's admitted records through a fresh
// PerformanceTracker: the tracker itself is in-process, per-orchestrator
// state (spec.md §6 keeps it lock-free and unpersisted by design), so
// the Lake's append-only history is the only durable source this CLI
// can recompute aggregates from between invocations. Per-request
// latency isn't part of a Record, so every replayed observation carries
// zero duration — AverageTime here is therefore always zero and only
// Count/AverageConfidence are meaningful.
func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Recompute mode/position statistics from the Lake's history",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLake()
			if err != nil {
				return err
			}
			defer l.Close()

			records, err := l.Range(0, ^uint64(0))
			if err != nil {
				return fmt.Errorf("range: %w", err)
			}

			tr := perf.New()
			for _, r := range records {
				tr.RecordMode(r.Mode, 0, r.Confidence)
				tr.RecordPosition(r.Position, 0, r.Confidence)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODE\tCOUNT\tAVG_CONFIDENCE")
			for _, mode := range []string{"Fast", "Balanced", "Thorough"} {
				s := tr.ModeSnapshot(mode)
				fmt.Fprintf(w, "%s\t%d\t%.3f\n", mode, s.Count, s.AverageConfidence)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "POSITION\tCOUNT\tAVG_CONFIDENCE")
			for pos := 0; pos < 10; pos++ {
				s := tr.PositionSnapshot(pos)
				if s.Count == 0 {
					continue
				}
				fmt.Fprintf(w, "%d\t%d\t%.3f\n", pos, s.Count, s.AverageConfidence)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("total records: %d\n", len(records))
			return nil
		},
	}
	return cmd
}
