package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func lakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lake",
		Short: "Inspect a Confidence Lake file",
	}
	cmd.AddCommand(lakeRangeCmd())
	return cmd
}

func lakeRangeCmd() *cobra.Command {
	var fromMs, toMs uint64

	cmd := &cobra.Command{
		Use:   "range",
		Short: "List admitted records in a time window",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLake()
			if err != nil {
				return err
			}
			defer l.Close()

			records, err := l.Range(fromMs, toMs)
			if err != nil {
				return fmt.Errorf("range: %w", err)
			}
			if len(records) == 0 {
				fmt.Println("no records in range")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP_MS\tPOSITION\tSIGNAL\tCONFIDENCE\tMODE\tHALLUCINATED")
			for _, r := range records {
				fmt.Fprintf(w, "%d\t%d\t%.3f\t%.3f\t%s\t%v\n", r.TimestampMs, r.Position, r.Signal, r.Confidence, r.Mode, r.Hallucinated)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Uint64Var(&fromMs, "from", 0, "window start, epoch milliseconds")
	cmd.Flags().Uint64Var(&toMs, "to", ^uint64(0), "window end, epoch milliseconds")
	return cmd
}
