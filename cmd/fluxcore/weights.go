package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluxcore/engine/internal/weights"
)

// weightsCmd prints the combination weights a fresh AdaptiveWeights
// Store starts from. The Store is deliberately per-process, in-memory
// state (spec.md §4.9) that converges only while an orchestrator keeps
// running — unlike the Lake, there is nothing durable for a one-shot
// CLI invocation to inspect, so this reports the starting point and the
// configured learning rate rather than fabricating a converged history.
func weightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Show the AdaptiveWeights starting point and learning rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st := weights.New(cfg.LearningRate)
			w := st.Snapshot()
			fmt.Printf("geometric: %.3f\n", w.Geometric)
			fmt.Printf("ml:        %.3f\n", w.ML)
			fmt.Printf("consensus: %.3f\n", w.Consensus)
			fmt.Printf("learning_rate: %.4f\n", cfg.LearningRate)
			fmt.Println("(a long-running orchestrator process converges these; this CLI always reports the starting split)")
			return nil
		},
	}
	return cmd
}
