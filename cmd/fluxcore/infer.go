package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxcore/engine/internal/altindex"
	"github.com/fluxcore/engine/internal/engine"
	"github.com/fluxcore/engine/internal/flux"
	"github.com/fluxcore/engine/internal/lake"
	"github.com/fluxcore/engine/internal/orchestrator"
	"github.com/fluxcore/engine/internal/vcp"
)

func inferCmd() *cobra.Command {
	var embeddingFile string
	var modeFlag string
	var jsonOut bool
	var persist bool

	cmd := &cobra.Command{
		Use:   "infer [text]",
		Short: "Run one inference through the orchestration pipeline",
		Long:  "Runs text (or a pre-computed --embedding file) through GeometricEngine and VCP, printing the scored Output. No consensus providers or ML enhancer are wired here, so consensus never runs and the consensus field is always false.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" && embeddingFile == "" {
				stat, _ := os.Stdin.Stat()
				if stat.Mode()&os.ModeCharDevice == 0 {
					data, err := io.ReadAll(os.Stdin)
					if err == nil {
						text = strings.TrimSpace(string(data))
					}
				}
			}
			if text == "" && embeddingFile == "" {
				return fmt.Errorf("provide text as an argument, pipe it on stdin, or pass --embedding")
			}

			mode, err := parseMode(modeFlag)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			deps := orchestrator.Deps{
				Embedder:  hashEmbedder{},
				Geometric: engine.New(altindex.New(), flux.New("cli")),
				VCP:       vcp.New(vcp.Config{SubspaceRank: cfg.SubspaceRank, MagnificationFactor: cfg.MagnificationFactor, SignalThreshold: cfg.SignalThreshold, DivergenceThreshold: cfg.DivergenceThreshold}),
			}

			var embedOverride []float32
			if embeddingFile != "" {
				embedOverride, err = loadEmbedding(embeddingFile)
				if err != nil {
					return fmt.Errorf("load embedding: %w", err)
				}
				deps.Embedder = fixedVectorEmbedder{vec: embedOverride}
			}

			o := orchestrator.New(deps)
			defer o.Close()

			ctx := context.Background()
			out, err := o.Infer(ctx, text, mode)
			if err != nil {
				return fmt.Errorf("infer: %w", err)
			}

			if persist {
				// Persist directly rather than through the orchestrator's
				// deferred Lake writer: that writer is built for a
				// long-running process and doesn't wait for its drain
				// goroutine on Close, which would race a one-shot CLI's
				// exit against the write actually landing.
				l, err := openLake()
				if err != nil {
					return err
				}
				putErr := l.Put(ctx, lake.Record{
					TimestampMs:  out.TimestampMs,
					Position:     out.Position,
					ELP:          out.ELP,
					Signal:       out.Signal,
					Confidence:   out.Confidence,
					Mode:         out.Mode.String(),
					Hallucinated: out.Hallucinated,
				})
				if closeErr := l.Close(); closeErr != nil && putErr == nil {
					putErr = closeErr
				}
				if putErr != nil {
					return fmt.Errorf("persist: %w", putErr)
				}
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Printf("position:     %d\n", out.Position)
			fmt.Printf("elp:          ethos=%.3f logos=%.3f pathos=%.3f\n", out.ELP.Ethos, out.ELP.Logos, out.ELP.Pathos)
			fmt.Printf("signal:       %.3f\n", out.Signal)
			fmt.Printf("confidence:   %.3f\n", out.Confidence)
			fmt.Printf("sacred:       %v\n", out.Sacred)
			fmt.Printf("mode:         %s\n", out.Mode)
			fmt.Printf("consensus:    %v\n", out.ConsensusUsed)
			fmt.Printf("hallucinated: %v\n", out.Hallucinated)
			fmt.Printf("elapsed_ms:   %d\n", out.ProcessingTimeMs)
			return nil
		},
	}

	cmd.Flags().StringVar(&embeddingFile, "embedding", "", "path to a JSON array of floats, bypassing the Embedder")
	cmd.Flags().StringVar(&modeFlag, "mode", "balanced", "pipeline mode: fast, balanced, thorough")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the Output as JSON")
	cmd.Flags().BoolVar(&persist, "persist", false, "write the admitted result to the Confidence Lake")
	return cmd
}

func parseMode(s string) (orchestrator.Mode, error) {
	switch strings.ToLower(s) {
	case "fast":
		return orchestrator.Fast, nil
	case "balanced", "":
		return orchestrator.Balanced, nil
	case "thorough":
		return orchestrator.Thorough, nil
	default:
		return 0, fmt.Errorf("unknown mode %q — use fast, balanced, or thorough", s)
	}
}

// fixedVectorEmbedder serves a single pre-loaded embedding regardless of
// the text passed in, wiring spec.md §6's "pre-computed embedding"
// bypass into the Embedder interface the orchestrator already expects.
type fixedVectorEmbedder struct{ vec []float32 }

func (f fixedVectorEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

func openLake() (*lake.Lake, error) {
	if secretFlag == "" {
		return nil, fmt.Errorf("a --secret (or $FLUXCORE_LAKE_SECRET) is required to open the Confidence Lake")
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return lake.Open(lake.Options{
		Path:           lakeFlag,
		Secret:         secretFlag,
		PageSize:       cfg.LakePageSize,
		AdmitThreshold: cfg.LakeAdmitThreshold,
	})
}
