// Package orchestrator composes GeometricEngine, an optional MLEnhancer,
// ConsensusEngine, VCP, ConfidenceLake, AdaptiveWeights, and
// PerformanceTracker into the Fast/Balanced/Thorough inference pipeline.
package orchestrator

import (
	"context"

	"github.com/fluxcore/engine/internal/consensus"
	"github.com/fluxcore/engine/internal/elp"
)

// ConsensusProvider is the collaborator queried when the pipeline
// escalates to multi-provider consensus (spec.md §6). It is the same
// shape consensus.Engine already fans out over, named here for the
// orchestrator's own public API surface.
type ConsensusProvider = consensus.Provider

// ConsensusResponse is one provider's contribution to a consensus
// query, aliased here for the orchestrator's public API surface.
type ConsensusResponse = consensus.Response

// Mode selects which pipeline stages run (spec.md §4.6).
type Mode int

const (
	Fast Mode = iota
	Balanced
	Thorough
)

func (m Mode) String() string {
	switch m {
	case Fast:
		return "Fast"
	case Balanced:
		return "Balanced"
	case Thorough:
		return "Thorough"
	default:
		return "Unknown"
	}
}

// Output is the orchestrator's external result, matching spec.md §6
// exactly.
type Output struct {
	Position         int
	ELP              elp.ELP
	Signal           float32
	Confidence       float32
	Sacred           bool
	Mode             Mode
	ConsensusUsed    bool
	Hallucinated     bool
	ProcessingTimeMs uint32
	TimestampMs      uint64
}

// Embedder is the required collaborator turning text into the
// geometric engine's 384-wide embedding space (spec.md §6).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EnhancerResult is what an Enhancer contributes alongside the
// geometric baseline.
type EnhancerResult struct {
	Confidence float32
	ELP        elp.ELP
}

// Enhancer is the optional ML-backed accuracy booster (spec.md §4.5's
// "G" collaborator); it may block and runs on a blocking-safe worker.
type Enhancer interface {
	Enhance(ctx context.Context, text string, base Output) (EnhancerResult, error)
}
