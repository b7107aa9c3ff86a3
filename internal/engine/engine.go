// Package engine implements GeometricEngine: baseline ELP-driven
// inference that needs no external model, reusing SacredGeometry,
// FluxMatrix, and AlternativeIndex lookups.
package engine

import (
	"fmt"
	"hash/fnv"

	"github.com/fluxcore/engine/internal/altindex"
	"github.com/fluxcore/engine/internal/elp"
	"github.com/fluxcore/engine/internal/flux"
	"github.com/fluxcore/engine/internal/geometry"
)

// SacredBoost is the confidence boost applied when the inferred
// position is a sacred anchor (spec.md §4.5).
const SacredBoost = 0.10

// DegradedELP and DegradedConfidence are the fallback values emitted
// when no embedding can be produced synchronously (spec.md §4.5).
var DegradedELP = elp.ELP{Ethos: 0.33, Logos: 0.33, Pathos: 0.33}

const DegradedConfidence = 0.3

// Result is the GeometricEngine's output, independent of consensus or
// VCP — those are applied by the orchestrator downstream.
//
// Position is the literal sacred anchor (3, 6, or 9) once SacredGeometry
// resolves a non-void result, or 0 for the void position — matching
// spec.md §6's Output schema (`sacred: bool, // position ∈ {3,6,9}`) and
// §8's worked scenarios, which require literal position 9 and position 6
// outputs. Slot is SacredGeometry's own vortex-shifted neighbor (spec.md
// §4.3 step 6: one of 1, 2, 4, 5, 7, 8, or 0 when void) — it never
// equals a sacred anchor itself, and is used only to address FluxMatrix
// and AlternativeIndex, which index by the flow graph's full ten-position
// space rather than by sacred anchor.
type Result struct {
	ELP        elp.ELP
	Signal     float32
	Position   int
	Slot       int
	Confidence float32
	Degraded   bool
	Alt        *altindex.Alternative // best alternative at the resulting slot, if looked up
}

// Engine couples a SacredGeometry encode step with FluxMatrix node
// state and an optional AlternativeIndex lookup.
type Engine struct {
	alts   *altindex.Index // optional; nil disables alternative lookups
	matrix *flux.Matrix    // optional; nil disables FluxMatrix consultation
}

// New builds an Engine. alts and matrix may be nil if alternative
// lookups or FluxMatrix consultation are not wired for this deployment.
func New(alts *altindex.Index, matrix *flux.Matrix) *Engine {
	return &Engine{alts: alts, matrix: matrix}
}

// Infer runs baseline geometric inference over embedding. A nil or
// empty embedding yields the degraded fallback rather than an error:
// the orchestrator's Fast path must always produce output.
func (e *Engine) Infer(embedding []float32) Result {
	if len(embedding) == 0 {
		return Result{
			ELP:        DegradedELP,
			Signal:     0,
			Position:   0,
			Confidence: DegradedConfidence,
			Degraded:   true,
		}
	}

	enc, err := geometry.Encode(embedding)
	if err != nil {
		return Result{
			ELP:        DegradedELP,
			Signal:     0,
			Position:   0,
			Confidence: DegradedConfidence,
			Degraded:   true,
		}
	}

	slot := enc.Position
	confidence := baseConfidence(enc.Signal)

	position := 0
	if slot != 0 {
		confidence += SacredBoost
		position = enc.ELP.DominantChannel()

		if e.matrix != nil {
			// Seed/refresh the node this request's interpretation lives
			// at before reading the anchor it shifted away from, so the
			// anchor cache and the general snapshot stay consistent
			// (spec.md §8 Invariant 4: Anchor(p) == Snapshot().Get(p)).
			_ = e.matrix.Update(slot, func(n *flux.FluxNode) *flux.FluxNode {
				n.Attributes.Active = true
				n.Attributes.UsageCount++
				return n
			})
			if anchor, aerr := e.matrix.Anchor(position); aerr == nil {
				position = anchor.Position
			}
		}
	}
	if confidence > 1 {
		confidence = 1
	}

	res := Result{
		ELP:        enc.ELP,
		Signal:     enc.Signal,
		Position:   position,
		Slot:       slot,
		Confidence: confidence,
	}

	if e.alts != nil && slot != 0 {
		e.lookupAlternative(slot, enc, confidence, &res)
	}

	return res
}

// lookupAlternative self-registers this request's own (confidence, ELP)
// coordinate as a candidate interpretation at slot — the only production
// path that ever populates AlternativeIndex, since there is no upstream
// tokenizer proposing genuine N-best candidates — then re-ranks and
// attaches the current best. HistoricalRank still accumulates
// genuinely across calls that land on the same token, independent of
// this per-slot overwrite.
func (e *Engine) lookupAlternative(slot int, enc geometry.Result, confidence float32, res *Result) {
	tokenID := tokenIDFor(enc)
	alt := altindex.Alternative{
		TokenID:        tokenID,
		BaseConfidence: confidence,
		HistoricalRank: e.alts.HistoricalRank(tokenID),
	}
	if err := e.alts.Set(slot, tokenID, []altindex.Alternative{alt}, []elp.ELP{enc.ELP}, []int{slot}); err != nil {
		return
	}
	e.alts.UpdateHistory(tokenID, 1)

	if err := e.alts.Rank(slot, enc.ELP); err != nil {
		return
	}
	best, err := e.alts.SelectBest(slot)
	if err != nil {
		return
	}
	res.Alt = &best
}

// tokenIDFor derives a deterministic stand-in token ID from a
// SacredGeometry result, since GeometricEngine has no upstream
// tokenizer of its own.
func tokenIDFor(enc geometry.Result) uint32 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d:%.6f:%.6f:%.6f:%.6f", enc.Position, enc.ELP.Ethos, enc.ELP.Pathos, enc.ELP.Logos, enc.Signal)
	return h.Sum32()
}

// baseConfidence derives a starting confidence from signal strength
// before the sacred boost: signal itself is the engine's only internal
// trust estimate, absent an external model.
func baseConfidence(signal float32) float32 {
	return signal
}
