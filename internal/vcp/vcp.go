// Package vcp implements the Context Preserver: a signal-subspace
// analyzer that detects low-confidence ("hallucinatory") trajectories
// through the Flux Matrix and magnifies them at sacred checkpoints.
package vcp

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/fluxcore/engine/internal/beam"
	"github.com/fluxcore/engine/internal/elp"
)

// Config holds VCP's tunable thresholds, mirroring the configuration
// options enumerated in spec.md §6.
type Config struct {
	SubspaceRank        int     // default 3, max 9
	MagnificationFactor float32 // default 1.5
	SignalThreshold     float32 // default 0.5
	DivergenceThreshold float32 // default 0.3
}

// DefaultConfig matches spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{SubspaceRank: 3, MagnificationFactor: 1.5, SignalThreshold: 0.5, DivergenceThreshold: 0.3}
}

// Subspace is the result of analyzing a window of beams: which of the 9
// digit dimensions carry the most variance, and how much of the total
// distributional energy they explain.
type Subspace struct {
	SelectedDims []int
	Variances    [9]float32
	Strength     float32 // == Explained
}

// VCP holds the tunable configuration; it is stateless otherwise — all
// analysis operates on the window of beams passed in.
type VCP struct {
	cfg Config
}

// New creates a VCP with cfg. A zero-value SubspaceRank defaults to 3;
// ranks are clamped to [1,9].
func New(cfg Config) *VCP {
	if cfg.SubspaceRank <= 0 {
		cfg.SubspaceRank = 3
	}
	if cfg.SubspaceRank > 9 {
		cfg.SubspaceRank = 9
	}
	return &VCP{cfg: cfg}
}

// AnalyzeSubspace builds the n×9 digit matrix for beams, computes
// per-dimension variance, and selects the top-k dimensions (k =
// cfg.SubspaceRank) as the basis. A single-beam window trivially
// returns full strength (variance is undefined for n=1): spec.md §8
// boundary behavior.
func (v *VCP) AnalyzeSubspace(beams []beam.Tensor) Subspace {
	if len(beams) <= 1 {
		sub := Subspace{Strength: 1.0}
		for i := 0; i < 9 && i < v.cfg.SubspaceRank; i++ {
			sub.SelectedDims = append(sub.SelectedDims, i)
		}
		return sub
	}

	// Build the n×9 digit matrix H and take per-column variance: each
	// column is copied out with mat.Col and passed to gonum's
	// stat.MeanVariance.
	n := len(beams)
	h := mat.NewDense(n, 9, nil)
	for r, b := range beams {
		for c, d := range b.Digits {
			h.Set(r, c, float64(d))
		}
	}

	var variance [9]float64
	col := make([]float64, n)
	for c := 0; c < 9; c++ {
		mat.Col(col, c, h)
		_, variance[c] = stat.MeanVariance(col, nil)
	}

	type dimVar struct {
		dim int
		v   float64
	}
	dims := make([]dimVar, 9)
	var total float64
	for i, vr := range variance {
		dims[i] = dimVar{i, vr}
		total += vr
	}
	sort.Slice(dims, func(i, j int) bool { return dims[i].v > dims[j].v })

	k := v.cfg.SubspaceRank
	if k > len(dims) {
		k = len(dims)
	}

	sub := Subspace{}
	var selected float64
	for i := 0; i < k; i++ {
		sub.SelectedDims = append(sub.SelectedDims, dims[i].dim)
		selected += dims[i].v
	}
	for i, vr := range variance {
		sub.Variances[i] = float32(vr)
	}

	if total == 0 {
		// Every beam in the window is identical (often a near-uniform,
		// high-entropy distribution): no dimension explains anything,
		// so signal strength collapses to 0 rather than dividing by
		// zero — this is precisely the hallucination-catch scenario.
		sub.Strength = 0
		return sub
	}
	sub.Strength = float32(clamp01(selected / total))
	return sub
}

// Divergence computes mean|Δ|/9 between a context and forecast ELP
// coordinate (spec.md §4.4's second hallucination criterion).
func Divergence(context, forecast elp.ELP) float32 {
	return elp.Divergence(context, forecast)
}

// Classification is the result of the hallucination predicate.
type Classification struct {
	Hallucinated bool
	Confidence   float32 // hallucination_confidence
}

// Classify applies the OR-joined hallucination predicate: strength below
// threshold, or ELP divergence above threshold.
func (v *VCP) Classify(strength, divergence float32) Classification {
	triggered := strength < v.cfg.SignalThreshold || divergence > v.cfg.DivergenceThreshold
	conf := 1 - (0.6*(1-strength) + 0.4*divergence)
	return Classification{Hallucinated: triggered, Confidence: float32(clamp01(float64(conf)))}
}

// Intervene applies the checkpoint intervention to every beam at a
// sacred position (3, 6, or 9), using sub as the (already-computed)
// subspace basis for the whole window — applied in a second pass so
// intervening on one beam never changes the basis another beam in the
// same window is projected against.
func (v *VCP) Intervene(beams []beam.Tensor, sub Subspace) []beam.Tensor {
	out := make([]beam.Tensor, len(beams))
	copy(out, beams)
	for i, b := range out {
		if !isSacred(b.Position) {
			continue
		}
		out[i] = v.intervene(b, sub)
	}
	return out
}

func (v *VCP) intervene(b beam.Tensor, sub Subspace) beam.Tensor {
	selected := make(map[int]bool, len(sub.SelectedDims))
	for _, d := range sub.SelectedDims {
		selected[d] = true
	}

	// projected[i] = Σ_b (digits·basis_b)·basis_b[i]·σ_b, using
	// axis-aligned basis vectors for the selected dims (per-dimension
	// variance is the basis, per spec.md §4.4 step 1's "top-k
	// dimensions by variance as the basis"): this keeps only the
	// selected dims, each scaled by its own variance, and zeroes the
	// rest.
	var projected [9]float32
	for i := 0; i < 9; i++ {
		if selected[i] {
			projected[i] = b.Digits[i] * sub.Variances[i]
		}
	}

	mag := v.cfg.MagnificationFactor
	if mag == 0 {
		mag = 1.5
	}
	var magnified [9]float32
	for i, p := range projected {
		magnified[i] = p * mag
	}

	b.Digits = beam.Normalize(magnified)
	b.Confidence = clamp01f(b.Confidence * 1.15)
	b.Signal = sub.Strength
	return b
}

func isSacred(pos int) bool { return pos == 3 || pos == 6 || pos == 9 }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp01f(v float32) float32 {
	return float32(clamp01(float64(v)))
}
