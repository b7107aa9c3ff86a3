package vcp

import (
	"testing"

	"github.com/fluxcore/engine/internal/beam"
	"github.com/fluxcore/engine/internal/elp"
)

func mkBeam(pos int, digits [9]float32) beam.Tensor {
	return beam.Tensor{Position: pos, Digits: beam.Normalize(digits), Confidence: 0.5}
}

func TestAnalyzeSubspaceSingleBeamIsTrivial(t *testing.T) {
	v := New(DefaultConfig())
	sub := v.AnalyzeSubspace([]beam.Tensor{mkBeam(1, [9]float32{1})})
	if sub.Strength != 1.0 {
		t.Errorf("Strength = %v, want 1.0 for a length-1 window", sub.Strength)
	}
}

func TestAnalyzeSubspaceIdenticalBeamsHaveZeroStrength(t *testing.T) {
	v := New(DefaultConfig())
	same := mkBeam(3, [9]float32{1, 0, 0, 0, 0, 0, 0, 0, 0})
	sub := v.AnalyzeSubspace([]beam.Tensor{same, same, same})
	if sub.Strength != 0 {
		t.Errorf("Strength = %v, want 0 when every beam is identical", sub.Strength)
	}
}

func TestAnalyzeSubspaceConcentratesOnHighVarianceDims(t *testing.T) {
	v := New(Config{SubspaceRank: 1, MagnificationFactor: 1.5, SignalThreshold: 0.5, DivergenceThreshold: 0.3})
	beams := []beam.Tensor{
		mkBeam(1, [9]float32{0.9, 0.1, 0, 0, 0, 0, 0, 0, 0}),
		mkBeam(1, [9]float32{0.1, 0.9, 0, 0, 0, 0, 0, 0, 0}),
		mkBeam(1, [9]float32{0.5, 0.5, 0, 0, 0, 0, 0, 0, 0}),
	}
	sub := v.AnalyzeSubspace(beams)
	if len(sub.SelectedDims) != 1 {
		t.Fatalf("len(SelectedDims) = %d, want 1", len(sub.SelectedDims))
	}
	if sub.SelectedDims[0] != 0 && sub.SelectedDims[0] != 1 {
		t.Errorf("SelectedDims = %v, want dim 0 or 1 (the only varying dims)", sub.SelectedDims)
	}
	if sub.Strength < 0.49 || sub.Strength > 0.51 {
		t.Errorf("Strength = %v, want ~0.5: dims 0 and 1 vary equally and dims 2..8 never vary, so the single selected dim explains half", sub.Strength)
	}
}

func TestClassifyTriggersOnLowStrength(t *testing.T) {
	v := New(DefaultConfig())
	c := v.Classify(0.1, 0.0)
	if !c.Hallucinated {
		t.Error("expected hallucination when strength < threshold")
	}
}

func TestClassifyTriggersOnHighDivergence(t *testing.T) {
	v := New(DefaultConfig())
	c := v.Classify(1.0, 0.9)
	if !c.Hallucinated {
		t.Error("expected hallucination when divergence > threshold")
	}
}

func TestClassifyPassesWhenBothHealthy(t *testing.T) {
	v := New(DefaultConfig())
	c := v.Classify(0.9, 0.05)
	if c.Hallucinated {
		t.Error("did not expect hallucination when strength is high and divergence is low")
	}
	if c.Confidence < 0.8 {
		t.Errorf("Confidence = %v, want high for a healthy classification", c.Confidence)
	}
}

func TestDivergenceZeroForIdenticalELP(t *testing.T) {
	a := elp.ELP{Ethos: 0.5, Logos: 0.3, Pathos: 0.2}
	if d := Divergence(a, a); d != 0 {
		t.Errorf("Divergence(a,a) = %v, want 0", d)
	}
}

func TestInterveneOnlyTouchesSacredPositions(t *testing.T) {
	v := New(DefaultConfig())
	beams := []beam.Tensor{
		mkBeam(1, [9]float32{1, 0, 0, 0, 0, 0, 0, 0, 0}),
		mkBeam(3, [9]float32{1, 0, 0, 0, 0, 0, 0, 0, 0}),
	}
	sub := v.AnalyzeSubspace(beams)
	out := v.Intervene(beams, sub)
	if out[0] != beams[0] {
		t.Error("non-sacred beam was mutated by Intervene")
	}
	if out[1] == beams[1] {
		t.Error("sacred beam was not intervened on")
	}
}

func TestInterveneResultIsValidSimplex(t *testing.T) {
	v := New(DefaultConfig())
	beams := []beam.Tensor{
		mkBeam(6, [9]float32{0.9, 0.1, 0, 0, 0, 0, 0, 0, 0}),
		mkBeam(6, [9]float32{0.1, 0.9, 0, 0, 0, 0, 0, 0, 0}),
	}
	sub := v.AnalyzeSubspace(beams)
	out := v.Intervene(beams, sub)
	for i, b := range out {
		if err := b.Validate(); err != nil {
			t.Errorf("beam %d invalid after intervention: %v", i, err)
		}
	}
}

func TestInterveneIsIdempotentOnItsSubspace(t *testing.T) {
	v := New(DefaultConfig())
	beams := []beam.Tensor{
		mkBeam(9, [9]float32{0.9, 0.1, 0, 0, 0, 0, 0, 0, 0}),
		mkBeam(9, [9]float32{0.1, 0.9, 0, 0, 0, 0, 0, 0, 0}),
	}
	sub := v.AnalyzeSubspace(beams)
	once := v.Intervene(beams, sub)

	// Re-running the same basis over the already-intervened beams must
	// reach a fixed point: the non-selected dims are already zero, and
	// dims 0 and 1 have equal variance here, so scaling each by its
	// variance again leaves their relative proportions unchanged.
	twice := v.Intervene(once, sub)
	for i := range once {
		for d := 0; d < 9; d++ {
			diff := once[i].Digits[d] - twice[i].Digits[d]
			if diff < 0 {
				diff = -diff
			}
			if diff > 1e-4 {
				t.Errorf("beam %d dim %d: first pass %v, second pass %v — not idempotent",
					i, d, once[i].Digits[d], twice[i].Digits[d])
			}
		}
	}
}
