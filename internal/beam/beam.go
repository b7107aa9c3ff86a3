// Package beam defines BeamTensor, the immutable per-slot record carrying
// a distribution over the nine non-void flux positions plus an ELP
// coordinate and trust scalars.
package beam

import (
	"fmt"
	"math"

	"github.com/fluxcore/engine/internal/elp"
)

// SimplexTolerance is how far sum(Digits) may drift from 1.0 and still
// be considered valid.
const SimplexTolerance = 1e-4

// Tensor is one beam: a distribution over positions 1..9 (index 0 of
// Digits corresponds to flux position 1, index 8 to position 9) plus an
// ELP coordinate and trust scalars.
type Tensor struct {
	Position   int
	Digits     [9]float32
	ELP        elp.ELP
	Signal     float32
	Confidence float32
}

// Validate checks the simplex and range invariants from spec.md §3/§8.1:
// Digits sums to 1 within SimplexTolerance, all entries non-negative,
// and Signal/Confidence fall in [0,1].
func (t Tensor) Validate() error {
	var sum float32
	for i, d := range t.Digits {
		if d < 0 {
			return fmt.Errorf("beam: digit %d is negative (%v)", i, d)
		}
		sum += d
	}
	if math.Abs(float64(sum-1)) > SimplexTolerance {
		return fmt.Errorf("beam: digits sum to %v, want 1±%v", sum, SimplexTolerance)
	}
	if t.Signal < 0 || t.Signal > 1 {
		return fmt.Errorf("beam: signal %v out of [0,1]", t.Signal)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("beam: confidence %v out of [0,1]", t.Confidence)
	}
	return nil
}

// Normalize returns a copy of digits rescaled to sum to 1, or the
// uniform 1/9 distribution if they sum to zero (used after VCP
// checkpoint projection, which can leave the simplex).
func Normalize(digits [9]float32) [9]float32 {
	var sum float32
	for _, d := range digits {
		sum += d
	}
	if sum == 0 {
		out := [9]float32{}
		for i := range out {
			out[i] = 1.0 / 9
		}
		return out
	}
	var out [9]float32
	for i, d := range digits {
		out[i] = d / sum
	}
	return out
}
