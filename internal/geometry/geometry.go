// Package geometry implements SacredGeometry: converting a fixed-width
// embedding into the (signal, ethos, logos, pathos, position) coordinate
// the rest of the core reasons about.
package geometry

import (
	"fmt"
	"math"

	"github.com/fluxcore/engine/internal/elp"
)

// CanonicalWidth is the embedding width SacredGeometry is defined over;
// other widths are projected to it first via Project.
const CanonicalWidth = 384

// BalanceTolerance is how close the three normalized ELP channels must
// be to each other for the result to be the void position (0).
const BalanceTolerance = 1e-3

// Result is the output of Encode.
type Result struct {
	Signal   float32
	ELP      elp.ELP
	Position int
}

// Project resamples v to width `to`: mean-pools down or zero-pads up so
// Encode is total over any input width rather than silently truncating.
func Project(v []float32, to int) []float32 {
	if len(v) == to {
		return v
	}
	out := make([]float32, to)
	if len(v) > to {
		// Mean-pool: fold len(v) values into `to` buckets.
		bucket := float64(len(v)) / float64(to)
		for i := 0; i < to; i++ {
			start := int(float64(i) * bucket)
			end := int(float64(i+1) * bucket)
			if end <= start {
				end = start + 1
			}
			if end > len(v) {
				end = len(v)
			}
			var sum float32
			count := 0
			for j := start; j < end; j++ {
				sum += v[j]
				count++
			}
			if count > 0 {
				out[i] = sum / float32(count)
			}
		}
		return out
	}
	copy(out, v) // zero-pad the rest
	return out
}

// Encode converts v (projected to CanonicalWidth if necessary) into a
// SacredGeometry result.
func Encode(v []float32) (Result, error) {
	if len(v) == 0 {
		return Result{}, fmt.Errorf("geometry: empty embedding")
	}
	if len(v) != CanonicalWidth {
		v = Project(v, CanonicalWidth)
	}

	third := len(v) / 3
	v1, v2, v3 := v[:third], v[third:2*third], v[2*third:]

	ethos := mean(v1)
	pathos := mean(v2)
	logos := mean(v3)

	var totalAbs float64
	for _, x := range v {
		totalAbs += math.Abs(float64(x))
	}

	sacredSum := math.Abs(float64(ethos)) + math.Abs(float64(pathos)) +
		math.Abs(float64(logos))*(float64(len(v))/3.0)

	var signal float64
	if totalAbs > 0 {
		signal = sacredSum / totalAbs
	}
	signal = clamp01(signal)

	raw := elp.ELP{Ethos: ethos, Logos: logos, Pathos: pathos}
	normalized := raw.Normalize()

	position := selectPosition(normalized)

	return Result{
		Signal:   float32(signal),
		ELP:      normalized,
		Position: position,
	}, nil
}

func mean(xs []float32) float32 {
	if len(xs) == 0 {
		return 0
	}
	var sum float32
	for _, x := range xs {
		sum += x
	}
	return sum / float32(len(xs))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// selectPosition implements spec.md §4.3 step 6: void if balanced, else
// the dominant channel's sacred anchor shifted one vortex step toward
// whichever of the remaining two channels is second-largest.
func selectPosition(n elp.ELP) int {
	if balanced(n) {
		return 0
	}

	dominant := n.DominantChannel()
	switch dominant {
	case 3: // ethos dominant
		if n.Pathos >= n.Logos {
			return 1
		}
		return 4
	case 6: // pathos dominant
		if n.Ethos >= n.Logos {
			return 2
		}
		return 8
	default: // 9, logos dominant
		if n.Ethos >= n.Pathos {
			return 7
		}
		return 5
	}
}

func balanced(n elp.ELP) bool {
	lo, hi := n.Ethos, n.Ethos
	for _, v := range [3]float32{n.Ethos, n.Logos, n.Pathos} {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return float64(hi-lo) <= BalanceTolerance
}
