// Package altindex implements the AlternativeIndex: a per-slot N-best
// list of alternative token interpretations with positional scoring,
// adapted from the cosine/top-N/threshold-assign idiom used to match
// posts to anchors in the teacher's embedding package.
package altindex

import "github.com/fluxcore/engine/internal/elp"

// N is the canonical number of alternatives tracked per slot.
const N = 5

// Alternative is one candidate interpretation of a sequence slot.
type Alternative struct {
	TokenID        uint32
	BaseConfidence float32
	ELPAlignment   float32
	HistoricalRank int
	PositionBoost  float32
}

// AlternativeEntry holds up to N alternatives for one sequence slot,
// sorted by composite score (descending).
type AlternativeEntry struct {
	TokenID      uint32
	Alternatives []Alternative
}

// PositionBoost returns the positional weight for an alternative landing
// at flux position p: 1.5 at the three sacred anchors, 1.0 at the six
// vortex positions, 0.8 at the void position (0) or any other value.
func PositionBoost(p int) float32 {
	switch p {
	case 3, 6, 9:
		return 1.5
	case 1, 2, 4, 5, 7, 8:
		return 1.0
	default:
		return 0.8
	}
}

// Score computes the composite score for an alternative:
//
//	0.4·base_confidence + 0.3·elp_alignment
//	+ 0.2·min(1, historical_rank/1000) + 0.1·position_boost
func Score(a Alternative) float32 {
	histTerm := float32(a.HistoricalRank) / 1000
	if histTerm > 1 {
		histTerm = 1
	}
	return 0.4*a.BaseConfidence + 0.3*a.ELPAlignment + 0.2*histTerm + 0.1*a.PositionBoost
}

// less implements the tie-break order: higher composite score first,
// then higher base_confidence, then lower token_id (deterministic).
func less(a, b Alternative) bool {
	sa, sb := Score(a), Score(b)
	if sa != sb {
		return sa > sb
	}
	if a.BaseConfidence != b.BaseConfidence {
		return a.BaseConfidence > b.BaseConfidence
	}
	return a.TokenID < b.TokenID
}

// queryELPFor recomputes cosine alignment against a query ELP — split
// out so Index.Rank and tests share one code path.
func queryELPFor(candidate elp.ELP, query elp.ELP) float32 {
	return elp.Cosine(candidate, query)
}
