package altindex

import (
	"sync"
	"testing"

	"github.com/fluxcore/engine/internal/elp"
)

func TestPositionBoost(t *testing.T) {
	cases := map[int]float32{3: 1.5, 6: 1.5, 9: 1.5, 1: 1.0, 2: 1.0, 4: 1.0, 5: 1.0, 7: 1.0, 8: 1.0, 0: 0.8, 42: 0.8}
	for pos, want := range cases {
		if got := PositionBoost(pos); got != want {
			t.Errorf("PositionBoost(%d) = %v, want %v", pos, got, want)
		}
	}
}

func TestScoreFormula(t *testing.T) {
	a := Alternative{BaseConfidence: 1.0, ELPAlignment: 1.0, HistoricalRank: 2000, PositionBoost: 1.5}
	want := float32(0.4 + 0.3 + 0.2 + 0.15)
	if got := Score(a); abs32(got-want) > 1e-6 {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestSetSortsByCompositeScore(t *testing.T) {
	idx := New()
	alts := []Alternative{
		{TokenID: 1, BaseConfidence: 0.5, ELPAlignment: 0.5, HistoricalRank: 10},
		{TokenID: 2, BaseConfidence: 0.9, ELPAlignment: 0.9, HistoricalRank: 900},
	}
	elps := []elp.ELP{{Ethos: 1}, {Ethos: 1}}
	positions := []int{1, 9}
	if err := idx.Set(0, 100, alts, elps, positions); err != nil {
		t.Fatal(err)
	}
	best, err := idx.SelectBest(0)
	if err != nil {
		t.Fatal(err)
	}
	if best.TokenID != 2 {
		t.Errorf("SelectBest TokenID = %d, want 2 (higher composite score)", best.TokenID)
	}
}

func TestTieBreakDeterministic(t *testing.T) {
	idx := New()
	alts := []Alternative{
		{TokenID: 5, BaseConfidence: 0.5, ELPAlignment: 0.5, HistoricalRank: 10},
		{TokenID: 3, BaseConfidence: 0.5, ELPAlignment: 0.5, HistoricalRank: 10},
	}
	elps := []elp.ELP{{Ethos: 1}, {Ethos: 1}}
	positions := []int{1, 1}
	if err := idx.Set(0, 1, alts, elps, positions); err != nil {
		t.Fatal(err)
	}
	best, err := idx.SelectBest(0)
	if err != nil {
		t.Fatal(err)
	}
	if best.TokenID != 3 {
		t.Errorf("tie-break TokenID = %d, want 3 (lower token_id wins tie)", best.TokenID)
	}
}

func TestRankRecomputesAlignmentAndResorts(t *testing.T) {
	idx := New()
	alts := []Alternative{
		{TokenID: 1, BaseConfidence: 0.6},
		{TokenID: 2, BaseConfidence: 0.6},
	}
	elps := []elp.ELP{{Ethos: 1}, {Pathos: 1}}
	positions := []int{0, 0}
	if err := idx.Set(0, 1, alts, elps, positions); err != nil {
		t.Fatal(err)
	}
	if err := idx.Rank(0, elp.ELP{Pathos: 1}); err != nil {
		t.Fatal(err)
	}
	best, err := idx.SelectBest(0)
	if err != nil {
		t.Fatal(err)
	}
	if best.TokenID != 2 {
		t.Errorf("after ranking toward pathos, best TokenID = %d, want 2", best.TokenID)
	}
}

func TestUpdateHistoryStriping(t *testing.T) {
	idx := New()
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx.UpdateHistory(7, 1)
		}()
	}
	wg.Wait()
	if got := idx.HistoricalRank(7); got != 200 {
		t.Errorf("HistoricalRank(7) = %d, want 200", got)
	}
}

func TestUpdateHistoryClampsNonNegative(t *testing.T) {
	idx := New()
	idx.UpdateHistory(1, -5)
	if got := idx.HistoricalRank(1); got != 0 {
		t.Errorf("HistoricalRank = %d, want clamped to 0", got)
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
