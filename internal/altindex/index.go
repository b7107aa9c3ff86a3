package altindex

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fluxcore/engine/internal/elp"
)

const historyStripes = 16

// historyShard is one stripe of the historical-rank table. Writes to
// different token IDs that hash to different shards never contend.
type historyShard struct {
	mu    sync.Mutex
	ranks map[uint32]int
}

// slotState is the per-slot mutable state: the public AlternativeEntry
// plus the per-alternative ELP coordinates and flux positions needed to
// re-rank (neither is part of the spec's wire-level Alternative struct,
// so they are tracked alongside it rather than inside it).
type slotState struct {
	mu       sync.RWMutex
	entry    AlternativeEntry
	elps     []elp.ELP
	position []int
}

// Index is the AlternativeIndex: a concurrent map of slot → N-best
// alternatives, with striped per-token history writes. Reads are not
// lock-free: they take the per-slot RWMutex's read lock, so readers
// never contend with each other or with writers to other slots, but do
// wait for a writer re-ranking the same slot.
type Index struct {
	mu      sync.RWMutex
	slots   map[int]*slotState
	history [historyStripes]historyShard
}

// New creates an empty AlternativeIndex.
func New() *Index {
	idx := &Index{slots: make(map[int]*slotState)}
	for i := range idx.history {
		idx.history[i].ranks = make(map[uint32]int)
	}
	return idx
}

func shardFor(tokenID uint32) int {
	return int(tokenID % historyStripes)
}

// Set installs the alternatives for a slot, each paired with its ELP
// coordinate and current flux position (used to compute PositionBoost
// and for later re-ranking via Rank). Alternatives are sorted
// immediately using the composite score.
func (idx *Index) Set(slot int, tokenID uint32, alts []Alternative, elps []elp.ELP, positions []int) error {
	if len(alts) != len(elps) || len(alts) != len(positions) {
		return fmt.Errorf("altindex: alts/elps/positions length mismatch (%d/%d/%d)", len(alts), len(elps), len(positions))
	}
	for i := range alts {
		alts[i].PositionBoost = PositionBoost(positions[i])
	}

	st := &slotState{
		entry:    AlternativeEntry{TokenID: tokenID, Alternatives: append([]Alternative(nil), alts...)},
		elps:     append([]elp.ELP(nil), elps...),
		position: append([]int(nil), positions...),
	}
	sortSlot(st)

	idx.mu.Lock()
	idx.slots[slot] = st
	idx.mu.Unlock()
	return nil
}

func sortSlot(st *slotState) {
	type idxPair struct {
		alt Alternative
		e   elp.ELP
		pos int
	}
	pairs := make([]idxPair, len(st.entry.Alternatives))
	for i := range st.entry.Alternatives {
		pairs[i] = idxPair{st.entry.Alternatives[i], st.elps[i], st.position[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return less(pairs[i].alt, pairs[j].alt) })
	for i, p := range pairs {
		st.entry.Alternatives[i] = p.alt
		st.elps[i] = p.e
		st.position[i] = p.pos
	}
}

// Rank recomputes elp_alignment for every alternative in slot as the
// cosine similarity against queryELP, then re-sorts by composite score.
func (idx *Index) Rank(slot int, query elp.ELP) error {
	idx.mu.RLock()
	st, ok := idx.slots[slot]
	idx.mu.RUnlock()
	if !ok {
		return fmt.Errorf("altindex: no entry for slot %d", slot)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for i := range st.entry.Alternatives {
		st.entry.Alternatives[i].ELPAlignment = queryELPFor(st.elps[i], query)
	}
	sortSlot(st)
	return nil
}

// SelectBest returns the head alternative for slot — O(1) after Rank.
func (idx *Index) SelectBest(slot int) (Alternative, error) {
	idx.mu.RLock()
	st, ok := idx.slots[slot]
	idx.mu.RUnlock()
	if !ok {
		return Alternative{}, fmt.Errorf("altindex: no entry for slot %d", slot)
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if len(st.entry.Alternatives) == 0 {
		return Alternative{}, fmt.Errorf("altindex: slot %d has no alternatives", slot)
	}
	return st.entry.Alternatives[0], nil
}

// Entry returns a copy of the full AlternativeEntry for slot.
func (idx *Index) Entry(slot int) (AlternativeEntry, error) {
	idx.mu.RLock()
	st, ok := idx.slots[slot]
	idx.mu.RUnlock()
	if !ok {
		return AlternativeEntry{}, fmt.Errorf("altindex: no entry for slot %d", slot)
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	cp := AlternativeEntry{TokenID: st.entry.TokenID, Alternatives: append([]Alternative(nil), st.entry.Alternatives...)}
	return cp, nil
}

// UpdateHistory adjusts the historical rank for tokenID by delta. Writes
// for different tokens are serialized only within their stripe
// (tokenID % 16), so unrelated tokens never contend.
func (idx *Index) UpdateHistory(tokenID uint32, delta int) int {
	shard := &idx.history[shardFor(tokenID)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.ranks[tokenID] += delta
	if shard.ranks[tokenID] < 0 {
		shard.ranks[tokenID] = 0
	}
	return shard.ranks[tokenID]
}

// HistoricalRank returns the current historical rank for tokenID (0 if
// never observed).
func (idx *Index) HistoricalRank(tokenID uint32) int {
	shard := &idx.history[shardFor(tokenID)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return shard.ranks[tokenID]
}
