package flux

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxcore/engine/internal/fluxerr"
)

// SnapshotState is the immutable value behind a Snapshot. Readers see a
// consistent view of all ten nodes for the lifetime of their borrow.
type SnapshotState struct {
	nodes [NumPositions]*FluxNode
}

// Snapshot is a zero-copy, O(1) read handle into the matrix at a point in
// time. Taking a new snapshot never blocks and never observes a
// partially-written state (CAS publication is atomic).
type Snapshot struct {
	state *SnapshotState
}

// Get returns the node at pos as it existed when the snapshot was taken.
func (s Snapshot) Get(pos int) (*FluxNode, error) {
	if err := validatePosition(pos); err != nil {
		return nil, fluxErrf(fluxerr.InvalidPosition, err)
	}
	return s.state.nodes[pos], nil
}

// Matrix is the versioned, concurrent 10-position semantic graph.
// Readers never block: all reads go through an atomically-swapped
// SnapshotState pointer. Writers clone-mutate-CAS, retrying on the
// current state if the CAS loses the race. The three sacred anchors are
// additionally cached in a lock-free 3-slot array so anchor() never
// dereferences the snapshot pointer at all.
type Matrix struct {
	subject string
	state   atomic.Pointer[SnapshotState]
	sacred  [3]atomic.Pointer[FluxNode]

	// updateLocks serialize update() read-modify-write calls per
	// position; insert() never takes these — it is pure lock-free CAS.
	updateLocks [NumPositions]sync.Mutex
}

// New creates ten nodes with the canonical vortex-doubling topology
// (1→2→4→8→7→5→1) and sacred cross-links to 3, 6, 9, and publishes the
// initial snapshot.
func New(subject string) *Matrix {
	m := &Matrix{subject: subject}

	state := &SnapshotState{}
	for pos := 0; pos < NumPositions; pos++ {
		state.nodes[pos] = newNode(pos, subject)
	}
	m.state.Store(state)
	for _, pos := range SacredPositions {
		m.sacred[sacredSlot(pos)].Store(state.nodes[pos])
	}
	return m
}

// vortexCycle is the non-sacred doubling circuit: 1→2→4→8→7→5→1.
var vortexCycle = [6]int{1, 2, 4, 8, 7, 5}

// tripleAnchor sends each vortex position to the sacred anchor reached by
// tripling it modulo 9 (9 itself substituting for a 0 remainder) — the
// standard 1-2-4-8-7-5 / 3-6-9 doubling-and-tripling circuit pairing.
func tripleAnchor(pos int) int {
	r := (pos * 3) % 9
	if r == 0 {
		r = 9
	}
	return r
}

func newNode(pos int, subject string) *FluxNode {
	var conns []Edge
	if !IsSacred(pos) {
		// Flow edges along the vortex cycle.
		for i, p := range vortexCycle {
			if p == pos {
				next := vortexCycle[(i+1)%len(vortexCycle)]
				conns = append(conns, Edge{To: next, Type: Flow})
				break
			}
		}
		conns = append(conns, Edge{To: tripleAnchor(pos), Type: Sacred})
	} else {
		// Sacred triangle: each anchor links to the other two.
		for _, s := range SacredPositions {
			if s != pos {
				conns = append(conns, Edge{To: s, Type: Sacred})
			}
		}
		// 9 is the apex of the doubling circuit: it cross-links to
		// every vortex position that triples onto 3 or 6's siblings
		// is already covered via tripleAnchor; additionally wire a
		// Subspace edge from 9 back to the cycle's midpoint for VCP's
		// checkpoint traversal.
		if pos == 9 {
			conns = append(conns, Edge{To: 8, Type: Subspace})
		}
	}

	return &FluxNode{
		BaseValue: uint8(pos),
		Position:  pos,
		Semantic: SemanticIndex{
			Base: subject,
		},
		Attributes: Attributes{
			Active:     true,
			LastAccess: time.Time{},
			UsageCount: 0,
		},
		Dynamics: Dynamics{
			EvolutionRate:  0.1,
			StabilityIndex: 1.0,
		},
		Connections: conns,
	}
}

// Snapshot returns an O(1), zero-copy handle to the current state.
func (m *Matrix) Snapshot() Snapshot {
	return Snapshot{state: m.state.Load()}
}

// Anchor returns the node at a sacred position directly from the 3-slot
// cache, without dereferencing the general snapshot pointer. Completes
// in O(1) regardless of concurrent writer activity elsewhere in the
// matrix.
func (m *Matrix) Anchor(pos int) (*FluxNode, error) {
	slot := sacredSlot(pos)
	if slot < 0 {
		return nil, fluxErrf(fluxerr.InvalidPosition, errOutOfSacredRange(pos))
	}
	return m.sacred[slot].Load(), nil
}

// Insert replaces the node at node.Position in a new snapshot and
// publishes it atomically. Concurrent inserts at different positions
// never contend; concurrent inserts at the same position race on the
// CAS and the loser retries against the latest state, so no update is
// lost (beyond ordinary last-writer-wins semantics).
func (m *Matrix) Insert(node *FluxNode) error {
	if err := validatePosition(node.Position); err != nil {
		return fluxErrf(fluxerr.InvalidPosition, err)
	}
	for {
		old := m.state.Load()
		next := &SnapshotState{nodes: old.nodes}
		next.nodes[node.Position] = node
		if m.state.CompareAndSwap(old, next) {
			if slot := sacredSlot(node.Position); slot >= 0 {
				m.sacred[slot].Store(node)
			}
			return nil
		}
		// Lost the race: retry against the now-current state.
	}
}

// Update performs a read-modify-write at pos: fn receives a clone of the
// current node and returns the replacement. Update() calls at the same
// position are serialized by a per-position mutex so fn always sees the
// latest committed node (unlike Insert, which can race against itself).
func (m *Matrix) Update(pos int, fn func(*FluxNode) *FluxNode) error {
	if err := validatePosition(pos); err != nil {
		return fluxErrf(fluxerr.InvalidPosition, err)
	}
	m.updateLocks[pos].Lock()
	defer m.updateLocks[pos].Unlock()

	cur := m.state.Load().nodes[pos]
	next := fn(cur.Clone())
	next.Position = pos
	next.BaseValue = uint8(pos)
	return m.Insert(next)
}

// Subject returns the subject string the matrix was constructed with.
func (m *Matrix) Subject() string { return m.subject }
