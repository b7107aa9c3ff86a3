// Package weights implements AdaptiveWeights: the online gradient
// update of the geometric/ML/consensus combination weights.
package weights

import "sync"

// Target is the confidence level the update rule gradient-descends
// toward (spec.md §4.9).
const Target = 0.95

// DefaultLearningRate is η, spec.md §6's default.
const DefaultLearningRate = 0.01

const (
	minWeight = 0.05
	maxWeight = 0.9
)

// Weights is a snapshot of the three combination weights.
type Weights struct {
	Geometric float32
	ML        float32
	Consensus float32
}

// Contributions is the per-stage confidence observed for one request,
// used to apportion the gradient update across the three weights.
type Contributions struct {
	Geometric float32
	ML        float32
	Consensus float32
}

// Store holds the live weights behind a reader-writer lock: readers
// (the orchestrator, every request) vastly outnumber writers (one
// update per high-confidence result).
type Store struct {
	mu           sync.RWMutex
	w            Weights
	learningRate float32
}

// New creates a Store starting from an even three-way split.
func New(learningRate float32) *Store {
	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}
	return &Store{
		w:            Weights{Geometric: 1.0 / 3, ML: 1.0 / 3, Consensus: 1.0 / 3},
		learningRate: learningRate,
	}
}

// Snapshot returns the current weights.
func (s *Store) Snapshot() Weights {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w
}

// Update applies one gradient step toward Target given actual (the
// combined confidence that was observed) and the per-stage
// contributions that produced it.
func (s *Store) Update(actual float32, c Contributions) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := c.Geometric + c.ML + c.Consensus
	if total == 0 {
		return
	}

	err := Target - actual
	s.w.Geometric += s.learningRate * err * (c.Geometric / total)
	s.w.ML += s.learningRate * err * (c.ML / total)
	s.w.Consensus += s.learningRate * err * (c.Consensus / total)

	s.w.Geometric = clamp(s.w.Geometric)
	s.w.ML = clamp(s.w.ML)
	s.w.Consensus = clamp(s.w.Consensus)

	sum := s.w.Geometric + s.w.ML + s.w.Consensus
	if sum > 0 {
		s.w.Geometric /= sum
		s.w.ML /= sum
		s.w.Consensus /= sum
	}
}

func clamp(v float32) float32 {
	if v < minWeight {
		return minWeight
	}
	if v > maxWeight {
		return maxWeight
	}
	return v
}
