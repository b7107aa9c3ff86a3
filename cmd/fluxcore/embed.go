package main

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"os"

	"github.com/fluxcore/engine/internal/geometry"
)

// hashEmbedder is a deterministic, dependency-free stand-in for the
// real Embedder collaborator (spec.md treats Embedder as external and
// opaque): it fills each of the canonical width's slots with the sine
// of an FNV-64a hash of the whole text plus that slot's index, so
// `fluxcore infer` has something to drive
// SacredGeometry with when no --embedding file is given. It carries no
// semantic meaning of its own.
type hashEmbedder struct{}

func (hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}
	v := make([]float32, geometry.CanonicalWidth)
	h := fnv.New64a()
	for i := range v {
		h.Reset()
		h.Write([]byte(text))
		h.Write([]byte{byte(i), byte(i >> 8)})
		sum := h.Sum64()
		v[i] = float32(math.Sin(float64(sum)))
	}
	return v, nil
}

// loadEmbedding reads a JSON array of floats from path, the pre-computed
// embedding bypass spec.md §6 documents as an alternative to calling the
// Embedder.
func loadEmbedding(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}
