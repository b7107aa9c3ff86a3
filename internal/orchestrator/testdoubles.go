package orchestrator

import (
	"context"
	"time"
)

// FixedEmbedder is a deterministic Embedder for tests: it always
// returns the same vector regardless of input text, optionally after
// a fixed delay to exercise deadline handling.
type FixedEmbedder struct {
	Vector []float32
	Delay  time.Duration
	Err    error
}

func (f *FixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Vector, nil
}

// FixedEnhancer is a deterministic Enhancer for tests: it always
// returns the same confidence/ELP contribution, optionally after a
// fixed delay.
type FixedEnhancer struct {
	Result EnhancerResult
	Delay  time.Duration
	Err    error
}

func (f *FixedEnhancer) Enhance(ctx context.Context, text string, base Output) (EnhancerResult, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return EnhancerResult{}, ctx.Err()
		}
	}
	if f.Err != nil {
		return EnhancerResult{}, f.Err
	}
	return f.Result, nil
}

// FixedProvider is a deterministic ConsensusProvider for tests.
type FixedProvider struct {
	ProviderName string
	Resp         ConsensusResponse
	Delay        time.Duration
	Err          error
}

func (f *FixedProvider) Name() string { return f.ProviderName }

func (f *FixedProvider) Query(ctx context.Context, text string) (ConsensusResponse, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return ConsensusResponse{}, ctx.Err()
		}
	}
	if f.Err != nil {
		return ConsensusResponse{}, f.Err
	}
	return f.Resp, nil
}
