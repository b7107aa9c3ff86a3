// Package consensus implements ConsensusEngine: aggregation of
// external provider responses by a configurable strategy, with a
// per-provider deadline and rate limit.
package consensus

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fluxcore/engine/internal/elp"
	"github.com/fluxcore/engine/internal/fluxerr"
)

// Strategy selects how provider responses are aggregated.
type Strategy int

const (
	WeightedMean Strategy = iota
	Majority
	Median
)

// Response is a single provider's reply.
type Response struct {
	Provider   string
	Confidence float32
	ELP        elp.ELP
	Weight     float32 // used by WeightedMean; defaults to 1 if zero
}

// Result is the aggregated consensus output.
type Result struct {
	Confidence    float32
	ELP           elp.ELP
	ProviderCount int
}

// Provider is the collaborator interface external consensus sources
// implement: spec.md §6's ConsensusProvider.
type Provider interface {
	Name() string
	Query(ctx context.Context, text string) (Response, error)
}

// Engine runs the ConsensusEngine aggregation step.
type Engine struct {
	strategy Strategy
	deadline time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rateHz   float64
}

// New creates an Engine. rateHz bounds each provider's outbound call
// rate (spec.md §6's `ConsensusRateHz` option); deadline is the
// per-provider timeout (default 120ms).
func New(strategy Strategy, deadline time.Duration, rateHz float64) *Engine {
	if deadline <= 0 {
		deadline = 120 * time.Millisecond
	}
	return &Engine{
		strategy: strategy,
		deadline: deadline,
		limiters: make(map[string]*rate.Limiter),
		rateHz:   rateHz,
	}
}

func (e *Engine) limiterFor(name string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	lim, ok := e.limiters[name]
	if !ok {
		burst := 1
		lim = rate.NewLimiter(rate.Limit(e.rateHz), burst)
		e.limiters[name] = lim
	}
	return lim
}

// Query fans out to every provider concurrently, each bounded by its
// own deadline and rate limiter; providers that exceed the deadline or
// are cancelled are dropped from aggregation rather than failing the
// whole query.
func (e *Engine) Query(ctx context.Context, text string, providers []Provider) (Result, error) {
	if len(providers) == 0 {
		return Result{}, fluxerr.ProviderUnavailable
	}

	responses := make(chan Response, len(providers))
	var wg sync.WaitGroup
	for _, p := range providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			if e.rateHz > 0 {
				if err := e.limiterFor(p.Name()).Wait(ctx); err != nil {
					return
				}
			}
			pctx, cancel := context.WithTimeout(ctx, e.deadline)
			defer cancel()
			resp, err := p.Query(pctx, text)
			if err != nil {
				return
			}
			responses <- resp
		}(p)
	}
	go func() {
		wg.Wait()
		close(responses)
	}()

	var collected []Response
	for r := range responses {
		collected = append(collected, r)
	}

	if len(collected) == 0 {
		return Result{}, fluxerr.ProviderUnavailable
	}

	return e.aggregate(collected), nil
}

func (e *Engine) aggregate(responses []Response) Result {
	switch e.strategy {
	case Majority:
		if res, ok := majority(responses); ok {
			return res
		}
	case Median:
		if res, ok := median(responses); ok {
			return res
		}
	}
	return weightedMean(responses)
}

func weightedMean(responses []Response) Result {
	var totalWeight, conf, eth, log, pat float32
	for _, r := range responses {
		w := r.Weight
		if w == 0 {
			w = 1
		}
		totalWeight += w
		conf += w * r.Confidence
		eth += w * r.ELP.Ethos
		log += w * r.ELP.Logos
		pat += w * r.ELP.Pathos
	}
	if totalWeight == 0 {
		totalWeight = 1
	}
	return Result{
		Confidence:    conf / totalWeight,
		ELP:           elp.ELP{Ethos: eth / totalWeight, Logos: log / totalWeight, Pathos: pat / totalWeight}.Normalize(),
		ProviderCount: len(responses),
	}
}

// majority votes on the quantized ELP dominant channel; a tie (no
// strict plurality) falls back to weighted mean per spec.md §4.7.
func majority(responses []Response) (Result, bool) {
	counts := map[int]int{}
	sums := map[int][]Response{}
	for _, r := range responses {
		ch := r.ELP.DominantChannel()
		counts[ch]++
		sums[ch] = append(sums[ch], r)
	}

	best, bestCount, tie := 0, 0, false
	for ch, c := range counts {
		switch {
		case c > bestCount:
			best, bestCount, tie = ch, c, false
		case c == bestCount:
			tie = true
		}
	}
	if tie || bestCount == 0 {
		return Result{}, false
	}

	res := weightedMean(sums[best])
	res.ProviderCount = len(responses)
	return res, true
}

// median sorts by confidence and returns the middle response's full
// triple (ties on even-length inputs resolve to the lower-index
// candidate of the middle pair, keeping selection deterministic).
func median(responses []Response) (Result, bool) {
	sorted := make([]Response, len(responses))
	copy(sorted, responses)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Confidence < sorted[j].Confidence })
	mid := (len(sorted) - 1) / 2
	r := sorted[mid]
	return Result{Confidence: r.Confidence, ELP: r.ELP.Normalize(), ProviderCount: len(responses)}, true
}
