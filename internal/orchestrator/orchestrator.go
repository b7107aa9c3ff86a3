package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fluxcore/engine/internal/altindex"
	"github.com/fluxcore/engine/internal/beam"
	"github.com/fluxcore/engine/internal/consensus"
	"github.com/fluxcore/engine/internal/elp"
	"github.com/fluxcore/engine/internal/engine"
	"github.com/fluxcore/engine/internal/flux"
	"github.com/fluxcore/engine/internal/lake"
	"github.com/fluxcore/engine/internal/perf"
	"github.com/fluxcore/engine/internal/vcp"
	"github.com/fluxcore/engine/internal/weights"
)

// sacredBoost multipliers, keyed by the literal sacred anchor position
// (spec.md §4.6 step 5).
var sacredBoost = map[int]float32{3: 1.10, 6: 1.10, 9: 1.25}

// defaultBeamWindow bounds how many recent requests' beams VCP's
// subspace analysis runs over (spec.md §4.4 treats this as a sliding
// window of beams, not a single-request snapshot).
const defaultBeamWindow = 16

// ConsensusTriggerConfidence is the confidence floor below which a
// consensus query is triggered regardless of mode.
const ConsensusTriggerConfidence = 0.7

// HighConfidenceUpdateThreshold is the confidence above which a
// successful result feeds back into AdaptiveWeights.
const HighConfidenceUpdateThreshold = 0.85

// HallucinationPenalty is applied to confidence when VCP classifies a
// result as hallucinated.
const HallucinationPenalty = 0.7

// Deadlines per mode (spec.md §5).
var modeDeadline = map[Mode]time.Duration{
	Fast:     100 * time.Millisecond,
	Balanced: 300 * time.Millisecond,
	Thorough: 500 * time.Millisecond,
}

// Orchestrator wires every collaborator and SPEC_FULL.md component
// into the end-to-end inference pipeline.
type Orchestrator struct {
	embedder  Embedder
	enhancer  Enhancer           // nil disables the ML stage entirely
	providers []ConsensusProvider
	geometric *engine.Engine
	vcp       *vcp.VCP
	consensus *consensus.Engine
	weightsSt *weights.Store
	perfTr    *perf.Tracker
	lakeQ     *lakeWriter // nil disables persistence
	now       func() time.Time
	pool      *WorkerPool

	beamMu         sync.Mutex
	beamWindow     []beam.Tensor
	beamWindowSize int
}

// Deps collects every collaborator and component the orchestrator
// needs; nil-able fields describe an optionally-degraded deployment.
type Deps struct {
	Embedder   Embedder
	Enhancer   Enhancer
	Providers  []ConsensusProvider
	Geometric  *engine.Engine
	VCP        *vcp.VCP
	Consensus  *consensus.Engine
	Weights    *weights.Store
	Perf       *perf.Tracker
	Lake       *lake.Lake
	Now        func() time.Time
	PoolSize   int // concurrent ML/consensus stages; default 8
	BeamWindow int // VCP's sliding beam-window size; default 16
}

// New builds an Orchestrator from deps, filling in required
// singletons that were left nil.
func New(deps Deps) *Orchestrator {
	if deps.Geometric == nil {
		deps.Geometric = engine.New(altindex.New(), flux.New("orchestrator"))
	}
	if deps.VCP == nil {
		deps.VCP = vcp.New(vcp.DefaultConfig())
	}
	if deps.Weights == nil {
		deps.Weights = weights.New(weights.DefaultLearningRate)
	}
	if deps.Perf == nil {
		deps.Perf = perf.New()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.PoolSize <= 0 {
		deps.PoolSize = 8
	}
	if deps.BeamWindow <= 0 {
		deps.BeamWindow = defaultBeamWindow
	}
	var lakeQ *lakeWriter
	if deps.Lake != nil {
		lakeQ = newLakeWriter(deps.Lake)
	}
	return &Orchestrator{
		embedder:       deps.Embedder,
		enhancer:       deps.Enhancer,
		providers:      deps.Providers,
		geometric:      deps.Geometric,
		vcp:            deps.VCP,
		consensus:      deps.Consensus,
		weightsSt:      deps.Weights,
		perfTr:         deps.Perf,
		lakeQ:          lakeQ,
		now:            deps.Now,
		pool:           NewWorkerPool(deps.PoolSize),
		beamWindowSize: deps.BeamWindow,
	}
}

// Close stops the background Lake-write drain goroutine, if one is
// running. Safe to call on an Orchestrator built without a Lake.
func (o *Orchestrator) Close() {
	if o.lakeQ != nil {
		o.lakeQ.Close()
	}
}

// stageResult is one inference stage's contribution before combination.
type stageResult struct {
	confidence float32
	elp        elp.ELP
	ran        bool
}

// Infer runs the full pipeline for text under mode, honoring ctx's
// deadline and the mode's own deadline, whichever is tighter.
func (o *Orchestrator) Infer(ctx context.Context, text string, mode Mode) (Output, error) {
	start := o.now()
	ctx, cancel := context.WithTimeout(ctx, modeDeadline[mode])
	defer cancel()

	embedding := o.obtainEmbedding(ctx, text)

	geo := o.geometric.Infer(embedding)
	geoStage := stageResult{confidence: geo.Confidence, elp: geo.ELP, ran: true}

	var mlStage stageResult
	if mode != Fast && o.enhancer != nil {
		mlStage = o.runEnhancer(ctx, text, geo)
	}

	if ctx.Err() != nil {
		return Output{}, ctx.Err()
	}

	combined := o.combine(geoStage, mlStage, stageResult{})
	position := geo.Position
	sacred := position != 0

	confidence := combined.confidence
	if sacred {
		confidence *= sacredBoost[position]
	}
	if confidence > 1 {
		confidence = 1
	}

	// Fold this request's own beam into the sliding window, run VCP's
	// real subspace analysis over it, and apply the checkpoint
	// intervention — which only ever touches beams sitting at a sacred
	// position (spec.md §4.4), i.e. exactly the ones this request's own
	// beam occupies when geo.Position is non-void.
	own := o.buildBeam(geo)
	window := o.pushBeam(own)
	sub := o.vcp.AnalyzeSubspace(window)
	intervened := o.vcp.Intervene(window, sub)
	afterIntervene := intervened[len(intervened)-1]

	// Use the lower of the window's strength and this request's own
	// signal: a freshly-started window (too few beams for
	// AnalyzeSubspace to say anything real) trivially reports full
	// strength, and this keeps a cold start from masking an
	// otherwise-weak result.
	strength := sub.Strength
	if geo.Signal < strength {
		strength = geo.Signal
	}
	var divergence float32
	if mlStage.ran {
		divergence = vcp.Divergence(geoStage.elp, mlStage.elp)
	}
	class := o.vcp.Classify(strength, divergence)
	hallucinated := class.Hallucinated
	if hallucinated {
		confidence *= HallucinationPenalty
	}
	// Apply the intervention's own confidence multiplier (×1.15,
	// spec.md §4.4) as a ratio rather than a floor: it is a no-op for
	// any beam Intervene didn't touch (own.Confidence == b.Confidence).
	if own.Confidence > 0 && afterIntervene.Confidence != own.Confidence {
		confidence *= afterIntervene.Confidence / own.Confidence
		if confidence > 1 {
			confidence = 1
		}
	}

	consensusUsed := false
	finalELP := combined.elp
	if o.shouldTriggerConsensus(confidence, position, mode) && o.consensus != nil && len(o.providers) > 0 {
		var res consensus.Result
		var queryErr error
		poolErr := o.pool.Submit(ctx, func() {
			res, queryErr = o.consensus.Query(ctx, text, o.providers)
		})
		if poolErr == nil && queryErr == nil {
			confidence = res.Confidence
			finalELP = res.ELP
			consensusUsed = true
			o.perfTr.RecordConsensusTrigger()
		}
	}

	if ctx.Err() != nil {
		return Output{}, ctx.Err()
	}

	elapsed := time.Since(start)
	out := Output{
		Position:         position,
		ELP:              finalELP,
		Signal:           geo.Signal,
		Confidence:       confidence,
		Sacred:           sacred,
		Mode:             mode,
		ConsensusUsed:    consensusUsed,
		Hallucinated:     hallucinated,
		ProcessingTimeMs: uint32(elapsed.Milliseconds()),
		TimestampMs:      uint64(o.now().UnixMilli()),
	}

	if o.lakeQ != nil {
		o.lakeQ.Enqueue(lake.Record{
			TimestampMs:  out.TimestampMs,
			Position:     out.Position,
			ELP:          out.ELP,
			Signal:       out.Signal,
			Confidence:   out.Confidence,
			Mode:         mode.String(),
			Hallucinated: out.Hallucinated,
		})
	}

	o.perfTr.RecordMode(mode.String(), elapsed, confidence)
	o.perfTr.RecordPosition(position, elapsed, confidence)

	if confidence > HighConfidenceUpdateThreshold {
		o.weightsSt.Update(confidence, weights.Contributions{
			Geometric: geoStage.confidence,
			ML:        mlStage.confidence,
		})
	}

	return out, nil
}

func (o *Orchestrator) obtainEmbedding(ctx context.Context, text string) []float32 {
	if o.embedder == nil {
		return nil
	}
	v, err := o.embedder.Embed(ctx, text)
	if err != nil {
		return nil
	}
	return v
}

func (o *Orchestrator) runEnhancer(ctx context.Context, text string, base engine.Result) stageResult {
	g, gctx := errgroup.WithContext(ctx)
	var result EnhancerResult
	g.Go(func() error {
		out := Output{Position: base.Position, ELP: base.ELP, Confidence: base.Confidence}
		return o.pool.Submit(gctx, func() {
			res, err := o.enhancer.Enhance(gctx, text, out)
			if err != nil {
				return // degrade gracefully: ML stage contributes nothing
			}
			result = res
		})
	})
	_ = g.Wait()
	if result.Confidence == 0 {
		return stageResult{}
	}
	return stageResult{confidence: result.Confidence, elp: result.ELP, ran: true}
}

// combine implements spec.md §4.6 step 3's weighted sum, using only
// the weights of stages that actually ran.
func (o *Orchestrator) combine(g, m, c stageResult) stageResult {
	w := o.weightsSt.Snapshot()
	var totalWeight, conf, eth, log, pat float32
	add := func(stage stageResult, weight float32) {
		if !stage.ran {
			return
		}
		totalWeight += weight
		conf += weight * stage.confidence
		eth += weight * stage.elp.Ethos
		log += weight * stage.elp.Logos
		pat += weight * stage.elp.Pathos
	}
	add(g, w.Geometric)
	add(m, w.ML)
	add(c, w.Consensus)
	if totalWeight == 0 {
		return g
	}
	return stageResult{
		confidence: conf / totalWeight,
		elp:        elp.ELP{Ethos: eth / totalWeight, Logos: log / totalWeight, Pathos: pat / totalWeight}.Normalize(),
		ran:        true,
	}
}

// shouldTriggerConsensus implements spec.md §4.6 step 7 literally:
// low confidence, a pathos-anchor (position 6) result, or Thorough mode.
func (o *Orchestrator) shouldTriggerConsensus(confidence float32, position int, mode Mode) bool {
	return confidence < ConsensusTriggerConfidence || position == 6 || mode == Thorough
}

// buildBeam turns a GeometricEngine result into the beam.Tensor VCP's
// subspace analysis operates on. A void result spreads evenly across
// all nine flux positions (no interpretation dominates); a non-void
// result concentrates entirely on the digit for its own literal sacred
// anchor, so Intervene's sacred-position check can fire on it.
func (o *Orchestrator) buildBeam(geo engine.Result) beam.Tensor {
	var digits [9]float32
	if geo.Position == 0 {
		for i := range digits {
			digits[i] = 1.0 / 9
		}
	} else {
		digits[geo.Position-1] = 1.0
	}
	return beam.Tensor{
		Position:   geo.Position,
		Digits:     digits,
		ELP:        geo.ELP,
		Signal:     geo.Signal,
		Confidence: geo.Confidence,
	}
}

// pushBeam appends b to the sliding beam window (bounded to
// beamWindowSize) and returns a snapshot copy safe to hand to VCP
// without holding the lock during analysis.
func (o *Orchestrator) pushBeam(b beam.Tensor) []beam.Tensor {
	o.beamMu.Lock()
	defer o.beamMu.Unlock()
	o.beamWindow = append(o.beamWindow, b)
	if len(o.beamWindow) > o.beamWindowSize {
		o.beamWindow = o.beamWindow[len(o.beamWindow)-o.beamWindowSize:]
	}
	window := make([]beam.Tensor, len(o.beamWindow))
	copy(window, o.beamWindow)
	return window
}
