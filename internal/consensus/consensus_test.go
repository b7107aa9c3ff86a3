package consensus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fluxcore/engine/internal/elp"
)

type fakeProvider struct {
	name  string
	resp  Response
	err   error
	delay time.Duration
}

func (f fakeProvider) Name() string { return f.name }

func (f fakeProvider) Query(ctx context.Context, text string) (Response, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Response{}, f.err
	}
	return f.resp, nil
}

func TestQueryWeightedMean(t *testing.T) {
	e := New(WeightedMean, 50*time.Millisecond, 0)
	providers := []Provider{
		fakeProvider{name: "a", resp: Response{Confidence: 1.0, ELP: elp.ELP{Ethos: 1}, Weight: 1}},
		fakeProvider{name: "b", resp: Response{Confidence: 0.0, ELP: elp.ELP{Pathos: 1}, Weight: 1}},
	}
	res, err := e.Query(context.Background(), "x", providers)
	if err != nil {
		t.Fatal(err)
	}
	if res.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want 0.5", res.Confidence)
	}
	if res.ProviderCount != 2 {
		t.Errorf("ProviderCount = %d, want 2", res.ProviderCount)
	}
}

func TestQueryDropsTimedOutProviders(t *testing.T) {
	e := New(WeightedMean, 10*time.Millisecond, 0)
	providers := []Provider{
		fakeProvider{name: "slow", resp: Response{Confidence: 1.0}, delay: 100 * time.Millisecond},
		fakeProvider{name: "fast", resp: Response{Confidence: 0.8, ELP: elp.ELP{Ethos: 1}}},
	}
	res, err := e.Query(context.Background(), "x", providers)
	if err != nil {
		t.Fatal(err)
	}
	if res.ProviderCount != 1 {
		t.Errorf("ProviderCount = %d, want 1 (slow provider dropped)", res.ProviderCount)
	}
}

func TestQueryAllProvidersFailReturnsError(t *testing.T) {
	e := New(WeightedMean, 50*time.Millisecond, 0)
	providers := []Provider{
		fakeProvider{name: "a", err: errors.New("boom")},
	}
	if _, err := e.Query(context.Background(), "x", providers); err == nil {
		t.Fatal("expected error when every provider fails")
	}
}

func TestQueryNoProvidersReturnsError(t *testing.T) {
	e := New(WeightedMean, 50*time.Millisecond, 0)
	if _, err := e.Query(context.Background(), "x", nil); err == nil {
		t.Fatal("expected error for empty provider set")
	}
}

func TestMajorityPicksDominantChannel(t *testing.T) {
	e := New(Majority, 50*time.Millisecond, 0)
	providers := []Provider{
		fakeProvider{name: "a", resp: Response{Confidence: 0.9, ELP: elp.ELP{Ethos: 1}}},
		fakeProvider{name: "b", resp: Response{Confidence: 0.8, ELP: elp.ELP{Ethos: 0.9, Pathos: 0.1}}},
		fakeProvider{name: "c", resp: Response{Confidence: 0.1, ELP: elp.ELP{Pathos: 1}}},
	}
	res, err := e.Query(context.Background(), "x", providers)
	if err != nil {
		t.Fatal(err)
	}
	if res.ELP.DominantChannel() != 3 {
		t.Errorf("dominant channel = %d, want 3 (ethos, the majority)", res.ELP.DominantChannel())
	}
}

func TestMajorityTieFallsBackToWeightedMean(t *testing.T) {
	e := New(Majority, 50*time.Millisecond, 0)
	providers := []Provider{
		fakeProvider{name: "a", resp: Response{Confidence: 1.0, ELP: elp.ELP{Ethos: 1}}},
		fakeProvider{name: "b", resp: Response{Confidence: 0.0, ELP: elp.ELP{Pathos: 1}}},
	}
	res, err := e.Query(context.Background(), "x", providers)
	if err != nil {
		t.Fatal(err)
	}
	if res.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want 0.5 (weighted-mean tie-break)", res.Confidence)
	}
}

func TestMedianPicksMiddleConfidence(t *testing.T) {
	e := New(Median, 50*time.Millisecond, 0)
	providers := []Provider{
		fakeProvider{name: "a", resp: Response{Confidence: 0.1}},
		fakeProvider{name: "b", resp: Response{Confidence: 0.5}},
		fakeProvider{name: "c", resp: Response{Confidence: 0.9}},
	}
	res, err := e.Query(context.Background(), "x", providers)
	if err != nil {
		t.Fatal(err)
	}
	if res.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want 0.5 (median)", res.Confidence)
	}
}
