package geometry

import (
	"testing"
)

func uniform(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEncodeZeroVectorIsVoidWithDefaultELP(t *testing.T) {
	v := make([]float32, CanonicalWidth) // all zero
	res, err := Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	if res.Position != 0 {
		t.Errorf("Position = %d, want 0 (void)", res.Position)
	}
	if res.Signal != 0 {
		t.Errorf("Signal = %v, want 0", res.Signal)
	}
	want := float32(1.0 / 3)
	if abs(res.ELP.Ethos-want) > 1e-6 || abs(res.ELP.Logos-want) > 1e-6 || abs(res.ELP.Pathos-want) > 1e-6 {
		t.Errorf("ELP = %+v, want (1/3,1/3,1/3)", res.ELP)
	}
}

func TestEncodeDominantLogosYieldsSacredNine(t *testing.T) {
	v := make([]float32, CanonicalWidth)
	third := CanonicalWidth / 3
	for i := 2 * third; i < CanonicalWidth; i++ {
		v[i] = 1.0
	}
	res, err := Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	if res.ELP.DominantChannel() != 9 {
		t.Fatalf("dominant channel = %d, want 9", res.ELP.DominantChannel())
	}
	if res.Position != 7 && res.Position != 5 {
		t.Errorf("Position = %d, want 7 or 5 (logos-dominant vortex shift)", res.Position)
	}
}

func TestEncodeRejectsEmpty(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Error("expected error for empty embedding")
	}
}

func TestProjectDownSamplesAndUpSamples(t *testing.T) {
	big := uniform(768, 2.0)
	down := Project(big, 384)
	if len(down) != 384 {
		t.Fatalf("len(down) = %d, want 384", len(down))
	}
	for _, x := range down {
		if x != 2.0 {
			t.Errorf("mean-pooled value = %v, want 2.0", x)
		}
	}

	small := uniform(100, 3.0)
	up := Project(small, 384)
	if len(up) != 384 {
		t.Fatalf("len(up) = %d, want 384", len(up))
	}
	if up[0] != 3.0 || up[383] != 0 {
		t.Error("zero-pad did not preserve the original prefix and zero-fill the rest")
	}
}

func TestEncodeProjectsNonCanonicalWidth(t *testing.T) {
	v := uniform(512, 0.5)
	if _, err := Encode(v); err != nil {
		t.Fatalf("Encode with non-canonical width: %v", err)
	}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
