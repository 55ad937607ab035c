package features

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/neuroforge/erpbench/internal/epoch"
)

// noiseEpoch builds an epoch of gaussian noise with per-channel scale.
func noiseEpoch(rng *rand.Rand, label int, scales []float64, n int) epoch.Epoch {
	data := make([][]float64, len(scales))
	for c, s := range scales {
		ch := make([]float64, n)
		for i := range ch {
			ch[i] = rng.NormFloat64() * s
		}
		data[c] = ch
	}
	return epoch.Epoch{Label: label, Data: data}
}

func TestCovSymmetricAndShrunk(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	e := noiseEpoch(rng, 1, []float64{1, 2, 3}, 500)

	cov, err := Cov(e.Data, -1)
	if err != nil {
		t.Fatalf("Cov: %v", err)
	}
	p, _ := cov.Dims()
	if p != 3 {
		t.Fatalf("cov dims: %d", p)
	}
	// Variances should roughly track the channel scales squared.
	if cov.At(2, 2) < cov.At(0, 0) {
		t.Fatalf("variance ordering lost: %v vs %v", cov.At(2, 2), cov.At(0, 0))
	}

	// Full shrinkage collapses to the scaled identity.
	full, err := Cov(e.Data, 1)
	if err != nil {
		t.Fatalf("Cov(shrink=1): %v", err)
	}
	if d := full.At(0, 1); math.Abs(d) > 1e-12 {
		t.Fatalf("full shrinkage left off-diagonal %v", d)
	}
	if math.Abs(full.At(0, 0)-full.At(1, 1)) > 1e-9 {
		t.Fatalf("full shrinkage not isotropic: %v vs %v", full.At(0, 0), full.At(1, 1))
	}
}

func TestCovRejectsDegenerateInput(t *testing.T) {
	if _, err := Cov(nil, 0); err == nil {
		t.Fatal("expected error for empty epoch")
	}
	if _, err := Cov([][]float64{{1}}, 0); err == nil {
		t.Fatal("expected error for single-sample epoch")
	}
}

func TestVectorizerStandardizes(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	var epochs []epoch.Epoch
	var labels []int
	for i := 0; i < 50; i++ {
		epochs = append(epochs, noiseEpoch(rng, 1+i%2, []float64{3, 0.5}, 20))
		labels = append(labels, 1+i%2)
	}

	var v Vectorizer
	if err := v.Fit(epochs, labels); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	x, err := v.Transform(epochs[0])
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(x) != 40 {
		t.Fatalf("feature dim: got %d, want 40", len(x))
	}

	// Standardized training features should average near 0 with unit spread.
	d := len(x)
	mean := make([]float64, d)
	for _, e := range epochs {
		xe, err := v.Transform(e)
		if err != nil {
			t.Fatalf("Transform: %v", err)
		}
		for i, val := range xe {
			mean[i] += val
		}
	}
	for i := range mean {
		mean[i] /= float64(len(epochs))
		if math.Abs(mean[i]) > 1e-9 {
			t.Fatalf("feature %d mean %v after standardization", i, mean[i])
		}
	}
}

func TestERPCovAugmentsPrototypes(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var epochs []epoch.Epoch
	var labels []int
	for i := 0; i < 20; i++ {
		epochs = append(epochs, noiseEpoch(rng, 1+i%2, []float64{1, 1}, 50))
		labels = append(labels, 1+i%2)
	}

	c := ERPCov{Shrink: -1}
	if err := c.Fit(epochs, labels); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	cov, err := c.Transform(epochs[0])
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	// 2 channels, 2 class prototypes -> 6x6 augmented covariance.
	if p, _ := cov.Dims(); p != 6 {
		t.Fatalf("augmented dims: got %d, want 6", p)
	}
}

func TestCSPSeparatesVarianceClasses(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	var epochs []epoch.Epoch
	var labels []int
	// Class 1: variance concentrated on channel 0; class 2: on channel 1.
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			epochs = append(epochs, noiseEpoch(rng, 1, []float64{3, 0.5, 1}, 100))
			labels = append(labels, 1)
		} else {
			epochs = append(epochs, noiseEpoch(rng, 2, []float64{0.5, 3, 1}, 100))
			labels = append(labels, 2)
		}
	}

	csp := CSP{Components: 2, Shrink: -1}
	if err := csp.Fit(epochs, labels); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// First feature (class-1-maximal filter) should exceed the last
	// feature on class-1 epochs and vice versa, on average.
	var gap1, gap2 float64
	for i, e := range epochs {
		f, err := csp.Transform(e)
		if err != nil {
			t.Fatalf("Transform: %v", err)
		}
		if labels[i] == 1 {
			gap1 += f[0] - f[1]
		} else {
			gap2 += f[0] - f[1]
		}
	}
	if gap1 <= gap2 {
		t.Fatalf("csp features not discriminative: class1 gap %v, class2 gap %v", gap1, gap2)
	}
}

func TestCSPNeedsTwoClasses(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	var epochs []epoch.Epoch
	var labels []int
	for i := 0; i < 10; i++ {
		epochs = append(epochs, noiseEpoch(rng, 1, []float64{1, 1}, 50))
		labels = append(labels, 1)
	}
	csp := CSP{Components: 2}
	if err := csp.Fit(epochs, labels); err == nil {
		t.Fatal("expected error for single-class csp fit")
	}
}

func TestTangentSpaceZeroAtReference(t *testing.T) {
	// A single covariance is its own log-Euclidean mean; its tangent
	// vector at that reference is the zero vector.
	rng := rand.New(rand.NewSource(6))
	e := noiseEpoch(rng, 1, []float64{1, 2}, 200)
	cov, err := Cov(e.Data, -1)
	if err != nil {
		t.Fatalf("Cov: %v", err)
	}

	var ts TangentSpace
	if err := ts.Fit([]*mat.SymDense{cov}); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	vec, err := ts.Transform(cov)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("tangent dim: got %d, want 3", len(vec))
	}
	for i, v := range vec {
		if math.Abs(v) > 1e-8 {
			t.Fatalf("tangent component %d = %v at reference", i, v)
		}
	}
}

func TestSymLogExpRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e := noiseEpoch(rng, 1, []float64{1, 2, 0.5}, 300)
	cov, err := Cov(e.Data, -1)
	if err != nil {
		t.Fatalf("Cov: %v", err)
	}
	l, err := SymLog(cov)
	if err != nil {
		t.Fatalf("SymLog: %v", err)
	}
	back, err := SymExp(l)
	if err != nil {
		t.Fatalf("SymExp: %v", err)
	}
	p, _ := cov.Dims()
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			if math.Abs(back.At(i, j)-cov.At(i, j)) > 1e-8 {
				t.Fatalf("log/exp round trip drifted at (%d,%d): %v vs %v", i, j, back.At(i, j), cov.At(i, j))
			}
		}
	}
}
