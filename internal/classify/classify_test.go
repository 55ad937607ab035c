package classify

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/neuroforge/erpbench/internal/features"
)

// gaussianRows draws n feature rows around the given center.
func gaussianRows(rng *rand.Rand, n int, center []float64, spread float64) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, len(center))
		for j, c := range center {
			row[j] = c + rng.NormFloat64()*spread
		}
		out[i] = row
	}
	return out
}

// twoClassData builds a linearly separable training set with labels 1/2.
func twoClassData(rng *rand.Rand, nPerClass int, spread float64) ([][]float64, []int) {
	a := gaussianRows(rng, nPerClass, []float64{-1, -1, 0}, spread)
	b := gaussianRows(rng, nPerClass, []float64{1, 1, 0}, spread)
	X := append(a, b...)
	y := make([]int, 0, 2*nPerClass)
	for i := 0; i < nPerClass; i++ {
		y = append(y, 1)
	}
	for i := 0; i < nPerClass; i++ {
		y = append(y, 2)
	}
	return X, y
}

func TestBinaryClasses(t *testing.T) {
	neg, pos, err := BinaryClasses([]int{2, 1, 2, 1})
	if err != nil {
		t.Fatalf("BinaryClasses: %v", err)
	}
	if neg != 1 || pos != 2 {
		t.Fatalf("got (%d, %d), want (1, 2)", neg, pos)
	}
	if _, _, err := BinaryClasses([]int{1, 1}); !errors.Is(err, features.ErrNumericalFailure) {
		t.Fatalf("single class: expected ErrNumericalFailure, got %v", err)
	}
	if _, _, err := BinaryClasses([]int{1, 2, 3}); err == nil {
		t.Fatal("three classes: expected error")
	}
}

func TestAUCPerfectAndReversed(t *testing.T) {
	y := []int{1, 1, 2, 2}
	auc, err := AUC(y, []float64{0.1, 0.2, 0.8, 0.9}, 2)
	if err != nil {
		t.Fatalf("AUC: %v", err)
	}
	if auc != 1 {
		t.Fatalf("perfect ranking: got %v, want 1", auc)
	}
	auc, err = AUC(y, []float64{0.9, 0.8, 0.2, 0.1}, 2)
	if err != nil {
		t.Fatalf("AUC: %v", err)
	}
	if auc != 0 {
		t.Fatalf("reversed ranking: got %v, want 0", auc)
	}
}

func TestAUCTiesGiveHalf(t *testing.T) {
	y := []int{1, 2, 1, 2}
	auc, err := AUC(y, []float64{0.5, 0.5, 0.5, 0.5}, 2)
	if err != nil {
		t.Fatalf("AUC: %v", err)
	}
	if math.Abs(auc-0.5) > 1e-12 {
		t.Fatalf("all-tied scores: got %v, want 0.5", auc)
	}
}

func TestAUCNeedsBothClasses(t *testing.T) {
	if _, err := AUC([]int{1, 1}, []float64{0.1, 0.2}, 2); !errors.Is(err, features.ErrNumericalFailure) {
		t.Fatalf("expected ErrNumericalFailure, got %v", err)
	}
}

func TestLogRegSeparatesGaussians(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	X, y := twoClassData(rng, 50, 0.5)

	var m LogReg
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	Xt, yt := twoClassData(rng, 30, 0.5)
	scores := make([]float64, len(Xt))
	for i, x := range Xt {
		s, err := m.Decision(x)
		if err != nil {
			t.Fatalf("Decision: %v", err)
		}
		scores[i] = s
	}
	auc, err := AUC(yt, scores, 2)
	if err != nil {
		t.Fatalf("AUC: %v", err)
	}
	if auc < 0.95 {
		t.Fatalf("separable data scored %v", auc)
	}
}

func TestLDASeparatesGaussians(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	X, y := twoClassData(rng, 50, 0.5)

	var m LDA
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	Xt, yt := twoClassData(rng, 30, 0.5)
	scores := make([]float64, len(Xt))
	for i, x := range Xt {
		s, err := m.Decision(x)
		if err != nil {
			t.Fatalf("Decision: %v", err)
		}
		scores[i] = s
	}
	auc, err := AUC(yt, scores, 2)
	if err != nil {
		t.Fatalf("AUC: %v", err)
	}
	if auc < 0.95 {
		t.Fatalf("separable data scored %v", auc)
	}
}

func TestLDAInsufficientPerClass(t *testing.T) {
	X := [][]float64{{0, 1}, {1, 0}, {2, 2}}
	y := []int{1, 2, 2}
	var m LDA
	if err := m.Fit(X, y); !errors.Is(err, features.ErrNumericalFailure) {
		t.Fatalf("one epoch in a class: expected ErrNumericalFailure, got %v", err)
	}
}

// spdAround builds an SPD matrix diag(d) + small noise congruence.
func spdAround(rng *rand.Rand, diag []float64) *mat.SymDense {
	p := len(diag)
	s := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		s.SetSym(i, i, diag[i]*(1+0.05*rng.NormFloat64()))
		for j := i + 1; j < p; j++ {
			s.SetSym(i, j, 0.02*rng.NormFloat64())
		}
	}
	return s
}

func TestMDMSeparatesCovarianceClasses(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	var covs []*mat.SymDense
	var y []int
	for i := 0; i < 30; i++ {
		covs = append(covs, spdAround(rng, []float64{4, 1}))
		y = append(y, 1)
		covs = append(covs, spdAround(rng, []float64{1, 4}))
		y = append(y, 2)
	}

	var m MDM
	if err := m.Fit(covs, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	scores := make([]float64, len(covs))
	for i, c := range covs {
		s, err := m.Decision(c)
		if err != nil {
			t.Fatalf("Decision: %v", err)
		}
		scores[i] = s
	}
	auc, err := AUC(y, scores, 2)
	if err != nil {
		t.Fatalf("AUC: %v", err)
	}
	if auc < 0.95 {
		t.Fatalf("separable covariances scored %v", auc)
	}
}

func TestDecisionBeforeFit(t *testing.T) {
	var lr LogReg
	if _, err := lr.Decision([]float64{1}); !errors.Is(err, features.ErrNumericalFailure) {
		t.Fatalf("expected ErrNumericalFailure, got %v", err)
	}
	var lda LDA
	if _, err := lda.Decision([]float64{1}); !errors.Is(err, features.ErrNumericalFailure) {
		t.Fatalf("expected ErrNumericalFailure, got %v", err)
	}
	var mdm MDM
	if _, err := mdm.Decision(mat.NewSymDense(1, []float64{1})); !errors.Is(err, features.ErrNumericalFailure) {
		t.Fatalf("expected ErrNumericalFailure, got %v", err)
	}
}
