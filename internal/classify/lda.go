package classify

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/neuroforge/erpbench/internal/features"
)

// #region shrinkage-lda

// LDA is regularized linear discriminant analysis: class means with a
// pooled within-class covariance shrunk toward the scaled identity
// (Ledoit-Wolf automatic intensity by default), solved via Cholesky.
type LDA struct {
	Shrink float64 // shrinkage intensity; 0 selects automatic

	w        []float64
	b        float64
	neg, pos int
}

// Fit estimates the discriminant from feature rows X with binary labels y.
func (m *LDA) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("%w: lda fit on %d rows / %d labels", features.ErrNumericalFailure, len(X), len(y))
	}
	var err error
	m.neg, m.pos, err = BinaryClasses(y)
	if err != nil {
		return err
	}
	d := len(X[0])

	meanNeg, nNeg := classMean(X, y, m.neg, d)
	meanPos, nPos := classMean(X, y, m.pos, d)
	if nNeg < 2 || nPos < 2 {
		return fmt.Errorf("%w: lda needs >= 2 epochs per class (%d neg, %d pos)", features.ErrNumericalFailure, nNeg, nPos)
	}

	// Pooled within-class covariance: remove each class mean, then take the
	// covariance over the union. Laid out feature-major for features.Cov.
	centered := make([][]float64, d)
	for j := 0; j < d; j++ {
		centered[j] = make([]float64, len(X))
	}
	for i, row := range X {
		if len(row) != d {
			return fmt.Errorf("%w: feature row %d has %d values, expected %d", features.ErrNumericalFailure, i, len(row), d)
		}
		mean := meanNeg
		if y[i] == m.pos {
			mean = meanPos
		}
		for j, v := range row {
			centered[j][i] = v - mean[j]
		}
	}
	shrink := m.Shrink
	if shrink == 0 {
		shrink = -1 // automatic
	}
	cov, err := features.Cov(centered, shrink)
	if err != nil {
		return err
	}

	// Solve cov * w = meanPos - meanNeg.
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return fmt.Errorf("%w: pooled covariance is not positive definite", features.ErrNumericalFailure)
	}
	diff := mat.NewVecDense(d, nil)
	for j := 0; j < d; j++ {
		diff.SetVec(j, meanPos[j]-meanNeg[j])
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, diff); err != nil {
		return fmt.Errorf("%w: lda solve: %v", features.ErrNumericalFailure, err)
	}

	m.w = make([]float64, d)
	m.b = 0
	for j := 0; j < d; j++ {
		m.w[j] = sol.AtVec(j)
		m.b -= sol.AtVec(j) * (meanPos[j] + meanNeg[j]) / 2
	}
	return nil
}

// Decision is the signed discriminant value; positive leans toward the
// positive class.
func (m *LDA) Decision(x []float64) (float64, error) {
	if m.w == nil {
		return 0, fmt.Errorf("%w: lda used before fit", features.ErrNumericalFailure)
	}
	if len(x) != len(m.w) {
		return 0, fmt.Errorf("%w: feature vector has %d values, fit saw %d", features.ErrNumericalFailure, len(x), len(m.w))
	}
	s := m.b
	for j, v := range x {
		s += m.w[j] * v
	}
	return s, nil
}

// Classes returns the fitted (negative, positive) label codes.
func (m *LDA) Classes() (neg, pos int) { return m.neg, m.pos }

func classMean(X [][]float64, y []int, class, d int) ([]float64, int) {
	mean := make([]float64, d)
	var n int
	for i, row := range X {
		if y[i] != class {
			continue
		}
		for j, v := range row {
			mean[j] += v
		}
		n++
	}
	if n > 0 {
		for j := range mean {
			mean[j] /= float64(n)
		}
	}
	return mean, n
}

// #endregion shrinkage-lda
