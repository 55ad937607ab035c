package classify

import (
	"fmt"
	"math"

	"github.com/neuroforge/erpbench/internal/features"
)

// #region logistic-regression

// LogReg is L2-regularized binary logistic regression trained by
// full-batch gradient descent. Deterministic: no random initialization,
// fixed iteration count.
type LogReg struct {
	L2        float64 // regularization strength, default 1e-2
	Iters     int     // gradient steps, default 300
	LearnRate float64 // step size, default 0.1

	w        []float64
	b        float64
	neg, pos int
}

// Fit trains on feature rows X with binary labels y.
func (m *LogReg) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("%w: logistic regression fit on %d rows / %d labels", features.ErrNumericalFailure, len(X), len(y))
	}
	var err error
	m.neg, m.pos, err = BinaryClasses(y)
	if err != nil {
		return err
	}

	l2 := m.L2
	if l2 == 0 {
		l2 = 1e-2
	}
	iters := m.Iters
	if iters == 0 {
		iters = 300
	}
	lr := m.LearnRate
	if lr == 0 {
		lr = 0.1
	}

	d := len(X[0])
	m.w = make([]float64, d)
	m.b = 0
	n := float64(len(X))

	t := make([]float64, len(y))
	for i, l := range y {
		if l == m.pos {
			t[i] = 1
		}
	}

	gw := make([]float64, d)
	for it := 0; it < iters; it++ {
		for j := range gw {
			gw[j] = l2 * m.w[j]
		}
		var gb float64
		for i, row := range X {
			if len(row) != d {
				return fmt.Errorf("%w: feature row %d has %d values, expected %d", features.ErrNumericalFailure, i, len(row), d)
			}
			err := sigmoid(m.decision(row)) - t[i]
			for j, x := range row {
				gw[j] += err * x / n
			}
			gb += err / n
		}
		for j := range m.w {
			m.w[j] -= lr * gw[j]
		}
		m.b -= lr * gb
	}
	return nil
}

// Decision is the signed distance to the separating hyperplane; positive
// leans toward the positive class.
func (m *LogReg) Decision(x []float64) (float64, error) {
	if m.w == nil {
		return 0, fmt.Errorf("%w: logistic regression used before fit", features.ErrNumericalFailure)
	}
	if len(x) != len(m.w) {
		return 0, fmt.Errorf("%w: feature vector has %d values, fit saw %d", features.ErrNumericalFailure, len(x), len(m.w))
	}
	return m.decision(x), nil
}

func (m *LogReg) decision(x []float64) float64 {
	s := m.b
	for j, v := range x {
		s += m.w[j] * v
	}
	return s
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Classes returns the fitted (negative, positive) label codes.
func (m *LogReg) Classes() (neg, pos int) { return m.neg, m.pos }

// #endregion logistic-regression
