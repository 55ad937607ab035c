package classify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/neuroforge/erpbench/internal/features"
)

// #region mdm

// MDM is minimum-distance-to-mean classification on covariance matrices:
// fit computes one log-Euclidean class mean per class, and the decision
// value is the distance margin between the negative and positive means.
type MDM struct {
	logMeanNeg *mat.SymDense
	logMeanPos *mat.SymDense
	neg, pos   int
}

// Fit computes the class mean covariances.
func (m *MDM) Fit(covs []*mat.SymDense, y []int) error {
	if len(covs) == 0 || len(covs) != len(y) {
		return fmt.Errorf("%w: mdm fit on %d matrices / %d labels", features.ErrNumericalFailure, len(covs), len(y))
	}
	var err error
	m.neg, m.pos, err = BinaryClasses(y)
	if err != nil {
		return err
	}

	meanNeg, err := features.LogEuclideanMean(pick(covs, y, m.neg))
	if err != nil {
		return fmt.Errorf("negative class mean: %w", err)
	}
	meanPos, err := features.LogEuclideanMean(pick(covs, y, m.pos))
	if err != nil {
		return fmt.Errorf("positive class mean: %w", err)
	}
	if m.logMeanNeg, err = features.SymLog(meanNeg); err != nil {
		return err
	}
	if m.logMeanPos, err = features.SymLog(meanPos); err != nil {
		return err
	}
	return nil
}

// Decision returns d(c, meanNeg) - d(c, meanPos) in the log-Euclidean
// metric: positive when c sits closer to the positive class mean.
func (m *MDM) Decision(c *mat.SymDense) (float64, error) {
	if m.logMeanNeg == nil {
		return 0, fmt.Errorf("%w: mdm used before fit", features.ErrNumericalFailure)
	}
	logC, err := features.SymLog(c)
	if err != nil {
		return 0, err
	}
	return frobDist(logC, m.logMeanNeg) - frobDist(logC, m.logMeanPos), nil
}

// Classes returns the fitted (negative, positive) label codes.
func (m *MDM) Classes() (neg, pos int) { return m.neg, m.pos }

func pick(covs []*mat.SymDense, y []int, class int) []*mat.SymDense {
	var out []*mat.SymDense
	for i, c := range covs {
		if y[i] == class {
			out = append(out, c)
		}
	}
	return out
}

func frobDist(a, b *mat.SymDense) float64 {
	p, _ := a.Dims()
	var sum float64
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			d := a.At(i, j) - b.At(i, j)
			sum += d * d
		}
	}
	return math.Sqrt(sum)
}

// #endregion mdm
