package features

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// #region tangent-space

// TangentSpace projects SPD covariance matrices from their curved manifold
// onto the flat tangent plane at a reference point, yielding Euclidean
// vectors that ordinary linear classifiers can consume. The reference is
// the log-Euclidean mean of the training covariances.
type TangentSpace struct {
	refInvSqrt *mat.SymDense
}

// Fit computes the reference point from training covariances.
func (t *TangentSpace) Fit(covs []*mat.SymDense) error {
	ref, err := LogEuclideanMean(covs)
	if err != nil {
		return fmt.Errorf("tangent space reference: %w", err)
	}
	t.refInvSqrt, err = SymInvSqrt(ref)
	if err != nil {
		return fmt.Errorf("tangent space whitening: %w", err)
	}
	return nil
}

// Transform maps one covariance to its tangent vector
// vec(logm(Cref^-1/2 C Cref^-1/2)).
func (t *TangentSpace) Transform(c *mat.SymDense) ([]float64, error) {
	if t.refInvSqrt == nil {
		return nil, fmt.Errorf("%w: tangent space used before fit", ErrNumericalFailure)
	}
	whitened := congruence(t.refInvSqrt, c)
	logm, err := SymLog(whitened)
	if err != nil {
		return nil, err
	}
	return UpperTriVec(logm), nil
}

// #endregion tangent-space
