package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNumericalFailure reports a linear-algebra breakdown (failed
// eigendecomposition, non-positive-definite covariance) inside one
// pipeline variant. Evaluation isolates it; see the eval package.
var ErrNumericalFailure = errors.New("numerical failure")

// #region covariance

// Cov estimates the channel covariance of one epoch (rows = channels,
// columns = samples) with Ledoit-Wolf shrinkage toward the scaled
// identity. shrink < 0 selects the closed-form automatic intensity;
// 0 disables shrinkage; values in (0, 1] are used as given.
func Cov(data [][]float64, shrink float64) (*mat.SymDense, error) {
	p := len(data)
	if p == 0 {
		return nil, fmt.Errorf("%w: covariance of empty epoch", ErrNumericalFailure)
	}
	n := len(data[0])
	if n < 2 {
		return nil, fmt.Errorf("%w: covariance needs >= 2 samples, got %d", ErrNumericalFailure, n)
	}

	// Center per channel.
	centered := make([][]float64, p)
	for i, ch := range data {
		var mean float64
		for _, v := range ch {
			mean += v
		}
		mean /= float64(n)
		c := make([]float64, n)
		for j, v := range ch {
			c[j] = v - mean
		}
		centered[i] = c
	}

	cov := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			var sum float64
			for t := 0; t < n; t++ {
				sum += centered[i][t] * centered[j][t]
			}
			cov.SetSym(i, j, sum/float64(n-1))
		}
	}

	if shrink == 0 {
		return cov, nil
	}

	gamma := shrink
	if gamma < 0 {
		gamma = ledoitWolfIntensity(centered, cov)
	}
	if gamma > 1 {
		gamma = 1
	}

	// Shrink toward mu*I, mu = tr(C)/p.
	var tr float64
	for i := 0; i < p; i++ {
		tr += cov.At(i, i)
	}
	mu := tr / float64(p)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := (1 - gamma) * cov.At(i, j)
			if i == j {
				v += gamma * mu
			}
			cov.SetSym(i, j, v)
		}
	}
	return cov, nil
}

// ledoitWolfIntensity is the closed-form shrinkage intensity
// beta^2 / delta^2, clamped to [0, 1].
func ledoitWolfIntensity(centered [][]float64, cov *mat.SymDense) float64 {
	p := len(centered)
	n := len(centered[0])

	var tr float64
	for i := 0; i < p; i++ {
		tr += cov.At(i, i)
	}
	mu := tr / float64(p)

	// delta^2 = ||C - mu I||_F^2
	var delta2 float64
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			d := cov.At(i, j)
			if i == j {
				d -= mu
			}
			delta2 += d * d
		}
	}
	if delta2 == 0 {
		return 0
	}

	// beta^2 = (1/n^2) sum_t ||x_t x_t' - C||_F^2
	var beta2 float64
	for t := 0; t < n; t++ {
		for i := 0; i < p; i++ {
			for j := 0; j < p; j++ {
				d := centered[i][t]*centered[j][t] - cov.At(i, j)
				beta2 += d * d
			}
		}
	}
	beta2 /= float64(n) * float64(n)

	gamma := beta2 / delta2
	if gamma < 0 {
		gamma = 0
	}
	if gamma > 1 {
		gamma = 1
	}
	return gamma
}

// #endregion covariance

// #region sym-helpers

// symApply rebuilds Q f(L) Q' from the eigendecomposition of s.
func symApply(s *mat.SymDense, f func(float64) (float64, error)) (*mat.SymDense, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(s, true); !ok {
		return nil, fmt.Errorf("%w: symmetric eigendecomposition did not converge", ErrNumericalFailure)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	p := len(vals)
	for i, v := range vals {
		fv, err := f(v)
		if err != nil {
			return nil, err
		}
		vals[i] = fv
	}

	out := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			var sum float64
			for k := 0; k < p; k++ {
				sum += vecs.At(i, k) * vals[k] * vecs.At(j, k)
			}
			out.SetSym(i, j, sum)
		}
	}
	return out, nil
}

// SymLog is the matrix logarithm of a symmetric positive-definite matrix.
func SymLog(s *mat.SymDense) (*mat.SymDense, error) {
	return symApply(s, func(v float64) (float64, error) {
		if v <= 0 {
			return 0, fmt.Errorf("%w: non-positive eigenvalue %v in matrix log", ErrNumericalFailure, v)
		}
		return math.Log(v), nil
	})
}

// SymExp is the matrix exponential of a symmetric matrix.
func SymExp(s *mat.SymDense) (*mat.SymDense, error) {
	return symApply(s, func(v float64) (float64, error) {
		return math.Exp(v), nil
	})
}

// SymInvSqrt is C^(-1/2) for a symmetric positive-definite matrix.
func SymInvSqrt(s *mat.SymDense) (*mat.SymDense, error) {
	return symApply(s, func(v float64) (float64, error) {
		if v <= 0 {
			return 0, fmt.Errorf("%w: non-positive eigenvalue %v in inverse sqrt", ErrNumericalFailure, v)
		}
		return 1 / math.Sqrt(v), nil
	})
}

// congruence computes W S W' as a SymDense.
func congruence(w *mat.SymDense, s *mat.SymDense) *mat.SymDense {
	p, _ := s.Dims()
	var tmp, full mat.Dense
	tmp.Mul(w, s)
	full.Mul(&tmp, w)
	out := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			out.SetSym(i, j, (full.At(i, j)+full.At(j, i))/2)
		}
	}
	return out
}

// UpperTriVec flattens a symmetric matrix into the vector of its upper
// triangle, off-diagonal entries scaled by sqrt(2) so Euclidean distance
// between vectors equals Frobenius distance between matrices.
func UpperTriVec(s *mat.SymDense) []float64 {
	p, _ := s.Dims()
	out := make([]float64, 0, p*(p+1)/2)
	sq2 := math.Sqrt2
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := s.At(i, j)
			if i != j {
				v *= sq2
			}
			out = append(out, v)
		}
	}
	return out
}

// LogEuclideanMean is expm(mean(logm(C_k))): the log-Euclidean mean of a
// set of SPD matrices.
func LogEuclideanMean(covs []*mat.SymDense) (*mat.SymDense, error) {
	if len(covs) == 0 {
		return nil, fmt.Errorf("%w: mean of zero matrices", ErrNumericalFailure)
	}
	p, _ := covs[0].Dims()
	acc := mat.NewSymDense(p, nil)
	for _, c := range covs {
		l, err := SymLog(c)
		if err != nil {
			return nil, err
		}
		acc.AddSym(acc, l)
	}
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			acc.SetSym(i, j, acc.At(i, j)/float64(len(covs)))
		}
	}
	return SymExp(acc)
}

// #endregion sym-helpers
