package features

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/neuroforge/erpbench/internal/epoch"
)

// #region csp

// CSP learns common spatial pattern filters discriminating two classes
// and maps each epoch to the log-variance of its k filtered components.
// Filters come from the eigenvectors of the whitened first-class
// covariance; the top and bottom eigenvectors carry the most
// class-discriminative variance.
type CSP struct {
	Components int     // number of spatial filters, even, default 4
	Shrink     float64 // shrinkage for the class covariance estimates

	filters *mat.Dense // k x channels
}

// Fit estimates the spatial filters from training epochs of two classes.
func (c *CSP) Fit(epochs []epoch.Epoch, labels []int) error {
	classes := sortedClasses(labels)
	if len(classes) != 2 {
		return fmt.Errorf("%w: csp needs exactly 2 classes, got %d", ErrNumericalFailure, len(classes))
	}
	k := c.Components
	if k == 0 {
		k = 4
	}
	if k%2 != 0 || k <= 0 {
		return fmt.Errorf("%w: csp component count %d must be even and positive", ErrNumericalFailure, k)
	}

	covA, err := classMeanCov(epochs, labels, classes[0], c.Shrink)
	if err != nil {
		return err
	}
	covB, err := classMeanCov(epochs, labels, classes[1], c.Shrink)
	if err != nil {
		return err
	}

	p, _ := covA.Dims()
	if k > p {
		return fmt.Errorf("%w: csp asked for %d components from %d channels", ErrNumericalFailure, k, p)
	}

	total := mat.NewSymDense(p, nil)
	total.AddSym(covA, covB)
	white, err := SymInvSqrt(total)
	if err != nil {
		return err
	}

	// Eigenvectors of the whitened class-A covariance, sorted by eigenvalue.
	m := congruence(white, covA)
	var eig mat.EigenSym
	if ok := eig.Factorize(m, true); !ok {
		return fmt.Errorf("%w: csp eigendecomposition did not converge", ErrNumericalFailure)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	order := make([]int, len(vals))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return vals[order[a]] > vals[order[b]] })

	// Take k/2 from each end of the spectrum; filter rows are w' = v' W.
	pick := make([]int, 0, k)
	for i := 0; i < k/2; i++ {
		pick = append(pick, order[i])
	}
	for i := 0; i < k/2; i++ {
		pick = append(pick, order[len(order)-1-i])
	}

	c.filters = mat.NewDense(k, p, nil)
	for r, idx := range pick {
		for col := 0; col < p; col++ {
			var sum float64
			for j := 0; j < p; j++ {
				sum += vecs.At(j, idx) * white.At(j, col)
			}
			c.filters.Set(r, col, sum)
		}
	}
	return nil
}

// Transform maps one epoch to log-variance features of the filtered
// components, normalized so the components sum to 1 before the log.
func (c *CSP) Transform(e epoch.Epoch) ([]float64, error) {
	if c.filters == nil {
		return nil, fmt.Errorf("%w: csp used before fit", ErrNumericalFailure)
	}
	k, p := c.filters.Dims()
	if p != len(e.Data) {
		return nil, fmt.Errorf("%w: epoch has %d channels, csp fit saw %d", ErrNumericalFailure, len(e.Data), p)
	}
	n := len(e.Data[0])

	vars := make([]float64, k)
	var total float64
	for r := 0; r < k; r++ {
		var sumsq float64
		for t := 0; t < n; t++ {
			var y float64
			for ch := 0; ch < p; ch++ {
				y += c.filters.At(r, ch) * e.Data[ch][t]
			}
			sumsq += y * y
		}
		vars[r] = sumsq / float64(n)
		total += vars[r]
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: zero variance epoch in csp transform", ErrNumericalFailure)
	}

	out := make([]float64, k)
	for r := range vars {
		out[r] = math.Log(vars[r]/total + 1e-12)
	}
	return out, nil
}

// classMeanCov averages the per-epoch covariances of one class.
func classMeanCov(epochs []epoch.Epoch, labels []int, class int, shrink float64) (*mat.SymDense, error) {
	var acc *mat.SymDense
	var count int
	for i, e := range epochs {
		if labels[i] != class {
			continue
		}
		cov, err := Cov(e.Data, shrink)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			p, _ := cov.Dims()
			acc = mat.NewSymDense(p, nil)
		}
		acc.AddSym(acc, cov)
		count++
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: class %d has no training epochs", ErrNumericalFailure, class)
	}
	p, _ := acc.Dims()
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			acc.SetSym(i, j, acc.At(i, j)/float64(count))
		}
	}
	return acc, nil
}

// #endregion csp
