// Package features turns fixed-length epochs into feature vectors or
// spatial covariance matrices for the classifier stages. Every extractor
// is fit on training epochs only; transforming a test epoch uses nothing
// but the fitted parameters.
package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/neuroforge/erpbench/internal/epoch"
)

// #region vectorizer

// Vectorizer flattens an epoch (channels x samples) into one standardized
// feature vector. Fit learns per-feature mean and standard deviation from
// the training epochs.
type Vectorizer struct {
	mean []float64
	std  []float64
}

// Fit learns the standardization statistics.
func (v *Vectorizer) Fit(epochs []epoch.Epoch, _ []int) error {
	if len(epochs) == 0 {
		return fmt.Errorf("%w: vectorizer fit on zero epochs", ErrNumericalFailure)
	}
	d := len(epochs[0].Data) * len(epochs[0].Data[0])
	v.mean = make([]float64, d)
	v.std = make([]float64, d)

	for _, e := range epochs {
		for i, x := range flatten(e) {
			v.mean[i] += x
		}
	}
	for i := range v.mean {
		v.mean[i] /= float64(len(epochs))
	}
	for _, e := range epochs {
		for i, x := range flatten(e) {
			d := x - v.mean[i]
			v.std[i] += d * d
		}
	}
	for i := range v.std {
		v.std[i] = math.Sqrt(v.std[i] / float64(len(epochs)))
		if v.std[i] == 0 {
			v.std[i] = 1 // constant feature, leave centered
		}
	}
	return nil
}

// Transform maps one epoch to its standardized flat vector.
func (v *Vectorizer) Transform(e epoch.Epoch) ([]float64, error) {
	x := flatten(e)
	if len(x) != len(v.mean) {
		return nil, fmt.Errorf("%w: epoch has %d features, fit saw %d", ErrNumericalFailure, len(x), len(v.mean))
	}
	out := make([]float64, len(x))
	for i, xv := range x {
		out[i] = (xv - v.mean[i]) / v.std[i]
	}
	return out, nil
}

func flatten(e epoch.Epoch) []float64 {
	out := make([]float64, 0, len(e.Data)*len(e.Data[0]))
	for _, ch := range e.Data {
		out = append(out, ch...)
	}
	return out
}

// #endregion vectorizer

// #region erp-covariance

// ERPCov computes augmented spatial covariances in the style used for ERP
// paradigms: the class-mean evoked responses (prototypes) learned from the
// training set are stacked above each epoch's channels before taking the
// covariance, so the matrix captures both evoked and induced structure.
type ERPCov struct {
	Shrink float64 // shrinkage intensity; negative selects automatic

	prototypes [][][]float64 // per class (sorted label order): channels x samples
}

// Fit learns one prototype (mean epoch) per class present in labels.
func (c *ERPCov) Fit(epochs []epoch.Epoch, labels []int) error {
	if len(epochs) == 0 || len(epochs) != len(labels) {
		return fmt.Errorf("%w: erp covariance fit on %d epochs / %d labels", ErrNumericalFailure, len(epochs), len(labels))
	}
	classes := sortedClasses(labels)
	c.prototypes = c.prototypes[:0]
	for _, cls := range classes {
		proto := meanEpoch(epochs, labels, cls)
		if proto == nil {
			return fmt.Errorf("%w: class %d has no training epochs", ErrNumericalFailure, cls)
		}
		c.prototypes = append(c.prototypes, proto)
	}
	return nil
}

// Transform returns the augmented covariance of one epoch.
func (c *ERPCov) Transform(e epoch.Epoch) (*mat.SymDense, error) {
	if len(c.prototypes) == 0 {
		return nil, fmt.Errorf("%w: erp covariance used before fit", ErrNumericalFailure)
	}
	var aug [][]float64
	for _, proto := range c.prototypes {
		aug = append(aug, proto...)
	}
	aug = append(aug, e.Data...)
	return Cov(aug, c.Shrink)
}

func sortedClasses(labels []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	// insertion sort; class counts are tiny
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func meanEpoch(epochs []epoch.Epoch, labels []int, class int) [][]float64 {
	var count int
	var acc [][]float64
	for k, e := range epochs {
		if labels[k] != class {
			continue
		}
		if acc == nil {
			acc = make([][]float64, len(e.Data))
			for i := range acc {
				acc[i] = make([]float64, len(e.Data[i]))
			}
		}
		for i, ch := range e.Data {
			for j, v := range ch {
				acc[i][j] += v
			}
		}
		count++
	}
	if count == 0 {
		return nil
	}
	for _, ch := range acc {
		for j := range ch {
			ch[j] /= float64(count)
		}
	}
	return acc
}

// #endregion erp-covariance
