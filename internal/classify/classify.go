// Package classify holds the terminal classifier stages of the feature
// pipelines: logistic regression, shrinkage LDA and minimum distance to
// mean, plus the AUC ranking metric. All classifiers are binary; the
// lower label code is the negative class and the higher the positive,
// so orientation is deterministic for a given condition mapping.
package classify

import (
	"fmt"
	"sort"

	"github.com/neuroforge/erpbench/internal/features"
)

// #region classes

// BinaryClasses extracts the (negative, positive) class codes from a
// label vector: exactly two distinct codes must be present, ordered by
// value.
func BinaryClasses(labels []int) (neg, pos int, err error) {
	seen := map[int]bool{}
	var classes []int
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	if len(classes) != 2 {
		return 0, 0, fmt.Errorf("%w: need exactly 2 classes, got %d", features.ErrNumericalFailure, len(classes))
	}
	sort.Ints(classes)
	return classes[0], classes[1], nil
}

// #endregion classes

// #region auc

// AUC is the area under the ROC curve of scores against binary labels,
// computed rank-based (Mann-Whitney) with midrank tie handling. Higher
// scores should indicate the positive class; the result is in [0, 1].
func AUC(labels []int, scores []float64, pos int) (float64, error) {
	if len(labels) != len(scores) {
		return 0, fmt.Errorf("%w: %d labels for %d scores", features.ErrNumericalFailure, len(labels), len(scores))
	}
	var nPos, nNeg int
	for _, l := range labels {
		if l == pos {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0, fmt.Errorf("%w: auc needs both classes present (%d pos, %d neg)", features.ErrNumericalFailure, nPos, nNeg)
	}

	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	// Midranks over tied score groups.
	ranks := make([]float64, len(scores))
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && scores[idx[j]] == scores[idx[i]] {
			j++
		}
		mid := float64(i+j-1)/2 + 1
		for k := i; k < j; k++ {
			ranks[idx[k]] = mid
		}
		i = j
	}

	var rankSum float64
	for i, l := range labels {
		if l == pos {
			rankSum += ranks[i]
		}
	}
	u := rankSum - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg)), nil
}

// #endregion auc
