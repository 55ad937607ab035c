package eval

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/neuroforge/erpbench/internal/sigproc"
)

// ErrInsufficientData reports too few epochs in some class to satisfy the
// requested stratified split plan.
var ErrInsufficientData = errors.New("insufficient data")

// #region split

// Split is one train/test partition by epoch index. Train and Test are
// disjoint; their union covers every epoch.
type Split struct {
	Train []int
	Test  []int
}

// StratifiedSplits generates n independent shuffle splits that preserve
// the class proportions of labels, drawn from a deterministic sequence
// seeded by seed. Per class, round(testFraction * count) epochs go to
// test, clamped so both sides keep at least one epoch of every class.
func StratifiedSplits(labels []int, n int, testFraction float64, seed int64) ([]Split, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: split count %d must be > 0", sigproc.ErrInvalidParameter, n)
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, fmt.Errorf("%w: test fraction %v must be in (0, 1)", sigproc.ErrInvalidParameter, testFraction)
	}

	byClass := map[int][]int{}
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	for _, c := range classes {
		if len(byClass[c]) < 2 {
			return nil, fmt.Errorf("%w: class %d has %d epochs, stratified splitting needs >= 2", ErrInsufficientData, c, len(byClass[c]))
		}
	}

	rng := rand.New(rand.NewSource(seed))
	splits := make([]Split, n)
	for s := range splits {
		var sp Split
		for _, c := range classes {
			idx := append([]int(nil), byClass[c]...)
			rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })

			k := int(math.Round(testFraction * float64(len(idx))))
			if k < 1 {
				k = 1
			}
			if k > len(idx)-1 {
				k = len(idx) - 1
			}
			sp.Test = append(sp.Test, idx[:k]...)
			sp.Train = append(sp.Train, idx[k:]...)
		}
		sort.Ints(sp.Train)
		sort.Ints(sp.Test)
		splits[s] = sp
	}
	return splits, nil
}

// #endregion split
