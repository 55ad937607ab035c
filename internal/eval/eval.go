// Package eval runs the cross-validated comparison of pipeline variants:
// stratified shuffle splits, an independent fit/score per (split, variant)
// cell, and explicit per-cell outcomes so one variant's numerical failure
// never hides or aborts the others.
package eval

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/neuroforge/erpbench/internal/epoch"
	"github.com/neuroforge/erpbench/internal/pipeline"
	"github.com/neuroforge/erpbench/internal/sigproc"
)

// #region types

// ScoreRecord is one successful evaluation cell.
type ScoreRecord struct {
	Pipeline string
	Split    int
	Metric   float64 // AUC in [0, 1]
}

// Failure is one evaluation cell whose fit or score failed. Recorded
// alongside successes rather than swallowed.
type Failure struct {
	Pipeline string
	Split    int
	Reason   string
}

// Result is everything one Evaluate call produced. Records are ordered
// split-major in declared variant order regardless of worker scheduling.
type Result struct {
	Records  []ScoreRecord
	Failures []Failure
}

// Options shapes the evaluation plan. Zero values select the defaults.
type Options struct {
	Splits       int     // default 10
	TestFraction float64 // default 0.25
	Seed         int64   // split-generation seed
	Workers      int     // concurrent cells, default runtime.NumCPU()
}

func (o Options) withDefaults() Options {
	if o.Splits == 0 {
		o.Splits = 10
	}
	if o.TestFraction == 0 {
		o.TestFraction = 0.25
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// #endregion types

// #region evaluate

// Evaluate fits and scores every variant on every stratified split.
// Splits are generated up front from opts.Seed, so results are identical
// for identical inputs whatever the worker count. Each cell fits a fresh
// pipeline instance; epochs are shared read-only.
func Evaluate(epochs []epoch.Epoch, labels []int, variants []pipeline.Variant, opts Options) (Result, error) {
	if len(epochs) != len(labels) {
		return Result{}, fmt.Errorf("%w: %d epochs for %d labels", sigproc.ErrShapeMismatch, len(epochs), len(labels))
	}
	if len(variants) == 0 {
		return Result{}, fmt.Errorf("%w: no pipeline variants selected", sigproc.ErrInvalidParameter)
	}
	opts = opts.withDefaults()

	splits, err := StratifiedSplits(labels, opts.Splits, opts.TestFraction, opts.Seed)
	if err != nil {
		return Result{}, err
	}

	type cell struct{ split, variant int }
	cells := make(chan cell)
	outcomes := make([][]outcome, len(splits))
	for s := range outcomes {
		outcomes[s] = make([]outcome, len(variants))
	}

	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range cells {
				outcomes[c.split][c.variant] = runCell(epochs, labels, splits[c.split], variants[c.variant])
			}
		}()
	}
	for s := range splits {
		for v := range variants {
			cells <- cell{split: s, variant: v}
		}
	}
	close(cells)
	wg.Wait()

	// Serialize in split-major declared-variant order.
	var res Result
	for s := range splits {
		for v, variant := range variants {
			o := outcomes[s][v]
			if o.err != nil {
				res.Failures = append(res.Failures, Failure{Pipeline: variant.Name, Split: s, Reason: o.err.Error()})
				continue
			}
			res.Records = append(res.Records, ScoreRecord{Pipeline: variant.Name, Split: s, Metric: o.metric})
		}
	}
	return res, nil
}

type outcome struct {
	metric float64
	err    error
}

// runCell fits a fresh variant instance on the split's train partition
// and scores it on the test partition. Panics must not cross the worker
// boundary; they become the cell's outcome.
func runCell(epochs []epoch.Epoch, labels []int, sp Split, v pipeline.Variant) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: fmt.Errorf("pipeline %s panicked: %v", v.Name, r)}
		}
	}()

	train := make([]epoch.Epoch, len(sp.Train))
	yTrain := make([]int, len(sp.Train))
	for i, idx := range sp.Train {
		train[i] = epochs[idx]
		yTrain[i] = labels[idx]
	}
	test := make([]epoch.Epoch, len(sp.Test))
	yTest := make([]int, len(sp.Test))
	for i, idx := range sp.Test {
		test[i] = epochs[idx]
		yTest[i] = labels[idx]
	}

	p := v.New()
	if err := p.Fit(train, yTrain); err != nil {
		return outcome{err: fmt.Errorf("fit: %w", err)}
	}
	metric, err := p.Score(test, yTest)
	if err != nil {
		return outcome{err: fmt.Errorf("score: %w", err)}
	}
	if metric < 0 || metric > 1 {
		return outcome{err: fmt.Errorf("pipeline %s produced metric %v outside [0, 1]", v.Name, metric)}
	}
	return outcome{metric: metric}
}

// #endregion evaluate
