// Package results turns raw evaluation records into reportable summaries
// and persists them to a SQLite results store for later inspection.
package results

import (
	"gonum.org/v1/gonum/stat"

	"github.com/neuroforge/erpbench/internal/eval"
)

// #region aggregate

// Summary is the score distribution of one pipeline across splits.
type Summary struct {
	Pipeline string
	N        int
	Mean     float64
	Std      float64
	Min      float64
	Max      float64
}

// Aggregate reduces score records into one summary per pipeline, ordered
// by first appearance (which the evaluator keeps in declared variant
// order). The input records are never mutated.
func Aggregate(records []eval.ScoreRecord) []Summary {
	byPipeline := map[string][]float64{}
	var order []string
	for _, r := range records {
		if _, ok := byPipeline[r.Pipeline]; !ok {
			order = append(order, r.Pipeline)
		}
		byPipeline[r.Pipeline] = append(byPipeline[r.Pipeline], r.Metric)
	}

	out := make([]Summary, 0, len(order))
	for _, name := range order {
		scores := byPipeline[name]
		s := Summary{
			Pipeline: name,
			N:        len(scores),
			Mean:     stat.Mean(scores, nil),
			Min:      scores[0],
			Max:      scores[0],
		}
		if len(scores) > 1 {
			s.Std = stat.StdDev(scores, nil)
		}
		for _, v := range scores {
			if v < s.Min {
				s.Min = v
			}
			if v > s.Max {
				s.Max = v
			}
		}
		out = append(out, s)
	}
	return out
}

// #endregion aggregate
