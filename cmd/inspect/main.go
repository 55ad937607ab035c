package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/neuroforge/erpbench/internal/results"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to erpbench.db")
	last := flag.Int("last", 20, "show N most recent runs")
	run := flag.String("run", "", "show single run detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/erpbench.db [--last N] [--run id] [--json]")
		os.Exit(2)
	}

	store, err := results.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *run != "" {
		if err := runDetailMode(store, *run, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := runListMode(store, *last, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID     string  `json:"run_id"`
	Subject   string  `json:"subject"`
	Paradigm  string  `json:"paradigm"`
	Kept      int     `json:"kept"`
	Attempted int     `json:"attempted"`
	DropPct   float64 `json:"drop_pct"`
	CreatedAt string  `json:"created_at"`
}

func runListMode(store *results.Store, last int, jsonOut bool) error {
	runs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	rows := make([]listRow, len(runs))
	for i, r := range runs {
		dropPct := 0.0
		if r.Attempted > 0 {
			dropPct = 100 * float64(r.Attempted-r.Kept) / float64(r.Attempted)
		}
		rows[i] = listRow{
			RunID:     r.RunID,
			Subject:   r.Subject,
			Paradigm:  r.Paradigm,
			Kept:      r.Kept,
			Attempted: r.Attempted,
			DropPct:   dropPct,
			CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-8s  %-8s  %12s  %7s  %s\n",
		"Run", "Subject", "Paradigm", "Epochs", "Drop%", "Time")
	fmt.Printf("%-12s+-%-8s+-%-8s+-%12s+-%7s+-%s\n",
		"------------", "--------", "--------", "------------", "-------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %-8s  %-8s  %5d / %4d  %6.1f%%  %s\n",
			shortID(r.RunID), r.Subject, r.Paradigm, r.Kept, r.Attempted, r.DropPct, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type runDetail struct {
	Run       results.RunRecord `json:"run"`
	Summaries []results.Summary `json:"summaries"`
	Failures  []failureRow      `json:"failures,omitempty"`
}

type failureRow struct {
	Pipeline string `json:"pipeline"`
	Split    int    `json:"split"`
	Reason   string `json:"reason"`
}

func runDetailMode(store *results.Store, runID string, jsonOut bool) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	scores, err := store.Scores(runID)
	if err != nil {
		return err
	}
	failures, err := store.Failures(runID)
	if err != nil {
		return err
	}

	detail := runDetail{Run: run, Summaries: results.Aggregate(scores)}
	for _, f := range failures {
		detail.Failures = append(detail.Failures, failureRow{Pipeline: f.Pipeline, Split: f.Split, Reason: f.Reason})
	}

	if jsonOut {
		return printJSON(detail)
	}

	fmt.Printf("Run %s\n", run.RunID)
	fmt.Printf("  subject=%s paradigm=%s at %s\n", run.Subject, run.Paradigm, run.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("  epochs: %d kept of %d (%d boundary, %d artifact)\n",
		run.Kept, run.Attempted, run.Boundary, run.Artifact)
	fmt.Println()

	fmt.Printf("%-14s  %4s  %7s  %7s  %7s  %7s\n", "Pipeline", "N", "Mean", "Std", "Min", "Max")
	fmt.Printf("%-14s+-%4s+-%7s+-%7s+-%7s+-%7s\n",
		"--------------", "----", "-------", "-------", "-------", "-------")
	for _, s := range detail.Summaries {
		fmt.Printf("%-14s  %4d  %7.4f  %7.4f  %7.4f  %7.4f\n", s.Pipeline, s.N, s.Mean, s.Std, s.Min, s.Max)
	}

	if len(detail.Failures) > 0 {
		fmt.Println()
		fmt.Printf("%d failed cells:\n", len(detail.Failures))
		for _, f := range detail.Failures {
			fmt.Printf("  %s split %d: %s\n", f.Pipeline, f.Split, f.Reason)
		}
	}
	return nil
}

// #endregion detail-mode

// #region helpers

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion helpers
