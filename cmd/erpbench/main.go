package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/neuroforge/erpbench/internal/config"
	"github.com/neuroforge/erpbench/internal/dataset"
	"github.com/neuroforge/erpbench/internal/epoch"
	"github.com/neuroforge/erpbench/internal/eval"
	"github.com/neuroforge/erpbench/internal/events"
	"github.com/neuroforge/erpbench/internal/pipeline"
	"github.com/neuroforge/erpbench/internal/results"
	"github.com/neuroforge/erpbench/internal/sigproc"
)

// #region main
func main() {
	configPath := flag.String("config", "", "path to experiment YAML (default config when empty)")
	dbPath := flag.String("db", "", "results database path (overrides config)")
	noPersist := flag.Bool("no-persist", false, "skip writing results to the database")
	flag.Parse()

	exp, err := loadExperiment(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dbPath != "" {
		exp.ResultsDB = *dbPath
	}
	exp.ResultsDB = envOr("ERPBENCH_DB", exp.ResultsDB)

	board, err := exp.BoardLayout()
	if err != nil {
		log.Fatalf("board: %v", err)
	}

	// Load and concatenate the subject's runs
	loader := &dataset.Loader{Board: board, Dir: exp.DataDir, SettleSeconds: exp.SettleSeconds}
	sig, _, runStats, err := loader.LoadSubject(exp.Subject, exp.Paradigm, exp.Runs)
	if err != nil {
		log.Fatalf("load %s/%s: %v", exp.Subject, exp.Paradigm, err)
	}
	log.Printf("loaded %d runs: %d samples at %g Hz, %d events (%d unmatched, %d duplicate)",
		len(exp.Runs), sig.NumSamples(), sig.Rate, runStats.Events, runStats.Unmatched, runStats.Duplicates)

	// Preprocess everything but the stim channel
	pre, err := sigproc.Preprocess(sig, exp.PreprocessOptions())
	if err != nil {
		log.Fatalf("preprocess: %v", err)
	}

	// Extract markers and cut epochs
	found, err := events.Find(pre, events.DefaultStimChannel)
	if err != nil {
		log.Fatalf("events: %v", err)
	}
	set, dropStats, err := epoch.Extract(pre.Without(events.DefaultStimChannel), found.Markers, exp.ConditionCodes(), exp.EpochWindow())
	if err != nil {
		log.Fatalf("epoch: %v", err)
	}
	log.Printf("epochs: %d kept of %d (%d boundary, %d artifact, %.1f%% dropped)",
		dropStats.Kept, dropStats.Attempted, dropStats.Boundary, dropStats.Artifact, 100*dropStats.DropFraction())

	// Evaluate the configured pipeline variants
	variants, err := pipeline.Variants(exp.Pipelines)
	if err != nil {
		log.Fatalf("pipelines: %v", err)
	}
	res, err := eval.Evaluate(set.Epochs, set.Labels(), variants, exp.EvalOptions())
	if err != nil {
		log.Fatalf("evaluate: %v", err)
	}
	for _, f := range res.Failures {
		log.Printf("cell failed: pipeline=%s split=%d: %s", f.Pipeline, f.Split, f.Reason)
	}

	printSummaries(results.Aggregate(res.Records))

	if *noPersist {
		return
	}
	runID, err := persist(exp, res, dropStats)
	if err != nil {
		log.Fatalf("persist: %v", err)
	}
	log.Printf("saved run %s to %s", runID, exp.ResultsDB)
}

// #endregion main

// #region helpers

func loadExperiment(path string) (config.Experiment, error) {
	if path == "" {
		exp := config.Default()
		return exp, exp.Validate()
	}
	return config.Load(path)
}

func printSummaries(summaries []results.Summary) {
	fmt.Printf("%-14s  %4s  %7s  %7s  %7s  %7s\n", "Pipeline", "N", "Mean", "Std", "Min", "Max")
	fmt.Printf("%-14s+-%4s+-%7s+-%7s+-%7s+-%7s\n",
		"--------------", "----", "-------", "-------", "-------", "-------")
	for _, s := range summaries {
		fmt.Printf("%-14s  %4d  %7.4f  %7.4f  %7.4f  %7.4f\n", s.Pipeline, s.N, s.Mean, s.Std, s.Min, s.Max)
	}
}

func persist(exp config.Experiment, res eval.Result, drops epoch.DropStats) (string, error) {
	store, err := results.NewStore(exp.ResultsDB)
	if err != nil {
		return "", err
	}
	defer store.Close()

	cfgJSON, err := json.Marshal(exp)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return store.SaveRun(results.RunRecord{
		Subject:    exp.Subject,
		Paradigm:   exp.Paradigm,
		ConfigJSON: string(cfgJSON),
		Attempted:  drops.Attempted,
		Kept:       drops.Kept,
		Boundary:   drops.Boundary,
		Artifact:   drops.Artifact,
	}, res)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
