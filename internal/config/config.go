// Package config defines the experiment configuration file: which
// recording to load, how to preprocess and epoch it, and which pipeline
// variants to evaluate.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/neuroforge/erpbench/internal/dataset"
	"github.com/neuroforge/erpbench/internal/epoch"
	"github.com/neuroforge/erpbench/internal/eval"
	"github.com/neuroforge/erpbench/internal/events"
	"github.com/neuroforge/erpbench/internal/pipeline"
	"github.com/neuroforge/erpbench/internal/sigproc"
)

// #region types

// Experiment is one full experiment description, decoded from YAML.
type Experiment struct {
	Subject  string `yaml:"subject"`
	Paradigm string `yaml:"paradigm"`
	DataDir  string `yaml:"data_dir"`
	Board    string `yaml:"board"`
	Runs     []int  `yaml:"runs"`

	// SettleSeconds trims the signal-settling period at the start of each
	// run. Negative disables the trim.
	SettleSeconds float64 `yaml:"settle_seconds"`

	// Conditions maps condition names to stim channel codes. Exactly two
	// conditions; the higher code is the positive class for AUC.
	Conditions map[string]int `yaml:"conditions"`

	Window  WindowConfig  `yaml:"window"`
	Filter  FilterConfig  `yaml:"filter"`
	Denoise DenoiseConfig `yaml:"denoise"`
	Eval    EvalConfig    `yaml:"eval"`

	// Pipelines lists variant names to evaluate; empty means all.
	Pipelines []string `yaml:"pipelines"`

	ResultsDB string `yaml:"results_db"`
}

// WindowConfig is the epoching window in seconds relative to each event.
type WindowConfig struct {
	TMin                 float64     `yaml:"tmin"`
	TMax                 float64     `yaml:"tmax"`
	Baseline             *[2]float64 `yaml:"baseline"`
	RejectThreshold      float64     `yaml:"reject_threshold"`
	RejectBeforeBaseline bool        `yaml:"reject_before_baseline"`
}

// FilterConfig is the preprocessing filter chain.
type FilterConfig struct {
	NotchHz        float64 `yaml:"notch_hz"`
	NotchBandwidth float64 `yaml:"notch_bandwidth"`
	LowHz          float64 `yaml:"low_hz"`
	HighHz         float64 `yaml:"high_hz"`
	Order          int     `yaml:"order"`
	ZeroPhase      bool    `yaml:"zero_phase"`
}

// DenoiseConfig is the optional rolling denoise stage.
type DenoiseConfig struct {
	Method string `yaml:"method"`
	Window int    `yaml:"window"`
}

// EvalConfig drives the cross-validated evaluation.
type EvalConfig struct {
	Splits       int     `yaml:"splits"`
	TestFraction float64 `yaml:"test_fraction"`
	Seed         int64   `yaml:"seed"`
	Workers      int     `yaml:"workers"`
}

// #endregion types

// #region defaults

// Default is a runnable P300 oddball experiment on a Cyton+Daisy board.
func Default() Experiment {
	return Experiment{
		Subject:       "S01",
		Paradigm:      "p300",
		DataDir:       "data",
		Board:         "daisy",
		Runs:          []int{1},
		SettleSeconds: dataset.DefaultSettleSeconds,
		Conditions:    map[string]int{"nontarget": 1, "target": 2},
		Window: WindowConfig{
			TMin:            -0.1,
			TMax:            0.8,
			Baseline:        &[2]float64{-0.1, 0},
			RejectThreshold: 200e-6,
		},
		Filter: FilterConfig{
			NotchHz:   60,
			LowHz:     1,
			HighHz:    30,
			Order:     4,
			ZeroPhase: true,
		},
		Eval: EvalConfig{
			Splits:       10,
			TestFraction: 0.25,
			Seed:         42,
		},
		ResultsDB: "erpbench.db",
	}
}

// #endregion defaults

// #region load

// Load reads an experiment file over the defaults: absent keys keep their
// default values, unknown keys are an error.
func Load(path string) (Experiment, error) {
	exp := Default()
	f, err := os.Open(path)
	if err != nil {
		return Experiment{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&exp); err != nil {
		return Experiment{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := exp.Validate(); err != nil {
		return Experiment{}, fmt.Errorf("config %s: %w", path, err)
	}
	return exp, nil
}

// Validate checks everything that would otherwise fail deep inside a run.
func (e Experiment) Validate() error {
	if e.Subject == "" || e.Paradigm == "" {
		return fmt.Errorf("%w: subject and paradigm are required", sigproc.ErrInvalidParameter)
	}
	if len(e.Runs) == 0 {
		return fmt.Errorf("%w: at least one run is required", sigproc.ErrInvalidParameter)
	}
	if _, err := e.BoardLayout(); err != nil {
		return err
	}
	if len(e.Conditions) != 2 {
		return fmt.Errorf("%w: need exactly 2 conditions, have %d", sigproc.ErrInvalidParameter, len(e.Conditions))
	}
	seen := map[int]string{}
	for name, code := range e.Conditions {
		if code <= 0 {
			return fmt.Errorf("%w: condition %q has non-positive code %d", sigproc.ErrInvalidParameter, name, code)
		}
		if prev, ok := seen[code]; ok {
			return fmt.Errorf("%w: conditions %q and %q share code %d", sigproc.ErrInvalidParameter, prev, name, code)
		}
		seen[code] = name
	}
	if e.Window.TMin >= e.Window.TMax {
		return fmt.Errorf("%w: window [%v, %v] must satisfy tmin < tmax", sigproc.ErrInvalidParameter, e.Window.TMin, e.Window.TMax)
	}
	if b := e.Window.Baseline; b != nil {
		if b[0] >= b[1] || b[0] < e.Window.TMin || b[1] > e.Window.TMax {
			return fmt.Errorf("%w: baseline [%v, %v] must be ordered and inside the window", sigproc.ErrInvalidParameter, b[0], b[1])
		}
	}
	if e.Window.RejectThreshold < 0 {
		return fmt.Errorf("%w: reject_threshold %v must be >= 0", sigproc.ErrInvalidParameter, e.Window.RejectThreshold)
	}
	if _, err := pipeline.Variants(e.Pipelines); err != nil {
		return err
	}
	if e.Eval.Splits <= 0 {
		return fmt.Errorf("%w: eval.splits %d must be > 0", sigproc.ErrInvalidParameter, e.Eval.Splits)
	}
	if e.Eval.TestFraction <= 0 || e.Eval.TestFraction >= 1 {
		return fmt.Errorf("%w: eval.test_fraction %v must be in (0, 1)", sigproc.ErrInvalidParameter, e.Eval.TestFraction)
	}
	return nil
}

// #endregion load

// #region views

// BoardLayout resolves the configured board name.
func (e Experiment) BoardLayout() (dataset.Board, error) {
	switch e.Board {
	case "daisy":
		return dataset.DaisyBoard(), nil
	case "cyton":
		return dataset.CytonBoard(), nil
	default:
		return dataset.Board{}, fmt.Errorf("%w: unknown board %q (supported: daisy, cyton)", sigproc.ErrInvalidParameter, e.Board)
	}
}

// EpochWindow converts the window block to epoching parameters.
func (e Experiment) EpochWindow() epoch.Window {
	return epoch.Window{
		TMin:                 e.Window.TMin,
		TMax:                 e.Window.TMax,
		Baseline:             e.Window.Baseline,
		RejectThreshold:      e.Window.RejectThreshold,
		RejectBeforeBaseline: e.Window.RejectBeforeBaseline,
	}
}

// PreprocessOptions converts the filter and denoise blocks, leaving the
// stim channel untouched.
func (e Experiment) PreprocessOptions() sigproc.PreprocessOptions {
	return sigproc.PreprocessOptions{
		NotchHz:        e.Filter.NotchHz,
		NotchBandwidth: e.Filter.NotchBandwidth,
		LowHz:          e.Filter.LowHz,
		HighHz:         e.Filter.HighHz,
		Order:          e.Filter.Order,
		DenoiseMethod:  e.Denoise.Method,
		DenoiseWindow:  e.Denoise.Window,
		ZeroPhase:      e.Filter.ZeroPhase,
		SkipChannels:   []string{events.DefaultStimChannel},
	}
}

// EvalOptions converts the eval block.
func (e Experiment) EvalOptions() eval.Options {
	return eval.Options{
		Splits:       e.Eval.Splits,
		TestFraction: e.Eval.TestFraction,
		Seed:         e.Eval.Seed,
		Workers:      e.Eval.Workers,
	}
}

// ConditionCodes returns the stim codes of the two conditions.
func (e Experiment) ConditionCodes() []int {
	codes := make([]int, 0, len(e.Conditions))
	for _, code := range e.Conditions {
		codes = append(codes, code)
	}
	return codes
}

// #endregion views
