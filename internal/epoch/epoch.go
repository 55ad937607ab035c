// Package epoch cuts a continuous recording into fixed-length windows
// around stimulus events, with optional baseline correction and
// peak-to-peak artifact rejection.
package epoch

import (
	"fmt"
	"math"

	"github.com/neuroforge/erpbench/internal/events"
	"github.com/neuroforge/erpbench/internal/sigproc"
)

// #region types

// Window defines the epoch extraction rule relative to each event.
type Window struct {
	TMin float64 // window start offset in seconds, typically <= 0
	TMax float64 // window end offset in seconds, > TMin

	// Baseline is an optional sub-interval [start, end] in seconds for
	// per-channel DC correction; nil disables.
	Baseline *[2]float64

	// RejectThreshold is the per-channel peak-to-peak amplitude limit in
	// signal units (volts for EEG); an epoch where any channel exceeds it
	// is dropped as an artifact. 0 disables rejection.
	RejectThreshold float64

	// RejectBeforeBaseline applies the amplitude rule to the raw window
	// instead of the baseline-corrected one. Default false: baseline
	// correction first, then rejection.
	RejectBeforeBaseline bool
}

// SamplesPerEpoch is the fixed epoch length the window yields at rate Hz.
func (w Window) SamplesPerEpoch(rate float64) int {
	return int(math.Round((w.TMax-w.TMin)*rate)) + 1
}

func (w Window) validate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: sample rate %v must be > 0", sigproc.ErrInvalidParameter, rate)
	}
	if w.TMin >= w.TMax {
		return fmt.Errorf("%w: window [%v, %v] must satisfy tmin < tmax", sigproc.ErrInvalidParameter, w.TMin, w.TMax)
	}
	if w.RejectThreshold < 0 {
		return fmt.Errorf("%w: reject threshold %v must be >= 0", sigproc.ErrInvalidParameter, w.RejectThreshold)
	}
	if b := w.Baseline; b != nil {
		if b[0] >= b[1] || b[0] < w.TMin || b[1] > w.TMax {
			return fmt.Errorf("%w: baseline [%v, %v] must be an ordered sub-interval of the window [%v, %v]",
				sigproc.ErrInvalidParameter, b[0], b[1], w.TMin, w.TMax)
		}
	}
	return nil
}

// Epoch is one fixed-length window: Data[ch][sample], tagged with the
// originating event. Immutable once extracted.
type Epoch struct {
	Label  int
	Anchor int // sample index of the originating event
	Data   [][]float64
}

// Set is the surviving epochs of one extraction. All epochs share the
// same channel layout and length.
type Set struct {
	Rate     float64
	Channels []string
	Epochs   []Epoch
}

// Labels returns the label vector parallel to Epochs.
func (s *Set) Labels() []int {
	out := make([]int, len(s.Epochs))
	for i, e := range s.Epochs {
		out[i] = e.Label
	}
	return out
}

// DropStats accounts for every event the extraction attempted.
// Kept + Boundary + Artifact == Attempted always holds.
type DropStats struct {
	Attempted int
	Kept      int
	Boundary  int // window ran off the edge of the recording
	Artifact  int // peak-to-peak rejection fired
}

// DropFraction is the share of attempted epochs that were dropped.
// Researchers treat this as a data-quality signal; callers must surface it.
func (d DropStats) DropFraction() float64 {
	if d.Attempted == 0 {
		return 0
	}
	return 1 - float64(d.Kept)/float64(d.Attempted)
}

// #endregion types

// #region extract

// Extract cuts one epoch per event whose label is in include, in event
// order. Boundary windows are dropped, never zero-padded (padding would
// bias spectral features downstream). Selecting zero events is legal and
// yields an empty Set.
func Extract(sig *sigproc.Signal, markers []events.Marker, include []int, w Window) (Set, DropStats, error) {
	if err := w.validate(sig.Rate); err != nil {
		return Set{}, DropStats{}, err
	}

	wanted := make(map[int]bool, len(include))
	for _, id := range include {
		wanted[id] = true
	}

	nSamples := w.SamplesPerEpoch(sig.Rate)
	startOffset := int(math.Round(w.TMin * sig.Rate))
	set := Set{Rate: sig.Rate, Channels: append([]string(nil), sig.Channels...)}
	var stats DropStats

	for _, m := range markers {
		if !wanted[m.Label] {
			continue
		}
		stats.Attempted++

		start := m.Sample + startOffset
		end := start + nSamples - 1
		if start < 0 || end > sig.NumSamples()-1 {
			stats.Boundary++
			continue
		}

		data := make([][]float64, sig.NumChannels())
		for c, ch := range sig.Data {
			data[c] = append([]float64(nil), ch[start:end+1]...)
		}
		e := Epoch{Label: m.Label, Anchor: m.Sample, Data: data}

		if w.RejectBeforeBaseline && rejected(e, w.RejectThreshold) {
			stats.Artifact++
			continue
		}
		if w.Baseline != nil {
			applyBaseline(e, w, sig.Rate)
		}
		if !w.RejectBeforeBaseline && rejected(e, w.RejectThreshold) {
			stats.Artifact++
			continue
		}

		set.Epochs = append(set.Epochs, e)
		stats.Kept++
	}
	return set, stats, nil
}

// applyBaseline subtracts each channel's mean over the baseline interval
// from the whole epoch, per channel independently.
func applyBaseline(e Epoch, w Window, rate float64) {
	b := w.Baseline
	lo := int(math.Round((b[0] - w.TMin) * rate))
	hi := int(math.Round((b[1] - w.TMin) * rate))
	if hi >= len(e.Data[0]) {
		hi = len(e.Data[0]) - 1
	}
	for _, ch := range e.Data {
		var mean float64
		for _, v := range ch[lo : hi+1] {
			mean += v
		}
		mean /= float64(hi - lo + 1)
		for i := range ch {
			ch[i] -= mean
		}
	}
}

// rejected reports whether any channel's peak-to-peak amplitude exceeds
// the threshold. Threshold 0 disables the rule.
func rejected(e Epoch, threshold float64) bool {
	if threshold <= 0 {
		return false
	}
	for _, ch := range e.Data {
		lo, hi := ch[0], ch[0]
		for _, v := range ch {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi-lo > threshold {
			return true
		}
	}
	return false
}

// #endregion extract
