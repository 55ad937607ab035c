// Package events extracts stimulus event markers from the marker channel of
// a continuous recording. Trial runners encode each stimulus onset as a
// nonzero level on a dedicated stim channel; everywhere else the channel
// is zero.
package events

import (
	"fmt"

	"github.com/neuroforge/erpbench/internal/sigproc"
)

// #region types

// Marker is one stimulus event: the sample at which it occurred and its
// integer condition code (small positive integer).
type Marker struct {
	Sample int // index into the signal, 0-based
	Label  int
}

// FindResult carries the extracted markers plus data-quality counters.
type FindResult struct {
	Markers    []Marker
	Duplicates int // events merged because they shared a sample index
}

// #endregion types

// #region find

// DefaultStimChannel is the conventional name of the marker channel added
// by the dataset loader.
const DefaultStimChannel = "STI"

// Find scans the named marker channel for nonzero levels and returns one
// Marker per onset, ordered by sample index. A run of identical nonzero
// values is a single event anchored at its first sample; a change to a
// different nonzero value starts a new event. A recording with no markers
// yields an empty result, not an error.
func Find(sig *sigproc.Signal, stimChannel string) (FindResult, error) {
	idx := sig.ChannelIndex(stimChannel)
	if idx < 0 {
		return FindResult{}, fmt.Errorf("%w: no channel named %q", sigproc.ErrShapeMismatch, stimChannel)
	}

	var res FindResult
	stim := sig.Data[idx]
	prev := 0.0
	for i, v := range stim {
		if v != 0 && v != prev {
			label := int(v)
			if label <= 0 {
				return FindResult{}, fmt.Errorf("%w: marker value %v at sample %d is not a positive integer code", sigproc.ErrInvalidParameter, v, i)
			}
			res.Markers = append(res.Markers, Marker{Sample: i, Label: label})
		}
		prev = v
	}
	return res, nil
}

// FromPairs builds an ordered marker sequence from parallel sample/label
// lists, as produced by an events sidecar file. Samples must be
// non-decreasing. Two entries at the same sample index are illegal in the
// data model; the first occurrence wins and every merge is counted in
// Duplicates rather than silently dropped.
func FromPairs(samples []int, labels []int) (FindResult, error) {
	if len(samples) != len(labels) {
		return FindResult{}, fmt.Errorf("%w: %d samples for %d labels", sigproc.ErrShapeMismatch, len(samples), len(labels))
	}
	var res FindResult
	prev := -1
	for i, s := range samples {
		if s < 0 {
			return FindResult{}, fmt.Errorf("%w: negative event sample %d", sigproc.ErrInvalidParameter, s)
		}
		if s < prev {
			return FindResult{}, fmt.Errorf("%w: event sample %d after %d is out of order", sigproc.ErrInvalidParameter, s, prev)
		}
		if labels[i] <= 0 {
			return FindResult{}, fmt.Errorf("%w: event label %d at sample %d is not a positive code", sigproc.ErrInvalidParameter, labels[i], s)
		}
		if s == prev {
			res.Duplicates++
			continue
		}
		res.Markers = append(res.Markers, Marker{Sample: s, Label: labels[i]})
		prev = s
	}
	return res, nil
}

// Merge concatenates marker sequences from consecutive recordings, offsetting
// each sequence by the sample count of the recordings before it.
func Merge(seqs [][]Marker, offsets []int) ([]Marker, error) {
	if len(seqs) != len(offsets) {
		return nil, fmt.Errorf("%w: %d marker sequences for %d offsets", sigproc.ErrShapeMismatch, len(seqs), len(offsets))
	}
	var out []Marker
	prev := -1
	for i, seq := range seqs {
		for _, m := range seq {
			shifted := Marker{Sample: m.Sample + offsets[i], Label: m.Label}
			if shifted.Sample <= prev {
				return nil, fmt.Errorf("%w: merged marker at sample %d not after previous %d", sigproc.ErrInvalidParameter, shifted.Sample, prev)
			}
			out = append(out, shifted)
			prev = shifted.Sample
		}
	}
	return out, nil
}

// #endregion find
