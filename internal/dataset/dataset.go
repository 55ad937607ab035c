// Package dataset loads recorded EEG sessions from disk: OpenBCI CSV
// session files with an events sidecar, and EDF/EDF+ recordings. Loaded
// sessions come back as a sigproc.Signal with a synthesized stimulus
// marker channel appended, ready for preprocessing and epoching.
package dataset

import (
	"fmt"

	"github.com/neuroforge/erpbench/internal/events"
	"github.com/neuroforge/erpbench/internal/sigproc"
)

// #region boards

// openBCIStandard is the 10-20 montage of a Cyton+Daisy headset, in board
// channel order.
var openBCIStandard = []string{
	"Fp1", "Fp2", "C3", "C4", "P7", "P8", "O1", "O2",
	"F7", "F8", "F3", "F4", "T7", "T8", "P3", "P4",
}

// Board describes the layout of a recording board's sample rows. Session
// CSV files carry one column per board row; the first row is a packet
// counter, EEGRows carry the electrode channels in µV, and the last row
// is the sample timestamp.
type Board struct {
	Name     string
	Rate     float64
	EEGRows  []int
	Channels []string
}

// DaisyBoard is an OpenBCI Cyton+Daisy: 16 EEG channels at 125 Hz.
func DaisyBoard() Board {
	rows := make([]int, 16)
	for i := range rows {
		rows[i] = i + 1
	}
	return Board{Name: "daisy", Rate: 125, EEGRows: rows, Channels: openBCIStandard}
}

// CytonBoard is an OpenBCI Cyton: 8 EEG channels at 250 Hz.
func CytonBoard() Board {
	rows := make([]int, 8)
	for i := range rows {
		rows[i] = i + 1
	}
	return Board{Name: "cyton", Rate: 250, EEGRows: rows, Channels: openBCIStandard[:8]}
}

func (b Board) validate() error {
	if b.Rate <= 0 {
		return fmt.Errorf("%w: board rate %v must be > 0", sigproc.ErrInvalidParameter, b.Rate)
	}
	if len(b.EEGRows) == 0 || len(b.EEGRows) != len(b.Channels) {
		return fmt.Errorf("%w: board has %d EEG rows for %d channel names", sigproc.ErrShapeMismatch, len(b.EEGRows), len(b.Channels))
	}
	return nil
}

// #endregion boards

// #region loader

// DefaultSettleSeconds is how much is trimmed from the start of every
// session. The recording protocol holds the first seconds as a settling
// period before any stimulus is shown.
const DefaultSettleSeconds = 5.0

// Loader reads session and event CSV files for one recording board.
// Dir is the directory holding <subject>_<paradigm>_<run>.csv session
// files and their <...>_EVENTS.csv sidecars.
type Loader struct {
	Board         Board
	Dir           string
	SettleSeconds float64 // negative disables the trim; zero means DefaultSettleSeconds
}

// RunStats counts what loading a run did to the raw data.
type RunStats struct {
	Samples    int // samples kept after the settle trim
	Trimmed    int // samples removed by the settle trim
	Events     int // markers placed on the stim channel
	Unmatched  int // events whose timestamp matched no sample
	Duplicates int // events merged because they shared a sample
}

func (l *Loader) settleSamples() int {
	s := l.SettleSeconds
	if s == 0 {
		s = DefaultSettleSeconds
	}
	if s < 0 {
		return 0
	}
	return int(s * l.Board.Rate)
}

// LoadRun loads a single session: parses the session CSV, trims the settle
// period, scales the EEG rows from µV to volts, and synthesizes a stim
// channel from the events sidecar. The returned signal's channels are the
// board montage plus events.DefaultStimChannel, and the returned markers
// are the events that landed on the stim channel.
func (l *Loader) LoadRun(subject, paradigm string, run int) (*sigproc.Signal, []events.Marker, RunStats, error) {
	if err := l.Board.validate(); err != nil {
		return nil, nil, RunStats{}, err
	}

	base := fmt.Sprintf("%s_%s_%d", subject, paradigm, run)
	rows, err := readSessionCSV(l.Dir, base+".csv")
	if err != nil {
		return nil, nil, RunStats{}, fmt.Errorf("session %s: %w", base, err)
	}
	evs, err := readEventsCSV(l.Dir, base+"_EVENTS.csv")
	if err != nil {
		return nil, nil, RunStats{}, fmt.Errorf("events for %s: %w", base, err)
	}

	var stats RunStats
	stats.Trimmed = l.settleSamples()
	for i, row := range rows {
		if stats.Trimmed >= len(row) {
			return nil, nil, RunStats{}, fmt.Errorf("%w: settle trim of %d samples leaves no data (session has %d)", sigproc.ErrInvalidParameter, stats.Trimmed, len(row))
		}
		rows[i] = row[stats.Trimmed:]
	}
	stats.Samples = len(rows[0])

	// Timestamps live in the last board row; events are matched on them.
	timestamps := rows[len(rows)-1]

	data := make([][]float64, 0, len(l.Board.EEGRows)+1)
	channels := make([]string, 0, len(l.Board.Channels)+1)
	for i, row := range l.Board.EEGRows {
		if row >= len(rows) {
			return nil, nil, RunStats{}, fmt.Errorf("%w: board row %d out of range for a %d-row session", sigproc.ErrShapeMismatch, row, len(rows))
		}
		scaled := make([]float64, len(rows[row]))
		for j, v := range rows[row] {
			scaled[j] = v * 1e-6
		}
		data = append(data, scaled)
		channels = append(channels, l.Board.Channels[i])
	}

	stim, markers, err := synthesizeStim(timestamps, evs, &stats)
	if err != nil {
		return nil, nil, RunStats{}, fmt.Errorf("stim channel for %s: %w", base, err)
	}
	data = append(data, stim)
	channels = append(channels, events.DefaultStimChannel)

	sig, err := sigproc.NewSignal(l.Board.Rate, channels, data)
	if err != nil {
		return nil, nil, RunStats{}, err
	}
	return sig, markers, stats, nil
}

// LoadSubject loads several runs for one subject and concatenates them in
// order, offsetting the markers of each run by the samples before it.
func (l *Loader) LoadSubject(subject, paradigm string, runs []int) (*sigproc.Signal, []events.Marker, RunStats, error) {
	if len(runs) == 0 {
		return nil, nil, RunStats{}, fmt.Errorf("%w: no runs requested", sigproc.ErrInvalidParameter)
	}

	var (
		sigs    []*sigproc.Signal
		seqs    [][]events.Marker
		offsets []int
		total   RunStats
		offset  int
	)
	for _, run := range runs {
		sig, markers, stats, err := l.LoadRun(subject, paradigm, run)
		if err != nil {
			return nil, nil, RunStats{}, fmt.Errorf("run %d: %w", run, err)
		}
		sigs = append(sigs, sig)
		seqs = append(seqs, markers)
		offsets = append(offsets, offset)
		offset += sig.NumSamples()

		total.Samples += stats.Samples
		total.Trimmed += stats.Trimmed
		total.Events += stats.Events
		total.Unmatched += stats.Unmatched
		total.Duplicates += stats.Duplicates
	}

	sig, err := Concat(sigs...)
	if err != nil {
		return nil, nil, RunStats{}, err
	}
	merged, err := events.Merge(seqs, offsets)
	if err != nil {
		return nil, nil, RunStats{}, err
	}
	return sig, merged, total, nil
}

// #endregion loader

// #region stim

// synthesizeStim builds the marker channel: zero everywhere except at the
// samples whose timestamp matches an event, which carry the event's label
// plus one. The offset keeps label code 0 distinct from "no event".
func synthesizeStim(timestamps []float64, evs []rawEvent, stats *RunStats) ([]float64, []events.Marker, error) {
	index := make(map[float64]int, len(timestamps))
	for i, ts := range timestamps {
		index[ts] = i
	}

	stim := make([]float64, len(timestamps))
	var samples, labels []int
	for _, ev := range evs {
		i, ok := index[ev.timestamp]
		if !ok {
			stats.Unmatched++
			continue
		}
		code := ev.label + 1
		if code <= 0 {
			return nil, nil, fmt.Errorf("%w: event label %d yields non-positive code %d", sigproc.ErrInvalidParameter, ev.label, code)
		}
		if stim[i] == 0 { // first event at a sample wins
			stim[i] = float64(code)
		}
		samples = append(samples, i)
		labels = append(labels, code)
	}

	res, err := events.FromPairs(samples, labels)
	if err != nil {
		return nil, nil, err
	}
	stats.Events = len(res.Markers)
	stats.Duplicates = res.Duplicates
	return stim, res.Markers, nil
}

// #endregion stim

// #region concat

// Concat joins consecutive recordings with identical rate and montage
// into one continuous signal.
func Concat(sigs ...*sigproc.Signal) (*sigproc.Signal, error) {
	if len(sigs) == 0 {
		return nil, fmt.Errorf("%w: nothing to concatenate", sigproc.ErrInvalidParameter)
	}
	first := sigs[0]
	total := 0
	for _, s := range sigs {
		if s.Rate != first.Rate {
			return nil, fmt.Errorf("%w: rate %v does not match %v", sigproc.ErrShapeMismatch, s.Rate, first.Rate)
		}
		if len(s.Channels) != len(first.Channels) {
			return nil, fmt.Errorf("%w: %d channels do not match %d", sigproc.ErrShapeMismatch, len(s.Channels), len(first.Channels))
		}
		for i, name := range s.Channels {
			if name != first.Channels[i] {
				return nil, fmt.Errorf("%w: channel %d is %q, want %q", sigproc.ErrShapeMismatch, i, name, first.Channels[i])
			}
		}
		total += s.NumSamples()
	}

	data := make([][]float64, len(first.Channels))
	for i := range data {
		data[i] = make([]float64, 0, total)
		for _, s := range sigs {
			data[i] = append(data[i], s.Data[i]...)
		}
	}
	return sigproc.NewSignal(first.Rate, append([]string(nil), first.Channels...), data)
}

// #endregion concat
