package sigproc

import (
	"errors"
	"fmt"
)

// #region errors

// ErrInvalidParameter reports a parameter outside its valid bound
// (filter band, window ordering, rates).
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrShapeMismatch reports inconsistent channel counts or sample counts
// across inputs that must agree.
var ErrShapeMismatch = errors.New("data shape mismatch")

// #endregion errors

// #region signal

// Signal is a continuous multichannel recording. Data is channel-major:
// Data[ch][sample], all channels the same length, amplitudes in physical
// units (volts for EEG channels). Signals are treated as immutable once
// built; transforms return new Signals.
type Signal struct {
	Rate     float64  // sampling rate in Hz
	Channels []string // channel names, len == len(Data)
	Data     [][]float64
}

// NewSignal validates and wraps channel-major data.
func NewSignal(rate float64, channels []string, data [][]float64) (*Signal, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %v must be > 0", ErrInvalidParameter, rate)
	}
	if len(channels) != len(data) {
		return nil, fmt.Errorf("%w: %d channel names for %d data channels", ErrShapeMismatch, len(channels), len(data))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: signal has no channels", ErrShapeMismatch)
	}
	n := len(data[0])
	for i, ch := range data {
		if len(ch) != n {
			return nil, fmt.Errorf("%w: channel %q has %d samples, expected %d", ErrShapeMismatch, channels[i], len(ch), n)
		}
	}
	return &Signal{Rate: rate, Channels: channels, Data: data}, nil
}

// NumChannels returns the channel count.
func (s *Signal) NumChannels() int { return len(s.Data) }

// NumSamples returns the per-channel sample count.
func (s *Signal) NumSamples() int {
	if len(s.Data) == 0 {
		return 0
	}
	return len(s.Data[0])
}

// ChannelIndex finds a channel by name, -1 if absent.
func (s *Signal) ChannelIndex(name string) int {
	for i, c := range s.Channels {
		if c == name {
			return i
		}
	}
	return -1
}

// Clone deep-copies the signal.
func (s *Signal) Clone() *Signal {
	data := make([][]float64, len(s.Data))
	for i, ch := range s.Data {
		data[i] = append([]float64(nil), ch...)
	}
	return &Signal{
		Rate:     s.Rate,
		Channels: append([]string(nil), s.Channels...),
		Data:     data,
	}
}

// Without returns a view of the signal with the named channels excluded
// (typically the stim channel before epoching). The underlying sample
// slices are shared, not copied.
func (s *Signal) Without(names ...string) *Signal {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := &Signal{Rate: s.Rate}
	for i, c := range s.Channels {
		if skip[c] {
			continue
		}
		out.Channels = append(out.Channels, c)
		out.Data = append(out.Data, s.Data[i])
	}
	return out
}

// Trim returns the signal with the first n samples removed from every
// channel. Used to discard the settle period at the start of a session.
func (s *Signal) Trim(n int) (*Signal, error) {
	if n < 0 || n > s.NumSamples() {
		return nil, fmt.Errorf("%w: trim %d samples from signal of %d", ErrInvalidParameter, n, s.NumSamples())
	}
	data := make([][]float64, len(s.Data))
	for i, ch := range s.Data {
		data[i] = append([]float64(nil), ch[n:]...)
	}
	return &Signal{Rate: s.Rate, Channels: append([]string(nil), s.Channels...), Data: data}, nil
}

// #endregion signal
