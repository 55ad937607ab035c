package sigproc

import (
	"fmt"
	"math"
	"sort"
)

// #region biquad

// biquad is one direct-form-I second-order section, already normalized
// so a0 == 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// apply runs the section causally over x, returning a new slice.
func (q biquad) apply(x []float64) []float64 {
	y := make([]float64, len(x))
	var x1, x2, y1, y2 float64
	for i, v := range x {
		out := q.b0*v + q.b1*x1 + q.b2*x2 - q.a1*y1 - q.a2*y2
		x2, x1 = x1, v
		y2, y1 = y1, out
		y[i] = out
	}
	return y
}

// Butterworth Q values per cascaded second-order section.
func butterworthQs(order int) ([]float64, error) {
	switch order {
	case 2:
		return []float64{math.Sqrt2 / 2}, nil
	case 4:
		return []float64{0.54119610, 1.30656296}, nil
	case 6:
		return []float64{0.51763809, 0.70710678, 1.93185165}, nil
	default:
		return nil, fmt.Errorf("%w: filter order %d (supported: 2, 4, 6)", ErrInvalidParameter, order)
	}
}

func lowpassSection(rate, cutoff, q float64) biquad {
	k := math.Tan(math.Pi * cutoff / rate)
	norm := 1 / (1 + k/q + k*k)
	b0 := k * k * norm
	return biquad{
		b0: b0, b1: 2 * b0, b2: b0,
		a1: 2 * (k*k - 1) * norm,
		a2: (1 - k/q + k*k) * norm,
	}
}

func highpassSection(rate, cutoff, q float64) biquad {
	k := math.Tan(math.Pi * cutoff / rate)
	norm := 1 / (1 + k/q + k*k)
	return biquad{
		b0: norm, b1: -2 * norm, b2: norm,
		a1: 2 * (k*k - 1) * norm,
		a2: (1 - k/q + k*k) * norm,
	}
}

func notchSection(rate, center, bandwidth float64) biquad {
	w0 := 2 * math.Pi * center / rate
	q := center / bandwidth
	alpha := math.Sin(w0) / (2 * q)
	cosw := math.Cos(w0)
	a0 := 1 + alpha
	return biquad{
		b0: 1 / a0, b1: -2 * cosw / a0, b2: 1 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

// #endregion biquad

// #region filtering

// reverse flips a slice in place.
func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

// runSections applies a biquad cascade to one channel. With zeroPhase the
// cascade runs forward then backward, cancelling group delay at the cost of
// acausal smearing; epoch timing then needs no latency correction. Causal
// mode matches online-capable filtering but delays ERP components.
func runSections(x []float64, sections []biquad, zeroPhase bool) []float64 {
	y := append([]float64(nil), x...)
	for _, s := range sections {
		y = s.apply(y)
	}
	if zeroPhase {
		reverse(y)
		for _, s := range sections {
			y = s.apply(y)
		}
		reverse(y)
	}
	return y
}

// applyPerChannel maps a per-channel transform over every channel of sig.
func applyPerChannel(sig *Signal, f func([]float64) []float64) *Signal {
	out := &Signal{
		Rate:     sig.Rate,
		Channels: append([]string(nil), sig.Channels...),
		Data:     make([][]float64, len(sig.Data)),
	}
	for i, ch := range sig.Data {
		out.Data[i] = f(ch)
	}
	return out
}

func validateBand(rate, low, high float64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: sample rate %v must be > 0", ErrInvalidParameter, rate)
	}
	nyquist := rate / 2
	if low < 0 || low >= high || high >= nyquist {
		return fmt.Errorf("%w: band [%v, %v] Hz must satisfy 0 <= low < high < %v (Nyquist)", ErrInvalidParameter, low, high, nyquist)
	}
	return nil
}

// Bandpass band-limits every channel to [low, high] Hz with a Butterworth
// IIR filter of the given order, built as a high-pass/low-pass cascade.
func Bandpass(sig *Signal, low, high float64, order int, zeroPhase bool) (*Signal, error) {
	if err := validateBand(sig.Rate, low, high); err != nil {
		return nil, err
	}
	qs, err := butterworthQs(order)
	if err != nil {
		return nil, err
	}
	var sections []biquad
	for _, q := range qs {
		sections = append(sections, highpassSection(sig.Rate, low, q))
	}
	for _, q := range qs {
		sections = append(sections, lowpassSection(sig.Rate, high, q))
	}
	return applyPerChannel(sig, func(ch []float64) []float64 {
		return runSections(ch, sections, zeroPhase)
	}), nil
}

// Highpass removes content below cutoff Hz from every channel.
func Highpass(sig *Signal, cutoff float64, order int, zeroPhase bool) (*Signal, error) {
	if sig.Rate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %v must be > 0", ErrInvalidParameter, sig.Rate)
	}
	if cutoff <= 0 || cutoff >= sig.Rate/2 {
		return nil, fmt.Errorf("%w: highpass cutoff %v Hz must satisfy 0 < cutoff < %v (Nyquist)", ErrInvalidParameter, cutoff, sig.Rate/2)
	}
	qs, err := butterworthQs(order)
	if err != nil {
		return nil, err
	}
	var sections []biquad
	for _, q := range qs {
		sections = append(sections, highpassSection(sig.Rate, cutoff, q))
	}
	return applyPerChannel(sig, func(ch []float64) []float64 {
		return runSections(ch, sections, zeroPhase)
	}), nil
}

// Notch attenuates a narrow band around center Hz (mains interference).
func Notch(sig *Signal, center, bandwidth float64, zeroPhase bool) (*Signal, error) {
	if err := validateBand(sig.Rate, center-bandwidth/2, center+bandwidth/2); err != nil {
		return nil, err
	}
	s := notchSection(sig.Rate, center, bandwidth)
	return applyPerChannel(sig, func(ch []float64) []float64 {
		return runSections(ch, []biquad{s}, zeroPhase)
	}), nil
}

// #endregion filtering

// #region denoise

// RollingDenoise smooths every channel with a centered rolling aggregate.
// method is "mean" or "median"; window must be odd and >= 3.
func RollingDenoise(sig *Signal, method string, window int) (*Signal, error) {
	if window < 3 || window%2 == 0 {
		return nil, fmt.Errorf("%w: rolling window %d must be odd and >= 3", ErrInvalidParameter, window)
	}
	if method != "mean" && method != "median" {
		return nil, fmt.Errorf("%w: denoise method %q (supported: mean, median)", ErrInvalidParameter, method)
	}
	half := window / 2
	return applyPerChannel(sig, func(ch []float64) []float64 {
		out := make([]float64, len(ch))
		buf := make([]float64, 0, window)
		for i := range ch {
			lo, hi := i-half, i+half
			if lo < 0 {
				lo = 0
			}
			if hi > len(ch)-1 {
				hi = len(ch) - 1
			}
			buf = append(buf[:0], ch[lo:hi+1]...)
			if method == "mean" {
				var sum float64
				for _, v := range buf {
					sum += v
				}
				out[i] = sum / float64(len(buf))
			} else {
				sort.Float64s(buf)
				out[i] = buf[len(buf)/2]
			}
		}
		return out
	}), nil
}

// #endregion denoise

// #region preprocess

// PreprocessOptions selects the stages of the standard preprocessing chain:
// mains notch, ERP band-pass, rolling denoise. Zero values disable a stage.
type PreprocessOptions struct {
	NotchHz        float64 // mains frequency, e.g. 50 or 60; 0 disables
	NotchBandwidth float64 // width of the stop band, default 2 Hz
	LowHz, HighHz  float64 // band-pass edges; both 0 disables
	Order          int     // Butterworth order for the band-pass, default 4
	DenoiseMethod  string  // "mean" or "median"; empty disables
	DenoiseWindow  int     // rolling window, default 3
	ZeroPhase      bool    // forward-backward filtering

	// SkipChannels names channels left untouched by every stage,
	// typically the stimulus marker channel.
	SkipChannels []string
}

// DefaultPreprocessOptions is the chain the recording protocol assumes:
// 60 Hz notch, 1-30 Hz band-pass, no denoising, zero-phase.
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		NotchHz:        60,
		NotchBandwidth: 2,
		LowHz:          1,
		HighHz:         30,
		Order:          4,
		ZeroPhase:      true,
	}
}

// Preprocess runs the enabled stages in order: notch, band-pass, denoise.
func Preprocess(sig *Signal, opts PreprocessOptions) (*Signal, error) {
	out := sig
	var err error
	if opts.NotchHz > 0 {
		bw := opts.NotchBandwidth
		if bw == 0 {
			bw = 2
		}
		out, err = Notch(out, opts.NotchHz, bw, opts.ZeroPhase)
		if err != nil {
			return nil, fmt.Errorf("notch stage: %w", err)
		}
	}
	if opts.LowHz != 0 || opts.HighHz != 0 {
		order := opts.Order
		if order == 0 {
			order = 4
		}
		out, err = Bandpass(out, opts.LowHz, opts.HighHz, order, opts.ZeroPhase)
		if err != nil {
			return nil, fmt.Errorf("bandpass stage: %w", err)
		}
	}
	if opts.DenoiseMethod != "" {
		window := opts.DenoiseWindow
		if window == 0 {
			window = 3
		}
		out, err = RollingDenoise(out, opts.DenoiseMethod, window)
		if err != nil {
			return nil, fmt.Errorf("denoise stage: %w", err)
		}
	}
	if out != sig {
		for _, name := range opts.SkipChannels {
			if i := sig.ChannelIndex(name); i >= 0 {
				out.Data[i] = append([]float64(nil), sig.Data[i]...)
			}
		}
	}
	return out, nil
}

// #endregion preprocess
