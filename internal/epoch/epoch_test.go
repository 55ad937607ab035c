package epoch

import (
	"errors"
	"math"
	"testing"

	"github.com/neuroforge/erpbench/internal/events"
	"github.com/neuroforge/erpbench/internal/sigproc"
)

const rate = 256.0

// flatSignal builds a 2-channel signal of n constant samples.
func flatSignal(t *testing.T, n int, value float64) *sigproc.Signal {
	t.Helper()
	a := make([]float64, n)
	b := make([]float64, n)
	for i := range a {
		a[i] = value
		b[i] = value
	}
	sig, err := sigproc.NewSignal(rate, []string{"Cz", "Pz"}, [][]float64{a, b})
	if err != nil {
		t.Fatalf("NewSignal: %v", err)
	}
	return sig
}

// spreadMarkers places count alternating-label events every step samples
// starting at start.
func spreadMarkers(start, step, count int) []events.Marker {
	out := make([]events.Marker, count)
	for i := range out {
		out[i] = events.Marker{Sample: start + i*step, Label: 1 + i%2}
	}
	return out
}

func TestSamplesPerEpoch(t *testing.T) {
	w := Window{TMin: -0.1, TMax: 0.8}
	if n := w.SamplesPerEpoch(rate); n != 231 {
		t.Fatalf("samples per epoch: got %d, want 231", n)
	}
}

func TestExtractKeepsAllBoundarySafeEvents(t *testing.T) {
	// 1000 events, 2 channels, labels alternating 1/2, no rejection.
	sig := flatSignal(t, 300*int(rate), 0)
	markers := spreadMarkers(1000, 60, 1000)
	w := Window{TMin: -0.1, TMax: 0.8}

	set, stats, err := Extract(sig, markers, []int{1, 2}, w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if stats.Attempted != 1000 || stats.Kept != 1000 {
		t.Fatalf("stats: %+v", stats)
	}
	if stats.DropFraction() != 0 {
		t.Fatalf("drop fraction: got %v, want 0", stats.DropFraction())
	}
	if len(set.Epochs) != 1000 {
		t.Fatalf("epoch count: got %d", len(set.Epochs))
	}
	for i, e := range set.Epochs {
		if len(e.Data) != 2 || len(e.Data[0]) != 231 || len(e.Data[1]) != 231 {
			t.Fatalf("epoch %d shape: %dx%d", i, len(e.Data), len(e.Data[0]))
		}
	}
	labels := set.Labels()
	n1, n2 := 0, 0
	for _, l := range labels {
		switch l {
		case 1:
			n1++
		case 2:
			n2++
		}
	}
	if n1 != 500 || n2 != 500 {
		t.Fatalf("label balance: %d/%d", n1, n2)
	}
}

func TestExtractDropsBoundaryEpochs(t *testing.T) {
	sig := flatSignal(t, 1000, 0)
	w := Window{TMin: -0.1, TMax: 0.8} // needs 26 samples before, 205 after
	markers := []events.Marker{
		{Sample: 10, Label: 1},  // runs off the start
		{Sample: 500, Label: 1}, // fits
		{Sample: 990, Label: 1}, // runs off the end
	}
	set, stats, err := Extract(sig, markers, []int{1}, w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if stats.Attempted != 3 || stats.Kept != 1 || stats.Boundary != 2 || stats.Artifact != 0 {
		t.Fatalf("stats: %+v", stats)
	}
	if stats.Kept+stats.Boundary+stats.Artifact != stats.Attempted {
		t.Fatalf("drop accounting broken: %+v", stats)
	}
	if len(set.Epochs) != 1 || set.Epochs[0].Anchor != 500 {
		t.Fatalf("unexpected surviving epochs: %+v", set.Epochs)
	}
}

func TestExtractArtifactRejection(t *testing.T) {
	sig := flatSignal(t, 10000, 0)
	markers := spreadMarkers(500, 300, 10)
	// Inject a 200-unit spike inside the window of the 4th event.
	spikeAt := markers[3].Sample + 50
	sig.Data[1][spikeAt] = 200

	w := Window{TMin: -0.1, TMax: 0.8, RejectThreshold: 100}
	set, stats, err := Extract(sig, markers, []int{1, 2}, w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if stats.Attempted != 10 || stats.Artifact != 1 || stats.Kept != 9 {
		t.Fatalf("stats: %+v", stats)
	}
	for _, e := range set.Epochs {
		if e.Anchor == markers[3].Sample {
			t.Fatal("spiked epoch survived rejection")
		}
	}
}

func TestBaselineCorrection(t *testing.T) {
	// Channel with a constant offset of 5; baseline mean removal should
	// zero the whole epoch.
	sig := flatSignal(t, 2000, 5)
	markers := []events.Marker{{Sample: 1000, Label: 1}}
	baseline := [2]float64{-0.1, 0}
	w := Window{TMin: -0.1, TMax: 0.8, Baseline: &baseline}

	set, _, err := Extract(sig, markers, []int{1}, w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, ch := range set.Epochs[0].Data {
		for i, v := range ch {
			if math.Abs(v) > 1e-12 {
				t.Fatalf("sample %d not baseline-corrected: %v", i, v)
			}
		}
	}
}

func TestRejectionOrderIsExplicit(t *testing.T) {
	// Peak-to-peak rejection is invariant under the per-channel shift that
	// baseline correction applies, so both orders must agree: a DC-offset
	// epoch survives and a spiked epoch is dropped either way. The knob
	// exists so the order is stated configuration rather than assumption.
	n := 2000
	a := make([]float64, n)
	for i := range a {
		a[i] = 30 // large DC offset, zero peak-to-peak
	}
	sig, err := sigproc.NewSignal(rate, []string{"Cz"}, [][]float64{a})
	if err != nil {
		t.Fatalf("NewSignal: %v", err)
	}
	anchor := 1000
	sig.Data[0][anchor+20] = 80 // 50-unit spike on top of the offset

	baseline := [2]float64{-0.1, 0}
	markers := []events.Marker{{Sample: anchor, Label: 1}}

	for _, before := range []bool{false, true} {
		w := Window{TMin: -0.1, TMax: 0.8, Baseline: &baseline, RejectThreshold: 40, RejectBeforeBaseline: before}
		_, stats, err := Extract(sig, markers, []int{1}, w)
		if err != nil {
			t.Fatalf("Extract(before=%v): %v", before, err)
		}
		if stats.Artifact != 1 {
			t.Fatalf("before=%v: spike not rejected: %+v", before, stats)
		}
	}
}

func TestExtractEmptyFilterIsLegal(t *testing.T) {
	sig := flatSignal(t, 1000, 0)
	markers := spreadMarkers(300, 50, 5)
	set, stats, err := Extract(sig, markers, []int{9}, Window{TMin: -0.1, TMax: 0.4})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if stats.Attempted != 0 || len(set.Epochs) != 0 {
		t.Fatalf("expected empty set, got %+v / %d epochs", stats, len(set.Epochs))
	}
}

func TestExtractValidation(t *testing.T) {
	sig := flatSignal(t, 1000, 0)
	markers := spreadMarkers(300, 50, 5)

	if _, _, err := Extract(sig, markers, []int{1}, Window{TMin: 0.5, TMax: 0.1}); !errors.Is(err, sigproc.ErrInvalidParameter) {
		t.Fatalf("inverted window: expected ErrInvalidParameter, got %v", err)
	}
	bad := [2]float64{-0.5, 0}
	if _, _, err := Extract(sig, markers, []int{1}, Window{TMin: -0.1, TMax: 0.4, Baseline: &bad}); !errors.Is(err, sigproc.ErrInvalidParameter) {
		t.Fatalf("baseline outside window: expected ErrInvalidParameter, got %v", err)
	}
	if _, _, err := Extract(sig, markers, []int{1}, Window{TMin: -0.1, TMax: 0.4, RejectThreshold: -1}); !errors.Is(err, sigproc.ErrInvalidParameter) {
		t.Fatalf("negative threshold: expected ErrInvalidParameter, got %v", err)
	}
}

func TestEpochsEmittedInEventOrder(t *testing.T) {
	sig := flatSignal(t, 5000, 0)
	markers := spreadMarkers(400, 200, 20)
	set, _, err := Extract(sig, markers, []int{1, 2}, Window{TMin: -0.1, TMax: 0.5})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i := 1; i < len(set.Epochs); i++ {
		if set.Epochs[i].Anchor <= set.Epochs[i-1].Anchor {
			t.Fatalf("epochs out of event order at %d", i)
		}
	}
}
