package dataset

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/OpenPSG/edf"

	"github.com/neuroforge/erpbench/internal/sigproc"
)

// #region header

// edfMeta is the slice of the EDF header the loader needs: the reader
// package decodes samples but does not expose its parsed header.
type edfMeta struct {
	dataRecords   int
	recordSeconds float64
	labels        []string
	samplesPerRec []int
}

func readEDFMeta(r io.ReadSeeker) (edfMeta, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return edfMeta{}, err
	}
	fixed := make([]byte, 256)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return edfMeta{}, fmt.Errorf("read fixed header: %w", err)
	}

	var meta edfMeta
	var err error
	meta.dataRecords, err = strconv.Atoi(strings.TrimSpace(string(fixed[236:244])))
	if err != nil {
		return edfMeta{}, fmt.Errorf("parse data record count: %w", err)
	}
	meta.recordSeconds, err = strconv.ParseFloat(strings.TrimSpace(string(fixed[244:252])), 64)
	if err != nil {
		return edfMeta{}, fmt.Errorf("parse data record duration: %w", err)
	}
	ns, err := strconv.Atoi(strings.TrimSpace(string(fixed[252:256])))
	if err != nil {
		return edfMeta{}, fmt.Errorf("parse signal count: %w", err)
	}

	labelBytes := make([]byte, ns*16)
	if _, err := io.ReadFull(r, labelBytes); err != nil {
		return edfMeta{}, fmt.Errorf("read signal labels: %w", err)
	}
	meta.labels = make([]string, ns)
	for i := range meta.labels {
		meta.labels[i] = strings.TrimSpace(string(labelBytes[i*16 : (i+1)*16]))
	}

	// Samples-per-record sits after the transducer, dimension, physical and
	// digital range, and prefiltering blocks.
	sprOffset := int64(256 + ns*(16+80+8+8+8+8+8+80))
	if _, err := r.Seek(sprOffset, io.SeekStart); err != nil {
		return edfMeta{}, err
	}
	sprBytes := make([]byte, ns*8)
	if _, err := io.ReadFull(r, sprBytes); err != nil {
		return edfMeta{}, fmt.Errorf("read samples per record: %w", err)
	}
	meta.samplesPerRec = make([]int, ns)
	for i := range meta.samplesPerRec {
		meta.samplesPerRec[i], err = strconv.Atoi(strings.TrimSpace(string(sprBytes[i*8 : (i+1)*8])))
		if err != nil {
			return edfMeta{}, fmt.Errorf("parse samples per record for signal %d: %w", i, err)
		}
	}
	return meta, nil
}

// #endregion header

// #region load

// LoadEDF reads an EDF/EDF+ recording into a continuous signal. With no
// channel names given, every signal except the annotations track is
// loaded. All loaded signals must share one sampling rate.
func LoadEDF(path string, channels ...string) (*sigproc.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open edf: %w", err)
	}
	defer f.Close()

	meta, err := readEDFMeta(f)
	if err != nil {
		return nil, fmt.Errorf("edf header: %w", err)
	}
	if meta.dataRecords < 0 {
		return nil, fmt.Errorf("%w: recording has an unknown data record count", sigproc.ErrInvalidParameter)
	}
	if meta.recordSeconds <= 0 {
		return nil, fmt.Errorf("%w: data record duration %v must be > 0", sigproc.ErrInvalidParameter, meta.recordSeconds)
	}

	indices, err := selectEDFSignals(meta.labels, channels)
	if err != nil {
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	er, err := edf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("open edf reader: %w", err)
	}

	rate := float64(meta.samplesPerRec[indices[0]]) / meta.recordSeconds
	names := make([]string, 0, len(indices))
	data := make([][]float64, 0, len(indices))
	for _, idx := range indices {
		sigRate := float64(meta.samplesPerRec[idx]) / meta.recordSeconds
		if sigRate != rate {
			return nil, fmt.Errorf("%w: signal %q runs at %v Hz, want %v", sigproc.ErrShapeMismatch, meta.labels[idx], sigRate, rate)
		}

		sr, err := er.Signal(idx)
		if err != nil {
			return nil, fmt.Errorf("signal %q: %w", meta.labels[idx], err)
		}
		samples := make([]float64, meta.dataRecords*meta.samplesPerRec[idx])
		n, err := sr.Read(samples)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read signal %q: %w", meta.labels[idx], err)
		}
		if n != len(samples) {
			return nil, fmt.Errorf("%w: signal %q has %d samples, want %d", sigproc.ErrShapeMismatch, meta.labels[idx], n, len(samples))
		}
		names = append(names, meta.labels[idx])
		data = append(data, samples)
	}

	return sigproc.NewSignal(rate, names, data)
}

// selectEDFSignals maps requested channel names to signal indices, or
// picks everything except annotation tracks when none are requested.
func selectEDFSignals(labels []string, channels []string) ([]int, error) {
	if len(channels) == 0 {
		var indices []int
		for i, label := range labels {
			if strings.Contains(label, "Annotations") {
				continue
			}
			indices = append(indices, i)
		}
		if len(indices) == 0 {
			return nil, fmt.Errorf("%w: recording has no data signals", sigproc.ErrShapeMismatch)
		}
		return indices, nil
	}

	indices := make([]int, 0, len(channels))
	for _, name := range channels {
		found := -1
		for i, label := range labels {
			if label == name {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("%w: no signal named %q in recording", sigproc.ErrShapeMismatch, name)
		}
		indices = append(indices, found)
	}
	return indices, nil
}

// #endregion load
