package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeEDF writes a two-channel recording: 2 data records of 1 s at
// 5 samples per record, so 5 Hz with 10 samples per channel.
func writeEDF(t *testing.T, path string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "S01",
		RecordingID:        "p300 session",
		StartTime:          time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		DataRecordDuration: time.Second,
		SignalCount:        2,
		Signals: []edf.SignalHeader{
			{
				Label:             "C3",
				PhysicalDimension: "uV",
				PhysicalMin:       -100,
				PhysicalMax:       100,
				DigitalMin:        -32768,
				DigitalMax:        32767,
				SamplesPerRecord:  5,
			},
			{
				Label:             "C4",
				PhysicalDimension: "uV",
				PhysicalMin:       -100,
				PhysicalMax:       100,
				DigitalMin:        -32768,
				DigitalMax:        32767,
				SamplesPerRecord:  5,
			},
		},
	}
	w, err := edf.Create(f, hdr)
	require.NoError(t, err)

	require.NoError(t, w.WriteRecord([][]float64{
		{0, 10, 20, 30, 40},
		{0, -10, -20, -30, -40},
	}))
	require.NoError(t, w.WriteRecord([][]float64{
		{50, 60, 70, 80, 90},
		{-50, -60, -70, -80, -90},
	}))
	require.NoError(t, w.Close())
}

func TestLoadEDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.edf")
	writeEDF(t, path)

	sig, err := LoadEDF(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"C3", "C4"}, sig.Channels)
	assert.Equal(t, 5.0, sig.Rate)
	require.Equal(t, 10, sig.NumSamples())

	for i := 0; i < 10; i++ {
		assert.InDelta(t, float64(10*i), sig.Data[0][i], 0.01)
		assert.InDelta(t, float64(-10*i), sig.Data[1][i], 0.01)
	}
}

func TestLoadEDFSelectedChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.edf")
	writeEDF(t, path)

	sig, err := LoadEDF(path, "C4")
	require.NoError(t, err)

	assert.Equal(t, []string{"C4"}, sig.Channels)
	assert.InDelta(t, -90.0, sig.Data[0][9], 0.01)
}

func TestLoadEDFUnknownChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.edf")
	writeEDF(t, path)

	_, err := LoadEDF(path, "Cz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cz")
}

func TestLoadEDFMissingFile(t *testing.T) {
	_, err := LoadEDF(filepath.Join(t.TempDir(), "absent.edf"))
	require.Error(t, err)
}
