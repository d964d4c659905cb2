package edfio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmsense/neurometrics/logging"
)

func TestMain(m *testing.M) {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	os.Exit(m.Run())
}

func testSignal(label string, samplesPerRecord int) edf.SignalHeader {
	return edf.SignalHeader{
		Label:             label,
		TransducerType:    "AgAgCl electrode",
		PhysicalDimension: "uV",
		PhysicalMin:       -250,
		PhysicalMax:       250,
		DigitalMin:        -2048,
		DigitalMax:        2047,
		SamplesPerRecord:  samplesPerRecord,
	}
}

// writeRecording builds an EDF file with the given signals and one
// second of data per record.
func writeRecording(t *testing.T, signals []edf.SignalHeader, records int, fill func(signal, record, sample int) float64) *os.File {
	t.Helper()

	f, err := os.Create(filepath.Join(t.TempDir(), "recording.edf"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	w, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		PatientID:          "X X X X",
		RecordingID:        "Startdate 01-MAR-26",
		StartTime:          time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		DataRecordDuration: time.Second,
		SignalCount:        len(signals),
		Signals:            signals,
	})
	require.NoError(t, err)

	for r := 0; r < records; r++ {
		record := make([][]float64, len(signals))
		for s := range signals {
			record[s] = make([]float64, signals[s].SamplesPerRecord)
			for i := range record[s] {
				record[s][i] = fill(s, r, i)
			}
		}
		require.NoError(t, w.WriteRecord(record))
	}
	require.NoError(t, w.Close())

	return f
}

func TestLoadRecording(t *testing.T) {
	const sampleRate = 128
	signals := []edf.SignalHeader{
		testSignal("EEG Fp1", sampleRate),
		testSignal("EEG Fp2", sampleRate),
	}

	f := writeRecording(t, signals, 10, func(signal, record, sample int) float64 {
		ts := float64(record*sampleRate+sample) / sampleRate
		return 100.0 * math.Sin(2*math.Pi*10.0*ts)
	})

	table, err := Load(f)
	require.NoError(t, err)

	assert.Equal(t, 2, table.NumChannels())
	assert.Equal(t, []string{"EEG Fp1", "EEG Fp2"}, table.Channels())
	assert.Equal(t, float64(sampleRate), table.SampleRate())
	assert.Equal(t, 10*sampleRate, table.NumSamples())
	assert.Equal(t, 10.0, table.Duration())
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), table.Start())

	// Calibration round trip: 500 uV over 4096 steps is ~0.12 uV
	samples, ok := table.Channel("EEG Fp1")
	require.True(t, ok)
	for i := 0; i < sampleRate; i++ {
		ts := float64(i) / sampleRate
		assert.InDelta(t, 100.0*math.Sin(2*math.Pi*10.0*ts), samples[i], 0.25)
	}
}

func TestLoadSkipsAnnotationSignal(t *testing.T) {
	signals := []edf.SignalHeader{
		testSignal("EEG Fp1", 128),
		testSignal("EDF Annotations", 128),
	}

	f := writeRecording(t, signals, 2, func(signal, record, sample int) float64 {
		return 1.0
	})

	table, err := Load(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"EEG Fp1"}, table.Channels())
}

func TestLoadSkipsMismatchedRate(t *testing.T) {
	signals := []edf.SignalHeader{
		testSignal("EEG Fp1", 128),
		testSignal("ECG", 64),
	}

	f := writeRecording(t, signals, 2, func(signal, record, sample int) float64 {
		return 1.0
	})

	table, err := Load(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"EEG Fp1"}, table.Channels())
	assert.Equal(t, 128.0, table.SampleRate())
}

func TestLoadRejectsInconsistentHeaderSize(t *testing.T) {
	signals := []edf.SignalHeader{
		testSignal("EEG Fp1", 128),
		testSignal("EEG Fp2", 128),
	}

	f := writeRecording(t, signals, 2, func(signal, record, sample int) float64 {
		return 1.0
	})

	// Two signals imply a 768-byte header; claim 512 so the declared
	// data offset no longer matches the signal metadata.
	_, err := f.WriteAt([]byte("512     "), 184)
	require.NoError(t, err)

	_, err = Load(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header size")
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "empty.edf"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	_, err = Load(f)
	assert.Error(t, err)
}
