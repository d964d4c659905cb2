package session

import (
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmsense/neurometrics/logging"
)

func TestMain(m *testing.M) {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	os.Exit(m.Run())
}

// testTable builds a deterministic two-channel recording: a theta and
// an alpha component on both channels, with more alpha on the right.
func testTable(seconds float64, sampleRate float64) *SampleTable {
	n := int(seconds * sampleRate)
	left := make([]float64, n)
	right := make([]float64, n)
	for i := 0; i < n; i++ {
		ts := float64(i) / sampleRate
		theta := 20.0 * math.Sin(2*math.Pi*6.5*ts)
		alpha := 10.0 * math.Sin(2*math.Pi*10.0*ts)
		left[i] = theta + alpha
		right[i] = theta + 1.5*alpha
	}

	table := NewSampleTable(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), sampleRate)
	if err := table.AddChannel("Fp1", left); err != nil {
		panic(err)
	}
	if err := table.AddChannel("Fp2", right); err != nil {
		panic(err)
	}
	return table
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SegmentMinutes = 1.0
	cfg.WarmupMinutes = 0.0
	cfg.LeftChannel = "Fp1"
	cfg.RightChannel = "Fp2"
	cfg.Workers = 2
	return cfg
}

func TestSegmentBoundsCoverage(t *testing.T) {
	bounds := segmentBounds(650.0, 50.0, 300.0)
	require.Len(t, bounds, 2)

	// Contiguous coverage of [warmup, duration), last segment clipped
	assert.Equal(t, 50.0, bounds[0][0])
	assert.Equal(t, 350.0, bounds[0][1])
	assert.Equal(t, 350.0, bounds[1][0])
	assert.Equal(t, 650.0, bounds[1][1])
}

func TestSegmentBoundsExactFit(t *testing.T) {
	bounds := segmentBounds(600.0, 0.0, 300.0)
	require.Len(t, bounds, 2)
	assert.Equal(t, 600.0, bounds[1][1])
}

func TestAnalyzeSessionTooShort(t *testing.T) {
	cfg := testConfig()
	cfg.WarmupMinutes = 5.0

	table := testTable(60.0, 128.0)
	result, err := NewSegmenter(cfg).Analyze(table)

	var tooShort *SessionTooShortError
	require.True(t, errors.As(err, &tooShort))
	assert.Nil(t, result)
	assert.Equal(t, 60.0, tooShort.DurationSeconds)
	assert.Equal(t, 300.0, tooShort.WarmupSeconds)
}

func TestAnalyzeInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SegmentMinutes = -1

	_, err := NewSegmenter(cfg).Analyze(testTable(60.0, 128.0))
	var confErr *ConfigurationError
	require.True(t, errors.As(err, &confErr))
}

func TestAnalyzeFullSession(t *testing.T) {
	table := testTable(180.0, 128.0)
	result, err := NewSegmenter(testConfig()).Analyze(table)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 180.0, result.DurationSeconds)
	require.Len(t, result.Segments, 3)

	for i, m := range result.Segments {
		assert.Equal(t, i+1, m.Index)

		// Coverage invariant: contiguous half-open intervals
		if i > 0 {
			assert.Equal(t, result.Segments[i-1].EndSeconds, m.StartSeconds)
		}

		// The synthetic signal has strong theta and alpha content
		require.False(t, m.BandPowers[BandTheta].Missing)
		require.False(t, m.BandPowers[BandAlpha].Missing)
		assert.False(t, m.ThetaAlpha.Missing)
		assert.False(t, m.AlphaBeta.Missing)
		assert.False(t, m.EntropyMissing)
		assert.False(t, m.IAFMissing)

		// Alpha dominates the alpha band: IAF near 10 Hz
		assert.InDelta(t, 10.0, m.IAF.Mean, 0.6)

		assert.GreaterOrEqual(t, m.Score.Total, 0.0)
		assert.LessOrEqual(t, m.Score.Total, 100.0)
	}
	assert.Equal(t, 180.0, result.Segments[2].EndSeconds)

	// More alpha power on the right: positive asymmetry
	require.NotNil(t, result.Asymmetry)
	assert.Greater(t, result.Segments[0].Asymmetry, 0.0)

	assert.GreaterOrEqual(t, result.PeakSegment, 1)
	assert.LessOrEqual(t, result.PeakSegment, 3)

	assert.NotEmpty(t, result.Summaries)
	assert.GreaterOrEqual(t, result.SessionScore.Total, 0.0)
	assert.LessOrEqual(t, result.SessionScore.Total, 100.0)
}

func TestAnalyzeSegmentPeakStability(t *testing.T) {
	table := testTable(180.0, 128.0)
	result, err := NewSegmenter(testConfig()).Analyze(table)
	require.NoError(t, err)

	require.True(t, result.PeakTrackOK)
	assert.Greater(t, result.PeakTrackStep, 0.0)

	for _, m := range result.Segments {
		require.False(t, m.IAFStabilityMissing)

		// A steady 10 Hz alpha component keeps the in-segment peak
		// trace flat, so its coefficient of variation stays near zero
		// and the reversed-range indicator near its maximum.
		assert.InDelta(t, 0.0, m.IAFStability, 0.01)

		value, ok := m.Indicators[IndicatorIAFStability]
		require.True(t, ok)
		assert.Greater(t, value, 0.75)
		assert.NotContains(t, m.Score.Neutral, IndicatorIAFStability)
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	table := testTable(180.0, 128.0)
	segmenter := NewSegmenter(testConfig())

	first, err := segmenter.Analyze(table)
	require.NoError(t, err)
	second, err := segmenter.Analyze(table)
	require.NoError(t, err)

	assert.Equal(t, first.SessionScore.Total, second.SessionScore.Total)
	assert.Equal(t, first.PeakSegment, second.PeakSegment)
	require.Len(t, second.Segments, len(first.Segments))
	for i := range first.Segments {
		assert.Equal(t, first.Segments[i].Score.Total, second.Segments[i].Score.Total)
		assert.Equal(t, first.Segments[i].BandPowers, second.Segments[i].BandPowers)
	}
}

func TestAnalyzeWithoutAsymmetryChannels(t *testing.T) {
	cfg := testConfig()
	cfg.LeftChannel = ""
	cfg.RightChannel = ""

	result, err := NewSegmenter(cfg).Analyze(testTable(120.0, 128.0))
	require.NoError(t, err)

	assert.Nil(t, result.Asymmetry)
	for _, m := range result.Segments {
		assert.True(t, m.AsymmetryMissing)
	}
}

func TestSegmentTable(t *testing.T) {
	result, err := NewSegmenter(testConfig()).Analyze(testTable(120.0, 128.0))
	require.NoError(t, err)

	rows := result.SegmentTable()
	require.Len(t, rows, len(result.Segments))

	peaks := 0
	for i, row := range rows {
		assert.Equal(t, i+1, row.Index)
		assert.Contains(t, row.Values, IndicatorThetaPower)
		assert.Contains(t, row.Values, bandPowerMetric(BandAlpha))
		assert.Contains(t, row.Values, "iaf")
		if row.Peak {
			peaks++
			assert.Equal(t, result.PeakSegment, row.Index)
		}
	}
	assert.Equal(t, 1, peaks)
}

func TestSummaryTableContents(t *testing.T) {
	result, err := NewSegmenter(testConfig()).Analyze(testTable(180.0, 128.0))
	require.NoError(t, err)

	byMetric := make(map[string]MetricSummary)
	for _, s := range result.Summaries {
		byMetric[s.Metric] = s
	}

	theta, ok := byMetric[IndicatorThetaPower]
	require.True(t, ok)
	assert.Equal(t, "µV²", theta.Unit)
	assert.True(t, theta.Ok)
	assert.Equal(t, 3, theta.Stats.Count)

	iaf, ok := byMetric["iaf"]
	require.True(t, ok)
	assert.Equal(t, "Hz", iaf.Unit)
	assert.InDelta(t, 10.0, iaf.Stats.Mean, 0.6)

	for _, band := range testConfig().Bands {
		s, ok := byMetric[bandPowerMetric(band.Name)]
		require.True(t, ok, band.Name)
		assert.Equal(t, "dB", s.Unit)
	}
}
