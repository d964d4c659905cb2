package envelope

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, amplitude, sampleRate float64, n int) []float64 {
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return signal
}

func TestHilbertEnvelopeOfSine(t *testing.T) {
	// The envelope of a pure sine is its amplitude, away from the
	// transform's edge effects.
	const sampleRate = 256.0
	signal := sine(10.0, 2.0, sampleRate, 2048)

	env := NewHilbert().Envelope(signal)
	require.Len(t, env, len(signal))

	for i := 256; i < len(env)-256; i++ {
		assert.InDelta(t, 2.0, env[i], 0.1)
	}
}

func TestHilbertEnvelopeOddLength(t *testing.T) {
	// An odd-length signal has no Nyquist bin: positive frequencies
	// run through bin (n-1)/2 and every one of them must survive into
	// the analytic signal. A unit cosine exactly on the last positive
	// bin keeps an envelope of 1 across the whole signal.
	const n = 101
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = math.Cos(2 * math.Pi * 50.0 * float64(i) / n)
	}

	env := NewHilbert().Envelope(signal)
	require.Len(t, env, n)
	for i, v := range env {
		assert.InDelta(t, 1.0, v, 1e-9, "sample %d", i)
	}
}

func TestHilbertEnvelopePowerIsSquaredEnvelope(t *testing.T) {
	signal := sine(10.0, 2.0, 256.0, 1024)

	h := NewHilbert()
	env := h.Envelope(signal)
	power := h.EnvelopePower(signal)

	for i := range env {
		assert.InDelta(t, env[i]*env[i], power[i], 1e-9)
	}
}

func TestHilbertEmptySignal(t *testing.T) {
	assert.Empty(t, NewHilbert().Analytic(nil))
}

func TestExtractProducesSmoothedSeries(t *testing.T) {
	const sampleRate = 128.0
	signal := sine(6.5, 1.0, sampleRate, int(sampleRate)*120)

	extractor := NewPowerExtractor(sampleRate, 6.0, 7.0, DefaultPowerParams())
	series, err := extractor.Extract([][]float64{signal})
	require.NoError(t, err)

	// 120 s at a 2 s cadence
	assert.Equal(t, 60, len(series.Values))
	assert.Equal(t, 2.0, series.StepSeconds)

	for _, v := range series.Values {
		assert.False(t, math.IsNaN(v))
		assert.GreaterOrEqual(t, v, 0.0)
	}

	// Stationary signal: both halves carry similar power
	assert.InDelta(t, series.FirstHalfMean, series.SecondHalfMean, series.FirstHalfMean*0.5)
}

func TestExtractClipsSpike(t *testing.T) {
	// A single 100x amplitude spike must not survive the percentile
	// clip: the smoothed series stays near the clean signal's level.
	const sampleRate = 128.0
	n := int(sampleRate) * 120

	clean := sine(6.5, 1.0, sampleRate, n)
	spiked := sine(6.5, 1.0, sampleRate, n)
	spiked[n/2] += 100.0

	extractor := NewPowerExtractor(sampleRate, 6.0, 7.0, DefaultPowerParams())

	cleanSeries, err := extractor.Extract([][]float64{clean})
	require.NoError(t, err)
	spikedSeries, err := extractor.Extract([][]float64{spiked})
	require.NoError(t, err)

	maxOf := func(values []float64) float64 {
		max := math.Inf(-1)
		for _, v := range values {
			if v > max {
				max = v
			}
		}
		return max
	}

	cleanMax := maxOf(cleanSeries.Values)
	spikedMax := maxOf(spikedSeries.Values)
	assert.Less(t, spikedMax, cleanMax*3, "spike energy should be clipped, not smoothed in")
}

func TestExtractAveragesChannels(t *testing.T) {
	const sampleRate = 128.0
	n := int(sampleRate) * 60

	loud := sine(6.5, 2.0, sampleRate, n)
	quiet := sine(6.5, 1.0, sampleRate, n)

	extractor := NewPowerExtractor(sampleRate, 6.0, 7.0, DefaultPowerParams())
	both, err := extractor.Extract([][]float64{loud, quiet})
	require.NoError(t, err)
	loudOnly, err := extractor.Extract([][]float64{loud})
	require.NoError(t, err)

	assert.Less(t, both.FirstHalfMean, loudOnly.FirstHalfMean)
}

func TestExtractNoChannels(t *testing.T) {
	extractor := NewPowerExtractor(128.0, 6.0, 7.0, DefaultPowerParams())

	_, err := extractor.Extract(nil)
	var empty *EmptySeriesError
	require.True(t, errors.As(err, &empty))
}

func TestExtractBandAboveNyquist(t *testing.T) {
	// 10 Hz sampling cannot carry a 6-7 Hz band
	extractor := NewPowerExtractor(10.0, 6.0, 7.0, DefaultPowerParams())

	_, err := extractor.Extract([][]float64{sine(1.0, 1.0, 10.0, 100)})
	var empty *EmptySeriesError
	require.True(t, errors.As(err, &empty))
}

func TestExtractMismatchedChannelLengths(t *testing.T) {
	extractor := NewPowerExtractor(128.0, 6.0, 7.0, DefaultPowerParams())

	_, err := extractor.Extract([][]float64{
		sine(6.5, 1.0, 128.0, 1280),
		sine(6.5, 1.0, 128.0, 640),
	})
	var empty *EmptySeriesError
	require.True(t, errors.As(err, &empty))
}

func TestSeriesSlice(t *testing.T) {
	series := &Series{
		Values:      []float64{0, 1, 2, 3, 4},
		StepSeconds: 2.0,
	}

	assert.Equal(t, []float64{0, 1}, series.Slice(0, 4))
	assert.Equal(t, []float64{2, 3}, series.Slice(4, 8))
	assert.Equal(t, []float64{4}, series.Slice(8, 100))
	assert.Nil(t, series.Slice(100, 200))
	assert.Equal(t, 4.0, series.TimeAt(2))
}
