package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, sampleRate float64, n int) []float64 {
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return signal
}

func rms(signal []float64) float64 {
	sum := 0.0
	for _, v := range signal {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(signal)))
}

func TestBandpassPassesCenterFrequency(t *testing.T) {
	const sampleRate = 256.0
	bf := NewBandpassFilter(sampleRate, 10.0, 4.0)

	inBand := bf.ProcessBuffer(sine(10.0, sampleRate, 2560))
	assert.Greater(t, rms(inBand[256:]), 0.5)

	bf.Reset()
	outOfBand := bf.ProcessBuffer(sine(40.0, sampleRate, 2560))
	assert.Less(t, rms(outOfBand[256:]), 0.2)
}

func TestBandpassFrequencyResponse(t *testing.T) {
	bf := NewBandpassFilter(256.0, 10.0, 4.0)

	atCenter, _ := bf.GetFrequencyResponse(10.0)
	assert.InDelta(t, 1.0, atCenter, 0.05)

	farAway, _ := bf.GetFrequencyResponse(60.0)
	assert.Less(t, farAway, 0.2)
}

func TestNewBandpassFilterForBand(t *testing.T) {
	bf, err := NewBandpassFilterForBand(256.0, 6.0, 7.0)
	require.NoError(t, err)

	center, bandwidth, _ := bf.GetParameters()
	assert.InDelta(t, math.Sqrt(6.0*7.0), center, 1e-9)
	assert.InDelta(t, 1.0, bandwidth, 1e-9)
}

func TestNewBandpassFilterForBandRejectsBadBands(t *testing.T) {
	_, err := NewBandpassFilterForBand(256.0, 0, 7.0)
	assert.Error(t, err)

	_, err = NewBandpassFilterForBand(256.0, 7.0, 6.0)
	assert.Error(t, err)

	// Band edge at or above Nyquist
	_, err = NewBandpassFilterForBand(10.0, 4.0, 5.0)
	assert.Error(t, err)
}

func TestProcessZeroPhasePreservesAlignment(t *testing.T) {
	// A Gaussian pulse modulated at the center frequency should stay
	// centered after forward-backward filtering.
	const sampleRate = 256.0
	const n = 1024
	signal := make([]float64, n)
	for i := range signal {
		tt := float64(i-n/2) / sampleRate
		signal[i] = math.Exp(-tt*tt*20) * math.Sin(2*math.Pi*10.0*float64(i)/sampleRate)
	}

	bf := NewBandpassFilter(sampleRate, 10.0, 4.0)
	filtered := bf.ProcessZeroPhase(signal)
	require.Len(t, filtered, n)

	peakIn, peakOut := 0, 0
	for i := range signal {
		if math.Abs(signal[i]) > math.Abs(signal[peakIn]) {
			peakIn = i
		}
		if math.Abs(filtered[i]) > math.Abs(filtered[peakOut]) {
			peakOut = i
		}
	}

	// Envelope peak shifts by less than half a cycle at 10 Hz
	assert.InDelta(t, float64(peakIn), float64(peakOut), sampleRate/10.0/2.0)
}

func TestSetParameters(t *testing.T) {
	bf := NewBandpassFilter(256.0, 10.0, 4.0)

	require.NoError(t, bf.SetParameters(20.0, 5.0))
	center, _, q := bf.GetParameters()
	assert.Equal(t, 20.0, center)
	assert.Equal(t, 4.0, q)

	assert.Error(t, bf.SetParameters(200.0, 5.0))
	assert.Error(t, bf.SetParameters(20.0, -1.0))
}
