package spectral

import (
	"fmt"

	"github.com/calmsense/neurometrics/algorithms/windowing"
)

// Spectrogram is a time-resolved power surface (time slices x
// frequency bins) for a single channel, used for peak-frequency
// tracking over a session.
type Spectrogram struct {
	Power          [][]float64 `json:"power"`           // Time x Frequency power matrix
	Freqs          []float64   `json:"freqs"`           // Frequency bins (Hz)
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	FreqResolution float64     `json:"freq_resolution"` // Hz per bin
	TimeResolution float64     `json:"time_resolution"` // seconds per frame
}

// SpectrogramAnalyzer computes short-time power spectra over a
// sliding Hann window.
type SpectrogramAnalyzer struct {
	fft        *FFT
	sampleRate float64
	windowSize int
	hopSize    int
}

// NewSpectrogramAnalyzer creates an analyzer with the given window
// and hop sizes (in samples).
func NewSpectrogramAnalyzer(sampleRate float64, windowSize, hopSize int) *SpectrogramAnalyzer {
	return &SpectrogramAnalyzer{
		fft:        NewFFT(),
		sampleRate: sampleRate,
		windowSize: windowSize,
		hopSize:    hopSize,
	}
}

// Compute builds the power surface for one channel, restricted to
// [minFreq, maxFreq] Hz.
func (sa *SpectrogramAnalyzer) Compute(signal []float64, minFreq, maxFreq float64) (*Spectrogram, error) {
	if sa.windowSize <= 0 || sa.hopSize <= 0 {
		return nil, fmt.Errorf("window size and hop size must be positive")
	}
	if len(signal) < sa.windowSize {
		return nil, &InsufficientSamplesError{Have: len(signal), Need: sa.windowSize}
	}

	numFrames := (len(signal)-sa.windowSize)/sa.hopSize + 1
	numBins := sa.windowSize/2 + 1
	df := sa.sampleRate / float64(sa.windowSize)

	var keep []int
	freqs := make([]float64, 0, numBins)
	for i := 0; i < numBins; i++ {
		f := float64(i) * df
		if f >= minFreq && f <= maxFreq {
			keep = append(keep, i)
			freqs = append(freqs, f)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("no frequency bins in range %.2f-%.2f Hz", minFreq, maxFreq)
	}

	window := windowing.NewHann(sa.windowSize, false)
	frame := make([]float64, sa.windowSize)

	result := &Spectrogram{
		Power:          make([][]float64, numFrames),
		Freqs:          freqs,
		TimeFrames:     numFrames,
		FreqBins:       len(keep),
		FreqResolution: df,
		TimeResolution: float64(sa.hopSize) / sa.sampleRate,
	}

	for t := 0; t < numFrames; t++ {
		start := t * sa.hopSize
		copy(frame, signal[start:start+sa.windowSize])
		if err := window.ApplyInPlace(frame); err != nil {
			return nil, err
		}

		spectrum := sa.fft.Compute(frame)
		row := make([]float64, len(keep))
		for i, bin := range keep {
			re := real(spectrum[bin])
			im := imag(spectrum[bin])
			row[i] = re*re + im*im
		}
		result.Power[t] = row
	}

	return result, nil
}
