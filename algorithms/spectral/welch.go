package spectral

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/calmsense/neurometrics/algorithms/windowing"
)

// epsFloor is the smallest power substituted for zero or negative
// estimator output before any logarithm is taken.
var epsFloor = math.Nextafter(1, 2) - 1

// WelchParams contains parameters for Welch PSD estimation
type WelchParams struct {
	NFFT    int     `json:"nfft"`     // Segment length; clamped to the available samples
	Overlap int     `json:"overlap"`  // Samples of overlap between segments; 0 means NFFT/2
	MinFreq float64 `json:"min_freq"` // Lower bound of the frequency range of interest (Hz)
	MaxFreq float64 `json:"max_freq"` // Upper bound (Hz); capped at 95% of Nyquist
}

// DefaultWelchParams returns the estimation defaults used for scalp
// potential channels: 512-sample Hann segments, 50% overlap, 1-50 Hz.
func DefaultWelchParams() WelchParams {
	return WelchParams{
		NFFT:    512,
		Overlap: 0,
		MinFreq: 1.0,
		MaxFreq: 50.0,
	}
}

// PSD holds a one-sided power spectral density estimate for one or
// more channels sharing a frequency axis.
type PSD struct {
	Freqs    []float64   `json:"freqs"`    // Frequency bins (Hz)
	Power    [][]float64 `json:"power"`    // Per-channel power, same length as Freqs
	Channels []string    `json:"channels"` // Channel names, parallel to Power
}

// WelchEstimator computes an averaged-periodogram power spectral
// density (Welch's method) with a Hann taper, mean removal per
// segment and one-sided scaling.
type WelchEstimator struct {
	sampleRate float64
	params     WelchParams
}

// NewWelchEstimator creates an estimator for the given sampling rate
func NewWelchEstimator(sampleRate float64, params WelchParams) *WelchEstimator {
	if params.NFFT <= 0 {
		params.NFFT = DefaultWelchParams().NFFT
	}
	return &WelchEstimator{
		sampleRate: sampleRate,
		params:     params,
	}
}

// Estimate computes the PSD for every channel. All channels must have
// the same length. The segment length is clamped to the available
// duration; an InsufficientSamplesError is returned only when no
// usable segment remains.
func (we *WelchEstimator) Estimate(samples [][]float64, names []string) (*PSD, error) {
	if len(samples) == 0 || len(samples[0]) == 0 {
		return nil, &InsufficientSamplesError{Have: 0, Need: 2}
	}

	n := len(samples[0])
	nfft := we.params.NFFT
	if nfft > n {
		nfft = n
	}
	if nfft < 2 {
		return nil, &InsufficientSamplesError{Have: n, Need: 2}
	}

	overlap := we.params.Overlap
	if overlap <= 0 || overlap >= nfft {
		overlap = nfft / 2
	}

	window := windowing.NewHann(nfft, false)
	coeffs := window.GetCoefficients()
	scale := 1.0 / (window.SumSquares() * we.sampleRate)

	fft := fourier.NewFFT(nfft)
	numBins := nfft/2 + 1

	// Frequency range of interest, bounded away from the spectral edge
	nyquist := we.sampleRate / 2.0
	maxFreq := we.params.MaxFreq
	if maxFreq <= 0 || maxFreq > nyquist*0.95 {
		maxFreq = nyquist * 0.95
	}
	minFreq := we.params.MinFreq

	df := we.sampleRate / float64(nfft)

	var keep []int
	freqs := make([]float64, 0, numBins)
	for i := 0; i < numBins; i++ {
		f := float64(i) * df
		if f >= minFreq && f <= maxFreq {
			keep = append(keep, i)
			freqs = append(freqs, f)
		}
	}

	psd := &PSD{
		Freqs:    freqs,
		Power:    make([][]float64, len(samples)),
		Channels: names,
	}

	windowed := make([]float64, nfft)
	accum := make([]float64, numBins)

	for ch, signal := range samples {
		for i := range accum {
			accum[i] = 0
		}

		step := nfft - overlap
		numSegments := 0
		for start := 0; start+nfft <= len(signal); start += step {
			segment := signal[start : start+nfft]

			// Remove DC offset per segment before tapering
			mean := 0.0
			for _, v := range segment {
				mean += v
			}
			mean /= float64(nfft)

			for i := 0; i < nfft; i++ {
				windowed[i] = coeffs[i] * (segment[i] - mean)
			}

			spectrum := fft.Coefficients(nil, windowed)
			for i := 0; i < numBins; i++ {
				re := real(spectrum[i])
				im := imag(spectrum[i])
				accum[i] += re*re + im*im
			}
			numSegments++
		}

		if numSegments == 0 {
			return nil, &InsufficientSamplesError{Have: len(signal), Need: nfft}
		}

		full := make([]float64, numBins)
		for i := 0; i < numBins; i++ {
			full[i] = accum[i] * scale / float64(numSegments)
			// One-sided spectrum: double everything except DC and Nyquist
			if i > 0 && i < numBins-1 {
				full[i] *= 2.0
			}
			// Floor at machine epsilon so downstream logs stay finite
			if full[i] < epsFloor {
				full[i] = epsFloor
			}
		}

		selected := make([]float64, len(keep))
		for i, bin := range keep {
			selected[i] = full[bin]
		}
		psd.Power[ch] = selected
	}

	return psd, nil
}

// SampleRate returns the sampling rate the estimator was built for
func (we *WelchEstimator) SampleRate() float64 {
	return we.sampleRate
}

// Params returns the estimation parameters in use
func (we *WelchEstimator) Params() WelchParams {
	return we.params
}
