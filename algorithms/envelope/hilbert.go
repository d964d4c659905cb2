package envelope

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// Hilbert computes envelopes via the analytic signal
type Hilbert struct {
	// No state needed - stateless calculation
}

// NewHilbert creates a new analytic-signal envelope extractor
func NewHilbert() *Hilbert {
	return &Hilbert{}
}

// Analytic computes the analytic signal z = x + j*H(x) using the FFT
// method: zero the negative frequencies, double the positive ones,
// keep DC (and Nyquist for even lengths) unchanged, then invert.
func (h *Hilbert) Analytic(signal []float64) []complex128 {
	n := len(signal)
	if n == 0 {
		return []complex128{}
	}

	spectrum := fft.FFTReal(signal)

	// Positive frequencies run through bin (n-1)/2 for odd lengths;
	// even lengths place the Nyquist bin at n/2.
	half := (n + 1) / 2
	for i := 1; i < len(spectrum); i++ {
		switch {
		case i < half:
			spectrum[i] *= 2
		case i == half && n%2 == 0:
			// Nyquist bin stays unchanged for even lengths
		default:
			spectrum[i] = 0
		}
	}

	return fft.IFFT(spectrum)
}

// Envelope computes the instantaneous amplitude |z| of the analytic
// signal.
func (h *Hilbert) Envelope(signal []float64) []float64 {
	analytic := h.Analytic(signal)
	env := make([]float64, len(analytic))
	for i, z := range analytic {
		re := real(z)
		im := imag(z)
		env[i] = math.Sqrt(re*re + im*im)
	}
	return env
}

// EnvelopePower computes the squared envelope, an instantaneous-power
// proxy for the band-limited signal.
func (h *Hilbert) EnvelopePower(signal []float64) []float64 {
	analytic := h.Analytic(signal)
	power := make([]float64, len(analytic))
	for i, z := range analytic {
		re := real(z)
		im := imag(z)
		power[i] = re*re + im*im
	}
	return power
}
