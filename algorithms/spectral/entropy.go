package spectral

import (
	"math"
)

// ShannonEntropy computes the Shannon entropy of a PSD slice treated
// as a probability distribution over frequency. When normalize is
// true the result is divided by the maximum entropy log2(n), giving a
// 0-1 spectral diversity measure (1 = flat spectrum).
func ShannonEntropy(power []float64, normalize bool) float64 {
	if len(power) == 0 {
		return math.NaN()
	}

	total := 0.0
	floored := make([]float64, len(power))
	for i, p := range power {
		if p < epsFloor || math.IsNaN(p) {
			p = epsFloor
		}
		floored[i] = p
		total += p
	}

	entropy := 0.0
	for _, p := range floored {
		prob := p / total
		entropy -= prob * math.Log2(prob)
	}

	if normalize {
		maxEntropy := math.Log2(float64(len(floored)))
		if maxEntropy > 0 {
			entropy /= maxEntropy
		}
	}

	return entropy
}

// SpectralEntropy computes the normalized Shannon entropy of each
// channel's PSD restricted to [low, high] Hz, then returns the
// cross-channel mean. ok is false when no bins fall in range.
func SpectralEntropy(psd *PSD, low, high float64, normalize bool) (float64, bool) {
	if psd == nil || len(psd.Power) == 0 {
		return math.NaN(), false
	}

	var bins []int
	for i, f := range psd.Freqs {
		if f >= low && f < high {
			bins = append(bins, i)
		}
	}
	if len(bins) == 0 {
		return math.NaN(), false
	}

	sum := 0.0
	for ch := range psd.Power {
		slice := make([]float64, len(bins))
		for i, bin := range bins {
			slice[i] = psd.Power[ch][bin]
		}
		sum += ShannonEntropy(slice, normalize)
	}

	return sum / float64(len(psd.Power)), true
}
