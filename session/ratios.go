package session

import (
	"math"

	"github.com/calmsense/neurometrics/algorithms/spectral"
)

// Ratio names
const (
	RatioThetaAlpha = "theta_alpha"
	RatioAlphaBeta  = "alpha_beta"
)

// Ratio is a band-power ratio in both log and linear domains. Log is
// log10(numerator/denominator) in Bels, so Linear == 10^Log. A ratio
// with a missing or non-finite operand is Missing: it propagates as
// missing, never as a number derived from a partial operand.
type Ratio struct {
	Name    string  `json:"name"`
	Log     float64 `json:"log"`
	Linear  float64 `json:"linear"`
	Missing bool    `json:"missing"`
}

// NewRatio computes the ratio between two band powers of the same
// segment. No clamping is applied here: extreme ratios are legitimate
// signal, and bounding happens only at normalization time.
func NewRatio(name string, num, den spectral.BandPower) Ratio {
	if num.Missing || den.Missing ||
		math.IsNaN(num.LogPower) || math.IsInf(num.LogPower, 0) ||
		math.IsNaN(den.LogPower) || math.IsInf(den.LogPower, 0) {
		return Ratio{Name: name, Log: math.NaN(), Linear: math.NaN(), Missing: true}
	}

	// Band powers are 10*log10 units; dividing the difference by 10
	// yields log10(num/den).
	logRatio := (num.LogPower - den.LogPower) / 10.0
	return Ratio{
		Name:   name,
		Log:    logRatio,
		Linear: math.Pow(10, logRatio),
	}
}
