package spectral

import (
	"math"
)

// logOffset guards the logarithm when a band average is exactly zero.
// Log unit is Bels-style: 10*log10(power + logOffset).
const logOffset = 1e-12

// BandPower is the aggregate power of one frequency band in log units.
// Missing is set when no PSD bins fell inside the band.
type BandPower struct {
	Band     string  `json:"band"`
	LogPower float64 `json:"log_power"` // 10*log10(mean linear power + 1e-12)
	Missing  bool    `json:"missing"`
}

// BandPowerAggregator integrates a PSD into named frequency bands and
// converts the result to log units. Output is deterministic for
// identical inputs.
type BandPowerAggregator struct {
	// No state needed - stateless calculation
}

// NewBandPowerAggregator creates a new band power aggregator
func NewBandPowerAggregator() *BandPowerAggregator {
	return &BandPowerAggregator{}
}

// Aggregate selects PSD bins with low <= f < high, averages power
// across those bins and across the given channel subset (nil means
// all channels), then converts to log units. A band with no bins in
// range is reported Missing rather than zero.
func (ba *BandPowerAggregator) Aggregate(psd *PSD, band string, low, high float64, channels []int) BandPower {
	if psd == nil || len(psd.Power) == 0 {
		return BandPower{Band: band, LogPower: math.NaN(), Missing: true}
	}

	if channels == nil {
		channels = make([]int, len(psd.Power))
		for i := range channels {
			channels[i] = i
		}
	}

	sum := 0.0
	count := 0
	for i, f := range psd.Freqs {
		if f < low || f >= high {
			continue
		}
		for _, ch := range channels {
			if ch < 0 || ch >= len(psd.Power) {
				continue
			}
			sum += psd.Power[ch][i]
			count++
		}
	}

	if count == 0 {
		return BandPower{Band: band, LogPower: math.NaN(), Missing: true}
	}

	// Average first, log once: the log conversion happens exactly once
	// per band so it stays consistent across every call site.
	mean := sum / float64(count)
	return BandPower{
		Band:     band,
		LogPower: 10.0 * math.Log10(mean+logOffset),
		Missing:  false,
	}
}

// LinearFromLog converts a log-unit band power back to linear power
func LinearFromLog(logPower float64) float64 {
	return math.Pow(10, logPower/10.0)
}
