package spectral

import (
	"math"

	"github.com/calmsense/neurometrics/algorithms/stats"
)

// ChannelPeak is the frequency of maximum power within a band for a
// single channel.
type ChannelPeak struct {
	Channel   string  `json:"channel"`
	Frequency float64 `json:"frequency"` // Hz
	Power     float64 `json:"power"`     // linear power at the peak bin
}

// PeakSummary aggregates per-channel peaks into a single
// representative frequency (the cross-channel mean) with its
// standard deviation as a stability indicator.
type PeakSummary struct {
	ByChannel []ChannelPeak `json:"by_channel"`
	Mean      float64       `json:"mean"`    // cross-channel mean peak frequency (Hz)
	StdDev    float64       `json:"std_dev"` // cross-channel population std (Hz)
}

// PeakTrack is a time-resolved peak-frequency trace over a spectral
// surface, with a smoothed companion and summary statistics.
type PeakTrack struct {
	Raw      []float64 `json:"raw"`      // per-slice peak frequency (Hz)
	Smoothed []float64 `json:"smoothed"` // centered rolling mean of Raw
	Mean     float64   `json:"mean"`
	Median   float64   `json:"median"`
	StdDev   float64   `json:"std_dev"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
	CV       float64   `json:"cv"` // std/mean, stability indicator
}

// PeakTracker locates peak spectral frequencies within a band, both
// for a single PSD and over a time-resolved spectral surface.
type PeakTracker struct {
	low, high float64
}

// NewPeakTracker creates a tracker for the band [low, high] Hz
func NewPeakTracker(low, high float64) *PeakTracker {
	return &PeakTracker{low: low, high: high}
}

// FindPeaks returns per-channel peak frequencies within the band plus
// the cross-channel summary. Channels whose PSD has no bins in the
// band are skipped; if no channel contributes, ok is false.
func (pt *PeakTracker) FindPeaks(psd *PSD) (PeakSummary, bool) {
	var summary PeakSummary
	if psd == nil {
		return summary, false
	}

	var bins []int
	for i, f := range psd.Freqs {
		if f >= pt.low && f < pt.high {
			bins = append(bins, i)
		}
	}
	if len(bins) == 0 {
		return summary, false
	}

	var freqs []float64
	for ch := range psd.Power {
		best := bins[0]
		for _, bin := range bins[1:] {
			if psd.Power[ch][bin] > psd.Power[ch][best] {
				best = bin
			}
		}

		name := ""
		if ch < len(psd.Channels) {
			name = psd.Channels[ch]
		}
		summary.ByChannel = append(summary.ByChannel, ChannelPeak{
			Channel:   name,
			Frequency: psd.Freqs[best],
			Power:     psd.Power[ch][best],
		})
		freqs = append(freqs, psd.Freqs[best])
	}

	if len(freqs) == 0 {
		return summary, false
	}

	summary.Mean = meanOf(freqs)
	summary.StdDev = populationStd(freqs, summary.Mean)
	return summary, true
}

// Track recomputes the in-band argmax for each time slice of a
// spectral surface (slices x frequency bins), then smooths the trace
// with a centered rolling mean to remove frame-to-frame jitter while
// preserving slow drift. window defaults to 100 slices when <= 0.
func (pt *PeakTracker) Track(freqs []float64, surface [][]float64, window int) (PeakTrack, bool) {
	var track PeakTrack
	if len(surface) == 0 {
		return track, false
	}
	if window <= 0 {
		window = 100
	}

	var bins []int
	for i, f := range freqs {
		if f >= pt.low && f < pt.high {
			bins = append(bins, i)
		}
	}
	if len(bins) == 0 {
		return track, false
	}

	track.Raw = make([]float64, len(surface))
	for t, slice := range surface {
		best := bins[0]
		for _, bin := range bins[1:] {
			if slice[bin] > slice[best] {
				best = bin
			}
		}
		track.Raw[t] = freqs[best]
	}

	track.Smoothed = stats.RollingMean(track.Raw, window)

	track.Mean = meanOf(track.Raw)
	track.Median = stats.Median(track.Raw)
	track.StdDev = populationStd(track.Raw, track.Mean)
	track.Min, track.Max = minMax(track.Raw)
	if track.Mean != 0 {
		track.CV = track.StdDev / track.Mean
	} else {
		track.CV = math.NaN()
	}

	return track, true
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationStd(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
