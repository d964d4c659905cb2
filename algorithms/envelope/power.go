package envelope

import (
	"fmt"
	"math"

	"github.com/calmsense/neurometrics/algorithms/filters"
	"github.com/calmsense/neurometrics/algorithms/stats"
)

// EmptySeriesError reports that filtering and clipping left no finite
// samples in an envelope series (typically a sampling rate too low
// for the requested band).
type EmptySeriesError struct {
	Reason string
}

func (e *EmptySeriesError) Error() string {
	return fmt.Sprintf("empty envelope series: %s", e.Reason)
}

// PowerParams contains smoothing and resampling parameters for the
// narrowband envelope power pipeline.
type PowerParams struct {
	ClipPercentile      float64 `json:"clip_percentile"`       // upper clip bound, default 0.90
	ResampleSeconds     float64 `json:"resample_seconds"`      // output cadence, default 2s
	MeanWindowSeconds   float64 `json:"mean_window_seconds"`   // first smoothing pass, default 6s
	MedianWindowSeconds float64 `json:"median_window_seconds"` // second smoothing pass, default 8s
}

// DefaultPowerParams returns the envelope pipeline defaults: clip at
// the 90th percentile, 2-second cadence, 6-second mean then 8-second
// median smoothing.
func DefaultPowerParams() PowerParams {
	return PowerParams{
		ClipPercentile:      0.90,
		ResampleSeconds:     2.0,
		MeanWindowSeconds:   6.0,
		MedianWindowSeconds: 8.0,
	}
}

// Series is a smoothed, resampled squared-envelope power series for
// one narrowband metric, with first/second-half summary values.
type Series struct {
	Values         []float64 `json:"values"`           // power at each cadence step
	StepSeconds    float64   `json:"step_seconds"`     // seconds between values
	FirstHalfMean  float64   `json:"first_half_mean"`  // mean over the first half
	SecondHalfMean float64   `json:"second_half_mean"` // mean over the second half
	ChangePercent  float64   `json:"change_percent"`   // (second-first)/first * 100, NaN if first is 0
}

// TimeAt returns the offset in seconds of value i from the series start
func (s *Series) TimeAt(i int) float64 {
	return float64(i) * s.StepSeconds
}

// Slice returns the values covering [startSec, endSec) relative to
// the series start.
func (s *Series) Slice(startSec, endSec float64) []float64 {
	if s.StepSeconds <= 0 || len(s.Values) == 0 {
		return nil
	}
	lo := int(math.Ceil(startSec / s.StepSeconds))
	hi := int(math.Ceil(endSec / s.StepSeconds))
	if lo < 0 {
		lo = 0
	}
	if hi > len(s.Values) {
		hi = len(s.Values)
	}
	if lo >= hi {
		return nil
	}
	return s.Values[lo:hi]
}

// PowerExtractor derives narrowband envelope power series: zero-phase
// bandpass, analytic-signal envelope, squared, averaged across the
// channel set, percentile-clipped, resampled and smoothed.
type PowerExtractor struct {
	sampleRate float64
	low, high  float64
	params     PowerParams
	hilbert    *Hilbert
}

// NewPowerExtractor creates an extractor for the band [low, high] Hz
func NewPowerExtractor(sampleRate, low, high float64, params PowerParams) *PowerExtractor {
	if params.ClipPercentile <= 0 || params.ClipPercentile > 1 {
		params.ClipPercentile = DefaultPowerParams().ClipPercentile
	}
	if params.ResampleSeconds <= 0 {
		params.ResampleSeconds = DefaultPowerParams().ResampleSeconds
	}
	return &PowerExtractor{
		sampleRate: sampleRate,
		low:        low,
		high:       high,
		params:     params,
		hilbert:    NewHilbert(),
	}
}

// ChannelPower computes the squared-envelope power of one channel at
// the raw sampling rate (no clipping or smoothing). Used directly for
// asymmetry metrics that need per-channel series.
func (pe *PowerExtractor) ChannelPower(signal []float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, &EmptySeriesError{Reason: "no samples"}
	}

	filter, err := filters.NewBandpassFilterForBand(pe.sampleRate, pe.low, pe.high)
	if err != nil {
		return nil, &EmptySeriesError{Reason: err.Error()}
	}

	filtered := filter.ProcessZeroPhase(signal)
	return pe.hilbert.EnvelopePower(filtered), nil
}

// Extract runs the full pipeline over one or more channels: squared
// envelopes averaged elementwise across channels, clipped to the
// configured upper percentile (power stays non-negative, so the lower
// bound is zero), resampled to the fixed cadence by median, then
// smoothed with a centered rolling mean followed by a slightly longer
// centered rolling median. The mean pass tracks the slow trend; the
// median pass strips the residual instantaneous noise.
func (pe *PowerExtractor) Extract(channels [][]float64) (*Series, error) {
	if len(channels) == 0 {
		return nil, &EmptySeriesError{Reason: "no channels"}
	}

	var mean []float64
	for _, signal := range channels {
		power, err := pe.ChannelPower(signal)
		if err != nil {
			return nil, err
		}
		if mean == nil {
			mean = power
			continue
		}
		if len(power) != len(mean) {
			return nil, &EmptySeriesError{Reason: "channel lengths differ"}
		}
		for i, p := range power {
			mean[i] += p
		}
	}
	for i := range mean {
		mean[i] /= float64(len(channels))
	}

	// Clip onset/artifact transients without discarding samples
	upper := stats.Quantile(mean, pe.params.ClipPercentile)
	if math.IsNaN(upper) {
		return nil, &EmptySeriesError{Reason: "no finite envelope samples"}
	}
	for i, v := range mean {
		if v > upper {
			mean[i] = upper
		}
		if v < 0 {
			mean[i] = 0
		}
	}

	samplesPerBin := int(math.Round(pe.params.ResampleSeconds * pe.sampleRate))
	if samplesPerBin < 1 {
		samplesPerBin = 1
	}
	resampled := stats.ResampleMedian(mean, samplesPerBin)

	if w := pe.windowSteps(pe.params.MeanWindowSeconds); w > 1 {
		resampled = stats.RollingMean(resampled, w)
	}
	if w := pe.windowSteps(pe.params.MedianWindowSeconds); w > 1 {
		resampled = stats.RollingMedian(resampled, w)
	}

	finite := 0
	for _, v := range resampled {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite++
		}
	}
	if finite == 0 {
		return nil, &EmptySeriesError{Reason: "no finite samples after smoothing"}
	}

	series := &Series{
		Values:      resampled,
		StepSeconds: pe.params.ResampleSeconds,
	}

	mid := len(resampled) / 2
	series.FirstHalfMean = stats.Mean(resampled[:mid])
	series.SecondHalfMean = stats.Mean(resampled[mid:])
	if series.FirstHalfMean != 0 && !math.IsNaN(series.FirstHalfMean) {
		series.ChangePercent = (series.SecondHalfMean - series.FirstHalfMean) / series.FirstHalfMean * 100.0
	} else {
		series.ChangePercent = math.NaN()
	}

	return series, nil
}

func (pe *PowerExtractor) windowSteps(seconds float64) int {
	if seconds <= 0 || pe.params.ResampleSeconds <= 0 {
		return 0
	}
	return int(math.Round(seconds / pe.params.ResampleSeconds))
}
