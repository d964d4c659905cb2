package stats

import (
	"math"
)

// RollingMean computes a centered rolling mean with a minimum period
// of one: edge windows shrink instead of producing NaN. Non-finite
// entries inside a window are skipped.
func RollingMean(values []float64, window int) []float64 {
	if len(values) == 0 || window <= 0 {
		return values
	}
	if window > len(values) {
		window = len(values)
	}

	smoothed := make([]float64, len(values))
	halfWindow := window / 2

	for i := range values {
		sum := 0.0
		count := 0
		for j := i - halfWindow; j <= i+halfWindow; j++ {
			if j < 0 || j >= len(values) {
				continue
			}
			v := values[j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			sum += v
			count++
		}
		if count > 0 {
			smoothed[i] = sum / float64(count)
		} else {
			smoothed[i] = math.NaN()
		}
	}

	return smoothed
}

// RollingMedian computes a centered rolling median with a minimum
// period of one.
func RollingMedian(values []float64, window int) []float64 {
	if len(values) == 0 || window <= 0 {
		return values
	}
	if window > len(values) {
		window = len(values)
	}

	smoothed := make([]float64, len(values))
	halfWindow := window / 2
	buf := make([]float64, 0, window+1)

	for i := range values {
		buf = buf[:0]
		for j := i - halfWindow; j <= i+halfWindow; j++ {
			if j < 0 || j >= len(values) {
				continue
			}
			v := values[j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			buf = append(buf, v)
		}
		if len(buf) > 0 {
			smoothed[i] = Median(buf)
		} else {
			smoothed[i] = math.NaN()
		}
	}

	return smoothed
}

// ResampleMedian buckets an evenly sampled series into fixed-cadence
// bins and takes the median of each bin. samplesPerBin is the number
// of input samples per output sample. Empty bins become NaN.
func ResampleMedian(values []float64, samplesPerBin int) []float64 {
	if samplesPerBin <= 1 || len(values) == 0 {
		return values
	}

	numBins := (len(values) + samplesPerBin - 1) / samplesPerBin
	resampled := make([]float64, numBins)
	for b := 0; b < numBins; b++ {
		start := b * samplesPerBin
		end := start + samplesPerBin
		if end > len(values) {
			end = len(values)
		}
		resampled[b] = Median(values[start:end])
	}
	return resampled
}
