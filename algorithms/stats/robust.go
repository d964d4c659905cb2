package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultZThreshold is the |z| cutoff for outlier rejection
const DefaultZThreshold = 3.0

// Summary contains an outlier-resistant statistical summary of a
// metric series.
type Summary struct {
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"std_dev"` // sample std over the retained values
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	IQR      float64 `json:"iqr"`
	Outliers int     `json:"outliers"` // values discarded by the z-score filter
	Count    int     `json:"count"`    // finite values retained
}

// Robust computes outlier-resistant summaries. Non-finite entries are
// dropped first. With more than 3 finite values, each value's z-score
// (population std) is computed and values with |z| >= the threshold
// are discarded before summarizing.
// With 3 or fewer finite values there are too few points to estimate
// a stable z-score, so the raw statistics are reported unfiltered.
type Robust struct {
	zThreshold float64
}

// NewRobust creates a robust summarizer with the given z threshold;
// a non-positive threshold falls back to the default 3.0.
func NewRobust(zThreshold float64) *Robust {
	if zThreshold <= 0 {
		zThreshold = DefaultZThreshold
	}
	return &Robust{zThreshold: zThreshold}
}

// Summarize computes the summary. ok is false when no finite value
// survives filtering (the summary fields are NaN in that case).
func (r *Robust) Summarize(values []float64) (Summary, bool) {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}

	outliers := 0
	kept := finite
	if len(finite) > 3 {
		mean := stat.Mean(finite, nil)
		std := populationStd(finite, mean)
		if std > 0 {
			kept = make([]float64, 0, len(finite))
			for _, v := range finite {
				if math.Abs(v-mean)/std < r.zThreshold {
					kept = append(kept, v)
				} else {
					outliers++
				}
			}
		}
	}

	if len(kept) == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, Median: nan, StdDev: nan, Min: nan, Max: nan, IQR: nan, Outliers: outliers}, false
	}

	sorted := make([]float64, len(kept))
	copy(sorted, kept)
	sort.Float64s(sorted)

	summary := Summary{
		Mean:     stat.Mean(kept, nil),
		Median:   quantileSorted(sorted, 0.5),
		Min:      sorted[0],
		Max:      sorted[len(sorted)-1],
		IQR:      quantileSorted(sorted, 0.75) - quantileSorted(sorted, 0.25),
		Outliers: outliers,
		Count:    len(kept),
	}
	if len(kept) > 1 {
		summary.StdDev = stat.StdDev(kept, nil)
	}

	return summary, true
}

// Mean returns the arithmetic mean of the finite entries, or NaN when
// none remain.
func Mean(values []float64) float64 {
	sum := 0.0
	count := 0
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sum += v
			count++
		}
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

// Median returns the median of the finite entries, or NaN when none
// remain.
func Median(values []float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)
	return quantileSorted(finite, 0.5)
}

// Quantile returns the p-quantile (0-1, linear interpolation) of the
// finite entries.
func Quantile(values []float64, p float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)
	return quantileSorted(finite, p)
}

// quantileSorted computes a linearly interpolated quantile over a
// sorted slice (the R-7 definition).
func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
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
