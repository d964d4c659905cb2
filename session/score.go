package session

import (
	"math"
	"sort"
)

// Qualitative composite score levels
const (
	LevelExcellent = "excellent"
	LevelGood      = "good"
	LevelFair      = "fair"
	LevelNeedsWork = "needs improvement"
)

// neutralValue is the normalized value substituted for missing
// indicators: the indicator's weight still applies, to a neutral
// contribution, instead of silently shrinking the weighted sum.
const neutralValue = 0.5

// Normalize min-max scales a raw indicator value into [0, 1] against
// its documented reference range. A NaN raw value (missing) maps to
// exactly 0.5, as does a degenerate range with Max == Min. Values
// outside the range are clipped before scaling. For "lower is better"
// indicators (Reverse) the scaled value is inverted.
func Normalize(raw float64, rng IndicatorRange) float64 {
	if math.IsNaN(raw) {
		return neutralValue
	}
	if rng.Max == rng.Min {
		return neutralValue
	}

	if raw < rng.Min {
		raw = rng.Min
	}
	if raw > rng.Max {
		raw = rng.Max
	}

	scaled := (raw - rng.Min) / (rng.Max - rng.Min)
	if rng.Reverse {
		return 1.0 - scaled
	}
	return scaled
}

// CompositeScore is the weighted combination of normalized indicators
// into a 0-100 score with a qualitative level. Scores records the
// per-indicator breakdown for every weight-map key; Neutral lists the
// indicators that fell back to the 0.5 default because no value was
// supplied.
type CompositeScore struct {
	Total   float64            `json:"total"`
	Level   string             `json:"level"`
	Scores  map[string]float64 `json:"scores"`
	Weights map[string]float64 `json:"weights"`
	Neutral []string           `json:"neutral,omitempty"`
}

// ScoreIndicators combines normalized indicator values under the given
// weight map. Every weight-map key contributes: an indicator absent
// from the input (or NaN) contributes the neutral 0.5 and is recorded
// in the Neutral list.
func ScoreIndicators(indicators map[string]float64, weights map[string]float64) CompositeScore {
	score := CompositeScore{
		Scores:  make(map[string]float64, len(weights)),
		Weights: weights,
	}

	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0.0
	for _, name := range names {
		value, ok := indicators[name]
		if !ok || math.IsNaN(value) {
			value = neutralValue
			score.Neutral = append(score.Neutral, name)
		}
		score.Scores[name] = value
		total += weights[name] * value
	}

	score.Total = 100.0 * total
	score.Level = levelFor(score.Total)
	return score
}

func levelFor(total float64) string {
	switch {
	case total >= 80:
		return LevelExcellent
	case total >= 65:
		return LevelGood
	case total >= 50:
		return LevelFair
	default:
		return LevelNeedsWork
	}
}
