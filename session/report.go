package session

import (
	"fmt"
	"math"
	"strings"

	"github.com/calmsense/neurometrics/algorithms/stats"
)

// MetricSummary is one row of the session-level summary table: robust
// statistics over a metric's per-segment values plus its physical
// unit and display label.
type MetricSummary struct {
	Metric string        `json:"metric"`
	Label  string        `json:"label"`
	Unit   string        `json:"unit"`
	Stats  stats.Summary `json:"stats"`
	Ok     bool          `json:"ok"` // false when no finite value survived
}

// SegmentRow is one row of the flattened per-segment table handed to
// the reporting layer. Values holds every numeric metric keyed by
// metric name; missing metrics carry NaN and are called out in the
// annotation column.
type SegmentRow struct {
	Index        int                `json:"index"`
	StartSeconds float64            `json:"start_seconds"`
	EndSeconds   float64            `json:"end_seconds"`
	Values       map[string]float64 `json:"values"`
	Score        float64            `json:"score"`
	Level        string             `json:"level"`
	Annotation   string             `json:"annotation,omitempty"`
	Peak         bool               `json:"peak"`
}

// SegmentTable flattens the per-segment metrics into report rows,
// marking the peak segment.
func (r *Result) SegmentTable() []SegmentRow {
	rows := make([]SegmentRow, len(r.Segments))
	for i := range r.Segments {
		m := &r.Segments[i]

		values := map[string]float64{
			IndicatorThetaPower: m.ThetaPower,
			IndicatorEntropy:    m.Entropy,
			IndicatorAsymmetry:  m.Asymmetry,
			RatioThetaAlpha:     m.ThetaAlpha.Log,
			RatioAlphaBeta:      m.AlphaBeta.Linear,
		}
		for name, bp := range m.BandPowers {
			values[bandPowerMetric(name)] = bp.LogPower
		}
		if m.IAFMissing {
			values["iaf"] = math.NaN()
		} else {
			values["iaf"] = m.IAF.Mean
		}
		values[IndicatorIAFStability] = m.IAFStability

		rows[i] = SegmentRow{
			Index:        m.Index,
			StartSeconds: m.StartSeconds,
			EndSeconds:   m.EndSeconds,
			Values:       values,
			Score:        m.Score.Total,
			Level:        m.Score.Level,
			Annotation:   strings.Join(m.Annotations, "; "),
			Peak:         m.Index == r.PeakSegment,
		}
	}
	return rows
}

func bandPowerMetric(band string) string {
	return band + "_power"
}

// buildSummaries assembles the session summary table: one row per
// metric with robust statistics over the per-segment values.
func buildSummaries(cfg *Config, result *Result) []MetricSummary {
	robust := stats.NewRobust(cfg.ZThreshold)
	segments := result.Segments

	summaries := []MetricSummary{
		summarize(robust, IndicatorThetaPower, "Midline theta power", "µV²",
			collect(segments, func(m *SegmentMetrics) (float64, bool) { return m.ThetaPower, !m.ThetaPowerMissing })),
		summarize(robust, IndicatorEntropy, "Spectral entropy", "",
			collect(segments, func(m *SegmentMetrics) (float64, bool) { return m.Entropy, !m.EntropyMissing })),
		summarize(robust, RatioThetaAlpha, "Theta/alpha ratio", "B",
			collect(segments, func(m *SegmentMetrics) (float64, bool) { return m.ThetaAlpha.Log, !m.ThetaAlpha.Missing })),
		summarize(robust, RatioAlphaBeta, "Alpha/beta ratio", "",
			collect(segments, func(m *SegmentMetrics) (float64, bool) { return m.AlphaBeta.Linear, !m.AlphaBeta.Missing })),
		summarize(robust, IndicatorAsymmetry, "Frontal alpha asymmetry", "",
			collect(segments, func(m *SegmentMetrics) (float64, bool) { return m.Asymmetry, !m.AsymmetryMissing })),
		summarize(robust, "iaf", "Individual alpha frequency", "Hz",
			collect(segments, func(m *SegmentMetrics) (float64, bool) { return m.IAF.Mean, !m.IAFMissing })),
		summarize(robust, IndicatorIAFStability, "Alpha peak stability", "",
			collect(segments, func(m *SegmentMetrics) (float64, bool) { return m.IAFStability, !m.IAFStabilityMissing })),
		summarize(robust, "score", "Segment score", "",
			collect(segments, func(m *SegmentMetrics) (float64, bool) { return m.Score.Total, true })),
	}

	for _, band := range cfg.Bands {
		name := band.Name
		summaries = append(summaries, summarize(robust,
			bandPowerMetric(name),
			fmt.Sprintf("%s band power", titleCase(name)),
			"dB",
			collect(segments, func(m *SegmentMetrics) (float64, bool) {
				bp, ok := m.BandPowers[name]
				return bp.LogPower, ok && !bp.Missing
			})))
	}

	return summaries
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func summarize(robust *stats.Robust, metric, label, unit string, values []float64) MetricSummary {
	summary, ok := robust.Summarize(values)
	return MetricSummary{
		Metric: metric,
		Label:  label,
		Unit:   unit,
		Stats:  summary,
		Ok:     ok,
	}
}
