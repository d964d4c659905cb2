package session

import (
	"errors"
	"math"

	"github.com/calmsense/neurometrics/algorithms/envelope"
	"github.com/calmsense/neurometrics/algorithms/spectral"
	"github.com/calmsense/neurometrics/algorithms/stats"
	"github.com/calmsense/neurometrics/logging"
)

// Entropy is computed over this range regardless of the band set
const (
	entropyMinFreq = 1.0
	entropyMaxFreq = 40.0
)

// Data-sufficiency annotations attached to segment rows
const (
	AnnotationInsufficientSamples = "insufficient samples"
	AnnotationNarrowbandMissing   = "narrowband metric unavailable"
	AnnotationAsymmetryMissing    = "asymmetry metric unavailable"
	AnnotationPeakMissing         = "no in-band spectral peak"
)

// SegmentMetrics holds every derived metric for one analysis segment.
// Missing flags mark metrics that could not be computed; missing
// values are NaN, never zero.
type SegmentMetrics struct {
	Index        int     `json:"index"` // 1-based, session-relative
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`

	BandPowers map[string]spectral.BandPower `json:"band_powers"`
	ThetaAlpha Ratio                         `json:"theta_alpha"`
	AlphaBeta  Ratio                         `json:"alpha_beta"`

	Entropy        float64 `json:"entropy"`
	EntropyMissing bool    `json:"entropy_missing"`

	// Mean midline narrowband theta envelope power over the segment (µV²)
	ThetaPower        float64 `json:"theta_power"`
	ThetaPowerMissing bool    `json:"theta_power_missing"`

	// Mean frontal alpha asymmetry over the segment
	Asymmetry        float64 `json:"asymmetry"`
	AsymmetryMissing bool    `json:"asymmetry_missing"`

	IAF        spectral.PeakSummary `json:"iaf"`
	IAFMissing bool                 `json:"iaf_missing"`

	// Coefficient of variation of the peak-frequency trace within the
	// segment: lower means a steadier alpha peak
	IAFStability        float64 `json:"iaf_stability"`
	IAFStabilityMissing bool    `json:"iaf_stability_missing"`

	// Normalized indicator values present for this segment
	Indicators map[string]float64 `json:"indicators"`
	Score      CompositeScore     `json:"score"`

	Annotations []string `json:"annotations,omitempty"`
}

// bandPower looks up an aggregated band; a band absent from the
// configured set is missing, not zero.
func (m *SegmentMetrics) bandPower(name string) spectral.BandPower {
	if bp, ok := m.BandPowers[name]; ok {
		return bp
	}
	return spectral.BandPower{Band: name, LogPower: math.NaN(), Missing: true}
}

// analyzer computes per-segment metrics against precomputed
// session-wide series. Safe for concurrent use: all fields are
// read-only after construction and every method allocates its own
// working state.
type analyzer struct {
	cfg        *Config
	table      *SampleTable
	estimator  *spectral.WelchEstimator
	aggregator *spectral.BandPowerAggregator
	iafTracker *spectral.PeakTracker

	theta *envelope.Series // nil when the theta envelope failed
	asym  *envelope.Series // nil when asymmetry is disabled or failed

	peakTrack spectral.PeakTrack
	peakStep  float64 // seconds per peak-track entry
	peakOK    bool

	log logging.Logger
}

func newAnalyzer(cfg *Config, table *SampleTable, precomputed *Result, log logging.Logger) *analyzer {
	alphaLow, alphaHigh := 8.0, 13.0
	if band, ok := cfg.Band(BandAlpha); ok {
		alphaLow, alphaHigh = band.Low, band.High
	}

	return &analyzer{
		cfg:        cfg,
		table:      table,
		estimator:  spectral.NewWelchEstimator(table.SampleRate(), cfg.Welch),
		aggregator: spectral.NewBandPowerAggregator(),
		iafTracker: spectral.NewPeakTracker(alphaLow, alphaHigh),
		theta:      precomputed.Theta,
		asym:       precomputed.Asymmetry,
		peakTrack:  precomputed.PeakTrack,
		peakStep:   precomputed.PeakTrackStep,
		peakOK:     precomputed.PeakTrackOK,
		log:        log,
	}
}

// analyzeSegment derives every metric for one segment. Per-metric
// failures are recorded as missing values plus an annotation; they
// never abort the run.
func (a *analyzer) analyzeSegment(index int, startSec, endSec float64) SegmentMetrics {
	m := SegmentMetrics{
		Index:        index,
		StartSeconds: startSec,
		EndSeconds:   endSec,
		BandPowers:   make(map[string]spectral.BandPower, len(a.cfg.Bands)),
		Entropy:      math.NaN(),
		ThetaPower:   math.NaN(),
		Asymmetry:    math.NaN(),
		IAFStability: math.NaN(),
	}

	a.spectralMetrics(&m)
	a.envelopeMetrics(&m)
	a.stabilityMetrics(&m)

	m.Indicators = a.normalizedIndicators(&m)
	m.Score = ScoreIndicators(m.Indicators, a.cfg.Weights)
	return m
}

func (a *analyzer) spectralMetrics(m *SegmentMetrics) {
	samples, names := a.table.Slice(nil, m.StartSeconds, m.EndSeconds)

	psd, err := a.estimator.Estimate(samples, names)
	if err != nil {
		var insufficient *spectral.InsufficientSamplesError
		if errors.As(err, &insufficient) {
			a.log.Warn("segment has too few samples for spectral estimation", logging.Fields{
				"segment": m.Index,
				"have":    insufficient.Have,
				"need":    insufficient.Need,
			})
		} else {
			a.log.Warn("spectral estimation failed", logging.Fields{
				"segment": m.Index,
				"error":   err.Error(),
			})
		}

		for _, band := range a.cfg.Bands {
			m.BandPowers[band.Name] = spectral.BandPower{Band: band.Name, LogPower: math.NaN(), Missing: true}
		}
		m.ThetaAlpha = Ratio{Name: RatioThetaAlpha, Log: math.NaN(), Linear: math.NaN(), Missing: true}
		m.AlphaBeta = Ratio{Name: RatioAlphaBeta, Log: math.NaN(), Linear: math.NaN(), Missing: true}
		m.EntropyMissing = true
		m.IAFMissing = true
		m.Annotations = append(m.Annotations, AnnotationInsufficientSamples)
		return
	}

	for _, band := range a.cfg.Bands {
		m.BandPowers[band.Name] = a.aggregator.Aggregate(psd, band.Name, band.Low, band.High, nil)
	}

	m.ThetaAlpha = NewRatio(RatioThetaAlpha, m.bandPower(BandTheta), m.bandPower(BandAlpha))
	m.AlphaBeta = NewRatio(RatioAlphaBeta, m.bandPower(BandAlpha), m.bandPower(BandBeta))

	if entropy, ok := spectral.SpectralEntropy(psd, entropyMinFreq, entropyMaxFreq, true); ok {
		m.Entropy = entropy
	} else {
		m.EntropyMissing = true
	}

	if iaf, ok := a.iafTracker.FindPeaks(psd); ok {
		m.IAF = iaf
	} else {
		m.IAFMissing = true
		m.Annotations = append(m.Annotations, AnnotationPeakMissing)
	}
}

func (a *analyzer) envelopeMetrics(m *SegmentMetrics) {
	if a.theta != nil {
		mean := stats.Mean(a.theta.Slice(m.StartSeconds, m.EndSeconds))
		if !math.IsNaN(mean) {
			m.ThetaPower = mean
		}
	}
	if math.IsNaN(m.ThetaPower) {
		m.ThetaPowerMissing = true
		m.Annotations = append(m.Annotations, AnnotationNarrowbandMissing)
	}

	if a.asym != nil {
		mean := stats.Mean(a.asym.Slice(m.StartSeconds, m.EndSeconds))
		if !math.IsNaN(mean) {
			m.Asymmetry = mean
		} else {
			m.AsymmetryMissing = true
			m.Annotations = append(m.Annotations, AnnotationAsymmetryMissing)
		}
	} else {
		m.AsymmetryMissing = true
	}
}

// stabilityMetrics derives the segment's peak-frequency stability from
// the session-wide trace: the coefficient of variation over the trace
// entries falling inside [start, end).
func (a *analyzer) stabilityMetrics(m *SegmentMetrics) {
	if !a.peakOK || a.peakStep <= 0 {
		m.IAFStabilityMissing = true
		return
	}

	lo := int(math.Ceil(m.StartSeconds / a.peakStep))
	hi := int(math.Ceil(m.EndSeconds / a.peakStep))
	if lo < 0 {
		lo = 0
	}
	if hi > len(a.peakTrack.Raw) {
		hi = len(a.peakTrack.Raw)
	}
	if hi-lo < 2 {
		m.IAFStabilityMissing = true
		return
	}

	slice := a.peakTrack.Raw[lo:hi]
	mean := stats.Mean(slice)
	if mean == 0 || math.IsNaN(mean) {
		m.IAFStabilityMissing = true
		return
	}

	var ss float64
	for _, v := range slice {
		d := v - mean
		ss += d * d
	}
	m.IAFStability = math.Sqrt(ss/float64(len(slice))) / mean
}

// normalizedIndicators maps the segment's raw metrics into the
// indicator vocabulary. Only computable indicators are included:
// composite scoring substitutes the neutral default for the rest.
func (a *analyzer) normalizedIndicators(m *SegmentMetrics) map[string]float64 {
	indicators := make(map[string]float64)

	if !m.ThetaPowerMissing {
		indicators[IndicatorThetaPower] = Normalize(m.ThetaPower, a.cfg.Ranges[IndicatorThetaPower])
	}
	if !m.EntropyMissing {
		indicators[IndicatorEntropy] = Normalize(m.Entropy, a.cfg.Ranges[IndicatorEntropy])
	}
	if !m.ThetaAlpha.Missing {
		indicators[IndicatorThetaAlpha] = Normalize(m.ThetaAlpha.Log, a.cfg.Ranges[IndicatorThetaAlpha])
	}
	if !m.AlphaBeta.Missing {
		indicators[IndicatorAlphaBeta] = Normalize(m.AlphaBeta.Linear, a.cfg.Ranges[IndicatorAlphaBeta])
	}
	if !m.AsymmetryMissing {
		indicators[IndicatorAsymmetry] = Normalize(m.Asymmetry, a.cfg.Ranges[IndicatorAsymmetry])
	}
	if !m.IAFStabilityMissing {
		indicators[IndicatorIAFStability] = Normalize(m.IAFStability, a.cfg.Ranges[IndicatorIAFStability])
	}
	if a.cfg.SignalQuality > 0 {
		indicators[IndicatorSignalQuality] = Normalize(a.cfg.SignalQuality, a.cfg.Ranges[IndicatorSignalQuality])
	}

	return indicators
}
