// Package session derives quantitative brain-state indices from a
// multi-channel physiological recording: per-segment band powers,
// power ratios, peak-frequency tracking, narrowband envelope metrics,
// robust summaries and a weighted composite score.
package session

import (
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calmsense/neurometrics/algorithms/envelope"
	"github.com/calmsense/neurometrics/algorithms/spectral"
	"github.com/calmsense/neurometrics/algorithms/stats"
	"github.com/calmsense/neurometrics/logging"
)

// asymmetryFloor guards the logarithms in the asymmetry series
const asymmetryFloor = 1e-6

// Result is the terminal output of an analysis run: the ordered
// per-segment metrics, session-level summaries and composite score,
// and the precomputed session-wide series.
type Result struct {
	RunID           string    `json:"run_id"`
	Start           time.Time `json:"start"`
	DurationSeconds float64   `json:"duration_seconds"`
	Config          Config    `json:"config"`

	Segments []SegmentMetrics `json:"segments"`

	SessionScore CompositeScore `json:"session_score"`
	// Index of the best-scoring segment (1-based), 0 when none qualifies
	PeakSegment int `json:"peak_segment"`

	Summaries []MetricSummary `json:"summaries"`

	Theta     *envelope.Series   `json:"theta,omitempty"`
	Asymmetry *envelope.Series   `json:"asymmetry,omitempty"`
	PeakTrack spectral.PeakTrack `json:"peak_track"`
	// Seconds between consecutive PeakTrack entries
	PeakTrackStep float64 `json:"peak_track_step"`
	PeakTrackOK   bool    `json:"peak_track_ok"`
}

// Segmenter partitions a session into fixed-length non-overlapping
// segments after a warm-up offset and drives the full metric pipeline
// over each one.
type Segmenter struct {
	cfg Config
}

// NewSegmenter creates a segmenter with the given configuration
func NewSegmenter(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg}
}

// Analyze runs the full pipeline over one session. Configuration
// problems and a session shorter than the warm-up are fatal; every
// per-segment or per-metric failure is recorded as a missing value
// with an annotation and the run continues.
func (s *Segmenter) Analyze(table *SampleTable) (*Result, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	duration := table.Duration()
	warmup := s.cfg.WarmupMinutes * 60.0
	if duration <= warmup {
		return nil, &SessionTooShortError{DurationSeconds: duration, WarmupSeconds: warmup}
	}

	runID := uuid.NewString()
	log := logging.WithFields(logging.Fields{"run_id": runID})
	log.Info("starting session analysis", logging.Fields{
		"duration_s": duration,
		"channels":   table.NumChannels(),
		"rate_hz":    table.SampleRate(),
	})

	result := &Result{
		RunID:           runID,
		Start:           table.Start(),
		DurationSeconds: duration,
		Config:          s.cfg,
	}

	result.Theta = s.thetaSeries(table, log)
	result.Asymmetry = s.asymmetrySeries(table, log)
	result.PeakTrack, result.PeakTrackStep, result.PeakTrackOK = s.peakTrack(table, log)

	bounds := segmentBounds(duration, warmup, s.cfg.SegmentMinutes*60.0)
	if len(bounds) == 0 {
		return nil, &SessionTooShortError{DurationSeconds: duration, WarmupSeconds: warmup}
	}

	worker := newAnalyzer(&s.cfg, table, result, log)
	result.Segments = s.analyzeSegments(worker, bounds)

	result.SessionScore = s.sessionScore(result)
	result.PeakSegment = peakSegment(result.Segments)
	result.Summaries = buildSummaries(&s.cfg, result)

	log.Info("session analysis complete", logging.Fields{
		"segments":     len(result.Segments),
		"score":        result.SessionScore.Total,
		"level":        result.SessionScore.Level,
		"peak_segment": result.PeakSegment,
	})
	return result, nil
}

// segmentBounds computes the half-open [start, end) intervals covering
// [warmup, duration) with no gaps or overlaps. The final segment is
// clipped to the session end rather than padded or dropped.
func segmentBounds(duration, warmup, segmentSeconds float64) [][2]float64 {
	var bounds [][2]float64
	for start := warmup; start < duration; start += segmentSeconds {
		end := start + segmentSeconds
		if end > duration {
			end = duration
		}
		bounds = append(bounds, [2]float64{start, end})
	}
	return bounds
}

// analyzeSegments runs the per-segment pipeline over a worker pool.
// Segments are independent; ordering is imposed only when assembling
// the result slice, by index.
func (s *Segmenter) analyzeSegments(worker *analyzer, bounds [][2]float64) []SegmentMetrics {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(bounds) {
		workers = len(bounds)
	}

	segments := make([]SegmentMetrics, len(bounds))
	jobs := make(chan int, len(bounds))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				segments[i] = worker.analyzeSegment(i+1, bounds[i][0], bounds[i][1])
			}
		}()
	}

	for i := range bounds {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return segments
}

// thetaSeries precomputes the session-wide midline narrowband theta
// envelope. Failure disables the metric for the run but is not fatal.
func (s *Segmenter) thetaSeries(table *SampleTable, log logging.Logger) *envelope.Series {
	low, high := s.cfg.Theta.Band()
	channels, _ := table.Slice(s.cfg.MidlineChannels, 0, table.Duration())
	if len(channels) == 0 {
		log.Warn("no midline channels available for theta envelope")
		return nil
	}

	extractor := envelope.NewPowerExtractor(table.SampleRate(), low, high, s.cfg.Envelope)
	series, err := extractor.Extract(channels)
	if err != nil {
		log.Warn("theta envelope extraction failed", logging.Fields{"error": err.Error()})
		return nil
	}
	return series
}

// asymmetrySeries precomputes the frontal alpha asymmetry series:
// ln(right alpha envelope power) - ln(left), floored to keep the
// logarithms finite. Requires both hemisphere channels configured.
func (s *Segmenter) asymmetrySeries(table *SampleTable, log logging.Logger) *envelope.Series {
	if s.cfg.LeftChannel == "" || s.cfg.RightChannel == "" {
		return nil
	}

	alphaLow, alphaHigh := 8.0, 13.0
	if band, ok := s.cfg.Band(BandAlpha); ok {
		alphaLow, alphaHigh = band.Low, band.High
	}
	extractor := envelope.NewPowerExtractor(table.SampleRate(), alphaLow, alphaHigh, s.cfg.Envelope)

	left := s.hemisphereSeries(table, extractor, s.cfg.LeftChannel, log)
	right := s.hemisphereSeries(table, extractor, s.cfg.RightChannel, log)
	if left == nil || right == nil {
		return nil
	}

	n := len(left.Values)
	if len(right.Values) < n {
		n = len(right.Values)
	}
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = math.Log(math.Max(right.Values[i], asymmetryFloor)) -
			math.Log(math.Max(left.Values[i], asymmetryFloor))
	}

	series := &envelope.Series{
		Values:      values,
		StepSeconds: left.StepSeconds,
	}
	mid := n / 2
	series.FirstHalfMean = stats.Mean(values[:mid])
	series.SecondHalfMean = stats.Mean(values[mid:])
	if series.FirstHalfMean != 0 && !math.IsNaN(series.FirstHalfMean) {
		series.ChangePercent = (series.SecondHalfMean - series.FirstHalfMean) / series.FirstHalfMean * 100.0
	} else {
		series.ChangePercent = math.NaN()
	}
	return series
}

func (s *Segmenter) hemisphereSeries(table *SampleTable, extractor *envelope.PowerExtractor, channel string, log logging.Logger) *envelope.Series {
	samples, ok := table.Channel(channel)
	if !ok {
		log.Warn("asymmetry channel not in sample table", logging.Fields{"channel": channel})
		return nil
	}
	series, err := extractor.Extract([][]float64{samples})
	if err != nil {
		log.Warn("asymmetry envelope extraction failed", logging.Fields{
			"channel": channel,
			"error":   err.Error(),
		})
		return nil
	}
	return series
}

// peakTrack precomputes the time-resolved alpha peak-frequency trace
// over the channel-averaged signal, returning the trace's time step so
// callers can slice it by segment bounds.
func (s *Segmenter) peakTrack(table *SampleTable, log logging.Logger) (spectral.PeakTrack, float64, bool) {
	channels, _ := table.Slice(nil, 0, table.Duration())
	if len(channels) == 0 {
		return spectral.PeakTrack{}, 0, false
	}

	mean := make([]float64, len(channels[0]))
	for _, signal := range channels {
		for i, v := range signal {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(channels))
	}

	alphaLow, alphaHigh := 8.0, 13.0
	if band, ok := s.cfg.Band(BandAlpha); ok {
		alphaLow, alphaHigh = band.Low, band.High
	}

	windowSize := s.cfg.Welch.NFFT
	if windowSize <= 0 {
		windowSize = spectral.DefaultWelchParams().NFFT
	}
	if windowSize > len(mean) {
		windowSize = len(mean)
	}

	stft := spectral.NewSpectrogramAnalyzer(table.SampleRate(), windowSize, windowSize/2)
	surface, err := stft.Compute(mean, alphaLow, alphaHigh)
	if err != nil {
		log.Warn("peak-frequency surface computation failed", logging.Fields{"error": err.Error()})
		return spectral.PeakTrack{}, 0, false
	}

	tracker := spectral.NewPeakTracker(alphaLow, alphaHigh)
	track, ok := tracker.Track(surface.Freqs, surface.Power, s.cfg.PeakWindow)
	return track, surface.TimeResolution, ok
}

// sessionScore combines session-level indicator values: the robust
// mean of each per-segment indicator, plus the peak-track stability
// coefficient and the device signal quality when available.
func (s *Segmenter) sessionScore(result *Result) CompositeScore {
	robust := stats.NewRobust(s.cfg.ZThreshold)
	indicators := make(map[string]float64)

	sessionMean := func(values []float64) (float64, bool) {
		if summary, ok := robust.Summarize(values); ok {
			return summary.Mean, true
		}
		return math.NaN(), false
	}

	if mean, ok := sessionMean(collect(result.Segments, func(m *SegmentMetrics) (float64, bool) {
		return m.ThetaPower, !m.ThetaPowerMissing
	})); ok {
		indicators[IndicatorThetaPower] = Normalize(mean, s.cfg.Ranges[IndicatorThetaPower])
	}
	if mean, ok := sessionMean(collect(result.Segments, func(m *SegmentMetrics) (float64, bool) {
		return m.Entropy, !m.EntropyMissing
	})); ok {
		indicators[IndicatorEntropy] = Normalize(mean, s.cfg.Ranges[IndicatorEntropy])
	}
	if mean, ok := sessionMean(collect(result.Segments, func(m *SegmentMetrics) (float64, bool) {
		return m.ThetaAlpha.Log, !m.ThetaAlpha.Missing
	})); ok {
		indicators[IndicatorThetaAlpha] = Normalize(mean, s.cfg.Ranges[IndicatorThetaAlpha])
	}
	if mean, ok := sessionMean(collect(result.Segments, func(m *SegmentMetrics) (float64, bool) {
		return m.AlphaBeta.Linear, !m.AlphaBeta.Missing
	})); ok {
		indicators[IndicatorAlphaBeta] = Normalize(mean, s.cfg.Ranges[IndicatorAlphaBeta])
	}
	if mean, ok := sessionMean(collect(result.Segments, func(m *SegmentMetrics) (float64, bool) {
		return m.Asymmetry, !m.AsymmetryMissing
	})); ok {
		indicators[IndicatorAsymmetry] = Normalize(mean, s.cfg.Ranges[IndicatorAsymmetry])
	}

	if result.PeakTrackOK && !math.IsNaN(result.PeakTrack.CV) {
		indicators[IndicatorIAFStability] = Normalize(result.PeakTrack.CV, s.cfg.Ranges[IndicatorIAFStability])
	}
	if s.cfg.SignalQuality > 0 {
		indicators[IndicatorSignalQuality] = Normalize(s.cfg.SignalQuality, s.cfg.Ranges[IndicatorSignalQuality])
	}

	return ScoreIndicators(indicators, s.cfg.Weights)
}

// peakSegment selects the best segment: the one maximizing the mean of
// the normalized narrowband theta and theta/alpha indicators, falling
// back to the composite score when either indicator is missing.
func peakSegment(segments []SegmentMetrics) int {
	best := 0
	bestValue := math.Inf(-1)
	for _, m := range segments {
		theta, hasTheta := m.Indicators[IndicatorThetaPower]
		ratio, hasRatio := m.Indicators[IndicatorThetaAlpha]

		var value float64
		if hasTheta && hasRatio {
			value = (theta + ratio) / 2.0
		} else {
			value = m.Score.Total / 100.0
		}

		if value > bestValue {
			bestValue = value
			best = m.Index
		}
	}
	return best
}

// collect extracts a per-segment value series for one metric
func collect(segments []SegmentMetrics, get func(*SegmentMetrics) (float64, bool)) []float64 {
	values := make([]float64, 0, len(segments))
	for i := range segments {
		if v, ok := get(&segments[i]); ok {
			values = append(values, v)
		}
	}
	return values
}
