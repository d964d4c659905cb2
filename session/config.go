package session

import (
	"fmt"
	"sort"

	"github.com/calmsense/neurometrics/algorithms/envelope"
	"github.com/calmsense/neurometrics/algorithms/spectral"
	"github.com/calmsense/neurometrics/algorithms/stats"
)

// Canonical band names
const (
	BandDelta = "delta"
	BandTheta = "theta"
	BandAlpha = "alpha"
	BandBeta  = "beta"
	BandGamma = "gamma"
)

// Indicator vocabulary for normalization and composite scoring
const (
	IndicatorThetaPower    = "fm_theta"
	IndicatorEntropy       = "spectral_entropy"
	IndicatorThetaAlpha    = "theta_alpha_ratio"
	IndicatorAsymmetry     = "frontal_asymmetry"
	IndicatorAlphaBeta     = "alpha_beta_ratio"
	IndicatorIAFStability  = "iaf_stability"
	IndicatorSignalQuality = "signal_quality"
)

// Band is a named frequency interval [Low, High) in Hz
type Band struct {
	Name string  `json:"name"`
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// CanonicalBands returns the five standard bands ordered by frequency
func CanonicalBands() []Band {
	return []Band{
		{Name: BandDelta, Low: 0.5, High: 4.0},
		{Name: BandTheta, Low: 4.0, High: 8.0},
		{Name: BandAlpha, Low: 8.0, High: 13.0},
		{Name: BandBeta, Low: 13.0, High: 30.0},
		{Name: BandGamma, Low: 30.0, High: 50.0},
	}
}

// ThetaPreset names a narrowband theta interval for the midline theta
// envelope metric.
type ThetaPreset string

const (
	ThetaNarrow ThetaPreset = "narrow" // 6-7 Hz
	ThetaMedium ThetaPreset = "medium" // 5-7 Hz
	ThetaWide   ThetaPreset = "wide"   // 4-8 Hz
)

// Band returns the preset's frequency interval in Hz. Unknown presets
// fall back to narrow.
func (p ThetaPreset) Band() (low, high float64) {
	switch p {
	case ThetaMedium:
		return 5.0, 7.0
	case ThetaWide:
		return 4.0, 8.0
	default:
		return 6.0, 7.0
	}
}

// IndicatorRange is the documented reference range for one indicator.
// Reverse marks "lower is better" indicators. Ranges are static
// configuration, never computed from the current session's data.
type IndicatorRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Reverse bool    `json:"reverse"`
}

// DefaultIndicatorRanges returns the reference ranges used for
// min-max normalization of each indicator.
func DefaultIndicatorRanges() map[string]IndicatorRange {
	return map[string]IndicatorRange{
		IndicatorThetaPower:    {Min: 50.0, Max: 200.0},               // µV²
		IndicatorEntropy:       {Min: 0.7, Max: 1.0, Reverse: true},   // normalized entropy
		IndicatorThetaAlpha:    {Min: -1.0, Max: 1.0},                 // Bels
		IndicatorAsymmetry:     {Min: -0.5, Max: 0.5},                 // ln power difference
		IndicatorAlphaBeta:     {Min: 1.0, Max: 10.0},                 // linear ratio
		IndicatorIAFStability:  {Min: 0.0, Max: 0.05, Reverse: true},  // coefficient of variation
		IndicatorSignalQuality: {Min: 1.0, Max: 4.0, Reverse: true},   // device quality grade
	}
}

// DefaultWeights returns the five-indicator scoring schema. Weights
// sum to 1.0 by construction; supplied weight maps must do the same
// for the 0-100 scale to remain meaningful (caller contract, not
// enforced).
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		IndicatorThetaPower:   0.3125,
		IndicatorEntropy:      0.25,
		IndicatorThetaAlpha:   0.1875,
		IndicatorAlphaBeta:    0.125,
		IndicatorIAFStability: 0.125,
	}
}

// Config carries every parameter of an analysis run. Supplied once per
// run and immutable for its duration.
type Config struct {
	Bands   []Band                    `json:"bands"`
	Weights map[string]float64        `json:"weights"`
	Ranges  map[string]IndicatorRange `json:"ranges"`

	SegmentMinutes float64 `json:"segment_minutes"`
	WarmupMinutes  float64 `json:"warmup_minutes"`

	Welch    spectral.WelchParams `json:"welch"`
	Envelope envelope.PowerParams `json:"envelope"`
	Theta    ThetaPreset          `json:"theta_preset"`

	// Outlier z-score cutoff for session summaries
	ZThreshold float64 `json:"z_threshold"`

	// Rolling-mean window (time slices) for peak-frequency tracking
	PeakWindow int `json:"peak_window"`

	// Channel roles. Empty MidlineChannels means all channels feed the
	// theta envelope; empty Left/RightChannel disables the asymmetry
	// metric.
	MidlineChannels []string `json:"midline_channels"`
	LeftChannel     string   `json:"left_channel"`
	RightChannel    string   `json:"right_channel"`

	// Device-reported signal quality grade (1 best - 4 worst);
	// 0 means unavailable.
	SignalQuality float64 `json:"signal_quality"`

	// Parallel segment workers; 0 means GOMAXPROCS
	Workers int `json:"workers"`
}

// DefaultConfig returns the canonical analysis configuration
func DefaultConfig() Config {
	return Config{
		Bands:          CanonicalBands(),
		Weights:        DefaultWeights(),
		Ranges:         DefaultIndicatorRanges(),
		SegmentMinutes: 5.0,
		WarmupMinutes:  0.0,
		Welch:          spectral.DefaultWelchParams(),
		Envelope:       envelope.DefaultPowerParams(),
		Theta:          ThetaNarrow,
		ZThreshold:     stats.DefaultZThreshold,
		PeakWindow:     100,
	}
}

// Band returns the configured band with the given name
func (c *Config) Band(name string) (Band, bool) {
	for _, b := range c.Bands {
		if b.Name == name {
			return b, true
		}
	}
	return Band{}, false
}

// Validate checks the configuration and returns a ConfigurationError
// on the first problem found. Called before any computation starts.
func (c *Config) Validate() error {
	if c.SegmentMinutes <= 0 {
		return &ConfigurationError{Field: "segment_minutes", Reason: "must be positive"}
	}
	if c.WarmupMinutes < 0 {
		return &ConfigurationError{Field: "warmup_minutes", Reason: "must not be negative"}
	}

	if len(c.Bands) == 0 {
		return &ConfigurationError{Field: "bands", Reason: "at least one band required"}
	}
	for _, b := range c.Bands {
		if b.Low >= b.High {
			return &ConfigurationError{
				Field:  "bands",
				Reason: fmt.Sprintf("band %q has low %.2f >= high %.2f", b.Name, b.Low, b.High),
			}
		}
	}

	ordered := make([]Band, len(c.Bands))
	copy(ordered, c.Bands)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Low < ordered[j].Low })
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Low < ordered[i-1].High {
			return &ConfigurationError{
				Field:  "bands",
				Reason: fmt.Sprintf("bands %q and %q overlap", ordered[i-1].Name, ordered[i].Name),
			}
		}
	}

	for name, w := range c.Weights {
		if w < 0 {
			return &ConfigurationError{
				Field:  "weights",
				Reason: fmt.Sprintf("weight for %q is negative", name),
			}
		}
	}

	switch c.Theta {
	case "", ThetaNarrow, ThetaMedium, ThetaWide:
	default:
		return &ConfigurationError{
			Field:  "theta_preset",
			Reason: fmt.Sprintf("unknown preset %q", c.Theta),
		}
	}

	return nil
}
