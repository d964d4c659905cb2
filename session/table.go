package session

import (
	"fmt"
	"math"
	"time"
)

// SampleTable is an ordered, time-aligned collection of per-channel
// samples with a shared sampling rate. Gaps, duplicate timestamps and
// quality flags must already be resolved by the acquisition layer:
// every supplied sample is treated as usable. The table is borrowed
// read-only for the duration of an analysis run.
type SampleTable struct {
	start      time.Time
	sampleRate float64
	names      []string
	channels   map[string][]float64
	numSamples int
}

// NewSampleTable creates an empty table for the given session start
// and sampling rate.
func NewSampleTable(start time.Time, sampleRate float64) *SampleTable {
	return &SampleTable{
		start:      start,
		sampleRate: sampleRate,
		channels:   make(map[string][]float64),
	}
}

// AddChannel registers a channel's sample array. All channels must
// share the same length.
func (t *SampleTable) AddChannel(name string, samples []float64) error {
	if name == "" {
		return fmt.Errorf("channel name must not be empty")
	}
	if _, exists := t.channels[name]; exists {
		return fmt.Errorf("channel %q already present", name)
	}
	if t.numSamples > 0 && len(samples) != t.numSamples {
		return fmt.Errorf("channel %q has %d samples, expected %d", name, len(samples), t.numSamples)
	}

	if t.numSamples == 0 {
		t.numSamples = len(samples)
	}
	t.names = append(t.names, name)
	t.channels[name] = samples
	return nil
}

// Start returns the session start timestamp
func (t *SampleTable) Start() time.Time {
	return t.start
}

// SampleRate returns the shared sampling rate in Hz
func (t *SampleTable) SampleRate() float64 {
	return t.sampleRate
}

// Channels returns the channel names in registration order
func (t *SampleTable) Channels() []string {
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

// Channel returns one channel's full sample array
func (t *SampleTable) Channel(name string) ([]float64, bool) {
	samples, ok := t.channels[name]
	return samples, ok
}

// NumChannels returns the number of registered channels
func (t *SampleTable) NumChannels() int {
	return len(t.names)
}

// NumSamples returns the per-channel sample count
func (t *SampleTable) NumSamples() int {
	return t.numSamples
}

// Duration returns the session length in seconds
func (t *SampleTable) Duration() float64 {
	if t.sampleRate <= 0 {
		return 0
	}
	return float64(t.numSamples) / t.sampleRate
}

// Slice returns the samples of the given channels over the half-open
// interval [startSec, endSec), as a matrix parallel to the returned
// name list. A nil name list selects all channels; names without a
// registered channel are skipped. The slices alias the table's
// backing arrays.
func (t *SampleTable) Slice(names []string, startSec, endSec float64) ([][]float64, []string) {
	if names == nil {
		names = t.names
	}

	lo := int(math.Round(startSec * t.sampleRate))
	hi := int(math.Round(endSec * t.sampleRate))
	if lo < 0 {
		lo = 0
	}
	if hi > t.numSamples {
		hi = t.numSamples
	}
	if lo >= hi {
		return nil, nil
	}

	matrix := make([][]float64, 0, len(names))
	selected := make([]string, 0, len(names))
	for _, name := range names {
		samples, ok := t.channels[name]
		if !ok {
			continue
		}
		matrix = append(matrix, samples[lo:hi])
		selected = append(selected, name)
	}
	return matrix, selected
}
