package session

import "fmt"

// SessionTooShortError reports that the warm-up offset consumes the
// entire recording, leaving no segment to analyze. Fatal: the run
// stops rather than returning a degenerate result.
type SessionTooShortError struct {
	DurationSeconds float64
	WarmupSeconds   float64
}

func (e *SessionTooShortError) Error() string {
	return fmt.Sprintf("session too short: %.1fs recorded, %.1fs warm-up", e.DurationSeconds, e.WarmupSeconds)
}

// ConfigurationError reports a malformed configuration (band with
// low >= high, overlapping bands, negative weight). Raised before any
// computation starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
