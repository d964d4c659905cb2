package spectral

import "fmt"

// InsufficientSamplesError reports that a window contained too few
// samples for even one spectral estimate. Callers treat it as a
// per-segment condition: record the metric as missing and continue.
type InsufficientSamplesError struct {
	Have int
	Need int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("insufficient samples for spectral estimate: have %d, need %d", e.Have, e.Need)
}
