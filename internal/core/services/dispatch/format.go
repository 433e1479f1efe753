package dispatch

import (
	"fmt"

	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

// Formatter renders a response as the line sent back to the learner.
type Formatter struct {
	// ReportElapsed replaces the constant 0.0 suffix with the measured
	// seconds since the previous response.
	ReportElapsed bool
}

// Format returns SYMBOL for timeouts and data frames and SYMBOL,<elapsed>
// for everything else.
func (f Formatter) Format(r domain.Response) string {
	if !r.Timed() {
		return r.Symbol
	}
	if !f.ReportElapsed {
		return r.Symbol + ",0.0"
	}
	secs := r.Elapsed.Seconds()
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%s,%.1f", r.Symbol, secs)
}
