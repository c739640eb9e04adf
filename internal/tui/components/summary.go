package components

import (
	"fmt"
	"strings"
	"time"
)

// SummaryData aggregates the counters of a build for rendering.
type SummaryData struct {
	Total     int
	Completed int
	Inert     int
	Skipped   int
	Failures  int
	Exits     int
	Stranded  int
	Finished  bool
	Cancelled bool
	Duration  time.Duration
}

// Summary renders a textual build summary.
type Summary struct {
	data SummaryData
}

// NewSummary creates a new Summary component.
func NewSummary(data SummaryData) Summary {
	return Summary{data: data}
}

// View renders the summary.
func (s Summary) View() string {
	d := s.data
	var lines []string
	if d.Total > 0 {
		lines = append(lines, fmt.Sprintf("Factors: %d/%d completed", d.Completed, d.Total))
	}
	if d.Inert > 0 || d.Skipped > 0 {
		lines = append(lines, fmt.Sprintf("Up to date: %d, skipped: %d", d.Inert, d.Skipped))
	}
	if d.Exits > 0 {
		lines = append(lines, fmt.Sprintf("Processes: %d", d.Exits))
	}
	if d.Stranded > 0 {
		lines = append(lines, fmt.Sprintf("Stranded: %d", d.Stranded))
	}

	switch {
	case d.Cancelled:
		lines = append(lines, "Construction cancelled")
	case d.Finished && d.Failures > 0:
		lines = append(lines, fmt.Sprintf("Construction finished with %d failures", d.Failures))
	case d.Finished:
		lines = append(lines, "Construction finished successfully")
	}
	if d.Finished && d.Duration > 0 {
		lines = append(lines, fmt.Sprintf("Elapsed: %s", d.Duration.Truncate(time.Millisecond)))
	}

	return strings.Join(lines, "\n")
}
