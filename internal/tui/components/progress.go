package components

import (
	"fmt"
	"math"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// Progress renders the share of factors reported complete.
type Progress struct {
	bar   progress.Model
	total int
}

// NewProgress creates a progress component for the given number of factors.
func NewProgress(total int) Progress {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 30
	return Progress{bar: bar, total: total}
}

// View renders the bar for the completed count. Failures are appended to the
// label when present.
func (p Progress) View(completed, failures int) string {
	ratio := 0.0
	if p.total > 0 {
		ratio = math.Min(1.0, float64(completed)/float64(p.total))
	}
	label := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%d/%d", completed, p.total))
	parts := []string{label, " ", p.bar.ViewAs(ratio)}
	if failures > 0 {
		parts = append(parts, " ", failureLabel.Render(fmt.Sprintf("%d failed", failures)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}

var failureLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
