package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/construct/internal/metrics"
	"github.com/alexisbeaulieu97/construct/internal/tui/components"
)

// commandWidth truncates running commands.
const commandWidth = 72

// View renders the current state of the model.
func (m Model) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render(fmt.Sprintf("Construct • %s", m.heading())))

	progress := components.NewProgress(m.total).View(m.done, m.failures)
	sections = append(sections, sectionStyle.Render("Progress"), progress)

	if len(m.running) > 0 && !m.finished {
		sections = append(sections, sectionStyle.Render("Running"), m.renderRunning())
	}

	if entries := m.recent.Entries(); len(entries) > 0 {
		sections = append(sections, sectionStyle.Render("Factors"), renderFactorEntries(entries))
	}

	data := components.SummaryData{
		Total:     m.total,
		Completed: m.done,
		Failures:  m.failures,
		Exits:     m.exits,
		Finished:  m.finished,
		Cancelled: m.cancelled,
	}
	if r := m.report; r != nil {
		data.Inert = len(r.Inert)
		data.Skipped = len(r.Skipped)
		data.Stranded = len(r.Stranded)
		data.Duration = r.Duration
	}
	if summary := components.NewSummary(data).View(); strings.TrimSpace(summary) != "" {
		sections = append(sections, sectionStyle.Render("Summary"), summaryStyle.Render(summary))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderRunning() string {
	pids := make([]int, 0, len(m.running))
	for pid := range m.running {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	lines := make([]string, 0, len(pids))
	for _, pid := range pids {
		p := m.running[pid]
		command := p.command
		if len(command) > commandWidth {
			command = command[:commandWidth-1] + "…"
		}
		elapsed := time.Since(p.started).Truncate(100 * time.Millisecond)
		lines = append(lines, fmt.Sprintf(" %s %s %s %s (%s)", m.spinner.View(), pidStyle.Render(fmt.Sprintf("[%d]", pid)), p.factor, commandStyle.Render(command), elapsed))
	}
	return strings.Join(lines, "\n")
}

func renderFactorEntries(entries []components.FactorEntry) string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		line := fmt.Sprintf(" %s %s", StatusIcon(entry.Status), entry.ID)
		if strings.TrimSpace(entry.Detail) != "" {
			line = fmt.Sprintf("%s: %s", line, entry.Detail)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) heading() string {
	if strings.TrimSpace(m.title) != "" {
		return m.title
	}
	return "Build"
}

// StatusIcon returns the glyph representing a factor status.
func StatusIcon(status string) string {
	switch status {
	case metrics.FactorComplete:
		return completeStyle.Render("✓")
	case metrics.FactorInert:
		return inertStyle.Render("=")
	case StatusRunning:
		return runningStyle.Render("⏳")
	case metrics.FactorFailed:
		return failedStyle.Render("✗")
	case metrics.FactorSkipped:
		return skippedStyle.Render("⊘")
	default:
		return pendingStyle.Render("…")
	}
}
