// Package tui renders the progress of a build with Bubbletea.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/construct/internal/engine"
	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/tui/components"
)

// Factor states shown by the view. Finished factors use the metrics outcomes.
const (
	StatusPending = "pending"
	StatusRunning = "running"
)

// recentLimit bounds the finished factors listed by the view.
const recentLimit = 8

// EventMsg carries a scheduler event into the program.
type EventMsg struct {
	Event engine.Event
}

type process struct {
	factor  factor.ID
	command string
	started time.Time
}

// Model contains the Bubbletea state of a build.
type Model struct {
	title    string
	cancel   context.CancelFunc
	spinner  spinner.Model
	states   map[factor.ID]string
	running  map[int]process
	recent   components.FactorList
	report   *engine.Report
	total    int
	done     int
	failures int
	exits    int

	finished       bool
	cancelled      bool
	nonInteractive bool
}

// NewModel constructs a model for a build titled title. cancel is invoked
// when the user interrupts the program.
func NewModel(title string, cancel context.CancelFunc, nonInteractive bool) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle

	return Model{
		title:          title,
		cancel:         cancel,
		spinner:        s,
		states:         make(map[factor.ID]string),
		running:        make(map[int]process),
		recent:         components.NewFactorList(recentLimit),
		nonInteractive: nonInteractive,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Observer forwards scheduler events to a running program.
func Observer(p *tea.Program) func(engine.Event) {
	return func(ev engine.Event) {
		p.Send(EventMsg{Event: ev})
	}
}

// Apply folds an event into the model without a running program.
func (m Model) Apply(ev engine.Event) Model {
	updated, _ := m.Update(EventMsg{Event: ev})
	return updated.(Model)
}

// TotalFactors returns the number of factors of the build.
func (m Model) TotalFactors() int {
	return m.total
}

// CompletedFactors returns the number of factors reported complete.
func (m Model) CompletedFactors() int {
	return m.done
}

// IsFinished reports whether the build has finished.
func (m Model) IsFinished() bool {
	return m.finished
}

// Report returns the final report, once finished.
func (m Model) Report() *engine.Report {
	return m.report
}
