package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/construct/internal/engine"
	"github.com/alexisbeaulieu97/construct/internal/metrics"
	"github.com/alexisbeaulieu97/construct/internal/tui/components"
)

// Update handles Bubbletea messages and updates model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		return m.handleEvent(msg.Event)
	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if !m.cancelled && m.cancel != nil {
				m.cancel()
			}
			m.cancelled = true
			return m, nil
		}
	case tea.QuitMsg:
		m.finished = true
		return m, nil
	}

	return m, nil
}

func (m Model) handleEvent(ev engine.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case engine.EventStart:
		m.total = ev.Total
	case engine.EventSpawn:
		m.running[ev.PID] = process{factor: ev.Factor, command: ev.Command, started: time.Now()}
		m.setState(ev, StatusRunning)
	case engine.EventExit:
		delete(m.running, ev.PID)
		m.exits++
		if ev.Err != nil {
			m.failures++
			m.setState(ev, metrics.FactorFailed)
		}
	case engine.EventCall:
		if ev.Err != nil {
			m.failures++
			m.setState(ev, metrics.FactorFailed)
		}
	case engine.EventFactor:
		m.done++
		m.setState(ev, ev.Outcome)
		m.recent = m.recent.Push(components.FactorEntry{ID: string(ev.Factor), Status: ev.Outcome})
	case engine.EventFinish:
		m.report = ev.Report
		m.finished = true
		if ev.Report != nil {
			m.failures = ev.Report.Failures
			m.exits = ev.Report.Exits
		}
		if m.nonInteractive {
			return m, nil
		}
		return m, tea.Quit
	}
	return m, nil
}

// setState records the state of the event's factor. Failed factors keep
// their state.
func (m *Model) setState(ev engine.Event, status string) {
	if m.states[ev.Factor] == metrics.FactorFailed {
		return
	}
	m.states[ev.Factor] = status
}
