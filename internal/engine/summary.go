package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

var (
	failureTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	commandStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	tailStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).PaddingLeft(2)
	pathStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// renderFailure formats a failed instruction for the terminal.
func renderFailure(err error) string {
	var tool *constructerrors.ToolStageFailure
	if !errors.As(err, &tool) {
		return failureTitleStyle.Render(err.Error())
	}

	var b strings.Builder
	b.WriteString(failureTitleStyle.Render(fmt.Sprintf("%s: [%d] exited %d", tool.Factor, tool.PID, tool.ExitCode)))
	b.WriteString("\n")
	b.WriteString(commandStyle.Render(tool.Command))
	if tool.Err != nil {
		b.WriteString("\n")
		b.WriteString(failureTitleStyle.Render(tool.Err.Error()))
	}
	if len(tool.Tail) > 0 {
		b.WriteString("\n")
		b.WriteString(tailStyle.Render(strings.Join(tool.Tail, "\n")))
	}
	if tool.Log != "" {
		b.WriteString("\n")
		b.WriteString(pathStyle.Render("log: " + tool.Log))
	}
	return b.String()
}
