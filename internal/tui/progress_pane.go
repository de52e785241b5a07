package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/forge/internal/events"
	"github.com/aristath/forge/internal/report"
)

// ProgressPaneModel shows how many artifacts are in each state.
type ProgressPaneModel struct {
	states   map[string]report.NodeState
	finished bool
	success  bool
	leftOver []string
	width    int
	height   int
	focused  bool
}

// NewProgressPaneModel creates an empty progress pane.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{states: make(map[string]report.NodeState)}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.BuildStartedEvent:
		for _, name := range msg.Artifacts {
			if _, ok := m.states[name]; !ok {
				m.states[name] = report.NodePending
			}
		}

	case events.NodeProgressEvent:
		m.states[msg.Name] = msg.State

	case events.ArtifactMissingEvent:
		m.states[msg.Name] = report.NodeMissing

	case events.BuildEndedEvent:
		m.finished = true
		m.success = msg.Success
		m.leftOver = msg.LeftOver
	}

	return m, nil
}

// Counts returns the number of artifacts in each state.
func (m ProgressPaneModel) Counts() map[report.NodeState]int {
	counts := make(map[report.NodeState]int)
	for _, state := range m.states {
		counts[state]++
	}
	return counts
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	counts := m.Counts()
	total := len(m.states)
	done := counts[report.NodeBuilt] + counts[report.NodeSkipped]

	var b strings.Builder

	title := StyleTitle.Render("Build Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Total:    %d\n", total))
	b.WriteString(fmt.Sprintf("Built:    %s\n", StyleStatusComplete.Render(fmt.Sprint(counts[report.NodeBuilt]))))
	b.WriteString(fmt.Sprintf("Current:  %s\n", StyleStatusSkipped.Render(fmt.Sprint(counts[report.NodeSkipped]))))
	b.WriteString(fmt.Sprintf("Running:  %s\n", StyleStatusRunning.Render(fmt.Sprint(counts[report.NodeRunning]))))
	b.WriteString(fmt.Sprintf("Missing:  %s\n", StyleStatusFailed.Render(fmt.Sprint(counts[report.NodeMissing]))))
	b.WriteString(fmt.Sprintf("Pending:  %s\n", StyleStatusPending.Render(fmt.Sprint(counts[report.NodePending]))))
	b.WriteString("\n")

	if total > 0 {
		barWidth := min(m.width-4, 40)
		doneWidth := (done * barWidth) / total
		missingWidth := (counts[report.NodeMissing] * barWidth) / total
		runningWidth := (counts[report.NodeRunning] * barWidth) / total
		pendingWidth := barWidth - doneWidth - missingWidth - runningWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, doneWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, missingWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, done, total))
	}

	if m.finished {
		b.WriteString("\n")
		if m.success {
			b.WriteString(StyleStatusComplete.Render("Build succeeded"))
		} else {
			b.WriteString(StyleStatusFailed.Render("Build failed: " + strings.Join(m.leftOver, " ")))
		}
		b.WriteString("\n")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
