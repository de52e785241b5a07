package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/forge/internal/events"
	"github.com/aristath/forge/internal/report"
)

const listWidth = 28

// ArtifactState is what the pane knows about one artifact.
type ArtifactState struct {
	Name   string
	State  report.NodeState
	Output []string
}

// ArtifactPaneModel lists the artifacts of the run and shows the action
// output of the selected one in a scrollable viewport.
type ArtifactPaneModel struct {
	artifacts   map[string]*ArtifactState
	order       []string
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int // for debouncing
}

// NewArtifactPaneModel creates an empty artifact pane.
func NewArtifactPaneModel() ArtifactPaneModel {
	return ArtifactPaneModel{
		artifacts: make(map[string]*ArtifactState),
		viewport:  viewport.New(0, 0),
	}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the artifact pane.
func (m ArtifactPaneModel) Update(msg tea.Msg) (ArtifactPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.BuildStartedEvent:
		for _, name := range msg.Artifacts {
			m.ensure(name)
		}
		m.updateViewportContent()

	case events.NodeProgressEvent:
		m.ensure(msg.Name).State = msg.State
		if m.selected() == msg.Name {
			m.updateViewportContent()
		}

	case events.TaskResultEvent:
		a := m.ensure(msg.Result.Artifact)
		a.Output = append(a.Output, formatResult(msg.Result)...)
		if m.selected() == a.Name {
			m.updateTag++
			tag := m.updateTag
			return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
				return tickMsg{tag: tag}
			})
		}

	case events.ArtifactMissingEvent:
		a := m.ensure(msg.Name)
		a.State = report.NodeMissing
		a.Output = append(a.Output, "[missing after build]")
		if m.selected() == a.Name {
			m.updateViewportContent()
		}

	case tickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// formatResult renders one action result as viewport lines.
func formatResult(r report.TaskResult) []string {
	lines := []string{"$ " + r.Action}
	if text := strings.TrimRight(string(r.Output), "\n"); text != "" {
		lines = append(lines, strings.Split(text, "\n")...)
	}
	switch {
	case r.Err != nil:
		lines = append(lines, fmt.Sprintf("[failed: %v]", r.Err))
	case r.Status != 0:
		lines = append(lines, fmt.Sprintf("[failed: status %d]", r.Status))
	default:
		lines = append(lines, fmt.Sprintf("[ok in %v]", r.Duration.Round(time.Millisecond)))
	}
	return lines
}

func (m *ArtifactPaneModel) ensure(name string) *ArtifactState {
	a, ok := m.artifacts[name]
	if !ok {
		a = &ArtifactState{Name: name}
		m.artifacts[name] = a
		m.order = append(m.order, name)
	}
	return a
}

// View renders the artifact pane.
func (m ArtifactPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m ArtifactPaneModel) renderList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Artifacts")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	}
	for i, name := range m.order {
		label := name
		if len(label) > width-4 {
			label = label[:width-7] + "..."
		}

		line := fmt.Sprintf("%s %s", StatusIcon(m.artifacts[name].State), label)
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled indicator for a node state.
func StatusIcon(state report.NodeState) string {
	switch state {
	case report.NodeRunning:
		return StyleStatusRunning.Render("●")
	case report.NodeBuilt:
		return StyleStatusComplete.Render("✓")
	case report.NodeSkipped:
		return StyleStatusSkipped.Render("=")
	case report.NodeMissing:
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

func (m ArtifactPaneModel) selected() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

// Selected returns the state of the selected artifact, or nil.
func (m ArtifactPaneModel) Selected() *ArtifactState {
	return m.artifacts[m.selected()]
}

func (m *ArtifactPaneModel) updateViewportContent() {
	a := m.Selected()
	if a == nil {
		m.viewport.SetContent("Waiting for build...")
		return
	}
	if len(a.Output) == 0 {
		m.viewport.SetContent(StyleStatusPending.Render(a.State.String()))
		return
	}

	m.viewport.SetContent(strings.Join(a.Output, "\n"))
	m.viewport.GotoBottom()
}

func (m *ArtifactPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-listWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *ArtifactPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *ArtifactPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
