// Package tui renders a live view of a build from the event bus.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/forge/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneArtifacts PaneID = iota
	PaneProgress
)

const paneCount = 2

// busClosedMsg is delivered once the event bus has been closed.
type busClosedMsg struct{}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	artifactPane ArtifactPaneModel
	progressPane ProgressPaneModel
	focusedPane  PaneID
	bus          *events.EventBus
	eventSub     <-chan events.Event
	root         string
	width        int
	height       int
	quitting     bool
	finished     bool
}

// New creates a model for a build of root. It subscribes to every topic on
// the bus, so it must be created before the build starts publishing.
func New(eventBus *events.EventBus, root string) Model {
	return Model{
		artifactPane: NewArtifactPaneModel(),
		progressPane: NewProgressPaneModel(),
		focusedPane:  PaneArtifacts,
		bus:          eventBus,
		eventSub:     eventBus.SubscribeAll(events.DefaultBufferSize),
		root:         root,
	}
}

// Close detaches the model from the event bus, discarding events it has
// not read yet.
func (m Model) Close() {
	m.bus.Unsubscribe(m.eventSub)
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return event
	}
}

// Finished reports whether the build has ended.
func (m Model) Finished() bool {
	return m.finished
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneArtifacts
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneProgress
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneArtifacts {
				var cmd tea.Cmd
				m.artifactPane, cmd = m.artifactPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.BuildEndedEvent:
		m.finished = true
		m.progressPane, _ = m.progressPane.Update(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.BuildStartedEvent, events.NodeProgressEvent, events.ArtifactMissingEvent:
		var cmd tea.Cmd
		m.artifactPane, cmd = m.artifactPane.Update(msg)
		cmds = append(cmds, cmd)
		m.progressPane, _ = m.progressPane.Update(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.TaskResultEvent:
		var cmd tea.Cmd
		m.artifactPane, cmd = m.artifactPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case tickMsg:
		var cmd tea.Cmd
		m.artifactPane, cmd = m.artifactPane.Update(msg)
		cmds = append(cmds, cmd)

	case busClosedMsg:
		// Nothing more will arrive; stop waiting.
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := StyleTitle.Render("forge " + m.root)
	panes := lipgloss.JoinHorizontal(lipgloss.Top, m.artifactPane.View(), m.progressPane.View())

	return lipgloss.JoinVertical(lipgloss.Left, header, panes, HelpView(m.finished))
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 65) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 2 // header and help bar

	m.artifactPane.SetSize(leftWidth, availableHeight)
	m.progressPane.SetSize(rightWidth, availableHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.artifactPane.SetFocused(m.focusedPane == PaneArtifacts)
	m.progressPane.SetFocused(m.focusedPane == PaneProgress)
}
