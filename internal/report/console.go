package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	styleMissing = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true)
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)
	styleOutput  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Console writes one line per event. Captured output is printed for failed
// actions, and for every action when Verbose is set.
type Console struct {
	Verbose bool

	mu      sync.Mutex
	out     io.Writer
	started time.Time
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer, verbose bool) *Console {
	return &Console{out: out, Verbose: verbose}
}

func (c *Console) Start(artifacts []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.started = time.Now()
	fmt.Fprintf(c.out, "%s %s\n", styleInfo.Render("[START]:"), strings.Join(artifacts, " "))
}

func (c *Console) Task(result TaskResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if result.OK() {
		fmt.Fprintf(c.out, "%s %s %s\n", styleOK.Render("[OK]:"), result.Artifact, result.Action)
	} else {
		status := fmt.Sprintf("status %d", result.Status)
		if result.Err != nil {
			status = result.Err.Error()
		}
		fmt.Fprintf(c.out, "%s %s %s (%s)\n", styleError.Render("[ERROR]:"), result.Artifact, result.Action, status)
	}

	if len(result.Output) > 0 && (c.Verbose || !result.OK()) {
		text := strings.TrimRight(string(result.Output), "\n")
		for _, line := range strings.Split(text, "\n") {
			fmt.Fprintf(c.out, "    %s\n", styleOutput.Render(line))
		}
	}
}

func (c *Console) Missing(artifact string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "%s %s\n", styleMissing.Render("[MISSING]:"), artifact)
}

func (c *Console) End(success bool, leftOver []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := ""
	if !c.started.IsZero() {
		elapsed = " in " + time.Since(c.started).Round(time.Millisecond).String()
	}

	if success {
		fmt.Fprintf(c.out, "%s%s\n", styleOK.Render("[DONE]"), elapsed)
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", styleError.Render("[FAIL]:"), strings.Join(leftOver, " "))
}
