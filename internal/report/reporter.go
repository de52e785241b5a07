// Package report defines the events a build emits and the sinks that consume them.
package report

import "time"

// TaskResult describes one executed build action.
type TaskResult struct {
	Artifact string
	Action   string
	Status   int
	Output   []byte
	Err      error
	Duration time.Duration
}

// OK reports whether the action succeeded.
func (r TaskResult) OK() bool {
	return r.Err == nil && r.Status == 0
}

// Reporter receives the events of one build run. Task and Missing may be
// called concurrently from several workers.
type Reporter interface {
	// Start receives every artifact in the run's graph, sorted.
	Start(artifacts []string)
	// Task receives the result of each action executed.
	Task(result TaskResult)
	// Missing receives an artifact that should exist after its build but does not.
	Missing(artifact string)
	// End receives the overall outcome and the sorted artifacts left unbuilt.
	End(success bool, leftOver []string)
}

// NodeState is the lifecycle of one artifact within a run.
type NodeState int

const (
	NodePending NodeState = iota
	NodeRunning
	NodeBuilt   // Actions ran and the artifact is present
	NodeSkipped // Up to date, no actions ran
	NodeMissing // Failed or absent after its actions
)

func (s NodeState) String() string {
	switch s {
	case NodeRunning:
		return "running"
	case NodeBuilt:
		return "built"
	case NodeSkipped:
		return "skipped"
	case NodeMissing:
		return "missing"
	default:
		return "pending"
	}
}

// ProgressReporter is implemented by reporters that also want per-artifact
// state changes. The build checks for it with a type assertion.
type ProgressReporter interface {
	Progress(artifact string, state NodeState)
}

// Tee fans every event out to each reporter in order.
type Tee []Reporter

func (t Tee) Start(artifacts []string) {
	for _, r := range t {
		r.Start(artifacts)
	}
}

func (t Tee) Task(result TaskResult) {
	for _, r := range t {
		r.Task(result)
	}
}

func (t Tee) Missing(artifact string) {
	for _, r := range t {
		r.Missing(artifact)
	}
}

func (t Tee) End(success bool, leftOver []string) {
	for _, r := range t {
		r.End(success, leftOver)
	}
}

func (t Tee) Progress(artifact string, state NodeState) {
	for _, r := range t {
		if p, ok := r.(ProgressReporter); ok {
			p.Progress(artifact, state)
		}
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Start([]string) {}
func (Nop) Task(TaskResult) {}
func (Nop) Missing(string) {}
func (Nop) End(bool, []string) {}
