package events

import (
	"time"

	"github.com/aristath/forge/internal/report"
)

// Event is the base interface for all build events.
type Event interface {
	EventType() string
	Artifact() string
}

// Topic constants
const (
	TopicBuild = "build"
	TopicNode  = "node"
)

// Event type constants
const (
	EventTypeBuildStarted    = "build.started"
	EventTypeBuildEnded      = "build.ended"
	EventTypeTaskResult      = "node.task"
	EventTypeArtifactMissing = "node.missing"
	EventTypeNodeProgress    = "node.progress"
)

// BuildStartedEvent lists every artifact in the run's graph.
type BuildStartedEvent struct {
	Artifacts []string
	Timestamp time.Time
}

func (e BuildStartedEvent) EventType() string { return EventTypeBuildStarted }
func (e BuildStartedEvent) Artifact() string  { return "" }

// TaskResultEvent carries the result of one build action.
type TaskResultEvent struct {
	Result    report.TaskResult
	Timestamp time.Time
}

func (e TaskResultEvent) EventType() string { return EventTypeTaskResult }
func (e TaskResultEvent) Artifact() string  { return e.Result.Artifact }

// ArtifactMissingEvent is published when an artifact is absent after its build.
type ArtifactMissingEvent struct {
	Name      string
	Timestamp time.Time
}

func (e ArtifactMissingEvent) EventType() string { return EventTypeArtifactMissing }
func (e ArtifactMissingEvent) Artifact() string  { return e.Name }

// NodeProgressEvent is published when an artifact changes state.
type NodeProgressEvent struct {
	Name      string
	State     report.NodeState
	Timestamp time.Time
}

func (e NodeProgressEvent) EventType() string { return EventTypeNodeProgress }
func (e NodeProgressEvent) Artifact() string  { return e.Name }

// BuildEndedEvent carries the overall outcome of the run.
type BuildEndedEvent struct {
	Success   bool
	LeftOver  []string
	Timestamp time.Time
}

func (e BuildEndedEvent) EventType() string { return EventTypeBuildEnded }
func (e BuildEndedEvent) Artifact() string  { return "" }
