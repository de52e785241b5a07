package events

import (
	"time"

	"github.com/aristath/forge/internal/report"
)

// BusReporter publishes build events to an EventBus.
type BusReporter struct {
	bus *EventBus
	now func() time.Time
}

// NewBusReporter creates a reporter publishing to bus.
func NewBusReporter(bus *EventBus) *BusReporter {
	return &BusReporter{bus: bus, now: time.Now}
}

func (r *BusReporter) Start(artifacts []string) {
	r.bus.Publish(TopicBuild, BuildStartedEvent{
		Artifacts: append([]string(nil), artifacts...),
		Timestamp: r.now(),
	})
}

func (r *BusReporter) Task(result report.TaskResult) {
	r.bus.Publish(TopicNode, TaskResultEvent{Result: result, Timestamp: r.now()})
}

func (r *BusReporter) Missing(artifact string) {
	r.bus.Publish(TopicNode, ArtifactMissingEvent{Name: artifact, Timestamp: r.now()})
}

func (r *BusReporter) Progress(artifact string, state report.NodeState) {
	r.bus.Publish(TopicNode, NodeProgressEvent{Name: artifact, State: state, Timestamp: r.now()})
}

func (r *BusReporter) End(success bool, leftOver []string) {
	r.bus.Publish(TopicBuild, BuildEndedEvent{
		Success:   success,
		LeftOver:  append([]string(nil), leftOver...),
		Timestamp: r.now(),
	})
}
