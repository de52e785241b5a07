package persistence

import (
	"context"
	"sync"

	"github.com/aristath/forge/internal/ctxlog"
	"github.com/aristath/forge/internal/report"
)

// Recorder is a report.Reporter that writes a run's history to a Store.
// Store errors are logged and never fail the build.
type Recorder struct {
	ctx   context.Context
	store Store
	root  string

	mu    sync.Mutex
	runID string
}

// NewRecorder creates a recorder for one build of root.
func NewRecorder(ctx context.Context, store Store, root string) *Recorder {
	return &Recorder{ctx: ctx, store: store, root: root}
}

// RunID returns the ID assigned by Start, or "" before Start.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

func (r *Recorder) Start(artifacts []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.store.BeginRun(r.ctx, r.root, artifacts)
	if err != nil {
		ctxlog.FromContext(r.ctx).Error("failed to record run start", "root", r.root, "error", err)
		return
	}
	r.runID = id
}

func (r *Recorder) Task(result report.TaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runID == "" {
		return
	}
	rec := TaskRecord{
		Artifact: result.Artifact,
		Action:   result.Action,
		Status:   result.Status,
		Output:   result.Output,
		Duration: result.Duration,
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	if err := r.store.RecordTask(r.ctx, r.runID, rec); err != nil {
		ctxlog.FromContext(r.ctx).Error("failed to record task", "run", r.runID, "artifact", result.Artifact, "error", err)
	}
}

func (r *Recorder) Missing(artifact string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runID == "" {
		// A missing root is reported before Start.
		id, err := r.store.BeginRun(r.ctx, r.root, nil)
		if err != nil {
			ctxlog.FromContext(r.ctx).Error("failed to record run start", "root", r.root, "error", err)
			return
		}
		r.runID = id
	}
	if err := r.store.RecordMissing(r.ctx, r.runID, artifact); err != nil {
		ctxlog.FromContext(r.ctx).Error("failed to record missing artifact", "run", r.runID, "artifact", artifact, "error", err)
	}
}

func (r *Recorder) End(success bool, leftOver []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runID == "" {
		return
	}
	if err := r.store.FinishRun(r.ctx, r.runID, success, leftOver); err != nil {
		ctxlog.FromContext(r.ctx).Error("failed to record run end", "run", r.runID, "error", err)
	}
}
