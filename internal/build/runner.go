// Package build runs an incremental build over an artifact graph with a fixed
// pool of workers.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/forge/internal/action"
	"github.com/aristath/forge/internal/ctxlog"
	"github.com/aristath/forge/internal/report"
	"github.com/aristath/forge/internal/scheduler"
)

// Request describes one build invocation.
type Request struct {
	Context map[string]string // Placeholder values for command templates
	Depends scheduler.DependencyTable
	Builds  scheduler.BuildTable
	Root    string
	Jobs    int // Worker count, default 1
}

// Result summarizes a finished run.
type Result struct {
	Success    bool
	Nodes      []string // Every artifact in the graph, sorted
	LeftOver   []string // Artifacts never completed, sorted
	Dispatched int      // Nodes handed to workers
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Reporter report.Reporter        // Defaults to report.Nop
	Procs    *action.ProcessManager // Optional subprocess tracking
	Retry    action.RetryConfig
	Breaker  action.BreakerConfig
	Stat     scheduler.StatFunc // Defaults to os.Stat
}

// Runner executes build requests.
type Runner struct {
	config RunnerConfig
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Reporter == nil {
		cfg.Reporter = report.Nop{}
	}
	return &Runner{config: cfg}
}

// Run builds req.Root with the default runner configuration, sending events to rep.
func Run(ctx context.Context, req Request, rep report.Reporter) (Result, error) {
	return NewRunner(RunnerConfig{Reporter: rep}).Run(ctx, req)
}

// Run builds the graph rooted at req.Root. Failing actions and missing
// artifacts are reported, not returned: the run always completes and the
// unbuilt artifacts are listed in Result.LeftOver. Errors are returned only
// when no work could start (unknown root, invalid context).
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	logger := ctxlog.FromContext(ctx)
	rep := r.config.Reporter

	gb := scheduler.GraphBuilder{
		Depends: req.Depends,
		Builds:  req.Builds,
		Stat:    r.config.Stat,
	}
	graph, err := gb.Build(req.Root)
	if errors.Is(err, scheduler.ErrMissingRoot) {
		logger.Error("root artifact not found", "root", req.Root)
		rep.Missing(req.Root)
		rep.End(false, []string{req.Root})
		return Result{LeftOver: []string{req.Root}}, err
	}
	if err != nil {
		return Result{}, fmt.Errorf("building graph: %w", err)
	}

	vars, err := action.NewContext(req.Context)
	if err != nil {
		return Result{}, fmt.Errorf("invalid build context: %w", err)
	}

	names := graph.Names()
	rep.Start(names)

	jobs := req.Jobs
	if jobs < 1 {
		jobs = 1
	}
	queue := scheduler.NewReadyQueue(graph, jobs)
	exec := &action.Executor{
		Context:  vars,
		Procs:    r.config.Procs,
		Breakers: action.NewBreakerRegistry(r.config.Breaker),
		Retry:    r.config.Retry,
	}

	logger.Debug("starting workers", "root", req.Root, "nodes", len(names), "workers", jobs)

	var g errgroup.Group
	for i := 0; i < queue.Workers(); i++ {
		workerID := i
		g.Go(func() error {
			r.worker(ctx, logger.With("worker", workerID), graph, queue, exec)
			return nil
		})
	}
	_ = g.Wait()

	left := queue.Left()
	rep.End(len(left) == 0, left)

	return Result{
		Success:    len(left) == 0,
		Nodes:      names,
		LeftOver:   left,
		Dispatched: queue.Dispatched(),
	}, nil
}

// worker pulls nodes until it receives its stop signal.
func (r *Runner) worker(ctx context.Context, logger *slog.Logger, graph *scheduler.Graph, queue *scheduler.ReadyQueue, exec *action.Executor) {
	rep := r.config.Reporter
	progress, _ := rep.(report.ProgressReporter)
	setState := func(name string, state report.NodeState) {
		if progress != nil {
			progress.Progress(name, state)
		}
	}

	logger.Debug("worker started")
	for {
		n, ok := queue.Get()
		if !ok {
			break
		}

		setState(n.Name, report.NodeRunning)
		ran, ok := r.execute(ctx, graph, n, exec)

		if ok && (n.Virtual || graph.Exists(n.Name)) {
			if ran {
				setState(n.Name, report.NodeBuilt)
			} else {
				logger.Debug("artifact up to date", "artifact", n.Name)
				setState(n.Name, report.NodeSkipped)
			}
			queue.Feedback(n)
			continue
		}

		logger.Warn("artifact missing after build", "artifact", n.Name)
		rep.Missing(n.Name)
		setState(n.Name, report.NodeMissing)
	}
	logger.Debug("worker stopped")
}

// execute runs n's actions if n is stale. ran reports whether n was stale;
// ok reports whether all of its actions succeeded.
func (r *Runner) execute(ctx context.Context, graph *scheduler.Graph, n *scheduler.Node, exec *action.Executor) (ran bool, ok bool) {
	if !graph.ShouldBuild(n) {
		return false, true
	}

	rep := r.config.Reporter
	ok = exec.Run(ctx, n.Actions, func(res action.Result) {
		rep.Task(report.TaskResult{
			Artifact: n.Name,
			Action:   res.Action,
			Status:   res.Status,
			Output:   res.Output,
			Err:      res.Err,
			Duration: res.Duration,
		})
	})
	if !ok {
		ctxlog.FromContext(ctx).Warn("build action failed", "artifact", n.Name)
	}
	return true, ok
}
