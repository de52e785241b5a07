package build

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aristath/forge/internal/action"
	"github.com/aristath/forge/internal/report"
	"github.com/aristath/forge/internal/scheduler"
)

// recorder captures every reporter call.
type recorder struct {
	mu       sync.Mutex
	started  []string
	tasks    []report.TaskResult
	missing  []string
	states   map[string]report.NodeState
	ended    bool
	success  bool
	leftOver []string
}

func newRecorder() *recorder {
	return &recorder{states: make(map[string]report.NodeState)}
}

func (r *recorder) Start(artifacts []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = artifacts
}

func (r *recorder) Task(result report.TaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, result)
}

func (r *recorder) Missing(artifact string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missing = append(r.missing, artifact)
}

func (r *recorder) Progress(artifact string, state report.NodeState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[artifact] = state
}

func (r *recorder) End(success bool, leftOver []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = true
	r.success = success
	r.leftOver = leftOver
}

func (r *recorder) taskArtifacts() []string {
	var names []string
	for _, task := range r.tasks {
		names = append(names, task.Artifact)
	}
	sort.Strings(names)
	return names
}

// journal is a callable factory that logs which artifact ran and when.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) touch(name string) action.Action {
	return action.Callable("touch", func(ctx context.Context, out io.Writer, args []string) int {
		j.mu.Lock()
		j.entries = append(j.entries, filepath.Base(name))
		j.mu.Unlock()
		return action.Builtins["touch"](ctx, out, args)
	}, name)
}

func (j *journal) index(name string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, e := range j.entries {
		if e == name {
			return i
		}
	}
	return -1
}

func runBuild(t *testing.T, ctx context.Context, req Request) (*recorder, Result, error) {
	t.Helper()
	rec := newRecorder()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := Run(ctx, req, rec)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		return rec, out.res, out.err
	case <-time.After(10 * time.Second):
		t.Fatal("build did not terminate")
		return nil, Result{}, nil
	}
}

func TestRunCompilesBeforeLink(t *testing.T) {
	dir := t.TempDir()
	app := filepath.Join(dir, "app")
	aObj := filepath.Join(dir, "a.o")
	bObj := filepath.Join(dir, "b.o")

	j := &journal{}
	req := Request{
		Depends: scheduler.DependencyTable{app: {aObj, bObj}},
		Builds: scheduler.BuildTable{
			aObj: {j.touch(aObj)},
			bObj: {j.touch(bObj)},
			app:  {j.touch(app)},
		},
		Root: app,
		Jobs: 2,
	}

	rec, res, err := runBuild(t, context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Success || len(res.LeftOver) != 0 {
		t.Fatalf("expected success, got %+v", res)
	}
	if !rec.ended || !rec.success || len(rec.leftOver) != 0 {
		t.Errorf("end report: ended=%v success=%v left=%v", rec.ended, rec.success, rec.leftOver)
	}

	link := j.index("app")
	if link < 0 || j.index("a.o") > link || j.index("b.o") > link {
		t.Errorf("link ran before a compile: %v", j.entries)
	}
	if diff := cmp.Diff([]string{aObj, app, bObj}, rec.started); diff != "" {
		t.Errorf("start report mismatch (-want +got):\n%s", diff)
	}
	if len(rec.tasks) != 3 || res.Dispatched != 3 {
		t.Errorf("tasks=%d dispatched=%d, want 3 and 3", len(rec.tasks), res.Dispatched)
	}
	for _, name := range []string{aObj, bObj, app} {
		if rec.states[name] != report.NodeBuilt {
			t.Errorf("%s state = %v, want built", name, rec.states[name])
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	app := filepath.Join(dir, "app")
	obj := filepath.Join(dir, "app.o")

	j := &journal{}
	req := Request{
		Depends: scheduler.DependencyTable{app: {obj}},
		Builds: scheduler.BuildTable{
			obj: {j.touch(obj)},
			app: {j.touch(app)},
		},
		Root: app,
		Jobs: 2,
	}

	if _, res, err := runBuild(t, context.Background(), req); err != nil || !res.Success {
		t.Fatalf("first run: %+v %v", res, err)
	}

	rec, res, err := runBuild(t, context.Background(), req)
	if err != nil || !res.Success {
		t.Fatalf("second run: %+v %v", res, err)
	}
	if len(rec.tasks) != 0 {
		t.Errorf("second run executed %d actions: %v", len(rec.tasks), rec.taskArtifacts())
	}
	for _, name := range []string{obj, app} {
		if rec.states[name] != report.NodeSkipped {
			t.Errorf("%s state = %v, want skipped", name, rec.states[name])
		}
	}
}

func TestRunRebuildsAfterDependencyRemoved(t *testing.T) {
	dir := t.TempDir()
	app := filepath.Join(dir, "app")
	obj := filepath.Join(dir, "app.o")

	j := &journal{}
	req := Request{
		Depends: scheduler.DependencyTable{app: {obj}},
		Builds: scheduler.BuildTable{
			obj: {j.touch(obj)},
			app: {j.touch(app)},
		},
		Root: app,
	}
	if _, res, err := runBuild(t, context.Background(), req); err != nil || !res.Success {
		t.Fatalf("first run: %+v %v", res, err)
	}

	if err := os.Remove(obj); err != nil {
		t.Fatal(err)
	}

	rec, res, err := runBuild(t, context.Background(), req)
	if err != nil || !res.Success {
		t.Fatalf("second run: %+v %v", res, err)
	}
	if diff := cmp.Diff([]string{app, obj}, rec.taskArtifacts()); diff != "" {
		t.Errorf("rebuilt artifacts mismatch (-want +got):\n%s", diff)
	}
}

func TestRunRebuildsWhenDependencyIsNewer(t *testing.T) {
	dir := t.TempDir()
	app := filepath.Join(dir, "app")
	obj := filepath.Join(dir, "app.o")

	old := time.Now().Add(-time.Hour)
	for _, path := range []string{app, obj} {
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatal(err)
		}
	}

	var (
		mu    sync.Mutex
		steps []string
	)
	step := func(name string) action.Action {
		return action.Callable(name, func(context.Context, io.Writer, []string) int {
			mu.Lock()
			steps = append(steps, name)
			mu.Unlock()
			return 0
		})
	}
	req := Request{
		Depends: scheduler.DependencyTable{app: {obj}},
		Builds: scheduler.BuildTable{
			obj: {step("compile")},
			app: {step("link"), step("strip"), step("sign")},
		},
		Root: app,
		Jobs: 2,
	}

	// Both files at the same mtime: nothing to do.
	if _, res, err := runBuild(t, context.Background(), req); err != nil || !res.Success {
		t.Fatalf("first run: %+v %v", res, err)
	}
	if len(steps) != 0 {
		t.Fatalf("fresh targets ran %v", steps)
	}

	newer := old.Add(30 * time.Minute)
	if err := os.Chtimes(obj, newer, newer); err != nil {
		t.Fatal(err)
	}

	rec, res, err := runBuild(t, context.Background(), req)
	if err != nil || !res.Success {
		t.Fatalf("second run: %+v %v", res, err)
	}
	if diff := cmp.Diff([]string{"link", "strip", "sign"}, steps); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
	if rec.states[obj] != report.NodeSkipped {
		t.Errorf("%s state = %v, want skipped", obj, rec.states[obj])
	}
	if rec.states[app] != report.NodeBuilt {
		t.Errorf("%s state = %v, want built", app, rec.states[app])
	}
}

func TestRunFailureBlocksAncestors(t *testing.T) {
	dir := t.TempDir()
	path := func(name string) string { return filepath.Join(dir, name) }
	a, b, c, d := path("A"), path("B"), path("C"), path("D")

	j := &journal{}
	req := Request{
		Depends: scheduler.DependencyTable{
			a: {b, d},
			b: {c},
		},
		Builds: scheduler.BuildTable{
			a: {j.touch(a)},
			b: {j.touch(b)},
			c: {action.Command("false"), j.touch(c)},
			d: {j.touch(d)},
		},
		Root: a,
		Jobs: 3,
	}

	rec, res, err := runBuild(t, context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Success || rec.success {
		t.Error("build should fail")
	}

	if diff := cmp.Diff([]string{a, b, c}, res.LeftOver); diff != "" {
		t.Errorf("LeftOver mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(res.LeftOver, rec.leftOver); diff != "" {
		t.Errorf("end report mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{c}, rec.missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}

	// The sibling completes; the failed node's later actions never run.
	if _, err := os.Stat(d); err != nil {
		t.Errorf("D should be built: %v", err)
	}
	if j.index("C") >= 0 || j.index("B") >= 0 || j.index("A") >= 0 {
		t.Errorf("blocked actions ran: %v", j.entries)
	}
	if diff := cmp.Diff([]string{c, d}, rec.taskArtifacts()); diff != "" {
		t.Errorf("task reports mismatch (-want +got):\n%s", diff)
	}
}

func TestRunArtifactStillMissing(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	req := Request{
		Builds: scheduler.BuildTable{out: {action.Command("true")}},
		Root:   out,
	}

	rec, res, err := runBuild(t, context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Success {
		t.Error("an artifact missing after its build fails the run")
	}
	if len(rec.tasks) != 1 || !rec.tasks[0].OK() {
		t.Errorf("the action itself succeeded: %+v", rec.tasks)
	}
	if diff := cmp.Diff([]string{out}, rec.missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
	if rec.states[out] != report.NodeMissing {
		t.Errorf("state = %v, want missing", rec.states[out])
	}
}

func TestRunMissingRoot(t *testing.T) {
	req := Request{
		Depends: scheduler.DependencyTable{"app": {"a.o"}},
		Root:    "ghost",
		Jobs:    4,
	}

	rec, res, err := runBuild(t, context.Background(), req)
	if !errors.Is(err, scheduler.ErrMissingRoot) {
		t.Fatalf("expected ErrMissingRoot, got %v", err)
	}
	if res.Dispatched != 0 {
		t.Errorf("Dispatched = %d, want 0", res.Dispatched)
	}
	if rec.started != nil {
		t.Error("Start must not be reported for an unknown root")
	}
	if diff := cmp.Diff([]string{"ghost"}, rec.missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
	if !rec.ended || rec.success {
		t.Errorf("end report: ended=%v success=%v", rec.ended, rec.success)
	}
}

func TestRunVirtualTargets(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")

	var ran []string
	var mu sync.Mutex
	note := func(name string) action.Action {
		return action.Callable("note", func(context.Context, io.Writer, []string) int {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
			return 0
		})
	}

	j := &journal{}
	req := Request{
		Depends: scheduler.DependencyTable{
			"!all":  {file, "!prep"},
			"!prep": nil,
		},
		Builds: scheduler.BuildTable{
			"!all": {note("!all")},
			file:   {j.touch(file)},
		},
		Root: "!all",
		Jobs: 2,
	}

	for round := 0; round < 2; round++ {
		ran = nil
		rec, res, err := runBuild(t, context.Background(), req)
		if err != nil || !res.Success {
			t.Fatalf("round %d: %+v %v", round, res, err)
		}
		if diff := cmp.Diff([]string{"!all"}, ran); diff != "" {
			t.Errorf("round %d: virtual actions mismatch (-want +got):\n%s", round, diff)
		}
		if rec.states["!prep"] != report.NodeBuilt {
			t.Errorf("round %d: a virtual node without actions still completes, state %v", round, rec.states["!prep"])
		}
	}
	if len(j.entries) != 1 {
		t.Errorf("file should be built once, got %v", j.entries)
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := Request{
		Depends: scheduler.DependencyTable{a: {b}},
		Builds: scheduler.BuildTable{
			a: {action.Builtin("touch", a)},
			b: {action.Builtin("touch", b)},
		},
		Root: a,
		Jobs: 2,
	}

	rec, res, err := runBuild(t, ctx, req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Success {
		t.Error("a cancelled build cannot succeed")
	}
	if diff := cmp.Diff([]string{a, b}, res.LeftOver); diff != "" {
		t.Errorf("LeftOver mismatch (-want +got):\n%s", diff)
	}
	if len(rec.tasks) != 1 || !errors.Is(rec.tasks[0].Err, context.Canceled) {
		t.Errorf("expected one cancelled action, got %+v", rec.tasks)
	}
}

func TestRunInvalidContext(t *testing.T) {
	req := Request{
		Context: map[string]string{"a": "{a}"},
		Builds:  scheduler.BuildTable{"!x": nil},
		Root:    "!x",
	}

	rec, _, err := runBuild(t, context.Background(), req)
	if !errors.Is(err, action.ErrContextCycle) {
		t.Fatalf("expected ErrContextCycle, got %v", err)
	}
	if rec.started != nil {
		t.Error("no work should start with an invalid context")
	}
}

func TestRunRespectsPoolWidth(t *testing.T) {
	const jobs = 3

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	work := action.Callable("work", func(context.Context, io.Writer, []string) int {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return 0
	})

	depends := scheduler.DependencyTable{}
	builds := scheduler.BuildTable{"!root": nil}
	for i := 0; i < 12; i++ {
		name := "!leaf" + string(rune('a'+i))
		depends["!root"] = append(depends["!root"], name)
		builds[name] = []action.Action{work}
	}

	_, res, err := runBuild(t, context.Background(), Request{Depends: depends, Builds: builds, Root: "!root", Jobs: jobs})
	if err != nil || !res.Success {
		t.Fatalf("Run: %+v %v", res, err)
	}
	if peak > jobs {
		t.Errorf("peak concurrency %d exceeds pool width %d", peak, jobs)
	}
	if peak < 2 {
		t.Errorf("independent nodes should overlap, peak %d", peak)
	}
}
