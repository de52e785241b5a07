package action

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func runOne(t *testing.T, e *Executor, ctx context.Context, a Action) Result {
	t.Helper()
	var results []Result
	e.Run(ctx, []Action{a}, func(r Result) { results = append(results, r) })
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	return results[0]
}

func TestExecutorCommands(t *testing.T) {
	c, err := NewContext(map[string]string{"msg": "hello world"})
	if err != nil {
		t.Fatal(err)
	}
	e := &Executor{Context: c}

	tests := []struct {
		name       string
		tmpl       string
		wantAction string
		wantStatus int
		wantOutput string
		wantErr    bool
	}{
		{"success", "true", "true", 0, "", false},
		{"exit status", "sh -c 'exit 7'", "sh -c 'exit 7'", 7, "", false},
		{"merged output", "sh -c 'echo out; echo err >&2'", "sh -c 'echo out; echo err >&2'", 0, "out\nerr\n", false},
		{"placeholder", "echo '{msg}'", "echo 'hello world'", 0, "hello world\n", false},
		{"not found", "forge-no-such-program-xyz", "forge-no-such-program-xyz", StatusNotStarted, "", false},
		{"empty", "   ", "   ", StatusNotStarted, "", true},
		{"bad quoting", "echo 'oops", "echo 'oops", -1, "", true},
		{"bad template", "echo {msg", "echo {msg", -1, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runOne(t, e, context.Background(), Command(tt.tmpl))
			if res.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", res.Action, tt.wantAction)
			}
			if res.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d (output %q)", res.Status, tt.wantStatus, res.Output)
			}
			if tt.wantOutput != "" && string(res.Output) != tt.wantOutput {
				t.Errorf("Output = %q, want %q", res.Output, tt.wantOutput)
			}
			if (res.Err != nil) != tt.wantErr {
				t.Errorf("Err = %v, wantErr %v", res.Err, tt.wantErr)
			}
			if res.OK() != (tt.wantStatus == 0 && !tt.wantErr) {
				t.Errorf("OK = %v", res.OK())
			}
		})
	}
}

func TestExecutorStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")

	var reported []string
	e := &Executor{}
	ok := e.Run(context.Background(), []Action{
		Command("true"),
		Command("false"),
		Builtin("touch", marker),
	}, func(r Result) { reported = append(reported, r.Action) })

	if ok {
		t.Error("Run should fail")
	}
	if strings.Join(reported, ",") != "true,false" {
		t.Errorf("reported = %v, want [true false]", reported)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("actions after a failure must not run")
	}
}

func TestExecutorEmptyList(t *testing.T) {
	e := &Executor{}
	if !e.Run(context.Background(), nil, nil) {
		t.Error("an empty action list succeeds")
	}
}

func TestExecutorInvalidAction(t *testing.T) {
	e := &Executor{}
	for _, a := range []Action{Invalid("invalid build type: 42"), {Kind: KindCallable, Name: "nil"}} {
		res := runOne(t, e, context.Background(), a)
		if !errors.Is(res.Err, ErrInvalidAction) {
			t.Errorf("%v: Err = %v, want ErrInvalidAction", a, res.Err)
		}
		if res.OK() {
			t.Errorf("%v: invalid action reported OK", a)
		}
	}
}

func TestExecutorCallables(t *testing.T) {
	e := &Executor{}

	var gotArgs []string
	greet := Callable("greet", func(_ context.Context, out io.Writer, args []string) int {
		gotArgs = args
		io.WriteString(out, "hi "+strings.Join(args, " "))
		return 0
	}, "a", "b")

	res := runOne(t, e, context.Background(), greet)
	if !res.OK() || string(res.Output) != "hi a b" {
		t.Errorf("greet: %+v", res)
	}
	if res.Action != "greet(a, b)" {
		t.Errorf("Action = %q", res.Action)
	}
	if strings.Join(gotArgs, ",") != "a,b" {
		t.Errorf("args = %v", gotArgs)
	}

	fail := Callable("fail", func(context.Context, io.Writer, []string) int { return 4 })
	if res := runOne(t, e, context.Background(), fail); res.Status != 4 || res.OK() {
		t.Errorf("fail: %+v", res)
	}

	boom := Callable("boom", func(_ context.Context, out io.Writer, _ []string) int {
		io.WriteString(out, "before panic")
		panic("kaboom")
	})
	res = runOne(t, e, context.Background(), boom)
	if res.Err == nil || !strings.Contains(res.Err.Error(), "kaboom") {
		t.Errorf("panic not reported: %+v", res)
	}
	if string(res.Output) != "before panic" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestExecutorCancelled(t *testing.T) {
	e := &Executor{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := runOne(t, e, ctx, Command("true"))
	if !errors.Is(res.Err, context.Canceled) || res.OK() {
		t.Errorf("cancelled action: %+v", res)
	}
}

func TestExecutorKillsOnDeadline(t *testing.T) {
	pm := NewProcessManager()
	e := &Executor{Procs: pm}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := runOne(t, e, ctx, Command("sleep 30"))
	if time.Since(start) > 5*time.Second {
		t.Fatal("command was not killed at the deadline")
	}
	if res.OK() || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("expected a cancellation failure, got %+v", res)
	}
	if pm.Count() != 0 {
		t.Errorf("process still tracked: %d", pm.Count())
	}
}
