package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/shlex"
	"github.com/sony/gobreaker"
)

// Result is the outcome of running one action.
type Result struct {
	Action   string // Resolved command line or callable name
	Status   int    // 0 = success
	Output   []byte // Captured stdout+stderr, or callable output
	Err      error  // Set when the action could not run at all
	Duration time.Duration
}

// OK reports whether the action succeeded.
func (r Result) OK() bool {
	return r.Err == nil && r.Status == 0
}

// exitStatus turns a non-zero status into an error for breaker and retry accounting.
type exitStatus int

func (s exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(s))
}

// Executor runs action lists. The zero value runs commands without
// placeholders, retries or breakers.
type Executor struct {
	Context  *Context
	Procs    *ProcessManager  // Optional; tracks subprocesses for shutdown
	Breakers *BreakerRegistry // Optional
	Retry    RetryConfig
}

// Run executes actions in order, passing each result to report, and stops at
// the first failure. It returns true if every action succeeded.
func (e *Executor) Run(ctx context.Context, actions []Action, report func(Result)) bool {
	for _, a := range actions {
		res := e.run(ctx, a)
		if report != nil {
			report(res)
		}
		if !res.OK() {
			return false
		}
	}
	return true
}

func (e *Executor) run(ctx context.Context, a Action) Result {
	if err := ctx.Err(); err != nil {
		return Result{Action: a.String(), Status: -1, Err: fmt.Errorf("build cancelled: %w", err)}
	}

	start := time.Now()
	var res Result
	switch a.Kind {
	case KindCallable:
		res = e.runCallable(ctx, a)
	case KindCommand:
		res = e.runCommand(ctx, a)
	default:
		res = Result{Action: a.String(), Status: -1, Err: ErrInvalidAction}
	}
	res.Duration = time.Since(start)
	return res
}

func (e *Executor) runCallable(ctx context.Context, a Action) (res Result) {
	res.Action = a.String()
	if a.Fn == nil {
		res.Status = -1
		res.Err = ErrInvalidAction
		return res
	}

	var out bytes.Buffer
	defer func() {
		if r := recover(); r != nil {
			res.Status = -1
			res.Output = out.Bytes()
			res.Err = fmt.Errorf("callable %s panicked: %v", a.Name, r)
		}
	}()

	args := append([]string(nil), a.Args...)
	res.Status = a.Fn(ctx, &out, args)
	res.Output = out.Bytes()
	return res
}

func (e *Executor) runCommand(ctx context.Context, a Action) Result {
	vars := e.Context
	if vars == nil {
		vars = &Context{}
	}

	line, err := vars.Expand(a.Template)
	if err != nil {
		return Result{Action: a.Template, Status: -1, Err: err}
	}
	argv, err := shlex.Split(line)
	if err != nil {
		return Result{Action: line, Status: -1, Err: fmt.Errorf("splitting command: %w", err)}
	}
	if len(argv) == 0 {
		return Result{Action: line, Status: StatusNotStarted, Err: errors.New("empty command")}
	}

	res := Result{Action: line}

	var cb *gobreaker.CircuitBreaker
	if e.Breakers != nil {
		cb = e.Breakers.Get(argv[0])
	}

	attempt := func() error {
		res.Err = nil
		exec := func() (interface{}, error) {
			status, out := runCommand(ctx, e.Procs, argv)
			res.Status, res.Output = status, out
			if status != 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return nil, exitStatus(status)
			}
			return nil, nil
		}

		var err error
		if cb != nil {
			_, err = cb.Execute(exec)
		} else {
			_, err = exec()
		}
		if err == nil {
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			res.Status = -1
			res.Output = nil
			res.Err = fmt.Errorf("%w %s: %v", ErrCircuitOpen, argv[0], err)
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			res.Err = fmt.Errorf("build cancelled: %w", ctx.Err())
			return backoff.Permanent(err)
		}
		return err
	}

	if e.Retry.MaxRetries > 0 {
		_ = backoff.Retry(attempt, e.Retry.policy(ctx))
	} else {
		_ = attempt()
	}
	return res
}
