// Package action describes and runs the build actions attached to artifacts.
package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalidAction is reported for an action that is neither a command nor a callable.
var ErrInvalidAction = errors.New("invalid build type")

// Kind identifies the variant held by an Action.
type Kind int

const (
	KindInvalid  Kind = iota // Unrecognized action, always fails
	KindCommand              // Shell-command template
	KindCallable             // Native Go function
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindCallable:
		return "callable"
	default:
		return "invalid"
	}
}

// Func is a native build action. Anything written to out is captured and
// reported with the result; the return value is the status code (0 = success).
type Func func(ctx context.Context, out io.Writer, args []string) int

// Action is one build step. Construct it with Command, Callable or Invalid.
type Action struct {
	Kind     Kind
	Template string   // KindCommand: command line with {placeholders}
	Name     string   // KindCallable: function name; KindInvalid: description
	Fn       Func     // KindCallable
	Args     []string // KindCallable: bound arguments
}

// Command returns an action that runs tmpl as a subprocess after resolving
// its placeholders.
func Command(tmpl string) Action {
	return Action{Kind: KindCommand, Template: tmpl}
}

// Callable returns an action that invokes fn with the bound args.
func Callable(name string, fn Func, args ...string) Action {
	return Action{Kind: KindCallable, Name: name, Fn: fn, Args: args}
}

// Invalid returns an action that fails when executed.
func Invalid(desc string) Action {
	return Action{Kind: KindInvalid, Name: desc}
}

// String returns the textual form used when reporting the action.
func (a Action) String() string {
	switch a.Kind {
	case KindCommand:
		return a.Template
	case KindCallable:
		if len(a.Args) == 0 {
			return a.Name
		}
		return fmt.Sprintf("%s(%s)", a.Name, strings.Join(a.Args, ", "))
	default:
		return a.Name
	}
}
