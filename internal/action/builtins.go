package action

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Builtins are the callables that configuration files can name.
var Builtins = map[string]Func{
	"touch":  touch,
	"mkdir":  mkdir,
	"remove": remove,
	"copy":   copyFile,
	"write":  write,
	"echo":   echo,
}

// BuiltinNames returns the sorted names of the built-in callables.
func BuiltinNames() []string {
	names := make([]string, 0, len(Builtins))
	for name := range Builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin returns a callable action for the named built-in, or an invalid
// action if no such built-in exists.
func Builtin(name string, args ...string) Action {
	fn, ok := Builtins[name]
	if !ok {
		return Invalid(fmt.Sprintf("unknown builtin %q", name))
	}
	return Callable(name, fn, args...)
}

// touch creates each file or bumps its modification time.
func touch(_ context.Context, out io.Writer, args []string) int {
	now := time.Now()
	for _, path := range args {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(out, "touch %s: %v\n", path, err)
			return 1
		}
		f.Close()
		if err := os.Chtimes(path, now, now); err != nil {
			fmt.Fprintf(out, "touch %s: %v\n", path, err)
			return 1
		}
	}
	return 0
}

func mkdir(_ context.Context, out io.Writer, args []string) int {
	for _, path := range args {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Fprintf(out, "mkdir %s: %v\n", path, err)
			return 1
		}
	}
	return 0
}

func remove(_ context.Context, out io.Writer, args []string) int {
	for _, path := range args {
		if err := os.RemoveAll(path); err != nil {
			fmt.Fprintf(out, "remove %s: %v\n", path, err)
			return 1
		}
	}
	return 0
}

// copyFile copies args[0] to args[1].
func copyFile(_ context.Context, out io.Writer, args []string) int {
	if len(args) != 2 {
		fmt.Fprintf(out, "copy: want 2 arguments, got %d\n", len(args))
		return 2
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(out, "copy: %v\n", err)
		return 1
	}
	if err := os.MkdirAll(filepath.Dir(args[1]), 0755); err != nil {
		fmt.Fprintf(out, "copy: %v\n", err)
		return 1
	}
	if err := os.WriteFile(args[1], data, 0644); err != nil {
		fmt.Fprintf(out, "copy: %v\n", err)
		return 1
	}
	return 0
}

// write stores args[1:], one per line, in the file args[0].
func write(_ context.Context, out io.Writer, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(out, "write: missing file argument")
		return 2
	}

	content := ""
	if len(args) > 1 {
		content = strings.Join(args[1:], "\n") + "\n"
	}
	if err := os.WriteFile(args[0], []byte(content), 0644); err != nil {
		fmt.Fprintf(out, "write: %v\n", err)
		return 1
	}
	return 0
}

func echo(_ context.Context, out io.Writer, args []string) int {
	fmt.Fprintln(out, strings.Join(args, " "))
	return 0
}
