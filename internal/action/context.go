package action

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

var (
	// ErrContextCycle is returned when a context value refers back to itself.
	ErrContextCycle = errors.New("context variable refers to itself")

	// ErrBadTemplate is returned for unbalanced braces in a template.
	ErrBadTemplate = errors.New("malformed template")
)

// Context resolves {name} placeholders in command templates. Values may
// contain placeholders themselves; they are resolved recursively. Unknown
// names resolve to the empty string. "{{" and "}}" produce literal braces.
//
// A Context is immutable and safe for concurrent use.
type Context struct {
	vars map[string]string
}

// NewContext copies vars and verifies that every value resolves.
func NewContext(vars map[string]string) (*Context, error) {
	c := &Context{vars: maps.Clone(vars)}
	if c.vars == nil {
		c.vars = map[string]string{}
	}

	for key := range c.vars {
		if _, err := c.lookup(key, map[string]bool{}); err != nil {
			return nil, fmt.Errorf("context variable %q: %w", key, err)
		}
	}
	return c, nil
}

// Lookup returns the fully resolved value of key, or "" when absent.
func (c *Context) Lookup(key string) (string, error) {
	return c.lookup(key, map[string]bool{})
}

// Expand resolves every placeholder in tmpl.
func (c *Context) Expand(tmpl string) (string, error) {
	return c.expand(tmpl, map[string]bool{})
}

func (c *Context) lookup(key string, visiting map[string]bool) (string, error) {
	value, ok := c.vars[key]
	if !ok {
		return "", nil
	}
	if visiting[key] {
		return "", fmt.Errorf("%w: %s", ErrContextCycle, key)
	}

	visiting[key] = true
	defer delete(visiting, key)
	return c.expand(value, visiting)
}

func (c *Context) expand(tmpl string, visiting map[string]bool) (string, error) {
	if !strings.ContainsAny(tmpl, "{}") {
		return tmpl, nil
	}

	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		ch := tmpl[i]
		switch {
		case ch == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i++
		case ch == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i++
		case ch == '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed '{' in %q", ErrBadTemplate, tmpl)
			}
			key := tmpl[i+1 : i+1+end]
			value, err := c.lookup(key, visiting)
			if err != nil {
				return "", err
			}
			b.WriteString(value)
			i += end + 1
		case ch == '}':
			return "", fmt.Errorf("%w: single '}' in %q", ErrBadTemplate, tmpl)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), nil
}
