package action

import (
	"errors"
	"testing"
)

func TestContextExpand(t *testing.T) {
	vars := map[string]string{
		"cc":     "gcc",
		"cflags": "-O2 {warn}",
		"warn":   "-Wall",
		"out":    "build",
		"empty":  "",
	}
	c, err := NewContext(vars)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}

	tests := []struct {
		name    string
		tmpl    string
		want    string
		wantErr error
	}{
		{"no placeholders", "make all", "make all", nil},
		{"simple", "{cc} -c a.c", "gcc -c a.c", nil},
		{"nested", "{cc} {cflags} -c a.c", "gcc -O2 -Wall -c a.c", nil},
		{"adjacent", "{out}/{cc}", "build/gcc", nil},
		{"unknown is empty", "x{nope}y", "xy", nil},
		{"empty value", "[{empty}]", "[]", nil},
		{"escaped braces", "awk '{{print $1}}'", "awk '{print $1}'", nil},
		{"escape next to placeholder", "{{{cc}}}", "{gcc}", nil},
		{"unclosed", "{cc", "", ErrBadTemplate},
		{"stray close", "a}b", "", ErrBadTemplate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Expand(tt.tmpl)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expand(%q) error = %v, want %v", tt.tmpl, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expand(%q) failed: %v", tt.tmpl, err)
			}
			if got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestContextLookup(t *testing.T) {
	c, err := NewContext(map[string]string{"a": "{b}!", "b": "bee"})
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}

	if got, _ := c.Lookup("a"); got != "bee!" {
		t.Errorf("Lookup(a) = %q, want bee!", got)
	}
	if got, _ := c.Lookup("missing"); got != "" {
		t.Errorf("Lookup(missing) = %q, want empty", got)
	}
}

func TestNewContextRejectsCycles(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"self", map[string]string{"a": "{a}"}},
		{"pair", map[string]string{"a": "{b}", "b": "{a}"}},
		{"long", map[string]string{"a": "{b}", "b": "{c}", "c": "x{a}"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewContext(tt.vars); !errors.Is(err, ErrContextCycle) {
				t.Errorf("expected ErrContextCycle, got %v", err)
			}
		})
	}
}

func TestNewContextCopiesInput(t *testing.T) {
	vars := map[string]string{"x": "1"}
	c, err := NewContext(vars)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	vars["x"] = "2"

	if got, _ := c.Expand("{x}"); got != "1" {
		t.Errorf("Expand = %q, want 1", got)
	}
}

func TestNilContext(t *testing.T) {
	c, err := NewContext(nil)
	if err != nil {
		t.Fatalf("NewContext(nil) failed: %v", err)
	}
	if got, _ := c.Expand("echo {x}"); got != "echo " {
		t.Errorf("Expand = %q", got)
	}
}
