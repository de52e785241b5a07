package scheduler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOrder(t *testing.T) {
	depends := DependencyTable{
		"app": {"a.o", "b.o"},
		"a.o": {"a.c", "common.h"},
		"b.o": {"b.c", "common.h"},
	}
	g := buildGraph(t, depends, nil, fakeFS{}, "app")

	order, err := g.Order()
	if err != nil {
		t.Fatalf("Order failed: %v", err)
	}
	if len(order) != g.Len() {
		t.Fatalf("Order returned %d names, want %d", len(order), g.Len())
	}

	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}
	for name, deps := range depends {
		for _, dep := range deps {
			if pos[dep] > pos[name] {
				t.Errorf("%s ordered before its dependency %s: %v", name, dep, order)
			}
		}
	}
	if order[len(order)-1] != "app" {
		t.Errorf("root should come last, got %v", order)
	}
}

func TestOrderSingleNode(t *testing.T) {
	g := buildGraph(t, nil, BuildTable{"!clean": nil}, fakeFS{}, "!clean")

	order, err := g.Order()
	if err != nil {
		t.Fatalf("Order failed: %v", err)
	}
	if diff := cmp.Diff([]string{"!clean"}, order); diff != "" {
		t.Errorf("Order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderCycle(t *testing.T) {
	depends := DependencyTable{"a": {"b"}, "b": {"a"}}
	g := buildGraph(t, depends, nil, fakeFS{}, "a")

	if _, err := g.Order(); err == nil {
		t.Error("expected an error for a cyclic graph")
	}
}
