package scheduler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/aristath/forge/internal/action"
)

// ErrMissingRoot is returned when the root artifact appears in neither table.
var ErrMissingRoot = errors.New("root artifact is unknown")

// StatFunc reports filesystem information for an artifact path.
type StatFunc func(name string) (fs.FileInfo, error)

// Graph holds every node reachable from Root, indexed by artifact name.
type Graph struct {
	Root  string
	nodes map[string]*Node
	stat  StatFunc
}

// GraphBuilder expands a dependency table into a Graph.
type GraphBuilder struct {
	Depends DependencyTable
	Builds  BuildTable
	Stat    StatFunc // Defaults to os.Stat
}

// Build walks the dependency table depth-first from root. Each artifact gets
// exactly one Node; a dependency shared by several artifacts collects all of
// them as parents. Existence and modification time are sampled once per node.
func (b *GraphBuilder) Build(root string) (*Graph, error) {
	_, hasDeps := b.Depends[root]
	_, hasBuilds := b.Builds[root]
	if !hasDeps && !hasBuilds {
		return nil, fmt.Errorf("%w: %q", ErrMissingRoot, root)
	}

	g := &Graph{
		Root:  root,
		nodes: make(map[string]*Node),
		stat:  b.Stat,
	}
	if g.stat == nil {
		g.stat = os.Stat
	}

	g.nodes[root] = g.newNode(root, b.Depends, b.Builds)
	g.walk(root, b.Depends, b.Builds)
	return g, nil
}

// walk registers the dependencies of name, recursing into unseen ones.
func (g *Graph) walk(name string, depends DependencyTable, builds BuildTable) {
	parent := g.nodes[name]
	for _, dep := range parent.Deps {
		if child, ok := g.nodes[dep]; ok {
			child.parents[name] = struct{}{}
			continue
		}
		child := g.newNode(dep, depends, builds)
		child.parents[name] = struct{}{}
		g.nodes[dep] = child
		g.walk(dep, depends, builds)
	}
}

func (g *Graph) newNode(name string, depends DependencyTable, builds BuildTable) *Node {
	var actions []action.Action
	if list, ok := builds[name]; ok {
		actions = append(actions, list...)
	}

	n := newNode(name, distinct(depends[name]), actions)
	if !n.Virtual {
		if info, err := g.stat(name); err == nil {
			n.Exists = true
			n.ModTime = info.ModTime()
		}
	}
	return n
}

// Node returns the node for name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Names returns every artifact in the graph, sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Exists checks the filesystem for the artifact right now, bypassing the
// construction snapshot. Virtual artifacts never exist.
func (g *Graph) Exists(name string) bool {
	if IsVirtual(name) {
		return false
	}
	_, err := g.stat(name)
	return err == nil
}
