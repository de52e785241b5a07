package scheduler

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aristath/forge/internal/action"
)

// VirtualPrefix marks an artifact that has no filesystem path (a phony target).
const VirtualPrefix = "!"

// DependencyTable maps an artifact to the artifacts it depends on.
// An artifact absent from the table has no dependencies.
type DependencyTable map[string][]string

// BuildTable maps an artifact to the actions that rebuild it, in order.
type BuildTable map[string][]action.Action

// IsVirtual reports whether name denotes a virtual artifact.
func IsVirtual(name string) bool {
	return strings.HasPrefix(name, VirtualPrefix)
}

// Node is one artifact reachable from the build root.
type Node struct {
	Name    string          // Artifact identifier
	Deps    []string        // Distinct dependencies, in table order
	Actions []action.Action // Immutable after construction
	Virtual bool
	Exists  bool      // Filesystem snapshot taken at construction
	ModTime time.Time // Valid only when Exists

	pending int                 // Guarded by ReadyQueue.mu once the graph is handed over
	parents map[string]struct{} // Artifacts that depend on this node
	stale   atomic.Bool         // Set when a dependency forces a rebuild
}

func newNode(name string, deps []string, actions []action.Action) *Node {
	return &Node{
		Name:    name,
		Deps:    deps,
		Actions: actions,
		Virtual: IsVirtual(name),
		pending: len(deps) + 1,
		parents: make(map[string]struct{}),
	}
}

// Parents returns the sorted names of the artifacts depending on this node.
func (n *Node) Parents() []string {
	names := make([]string, 0, len(n.parents))
	for name := range n.parents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// present reports whether the node counts as existing for staleness purposes.
func (n *Node) present() bool {
	return n.Exists && !n.stale.Load()
}

// distinct drops repeated names while preserving the first occurrence order.
func distinct(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
