package scheduler

// ShouldBuild decides whether n must run its actions, and pushes the decision
// to the artifacts depending on n.
//
// When n is present, every present parent with an older modification time is
// marked stale. When n is absent (missing, virtual, or already marked stale by
// one of its own dependencies), every parent is marked stale. The result is
// true iff n itself is absent.
//
// Must only be called once all of n's dependencies have completed.
func (g *Graph) ShouldBuild(n *Node) bool {
	present := n.present()

	for name := range n.parents {
		parent, ok := g.nodes[name]
		if !ok {
			continue
		}
		if !present {
			parent.stale.Store(true)
			continue
		}
		if parent.present() && parent.ModTime.Before(n.ModTime) {
			parent.stale.Store(true)
		}
	}

	return !present
}
