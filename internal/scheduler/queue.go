package scheduler

import (
	"sort"
	"sync"
)

// ReadyQueue releases nodes once all of their dependencies have completed and
// hands out one stop signal per worker when no further work can appear.
//
// inflight counts enqueued nodes minus Get calls. It reaches -workers exactly
// when every worker is waiting in Get and nothing is queued or running, so no
// Feedback can ever enqueue more work. A transiently empty channel is not a
// stop condition: a running worker may still feed back and release parents.
type ReadyQueue struct {
	graph   *Graph
	workers int

	mu         sync.Mutex
	ready      chan *Node // nil entries are stop signals
	left       map[string]struct{}
	inflight   int
	dispatched int
}

// NewReadyQueue prepares a queue over every node in g and releases the nodes
// that have no dependencies. workers below 1 is treated as 1.
//
// The queue consumes the pending counters of g's nodes, so a graph serves
// exactly one queue. Build a fresh graph for every run.
func NewReadyQueue(g *Graph, workers int) *ReadyQueue {
	if workers < 1 {
		workers = 1
	}

	q := &ReadyQueue{
		graph:   g,
		workers: workers,
		// Each node is enqueued at most once, plus one stop per worker,
		// so sends under mu never block.
		ready: make(chan *Node, g.Len()+workers),
		left:  make(map[string]struct{}, g.Len()),
	}
	for name := range g.nodes {
		q.left[name] = struct{}{}
	}

	// Drops the construction-time +1 on every pending counter.
	q.Decrement(g.Names()...)
	return q
}

// Decrement lowers the pending counter of each named node and enqueues those
// that reach zero.
func (q *ReadyQueue) Decrement(names ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.decrementLocked(names)
}

func (q *ReadyQueue) decrementLocked(names []string) {
	for _, name := range names {
		n, ok := q.graph.nodes[name]
		if !ok {
			continue
		}
		n.pending--
		if n.pending == 0 {
			q.ready <- n
			q.inflight++
		}
	}
}

// Get blocks until a node is ready. It returns false when the caller should
// stop; each worker receives exactly one stop.
func (q *ReadyQueue) Get() (*Node, bool) {
	q.mu.Lock()
	q.inflight--
	if q.inflight == -q.workers {
		for i := 0; i < q.workers; i++ {
			q.ready <- nil
		}
	}
	q.mu.Unlock()

	n := <-q.ready
	if n == nil {
		return nil, false
	}

	q.mu.Lock()
	q.dispatched++
	q.mu.Unlock()
	return n, true
}

// Feedback marks n as completed and releases its parents.
func (q *ReadyQueue) Feedback(n *Node) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.left, n.Name)
	q.decrementLocked(n.Parents())
}

// Left returns the sorted names of nodes that never completed.
func (q *ReadyQueue) Left() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	names := make([]string, 0, len(q.left))
	for name := range q.left {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatched returns how many nodes have been handed to workers.
func (q *ReadyQueue) Dispatched() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dispatched
}

// Workers returns the number of stop signals the queue will deliver.
func (q *ReadyQueue) Workers() int {
	return q.workers
}
