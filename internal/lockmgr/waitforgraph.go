package lockmgr

import (
	"sync"

	"github.com/deshaw/pjrmi-go/internal/logicalthread"
)

// waitForGraph implements deadlock detection over the lock manager's
// wait-for relationships: an edge waiter -> owner means waiter wants a
// lock owner currently holds. A cycle in this graph is a deadlock,
// with nodes keyed by logicalthread.ID rather than a string owner id.
type waitForGraph struct {
	mu sync.RWMutex

	edges map[logicalthread.ID]map[logicalthread.ID]struct{}
}

func newWaitForGraph() *waitForGraph {
	return &waitForGraph{edges: make(map[logicalthread.ID]map[logicalthread.ID]struct{})}
}

// WouldCauseCycle reports whether adding edges from waiter to every id
// in owners would create a cycle. Must be called, and must return
// false, before AddWaiter is called for the same arguments.
func (g *waitForGraph) WouldCauseCycle(waiter logicalthread.ID, owners []logicalthread.ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, owner := range owners {
		if owner == waiter {
			return true
		}
		if g.canReach(owner, waiter, make(map[logicalthread.ID]bool)) {
			return true
		}
	}
	return false
}

// AddWaiter records that waiter is waiting for every id in owners. The
// caller must have already confirmed WouldCauseCycle is false.
func (g *waitForGraph) AddWaiter(waiter logicalthread.ID, owners []logicalthread.ID) {
	if len(owners) == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.edges[waiter]
	if !ok {
		set = make(map[logicalthread.ID]struct{})
		g.edges[waiter] = set
	}
	for _, owner := range owners {
		set[owner] = struct{}{}
	}
}

// RemoveWaiter drops every outgoing edge from waiter: the lock it was
// waiting for was granted, or the wait was abandoned.
func (g *waitForGraph) RemoveWaiter(waiter logicalthread.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.edges, waiter)
}

// canReach performs a DFS to check whether to is reachable from from.
// Must be called with at least the read lock held.
func (g *waitForGraph) canReach(from, to logicalthread.ID, visited map[logicalthread.ID]bool) bool {
	if visited[from] {
		return false
	}
	visited[from] = true

	waitSet, ok := g.edges[from]
	if !ok {
		return false
	}
	if _, waiting := waitSet[to]; waiting {
		return true
	}
	for next := range waitSet {
		if g.canReach(next, to, visited) {
			return true
		}
	}
	return false
}
