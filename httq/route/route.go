// Package route resolves an identity to a path through the relay mesh.
package route

import (
	"container/heap"
	"time"

	"github.com/TheusHen/HTTQ/httq/identity"
	"github.com/TheusHen/HTTQ/httq/mesh"
)

// OrbitalLocation is a resolved path to an identity. Route lists the
// Orbitals in hop order, first hop first; it never contains the resolving
// node and always ends with Identity itself.
type OrbitalLocation struct {
	Identity identity.QIK
	Route    []identity.QIK
	// Latency is the summed link latency, an estimate that may be stale.
	Latency time.Duration
}

// NextHop returns the Orbital a packet should be handed to.
func (l OrbitalLocation) NextHop() identity.QIK {
	if len(l.Route) == 0 {
		return identity.QIK{}
	}
	return l.Route[0]
}

// Hops returns the number of links on the path.
func (l OrbitalLocation) Hops() int { return len(l.Route) }

// LatencyMillis returns Latency in whole milliseconds.
func (l OrbitalLocation) LatencyMillis() int64 { return l.Latency.Milliseconds() }

// Resolve finds the best path from view.Local() to dst: fewest hops, then
// lowest summed latency, then the lexicographically smallest sequence of
// digests. It reports false when dst is unreachable, zero, or the local node.
//
// The result depends only on the view, so resolving twice against the same
// view yields the same path.
func Resolve(dst identity.QIK, view mesh.View) (OrbitalLocation, bool) {
	local := view.Local()
	if dst.IsZero() || dst == local {
		return OrbitalLocation{}, false
	}

	settled := map[identity.QIK]bool{}
	best := map[identity.QIK]*label{}
	q := &queue{}
	heap.Push(q, &label{node: local})

	for q.Len() > 0 {
		cur := heap.Pop(q).(*label)
		if settled[cur.node] {
			continue
		}
		settled[cur.node] = true
		if cur.node == dst {
			return OrbitalLocation{Identity: dst, Route: cur.path, Latency: cur.latency}, true
		}
		for _, link := range view.Links(cur.node) {
			if settled[link.To] || link.To == local {
				continue
			}
			path := make([]identity.QIK, len(cur.path), len(cur.path)+1)
			copy(path, cur.path)
			next := &label{
				node:    link.To,
				hops:    cur.hops + 1,
				latency: cur.latency + link.Latency,
				path:    append(path, link.To),
			}
			if b, ok := best[link.To]; ok && !next.less(b) {
				continue
			}
			best[link.To] = next
			heap.Push(q, next)
		}
	}
	return OrbitalLocation{}, false
}

type label struct {
	node    identity.QIK
	hops    int
	latency time.Duration
	path    []identity.QIK
}

func (a *label) less(b *label) bool {
	if a.hops != b.hops {
		return a.hops < b.hops
	}
	if a.latency != b.latency {
		return a.latency < b.latency
	}
	// Equal hops means equal path length.
	for i := range a.path {
		if a.path[i] != b.path[i] {
			return a.path[i].Less(b.path[i])
		}
	}
	return false
}

type queue []*label

func (q queue) Len() int            { return len(q) }
func (q queue) Less(i, j int) bool  { return q[i].less(q[j]) }
func (q queue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x interface{}) { *q = append(*q, x.(*label)) }
func (q *queue) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return x
}
