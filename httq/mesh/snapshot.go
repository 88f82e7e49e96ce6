package mesh

import (
	"sort"

	"github.com/TheusHen/HTTQ/httq/identity"
)

// Snapshot is an immutable View.
type Snapshot struct {
	local identity.QIK
	adj   map[identity.QIK][]Link
}

var _ View = (*Snapshot)(nil)

// NewSnapshot copies adj into a new snapshot. Links within each adjacency
// list are sorted by destination digest.
func NewSnapshot(local identity.QIK, adj map[identity.QIK][]Link) *Snapshot {
	s := &Snapshot{local: local, adj: make(map[identity.QIK][]Link, len(adj))}
	for from, ls := range adj {
		c := append([]Link(nil), ls...)
		sort.Slice(c, func(i, j int) bool { return c[i].To.Less(c[j].To) })
		s.adj[from] = c
	}
	return s
}

func (s *Snapshot) Local() identity.QIK { return s.local }

func (s *Snapshot) Links(from identity.QIK) []Link {
	return append([]Link(nil), s.adj[from]...)
}

// Nodes returns every identity with at least one outgoing link, sorted.
func (s *Snapshot) Nodes() []identity.QIK {
	out := make([]identity.QIK, 0, len(s.adj))
	for id := range s.adj {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
