package mesh

import (
	"sort"
	"sync"
	"time"

	"github.com/TheusHen/HTTQ/httq/identity"
)

// Topology is an in-memory mesh: an address book plus weighted links.
// It is useful for static configurations, tests and simulations.
//
// Safe for concurrent use. Views taken from it are unaffected by later
// changes.
type Topology struct {
	mu    sync.RWMutex
	peers map[identity.QIK]AddrInfo
	links map[identity.QIK]map[identity.QIK]time.Duration
}

var (
	_ Provider    = (*Topology)(nil)
	_ AddressBook = (*Topology)(nil)
)

func New() *Topology {
	return &Topology{
		peers: map[identity.QIK]AddrInfo{},
		links: map[identity.QIK]map[identity.QIK]time.Duration{},
	}
}

func copyInfo(info AddrInfo) AddrInfo {
	caps := make(map[string]string, len(info.Capabilities))
	for k, v := range info.Capabilities {
		caps[k] = v
	}
	info.Capabilities = caps
	return info
}

func (t *Topology) Announce(info AddrInfo) error {
	if info.ID.IsZero() {
		return ErrInvalidIdentity
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[info.ID] = copyInfo(info)
	return nil
}

func (t *Topology) Lookup(id identity.QIK) (AddrInfo, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.peers[id]
	if !ok {
		return AddrInfo{}, ErrNotFound
	}
	return copyInfo(info), nil
}

// List returns every announced Orbital ordered by QIK.
func (t *Topology) List() ([]AddrInfo, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]AddrInfo, 0, len(t.peers))
	for _, info := range t.peers {
		out = append(out, copyInfo(info))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out, nil
}

// Connect adds a link in both directions.
func (t *Topology) Connect(a, b identity.QIK, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addLink(a, b, latency)
	t.addLink(b, a, latency)
}

// ConnectDirected adds a link usable only from -> to.
func (t *Topology) ConnectDirected(from, to identity.QIK, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addLink(from, to, latency)
}

func (t *Topology) addLink(from, to identity.QIK, latency time.Duration) {
	if from == to || from.IsZero() || to.IsZero() {
		return
	}
	if latency < 0 {
		latency = 0
	}
	m, ok := t.links[from]
	if !ok {
		m = map[identity.QIK]time.Duration{}
		t.links[from] = m
	}
	m[to] = latency
}

// SetLinks replaces every outgoing link of from.
func (t *Topology) SetLinks(from identity.QIK, links []Link) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.links, from)
	for _, l := range links {
		t.addLink(from, l.To, l.Latency)
	}
}

// Disconnect removes the links between a and b in both directions.
func (t *Topology) Disconnect(a, b identity.QIK) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.links[a], b)
	delete(t.links[b], a)
}

// Remove forgets an Orbital together with every link touching it.
func (t *Topology) Remove(id identity.QIK) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, id)
	delete(t.links, id)
	for _, m := range t.links {
		delete(m, id)
	}
}

// View returns a snapshot of the current links seen from local.
func (t *Topology) View(local identity.QIK) View {
	return t.Snapshot(local)
}

// Snapshot is View with the concrete return type.
func (t *Topology) Snapshot(local identity.QIK) *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	adj := make(map[identity.QIK][]Link, len(t.links))
	for from, m := range t.links {
		if len(m) == 0 {
			continue
		}
		ls := make([]Link, 0, len(m))
		for to, lat := range m {
			ls = append(ls, Link{To: to, Latency: lat})
		}
		adj[from] = ls
	}
	return NewSnapshot(local, adj)
}
