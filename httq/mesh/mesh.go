// Package mesh describes the relay mesh: where Orbitals can be reached and
// which of them are adjacent. The route resolver reads it through View, a
// point-in-time snapshot that never changes once taken.
package mesh

import (
	"errors"
	"time"

	"github.com/TheusHen/HTTQ/httq/identity"
)

var (
	ErrNotFound        = errors.New("mesh: orbital not found")
	ErrInvalidIdentity = errors.New("mesh: invalid identity")
)

// AddrInfo is what the mesh knows about reaching one Orbital.
type AddrInfo struct {
	ID identity.QIK
	// Addr is a transport address, host:port for both relay transports.
	Addr         string
	Capabilities map[string]string
}

// Link is one directed adjacency.
type Link struct {
	To      identity.QIK
	Latency time.Duration
}

// View is a point-in-time read of the mesh as seen from Local.
type View interface {
	Local() identity.QIK
	// Links returns the outgoing adjacencies of from, ordered by destination
	// digest. The slice belongs to the caller.
	Links(from identity.QIK) []Link
}

// Provider hands out views of a mesh that may keep changing.
type Provider interface {
	View(local identity.QIK) View
}

// AddressBook maps identities to transport addresses.
// Implementations can be backed by static config, gossip, DHT, etc.
type AddressBook interface {
	Announce(info AddrInfo) error
	Lookup(id identity.QIK) (AddrInfo, error)
	List() ([]AddrInfo, error)
}
