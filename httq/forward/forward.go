// Package forward implements the per-hop packet lifecycle:
//
//	Received -> Validated -> Delivered | Forwarded | Dropped
//
// Every relay evaluates it independently. A decision depends only on the
// packet's field values and the local view of the mesh.
package forward

import (
	"log/slog"

	"github.com/TheusHen/HTTQ/httq/identity"
	"github.com/TheusHen/HTTQ/httq/logging"
	"github.com/TheusHen/HTTQ/httq/mesh"
	"github.com/TheusHen/HTTQ/httq/packet"
	"github.com/TheusHen/HTTQ/httq/route"
	"github.com/TheusHen/HTTQ/httq/signature"
)

// State is a lifecycle state.
type State uint8

const (
	Received State = iota
	Validated
	Delivered
	Forwarded
	Dropped
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case Validated:
		return "validated"
	case Delivered:
		return "delivered"
	case Forwarded:
		return "forwarded"
	case Dropped:
		return "dropped"
	}
	return "unknown"
}

// Terminal reports whether no further transition follows at this hop.
// Forwarded counts as terminal here; the next hop starts a new lifecycle.
func (s State) Terminal() bool { return s >= Delivered }

// Reason explains a drop.
type Reason uint8

const (
	None Reason = iota
	Malformed
	InvalidSignature
	TtlExpired
	Unreachable
)

func (r Reason) String() string {
	switch r {
	case None:
		return "none"
	case Malformed:
		return "malformed"
	case InvalidSignature:
		return "invalid_signature"
	case TtlExpired:
		return "ttl_expired"
	case Unreachable:
		return "unreachable"
	}
	return "unknown"
}

// Outcome is the result of one hop.
//
// Delivered and Forwarded carry the packet; Forwarded additionally carries
// the next hop and the route it was taken from. Dropped carries the reason,
// and the packet when it could be decoded.
type Outcome struct {
	State    State
	Reason   Reason
	Packet   *packet.Packet
	NextHop  identity.QIK
	Location route.OrbitalLocation
}

// Machine runs the lifecycle for the Orbital named Local.
type Machine struct {
	Local    identity.QIK
	Verifier signature.Verifier
	Keys     signature.KeyLookup
	Topology mesh.Provider
	// Logger receives one debug record per outcome. Nil discards.
	Logger *slog.Logger
}

var discard = logging.Discard()

func (m *Machine) logger() *slog.Logger {
	if m.Logger == nil {
		return discard
	}
	return m.Logger
}

// Process decodes raw and runs it through the lifecycle.
func (m *Machine) Process(raw []byte) Outcome {
	p, err := packet.Deserialize(raw)
	if err != nil {
		m.logger().Debug("packet dropped", "reason", Malformed.String(), "error", err, "size", len(raw))
		return Outcome{State: Dropped, Reason: Malformed}
	}
	return m.Handle(p)
}

// Handle runs a decoded packet through the lifecycle. On Forwarded the
// packet's TTL has been decremented in place; the caller owns it and
// serializes it for the next hop.
func (m *Machine) Handle(p *packet.Packet) Outcome {
	out := m.step(p)
	log := m.logger()
	attrs := []any{
		"origin", p.Origin.String(),
		"destination", p.Destination.String(),
		"ttl", int(p.TTL),
	}
	switch out.State {
	case Dropped:
		log.Debug("packet dropped", append(attrs, "reason", out.Reason.String())...)
	case Forwarded:
		log.Debug("packet forwarded", append(attrs, "next_hop", out.NextHop.String(), "route_hops", out.Location.Hops())...)
	case Delivered:
		log.Debug("packet delivered", attrs...)
	}
	return out
}

// Originate picks the first hop for a packet created by this node. The
// origin spends no budget, so TTL is left untouched.
func (m *Machine) Originate(p *packet.Packet) Outcome {
	if !p.Signed() {
		return Outcome{State: Dropped, Reason: InvalidSignature, Packet: p}
	}
	if p.Destination == m.Local {
		return Outcome{State: Delivered, Packet: p}
	}
	loc, ok := route.Resolve(p.Destination, m.Topology.View(m.Local))
	if !ok {
		m.logger().Debug("no route", "destination", p.Destination.String())
		return Outcome{State: Dropped, Reason: Unreachable, Packet: p}
	}
	return Outcome{State: Forwarded, Packet: p, NextHop: loc.NextHop(), Location: loc}
}

func (m *Machine) step(p *packet.Packet) Outcome {
	// Received -> Validated
	if !signature.Verify(p, m.Verifier, m.Keys) {
		return Outcome{State: Dropped, Reason: InvalidSignature, Packet: p}
	}

	// Validated -> terminal
	if p.Destination == m.Local {
		return Outcome{State: Delivered, Packet: p}
	}
	if p.TTL == 0 {
		return Outcome{State: Dropped, Reason: TtlExpired, Packet: p}
	}
	loc, ok := route.Resolve(p.Destination, m.Topology.View(m.Local))
	if !ok {
		return Outcome{State: Dropped, Reason: Unreachable, Packet: p}
	}
	p.DecrementTTL()
	return Outcome{State: Forwarded, Packet: p, NextHop: loc.NextHop(), Location: loc}
}
