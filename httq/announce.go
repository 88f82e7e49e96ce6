package httq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TheusHen/HTTQ/httq/identity"
	"github.com/TheusHen/HTTQ/httq/keys"
	"github.com/TheusHen/HTTQ/httq/mesh"
	"github.com/TheusHen/HTTQ/httq/protocol"
)

var ErrStaleAnnounce = errors.New("httq: stale announcement")

// announceKey files announcement nonces in the replay cache next to packet IDs.
type announceKey string

// Announcement returns a freshly signed announcement of this Orbital: its
// keys, its address and its current outgoing links.
func (o *Orbital) Announcement() (protocol.Announcement, error) {
	a, err := protocol.NewAnnouncement(o.kr.Signing.PublicKey(), o.caps)
	if err != nil {
		return protocol.Announcement{}, err
	}
	a.Box = o.kr.Box.Name()
	a.EncryptionKey = append([]byte(nil), o.kr.BoxPublic...)
	a.Addr = o.addr
	local := o.Identity()
	for _, l := range o.topo.View(local).Links(local) {
		a.Links = append(a.Links, protocol.AnnouncedLink{
			To:        l.To.Digest(),
			LatencyMS: uint32(l.Latency / time.Millisecond),
		})
	}
	if err := a.Sign(o.kr.Signing); err != nil {
		return protocol.Announcement{}, err
	}
	return a, nil
}

// Announce sends a signed announcement to every neighbor with a known
// address. Neighbors pass new announcements on, so the whole mesh learns
// about this Orbital.
func (o *Orbital) Announce(ctx context.Context) error {
	a, err := o.Announcement()
	if err != nil {
		return err
	}
	b, err := protocol.EncodeAnnouncement(a)
	if err != nil {
		return err
	}
	return o.flood(ctx, protocol.Frame{Type: protocol.MessageTypeAnnounce, Payload: b}, identity.QIK{})
}

// AnnounceEvery announces immediately and then once per interval until ctx
// is done.
func (o *Orbital) AnnounceEvery(ctx context.Context, interval time.Duration) {
	if err := o.Announce(ctx); err != nil {
		o.log.Warn("announce failed", "error", err)
	}
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := o.Announce(ctx); err != nil {
				o.log.Warn("announce failed", "error", err)
			}
		}
	}
}

func (o *Orbital) flood(ctx context.Context, f protocol.Frame, skip identity.QIK) error {
	local := o.Identity()
	var errs []error
	for _, l := range o.topo.View(local).Links(local) {
		if l.To == skip {
			continue
		}
		info, err := o.topo.Lookup(l.To)
		if err != nil || info.Addr == "" {
			continue
		}
		if err := o.sender.Send(ctx, info.Addr, f); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.To, err))
		}
	}
	return errors.Join(errs...)
}

func (o *Orbital) handleAnnounce(ctx context.Context, f protocol.Frame) {
	a, err := protocol.DecodeAnnouncement(f.Payload)
	if err != nil {
		o.log.Debug("announce rejected", "error", err)
		return
	}
	id, err := o.ApplyAnnouncement(a)
	if err != nil {
		if !errors.Is(err, ErrStaleAnnounce) {
			o.log.Debug("announce rejected", "id", a.ID, "error", err)
		}
		return
	}
	if err := o.flood(ctx, f, id); err != nil {
		o.log.Warn("announce relay failed", "id", id.String(), "error", err)
	}
}

// ApplyAnnouncement verifies a and records the announcer's keys, address
// and links. Announcements of this Orbital are rejected, as are replays,
// ones too far from the local clock and ones older than the last accepted.
func (o *Orbital) ApplyAnnouncement(a protocol.Announcement) (identity.QIK, error) {
	if err := a.Verify(keys.Verifier{}); err != nil {
		return identity.QIK{}, err
	}
	id, err := a.Identity()
	if err != nil {
		return identity.QIK{}, err
	}
	local := o.Identity()
	if id == local {
		return id, ErrStaleAnnounce
	}
	if len(a.Nonce) == 0 {
		return id, fmt.Errorf("%w: missing nonce", protocol.ErrAnnounceMalformed)
	}
	skew := time.Since(time.Unix(a.TimestampSec, 0))
	if skew > o.maxAge || skew < -o.maxAge {
		return id, fmt.Errorf("%w: timestamp off by %s", ErrStaleAnnounce, skew.Round(time.Second))
	}
	if last, ok := o.lastSeen.Get(id); ok && last.(int64) > a.TimestampSec {
		return id, ErrStaleAnnounce
	}

	var neighbor bool
	var neighborLatency time.Duration
	links := make([]mesh.Link, 0, len(a.Links))
	for _, l := range a.Links {
		to, err := identity.ParseURI(l.To)
		if err != nil {
			return id, fmt.Errorf("%w: link %q", protocol.ErrAnnounceMalformed, l.To)
		}
		lat := time.Duration(l.LatencyMS) * time.Millisecond
		links = append(links, mesh.Link{To: to, Latency: lat})
		if to == local {
			neighbor, neighborLatency = true, lat
		}
	}

	// The nonce is spent only once the links parse.
	if dup, _ := o.seen.ContainsOrAdd(announceKey(a.Nonce), struct{}{}); dup {
		return id, ErrStaleAnnounce
	}

	o.lastSeen.Add(id, a.TimestampSec)
	o.dir.Add(keys.Entry{SigningKey: a.SigningKey, Box: a.Box, EncryptionKey: a.EncryptionKey})
	if a.Addr != "" {
		if err := o.topo.Announce(mesh.AddrInfo{ID: id, Addr: a.Addr, Capabilities: a.Capabilities}); err != nil {
			return id, err
		}
	}
	o.topo.SetLinks(id, links)
	if neighbor {
		// A neighbor claiming us is reachable directly.
		o.topo.ConnectDirected(local, id, neighborLatency)
	}
	o.announces.Add(1)
	o.log.Debug("announce accepted", "id", id.String(), "addr", a.Addr, "links", len(links))
	return id, nil
}

