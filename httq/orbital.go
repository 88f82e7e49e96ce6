package httq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/TheusHen/HTTQ/httq/crypto"
	"github.com/TheusHen/HTTQ/httq/forward"
	"github.com/TheusHen/HTTQ/httq/identity"
	"github.com/TheusHen/HTTQ/httq/keys"
	"github.com/TheusHen/HTTQ/httq/logging"
	"github.com/TheusHen/HTTQ/httq/mesh"
	"github.com/TheusHen/HTTQ/httq/packet"
	"github.com/TheusHen/HTTQ/httq/protocol"
	"github.com/TheusHen/HTTQ/httq/signature"
	"github.com/TheusHen/HTTQ/httq/transfer"
	"github.com/TheusHen/HTTQ/httq/transport"
)

var (
	ErrNoRoute            = errors.New("httq: no route to destination")
	ErrNoAddress          = errors.New("httq: next hop has no known address")
	ErrUnknownDestination = errors.New("httq: destination keys unknown")
	ErrNoTransport        = errors.New("httq: orbital has no transport")
)

const (
	DefaultReplayCacheSize = 4096
	DefaultPendingMessages = 256
	DefaultMaxAnnounceAge  = 10 * time.Minute
)

// Options configures an Orbital. Keyring and Sender are required.
type Options struct {
	Keyring *keys.Keyring
	// Directory and Topology default to empty ones.
	Directory *keys.Directory
	Topology  *mesh.Topology
	Sender    transport.Sender
	// Addr is the address announced to other Orbitals.
	Addr         string
	Capabilities map[string]string
	Logger       *slog.Logger

	DefaultTTL      uint8
	ReplayCacheSize int
	PendingMessages int
	Compression     transfer.CompressionLevel
	ShardSize       int
	ParityShards    int
	// MaxAnnounceAge bounds how far an announcement's timestamp may be from
	// the local clock.
	MaxAnnounceAge time.Duration
}

// Message is a reassembled payload delivered to this Orbital.
type Message struct {
	From    identity.QIK
	Payload []byte
}

// Stats are running counters of an Orbital.
type Stats struct {
	Received   uint64
	Delivered  uint64
	Forwarded  uint64
	Dropped    uint64
	Duplicates uint64
	Messages   uint64
	Announces  uint64
}

// Orbital is a node of the mesh. It originates messages for its own
// identity, delivers those addressed to it and relays everything else one
// hop closer to its destination.
type Orbital struct {
	kr       *keys.Keyring
	dir      *keys.Directory
	topo     *mesh.Topology
	sender   transport.Sender
	addr     string
	caps     map[string]string
	log      *slog.Logger
	ttl      uint8
	level    transfer.CompressionLevel
	maxAge   time.Duration
	machine  *forward.Machine
	frag     *transfer.Fragmenter
	assemble *transfer.Assembler
	seen     *lru.Cache
	lastSeen *lru.Cache

	mu        sync.RWMutex
	onMessage func(Message)

	received, delivered, forwarded, dropped atomic.Uint64
	duplicates, messages, announces         atomic.Uint64
}

func NewOrbital(opts Options) (*Orbital, error) {
	if opts.Keyring == nil || opts.Keyring.Signing == nil {
		return nil, errors.New("httq: keyring required")
	}
	if opts.Sender == nil {
		return nil, ErrNoTransport
	}
	if opts.Directory == nil {
		opts.Directory = keys.NewDirectory()
	}
	if opts.Topology == nil {
		opts.Topology = mesh.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = packet.DefaultTTL
	}
	if opts.ReplayCacheSize <= 0 {
		opts.ReplayCacheSize = DefaultReplayCacheSize
	}
	if opts.PendingMessages <= 0 {
		opts.PendingMessages = DefaultPendingMessages
	}
	if opts.ShardSize == 0 {
		opts.ShardSize = transfer.DefaultShardSize
	}
	if opts.MaxAnnounceAge <= 0 {
		opts.MaxAnnounceAge = DefaultMaxAnnounceAge
	}

	frag, err := transfer.NewFragmenter(opts.ShardSize, opts.ParityShards)
	if err != nil {
		return nil, err
	}
	asm, err := transfer.NewAssembler(opts.PendingMessages)
	if err != nil {
		return nil, err
	}
	seen, err := lru.New(opts.ReplayCacheSize)
	if err != nil {
		return nil, err
	}
	lastSeen, err := lru.New(opts.ReplayCacheSize)
	if err != nil {
		return nil, err
	}

	kr := opts.Keyring
	local := kr.Identity()
	// Our own keys must verify our own packets when they loop back.
	opts.Directory.Add(kr.Entry())

	log := opts.Logger.With("orbital", local.String())
	o := &Orbital{
		kr:       kr,
		dir:      opts.Directory,
		topo:     opts.Topology,
		sender:   opts.Sender,
		addr:     opts.Addr,
		caps:     opts.Capabilities,
		log:      log,
		ttl:      opts.DefaultTTL,
		level:    opts.Compression,
		maxAge:   opts.MaxAnnounceAge,
		frag:     frag,
		assemble: asm,
		seen:     seen,
		lastSeen: lastSeen,
	}
	o.machine = &forward.Machine{
		Local:    local,
		Verifier: keys.Verifier{},
		Keys:     opts.Directory,
		Topology: opts.Topology,
		Logger:   log,
	}
	return o, nil
}

func (o *Orbital) Identity() identity.QIK { return o.kr.Identity() }

func (o *Orbital) Directory() *keys.Directory { return o.dir }

func (o *Orbital) Topology() *mesh.Topology { return o.topo }

// MaxMessageSize is the largest message Send accepts.
func (o *Orbital) MaxMessageSize() int { return o.frag.MaxMessageSize() }

// Serve runs srv with this Orbital as its handler until ctx is done.
func (o *Orbital) Serve(ctx context.Context, srv transport.Server) error {
	return srv.Serve(ctx, o.HandleFrame)
}

// OnMessage registers the delivery callback, replacing any previous one.
// It runs on the transport goroutine that completed the message.
func (o *Orbital) OnMessage(fn func(Message)) {
	o.mu.Lock()
	o.onMessage = fn
	o.mu.Unlock()
}

func (o *Orbital) Stats() Stats {
	return Stats{
		Received:   o.received.Load(),
		Delivered:  o.delivered.Load(),
		Forwarded:  o.forwarded.Load(),
		Dropped:    o.dropped.Load(),
		Duplicates: o.duplicates.Load(),
		Messages:   o.messages.Load(),
		Announces:  o.announces.Load(),
	}
}

// Send encrypts msg for to and hands it to the first hop. Messages larger
// than one shard travel as several packets with parity, each routed on its
// own.
func (o *Orbital) Send(ctx context.Context, to identity.QIK, msg []byte) error {
	entry, ok := o.dir.Lookup(to)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDestination, to)
	}
	box, err := crypto.BoxByName(entry.Box)
	if err != nil {
		return err
	}
	frags, err := o.frag.Split(msg)
	if err != nil {
		return err
	}
	rcpt := packet.Recipient{Identity: to, PublicKey: entry.EncryptionKey}
	for _, f := range frags {
		p, err := packet.Build(rcpt, o.Identity(), f.Marshal(), box)
		if err != nil {
			return err
		}
		p.TTL = o.ttl
		if _, err := signature.Sign(p, o.kr.Signing); err != nil {
			return err
		}
		o.seen.Add(p.ID(), struct{}{})

		out := o.machine.Originate(p)
		switch out.State {
		case forward.Delivered:
			o.deliver(p)
		case forward.Forwarded:
			if err := o.relay(ctx, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s", ErrNoRoute, to)
		}
	}
	return nil
}

// HandleFrame is the transport entry point.
func (o *Orbital) HandleFrame(ctx context.Context, f protocol.Frame) {
	switch f.Type {
	case protocol.MessageTypeAnnounce:
		o.handleAnnounce(ctx, f)
	case protocol.MessageTypePacket, protocol.MessageTypePacketLZ4:
		raw, err := transfer.DecodePacketFrame(f)
		if err != nil {
			o.received.Add(1)
			o.dropped.Add(1)
			o.log.Debug("packet dropped", "reason", forward.Malformed.String(), "error", err)
			return
		}
		o.HandlePacket(ctx, raw)
	default:
		o.log.Debug("unknown frame", "type", f.Type.String())
	}
}

// HandlePacket runs one serialized packet through the forwarding machine
// and acts on the outcome. A packet seen before is reported as Dropped with
// no reason.
func (o *Orbital) HandlePacket(ctx context.Context, raw []byte) forward.Outcome {
	o.received.Add(1)
	p, err := packet.Deserialize(raw)
	if err != nil {
		o.dropped.Add(1)
		o.log.Debug("packet dropped", "reason", forward.Malformed.String(), "error", err, "size", len(raw))
		return forward.Outcome{State: forward.Dropped, Reason: forward.Malformed}
	}

	id := p.ID()
	if dup, _ := o.seen.ContainsOrAdd(id, struct{}{}); dup {
		o.duplicates.Add(1)
		return forward.Outcome{State: forward.Dropped, Packet: p}
	}

	out := o.machine.Handle(p)
	switch out.State {
	case forward.Delivered:
		o.deliver(p)
	case forward.Forwarded:
		if err := o.relay(ctx, out); err != nil {
			o.log.Warn("relay failed", "next_hop", out.NextHop.String(), "error", err)
		}
	case forward.Dropped:
		o.dropped.Add(1)
		if out.Reason == forward.InvalidSignature {
			// The origin may simply not be known yet; a copy arriving after
			// its announcement must still get through.
			o.seen.Remove(id)
		}
	}
	return out
}

func (o *Orbital) relay(ctx context.Context, out forward.Outcome) error {
	info, err := o.topo.Lookup(out.NextHop)
	if err != nil || info.Addr == "" {
		return fmt.Errorf("%w: %s", ErrNoAddress, out.NextHop)
	}
	raw, err := packet.Serialize(out.Packet)
	if err != nil {
		return err
	}
	if err := o.sender.Send(ctx, info.Addr, transfer.EncodePacketFrame(raw, o.level)); err != nil {
		return err
	}
	o.forwarded.Add(1)
	return nil
}

func (o *Orbital) deliver(p *packet.Packet) {
	o.delivered.Add(1)
	pt, err := packet.Open(p, o.kr.BoxPrivate, o.kr.Box)
	if err != nil {
		o.log.Warn("payload rejected", "origin", p.Origin.String(), "error", err)
		return
	}
	f, err := transfer.ParseFragment(pt)
	if err != nil {
		o.log.Warn("payload rejected", "origin", p.Origin.String(), "error", err)
		return
	}
	msg, done, err := o.assemble.Add(f)
	if err != nil {
		o.log.Warn("reassembly failed", "origin", p.Origin.String(), "error", err)
		return
	}
	if !done {
		return
	}
	o.messages.Add(1)
	o.mu.RLock()
	fn := o.onMessage
	o.mu.RUnlock()
	if fn != nil {
		fn(Message{From: p.Origin, Payload: msg})
	}
}
