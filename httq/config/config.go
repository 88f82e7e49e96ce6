// Package config loads the TOML configuration of an Orbital node.
//
//	[node]
//	key_file = "keyring.toml"
//	listen = "0.0.0.0:4433"
//	transport = "quic"
//
//	[log]
//	level = "info"
//
//	[[peer]]
//	signing_key = "..."
//	box = "x25519"
//	encryption_key = "..."
//	address = "10.0.0.2:4433"
//	latency_ms = 12
//	links = ["self"]
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/TheusHen/HTTQ/httq/crypto"
	"github.com/TheusHen/HTTQ/httq/identity"
	"github.com/TheusHen/HTTQ/httq/keys"
	"github.com/TheusHen/HTTQ/httq/logging"
	"github.com/TheusHen/HTTQ/httq/mesh"
	"github.com/TheusHen/HTTQ/httq/packet"
	"github.com/TheusHen/HTTQ/httq/transfer"
)

var ErrInvalid = errors.New("config: invalid")

const (
	TransportQUIC = "quic"
	TransportGRPC = "grpc"

	// SelfLink names the local node in a peer's links.
	SelfLink = "self"
)

type Config struct {
	Node  Node   `toml:"node"`
	Log   Log    `toml:"log"`
	Peers []Peer `toml:"peer"`
}

type Node struct {
	KeyFile   string `toml:"key_file"`
	Listen    string `toml:"listen"`
	Transport string `toml:"transport"`
	// Advertise is the address put in announcements. Defaults to Listen.
	Advertise        string `toml:"advertise,omitempty"`
	DefaultTTL       uint8  `toml:"default_ttl"`
	ReplayCache      int    `toml:"replay_cache"`
	PendingMessages  int    `toml:"pending_messages"`
	Compress         string `toml:"compress"`
	ShardSize        int    `toml:"shard_size"`
	ParityShards     int    `toml:"parity_shards"`
	AnnounceInterval string `toml:"announce_interval"`
	SendTimeout      string `toml:"send_timeout"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Peer is a statically known Orbital. Keys are hex encoded.
type Peer struct {
	SigningKey    string `toml:"signing_key"`
	Box           string `toml:"box"`
	EncryptionKey string `toml:"encryption_key"`
	Address       string `toml:"address"`
	LatencyMS     uint32 `toml:"latency_ms"`
	// Links are the digests of the Orbitals this peer is adjacent to, or
	// SelfLink for the local node.
	Links []string `toml:"links"`
}

func Default() *Config {
	return &Config{
		Node: Node{
			KeyFile:          "keyring.toml",
			Listen:           "0.0.0.0:4433",
			Transport:        TransportQUIC,
			DefaultTTL:       packet.DefaultTTL,
			ReplayCache:      4096,
			PendingMessages:  256,
			Compress:         "default",
			ShardSize:        transfer.DefaultShardSize,
			ParityShards:     transfer.DefaultParityShards,
			AnnounceInterval: "30s",
			SendTimeout:      "5s",
		},
		Log: Log{Level: "info", Format: logging.FormatText},
	}
}

// Load reads path over the defaults and validates the result. Unknown keys
// are rejected. A relative key_file is resolved against the config's
// directory.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		names := make([]string, len(undecoded))
		for i, k := range undecoded {
			names[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(names, ", "))
	}
	if cfg.Node.KeyFile != "" && !filepath.IsAbs(cfg.Node.KeyFile) {
		cfg.Node.KeyFile = filepath.Join(filepath.Dir(path), cfg.Node.KeyFile)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return err
	}
	return f.Close()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	n := c.Node
	if n.KeyFile == "" {
		return invalid("node.key_file is empty")
	}
	if n.Listen == "" {
		return invalid("node.listen is empty")
	}
	if n.Transport != TransportQUIC && n.Transport != TransportGRPC {
		return invalid("node.transport %q", n.Transport)
	}
	if n.DefaultTTL == 0 {
		return invalid("node.default_ttl must be positive")
	}
	if n.ReplayCache <= 0 {
		return invalid("node.replay_cache must be positive")
	}
	if n.PendingMessages <= 0 {
		return invalid("node.pending_messages must be positive")
	}
	if _, err := transfer.ParseCompressionLevel(n.Compress); err != nil {
		return invalid("node.compress: %v", err)
	}
	if _, err := transfer.NewFragmenter(n.ShardSize, n.ParityShards); err != nil {
		return invalid("node.shard_size %d / parity_shards %d", n.ShardSize, n.ParityShards)
	}
	if d, err := c.announceInterval(); err != nil || d < 0 {
		return invalid("node.announce_interval %q", n.AnnounceInterval)
	}
	if d, err := c.sendTimeout(); err != nil || d <= 0 {
		return invalid("node.send_timeout %q", n.SendTimeout)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	if f := c.Log.Format; f != "" && f != logging.FormatText && f != logging.FormatJSON {
		return invalid("log.format %q", f)
	}

	seen := make(map[identity.QIK]bool, len(c.Peers))
	for i, p := range c.Peers {
		e, err := p.Entry()
		if err != nil {
			return invalid("peer[%d]: %v", i, err)
		}
		id := identity.Derive(e.SigningKey)
		if seen[id] {
			return invalid("peer[%d]: duplicate %s", i, id)
		}
		seen[id] = true
		for _, l := range p.Links {
			if l == SelfLink {
				continue
			}
			if _, err := identity.ParseURI(l); err != nil {
				return invalid("peer[%d]: link %q", i, l)
			}
		}
	}
	return nil
}

func (c *Config) announceInterval() (time.Duration, error) {
	if c.Node.AnnounceInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Node.AnnounceInterval)
}

func (c *Config) sendTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Node.SendTimeout)
}

// AnnounceInterval returns how often the node re-announces itself. Zero
// disables periodic announcements.
func (c *Config) AnnounceInterval() time.Duration {
	d, _ := c.announceInterval()
	return d
}

func (c *Config) SendTimeout() time.Duration {
	d, _ := c.sendTimeout()
	return d
}

// Logging returns the logger options of the [log] section.
func (c *Config) Logging() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}

func (c *Config) Compression() transfer.CompressionLevel {
	l, _ := transfer.ParseCompressionLevel(c.Node.Compress)
	return l
}

// AdvertiseAddr is the address other Orbitals should dial.
func (c *Config) AdvertiseAddr() string {
	if c.Node.Advertise != "" {
		return c.Node.Advertise
	}
	return c.Node.Listen
}

// Entry decodes the peer's published keys.
func (p Peer) Entry() (keys.Entry, error) {
	sk, err := hex.DecodeString(p.SigningKey)
	if err != nil || len(sk) == 0 {
		return keys.Entry{}, fmt.Errorf("%w: signing_key", keys.ErrInvalidKey)
	}
	if _, err := crypto.BoxByName(p.Box); err != nil {
		return keys.Entry{}, err
	}
	ek, err := hex.DecodeString(p.EncryptionKey)
	if err != nil || len(ek) == 0 {
		return keys.Entry{}, fmt.Errorf("%w: encryption_key", keys.ErrInvalidKey)
	}
	return keys.Entry{SigningKey: sk, Box: p.Box, EncryptionKey: ek}, nil
}

// PeerFromEntry renders a directory entry as a peer block.
func PeerFromEntry(e keys.Entry, addr string, latency time.Duration, links ...string) Peer {
	return Peer{
		SigningKey:    hex.EncodeToString(e.SigningKey),
		Box:           e.Box,
		EncryptionKey: hex.EncodeToString(e.EncryptionKey),
		Address:       addr,
		LatencyMS:     uint32(latency / time.Millisecond),
		Links:         links,
	}
}

// Apply loads the static peers into a key directory and topology. Links
// naming SelfLink connect the peer to local.
func (c *Config) Apply(local identity.QIK, dir *keys.Directory, topo *mesh.Topology) error {
	for i, p := range c.Peers {
		e, err := p.Entry()
		if err != nil {
			return invalid("peer[%d]: %v", i, err)
		}
		id := dir.Add(e)
		if p.Address != "" {
			if err := topo.Announce(mesh.AddrInfo{ID: id, Addr: p.Address}); err != nil {
				return err
			}
		}
		latency := time.Duration(p.LatencyMS) * time.Millisecond
		for _, l := range p.Links {
			to := local
			if l != SelfLink {
				if to, err = identity.ParseURI(l); err != nil {
					return invalid("peer[%d]: link %q", i, l)
				}
			}
			topo.Connect(id, to, latency)
		}
	}
	return nil
}
