package protocol

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/TheusHen/HTTQ/httq/identity"
)

var (
	ErrAnnounceIDMismatch  = errors.New("announce identity does not match signing key")
	ErrAnnounceBadSig      = errors.New("announce invalid signature")
	ErrAnnounceMissingKey  = errors.New("announce missing signing key")
	ErrAnnounceMalformed   = errors.New("announce malformed")
	ErrAnnounceSignFailure = errors.New("announce signing failed")
)

// AnnouncedLink is one adjacency claimed by the announcer.
type AnnouncedLink struct {
	To        string `msgpack:"to"`
	LatencyMS uint32 `msgpack:"latency_ms"`
}

// Announcement publishes an Orbital's keys, address and links. It is signed
// with the key the announcer's QIK is derived from, so receivers can trust
// every field without any other key material.
type Announcement struct {
	ID            string            `msgpack:"id"`
	SigningKey    []byte            `msgpack:"signing_key"`
	Box           string            `msgpack:"box"`
	EncryptionKey []byte            `msgpack:"encryption_key"`
	Addr          string            `msgpack:"addr"`
	Links         []AnnouncedLink   `msgpack:"links"`
	TimestampSec  int64             `msgpack:"timestamp_sec"`
	Nonce         []byte            `msgpack:"nonce"`
	Capabilities  map[string]string `msgpack:"capabilities,omitempty"`
	Signature     []byte            `msgpack:"signature"`
}

// NewAnnouncement fills in the identity, timestamp and nonce. The caller
// sets Box, EncryptionKey, Addr and Links, then signs.
func NewAnnouncement(signingKey []byte, capabilities map[string]string) (Announcement, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return Announcement{}, err
	}
	capsCopy := map[string]string{}
	for k, v := range capabilities {
		capsCopy[k] = v
	}
	return Announcement{
		ID:           identity.Derive(signingKey).Digest(),
		SigningKey:   append([]byte(nil), signingKey...),
		TimestampSec: time.Now().Unix(),
		Nonce:        nonce,
		Capabilities: capsCopy,
	}, nil
}

// Identity returns the announcer's QIK.
func (a Announcement) Identity() (identity.QIK, error) {
	return identity.ParseURI(a.ID)
}

func writeField(b *bytes.Buffer, v []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(v)))
	b.Write(l[:])
	b.Write(v)
}

// SigningBytes returns the canonical form of every field except Signature.
// Links and capabilities are sorted, so the order they were added in does
// not matter.
func (a Announcement) SigningBytes() ([]byte, error) {
	if len(a.SigningKey) == 0 {
		return nil, ErrAnnounceMissingKey
	}
	if _, err := a.Identity(); err != nil {
		return nil, err
	}

	var b bytes.Buffer
	writeField(&b, []byte(a.ID))
	writeField(&b, a.SigningKey)
	writeField(&b, []byte(a.Box))
	writeField(&b, a.EncryptionKey)
	writeField(&b, []byte(a.Addr))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(a.TimestampSec))
	b.Write(ts[:])
	writeField(&b, a.Nonce)

	links := append([]AnnouncedLink(nil), a.Links...)
	sort.Slice(links, func(i, j int) bool { return links[i].To < links[j].To })
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(links)))
	b.Write(n[:])
	for _, l := range links {
		writeField(&b, []byte(l.To))
		var lat [4]byte
		binary.BigEndian.PutUint32(lat[:], l.LatencyMS)
		b.Write(lat[:])
	}

	keys := make([]string, 0, len(a.Capabilities))
	for k := range a.Capabilities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField(&b, []byte(k))
		writeField(&b, []byte(a.Capabilities[k]))
	}
	return b.Bytes(), nil
}

// Signer signs with the announcer's private key.
type Signer interface {
	Sign(message []byte) ([]byte, error)
}

// Verifier checks a signature against a raw public key.
type Verifier interface {
	Verify(message, sig, publicKey []byte) bool
}

func (a *Announcement) Sign(s Signer) error {
	toSign, err := a.SigningBytes()
	if err != nil {
		return err
	}
	sig, err := s.Sign(toSign)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAnnounceSignFailure, err)
	}
	a.Signature = sig
	return nil
}

func (a Announcement) Verify(v Verifier) error {
	if len(a.SigningKey) == 0 {
		return ErrAnnounceMissingKey
	}
	claimed, err := a.Identity()
	if err != nil {
		return err
	}
	if identity.Derive(a.SigningKey) != claimed {
		return ErrAnnounceIDMismatch
	}
	toVerify, err := a.SigningBytes()
	if err != nil {
		return err
	}
	if !v.Verify(toVerify, a.Signature, a.SigningKey) {
		return ErrAnnounceBadSig
	}
	return nil
}

func EncodeAnnouncement(a Announcement) ([]byte, error) {
	return msgpack.Marshal(&a)
}

func DecodeAnnouncement(b []byte) (Announcement, error) {
	var a Announcement
	if err := msgpack.Unmarshal(b, &a); err != nil {
		return Announcement{}, fmt.Errorf("%w: %w", ErrAnnounceMalformed, err)
	}
	if a.ID == "" {
		return Announcement{}, fmt.Errorf("%w: missing id", ErrAnnounceMalformed)
	}
	return a, nil
}
