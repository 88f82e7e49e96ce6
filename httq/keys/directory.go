package keys

import (
	"sync"

	"github.com/TheusHen/HTTQ/httq/identity"
)

// Entry is the public key material published for one identity.
type Entry struct {
	SigningKey    []byte
	Box           string
	EncryptionKey []byte
}

func (e Entry) clone() Entry {
	return Entry{
		SigningKey:    append([]byte(nil), e.SigningKey...),
		Box:           e.Box,
		EncryptionKey: append([]byte(nil), e.EncryptionKey...),
	}
}

// Directory maps QIKs to their published keys. Entries are keyed by the QIK
// derived from the signing key, so a directory can never hold a key that does
// not belong to the identity it is filed under.
//
// Safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	entries map[identity.QIK]Entry
}

func NewDirectory() *Directory {
	return &Directory{entries: make(map[identity.QIK]Entry)}
}

// Add files e under the QIK of its signing key and returns that QIK.
func (d *Directory) Add(e Entry) identity.QIK {
	id := identity.Derive(e.SigningKey)
	d.mu.Lock()
	d.entries[id] = e.clone()
	d.mu.Unlock()
	return id
}

func (d *Directory) Remove(id identity.QIK) {
	d.mu.Lock()
	delete(d.entries, id)
	d.mu.Unlock()
}

// Lookup returns a copy of the entry for id.
func (d *Directory) Lookup(id identity.QIK) (Entry, bool) {
	d.mu.RLock()
	e, ok := d.entries[id]
	d.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// PublicKey returns the signing key of id.
func (d *Directory) PublicKey(id identity.QIK) ([]byte, bool) {
	e, ok := d.Lookup(id)
	if !ok {
		return nil, false
	}
	return e.SigningKey, true
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
