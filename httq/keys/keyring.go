package keys

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/TheusHen/HTTQ/httq/crypto"
	"github.com/TheusHen/HTTQ/httq/identity"
)

// Keyring holds everything a node needs to act as an identity: the signing
// keypair its QIK is derived from and the keypair payloads are encrypted to.
type Keyring struct {
	Signing    *KeyPair
	Box        crypto.Box
	BoxPublic  []byte
	BoxPrivate []byte
}

// NewKeyring generates a keyring with fresh keys.
func NewKeyring(scheme Scheme, box crypto.Box) (*Keyring, error) {
	kp, err := Generate(scheme)
	if err != nil {
		return nil, err
	}
	pub, priv, err := box.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Keyring{Signing: kp, Box: box, BoxPublic: pub, BoxPrivate: priv}, nil
}

// Identity returns the keyring's QIK.
func (k *Keyring) Identity() identity.QIK { return k.Signing.Identity() }

// Entry returns the public half of the keyring as a directory entry.
func (k *Keyring) Entry() Entry {
	return Entry{
		SigningKey:    k.Signing.PublicKey(),
		Box:           k.Box.Name(),
		EncryptionKey: append([]byte(nil), k.BoxPublic...),
	}
}

type keyringFile struct {
	Scheme     string `toml:"scheme"`
	Signing    string `toml:"signing_key"`
	Box        string `toml:"box"`
	BoxPublic  string `toml:"box_public"`
	BoxPrivate string `toml:"box_private"`
}

// Save writes the keyring to path as TOML with 0600 permissions.
// An existing file is only replaced when overwrite is set.
func (k *Keyring) Save(path string, overwrite bool) error {
	priv, err := k.Signing.MarshalPrivate()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	kf := keyringFile{
		Scheme:     string(k.Signing.Scheme()),
		Signing:    hex.EncodeToString(priv),
		Box:        k.Box.Name(),
		BoxPublic:  hex.EncodeToString(k.BoxPublic),
		BoxPrivate: hex.EncodeToString(k.BoxPrivate),
	}
	if err := toml.NewEncoder(f).Encode(kf); err != nil {
		return err
	}
	return f.Close()
}

// LoadKeyring reads a keyring written by Save.
func LoadKeyring(path string) (*Keyring, error) {
	var kf keyringFile
	if _, err := toml.DecodeFile(path, &kf); err != nil {
		return nil, err
	}
	scheme, err := ParseScheme(kf.Scheme)
	if err != nil {
		return nil, err
	}
	box, err := crypto.BoxByName(kf.Box)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{"signing_key": kf.Signing, "box_public": kf.BoxPublic, "box_private": kf.BoxPrivate}
	raw := make(map[string][]byte, len(fields))
	for name, v := range fields {
		b, err := hex.DecodeString(v)
		if err != nil || len(b) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidKey, name)
		}
		raw[name] = b
	}
	kp, err := FromPrivate(scheme, raw["signing_key"])
	if err != nil {
		return nil, err
	}
	return &Keyring{Signing: kp, Box: box, BoxPublic: raw["box_public"], BoxPrivate: raw["box_private"]}, nil
}
