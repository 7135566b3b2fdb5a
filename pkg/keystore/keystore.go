// Package keystore persists one identity at rest, encrypted under a
// passphrase with an age scrypt recipient.
package keystore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"github.com/veilmsg/veilbridge/pkg/identity"
)

// ErrNoPrivateKey is returned when asked to save a public-only identity.
var ErrNoPrivateKey = errors.New("identity has no private key")

// Store owns the keystore file for a profile.
type Store struct {
	path string
}

// New constructs a store over the keystore file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the underlying keystore file path.
func (s *Store) Path() string {
	return s.path
}

// Save writes the identity's private seed, encrypted with passphrase. An
// existing keystore file is replaced.
func (s *Store) Save(id *identity.Identity, passphrase string) error {
	seed := id.Seed()
	if seed == nil {
		return ErrNoPrivateKey
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("build recipient: %w", err)
	}
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return fmt.Errorf("encrypt keystore: %w", err)
	}
	if _, err := w.Write(seed); err != nil {
		return fmt.Errorf("encrypt keystore: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("encrypt keystore: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, buf.Bytes(), 0o600)
}

// Load decrypts the stored identity with passphrase. A wrong passphrase
// surfaces as a decrypt error.
func (s *Store) Load(passphrase string) (*identity.Identity, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}
	defer f.Close()
	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("build identity: %w", err)
	}
	r, err := age.Decrypt(f, scrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	seed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	return identity.FromSeed(seed)
}
