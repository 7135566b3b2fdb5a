// Package identity provides the Ed25519 identity collaborator.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// fingerprintSize is the truncated digest length in bytes.
const fingerprintSize = 16

// Identity is an Ed25519 keypair. Imported identities carry only the
// public half; they cannot sign and cannot be saved to the keystore.
type Identity struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// Generate creates a fresh keypair.
func Generate() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Identity{public: pub, private: priv}, nil
}

// FromPublicKeyHex builds a public-only identity from a hex-encoded key.
func FromPublicKeyHex(s string) (*Identity, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return &Identity{public: ed25519.PublicKey(raw)}, nil
}

// FromSeed restores a full identity from a private-key seed.
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Identity{public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

// Seed returns the private-key seed, or nil for public-only identities.
func (id *Identity) Seed() []byte {
	if id.private == nil {
		return nil
	}
	return id.private.Seed()
}

// HasPrivateKey reports whether the identity can sign.
func (id *Identity) HasPrivateKey() bool {
	return id.private != nil
}

// PublicKeyHex returns the hex-encoded public key.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(id.public)
}

// FingerprintHex returns the BLAKE3 digest of the public key, truncated to
// fingerprintSize bytes and hex encoded.
func (id *Identity) FingerprintHex() string {
	sum := blake3.Sum256(id.public)
	return hex.EncodeToString(sum[:fingerprintSize])
}
