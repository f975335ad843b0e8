// Package capability implements the signed-envelope capability engine
// (spec §4.7): mint a capability binding the fields spec §3 names,
// sign it with a rotatable symmetric key, and verify the signature on
// the consuming side. Adapted from the teacher's
// pkg/security/secrets.go AES-256-GCM secret-encryption pattern, here
// HMAC-SHA256 sign/verify instead of encrypt/decrypt: a capability is
// a signed envelope the bearer must be able to read, not a secret
// hidden from it — only forging the signature must be infeasible.
package capability

import (
	"crypto/rand"
	"fmt"
	"sync/atomic"
)

// Key is one symmetric signing key, tagged with an id so a minted
// token can name the key that signed it and keep verifying after
// rotation.
type Key struct {
	ID     string
	Secret []byte
}

// KeyStore is a copy-on-write symmetric-key store (spec §5: "the
// capability symmetric-key store is copy-on-write; readers never
// block on rotation"). Rotate publishes an entirely new key set via a
// single atomic pointer swap; in-flight Sign/Verify calls keep using
// whichever snapshot they already loaded.
type KeyStore struct {
	keys    atomic.Pointer[map[string]*Key]
	current atomic.Pointer[Key]
}

// NewKeyStore builds a KeyStore with one freshly generated key active.
func NewKeyStore() (*KeyStore, error) {
	ks := &KeyStore{}
	if _, err := ks.Rotate(); err != nil {
		return nil, err
	}
	return ks, nil
}

// Rotate generates a new random 32-byte key, makes it the current
// signing key, and keeps every previously issued key available for
// Verify.
func (ks *KeyStore) Rotate() (*Key, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("capability: generate key: %w", err)
	}
	id := randomKeyID()
	k := &Key{ID: id, Secret: secret}

	old := ks.keys.Load()
	next := make(map[string]*Key, 1)
	if old != nil {
		for kid, key := range *old {
			next[kid] = key
		}
	}
	next[id] = k
	ks.keys.Store(&next)
	ks.current.Store(k)
	return k, nil
}

// Current returns the key new tokens are signed with.
func (ks *KeyStore) Current() (*Key, error) {
	k := ks.current.Load()
	if k == nil {
		return nil, fmt.Errorf("capability: no signing key configured")
	}
	return k, nil
}

// Lookup returns the key with the given id, for Verify of an
// outstanding token minted before the most recent rotation.
func (ks *KeyStore) Lookup(keyID string) (*Key, bool) {
	m := ks.keys.Load()
	if m == nil {
		return nil, false
	}
	k, ok := (*m)[keyID]
	return k, ok
}

// Prune discards every key except keepID, once an operator is
// confident no outstanding token still references the others.
func (ks *KeyStore) Prune(keepID string) {
	old := ks.keys.Load()
	if old == nil {
		return
	}
	k, ok := (*old)[keepID]
	if !ok {
		return
	}
	next := map[string]*Key{keepID: k}
	ks.keys.Store(&next)
}

func randomKeyID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}
