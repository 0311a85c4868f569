// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package keystore exposes the signing-key abstraction the backing
// coordinator signs statements through. Signing is best-effort: if this
// node holds no key for a given validator index (because it is not a
// validator in the current session), callers must treat a missing
// KeyPair as "produce no signature" rather than an error.
package keystore

import (
	"fmt"
	"sync"

	"github.com/parastate/validator-node/lib/crypto/sr25519"
)

// KeyPair is any key capable of signing an already-assembled payload.
type KeyPair interface {
	Public() sr25519.PublicKey
	Sign(msg []byte) (sr25519.Signature, error)
}

type sr25519KeyPair struct {
	kp *sr25519.Keypair
}

func (s sr25519KeyPair) Public() sr25519.PublicKey { return s.kp.Public() }

func (s sr25519KeyPair) Sign(msg []byte) (sr25519.Signature, error) { return s.kp.Sign(msg) }

// NewSr25519KeyPair adapts a raw sr25519 keypair to KeyPair.
func NewSr25519KeyPair(kp *sr25519.Keypair) KeyPair {
	return sr25519KeyPair{kp: kp}
}

// Keystore resolves a validator index (really: whatever the caller keys
// it by) to the KeyPair this node should sign with, if any.
type Keystore interface {
	// KeyPair returns the signing key for public, or ok=false if this
	// node does not hold it.
	KeyPair(public sr25519.PublicKey) (KeyPair, bool)
}

// Basic is an in-memory Keystore, sufficient for a single running node
// that holds at most a handful of session keys.
type Basic struct {
	mu   sync.RWMutex
	keys map[sr25519.PublicKey]KeyPair
}

// NewBasic creates an empty keystore.
func NewBasic() *Basic {
	return &Basic{keys: make(map[sr25519.PublicKey]KeyPair)}
}

// Insert registers kp under its own public key.
func (b *Basic) Insert(kp KeyPair) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys[kp.Public()] = kp
}

// KeyPair implements Keystore.
func (b *Basic) KeyPair(public sr25519.PublicKey) (KeyPair, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	kp, ok := b.keys[public]
	return kp, ok
}

// ErrNotAValidator is returned by callers (not the Keystore itself) when
// no local key matches any of the session's validator public keys; kept
// here since every subsystem that signs needs the same sentinel message.
var ErrNotAValidator = fmt.Errorf("keystore: no local key for this session's validator set")
