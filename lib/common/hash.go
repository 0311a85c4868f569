// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package common holds small value types shared across the parachain
// packages: content hashes and the helpers to derive them.
package common

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashLength is the size in bytes of a Hash.
const HashLength = 32

// Hash is an opaque 32-byte content identifier: a relay parent, a candidate
// hash, a PoV hash, or an erasure root all share this representation.
type Hash [HashLength]byte

// String returns the 0x-prefixed hex encoding of the hash.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Blake2bHash returns the blake2b-256 digest of data as a Hash.
func Blake2bHash(data []byte) (Hash, error) {
	digest, err := blake2b.New256(nil)
	if err != nil {
		return Hash{}, fmt.Errorf("new blake2b hasher: %w", err)
	}
	if _, err := digest.Write(data); err != nil {
		return Hash{}, fmt.Errorf("write data to hasher: %w", err)
	}
	var h Hash
	copy(h[:], digest.Sum(nil))
	return h, nil
}

// MustBlake2bHash is Blake2bHash but panics on error; used for encodings
// that cannot fail (fixed-size in-memory structs).
func MustBlake2bHash(data []byte) Hash {
	h, err := Blake2bHash(data)
	if err != nil {
		panic(err)
	}
	return h
}
