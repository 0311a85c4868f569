// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package sr25519 wraps go-schnorrkel for the statement and dispute
// signatures the backing coordinator produces.
package sr25519

import (
	"fmt"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
)

// SignatureLength is the length in bytes of an sr25519 signature.
const SignatureLength = 64

// PublicKeyLength is the length in bytes of an sr25519 public key.
const PublicKeyLength = 32

// Signature is a raw sr25519 signature.
type Signature [SignatureLength]byte

// PublicKey is a raw sr25519 public key.
type PublicKey [PublicKeyLength]byte

// Keypair is a signing keypair over the sr25519 curve.
type Keypair struct {
	public  *schnorrkel.PublicKey
	private *schnorrkel.SecretKey
}

// GenerateKeypair creates a new random keypair.
func GenerateKeypair() (*Keypair, error) {
	priv, pub, err := schnorrkel.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("generate sr25519 keypair: %w", err)
	}
	return &Keypair{public: pub, private: priv}, nil
}

// Public returns the keypair's public key.
func (k *Keypair) Public() PublicKey {
	enc := k.public.Encode()
	return PublicKey(enc)
}

// Sign produces a signature over msg using schnorrkel's signing-context
// transcript labelled "substrate", matching the payload-prefixing scheme used for
// statements and dispute votes (the caller is responsible for the domain
// prefix, e.g. "DISP"/"APPR").
func (k *Keypair) Sign(msg []byte) (Signature, error) {
	signingCtx := schnorrkel.NewSigningContext([]byte("substrate"), msg)
	sig, err := k.private.Sign(signingCtx)
	if err != nil {
		return Signature{}, fmt.Errorf("sign message: %w", err)
	}
	enc := sig.Encode()
	return Signature(enc), nil
}

// Verify checks sig over msg against pub.
func Verify(pub PublicKey, msg []byte, sig Signature) (bool, error) {
	publicKey := &schnorrkel.PublicKey{}
	pubArr := [32]byte(pub)
	if err := publicKey.Decode(pubArr); err != nil {
		return false, fmt.Errorf("decode public key: %w", err)
	}
	var decodedSig schnorrkel.Signature
	sigArr := [64]byte(sig)
	if err := decodedSig.Decode(sigArr); err != nil {
		return false, fmt.Errorf("decode signature: %w", err)
	}
	signingCtx := schnorrkel.NewSigningContext([]byte("substrate"), msg)
	return publicKey.Verify(&decodedSig, signingCtx)
}
