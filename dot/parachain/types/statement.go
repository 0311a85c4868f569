// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"bytes"
	"fmt"
	"io"

	"github.com/parastate/validator-node/lib/crypto/sr25519"
	"github.com/parastate/validator-node/lib/keystore"
	"github.com/parastate/validator-node/pkg/scale"
)

const (
	statementVariantSeconded uint = 1
	statementVariantValid    uint = 2
)

// Statement is the sum type a validator signs: either "I second this
// candidate" (carrying the full committed receipt) or "I consider this
// already-seconded candidate valid" (carrying only its hash).
type Statement struct {
	value any // CommittedCandidateReceipt | CandidateHash
}

// NewStatementSeconded builds a Seconded statement.
func NewStatementSeconded(receipt CommittedCandidateReceipt) Statement {
	return Statement{value: receipt}
}

// NewStatementValid builds a Valid statement.
func NewStatementValid(hash CandidateHash) Statement {
	return Statement{value: hash}
}

// Index implements scale.VaryingDataType.
func (s Statement) Index() uint {
	switch s.value.(type) {
	case CommittedCandidateReceipt:
		return statementVariantSeconded
	case CandidateHash:
		return statementVariantValid
	default:
		return 0
	}
}

// Value implements scale.VaryingDataType.
func (s Statement) Value() any { return s.value }

// Set implements scale.VaryingDataType.
func (s *Statement) Set(val any) error {
	switch val.(type) {
	case CommittedCandidateReceipt, CandidateHash:
		s.value = val
		return nil
	default:
		return fmt.Errorf("statement: unsupported variant value %T", val)
	}
}

// IsSeconded reports whether this is a Seconded statement, returning its
// payload.
func (s Statement) IsSeconded() (CommittedCandidateReceipt, bool) {
	r, ok := s.value.(CommittedCandidateReceipt)
	return r, ok
}

// IsValid reports whether this is a Valid statement, returning its
// payload.
func (s Statement) IsValid() (CandidateHash, bool) {
	h, ok := s.value.(CandidateHash)
	return h, ok
}

// CandidateHash returns the hash of the candidate this statement
// concerns, computing it from the full receipt in the Seconded case.
func (s Statement) CandidateHash() (CandidateHash, error) {
	if r, ok := s.IsSeconded(); ok {
		return r.Hash()
	}
	if h, ok := s.IsValid(); ok {
		return h, nil
	}
	return CandidateHash{}, fmt.Errorf("statement: empty variant")
}

// MarshalSCALE implements a custom VaryingDataType encoding.
func (s Statement) MarshalSCALE() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(s.Index()))
	enc, err := scale.Marshal(s.value)
	if err != nil {
		return nil, err
	}
	buf.Write(enc)
	return buf.Bytes(), nil
}

// UnmarshalSCALE implements a custom VaryingDataType decoding.
func (s *Statement) UnmarshalSCALE(r io.Reader) error {
	idx, err := scale.ReadVariantIndex(r)
	if err != nil {
		return err
	}
	switch uint(idx) {
	case statementVariantSeconded:
		var receipt CommittedCandidateReceipt
		if err := scale.DecodeInto(r, &receipt); err != nil {
			return err
		}
		s.value = receipt
	case statementVariantValid:
		var h CandidateHash
		if err := scale.DecodeInto(r, &h); err != nil {
			return err
		}
		s.value = h
	default:
		return fmt.Errorf("statement: unknown variant index %d", idx)
	}
	return nil
}

// signingPayload is the byte sequence actually signed: the SCALE
// encoding of the statement together with the signing context, so a
// signature cannot be replayed across sessions or relay parents.
func signingPayload(statement Statement, ctx SigningContext) ([]byte, error) {
	encStatement, err := scale.Marshal(statement)
	if err != nil {
		return nil, fmt.Errorf("encode statement: %w", err)
	}
	encCtx, err := scale.Marshal(ctx)
	if err != nil {
		return nil, fmt.Errorf("encode signing context: %w", err)
	}
	return append(encStatement, encCtx...), nil
}

// SignedStatement is a Statement together with the index and signature
// of the validator who produced it. Peer-received statements are never
// verified by this package (signature verification is Statement
// Distribution's job); the Signature field is trusted as already
// checked by the time it reaches the coordinator.
type SignedStatement struct {
	Statement      Statement
	ValidatorIndex ValidatorIndex
	Signature      ValidatorSignature
}

// SignedStatementWithPVD pairs a SignedStatement with the persisted
// validation data the candidate was seconded against, handed to a
// collator on a successful local seconding.
type SignedStatementWithPVD struct {
	SignedStatement         SignedStatement
	PersistedValidationData *PersistedValidationData
}

// Sign produces a SignedStatement for statement under ctx, signing with
// public's key in ks. Signing is best-effort: if ks holds no key for
// public, Sign returns (nil, nil) rather than an error, so callers
// silently skip distribution instead of failing statement handling.
func Sign(
	ks keystore.Keystore,
	public sr25519.PublicKey,
	validatorIndex ValidatorIndex,
	statement Statement,
	ctx SigningContext,
) (*SignedStatement, error) {
	kp, ok := ks.KeyPair(public)
	if !ok {
		return nil, nil
	}
	payload, err := signingPayload(statement, ctx)
	if err != nil {
		return nil, fmt.Errorf("build signing payload: %w", err)
	}
	sig, err := kp.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("sign statement: %w", err)
	}
	return &SignedStatement{
		Statement:      statement,
		ValidatorIndex: validatorIndex,
		Signature:      ValidatorSignature(sig),
	}, nil
}
