// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import "github.com/parastate/validator-node/pkg/scale"

// CollatorID is the collator's public key.
type CollatorID [32]byte

// CollatorSignature is the collator's signature over a candidate
// descriptor.
type CollatorSignature [64]byte

// ValidatorSignature is a validator's sr25519 signature, e.g. over a
// Statement payload.
type ValidatorSignature [64]byte

// CandidateDescriptor is everything about a candidate that is fixed at
// collation time, before the candidate has been executed.
type CandidateDescriptor struct {
	ParaID                      ParaID
	RelayParent                 Hash
	Collator                    CollatorID
	PersistedValidationDataHash Hash
	PovHash                     Hash
	ErasureRoot                 Hash
	Signature                   CollatorSignature
	ParaHead                    Hash
	ValidationCodeHash          Hash
}

// CandidateCommitments is everything about a candidate produced by
// executing it: outbound messages, the new head, and the validation-code
// upgrade it requests, if any.
type CandidateCommitments struct {
	UpwardMessages            [][]byte
	HorizontalMessages        []OutboundHrmpMessage
	NewValidationCode         *[]byte
	HeadData                  []byte
	ProcessedDownwardMessages uint32
	HrmpWatermark             uint32
}

// OutboundHrmpMessage is a horizontal message to another parachain.
type OutboundHrmpMessage struct {
	Recipient ParaID
	Data      []byte
}

// CandidateReceipt is a candidate's descriptor plus a commitment to its
// (not yet attached) commitments, without the commitments themselves.
type CandidateReceipt struct {
	Descriptor      CandidateDescriptor
	CommitmentsHash Hash
}

// CommittedCandidateReceipt is a CandidateReceipt together with its full
// commitments; this is what gets included in a BackedCandidate.
type CommittedCandidateReceipt struct {
	Descriptor  CandidateDescriptor
	Commitments CandidateCommitments
}

// ToPlain discards the commitments, retaining only their hash.
func (c CommittedCandidateReceipt) ToPlain() (CandidateReceipt, error) {
	h, err := c.Commitments.Hash()
	if err != nil {
		return CandidateReceipt{}, err
	}
	return CandidateReceipt{Descriptor: c.Descriptor, CommitmentsHash: h}, nil
}

// Hash returns the blake2b hash of the commitments, as embedded in a
// CandidateReceipt.
func (c CandidateCommitments) Hash() (Hash, error) {
	enc, err := scale.Marshal(c)
	if err != nil {
		return Hash{}, err
	}
	return blake2bOf(enc)
}

// Hash returns this candidate's CandidateHash: the hash of its
// descriptor and commitments hash together, matching the CandidateHash
// of the corresponding CandidateReceipt.
func (c CandidateReceipt) Hash() (CandidateHash, error) {
	enc, err := scale.Marshal(c)
	if err != nil {
		return CandidateHash{}, err
	}
	h, err := blake2bOf(enc)
	if err != nil {
		return CandidateHash{}, err
	}
	return CandidateHash{Value: h}, nil
}

// Hash returns this candidate's CandidateHash, computed over the plain
// receipt derived from it (so it is identical to CandidateReceipt.Hash
// for the same logical candidate).
func (c CommittedCandidateReceipt) Hash() (CandidateHash, error) {
	plain, err := c.ToPlain()
	if err != nil {
		return CandidateHash{}, err
	}
	return plain.Hash()
}

func blake2bOf(data []byte) (Hash, error) {
	return hashBlake2b(data)
}

// PoV is the Proof of Validity: opaque witness data required to execute
// a candidate.
type PoV struct {
	BlockData []byte
}

// Hash returns the blake2b hash of the PoV's block data.
func (p PoV) Hash() (Hash, error) {
	return blake2bOf(p.BlockData)
}

// PersistedValidationData is the data a collator needs to build the next
// candidate in a chain, handed back to it on successful seconding.
type PersistedValidationData struct {
	ParentHead             []byte
	RelayParentNumber      uint32
	RelayParentStorageRoot Hash
	MaxPovSize             uint32
}

// AvailableData is the full payload erasure-coded for availability: the
// PoV plus the validation data it was checked against.
type AvailableData struct {
	PoV                     PoV
	ValidationData          PersistedValidationData
}
