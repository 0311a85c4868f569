// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gammazero/deque"

	"github.com/parastate/validator-node/pkg/scale"
)

const (
	validityAttestationImplicit uint = 1
	validityAttestationExplicit uint = 2
)

// ValidityAttestation is the on-wire shape of a single validator's vote
// inside a BackedCandidate: Implicit means the vote came bundled with
// that validator's Seconded statement, Explicit means it was a
// standalone Valid statement.
type ValidityAttestation struct {
	explicit  bool
	signature ValidatorSignature
}

// NewImplicitValidityAttestation wraps the signature carried by a
// Seconded statement.
func NewImplicitValidityAttestation(sig ValidatorSignature) ValidityAttestation {
	return ValidityAttestation{explicit: false, signature: sig}
}

// NewExplicitValidityAttestation wraps the signature carried by a Valid
// statement.
func NewExplicitValidityAttestation(sig ValidatorSignature) ValidityAttestation {
	return ValidityAttestation{explicit: true, signature: sig}
}

// Index implements scale.VaryingDataType.
func (v ValidityAttestation) Index() uint {
	if v.explicit {
		return validityAttestationExplicit
	}
	return validityAttestationImplicit
}

// Value implements scale.VaryingDataType.
func (v ValidityAttestation) Value() any { return v.signature }

// Set implements scale.VaryingDataType.
func (v *ValidityAttestation) Set(val any) error {
	sig, ok := val.(ValidatorSignature)
	if !ok {
		return fmt.Errorf("validity attestation: unsupported value %T", val)
	}
	v.signature = sig
	return nil
}

// MarshalSCALE implements a custom VaryingDataType encoding.
func (v ValidityAttestation) MarshalSCALE() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(v.Index()))
	enc, err := scale.Marshal(v.signature)
	if err != nil {
		return nil, err
	}
	buf.Write(enc)
	return buf.Bytes(), nil
}

// UnmarshalSCALE implements a custom VaryingDataType decoding.
func (v *ValidityAttestation) UnmarshalSCALE(r io.Reader) error {
	idx, err := scale.ReadVariantIndex(r)
	if err != nil {
		return err
	}
	switch uint(idx) {
	case validityAttestationImplicit:
		v.explicit = false
	case validityAttestationExplicit:
		v.explicit = true
	default:
		return fmt.Errorf("validity attestation: unknown variant index %d", idx)
	}
	return scale.DecodeInto(r, &v.signature)
}

// BackedCandidate is a candidate that has crossed its group's backing
// threshold: the canonical wire shape handed to the Provisioner.
//
// ValidatorIndices has bit i set iff the i-th member (by ascending
// position) of the assigned group contributed a vote, and ValidityVotes
// is ordered to match: ValidityVotes[k] is the vote of the k-th set bit.
type BackedCandidate struct {
	Candidate        CommittedCandidateReceipt
	ValidityVotes    []ValidityAttestation
	ValidatorIndices Bitfield
}

// AttestingData tracks an in-flight Attest validation: which candidate,
// which PoV, which validator we are currently fetching the PoV from, and
// the queue of further validators to fall back to if that fetch fails.
// Backing is a deque so AttestNoPoV can pop the next fallback off the
// front without reslicing.
type AttestingData struct {
	Candidate     CandidateReceipt
	PovHash       Hash
	FromValidator ValidatorIndex
	Backing       deque.Deque[ValidatorIndex]
}
