// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package types builds the dispute-coordinator-facing statement shapes
// the backing coordinator constructs when it forwards a backing vote as
// potential dispute evidence (§4.9's dispatch_to_dispute_coordinator).
//
// This package is intentionally independent of block-production
// consensus (BABE): a backing-derived dispute statement only ever
// carries a "valid, because we backed it" kind, never an approval-vote
// or explicit-dispute kind, but the sum type is modeled in full so a
// future dispute-coordinator implementation has the complete shape to
// decode.
package types

import (
	"fmt"

	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/parastate/validator-node/lib/keystore"
	"github.com/parastate/validator-node/pkg/scale"
)

const (
	compactStatementVariantSeconded uint = 0
	compactStatementVariantValid    uint = 1
)

// CompactStatement is the reduced statement shape that actually gets
// signed for dispute purposes: just a kind tag and the candidate hash.
type CompactStatement struct {
	seconded      bool
	candidateHash parachaintypes.CandidateHash
}

// NewSecondedCompactStatement builds the Seconded variant.
func NewSecondedCompactStatement(h parachaintypes.CandidateHash) CompactStatement {
	return CompactStatement{seconded: true, candidateHash: h}
}

// NewValidCompactStatement builds the Valid variant.
func NewValidCompactStatement(h parachaintypes.CandidateHash) CompactStatement {
	return CompactStatement{seconded: false, candidateHash: h}
}

// Index implements scale.VaryingDataType.
func (cs CompactStatement) Index() uint {
	if cs.seconded {
		return compactStatementVariantSeconded
	}
	return compactStatementVariantValid
}

// Value implements scale.VaryingDataType.
func (cs CompactStatement) Value() any { return cs.candidateHash }

// Set implements scale.VaryingDataType.
func (cs *CompactStatement) Set(val any) error {
	h, ok := val.(parachaintypes.CandidateHash)
	if !ok {
		return fmt.Errorf("compact statement: unsupported value %T", val)
	}
	cs.candidateHash = h
	return nil
}

// SigningContext scopes a compact statement signature to a session and
// candidate.
type SigningContext struct {
	SessionIndex  parachaintypes.SessionIndex
	CandidateHash parachaintypes.CandidateHash
}

// SigningPayload returns the bytes actually signed for a dispute-vote
// compact statement.
func (cs CompactStatement) SigningPayload(ctx SigningContext) ([]byte, error) {
	encodedStatement, err := scale.Marshal(cs.candidateHash)
	if err != nil {
		return nil, fmt.Errorf("encode compact statement: %w", err)
	}
	encodedCtx, err := scale.Marshal(ctx)
	if err != nil {
		return nil, fmt.Errorf("encode signing context: %w", err)
	}
	payload := append([]byte{byte(cs.Index())}, encodedStatement...)
	return append(payload, encodedCtx...), nil
}

// ExplicitDisputeStatement is an explicit vote cast as part of an
// already-opened dispute, independent of any backing or approval
// evidence.
type ExplicitDisputeStatement struct {
	Valid         bool
	CandidateHash parachaintypes.CandidateHash
	Session       parachaintypes.SessionIndex
}

const explicitDisputeMagic = "DISP"

// SigningPayload returns the magic-prefixed bytes signed for an explicit
// dispute vote.
func (eds ExplicitDisputeStatement) SigningPayload() ([]byte, error) {
	encoded, err := scale.Marshal(eds)
	if err != nil {
		return nil, fmt.Errorf("marshal explicit dispute statement: %w", err)
	}
	return append([]byte(explicitDisputeMagic), encoded...), nil
}

// ApprovalVote is a vote of approval on a candidate, cast by the
// approval-voting subsystem (out of scope here; modeled for completeness
// of the signing-payload switch).
type ApprovalVote struct {
	CandidateHash parachaintypes.CandidateHash
}

const approvalVoteMagic = "APPR"

// SigningPayload returns the magic-prefixed bytes signed for an approval
// vote.
func (a ApprovalVote) SigningPayload(session parachaintypes.SessionIndex) ([]byte, error) {
	encodedVote, err := scale.Marshal(a.CandidateHash)
	if err != nil {
		return nil, fmt.Errorf("marshal approval vote: %w", err)
	}
	encodedSession, err := scale.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	payload := append([]byte(approvalVoteMagic), encodedVote...)
	return append(payload, encodedSession...), nil
}

// DisputeStatementKind distinguishes how a dispute vote was derived.
type DisputeStatementKind int

const (
	// KindExplicitValid is a standalone "I consider this valid" vote.
	KindExplicitValid DisputeStatementKind = iota
	// KindExplicitInvalid is a standalone "I consider this invalid" vote.
	KindExplicitInvalid
	// KindBackingSeconded derives a valid vote from this validator's
	// earlier Seconded backing statement.
	KindBackingSeconded
	// KindBackingValid derives a valid vote from this validator's
	// earlier Valid backing statement.
	KindBackingValid
	// KindApprovalChecking derives a valid vote from an approval check.
	KindApprovalChecking
)

// DisputeStatement carries the kind of vote only; it holds no candidate
// hash.
type DisputeStatement struct {
	Kind DisputeStatementKind
}

// SignedDisputeStatement is a checked dispute vote from a specific
// validator.
type SignedDisputeStatement struct {
	DisputeStatement   DisputeStatement
	CandidateHash      parachaintypes.CandidateHash
	ValidatorPublic    parachaintypes.ValidatorID
	ValidatorSignature parachaintypes.ValidatorSignature
	SessionIndex       parachaintypes.SessionIndex
}

// NewSignedDisputeStatement signs a standalone explicit dispute vote.
func NewSignedDisputeStatement(
	keypair keystore.KeyPair,
	valid bool,
	candidateHash parachaintypes.CandidateHash,
	sessionIndex parachaintypes.SessionIndex,
) (SignedDisputeStatement, error) {
	kind := KindExplicitInvalid
	if valid {
		kind = KindExplicitValid
	}
	disputeStatement := DisputeStatement{Kind: kind}

	payload, err := getDisputeStatementSigningPayload(disputeStatement, candidateHash, sessionIndex)
	if err != nil {
		return SignedDisputeStatement{}, fmt.Errorf("get dispute statement signing payload: %w", err)
	}

	signature, err := keypair.Sign(payload)
	if err != nil {
		return SignedDisputeStatement{}, fmt.Errorf("sign payload: %w", err)
	}

	return SignedDisputeStatement{
		DisputeStatement:   disputeStatement,
		CandidateHash:      candidateHash,
		ValidatorPublic:    parachaintypes.ValidatorID(keypair.Public()),
		ValidatorSignature: parachaintypes.ValidatorSignature(signature),
		SessionIndex:       sessionIndex,
	}, nil
}

// NewCheckedSignedDisputeStatement verifies an already-signed dispute
// statement before accepting it.
func NewCheckedSignedDisputeStatement(
	disputeStatement DisputeStatement,
	candidateHash parachaintypes.CandidateHash,
	sessionIndex parachaintypes.SessionIndex,
	validatorSignature parachaintypes.ValidatorSignature,
	validatorID parachaintypes.ValidatorID,
) (*SignedDisputeStatement, error) {
	if err := VerifyDisputeStatement(disputeStatement, candidateHash, sessionIndex, validatorSignature, validatorID); err != nil {
		return nil, fmt.Errorf("verify dispute statement: %w", err)
	}
	return &SignedDisputeStatement{
		DisputeStatement:   disputeStatement,
		CandidateHash:      candidateHash,
		ValidatorPublic:    validatorID,
		ValidatorSignature: validatorSignature,
		SessionIndex:       sessionIndex,
	}, nil
}

// NewSignedDisputeStatementFromBackingVote re-derives dispute evidence
// from an already-signed backing statement (§4.9's
// dispatch_to_dispute_coordinator): a Seconded or Valid backing vote is
// always "valid" evidence from the backer's perspective, whether it was
// cast by this node or observed from a peer. The original signature is
// carried through unmodified: it was produced over the backing
// statement's own signing payload, not the compact dispute payload, and
// is kept as the evidence that validator cast this vote rather than
// re-derived under a different scheme here.
func NewSignedDisputeStatementFromBackingVote(
	backingStatement parachaintypes.Statement,
	validatorPublic parachaintypes.ValidatorID,
	validatorSignature parachaintypes.ValidatorSignature,
	sessionIndex parachaintypes.SessionIndex,
) (SignedDisputeStatement, error) {
	var kind DisputeStatementKind
	switch {
	case func() bool { _, ok := backingStatement.IsSeconded(); return ok }():
		kind = KindBackingSeconded
	case func() bool { _, ok := backingStatement.IsValid(); return ok }():
		kind = KindBackingValid
	default:
		return SignedDisputeStatement{}, fmt.Errorf("invalid backing statement kind")
	}

	candidateHash, err := backingStatement.CandidateHash()
	if err != nil {
		return SignedDisputeStatement{}, fmt.Errorf("backing statement carries no candidate hash: %w", err)
	}

	return SignedDisputeStatement{
		DisputeStatement:   DisputeStatement{Kind: kind},
		CandidateHash:      candidateHash,
		ValidatorPublic:    validatorPublic,
		ValidatorSignature: validatorSignature,
		SessionIndex:       sessionIndex,
	}, nil
}

// VerifyDisputeStatement checks a dispute vote's signature against the
// payload it must have been derived from.
func VerifyDisputeStatement(
	disputeStatement DisputeStatement,
	candidateHash parachaintypes.CandidateHash,
	sessionIndex parachaintypes.SessionIndex,
	validatorSignature parachaintypes.ValidatorSignature,
	validatorID parachaintypes.ValidatorID,
) error {
	payload, err := getDisputeStatementSigningPayload(disputeStatement, candidateHash, sessionIndex)
	if err != nil {
		return fmt.Errorf("get dispute statement signing payload: %w", err)
	}

	ok, err := sr25519Verify(validatorID, payload, validatorSignature)
	if err != nil {
		return fmt.Errorf("verify dispute statement: %w", err)
	}
	if !ok {
		return fmt.Errorf("dispute statement signature does not verify")
	}
	return nil
}

func getDisputeStatementSigningPayload(
	disputeStatement DisputeStatement,
	candidateHash parachaintypes.CandidateHash,
	session parachaintypes.SessionIndex,
) ([]byte, error) {
	switch disputeStatement.Kind {
	case KindExplicitValid, KindExplicitInvalid:
		data := ExplicitDisputeStatement{
			Valid:         disputeStatement.Kind == KindExplicitValid,
			CandidateHash: candidateHash,
			Session:       session,
		}
		return data.SigningPayload()
	case KindBackingSeconded:
		cs := NewSecondedCompactStatement(candidateHash)
		return cs.SigningPayload(SigningContext{SessionIndex: session, CandidateHash: candidateHash})
	case KindBackingValid:
		cs := NewValidCompactStatement(candidateHash)
		return cs.SigningPayload(SigningContext{SessionIndex: session, CandidateHash: candidateHash})
	case KindApprovalChecking:
		data := ApprovalVote{CandidateHash: candidateHash}
		return data.SigningPayload(session)
	default:
		return nil, fmt.Errorf("invalid dispute statement kind %v", disputeStatement.Kind)
	}
}

// Statement is the final shape sent to the dispute coordinator: a
// checked dispute vote plus which validator cast it.
type Statement struct {
	SignedDisputeStatement SignedDisputeStatement
	ValidatorIndex         parachaintypes.ValidatorIndex
}
