// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
)

// ProspectiveParachainsMode mirrors the Disabled/Enabled tag on a leaf's
// relationship to asynchronous backing (§9: "a single code path
// parametric over mode rather than two branches" — the mode only
// changes which depths and relay parents are legal, not the handlers
// that act on them).
type ProspectiveParachainsMode struct {
	Enabled bool
}

// ActiveLeafState is the per-leaf bookkeeping the coordinator keeps:
// whether asynchronous backing is enabled for this leaf, and, if so, the
// depth at which each locally-seconded candidate currently sits in this
// leaf's fragment tree.
type ActiveLeafState struct {
	Mode            ProspectiveParachainsMode
	SecondedAtDepth map[uint32]parachaintypes.CandidateHash
}

// NewActiveLeafState builds the empty per-leaf state used immediately
// after a leaf is first learned about (§4.4 step 2/6).
func NewActiveLeafState(mode ProspectiveParachainsMode) *ActiveLeafState {
	return &ActiveLeafState{Mode: mode, SecondedAtDepth: make(map[uint32]parachaintypes.CandidateHash)}
}

// PerCandidateState is the per-candidate bookkeeping that outlives any
// single relay-parent handler invocation: what it takes to build the
// next candidate in its chain, which para it belongs to, which relay
// parent it was seconded against, and whether this node is the one that
// seconded it.
type PerCandidateState struct {
	PersistedValidationData parachaintypes.PersistedValidationData
	SecondedLocally         bool
	ParaID                  parachaintypes.ParaID
	RelayParent             parachaintypes.Hash
}

// PerRelayParentState wraps the statement table (C1) and its context
// (C2) with the per-relay-parent bookkeeping the coordinator loop
// mutates: which para (if any) this validator is assigned to at this
// relay parent, which candidates have already been backed, which
// statements this node has already issued, which candidates are
// currently awaiting background validation, and the PoV-fetch fallback
// queues for in-flight Attest tasks.
type PerRelayParentState struct {
	RelayParent parachaintypes.Hash
	Session     parachaintypes.SessionIndex
	Assignment  *parachaintypes.ParaID

	Table   Table
	Context *TableContext

	Backed             map[parachaintypes.CandidateHash]struct{}
	IssuedStatements   map[issuedKey]struct{}
	AwaitingValidation map[parachaintypes.CandidateHash]struct{}
	Fallbacks          map[parachaintypes.CandidateHash]*parachaintypes.AttestingData
}

// issuedKey identifies a (candidate, role) pair this node has already
// signed a statement for, enforcing invariant 1: at most one locally
// signed statement per (candidate, role) per relay parent.
type issuedKey struct {
	candidate parachaintypes.CandidateHash
	seconded  bool
}

// NewPerRelayParentState builds empty per-RP bookkeeping around an
// already-populated table and context (§4.3).
func NewPerRelayParentState(
	relayParent parachaintypes.Hash,
	session parachaintypes.SessionIndex,
	assignment *parachaintypes.ParaID,
	tbl Table,
	ctx *TableContext,
) *PerRelayParentState {
	return &PerRelayParentState{
		RelayParent:        relayParent,
		Session:            session,
		Assignment:         assignment,
		Table:              tbl,
		Context:            ctx,
		Backed:             make(map[parachaintypes.CandidateHash]struct{}),
		IssuedStatements:   make(map[issuedKey]struct{}),
		AwaitingValidation: make(map[parachaintypes.CandidateHash]struct{}),
		Fallbacks:          make(map[parachaintypes.CandidateHash]*parachaintypes.AttestingData),
	}
}

// hasIssuedSeconded reports whether this node has already signed a
// Seconded statement for candidate at this relay parent.
func (s *PerRelayParentState) hasIssuedSeconded(candidate parachaintypes.CandidateHash) bool {
	_, ok := s.IssuedStatements[issuedKey{candidate: candidate, seconded: true}]
	return ok
}

// hasIssuedValid reports whether this node has already signed a Valid
// statement for candidate at this relay parent.
func (s *PerRelayParentState) hasIssuedValid(candidate parachaintypes.CandidateHash) bool {
	_, ok := s.IssuedStatements[issuedKey{candidate: candidate, seconded: false}]
	return ok
}

// hasIssuedAny reports whether this node has issued any statement
// (Seconded or Valid) for candidate at this relay parent, which is the
// condition §4.6 checks before spawning further background validation.
func (s *PerRelayParentState) hasIssuedAny(candidate parachaintypes.CandidateHash) bool {
	return s.hasIssuedSeconded(candidate) || s.hasIssuedValid(candidate)
}

func (s *PerRelayParentState) markIssued(candidate parachaintypes.CandidateHash, seconded bool) {
	s.IssuedStatements[issuedKey{candidate: candidate, seconded: seconded}] = struct{}{}
}
