// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"fmt"
	"sync"

	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
)

// LocalValidator is this node's identity within a session, when it holds
// a seat in the validator set.
type LocalValidator struct {
	Index parachaintypes.ValidatorIndex
}

// TableContext is the session-scoped, immutable-within-a-relay-parent
// data the statement table needs to validate and tally votes: the
// validator set, the group each validator belongs to, and (if we are a
// validator this session) our own identity.
type TableContext struct {
	Validators []parachaintypes.ValidatorID
	Groups     map[parachaintypes.GroupIndex][]parachaintypes.ValidatorIndex
	Validator  *LocalValidator
}

// groupForValidator returns the group a validator belongs to, and
// whether it belongs to any group at all.
func (tc *TableContext) groupForValidator(v parachaintypes.ValidatorIndex) (parachaintypes.GroupIndex, bool) {
	for g, members := range tc.Groups {
		for _, m := range members {
			if m == v {
				return g, true
			}
		}
	}
	return 0, false
}

// groupMembers returns the group's members, unmodified (ascending group
// position is the slice's own order; callers must not reorder it).
func (tc *TableContext) groupMembers(g parachaintypes.GroupIndex) []parachaintypes.ValidatorIndex {
	return tc.Groups[g]
}

// Summary is returned by importStatement when a vote was accepted into
// the table for a candidate it already knows about.
type Summary struct {
	Candidate     parachaintypes.CandidateHash
	GroupID       parachaintypes.GroupIndex
	ValidityVotes int
}

type vote struct {
	seconded *parachaintypes.ValidatorSignature
	valid    *parachaintypes.ValidatorSignature
}

type candidateEntry struct {
	receipt parachaintypes.CommittedCandidateReceipt
	group   parachaintypes.GroupIndex
	votes   map[parachaintypes.ValidatorIndex]*vote
}

// attestedCandidate is a candidate that has collected enough votes to be
// turned into a BackedCandidate.
type attestedCandidate struct {
	candidate parachaintypes.CommittedCandidateReceipt
	group     []parachaintypes.ValidatorIndex
	votes     map[parachaintypes.ValidatorIndex]*vote
}

// toBackedCandidate converts an attestedCandidate into the canonical
// wire shape, with validator_indices and validity_votes ordered by
// ascending group position (§4.1).
func (a *attestedCandidate) toBackedCandidate() (parachaintypes.BackedCandidate, error) {
	bitfield := parachaintypes.NewBitfield(len(a.group))
	var votes []parachaintypes.ValidityAttestation
	for i, member := range a.group {
		v, ok := a.votes[member]
		if !ok {
			continue
		}
		bitfield.Set(i)
		switch {
		case v.seconded != nil:
			votes = append(votes, parachaintypes.NewImplicitValidityAttestation(*v.seconded))
		case v.valid != nil:
			votes = append(votes, parachaintypes.NewExplicitValidityAttestation(*v.valid))
		default:
			return parachaintypes.BackedCandidate{}, fmt.Errorf("backing: group member %d has an empty vote", member)
		}
	}
	return parachaintypes.BackedCandidate{
		Candidate:        a.candidate,
		ValidityVotes:    votes,
		ValidatorIndices: bitfield,
	}, nil
}

// Table is the per-relay-parent statement table: it tallies signed
// statements toward each candidate's backing threshold and records
// equivocations.
type Table interface {
	importStatement(ctx *TableContext, statement parachaintypes.SignedStatementWithPVD) (*Summary, error)
	attestedCandidate(hash parachaintypes.CandidateHash, ctx *TableContext, minimumBackingVotes uint32) (*attestedCandidate, error)
	drainMisbehaviors() []parachaintypes.MisbehaviorReport
	getCandidate(hash parachaintypes.CandidateHash) (parachaintypes.CommittedCandidateReceipt, error)
	expunge(hash parachaintypes.CandidateHash)
}

type table struct {
	mu           sync.Mutex
	candidates   map[parachaintypes.CandidateHash]*candidateEntry
	misbehaviors []parachaintypes.MisbehaviorReport
}

// NewTable creates an empty statement table for one relay parent.
func NewTable() Table {
	return &table{candidates: make(map[parachaintypes.CandidateHash]*candidateEntry)}
}

func requisiteVotes(groupLen int, minimumBackingVotes uint32) int {
	min := int(minimumBackingVotes)
	if min == 0 {
		min = 2
	}
	if groupLen < min {
		return groupLen
	}
	return min
}

// importStatement validates group membership and records the vote. A
// validator that has already voted differently for the same candidate,
// or that seconds a second, different candidate at this relay parent,
// produces a misbehavior report and the new vote is dropped (invariant
// 2). The first Seconded vote for a candidate creates its table entry;
// a Valid vote for a candidate the table has never seen is dropped
// without a Summary (the candidate's receipt is unknown).
func (t *table) importStatement(
	ctx *TableContext,
	signed parachaintypes.SignedStatementWithPVD,
) (*Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stmt := signed.SignedStatement.Statement
	validatorIndex := signed.SignedStatement.ValidatorIndex
	signature := signed.SignedStatement.Signature

	group, inGroup := ctx.groupForValidator(validatorIndex)
	if !inGroup {
		return nil, fmt.Errorf("backing: validator %d is not a member of any group", validatorIndex)
	}

	candidateHash, err := stmt.CandidateHash()
	if err != nil {
		return nil, fmt.Errorf("backing: statement carries no candidate hash: %w", err)
	}

	entry, known := t.candidates[candidateHash]
	if receipt, ok := stmt.IsSeconded(); ok {
		// A validator seconds at most one candidate per relay parent: a
		// Seconded vote for a different candidate is a double vote.
		for otherHash, other := range t.candidates {
			if otherHash == candidateHash {
				continue
			}
			if prior, voted := other.votes[validatorIndex]; voted && prior.seconded != nil {
				t.recordDoubleSeconded(validatorIndex, prior, other.receipt, signed)
				return nil, nil
			}
		}
		if !known {
			entry = &candidateEntry{
				receipt: receipt,
				group:   group,
				votes:   make(map[parachaintypes.ValidatorIndex]*vote),
			}
			t.candidates[candidateHash] = entry
		}
	} else if !known {
		// Valid vote for a candidate we have never seen Seconded for.
		return nil, nil
	}

	// A vote only counts toward this candidate's threshold if the voter
	// belongs to the group assigned to the candidate's para (§4.1); a
	// validator from a different group cannot inflate the tally.
	if group != entry.group {
		return nil, fmt.Errorf("backing: validator %d is not a member of candidate %s's group", validatorIndex, candidateHash.Value)
	}

	existing, hasVote := entry.votes[validatorIndex]
	if !hasVote {
		existing = &vote{}
		entry.votes[validatorIndex] = existing
	}

	if receipt, ok := stmt.IsSeconded(); ok {
		if existing.seconded != nil {
			if *existing.seconded != signature {
				t.recordDoubleSeconded(validatorIndex, existing, receipt, signed)
			}
			return nil, nil
		}
		existing.seconded = &signature
	} else if candHash, ok := stmt.IsValid(); ok {
		if candHash != candidateHash {
			return nil, fmt.Errorf("backing: statement/candidate hash mismatch")
		}
		if existing.valid != nil {
			if *existing.valid != signature {
				t.recordDoubleValid(validatorIndex, existing, signed)
			}
			return nil, nil
		}
		existing.valid = &signature
	}

	return &Summary{
		Candidate:     candidateHash,
		GroupID:       group,
		ValidityVotes: len(entry.votes),
	}, nil
}

func (t *table) recordDoubleSeconded(
	validator parachaintypes.ValidatorIndex,
	existing *vote,
	firstReceipt parachaintypes.CommittedCandidateReceipt,
	signed parachaintypes.SignedStatementWithPVD,
) {
	first := parachaintypes.SignedStatement{
		Statement:      parachaintypes.NewStatementSeconded(firstReceipt),
		ValidatorIndex: validator,
		Signature:      *existing.seconded,
	}
	second := signed.SignedStatement
	t.misbehaviors = append(t.misbehaviors, parachaintypes.MisbehaviorReport{
		Validator: validator,
		Report: parachaintypes.Misbehavior{
			DoubleSeconded: &parachaintypes.DoubleSeconded{First: first, Second: second},
		},
	})
}

func (t *table) recordDoubleValid(
	validator parachaintypes.ValidatorIndex,
	existing *vote,
	signed parachaintypes.SignedStatementWithPVD,
) {
	first := parachaintypes.SignedStatement{
		Statement:      signed.SignedStatement.Statement,
		ValidatorIndex: validator,
		Signature:      *existing.valid,
	}
	second := signed.SignedStatement
	t.misbehaviors = append(t.misbehaviors, parachaintypes.MisbehaviorReport{
		Validator: validator,
		Report: parachaintypes.Misbehavior{
			DoubleValid: &parachaintypes.DoubleValid{First: first, Second: second},
		},
	})
}

// attestedCandidate returns the candidate plus its collected votes iff
// it has crossed the group's backing threshold.
func (t *table) attestedCandidate(
	hash parachaintypes.CandidateHash,
	ctx *TableContext,
	minimumBackingVotes uint32,
) (*attestedCandidate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.candidates[hash]
	if !ok {
		return nil, fmt.Errorf("backing: unknown candidate %s", hash.Value)
	}

	group := ctx.groupMembers(entry.group)
	if len(entry.votes) < requisiteVotes(len(group), minimumBackingVotes) {
		return nil, nil
	}

	votesCopy := make(map[parachaintypes.ValidatorIndex]*vote, len(entry.votes))
	for k, v := range entry.votes {
		votesCopy[k] = v
	}
	return &attestedCandidate{candidate: entry.receipt, group: group, votes: votesCopy}, nil
}

// drainMisbehaviors yields every accumulated misbehavior report and
// clears the buffer.
func (t *table) drainMisbehaviors() []parachaintypes.MisbehaviorReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.misbehaviors
	t.misbehaviors = nil
	return out
}

// getCandidate returns the full committed receipt for a candidate the
// table has accepted a Seconded statement for.
func (t *table) getCandidate(hash parachaintypes.CandidateHash) (parachaintypes.CommittedCandidateReceipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.candidates[hash]
	if !ok {
		return parachaintypes.CommittedCandidateReceipt{}, fmt.Errorf("backing: unknown candidate %s", hash.Value)
	}
	return entry.receipt, nil
}

// expunge removes a candidate's entry entirely, as if the table had never
// seen it. Used on the rejection-expunge path (§7, §9): a candidate
// Prospective Parachains rejects after we locally second it must not
// remain backable. A hash the table does not hold is a silent no-op.
func (t *table) expunge(hash parachaintypes.CandidateHash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.candidates, hash)
}
