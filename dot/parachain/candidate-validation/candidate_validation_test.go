// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package candidatevalidation

import (
	"errors"
	"testing"
	"time"

	"github.com/parastate/validator-node/dot/parachain/overseer"
	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	commitments parachaintypes.CandidateCommitments
	err         error
}

func (f fakeExecutor) Execute(
	parachaintypes.PersistedValidationData,
	parachaintypes.PoV,
) (parachaintypes.CandidateCommitments, error) {
	return f.commitments, f.err
}

func receiptFor(t *testing.T, pov parachaintypes.PoV, commitments parachaintypes.CandidateCommitments) parachaintypes.CandidateReceipt {
	t.Helper()
	povHash, err := pov.Hash()
	require.NoError(t, err)
	commitmentsHash, err := commitments.Hash()
	require.NoError(t, err)
	return parachaintypes.CandidateReceipt{
		Descriptor:      parachaintypes.CandidateDescriptor{PovHash: povHash},
		CommitmentsHash: commitmentsHash,
	}
}

func TestCandidateValidationValid(t *testing.T) {
	pov := parachaintypes.PoV{BlockData: []byte("block")}
	commitments := parachaintypes.CandidateCommitments{HeadData: []byte("head")}
	receipt := receiptFor(t, pov, commitments)

	cv := NewCandidateValidation(fakeExecutor{commitments: commitments})

	toSS := make(chan any, 1)
	reply := make(chan parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult], 1)
	go func() { _ = cv.Run(&overseer.Context{Receiver: toSS}) }()

	toSS <- parachaintypes.CandidateValidationMessage{
		ValidateFromChainState: &parachaintypes.ValidateFromChainStateRequest{
			Candidate: receipt,
			PoV:       pov,
			Reply:     reply,
		},
	}

	select {
	case res := <-reply:
		require.NoError(t, res.Err)
		require.NotNil(t, res.Data.Valid)
		require.Nil(t, res.Data.Invalid)
	case <-time.After(time.Second):
		t.Fatal("no reply received")
	}
	close(toSS)
}

func TestCandidateValidationPoVMismatch(t *testing.T) {
	pov := parachaintypes.PoV{BlockData: []byte("block")}
	other := parachaintypes.PoV{BlockData: []byte("other")}
	commitments := parachaintypes.CandidateCommitments{HeadData: []byte("head")}
	receipt := receiptFor(t, other, commitments)

	cv := NewCandidateValidation(fakeExecutor{commitments: commitments})

	toSS := make(chan any, 1)
	reply := make(chan parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult], 1)
	go func() { _ = cv.Run(&overseer.Context{Receiver: toSS}) }()

	toSS <- parachaintypes.CandidateValidationMessage{
		ValidateFromChainState: &parachaintypes.ValidateFromChainStateRequest{
			Candidate: receipt,
			PoV:       pov,
			Reply:     reply,
		},
	}

	select {
	case res := <-reply:
		require.NoError(t, res.Err)
		require.Nil(t, res.Data.Valid)
		require.NotNil(t, res.Data.Invalid)
	case <-time.After(time.Second):
		t.Fatal("no reply received")
	}
	close(toSS)
}

func TestCandidateValidationExecutionFailure(t *testing.T) {
	pov := parachaintypes.PoV{BlockData: []byte("block")}
	commitments := parachaintypes.CandidateCommitments{HeadData: []byte("head")}
	receipt := receiptFor(t, pov, commitments)

	cv := NewCandidateValidation(fakeExecutor{err: errors.New("boom")})

	toSS := make(chan any, 1)
	reply := make(chan parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult], 1)
	go func() { _ = cv.Run(&overseer.Context{Receiver: toSS}) }()

	toSS <- parachaintypes.CandidateValidationMessage{
		ValidateFromChainState: &parachaintypes.ValidateFromChainStateRequest{
			Candidate: receipt,
			PoV:       pov,
			Reply:     reply,
		},
	}

	select {
	case res := <-reply:
		require.NoError(t, res.Err)
		require.Nil(t, res.Data.Valid)
		require.NotNil(t, res.Data.Invalid)
	case <-time.After(time.Second):
		t.Fatal("no reply received")
	}
	close(toSS)
}
