// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package candidatevalidation is a minimal stand-in for the out-of-scope
// Candidate Validation subsystem (§1): it answers
// ValidateFromChainState requests well enough to drive the backing
// coordinator's background validation pipeline in tests and local runs,
// without hosting a real parachain runtime. Real candidates are executed
// by an Executor the embedder supplies; this package owns only the
// subsystem wiring (basic checks, message loop, result delivery) the
// coordinator's collaborator interface expects.
package candidatevalidation

import (
	"fmt"

	"github.com/parastate/validator-node/dot/parachain/overseer"
	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/parastate/validator-node/internal/log"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-candidate-validation"))

// Executor runs a candidate's validation function against its PoV and
// persisted validation data. A real implementation hosts a WASM
// parachain runtime; tests supply a fake.
type Executor interface {
	Execute(
		pvd parachaintypes.PersistedValidationData,
		pov parachaintypes.PoV,
	) (parachaintypes.CandidateCommitments, error)
}

// CandidateValidation is a parachain subsystem that answers validation
// requests from the backing coordinator.
type CandidateValidation struct {
	Executor Executor
}

// NewCandidateValidation creates a new CandidateValidation subsystem.
func NewCandidateValidation(executor Executor) *CandidateValidation {
	return &CandidateValidation{Executor: executor}
}

// Name returns the name of the subsystem.
func (*CandidateValidation) Name() string {
	return "candidate-validation"
}

// ProcessActiveLeavesUpdate is a no-op: this subsystem carries no
// per-leaf state.
func (*CandidateValidation) ProcessActiveLeavesUpdate(overseer.ActiveLeavesUpdate) error {
	return nil
}

// Stop is a no-op; Run returns when its Context's Receiver is closed.
func (*CandidateValidation) Stop() {}

// Run drains ctx.Receiver, answering every CandidateValidationMessage it
// sees until the channel is closed.
func (cv *CandidateValidation) Run(ctx *overseer.Context) error {
	for msg := range ctx.Receiver {
		switch req := msg.(type) {
		case parachaintypes.CandidateValidationMessage:
			if req.ValidateFromChainState == nil {
				logger.Errorf("%s: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
				continue
			}
			cv.handleValidateFromChainState(*req.ValidateFromChainState)
		case *overseer.ActivatedLeaf:
			// no per-leaf state to track
		default:
			logger.Errorf("%s: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
		}
	}
	return nil
}

func (cv *CandidateValidation) handleValidateFromChainState(req parachaintypes.ValidateFromChainStateRequest) {
	result, err := cv.validate(req.Candidate, req.PoV)
	req.Reply <- parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]{Data: result, Err: err}
}

func (cv *CandidateValidation) validate(
	candidate parachaintypes.CandidateReceipt,
	pov parachaintypes.PoV,
) (parachaintypes.ValidationResult, error) {
	povHash, err := pov.Hash()
	if err != nil {
		return parachaintypes.ValidationResult{}, fmt.Errorf("hashing PoV: %w", err)
	}
	if povHash != candidate.Descriptor.PovHash {
		return parachaintypes.ValidationResult{
			Invalid: &parachaintypes.ValidationResultInvalid{Kind: parachaintypes.InvalidKindOther},
		}, nil
	}

	commitments, err := cv.Executor.Execute(parachaintypes.PersistedValidationData{}, pov)
	if err != nil {
		return parachaintypes.ValidationResult{
			Invalid: &parachaintypes.ValidationResultInvalid{Kind: parachaintypes.InvalidKindOther},
		}, nil
	}

	computedHash, err := commitments.Hash()
	if err != nil {
		return parachaintypes.ValidationResult{}, fmt.Errorf("hashing commitments: %w", err)
	}
	if computedHash != candidate.CommitmentsHash {
		return parachaintypes.ValidationResult{
			Invalid: &parachaintypes.ValidationResultInvalid{Kind: parachaintypes.InvalidKindCommitmentsHashMismatch},
		}, nil
	}

	return parachaintypes.ValidationResult{
		Valid: &parachaintypes.ValidationResultValid{Commitments: commitments},
	}, nil
}
