// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package parachaintypes holds the data model shared by every parachain
// subsystem: identifiers, candidate receipts, statements, and the message
// shapes exchanged with collaborator subsystems.
package parachaintypes

import (
	"errors"

	"github.com/parastate/validator-node/lib/common"
)

// Hash is a relay-chain content identifier: a block hash, candidate hash,
// PoV hash, or erasure root.
type Hash = common.Hash

// CandidateHash uniquely identifies a candidate receipt.
type CandidateHash struct {
	Value Hash
}

// ValidatorIndex is a compact index into the session's validator set.
type ValidatorIndex uint32

// GroupIndex is a compact index into the session's validator groups.
type GroupIndex uint32

// ParaID identifies a parachain.
type ParaID uint32

// SessionIndex is a monotonically increasing session counter.
type SessionIndex uint32

// CoreIndex identifies an availability core.
type CoreIndex uint32

// BlockNumber is a relay-chain block height.
type BlockNumber uint32

// ErrUnknownOverseerMessage is returned by a subsystem's message-loop
// default case when it receives a message type it was not built to
// handle.
var ErrUnknownOverseerMessage = errors.New("unknown overseer message type")

// OverseerFuncRes is the generic reply envelope used whenever a subsystem
// asks a collaborator a question and waits for a single answer: Data
// holds the answer, Err holds a delivery/processing failure.
type OverseerFuncRes[T any] struct {
	Data T
	Err  error
}

// SigningContext scopes a signature to a specific relay parent and
// session, preventing replay across sessions or relay parents.
type SigningContext struct {
	SessionIndex SessionIndex
	ParentHash   Hash
}
