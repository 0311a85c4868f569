// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import "time"

// BackingExecutionTimeout bounds candidate validation requested from the
// backing path (as opposed to the longer timeout the approval-voting
// path uses).
const BackingExecutionTimeout = 2 * time.Second

// --- Runtime API (out of scope, interface-only) -----------------------

// RuntimeAPIMessage is sent to the runtime API gateway to answer a
// question about the state at a given relay parent.
type RuntimeAPIMessage struct {
	RelayParent Hash
	Request     RuntimeAPIRequest
}

// RuntimeAPIRequest is the sum of questions the coordinator asks the
// runtime API gateway during per-relay-parent construction (§4.3).
type RuntimeAPIRequest struct {
	Validators           *chan<- OverseerFuncRes[[]ValidatorID]
	ValidatorGroups      *chan<- OverseerFuncRes[ValidatorGroupsResult]
	SessionIndexForChild *chan<- OverseerFuncRes[SessionIndex]
	AvailabilityCores    *chan<- OverseerFuncRes[[]CoreState]
	AsyncBackingEnabled  *chan<- OverseerFuncRes[bool]
}

// ValidatorID is a validator's session public key.
type ValidatorID [32]byte

// ValidatorGroupsResult is the runtime's answer to ValidatorGroups: the
// assignment of validators to groups, plus the rotation schedule used to
// map groups to cores over time.
type ValidatorGroupsResult struct {
	Groups       [][]ValidatorIndex
	RotationInfo GroupRotationInfo
}

// GroupRotationInfo describes how often groups rotate across cores.
type GroupRotationInfo struct {
	SessionStartBlock uint32
	GroupRotationFreq uint32
	Now               uint32
}

// GroupForCore returns the group index currently responsible for core,
// given the rotation schedule.
func (g GroupRotationInfo) GroupForCore(core CoreIndex, numCores int) GroupIndex {
	if numCores == 0 || g.GroupRotationFreq == 0 {
		return GroupIndex(core)
	}
	rotations := (g.Now - g.SessionStartBlock) / g.GroupRotationFreq
	return GroupIndex((uint32(core) + rotations) % uint32(numCores))
}

const (
	coreStateVariantFree      uint = 0
	coreStateVariantScheduled uint = 1
	coreStateVariantOccupied  uint = 2
)

// CoreState is the state of one availability core as reported by the
// runtime.
type CoreState struct {
	Free      bool
	Scheduled *ScheduledCore
	Occupied  *OccupiedCore
}

// ScheduledCore is a core with a parachain scheduled onto it but not yet
// occupied by a candidate.
type ScheduledCore struct {
	ParaID ParaID
}

// OccupiedCore is a core currently holding a candidate pending
// availability.
type OccupiedCore struct {
	ParaID ParaID
}

// --- Prospective Parachains (out of scope, interface-only) -------------

// ProspectiveParachainsMessage is the sum of questions the coordinator
// asks the fragment-tree oracle.
type ProspectiveParachainsMessage struct {
	GetTreeMembership          *GetTreeMembershipRequest
	GetHypotheticalDepths      *GetHypotheticalDepthsRequest
	GetAncestryWindow          *GetAncestryWindowRequest
	IntroduceSecondedCandidate *IntroduceSecondedCandidateRequest
}

// IntroduceSecondedCandidateRequest is the "Second acceptance" query
// (§4.5/§6/§7): after the coordinator locally seconds a candidate, it
// asks Prospective Parachains to admit it into the relevant fragment
// trees before signing and distributing it. A false reply means the
// candidate must be expunged from the table and never distributed.
type IntroduceSecondedCandidateRequest struct {
	Para                    ParaID
	Candidate               CommittedCandidateReceipt
	PersistedValidationData PersistedValidationData
	Reply                   chan<- bool
}

// GetAncestryWindowRequest asks, for a newly activated leaf, the allowed
// ancestor relay parents (ordered from the leaf backward) and the paras
// whose fragment trees are tracked there — the Implicit View's input on
// first seeing a leaf (§4.3/§4.4).
type GetAncestryWindowRequest struct {
	Leaf  Hash
	Reply chan<- AncestryWindow
}

// AncestryWindow is the reply to GetAncestryWindowRequest.
type AncestryWindow struct {
	Ancestors []Hash
	Paras     []ParaID
}

// GetTreeMembershipRequest asks, for a locally-seconded candidate, at
// which depths it sits in para's fragment tree under each active leaf.
type GetTreeMembershipRequest struct {
	Para          ParaID
	CandidateHash CandidateHash
	Reply         chan<- []FragmentTreeMembership
}

// FragmentTreeMembership is one leaf's view of a candidate's depth.
type FragmentTreeMembership struct {
	Leaf   Hash
	Depths []uint32
}

// GetHypotheticalDepthsRequest asks at which depths a not-yet-seconded
// candidate would sit, used for the anti-double-second check (§4.5).
type GetHypotheticalDepthsRequest struct {
	Para          ParaID
	CandidateHash CandidateHash
	Leaf          Hash
	Reply         chan<- []uint32
}

// --- Candidate Validation (out of scope, interface-only) ---------------

// CandidateValidationMessage requests execution of a candidate against
// chain state resolved internally by the validation collaborator.
type CandidateValidationMessage struct {
	ValidateFromChainState *ValidateFromChainStateRequest
}

// ValidateFromChainStateRequest is §6's ValidateFromChainState(receipt,
// pov, timeout, reply).
type ValidateFromChainStateRequest struct {
	Candidate CandidateReceipt
	PoV       PoV
	Timeout   time.Duration
	Reply     chan<- OverseerFuncRes[ValidationResult]
}

const (
	validationResultVariantValid   uint = 1
	validationResultVariantInvalid uint = 2
)

// InvalidKind distinguishes why a candidate failed validation; the
// backing pipeline handles every kind alike (the candidate gets no Valid
// vote).
type InvalidKind int

const (
	InvalidKindOther InvalidKind = iota
	InvalidKindCommitmentsHashMismatch
)

// ValidationResult is the outcome of ValidateFromChainState.
type ValidationResult struct {
	Valid   *ValidationResultValid
	Invalid *ValidationResultInvalid
}

// ValidationResultValid carries the commitments and persisted validation
// data produced by a successful execution.
type ValidationResultValid struct {
	Commitments    CandidateCommitments
	ValidationData PersistedValidationData
}

// ValidationResultInvalid carries why validation failed.
type ValidationResultInvalid struct {
	Kind InvalidKind
}

// --- Availability Distribution (out of scope, interface-only) ----------

// AvailabilityDistributionMessage requests a PoV be fetched from a peer.
type AvailabilityDistributionMessage struct {
	FetchPoV *FetchPoVRequest
}

// FetchPoVRequest is §6's FetchPoV{relay_parent, from_validator,
// candidate_hash, pov_hash, reply}.
type FetchPoVRequest struct {
	RelayParent   Hash
	FromValidator ValidatorIndex
	CandidateHash CandidateHash
	PovHash       Hash
	Reply         chan<- OverseerFuncRes[PoV]
}

// --- Availability Store (out of scope, interface-only) ------------------

// AvailabilityStoreMessage requests erasure-coded availability data be
// persisted.
type AvailabilityStoreMessage struct {
	StoreAvailableData *StoreAvailableDataRequest
}

// StoreAvailableDataRequest is §6's StoreAvailableData{candidate_hash,
// n_validators, available_data, reply}.
type StoreAvailableDataRequest struct {
	CandidateHash  CandidateHash
	NumValidators  uint32
	AvailableData  AvailableData
	Reply          chan<- OverseerFuncRes[struct{}]
}

// --- Statement Distribution (out of scope, interface-only) --------------

// StatementDistributionMessage is sent, unbounded, to share a freshly
// signed local statement with the network.
type StatementDistributionMessage struct {
	Share *ShareStatement
}

// ShareStatement is §6's Share(relay_parent, signed). WireHash is the
// gossip-dedup hash of the statement as it would appear on the wire;
// Compressed carries a zstd-compressed copy of the wire-encoded
// statement instead of nil when its size crosses the large-payload
// threshold, mirroring the announce-then-fetch path real peers use for
// oversized Seconded statements.
type ShareStatement struct {
	RelayParent Hash
	Statement   SignedStatement
	WireHash    Hash
	Compressed  []byte
}

// --- Dispute Coordinator (out of scope, interface-only) ------------------

// DisputeCoordinatorMessage forwards a backing statement so the dispute
// coordinator can use it as potential evidence later.
type DisputeCoordinatorMessage struct {
	ImportStatements *ImportStatementsRequest
}

// ImportStatementsRequest is §6's ImportStatements{candidate_hash,
// candidate_receipt, session, statements, pending_confirmation=None}.
type ImportStatementsRequest struct {
	CandidateHash    CandidateHash
	CandidateReceipt CandidateReceipt
	Session          SessionIndex
	Statements       []SignedStatement
}

// --- Collator Protocol (out of scope, interface-only) --------------------

// CollatorProtocolMessage notifies the collator of the outcome of a
// seconding it requested.
type CollatorProtocolMessage struct {
	Seconded *CollatorSecondedNotification
	Invalid  *CollatorInvalidNotification
}

// CollatorSecondedNotification is §6's Seconded(relay_parent, signed).
type CollatorSecondedNotification struct {
	RelayParent Hash
	Statement   SignedStatementWithPVD
}

// CollatorInvalidNotification is §6's Invalid(relay_parent, receipt).
type CollatorInvalidNotification struct {
	RelayParent Hash
	Candidate   CandidateReceipt
}

// --- Backing (inbound) ----------------------------------------------------

// BackingMessage is the sum of requests the coordinator's Run loop
// handles, routed to it by the overseer like any other subsystem
// message (§6).
type BackingMessage struct {
	Second              *SecondRequest
	Statement           *StatementRequest
	GetBackedCandidates *GetBackedCandidatesRequest
}

// SecondRequest is §6's Second(relay_parent, candidate, pov).
type SecondRequest struct {
	RelayParent Hash
	Candidate   CandidateReceipt
	PoV         PoV
}

// StatementRequest is §6's Statement(relay_parent, signed).
type StatementRequest struct {
	RelayParent Hash
	Signed      SignedStatementWithPVD
}

// GetBackedCandidatesRequest is §6's GetBackedCandidates(relay_parent,
// requested, reply): for each hash in requested, in order, the reply
// carries the backed bundle if currently attested; non-attested hashes
// are omitted, not nulled.
type GetBackedCandidatesRequest struct {
	RelayParent Hash
	Requested   []CandidateHash
	Reply       chan<- []BackedCandidate
}

// --- Provisioner (out of scope, interface-only) ---------------------------

// ProvisionerMessage carries a ProvisionableData item over the unbounded
// channel the coordinator never awaits (§5, §9).
type ProvisionerMessage struct {
	ProvisionableData *ProvisionableDataEnvelope
}

// ProvisionableDataEnvelope is §6's ProvisionableData(relay_parent, ..).
type ProvisionableDataEnvelope struct {
	RelayParent Hash
	Data        ProvisionableData
}

// ProvisionableData is either a freshly backed candidate or a drained
// misbehavior report.
type ProvisionableData struct {
	BackedCandidate   *BackedCandidate
	MisbehaviorReport *MisbehaviorReport
}
