// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"testing"
	"time"

	"github.com/parastate/validator-node/dot/parachain/overseer"
	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/parastate/validator-node/lib/crypto/sr25519"
	"github.com/parastate/validator-node/lib/keystore"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeCoordinatorSender answers every out-of-scope collaborator message
// the coordinator issues and records the ones a test wants to assert on.
type fakeCoordinatorSender struct {
	validationResult parachaintypes.ValidationResult
	validationErr    error

	statementShares   []parachaintypes.ShareStatement
	collatorSeconded  []parachaintypes.CollatorSecondedNotification
	collatorInvalid   []parachaintypes.CollatorInvalidNotification
	provisionableData []parachaintypes.ProvisionableData
	disputeStatements []parachaintypes.ImportStatementsRequest

	// rejectSecondAcceptance makes every IntroduceSecondedCandidate query
	// answer false, exercising the rejection-expunge path.
	rejectSecondAcceptance bool
}

func (f *fakeCoordinatorSender) SendMessage(msg any) error {
	switch req := msg.(type) {
	case parachaintypes.CandidateValidationMessage:
		req.ValidateFromChainState.Reply <- parachaintypes.OverseerFuncRes[parachaintypes.ValidationResult]{
			Data: f.validationResult, Err: f.validationErr,
		}
	case parachaintypes.AvailabilityStoreMessage:
		req.StoreAvailableData.Reply <- parachaintypes.OverseerFuncRes[struct{}]{}
	case parachaintypes.AvailabilityDistributionMessage:
		req.FetchPoV.Reply <- parachaintypes.OverseerFuncRes[parachaintypes.PoV]{}
	case parachaintypes.StatementDistributionMessage:
		f.statementShares = append(f.statementShares, *req.Share)
	case parachaintypes.CollatorProtocolMessage:
		if req.Seconded != nil {
			f.collatorSeconded = append(f.collatorSeconded, *req.Seconded)
		}
		if req.Invalid != nil {
			f.collatorInvalid = append(f.collatorInvalid, *req.Invalid)
		}
	case parachaintypes.ProvisionerMessage:
		f.provisionableData = append(f.provisionableData, req.ProvisionableData.Data)
	case parachaintypes.DisputeCoordinatorMessage:
		if req.ImportStatements != nil {
			f.disputeStatements = append(f.disputeStatements, *req.ImportStatements)
		}
	case parachaintypes.ProspectiveParachainsMessage:
		if req.GetTreeMembership != nil {
			req.GetTreeMembership.Reply <- nil
		}
		if req.GetHypotheticalDepths != nil {
			req.GetHypotheticalDepths.Reply <- nil
		}
		if req.IntroduceSecondedCandidate != nil {
			req.IntroduceSecondedCandidate.Reply <- !f.rejectSecondAcceptance
		}
	}
	return nil
}

func newTestCoordinator(sender overseer.Sender, ks keystore.Keystore) *Coordinator {
	return &Coordinator{
		keystore:                ks,
		erasureCoder:            NewBlake2bErasureCoder(),
		sender:                  sender,
		resultCh:                make(chan BackgroundValidationResult, backgroundResultChannelCapacity),
		leafCh:                  make(chan overseer.ActiveLeavesUpdate, 4),
		stopCh:                  make(chan struct{}),
		perLeaf:                 make(map[parachaintypes.Hash]*ActiveLeafState),
		perRelayParent:          make(map[parachaintypes.Hash]*PerRelayParentState),
		perCandidate:            make(map[parachaintypes.CandidateHash]*PerCandidateState),
		localValidatorBySession: make(map[parachaintypes.SessionIndex]*LocalValidator),
	}
}

// TestHandleSecondSecondsSignsAndBacks exercises the S1/S2 happy path:
// a local Second request that validates, gets signed, self-imports past
// a one-vote threshold, and is reported backed.
func TestHandleSecondSecondsSignsAndBacks(t *testing.T) {
	kp, err := sr25519.GenerateKeypair()
	require.NoError(t, err)
	ks := keystore.NewBasic()
	ks.Insert(keystore.NewSr25519KeyPair(kp))

	relayParent := parachaintypes.Hash{1}
	para := parachaintypes.ParaID(7)
	ctx := &TableContext{
		Validators: []parachaintypes.ValidatorID{parachaintypes.ValidatorID(kp.Public())},
		Groups:     map[parachaintypes.GroupIndex][]parachaintypes.ValidatorIndex{0: {0}},
		Validator:  &LocalValidator{Index: 0},
	}
	rpState := NewPerRelayParentState(relayParent, 1, &para, NewTable(), ctx)

	pov := parachaintypes.PoV{BlockData: []byte("block")}
	commitments := parachaintypes.CandidateCommitments{HeadData: []byte("head")}
	validationData := parachaintypes.PersistedValidationData{ParentHead: []byte("parent")}
	coder := NewBlake2bErasureCoder()
	root, err := coder.ChunksAndRoot(parachaintypes.AvailableData{PoV: pov, ValidationData: validationData}, 1)
	require.NoError(t, err)

	candidate := parachaintypes.CandidateReceipt{
		Descriptor: parachaintypes.CandidateDescriptor{ParaID: para, RelayParent: relayParent, ErasureRoot: root},
	}

	sender := &fakeCoordinatorSender{
		validationResult: parachaintypes.ValidationResult{
			Valid: &parachaintypes.ValidationResultValid{Commitments: commitments, ValidationData: validationData},
		},
	}
	c := newTestCoordinator(sender, ks)
	c.perRelayParent[relayParent] = rpState

	c.handleSecond(parachaintypes.SecondRequest{RelayParent: relayParent, Candidate: candidate, PoV: pov})

	var res BackgroundValidationResult
	select {
	case res = <-c.resultCh:
	case <-time.After(time.Second):
		t.Fatal("background validation did not deliver a result")
	}
	require.NotNil(t, res.Command.SecondOk)

	c.handleBackgroundResult(res)

	require.Len(t, sender.statementShares, 1)
	_, isSeconded := sender.statementShares[0].Statement.Statement.IsSeconded()
	require.True(t, isSeconded)

	require.Len(t, sender.collatorSeconded, 1)
	require.Len(t, sender.provisionableData, 1)
	require.NotNil(t, sender.provisionableData[0].BackedCandidate)

	candidateHash, err := res.Command.SecondOk.Candidate.Hash()
	require.NoError(t, err)
	require.True(t, rpState.hasIssuedSeconded(candidateHash))
	require.Contains(t, c.perCandidate, candidateHash)
	require.True(t, c.perCandidate[candidateHash].SecondedLocally)
}

// TestHandleSecondExpungesOnProspectiveParachainsRejection covers the
// rejection-expunge path: a Second request that validates fine but is
// rejected by the Second acceptance query must never be signed, backed,
// or distributed, and must be removed from the table.
func TestHandleSecondExpungesOnProspectiveParachainsRejection(t *testing.T) {
	kp, err := sr25519.GenerateKeypair()
	require.NoError(t, err)
	ks := keystore.NewBasic()
	ks.Insert(keystore.NewSr25519KeyPair(kp))

	relayParent := parachaintypes.Hash{1}
	para := parachaintypes.ParaID(7)
	ctx := &TableContext{
		Validators: []parachaintypes.ValidatorID{parachaintypes.ValidatorID(kp.Public())},
		Groups:     map[parachaintypes.GroupIndex][]parachaintypes.ValidatorIndex{0: {0}},
		Validator:  &LocalValidator{Index: 0},
	}
	rpState := NewPerRelayParentState(relayParent, 1, &para, NewTable(), ctx)

	pov := parachaintypes.PoV{BlockData: []byte("block")}
	commitments := parachaintypes.CandidateCommitments{HeadData: []byte("head")}
	validationData := parachaintypes.PersistedValidationData{ParentHead: []byte("parent")}
	coder := NewBlake2bErasureCoder()
	root, err := coder.ChunksAndRoot(parachaintypes.AvailableData{PoV: pov, ValidationData: validationData}, 1)
	require.NoError(t, err)

	candidate := parachaintypes.CandidateReceipt{
		Descriptor: parachaintypes.CandidateDescriptor{ParaID: para, RelayParent: relayParent, ErasureRoot: root},
	}

	sender := &fakeCoordinatorSender{
		validationResult: parachaintypes.ValidationResult{
			Valid: &parachaintypes.ValidationResultValid{Commitments: commitments, ValidationData: validationData},
		},
		rejectSecondAcceptance: true,
	}
	c := newTestCoordinator(sender, ks)
	c.perRelayParent[relayParent] = rpState
	c.perLeaf[relayParent] = NewActiveLeafState(ProspectiveParachainsMode{Enabled: true})

	c.handleSecond(parachaintypes.SecondRequest{RelayParent: relayParent, Candidate: candidate, PoV: pov})

	var res BackgroundValidationResult
	select {
	case res = <-c.resultCh:
	case <-time.After(time.Second):
		t.Fatal("background validation did not deliver a result")
	}
	require.NotNil(t, res.Command.SecondOk)

	c.handleBackgroundResult(res)

	require.Empty(t, sender.statementShares)
	require.Empty(t, sender.collatorSeconded)
	require.Empty(t, sender.disputeStatements)

	candidateHash, err := res.Command.SecondOk.Candidate.Hash()
	require.NoError(t, err)
	_, err = rpState.Table.getCandidate(candidateHash)
	require.Error(t, err)
}

// TestHandleSecondRejectsWrongAssignment covers §4.5's assignment guard:
// a Second request for a para this validator is not assigned to must
// never spawn validation.
func TestHandleSecondRejectsWrongAssignment(t *testing.T) {
	relayParent := parachaintypes.Hash{1}
	assigned := parachaintypes.ParaID(7)
	ctx := &TableContext{Groups: map[parachaintypes.GroupIndex][]parachaintypes.ValidatorIndex{0: {0}}}
	rpState := NewPerRelayParentState(relayParent, 1, &assigned, NewTable(), ctx)

	sender := &fakeCoordinatorSender{}
	c := newTestCoordinator(sender, keystore.NewBasic())
	c.perRelayParent[relayParent] = rpState

	other := parachaintypes.ParaID(99)
	c.handleSecond(parachaintypes.SecondRequest{
		RelayParent: relayParent,
		Candidate:   parachaintypes.CandidateReceipt{Descriptor: parachaintypes.CandidateDescriptor{ParaID: other}},
	})

	select {
	case res := <-c.resultCh:
		t.Fatalf("unexpected background validation result for unassigned para: %+v", res)
	default:
	}
}

// TestHandleStatementForwardsDoubleSecondedMisbehavior covers the
// misbehavior-reporting path: two different Seconded votes from the same
// validator for the same relay parent must drain into a
// ProvisionableData.MisbehaviorReport.
func TestHandleStatementForwardsDoubleSecondedMisbehavior(t *testing.T) {
	relayParent := parachaintypes.Hash{2}
	ctx := &TableContext{Groups: map[parachaintypes.GroupIndex][]parachaintypes.ValidatorIndex{0: {0, 1}}}
	rpState := NewPerRelayParentState(relayParent, 1, nil, NewTable(), ctx)

	receipt := parachaintypes.CommittedCandidateReceipt{Descriptor: parachaintypes.CandidateDescriptor{ParaID: 1}}

	sender := &fakeCoordinatorSender{}
	c := newTestCoordinator(sender, keystore.NewBasic())
	c.perRelayParent[relayParent] = rpState

	first := signedSeconded(t, 0, receipt, 1)
	second := signedSeconded(t, 0, receipt, 2)

	c.handleStatement(parachaintypes.StatementRequest{RelayParent: relayParent, Signed: first})
	c.handleStatement(parachaintypes.StatementRequest{RelayParent: relayParent, Signed: second})

	require.Len(t, sender.provisionableData, 1)
	require.NotNil(t, sender.provisionableData[0].MisbehaviorReport)
	require.NotNil(t, sender.provisionableData[0].MisbehaviorReport.Report.DoubleSeconded)
}

func signedSeconded(
	t *testing.T,
	validator parachaintypes.ValidatorIndex,
	receipt parachaintypes.CommittedCandidateReceipt,
	sig byte,
) parachaintypes.SignedStatementWithPVD {
	t.Helper()
	var signature parachaintypes.ValidatorSignature
	signature[0] = sig
	return parachaintypes.SignedStatementWithPVD{
		SignedStatement: parachaintypes.SignedStatement{
			Statement:      parachaintypes.NewStatementSeconded(receipt),
			ValidatorIndex: validator,
			Signature:      signature,
		},
	}
}

// TestDeactivateLeafPrunesRelayParentsAndCandidates covers S6: leaf
// deactivation frees relay parents the Implicit View no longer allows,
// and per_candidate entries anchored to them are pruned on the next
// refresh.
func TestDeactivateLeafPrunesRelayParentsAndCandidates(t *testing.T) {
	ctrl := gomock.NewController(t)
	view := NewMockImplicitView(ctrl)

	leaf := parachaintypes.Hash{9}
	freed := parachaintypes.Hash{10}
	view.EXPECT().deactivateLeaf(leaf).Return([]parachaintypes.Hash{freed})
	view.EXPECT().allAllowedRelayParents().Return(nil)

	sender := &fakeCoordinatorSender{}
	c := newTestCoordinator(sender, keystore.NewBasic())
	c.implicitView = view
	c.perLeaf[leaf] = NewActiveLeafState(ProspectiveParachainsMode{Enabled: true})

	rpState := NewPerRelayParentState(freed, 1, nil, NewTable(), &TableContext{})
	c.perRelayParent[freed] = rpState
	orphanCandidate := parachaintypes.CandidateHash{Value: parachaintypes.Hash{11}}
	c.perCandidate[orphanCandidate] = &PerCandidateState{RelayParent: freed}

	c.handleActiveLeavesUpdate(overseer.ActiveLeavesUpdate{Deactivated: []parachaintypes.Hash{leaf}})

	require.NotContains(t, c.perLeaf, leaf)
	require.NotContains(t, c.perRelayParent, freed)
	require.NotContains(t, c.perCandidate, orphanCandidate)
}

// TestHandleGetBackedCandidatesOmitsUnattested covers §6: hashes with no
// current attestation are omitted from the reply, not nulled.
func TestHandleGetBackedCandidatesOmitsUnattested(t *testing.T) {
	relayParent := parachaintypes.Hash{3}
	ctx := &TableContext{Groups: map[parachaintypes.GroupIndex][]parachaintypes.ValidatorIndex{0: {0}}}
	tbl := NewTable()
	rpState := NewPerRelayParentState(relayParent, 1, nil, tbl, ctx)

	receipt := parachaintypes.CommittedCandidateReceipt{Descriptor: parachaintypes.CandidateDescriptor{ParaID: 1}}
	hash, err := receipt.Hash()
	require.NoError(t, err)
	_, err = tbl.importStatement(ctx, signedSeconded(t, 0, receipt, 1))
	require.NoError(t, err)

	sender := &fakeCoordinatorSender{}
	c := newTestCoordinator(sender, keystore.NewBasic())
	c.perRelayParent[relayParent] = rpState

	unknown := parachaintypes.CandidateHash{Value: parachaintypes.Hash{42}}
	reply := make(chan []parachaintypes.BackedCandidate, 1)
	c.handleGetBackedCandidates(parachaintypes.GetBackedCandidatesRequest{
		RelayParent: relayParent,
		Requested:   []parachaintypes.CandidateHash{hash, unknown},
		Reply:       reply,
	})

	got := <-reply
	require.Len(t, got, 1)
	require.Equal(t, receipt, got[0].Candidate)
}
