// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	disputetypes "github.com/parastate/validator-node/dot/parachain/dispute/types"
	networkbridge "github.com/parastate/validator-node/dot/parachain/network-bridge"
	"github.com/parastate/validator-node/dot/parachain/overseer"
	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/parastate/validator-node/internal/log"
	"github.com/parastate/validator-node/internal/metrics"
	"github.com/parastate/validator-node/lib/crypto/sr25519"
	"github.com/parastate/validator-node/lib/keystore"
)

var coordinatorLogger = log.NewFromGlobal(log.AddContext("pkg", "parachain-backing"))

// backgroundResultChannelCapacity is the bound §5 fixes on the channel
// background validation tasks deliver their results on; a full channel
// only backpressures a task at its final send, which has nothing left
// to do anyway.
const backgroundResultChannelCapacity = 16

// largeStatementWireThreshold is the wire-encoded statement size past
// which the Share path compresses the payload instead of relying on
// peers to gossip it inline, matching a runtime-upgrade-carrying
// Seconded statement's typical size.
const largeStatementWireThreshold = 32 * 1024

// Coordinator is the Candidate Backing subsystem: a single-threaded
// event loop owning every per-leaf, per-relay-parent, and per-candidate
// index, driven by overseer signals, peer/local backing messages, and
// the results background validation tasks deliver.
type Coordinator struct {
	keystore     keystore.Keystore
	erasureCoder ErasureCoder
	implicitView ImplicitView
	metrics      *metrics.Metrics

	sender   overseer.Sender
	resultCh chan BackgroundValidationResult
	leafCh   chan overseer.ActiveLeavesUpdate
	stopCh   chan struct{}

	perLeaf        map[parachaintypes.Hash]*ActiveLeafState
	perRelayParent map[parachaintypes.Hash]*PerRelayParentState
	perCandidate   map[parachaintypes.CandidateHash]*PerCandidateState

	localValidatorBySession map[parachaintypes.SessionIndex]*LocalValidator
}

// NewCoordinator builds an idle Coordinator. fetcher backs the Implicit
// View's ancestor discovery; erasureCoder defaults to
// NewBlake2bErasureCoder when nil.
func NewCoordinator(ks keystore.Keystore, fetcher ancestryFetcher, erasureCoder ErasureCoder) *Coordinator {
	if erasureCoder == nil {
		erasureCoder = NewBlake2bErasureCoder()
	}
	return &Coordinator{
		keystore:                ks,
		erasureCoder:            erasureCoder,
		implicitView:            NewImplicitView(fetcher),
		resultCh:                make(chan BackgroundValidationResult, backgroundResultChannelCapacity),
		leafCh:                  make(chan overseer.ActiveLeavesUpdate, 64),
		stopCh:                  make(chan struct{}),
		perLeaf:                 make(map[parachaintypes.Hash]*ActiveLeafState),
		perRelayParent:          make(map[parachaintypes.Hash]*PerRelayParentState),
		perCandidate:            make(map[parachaintypes.CandidateHash]*PerCandidateState),
		localValidatorBySession: make(map[parachaintypes.SessionIndex]*LocalValidator),
	}
}

// SetMetrics wires m as the destination for the coordinator's
// instrumentation. A Coordinator with no metrics set reports to a nil
// *metrics.Metrics, which is a no-op, so this is optional.
func (c *Coordinator) SetMetrics(m *metrics.Metrics) { c.metrics = m }

// Name implements overseer.Subsystem.
func (c *Coordinator) Name() string { return "candidate-backing" }

// Stop implements overseer.Subsystem.
func (c *Coordinator) Stop() { close(c.stopCh) }

// ProcessActiveLeavesUpdate implements overseer.Subsystem. The overseer
// calls this directly from its own goroutine (§ overseer.go), so it only
// hands the update to the loop's own channel rather than mutating
// coordinator state here: every mutation happens on the Run goroutine,
// preserving the lock-free single-threaded model §5 requires.
func (c *Coordinator) ProcessActiveLeavesUpdate(update overseer.ActiveLeavesUpdate) error {
	select {
	case c.leafCh <- update:
	case <-c.stopCh:
	}
	return nil
}

// Run implements overseer.Subsystem: a fair select over active-leaves
// updates, background validation results, and routed messages (§5).
func (c *Coordinator) Run(ctx *overseer.Context) error {
	c.sender = ctx.Sender
	for {
		select {
		case update := <-c.leafCh:
			c.handleActiveLeavesUpdate(update)
		case res := <-c.resultCh:
			c.handleBackgroundResult(res)
		case msg, ok := <-ctx.Receiver:
			if !ok {
				return nil
			}
			switch m := msg.(type) {
			case parachaintypes.BackingMessage:
				c.handleBackingMessage(m)
			case *overseer.ActivatedLeaf:
				// The real update, including Deactivated hashes, arrives
				// via ProcessActiveLeavesUpdate; this broadcast copy
				// carries nothing this loop needs.
			default:
				coordinatorLogger.Errorf("%s: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
			}
		case <-c.stopCh:
			return nil
		}
	}
}

// --- Active Leaves Update Handler (§4.4) -----------------------------

func (c *Coordinator) handleActiveLeavesUpdate(update overseer.ActiveLeavesUpdate) {
	if update.Activated != nil {
		c.activateLeaf(update.Activated.Hash)
	}
	for _, leaf := range update.Deactivated {
		c.deactivateLeaf(leaf)
	}
	c.refreshRelayParents()
}

func (c *Coordinator) activateLeaf(leaf parachaintypes.Hash) {
	mode, err := c.probeMode(leaf)
	if err != nil {
		coordinatorLogger.Warnf("probe mode for leaf %s: %s", leaf, err)
		return
	}

	if mode.Enabled {
		if _, err := c.implicitView.activeLeaf(leaf); err != nil {
			coordinatorLogger.Warnf("activate leaf %s in implicit view: %s", leaf, err)
			return
		}
	}

	c.perLeaf[leaf] = NewActiveLeafState(mode)
	if mode.Enabled {
		c.populateSecondedAtDepth(leaf)
	}
}

func (c *Coordinator) deactivateLeaf(leaf parachaintypes.Hash) {
	state, ok := c.perLeaf[leaf]
	if !ok {
		return
	}
	delete(c.perLeaf, leaf)
	if state.Mode.Enabled {
		c.implicitView.deactivateLeaf(leaf)
	}
}

func (c *Coordinator) probeMode(leaf parachaintypes.Hash) (ProspectiveParachainsMode, error) {
	enabled, err := queryAsyncBackingEnabled(c.sender, leaf)
	if err != nil {
		return ProspectiveParachainsMode{}, err
	}
	return ProspectiveParachainsMode{Enabled: enabled}, nil
}

// populateSecondedAtDepth builds leaf's seconded_at_depth from the
// fragment-tree membership of every locally-seconded candidate (§4.4
// step 6).
func (c *Coordinator) populateSecondedAtDepth(leaf parachaintypes.Hash) {
	state := c.perLeaf[leaf]
	for candidateHash, pc := range c.perCandidate {
		if !pc.SecondedLocally {
			continue
		}
		memberships, err := c.queryTreeMembership(pc.ParaID, candidateHash)
		if err != nil {
			coordinatorLogger.Debugf("tree membership for %s: %s", candidateHash.Value, err)
			continue
		}
		for _, m := range memberships {
			if m.Leaf != leaf {
				continue
			}
			for _, depth := range m.Depths {
				state.SecondedAtDepth[depth] = candidateHash
			}
		}
	}
}

// allowedRelayParents is the union of every Disabled-mode leaf's own
// hash with every relay parent the Implicit View currently allows for
// Enabled-mode leaves (§4.4 step 4).
func (c *Coordinator) allowedRelayParents() map[parachaintypes.Hash]struct{} {
	allowed := make(map[parachaintypes.Hash]struct{})
	for leaf, state := range c.perLeaf {
		if !state.Mode.Enabled {
			allowed[leaf] = struct{}{}
		}
	}
	for _, rp := range c.implicitView.allAllowedRelayParents() {
		allowed[rp] = struct{}{}
	}
	return allowed
}

// refreshRelayParents retains per_relay_parent to exactly the allowed
// set, constructs fresh entries, and prunes per_candidate to match
// (§4.4 steps 4-5, 7).
func (c *Coordinator) refreshRelayParents() {
	allowed := c.allowedRelayParents()

	for rp := range allowed {
		if _, ok := c.perRelayParent[rp]; !ok {
			c.constructRelayParent(rp)
		}
	}
	for rp := range c.perRelayParent {
		if _, ok := allowed[rp]; !ok {
			delete(c.perRelayParent, rp)
		}
	}
	for ch, pc := range c.perCandidate {
		if _, ok := c.perRelayParent[pc.RelayParent]; !ok {
			delete(c.perCandidate, ch)
		}
	}
}

func (c *Coordinator) constructRelayParent(rp parachaintypes.Hash) {
	lv, err := c.localValidatorForRelayParent(rp)
	if err != nil {
		coordinatorLogger.Warnf("resolve local validator for %s: %s", rp, err)
		return
	}
	state, err := constructPerRelayParentState(c.sender, rp, lv)
	if err != nil {
		coordinatorLogger.Warnf("construct per-relay-parent state for %s: %s", rp, err)
		return
	}
	c.perRelayParent[rp] = state
}

// localValidatorForRelayParent resolves this node's validator index for
// the session rp belongs to, caching by session since the answer cannot
// change within a session.
func (c *Coordinator) localValidatorForRelayParent(rp parachaintypes.Hash) (*LocalValidator, error) {
	session, err := querySessionIndexForChild(c.sender, rp)
	if err != nil {
		return nil, err
	}
	if lv, ok := c.localValidatorBySession[session]; ok {
		return lv, nil
	}

	validators, err := queryValidators(c.sender, rp)
	if err != nil {
		return nil, err
	}
	var lv *LocalValidator
	for i, v := range validators {
		if _, ok := c.keystore.KeyPair(sr25519.PublicKey(v)); ok {
			lv = &LocalValidator{Index: parachaintypes.ValidatorIndex(i)}
			break
		}
	}
	c.localValidatorBySession[session] = lv
	return lv, nil
}

// --- Prospective Parachains query helpers -----------------------------

func (c *Coordinator) queryTreeMembership(
	para parachaintypes.ParaID,
	candidateHash parachaintypes.CandidateHash,
) ([]parachaintypes.FragmentTreeMembership, error) {
	reply := make(chan []parachaintypes.FragmentTreeMembership, 1)
	req := parachaintypes.ProspectiveParachainsMessage{
		GetTreeMembership: &parachaintypes.GetTreeMembershipRequest{
			Para: para, CandidateHash: candidateHash, Reply: reply,
		},
	}
	if err := c.sender.SendMessage(req); err != nil {
		return nil, err
	}
	return <-reply, nil
}

// secondAcceptedByProspectiveParachains issues the "Second acceptance"
// query (§4.5/§6) for a candidate we are about to sign and distribute as
// Seconded. Disabled (synchronous) mode tracks no fragment trees, so
// there is nothing for Prospective Parachains to accept or reject.
func (c *Coordinator) secondAcceptedByProspectiveParachains(
	candidate parachaintypes.CommittedCandidateReceipt,
	pvd parachaintypes.PersistedValidationData,
) (bool, error) {
	anyEnabled := false
	for _, state := range c.perLeaf {
		if state.Mode.Enabled {
			anyEnabled = true
			break
		}
	}
	if !anyEnabled {
		return true, nil
	}

	reply := make(chan bool, 1)
	req := parachaintypes.ProspectiveParachainsMessage{
		IntroduceSecondedCandidate: &parachaintypes.IntroduceSecondedCandidateRequest{
			Para:                    candidate.Descriptor.ParaID,
			Candidate:               candidate,
			PersistedValidationData: pvd,
			Reply:                   reply,
		},
	}
	if err := c.sender.SendMessage(req); err != nil {
		return false, err
	}
	return <-reply, nil
}

func (c *Coordinator) queryHypotheticalDepths(
	para parachaintypes.ParaID,
	candidateHash parachaintypes.CandidateHash,
	leaf parachaintypes.Hash,
) ([]uint32, error) {
	reply := make(chan []uint32, 1)
	req := parachaintypes.ProspectiveParachainsMessage{
		GetHypotheticalDepths: &parachaintypes.GetHypotheticalDepthsRequest{
			Para: para, CandidateHash: candidateHash, Leaf: leaf, Reply: reply,
		},
	}
	if err := c.sender.SendMessage(req); err != nil {
		return nil, err
	}
	return <-reply, nil
}

// --- Backing message dispatch -----------------------------------------

func (c *Coordinator) handleBackingMessage(m parachaintypes.BackingMessage) {
	switch {
	case m.Second != nil:
		c.handleSecond(*m.Second)
	case m.Statement != nil:
		c.handleStatement(*m.Statement)
	case m.GetBackedCandidates != nil:
		c.handleGetBackedCandidates(*m.GetBackedCandidates)
	}
}

func (c *Coordinator) handleGetBackedCandidates(req parachaintypes.GetBackedCandidatesRequest) {
	rpState, ok := c.perRelayParent[req.RelayParent]
	if !ok {
		req.Reply <- nil
		return
	}
	var out []parachaintypes.BackedCandidate
	for _, ch := range req.Requested {
		attested, err := rpState.Table.attestedCandidate(ch, rpState.Context, 0)
		if err != nil || attested == nil {
			continue
		}
		bc, err := attested.toBackedCandidate()
		if err != nil {
			coordinatorLogger.Warnf("build backed candidate %s: %s", ch.Value, err)
			continue
		}
		out = append(out, bc)
	}
	req.Reply <- out
}

// --- Seconding Request Handler (§4.5) ---------------------------------

func (c *Coordinator) handleSecond(req parachaintypes.SecondRequest) {
	rpState, ok := c.perRelayParent[req.RelayParent]
	if !ok {
		return
	}
	if rpState.Assignment == nil || *rpState.Assignment != req.Candidate.Descriptor.ParaID {
		return
	}

	candidateHash, err := req.Candidate.Hash()
	if err != nil {
		coordinatorLogger.Warnf("hash candidate for second: %s", err)
		return
	}

	if rpState.hasIssuedAny(candidateHash) {
		return
	}
	if _, awaiting := rpState.AwaitingValidation[candidateHash]; awaiting {
		return
	}
	if !c.antiDoubleSecondOK(req.RelayParent, req.Candidate.Descriptor.ParaID, candidateHash) {
		return
	}

	rpState.AwaitingValidation[candidateHash] = struct{}{}
	numValidators := uint32(len(rpState.Context.Validators))
	candidate := req.Candidate
	descriptor := candidate.Descriptor

	makeCommand := func(
		ok bool,
		commitments parachaintypes.CandidateCommitments,
		validationData parachaintypes.PersistedValidationData,
		pov parachaintypes.PoV,
	) ValidatedCandidateCommand {
		if !ok {
			cand := candidate
			return ValidatedCandidateCommand{SecondErr: &cand}
		}
		return ValidatedCandidateCommand{SecondOk: &SecondOk{
			Candidate:      parachaintypes.CommittedCandidateReceipt{Descriptor: descriptor, Commitments: commitments},
			PoV:            pov,
			ValidationData: validationData,
		}}
	}

	go runBackgroundValidation(c.sender, c.resultCh, req.RelayParent, candidate,
		parachaintypes.NewPoVDataReady(req.PoV), 0, numValidators, c.erasureCoder, makeCommand)
}

// antiDoubleSecondOK implements §4.5's unified Disabled/Enabled check:
// in Disabled mode the only depth is 0 and the only relay parent the
// leaf itself; in Enabled mode every active leaf is asked for this
// candidate's hypothetical depths.
func (c *Coordinator) antiDoubleSecondOK(
	relayParent parachaintypes.Hash,
	para parachaintypes.ParaID,
	candidateHash parachaintypes.CandidateHash,
) bool {
	for leaf, state := range c.perLeaf {
		if !state.Mode.Enabled {
			if leaf != relayParent {
				continue
			}
			if _, already := state.SecondedAtDepth[0]; already {
				return false
			}
			continue
		}

		depths, err := c.queryHypotheticalDepths(para, candidateHash, leaf)
		if err != nil {
			coordinatorLogger.Debugf("hypothetical depths for %s at leaf %s: %s", candidateHash.Value, leaf, err)
			continue
		}
		for _, d := range depths {
			if _, already := state.SecondedAtDepth[d]; already {
				return false
			}
		}
	}
	return true
}

// --- Statement Handler (§4.6) ------------------------------------------

func (c *Coordinator) handleStatement(req parachaintypes.StatementRequest) {
	rpState, ok := c.perRelayParent[req.RelayParent]
	if !ok {
		return
	}

	c.dispatchToDisputeCoordinator(rpState, req.Signed.SignedStatement)

	summary, err := rpState.Table.importStatement(rpState.Context, req.Signed)
	if err != nil {
		coordinatorLogger.Warnf("import statement: %s", err)
		return
	}
	c.forwardMisbehaviors(req.RelayParent, rpState)
	if summary == nil {
		return
	}

	c.maybeSpawnAttest(req.RelayParent, rpState, summary, req.Signed)
	c.maybeEmitBacked(req.RelayParent, rpState, summary.Candidate)
}

func (c *Coordinator) maybeSpawnAttest(
	relayParent parachaintypes.Hash,
	rpState *PerRelayParentState,
	summary *Summary,
	signed parachaintypes.SignedStatementWithPVD,
) {
	if rpState.Context.Validator == nil {
		return
	}
	ownGroup, inGroup := rpState.Context.groupForValidator(rpState.Context.Validator.Index)
	if !inGroup || ownGroup != summary.GroupID {
		return
	}
	if rpState.hasIssuedAny(summary.Candidate) {
		return
	}

	stmt := signed.SignedStatement.Statement
	sender := signed.SignedStatement.ValidatorIndex

	if _, isSeconded := stmt.IsSeconded(); isSeconded {
		if _, exists := rpState.Fallbacks[summary.Candidate]; exists {
			return
		}
		receipt, err := rpState.Table.getCandidate(summary.Candidate)
		if err != nil {
			coordinatorLogger.Warnf("get candidate %s: %s", summary.Candidate.Value, err)
			return
		}
		plain, err := receipt.ToPlain()
		if err != nil {
			coordinatorLogger.Warnf("flatten candidate %s: %s", summary.Candidate.Value, err)
			return
		}
		fallback := &parachaintypes.AttestingData{
			Candidate:     plain,
			PovHash:       receipt.Descriptor.PovHash,
			FromValidator: sender,
		}
		rpState.Fallbacks[summary.Candidate] = fallback
		c.spawnAttest(relayParent, rpState, summary.Candidate, fallback)
		return
	}

	if _, isValid := stmt.IsValid(); isValid {
		fallback, ok := rpState.Fallbacks[summary.Candidate]
		if !ok {
			return
		}
		if _, awaiting := rpState.AwaitingValidation[summary.Candidate]; awaiting {
			fallback.Backing.PushBack(sender)
			return
		}
		fallback.FromValidator = sender
		c.spawnAttest(relayParent, rpState, summary.Candidate, fallback)
	}
}

func (c *Coordinator) spawnAttest(
	relayParent parachaintypes.Hash,
	rpState *PerRelayParentState,
	candidateHash parachaintypes.CandidateHash,
	fallback *parachaintypes.AttestingData,
) {
	rpState.AwaitingValidation[candidateHash] = struct{}{}
	numValidators := uint32(len(rpState.Context.Validators))
	candidate := fallback.Candidate

	makeCommand := func(
		ok bool,
		_ parachaintypes.CandidateCommitments,
		_ parachaintypes.PersistedValidationData,
		_ parachaintypes.PoV,
	) ValidatedCandidateCommand {
		if !ok {
			cand := candidate
			return ValidatedCandidateCommand{AttestErr: &cand}
		}
		ch := candidateHash
		return ValidatedCandidateCommand{AttestOk: &ch}
	}

	povData := parachaintypes.NewPoVDataFetchFromValidator(parachaintypes.FetchFromValidator{
		From: fallback.FromValidator, CandidateHash: candidateHash, PovHash: fallback.PovHash,
	})
	go runBackgroundValidation(c.sender, c.resultCh, relayParent, candidate, povData,
		fallback.FromValidator, numValidators, c.erasureCoder, makeCommand)
}

func (c *Coordinator) maybeEmitBacked(
	relayParent parachaintypes.Hash,
	rpState *PerRelayParentState,
	candidateHash parachaintypes.CandidateHash,
) {
	if _, already := rpState.Backed[candidateHash]; already {
		return
	}
	attested, err := rpState.Table.attestedCandidate(candidateHash, rpState.Context, 0)
	if err != nil || attested == nil {
		return
	}
	bc, err := attested.toBackedCandidate()
	if err != nil {
		coordinatorLogger.Warnf("build backed candidate %s: %s", candidateHash.Value, err)
		return
	}
	rpState.Backed[candidateHash] = struct{}{}
	c.metrics.OnCandidateBacked()
	c.sendProvisionableData(relayParent, parachaintypes.ProvisionableData{BackedCandidate: &bc})
}

func (c *Coordinator) forwardMisbehaviors(relayParent parachaintypes.Hash, rpState *PerRelayParentState) {
	for _, report := range rpState.Table.drainMisbehaviors() {
		report.RelayParent = relayParent
		r := report
		c.sendProvisionableData(relayParent, parachaintypes.ProvisionableData{MisbehaviorReport: &r})
	}
}

func (c *Coordinator) sendProvisionableData(relayParent parachaintypes.Hash, data parachaintypes.ProvisionableData) {
	msg := parachaintypes.ProvisionerMessage{
		ProvisionableData: &parachaintypes.ProvisionableDataEnvelope{RelayParent: relayParent, Data: data},
	}
	if err := c.sender.SendMessage(msg); err != nil {
		coordinatorLogger.Warnf("send provisionable data: %s", err)
	}
}

// dispatchToDisputeCoordinator re-derives a backing-derived dispute
// statement from signed (§4.9, dot/parachain/dispute/types), resolves
// the full candidate receipt, and forwards both as potential dispute
// evidence. A statement kind the dispute coordinator has no use for, or
// a Valid statement with no prior known Seconded candidate, produces no
// notification.
func (c *Coordinator) dispatchToDisputeCoordinator(
	rpState *PerRelayParentState,
	signed parachaintypes.SignedStatement,
) {
	if int(signed.ValidatorIndex) >= len(rpState.Context.Validators) {
		coordinatorLogger.Warnf("validator index %d out of bounds, dropping from dispute dispatch", signed.ValidatorIndex)
		return
	}
	validatorPublic := rpState.Context.Validators[signed.ValidatorIndex]

	disputeStatement, err := disputetypes.NewSignedDisputeStatementFromBackingVote(
		signed.Statement, validatorPublic, signed.Signature, rpState.Session,
	)
	if err != nil {
		coordinatorLogger.Debugf("statement is not backing-derived dispute evidence: %s", err)
		return
	}
	candidateHash := disputeStatement.CandidateHash

	var receipt parachaintypes.CandidateReceipt
	switch {
	case func() bool { _, ok := signed.Statement.IsSeconded(); return ok }():
		full, _ := signed.Statement.IsSeconded()
		plain, err := full.ToPlain()
		if err != nil {
			coordinatorLogger.Warnf("flatten seconded receipt for dispute dispatch: %s", err)
			return
		}
		receipt = plain
	default:
		full, err := rpState.Table.getCandidate(candidateHash)
		if err != nil {
			return
		}
		plain, err := full.ToPlain()
		if err != nil {
			coordinatorLogger.Warnf("flatten valid receipt for dispute dispatch: %s", err)
			return
		}
		receipt = plain
	}

	msg := parachaintypes.DisputeCoordinatorMessage{
		ImportStatements: &parachaintypes.ImportStatementsRequest{
			CandidateHash:    candidateHash,
			CandidateReceipt: receipt,
			Session:          rpState.Session,
			Statements:       []parachaintypes.SignedStatement{signed},
		},
	}
	if err := c.sender.SendMessage(msg); err != nil {
		coordinatorLogger.Warnf("dispatch to dispute coordinator: %s", err)
	}
}

// --- Background Result Handler (§4.7) -----------------------------------

func (c *Coordinator) handleBackgroundResult(res BackgroundValidationResult) {
	rpState, ok := c.perRelayParent[res.RelayParent]
	if !ok {
		// Benign race (§5 Cancellation): the relay parent was torn down
		// while this task was in flight.
		return
	}

	switch {
	case res.Command.SecondOk != nil:
		c.handleSecondOk(res.RelayParent, rpState, res.Command.SecondOk)
	case res.Command.SecondErr != nil:
		c.handleSecondErr(res.RelayParent, rpState, res.Command.SecondErr)
	case res.Command.AttestOk != nil:
		c.handleAttestOk(rpState, *res.Command.AttestOk)
	case res.Command.AttestErr != nil:
		c.handleAttestErr(rpState, res.Command.AttestErr)
	case res.Command.AttestNoPoV != nil:
		c.handleAttestNoPoV(res.RelayParent, rpState, *res.Command.AttestNoPoV)
	}
}

func (c *Coordinator) handleSecondOk(
	relayParent parachaintypes.Hash,
	rpState *PerRelayParentState,
	ok *SecondOk,
) {
	candidateHash, err := ok.Candidate.Hash()
	if err != nil {
		coordinatorLogger.Errorf("hash seconded candidate: %s", err)
		return
	}
	delete(rpState.AwaitingValidation, candidateHash)
	if rpState.hasIssuedAny(candidateHash) {
		return
	}

	statement := parachaintypes.NewStatementSeconded(ok.Candidate)
	signed := c.signImportAndDistribute(relayParent, rpState, statement, &ok.ValidationData)
	if signed == nil {
		return
	}
	rpState.markIssued(candidateHash, true)

	c.perCandidate[candidateHash] = &PerCandidateState{
		PersistedValidationData: ok.ValidationData,
		SecondedLocally:         true,
		ParaID:                  ok.Candidate.Descriptor.ParaID,
		RelayParent:             relayParent,
	}
	c.recordSecondedAtDepth(relayParent, candidateHash, ok.Candidate.Descriptor.ParaID)

	notify := parachaintypes.CollatorProtocolMessage{
		Seconded: &parachaintypes.CollatorSecondedNotification{
			RelayParent: relayParent,
			Statement: parachaintypes.SignedStatementWithPVD{
				SignedStatement:         *signed,
				PersistedValidationData: &ok.ValidationData,
			},
		},
	}
	if err := c.sender.SendMessage(notify); err != nil {
		coordinatorLogger.Warnf("notify collator protocol of seconded candidate: %s", err)
	}
}

// recordSecondedAtDepth updates seconded_at_depth for every active leaf
// that tracks this candidate's fragment tree, so later anti-double-
// second checks see it.
func (c *Coordinator) recordSecondedAtDepth(
	relayParent parachaintypes.Hash,
	candidateHash parachaintypes.CandidateHash,
	para parachaintypes.ParaID,
) {
	for leaf, state := range c.perLeaf {
		if !state.Mode.Enabled {
			if leaf == relayParent {
				state.SecondedAtDepth[0] = candidateHash
			}
			continue
		}
		memberships, err := c.queryTreeMembership(para, candidateHash)
		if err != nil {
			coordinatorLogger.Debugf("tree membership for %s: %s", candidateHash.Value, err)
			continue
		}
		for _, m := range memberships {
			if m.Leaf != leaf {
				continue
			}
			for _, depth := range m.Depths {
				state.SecondedAtDepth[depth] = candidateHash
			}
		}
	}
}

func (c *Coordinator) handleSecondErr(
	relayParent parachaintypes.Hash,
	rpState *PerRelayParentState,
	candidate *parachaintypes.CandidateReceipt,
) {
	candidateHash, err := candidate.Hash()
	if err != nil {
		coordinatorLogger.Errorf("hash failed-second candidate: %s", err)
		return
	}
	delete(rpState.AwaitingValidation, candidateHash)

	notify := parachaintypes.CollatorProtocolMessage{
		Invalid: &parachaintypes.CollatorInvalidNotification{RelayParent: relayParent, Candidate: *candidate},
	}
	if err := c.sender.SendMessage(notify); err != nil {
		coordinatorLogger.Warnf("notify collator protocol of invalid candidate: %s", err)
	}
}

func (c *Coordinator) handleAttestOk(rpState *PerRelayParentState, candidateHash parachaintypes.CandidateHash) {
	delete(rpState.AwaitingValidation, candidateHash)
	delete(rpState.Fallbacks, candidateHash)
	if rpState.hasIssuedAny(candidateHash) {
		return
	}

	statement := parachaintypes.NewStatementValid(candidateHash)
	signed := c.signImportAndDistribute(relayParentOf(rpState), rpState, statement, nil)
	if signed == nil {
		return
	}
	rpState.markIssued(candidateHash, false)
}

func (c *Coordinator) handleAttestErr(rpState *PerRelayParentState, candidate *parachaintypes.CandidateReceipt) {
	candidateHash, err := candidate.Hash()
	if err != nil {
		coordinatorLogger.Errorf("hash failed-attest candidate: %s", err)
		return
	}
	// We do not vote Valid on a failing candidate, and we do not issue
	// Invalid either: disputes handle that (§4.7).
	delete(rpState.AwaitingValidation, candidateHash)
	rpState.markIssued(candidateHash, false)
}

func (c *Coordinator) handleAttestNoPoV(
	relayParent parachaintypes.Hash,
	rpState *PerRelayParentState,
	candidateHash parachaintypes.CandidateHash,
) {
	delete(rpState.AwaitingValidation, candidateHash)
	fallback, ok := rpState.Fallbacks[candidateHash]
	if !ok || fallback.Backing.Len() == 0 {
		coordinatorLogger.Debugf("no PoV for %s and no fallback validator left", candidateHash.Value)
		c.metrics.OnNoPoVExhausted()
		return
	}
	fallback.FromValidator = fallback.Backing.PopFront()
	c.spawnAttest(relayParent, rpState, candidateHash, fallback)
}

// relayParentOf recovers the relay parent a PerRelayParentState was
// built for; kept as a tiny accessor so call sites read naturally.
func relayParentOf(rpState *PerRelayParentState) parachaintypes.Hash {
	return rpState.RelayParent
}

// --- Signing & Distribution Glue (C9 / §4.9) ----------------------------

// signImportAndDistribute signs statement via the keystore, locally
// imports it (so our own vote counts toward the threshold the same way
// a peer's would), and shares it unbounded with Statement Distribution.
// It returns nil without error if this node holds no signing key for
// its own validator index (signing is best-effort, §4.9), and also nil
// if a Seconded statement is rejected by Prospective Parachains (§4.5's
// Second acceptance query): that is the rejection-expunge path (§7, §9),
// a recoverable failure of the signing path rather than a hard error.
func (c *Coordinator) signImportAndDistribute(
	relayParent parachaintypes.Hash,
	rpState *PerRelayParentState,
	statement parachaintypes.Statement,
	pvd *parachaintypes.PersistedValidationData,
) *parachaintypes.SignedStatement {
	if rpState.Context.Validator == nil {
		return nil
	}
	validatorIndex := rpState.Context.Validator.Index
	if int(validatorIndex) >= len(rpState.Context.Validators) {
		coordinatorLogger.Warnf("local validator index %d out of bounds", validatorIndex)
		return nil
	}

	if full, isSeconded := statement.IsSeconded(); isSeconded {
		var pvdForQuery parachaintypes.PersistedValidationData
		if pvd != nil {
			pvdForQuery = *pvd
		}
		accepted, err := c.secondAcceptedByProspectiveParachains(full, pvdForQuery)
		if err != nil {
			coordinatorLogger.Warnf("query prospective parachains second acceptance: %s", err)
			return nil
		}
		if !accepted {
			if candidateHash, err := statement.CandidateHash(); err == nil {
				coordinatorLogger.Debugf("candidate %s rejected by prospective parachains, expunging", candidateHash.Value)
				rpState.Table.expunge(candidateHash)
			}
			return nil
		}
	}

	public := sr25519.PublicKey(rpState.Context.Validators[validatorIndex])

	signingCtx := parachaintypes.SigningContext{SessionIndex: rpState.Session, ParentHash: relayParent}
	signed, err := parachaintypes.Sign(c.keystore, public, validatorIndex, statement, signingCtx)
	if err != nil {
		coordinatorLogger.Errorf("sign statement: %s", err)
		return nil
	}
	if signed == nil {
		return nil
	}
	_, seconded := statement.IsSeconded()
	c.metrics.OnStatementSigned(seconded)

	withPVD := parachaintypes.SignedStatementWithPVD{SignedStatement: *signed, PersistedValidationData: pvd}
	if _, err := rpState.Table.importStatement(rpState.Context, withPVD); err != nil {
		coordinatorLogger.Warnf("import own statement: %s", err)
	} else {
		c.forwardMisbehaviors(relayParent, rpState)
		candidateHash, err := statement.CandidateHash()
		if err == nil {
			c.maybeEmitBacked(relayParent, rpState, candidateHash)
		}
	}

	wireMsg := networkbridge.NewStatementWireMessage(relayParent, *signed)
	wireHash, err := wireMsg.Hash()
	if err != nil {
		coordinatorLogger.Warnf("hash wire statement: %s", err)
	}
	shareStatement := parachaintypes.ShareStatement{RelayParent: relayParent, Statement: *signed, WireHash: wireHash}
	if encoded, encErr := wireMsg.Encode(); encErr != nil {
		coordinatorLogger.Warnf("encode wire statement: %s", encErr)
	} else if len(encoded) > largeStatementWireThreshold {
		compressed, cErr := networkbridge.CompressLargePayload(encoded)
		if cErr != nil {
			coordinatorLogger.Warnf("compress large statement payload: %s", cErr)
		} else {
			coordinatorLogger.Debugf("statement %s compressed %d->%d bytes for large-payload announcement", wireHash, len(encoded), len(compressed))
			shareStatement.Compressed = compressed
		}
	}

	share := parachaintypes.StatementDistributionMessage{Share: &shareStatement}
	if err := c.sender.SendMessage(share); err != nil {
		coordinatorLogger.Warnf("share statement: %s", err)
	}

	c.dispatchToDisputeCoordinator(rpState, *signed)

	return signed
}
