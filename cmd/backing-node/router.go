// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package main

import (
	"errors"

	"github.com/parastate/validator-node/dot/parachain/overseer"
	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/parastate/validator-node/internal/log"
)

var routerLogger = log.NewFromGlobal(log.AddContext("pkg", "backing-node-router"))

// router is the overseer.Sender the backing coordinator and its
// collaborators address each other through in this single process. The
// in-tree overseer package fans out active-leaves signals but routes
// every subsystem's own outbound messages back to itself (a minimal
// stand-in, not a full message bus), so this entrypoint wires its own
// router: real requests go to the real subsystem's channel, and the
// remaining out-of-scope collaborators (§1) get synchronous, best-effort
// answers so the coordinator never blocks waiting on them.
type router struct {
	runtimeCh chan any
	candValCh chan any
	disputeCh chan any
}

func newRouter(runtimeCh, candValCh, disputeCh chan any) *router {
	return &router{runtimeCh: runtimeCh, candValCh: candValCh, disputeCh: disputeCh}
}

func (r *router) SendMessage(msg any) error {
	switch m := msg.(type) {
	case parachaintypes.RuntimeAPIMessage:
		r.runtimeCh <- m
		return nil
	case parachaintypes.CandidateValidationMessage:
		r.candValCh <- m
		return nil
	case parachaintypes.DisputeCoordinatorMessage:
		r.disputeCh <- m
		return nil
	case parachaintypes.AvailabilityDistributionMessage:
		return r.handleAvailabilityDistribution(m)
	case parachaintypes.AvailabilityStoreMessage:
		return r.handleAvailabilityStore(m)
	case parachaintypes.ProspectiveParachainsMessage:
		return r.handleProspectiveParachains(m)
	case parachaintypes.StatementDistributionMessage:
		if m.Share.Compressed != nil {
			routerLogger.Debugf("statement distribution share %s for relay parent %s, %d compressed bytes (no peer network wired)",
				m.Share.WireHash, m.Share.RelayParent, len(m.Share.Compressed))
		} else {
			routerLogger.Debugf("statement distribution share %s for relay parent %s (no peer network wired)", m.Share.WireHash, m.Share.RelayParent)
		}
		return nil
	case parachaintypes.CollatorProtocolMessage:
		routerLogger.Debugf("collator protocol notification (no collator connection wired)")
		return nil
	case parachaintypes.ProvisionerMessage:
		routerLogger.Debugf("provisionable data for relay parent %s (no provisioner wired)", m.ProvisionableData.RelayParent)
		return nil
	default:
		routerLogger.Warnf("%s: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
		return nil
	}
}

func (r *router) handleAvailabilityDistribution(m parachaintypes.AvailabilityDistributionMessage) error {
	if m.FetchPoV == nil {
		return nil
	}
	m.FetchPoV.Reply <- parachaintypes.OverseerFuncRes[parachaintypes.PoV]{
		Err: errors.New("availability distribution: no peer network wired, cannot fetch PoV"),
	}
	return nil
}

func (r *router) handleAvailabilityStore(m parachaintypes.AvailabilityStoreMessage) error {
	if m.StoreAvailableData == nil {
		return nil
	}
	m.StoreAvailableData.Reply <- parachaintypes.OverseerFuncRes[struct{}]{}
	return nil
}

// handleProspectiveParachains answers as if asynchronous backing were
// never enabled for any leaf: a fresh leaf's ancestry window is just the
// leaf itself, tracking no paras, and no locally-seconded candidate is
// ever a member of a fragment tree. Wiring a real fragment-tree oracle
// is out of scope (§1).
func (r *router) handleProspectiveParachains(m parachaintypes.ProspectiveParachainsMessage) error {
	switch {
	case m.GetAncestryWindow != nil:
		m.GetAncestryWindow.Reply <- parachaintypes.AncestryWindow{Ancestors: []parachaintypes.Hash{m.GetAncestryWindow.Leaf}}
	case m.GetTreeMembership != nil:
		m.GetTreeMembership.Reply <- nil
	case m.GetHypotheticalDepths != nil:
		m.GetHypotheticalDepths.Reply <- nil
	case m.IntroduceSecondedCandidate != nil:
		m.IntroduceSecondedCandidate.Reply <- true
	}
	return nil
}

var _ overseer.Sender = (*router)(nil)
