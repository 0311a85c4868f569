// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"fmt"
	"sort"
	"sync"

	"github.com/parastate/validator-node/dot/parachain/overseer"
	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
)

// ancestryFetcher is the Prospective Parachains oracle the Implicit View
// consults when a leaf is activated: for a given leaf it returns the
// allowed ancestor relay parents (ordered from the leaf itself backward)
// together with the paras whose fragment trees are tracked at that leaf.
type ancestryFetcher interface {
	fetchAncestry(leaf parachaintypes.Hash) (ancestors []parachaintypes.Hash, paras []parachaintypes.ParaID, err error)
}

// senderAncestryFetcher is the production ancestryFetcher: it asks the
// Prospective Parachains collaborator over the overseer for the
// ancestry window via GetAncestryWindowRequest.
type senderAncestryFetcher struct {
	sender overseer.Sender
}

// NewSenderAncestryFetcher builds the ancestryFetcher NewCoordinator
// expects, backed by a live Prospective Parachains collaborator reached
// through sender. Unit tests instead inject a fake that implements the
// same unexported contract from within this package.
func NewSenderAncestryFetcher(sender overseer.Sender) *senderAncestryFetcher {
	return &senderAncestryFetcher{sender: sender}
}

func (f *senderAncestryFetcher) fetchAncestry(leaf parachaintypes.Hash) ([]parachaintypes.Hash, []parachaintypes.ParaID, error) {
	reply := make(chan parachaintypes.AncestryWindow, 1)
	req := parachaintypes.ProspectiveParachainsMessage{
		GetAncestryWindow: &parachaintypes.GetAncestryWindowRequest{Leaf: leaf, Reply: reply},
	}
	if err := f.sender.SendMessage(req); err != nil {
		return nil, nil, fmt.Errorf("fetch ancestry for leaf %s: %w", leaf, err)
	}
	window := <-reply
	return window.Ancestors, window.Paras, nil
}

type leafEntry struct {
	allowedRelayParents []parachaintypes.Hash
	paras               []parachaintypes.ParaID
}

// ImplicitView tracks, for every active async-mode leaf, the window of
// relay parents that leaf allows backing work against (its own hash plus
// any ancestors Prospective Parachains still considers live), and
// reference-counts each relay parent across leaves so it can be retired
// the moment no active leaf still allows it (§4.3/§4.4/§9 S6).
type ImplicitView interface {
	activeLeaf(leaf parachaintypes.Hash) ([]parachaintypes.ParaID, error)
	allAllowedRelayParents() []parachaintypes.Hash
	deactivateLeaf(leaf parachaintypes.Hash) []parachaintypes.Hash
	knownAllowedRelayParentsUnder(leaf parachaintypes.Hash, para *parachaintypes.ParaID) []parachaintypes.Hash
}

type implicitView struct {
	mu        sync.Mutex
	fetcher   ancestryFetcher
	leaves    map[parachaintypes.Hash]*leafEntry
	refCounts map[parachaintypes.Hash]int
}

// NewImplicitView creates an Implicit View backed by fetcher for ancestor
// discovery.
func NewImplicitView(fetcher ancestryFetcher) ImplicitView {
	return &implicitView{
		fetcher:   fetcher,
		leaves:    make(map[parachaintypes.Hash]*leafEntry),
		refCounts: make(map[parachaintypes.Hash]int),
	}
}

// activeLeaf activates leaf, fetching its allowed ancestor window and
// returning the paras tracked at this leaf. On fetch failure the leaf is
// not activated (per §4.3: a collaborator failure is logged and the
// relay parent/leaf is skipped, not fatal) and the error is returned so
// the caller can log it.
func (v *implicitView) activeLeaf(leaf parachaintypes.Hash) ([]parachaintypes.ParaID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if entry, ok := v.leaves[leaf]; ok {
		return entry.paras, nil
	}

	ancestors, paras, err := v.fetcher.fetchAncestry(leaf)
	if err != nil {
		return nil, fmt.Errorf("backing: fetch ancestry for leaf %s: %w", leaf, err)
	}

	entry := &leafEntry{allowedRelayParents: ancestors, paras: paras}
	v.leaves[leaf] = entry
	for _, rp := range ancestors {
		v.refCounts[rp]++
	}
	return paras, nil
}

// allAllowedRelayParents returns the union, across every active leaf, of
// allowed relay parents, sorted for deterministic iteration.
func (v *implicitView) allAllowedRelayParents() []parachaintypes.Hash {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]parachaintypes.Hash, 0, len(v.refCounts))
	for rp := range v.refCounts {
		out = append(out, rp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// deactivateLeaf removes leaf from the view and returns the relay
// parents that were only allowed by leaf and are therefore no longer
// allowed by any active leaf (S6: the caller must drop their
// per-relay-parent and per-candidate state for these).
func (v *implicitView) deactivateLeaf(leaf parachaintypes.Hash) []parachaintypes.Hash {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.leaves[leaf]
	if !ok {
		return nil
	}
	delete(v.leaves, leaf)

	var freed []parachaintypes.Hash
	for _, rp := range entry.allowedRelayParents {
		v.refCounts[rp]--
		if v.refCounts[rp] <= 0 {
			delete(v.refCounts, rp)
			freed = append(freed, rp)
		}
	}
	return freed
}

// knownAllowedRelayParentsUnder returns the allowed ancestor window for
// leaf, optionally restricted to the leaf's tracking a given para. A nil
// para returns leaf's full window.
func (v *implicitView) knownAllowedRelayParentsUnder(
	leaf parachaintypes.Hash,
	para *parachaintypes.ParaID,
) []parachaintypes.Hash {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.leaves[leaf]
	if !ok {
		return nil
	}
	if para == nil {
		return entry.allowedRelayParents
	}
	for _, p := range entry.paras {
		if p == *para {
			return entry.allowedRelayParents
		}
	}
	return nil
}
