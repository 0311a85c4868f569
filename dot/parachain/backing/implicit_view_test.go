// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"errors"
	"testing"

	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/stretchr/testify/require"
)

type fakeAncestryFetcher struct {
	ancestry map[parachaintypes.Hash][]parachaintypes.Hash
	paras    map[parachaintypes.Hash][]parachaintypes.ParaID
	failFor  map[parachaintypes.Hash]bool
}

func (f fakeAncestryFetcher) fetchAncestry(leaf parachaintypes.Hash) ([]parachaintypes.Hash, []parachaintypes.ParaID, error) {
	if f.failFor[leaf] {
		return nil, nil, errors.New("oracle unreachable")
	}
	return f.ancestry[leaf], f.paras[leaf], nil
}

func TestImplicitViewSharedAncestorSurvivesOneDeactivation(t *testing.T) {
	r := parachaintypes.Hash{0xaa}
	l1 := parachaintypes.Hash{0x01}
	l2 := parachaintypes.Hash{0x02}

	fetcher := fakeAncestryFetcher{
		ancestry: map[parachaintypes.Hash][]parachaintypes.Hash{
			l1: {l1, r},
			l2: {l2, r},
		},
		paras: map[parachaintypes.Hash][]parachaintypes.ParaID{
			l1: {1},
			l2: {1},
		},
	}
	view := NewImplicitView(fetcher)

	_, err := view.activeLeaf(l1)
	require.NoError(t, err)
	_, err = view.activeLeaf(l2)
	require.NoError(t, err)

	freed := view.deactivateLeaf(l1)
	require.Equal(t, []parachaintypes.Hash{l1}, freed, "only l1 itself is freed; r is still referenced by l2")
	require.Contains(t, view.allAllowedRelayParents(), r)

	freed = view.deactivateLeaf(l2)
	require.ElementsMatch(t, []parachaintypes.Hash{l2, r}, freed)
	require.NotContains(t, view.allAllowedRelayParents(), r)
}

func TestImplicitViewActivationFailureDoesNotRegister(t *testing.T) {
	l1 := parachaintypes.Hash{0x01}
	fetcher := fakeAncestryFetcher{failFor: map[parachaintypes.Hash]bool{l1: true}}
	view := NewImplicitView(fetcher)

	_, err := view.activeLeaf(l1)
	require.Error(t, err)
	require.Empty(t, view.allAllowedRelayParents())
	require.Empty(t, view.deactivateLeaf(l1))
}

func TestImplicitViewKnownAllowedRelayParentsUnderFiltersByPara(t *testing.T) {
	l1 := parachaintypes.Hash{0x01}
	r := parachaintypes.Hash{0xaa}
	fetcher := fakeAncestryFetcher{
		ancestry: map[parachaintypes.Hash][]parachaintypes.Hash{l1: {l1, r}},
		paras:    map[parachaintypes.Hash][]parachaintypes.ParaID{l1: {7}},
	}
	view := NewImplicitView(fetcher)
	_, err := view.activeLeaf(l1)
	require.NoError(t, err)

	para7 := parachaintypes.ParaID(7)
	require.ElementsMatch(t, []parachaintypes.Hash{l1, r}, view.knownAllowedRelayParentsUnder(l1, &para7))

	para9 := parachaintypes.ParaID(9)
	require.Empty(t, view.knownAllowedRelayParentsUnder(l1, &para9))

	require.ElementsMatch(t, []parachaintypes.Hash{l1, r}, view.knownAllowedRelayParentsUnder(l1, nil))
}
