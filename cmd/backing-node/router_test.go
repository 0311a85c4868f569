// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
)

func TestRouterForwardsToRealSubsystems(t *testing.T) {
	runtimeCh := make(chan any, 1)
	candValCh := make(chan any, 1)
	disputeCh := make(chan any, 1)
	r := newRouter(runtimeCh, candValCh, disputeCh)

	require.NoError(t, r.SendMessage(parachaintypes.RuntimeAPIMessage{}))
	require.NoError(t, r.SendMessage(parachaintypes.CandidateValidationMessage{}))
	require.NoError(t, r.SendMessage(parachaintypes.DisputeCoordinatorMessage{}))

	assert.Len(t, runtimeCh, 1)
	assert.Len(t, candValCh, 1)
	assert.Len(t, disputeCh, 1)
}

func TestRouterAnswersAvailabilityDistributionWithError(t *testing.T) {
	r := newRouter(make(chan any, 1), make(chan any, 1), make(chan any, 1))

	reply := make(chan parachaintypes.OverseerFuncRes[parachaintypes.PoV], 1)
	err := r.SendMessage(parachaintypes.AvailabilityDistributionMessage{
		FetchPoV: &parachaintypes.FetchPoVRequest{Reply: reply},
	})
	require.NoError(t, err)

	res := <-reply
	assert.Error(t, res.Err)
}

func TestRouterAnswersAvailabilityStoreSuccessfully(t *testing.T) {
	r := newRouter(make(chan any, 1), make(chan any, 1), make(chan any, 1))

	reply := make(chan parachaintypes.OverseerFuncRes[struct{}], 1)
	err := r.SendMessage(parachaintypes.AvailabilityStoreMessage{
		StoreAvailableData: &parachaintypes.StoreAvailableDataRequest{Reply: reply},
	})
	require.NoError(t, err)

	res := <-reply
	assert.NoError(t, res.Err)
}

func TestRouterAnswersAncestryWindowWithLeafOnly(t *testing.T) {
	r := newRouter(make(chan any, 1), make(chan any, 1), make(chan any, 1))

	reply := make(chan parachaintypes.AncestryWindow, 1)
	leaf := parachaintypes.Hash{9}
	err := r.SendMessage(parachaintypes.ProspectiveParachainsMessage{
		GetAncestryWindow: &parachaintypes.GetAncestryWindowRequest{Leaf: leaf, Reply: reply},
	})
	require.NoError(t, err)

	window := <-reply
	assert.Equal(t, []parachaintypes.Hash{leaf}, window.Ancestors)
	assert.Empty(t, window.Paras)
}
