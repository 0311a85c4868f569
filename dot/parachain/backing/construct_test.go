// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"testing"

	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/stretchr/testify/require"
)

// fakeRuntimeSender answers RuntimeAPIMessage requests synchronously as
// if it were the runtime API gateway, for exercising construct.go
// without spinning up an overseer.
type fakeRuntimeSender struct {
	validators   []parachaintypes.ValidatorID
	groups       parachaintypes.ValidatorGroupsResult
	sessionIndex parachaintypes.SessionIndex
	cores        []parachaintypes.CoreState
}

func (f fakeRuntimeSender) SendMessage(msg any) error {
	req, ok := msg.(parachaintypes.RuntimeAPIMessage)
	if !ok {
		return nil
	}
	switch {
	case req.Request.Validators != nil:
		*req.Request.Validators <- parachaintypes.OverseerFuncRes[[]parachaintypes.ValidatorID]{Data: f.validators}
	case req.Request.ValidatorGroups != nil:
		*req.Request.ValidatorGroups <- parachaintypes.OverseerFuncRes[parachaintypes.ValidatorGroupsResult]{Data: f.groups}
	case req.Request.SessionIndexForChild != nil:
		*req.Request.SessionIndexForChild <- parachaintypes.OverseerFuncRes[parachaintypes.SessionIndex]{Data: f.sessionIndex}
	case req.Request.AvailabilityCores != nil:
		*req.Request.AvailabilityCores <- parachaintypes.OverseerFuncRes[[]parachaintypes.CoreState]{Data: f.cores}
	}
	return nil
}

func TestConstructPerRelayParentStateAssignsByFirstScheduledCore(t *testing.T) {
	sender := fakeRuntimeSender{
		validators: make([]parachaintypes.ValidatorID, 5),
		groups: parachaintypes.ValidatorGroupsResult{
			Groups:       [][]parachaintypes.ValidatorIndex{{0, 1}, {2, 3, 4}},
			RotationInfo: parachaintypes.GroupRotationInfo{GroupRotationFreq: 0},
		},
		sessionIndex: 3,
		cores: []parachaintypes.CoreState{
			{Occupied: &parachaintypes.OccupiedCore{ParaID: 9}},
			{Scheduled: &parachaintypes.ScheduledCore{ParaID: 42}},
		},
	}

	state, err := constructPerRelayParentState(sender, parachaintypes.Hash{1}, &LocalValidator{Index: 2})
	require.NoError(t, err)
	require.NotNil(t, state.Assignment)
	require.Equal(t, parachaintypes.ParaID(42), *state.Assignment)
	require.Equal(t, parachaintypes.SessionIndex(3), state.Session)
}

func TestConstructPerRelayParentStateNoAssignment(t *testing.T) {
	sender := fakeRuntimeSender{
		validators: make([]parachaintypes.ValidatorID, 2),
		groups: parachaintypes.ValidatorGroupsResult{
			Groups: [][]parachaintypes.ValidatorIndex{{0}, {1}},
		},
		cores: []parachaintypes.CoreState{
			{Scheduled: &parachaintypes.ScheduledCore{ParaID: 1}},
		},
	}

	state, err := constructPerRelayParentState(sender, parachaintypes.Hash{1}, &LocalValidator{Index: 9})
	require.NoError(t, err)
	require.Nil(t, state.Assignment)
}
