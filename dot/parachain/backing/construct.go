// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"fmt"
	"sync"

	"github.com/parastate/validator-node/dot/parachain/overseer"
	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
)

// runtimeQueryResult collects the outcome of the four concurrent runtime
// queries §4.3 issues on first encountering a relay parent.
type runtimeQueryResult struct {
	validators     []parachaintypes.ValidatorID
	groups         parachaintypes.ValidatorGroupsResult
	sessionIndex   parachaintypes.SessionIndex
	availableCores []parachaintypes.CoreState
}

func queryValidators(sender overseer.Sender, relayParent parachaintypes.Hash) ([]parachaintypes.ValidatorID, error) {
	reply := make(chan parachaintypes.OverseerFuncRes[[]parachaintypes.ValidatorID], 1)
	var replyChan chan<- parachaintypes.OverseerFuncRes[[]parachaintypes.ValidatorID] = reply
	req := parachaintypes.RuntimeAPIMessage{
		RelayParent: relayParent,
		Request:     parachaintypes.RuntimeAPIRequest{Validators: &replyChan},
	}
	if err := sender.SendMessage(req); err != nil {
		return nil, err
	}
	res := <-reply
	return res.Data, res.Err
}

func queryValidatorGroups(sender overseer.Sender, relayParent parachaintypes.Hash) (parachaintypes.ValidatorGroupsResult, error) {
	reply := make(chan parachaintypes.OverseerFuncRes[parachaintypes.ValidatorGroupsResult], 1)
	var replyChan chan<- parachaintypes.OverseerFuncRes[parachaintypes.ValidatorGroupsResult] = reply
	req := parachaintypes.RuntimeAPIMessage{
		RelayParent: relayParent,
		Request:     parachaintypes.RuntimeAPIRequest{ValidatorGroups: &replyChan},
	}
	if err := sender.SendMessage(req); err != nil {
		return parachaintypes.ValidatorGroupsResult{}, err
	}
	res := <-reply
	return res.Data, res.Err
}

func querySessionIndexForChild(sender overseer.Sender, relayParent parachaintypes.Hash) (parachaintypes.SessionIndex, error) {
	reply := make(chan parachaintypes.OverseerFuncRes[parachaintypes.SessionIndex], 1)
	var replyChan chan<- parachaintypes.OverseerFuncRes[parachaintypes.SessionIndex] = reply
	req := parachaintypes.RuntimeAPIMessage{
		RelayParent: relayParent,
		Request:     parachaintypes.RuntimeAPIRequest{SessionIndexForChild: &replyChan},
	}
	if err := sender.SendMessage(req); err != nil {
		return 0, err
	}
	res := <-reply
	return res.Data, res.Err
}

func queryAvailabilityCores(sender overseer.Sender, relayParent parachaintypes.Hash) ([]parachaintypes.CoreState, error) {
	reply := make(chan parachaintypes.OverseerFuncRes[[]parachaintypes.CoreState], 1)
	var replyChan chan<- parachaintypes.OverseerFuncRes[[]parachaintypes.CoreState] = reply
	req := parachaintypes.RuntimeAPIMessage{
		RelayParent: relayParent,
		Request:     parachaintypes.RuntimeAPIRequest{AvailabilityCores: &replyChan},
	}
	if err := sender.SendMessage(req); err != nil {
		return nil, err
	}
	res := <-reply
	return res.Data, res.Err
}

// queryAsyncBackingEnabled probes whether the runtime at this relay
// parent exposes the asynchronous-backing runtime API version (§4.4
// step 1's "mode... via runtime API version probing").
func queryAsyncBackingEnabled(sender overseer.Sender, relayParent parachaintypes.Hash) (bool, error) {
	reply := make(chan parachaintypes.OverseerFuncRes[bool], 1)
	var replyChan chan<- parachaintypes.OverseerFuncRes[bool] = reply
	req := parachaintypes.RuntimeAPIMessage{
		RelayParent: relayParent,
		Request:     parachaintypes.RuntimeAPIRequest{AsyncBackingEnabled: &replyChan},
	}
	if err := sender.SendMessage(req); err != nil {
		return false, err
	}
	res := <-reply
	return res.Data, res.Err
}

// constructPerRelayParentState issues the four runtime queries §4.3
// requires concurrently, determines this node's assignment by scanning
// scheduled cores in ascending core-index order, and builds the
// PerRelayParentState. On any query failure it returns an error; the
// caller logs it and skips the relay parent rather than treating it as
// fatal.
func constructPerRelayParentState(
	sender overseer.Sender,
	relayParent parachaintypes.Hash,
	localValidator *LocalValidator,
) (*PerRelayParentState, error) {
	var (
		wg     sync.WaitGroup
		result runtimeQueryResult
		errs   [4]error
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		result.validators, errs[0] = queryValidators(sender, relayParent)
	}()
	go func() {
		defer wg.Done()
		result.groups, errs[1] = queryValidatorGroups(sender, relayParent)
	}()
	go func() {
		defer wg.Done()
		result.sessionIndex, errs[2] = querySessionIndexForChild(sender, relayParent)
	}()
	go func() {
		defer wg.Done()
		result.availableCores, errs[3] = queryAvailabilityCores(sender, relayParent)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("backing: runtime API query for relay parent %s: %w", relayParent, err)
		}
	}

	groups := make(map[parachaintypes.GroupIndex][]parachaintypes.ValidatorIndex, len(result.groups.Groups))
	for i, members := range result.groups.Groups {
		groups[parachaintypes.GroupIndex(i)] = members
	}

	ctx := &TableContext{Validators: result.validators, Groups: groups, Validator: localValidator}

	var assignment *parachaintypes.ParaID
	if localValidator != nil {
		for core, state := range result.availableCores {
			if state.Scheduled == nil {
				continue
			}
			group := result.groups.RotationInfo.GroupForCore(parachaintypes.CoreIndex(core), len(result.groups.Groups))
			members := groups[group]
			for _, v := range members {
				if v == localValidator.Index {
					para := state.Scheduled.ParaID
					assignment = &para
					break
				}
			}
			if assignment != nil {
				break
			}
		}
	}

	return NewPerRelayParentState(relayParent, result.sessionIndex, assignment, NewTable(), ctx), nil
}
