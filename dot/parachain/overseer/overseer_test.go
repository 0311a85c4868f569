// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package overseer

import (
	"testing"
	"time"

	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/stretchr/testify/require"
)

type exampleSubsystem struct {
	name    string
	started chan *ActivatedLeaf
	stopped chan struct{}
}

func newExampleSubsystem(name string) *exampleSubsystem {
	return &exampleSubsystem{name: name, started: make(chan *ActivatedLeaf, 1), stopped: make(chan struct{})}
}

func (e *exampleSubsystem) Name() string { return e.name }

func (e *exampleSubsystem) Run(ctx *Context) error {
	for msg := range ctx.Receiver {
		if leaf, ok := msg.(*ActivatedLeaf); ok {
			e.started <- leaf
		}
	}
	return nil
}

func (e *exampleSubsystem) ProcessActiveLeavesUpdate(update ActiveLeavesUpdate) error {
	return nil
}

func (e *exampleSubsystem) Stop() {
	close(e.stopped)
}

func TestStartSubsystems(t *testing.T) {
	o := NewOverseer()

	ss1 := newExampleSubsystem("subsystem-1")
	ss2 := newExampleSubsystem("subsystem-2")
	o.RegisterSubSystem(ss1)
	o.RegisterSubSystem(ss2)
	o.Start()

	err := o.sendActiveLeaf(parachaintypes.BlockNumber(11))
	require.NoError(t, err)

	for _, ss := range []*exampleSubsystem{ss1, ss2} {
		select {
		case leaf := <-ss.started:
			require.Equal(t, parachaintypes.BlockNumber(11), leaf.Number)
		case <-time.After(time.Second):
			t.Fatalf("%s did not observe the activated leaf", ss.name)
		}
	}

	o.stop()
	for _, ss := range []*exampleSubsystem{ss1, ss2} {
		select {
		case <-ss.stopped:
		case <-time.After(time.Second):
			t.Fatalf("%s was not stopped", ss.name)
		}
	}
}
