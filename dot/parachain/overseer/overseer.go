// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package overseer is the in-process event bus that fans out relay-
// chain signals (active leaves, finality, shutdown) to every registered
// subsystem. It does not route messages between subsystems: the Sender
// a subsystem gets from Start delivers to that subsystem's own inbox. The
// real scheduler this stands in for (routing, backpressure across
// subsystem boundaries, span instrumentation) is out of scope; this is
// enough surface for the backing coordinator to be driven the way it
// would be in a full node.
package overseer

import (
	"fmt"
	"sync"

	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/parastate/validator-node/internal/log"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-overseer"))

// ActivatedLeaf describes a relay-chain block that became a leaf of the
// active fork set.
type ActivatedLeaf struct {
	Hash   parachaintypes.Hash
	Number parachaintypes.BlockNumber
}

// ActiveLeavesUpdate is delivered at most once per signal, per §6: at
// most one Activated leaf, any number of Deactivated hashes.
type ActiveLeavesUpdate struct {
	Activated   *ActivatedLeaf
	Deactivated []parachaintypes.Hash
}

// BlockFinalized is delivered on relay-chain finality; the backing
// coordinator ignores it per §6.
type BlockFinalized struct {
	Hash   parachaintypes.Hash
	Number parachaintypes.BlockNumber
}

// Conclude tells every subsystem to shut down.
type Conclude struct{}

// Sender lets a subsystem address messages to other subsystems via the
// overseer.
type Sender interface {
	SendMessage(msg any) error
}

// Context is handed to a subsystem's Run method: Receiver carries
// overseer signals and routed messages, Sender lets the subsystem talk
// back.
type Context struct {
	Receiver <-chan any
	Sender   Sender
}

// Subsystem is anything the overseer can drive: a Run loop that
// consumes its Context until told to stop, plus a fast path for active-
// leaves updates so the overseer need not wait for Run to poll its own
// channel.
type Subsystem interface {
	Name() string
	Run(ctx *Context) error
	ProcessActiveLeavesUpdate(update ActiveLeavesUpdate) error
	Stop()
}

type registeredSubsystem struct {
	subsystem Subsystem
	toSS      chan any
}

func (r *registeredSubsystem) SendMessage(msg any) error {
	select {
	case r.toSS <- msg:
		return nil
	default:
		return fmt.Errorf("overseer: subsystem %s channel full", r.subsystem.Name())
	}
}

// Overseer owns every registered subsystem's inbound channel and fans
// out signals to all of them.
type Overseer struct {
	mu          sync.Mutex
	subsystems  []*registeredSubsystem
	wg          sync.WaitGroup
	stopOnce    sync.Once
	stopped     chan struct{}
}

// NewOverseer creates an empty Overseer.
func NewOverseer() *Overseer {
	return &Overseer{stopped: make(chan struct{})}
}

// RegisterSubSystem wires a subsystem's private 64-capacity inbound
// channel into the overseer's fan-out list.
func (o *Overseer) RegisterSubSystem(s Subsystem) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subsystems = append(o.subsystems, &registeredSubsystem{subsystem: s, toSS: make(chan any, 64)})
}

// Start runs every registered subsystem's Run loop in its own
// goroutine.
func (o *Overseer) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rs := range o.subsystems {
		rs := rs
		ctx := &Context{Receiver: rs.toSS, Sender: rs}
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := rs.subsystem.Run(ctx); err != nil {
				logger.Errorf("subsystem %s exited: %s", rs.subsystem.Name(), err)
			}
		}()
	}
}

// sendActiveLeaf broadcasts an activation for the given block number to
// every registered subsystem, both on their channel and via the fast
// ProcessActiveLeavesUpdate path.
func (o *Overseer) sendActiveLeaf(number parachaintypes.BlockNumber) error {
	leaf := &ActivatedLeaf{Number: number}
	update := ActiveLeavesUpdate{Activated: leaf}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rs := range o.subsystems {
		select {
		case rs.toSS <- leaf:
		default:
			return fmt.Errorf("overseer: subsystem %s channel full", rs.subsystem.Name())
		}
		if err := rs.subsystem.ProcessActiveLeavesUpdate(update); err != nil {
			return fmt.Errorf("subsystem %s: %w", rs.subsystem.Name(), err)
		}
	}
	return nil
}

// stop concludes every subsystem and waits for their Run loops to
// return.
func (o *Overseer) stop() {
	o.stopOnce.Do(func() {
		o.mu.Lock()
		for _, rs := range o.subsystems {
			rs.subsystem.Stop()
			close(rs.toSS)
		}
		o.mu.Unlock()
		o.wg.Wait()
		close(o.stopped)
	})
}
