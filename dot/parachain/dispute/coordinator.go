// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package dispute

import (
	"sync"

	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/parastate/validator-node/internal/log"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-dispute"))

// Coordinator receives ImportStatements requests forwarded by the
// backing coordinator and records them; a full dispute-coordinator
// implementation (evidence aggregation, vote counting, on-chain dispute
// resolution) is out of scope here.
type Coordinator struct {
	mu       sync.Mutex
	imported []parachaintypes.ImportStatementsRequest
	inbox    chan any
}

// NewCoordinator builds a Coordinator listening for ImportStatements
// requests.
func NewCoordinator() *Coordinator {
	return &Coordinator{inbox: make(chan any, 32)}
}

// Inbox is the channel the network bridge / backing coordinator sends
// DisputeCoordinatorMessage values on.
func (c *Coordinator) Inbox() chan any { return c.inbox }

// Run drains the inbox until it is closed.
func (c *Coordinator) Run() {
	for msg := range c.inbox {
		req, ok := msg.(parachaintypes.DisputeCoordinatorMessage)
		if !ok || req.ImportStatements == nil {
			logger.Warnf("dropping unrecognised dispute coordinator message %T", msg)
			continue
		}
		c.mu.Lock()
		c.imported = append(c.imported, *req.ImportStatements)
		c.mu.Unlock()
		logger.Debugf("imported statements for candidate %s", req.ImportStatements.CandidateHash.Value)
	}
}

// Imported returns a snapshot of every ImportStatements request
// received so far, for tests.
func (c *Coordinator) Imported() []parachaintypes.ImportStatementsRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]parachaintypes.ImportStatementsRequest, len(c.imported))
	copy(out, c.imported)
	return out
}

// ImportStatements sends req to the coordinator, best-effort.
func (c *Coordinator) ImportStatements(req parachaintypes.ImportStatementsRequest) error {
	return sendMessage(c.inbox, parachaintypes.DisputeCoordinatorMessage{ImportStatements: &req})
}
