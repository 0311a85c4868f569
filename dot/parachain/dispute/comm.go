// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package dispute is a minimal stand-in for the out-of-scope Dispute
// Coordinator collaborator: it accepts ImportStatements messages (the
// only message the backing coordinator ever sends it, per §6 and §4.9)
// well enough to exercise the signing & distribution glue in tests and
// local runs, without implementing real dispute resolution.
package dispute

import (
	"context"
	"fmt"
	"time"
)

const timeout = 2 * time.Second

// sendMessage delivers msg on ch, giving up after timeout if the
// receiver is not ready. A full channel is not treated as fatal: the
// coordinator never awaits the dispute coordinator's progress.
func sendMessage(ch chan any, msg any) error {
	select {
	case ch <- msg:
		return nil
	case <-time.After(timeout):
		return nil
	}
}

// call sends msg on receiver and blocks for a reply on response, bounded
// by timeout.
func call(receiver chan any, msg any, response chan any) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case receiver <- msg:
	case <-ctx.Done():
		return nil, fmt.Errorf("dispute: send: %w", ctx.Err())
	}

	select {
	case res := <-response:
		return res, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("dispute: await reply: %w", ctx.Err())
	}
}
