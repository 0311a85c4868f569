// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package runtime is the Runtime API gateway: it answers the backing
// coordinator's per-relay-parent questions (§4.3's Validators,
// ValidatorGroups, SessionIndexForChild, AvailabilityCores,
// AsyncBackingEnabled) by calling the relay chain's ParachainHost
// runtime API over RPC, retrying transient call failures and caching
// answers that never change within a session.
package runtime

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/karlseguin/ccache/v3"

	"github.com/parastate/validator-node/dot/parachain/overseer"
	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/parastate/validator-node/internal/log"
	"github.com/parastate/validator-node/pkg/scale"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-runtime"))

// cacheTTL bounds how long a per-relay-parent runtime answer is reused.
// Session data is immutable for the relay parent it was fetched at, but
// the cache is time- rather than leaf-lifetime-bounded to keep this
// package independent of the coordinator's active-leaves bookkeeping.
const cacheTTL = 2 * time.Minute

// Client is the seam onto the relay chain's JSON-RPC `state_call`
// endpoint: the one method every ParachainHost runtime API query in
// this package goes through.
type Client interface {
	Call(result any, method string, args ...any) error
}

// API is the Runtime API gateway subsystem. It answers
// parachaintypes.RuntimeAPIMessage by invoking the named ParachainHost
// entry point through Client and decoding the SCALE-encoded hex reply.
// The raw reply bytes are cached for cacheTTL; a cache hit is decoded
// again.
type API struct {
	client  Client
	cache   *ccache.Cache[[]byte]
	retries int
}

// NewAPI builds a Runtime API gateway around client, caching raw
// replies for up to maxEntries distinct (relay parent, query) pairs.
func NewAPI(client Client, maxEntries int64) *API {
	return &API{
		client:  client,
		cache:   ccache.New(ccache.Configure[[]byte]().MaxSize(maxEntries)),
		retries: 3,
	}
}

// Name returns the name of the subsystem.
func (*API) Name() string { return "runtime-api" }

// ProcessActiveLeavesUpdate is a no-op: cached answers are keyed by
// relay parent and expire on their own; there is nothing to prune
// eagerly on leaf deactivation.
func (*API) ProcessActiveLeavesUpdate(overseer.ActiveLeavesUpdate) error { return nil }

// Stop is a no-op; Run returns when its Context's Receiver is closed.
func (*API) Stop() {}

// Run drains ctx.Receiver, answering every RuntimeAPIMessage it sees
// until the channel is closed.
func (a *API) Run(ctx *overseer.Context) error {
	for msg := range ctx.Receiver {
		switch req := msg.(type) {
		case parachaintypes.RuntimeAPIMessage:
			a.handle(req)
		case *overseer.ActivatedLeaf:
			// answers are fetched lazily, per query, not eagerly per leaf
		default:
			logger.Errorf("%s: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
		}
	}
	return nil
}

func (a *API) handle(req parachaintypes.RuntimeAPIMessage) {
	switch {
	case req.Request.Validators != nil:
		v, err := fetch[[]parachaintypes.ValidatorID](a, req.RelayParent, "ParachainHost_validators")
		*req.Request.Validators <- parachaintypes.OverseerFuncRes[[]parachaintypes.ValidatorID]{Data: v, Err: err}
	case req.Request.ValidatorGroups != nil:
		v, err := fetch[parachaintypes.ValidatorGroupsResult](a, req.RelayParent, "ParachainHost_validator_groups")
		*req.Request.ValidatorGroups <- parachaintypes.OverseerFuncRes[parachaintypes.ValidatorGroupsResult]{Data: v, Err: err}
	case req.Request.SessionIndexForChild != nil:
		v, err := fetch[parachaintypes.SessionIndex](a, req.RelayParent, "ParachainHost_session_index_for_child")
		*req.Request.SessionIndexForChild <- parachaintypes.OverseerFuncRes[parachaintypes.SessionIndex]{Data: v, Err: err}
	case req.Request.AvailabilityCores != nil:
		v, err := fetch[[]parachaintypes.CoreState](a, req.RelayParent, "ParachainHost_availability_cores")
		*req.Request.AvailabilityCores <- parachaintypes.OverseerFuncRes[[]parachaintypes.CoreState]{Data: v, Err: err}
	case req.Request.AsyncBackingEnabled != nil:
		v, err := fetch[bool](a, req.RelayParent, "ParachainHost_async_backing_params")
		*req.Request.AsyncBackingEnabled <- parachaintypes.OverseerFuncRes[bool]{Data: v, Err: err}
	default:
		logger.Errorf("%s: empty RuntimeAPIRequest", parachaintypes.ErrUnknownOverseerMessage)
	}
}

// fetch answers one ParachainHost entry point at relayParent, serving a
// cached decode when available and retrying the RPC call with
// exponential backoff when it is not.
func fetch[T any](a *API, relayParent parachaintypes.Hash, method string) (T, error) {
	var zero T
	key := fmt.Sprintf("%x:%s", relayParent[:], method)

	if item := a.cache.Get(key); item != nil && !item.Expired() {
		var v T
		if err := scale.Unmarshal(item.Value(), &v); err == nil {
			return v, nil
		}
	}

	raw, err := a.callWithRetry(relayParent, method)
	if err != nil {
		return zero, err
	}

	var v T
	if err := scale.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("runtime: decode %s reply: %w", method, err)
	}
	a.cache.Set(key, raw, cacheTTL)
	return v, nil
}

// callWithRetry invokes state_call for method at relayParent, retrying
// transient failures with jittered exponential backoff before giving up.
func (a *API) callWithRetry(relayParent parachaintypes.Hash, method string) ([]byte, error) {
	b := &backoff.Backoff{Min: 50 * time.Millisecond, Max: 2 * time.Second, Factor: 2, Jitter: true}

	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(b.Duration())
		}
		var reply string
		lastErr = a.client.Call(&reply, "state_call", method, "0x", hexHash(relayParent))
		if lastErr == nil {
			decoded, decodeErr := hex.DecodeString(trim0x(reply))
			if decodeErr != nil {
				return nil, fmt.Errorf("runtime: decode %s hex reply: %w", method, decodeErr)
			}
			return decoded, nil
		}
		logger.Warnf("runtime: %s attempt %d: %s", method, attempt, lastErr)
	}
	return nil, fmt.Errorf("runtime: %s: %w", method, lastErr)
}

func hexHash(h parachaintypes.Hash) string {
	return "0x" + hex.EncodeToString(h[:])
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
