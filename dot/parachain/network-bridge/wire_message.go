// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package networkbridge carries a freshly signed local statement (C9's
// `Share(relay_parent, signed)`) onto the peer-to-peer wire, and tracks
// which relay parents each peer has announced interest in so a
// statement is only gossiped to peers who can use it.
package networkbridge

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/parastate/validator-node/lib/common"
	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/parastate/validator-node/pkg/scale"
)

const (
	wireMessageVariantStatement    uint = 1
	wireMessageVariantView         uint = 2
	wireMessageVariantLargePayload uint = 3
)

// LargePayloadAnnouncement is gossiped instead of a full Seconded
// statement when its payload is large (e.g. it carries a runtime
// upgrade): peers fetch the full statement from the sender over
// request/response and use this only to learn that it exists.
type LargePayloadAnnouncement struct {
	RelayParent   common.Hash
	CandidateHash parachaintypes.CandidateHash
	SignedBy      parachaintypes.ValidatorIndex
	Signature     parachaintypes.ValidatorSignature
}

// WireMessage is the envelope exchanged between network-bridge peers:
// a statement announcement, a large-payload announcement, or a view
// update.
type WireMessage struct {
	value any // StatementDistributionMessage | LargePayloadAnnouncement | View
}

// NewStatementWireMessage wraps a signed statement for gossip to peers
// who have this relay parent in their View.
func NewStatementWireMessage(relayParent common.Hash, signed parachaintypes.SignedStatement) WireMessage {
	return WireMessage{value: StatementDistributionMessage{RelayParent: relayParent, Statement: signed}}
}

// NewViewWireMessage wraps a view update.
func NewViewWireMessage(v View) WireMessage {
	return WireMessage{value: v}
}

// NewLargePayloadWireMessage wraps a large-payload announcement.
func NewLargePayloadWireMessage(a LargePayloadAnnouncement) WireMessage {
	return WireMessage{value: a}
}

// StatementDistributionMessage is the wire shape of a gossiped
// statement: the relay parent it concerns, plus the signed statement
// itself.
type StatementDistributionMessage struct {
	RelayParent common.Hash
	Statement   parachaintypes.SignedStatement
}

// Index implements scale.VaryingDataType.
func (w WireMessage) Index() uint {
	switch w.value.(type) {
	case StatementDistributionMessage:
		return wireMessageVariantStatement
	case View:
		return wireMessageVariantView
	case LargePayloadAnnouncement:
		return wireMessageVariantLargePayload
	default:
		return 0
	}
}

// Value implements scale.VaryingDataType.
func (w WireMessage) Value() any { return w.value }

// Set implements scale.VaryingDataType.
func (w *WireMessage) Set(val any) error {
	switch val.(type) {
	case StatementDistributionMessage, View, LargePayloadAnnouncement:
		w.value = val
		return nil
	default:
		return fmt.Errorf("wire message: unsupported variant value %T", val)
	}
}

// Encode SCALE-encodes the wire message.
func (w WireMessage) Encode() ([]byte, error) {
	enc, err := scale.Marshal(w.value)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(w.Index())}, enc...), nil
}

// Hash returns the blake2b hash of the encoded message, used for gossip
// deduplication.
func (w WireMessage) Hash() (common.Hash, error) {
	enc, err := w.Encode()
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot encode message: %w", err)
	}
	return common.Blake2bHash(enc)
}

// CompressLargePayload zstd-compresses a full statement body for the
// request/response fetch a LargePayloadAnnouncement points peers at:
// the whole reason the payload is announced rather than gossiped inline
// is its size, so the fetch response is worth compressing.
func CompressLargePayload(body []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("large payload: new zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(body, nil), nil
}

// DecompressLargePayload reverses CompressLargePayload on the
// requesting peer.
func DecompressLargePayload(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("large payload: new zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("large payload: decompress: %w", err)
	}
	return out, nil
}

// View is a succinct representation of a peer's interest: a bounded set
// of relay-chain leaves it is actively backing against.
type View struct {
	Heads           []common.Hash
	FinalizedNumber uint32
}

// SortableHeads provides a stable ordering for View comparison.
type SortableHeads []common.Hash

func (s SortableHeads) Len() int      { return len(s) }
func (s SortableHeads) Less(i, j int) bool { return s[i].String() > s[j].String() }
func (s SortableHeads) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

// Equal reports whether v and other announce the same set of heads,
// irrespective of order.
func (v View) Equal(other View) bool {
	if len(v.Heads) != len(other.Heads) {
		return false
	}
	localHeads := append([]common.Hash{}, v.Heads...)
	sort.Sort(SortableHeads(localHeads))
	otherHeads := append([]common.Hash{}, other.Heads...)
	sort.Sort(SortableHeads(otherHeads))
	return reflect.DeepEqual(localHeads, otherHeads)
}

// Contains reports whether relayParent is one of the peer's announced
// heads.
func (v View) Contains(relayParent common.Hash) bool {
	for _, h := range v.Heads {
		if h == relayParent {
			return true
		}
	}
	return false
}
