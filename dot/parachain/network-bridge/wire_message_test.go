// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package networkbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parastate/validator-node/lib/common"
)

func TestCompressLargePayloadRoundTrips(t *testing.T) {
	body := make([]byte, 4096)
	for i := range body {
		body[i] = byte(i % 251)
	}

	compressed, err := CompressLargePayload(body)
	require.NoError(t, err)
	assert.NotEqual(t, body, compressed)

	decompressed, err := DecompressLargePayload(compressed)
	require.NoError(t, err)
	assert.Equal(t, body, decompressed)
}

func TestViewEqualIgnoresOrder(t *testing.T) {
	a := View{Heads: []common.Hash{{1}, {2}, {3}}, FinalizedNumber: 5}
	b := View{Heads: []common.Hash{{3}, {1}, {2}}, FinalizedNumber: 5}
	assert.True(t, a.Equal(b))

	c := View{Heads: []common.Hash{{1}, {2}}, FinalizedNumber: 5}
	assert.False(t, a.Equal(c))
}

func TestViewContains(t *testing.T) {
	v := View{Heads: []common.Hash{{1}, {2}}}
	assert.True(t, v.Contains(common.Hash{1}))
	assert.False(t, v.Contains(common.Hash{9}))
}
