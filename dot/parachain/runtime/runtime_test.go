// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/parastate/validator-node/pkg/scale"
)

type fakeClient struct {
	calls int
	fails int
	reply []byte
	err   error
}

func (f *fakeClient) Call(result any, method string, args ...any) error {
	f.calls++
	if f.fails > 0 {
		f.fails--
		return errors.New("transient rpc error")
	}
	if f.err != nil {
		return f.err
	}
	ptr := result.(*string)
	*ptr = "0x" + bytesToHex(f.reply)
	return nil
}

func bytesToHex(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0xf]
	}
	return string(out)
}

func TestFetchDecodesAndCaches(t *testing.T) {
	encoded, err := scale.Marshal(parachaintypes.SessionIndex(7))
	require.NoError(t, err)

	client := &fakeClient{reply: encoded}
	api := NewAPI(client, 16)

	v, err := fetch[parachaintypes.SessionIndex](api, parachaintypes.Hash{1}, "ParachainHost_session_index_for_child")
	require.NoError(t, err)
	assert.Equal(t, parachaintypes.SessionIndex(7), v)
	assert.Equal(t, 1, client.calls)

	v, err = fetch[parachaintypes.SessionIndex](api, parachaintypes.Hash{1}, "ParachainHost_session_index_for_child")
	require.NoError(t, err)
	assert.Equal(t, parachaintypes.SessionIndex(7), v)
	assert.Equal(t, 1, client.calls, "second fetch should be served from cache")
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	encoded, err := scale.Marshal(parachaintypes.SessionIndex(3))
	require.NoError(t, err)

	client := &fakeClient{reply: encoded, fails: 2}
	api := NewAPI(client, 16)

	v, err := fetch[parachaintypes.SessionIndex](api, parachaintypes.Hash{2}, "ParachainHost_session_index_for_child")
	require.NoError(t, err)
	assert.Equal(t, parachaintypes.SessionIndex(3), v)
	assert.Equal(t, 3, client.calls)
}

func TestFetchGivesUpAfterRetriesExhausted(t *testing.T) {
	client := &fakeClient{fails: 100}
	api := NewAPI(client, 16)

	_, err := fetch[parachaintypes.SessionIndex](api, parachaintypes.Hash{3}, "ParachainHost_session_index_for_child")
	require.Error(t, err)
	assert.Equal(t, api.retries+1, client.calls)
}
