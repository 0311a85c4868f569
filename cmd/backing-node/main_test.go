// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersExpectedFlags(t *testing.T) {
	cmd := newRootCommand()

	for _, name := range []string{
		"rpc-endpoint", "keystore-path", "para-id",
		"log-level", "metrics-bind", "runtime-cache-size",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "expected flag %q to be registered", name)
	}

	level, err := cmd.Flags().GetString("log-level")
	require.NoError(t, err)
	assert.Equal(t, "info", level)
}
