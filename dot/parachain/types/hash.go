// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import "github.com/parastate/validator-node/lib/common"

func hashBlake2b(data []byte) (Hash, error) {
	return common.Blake2bHash(data)
}
