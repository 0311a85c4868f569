// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/parastate/validator-node/lib/crypto/sr25519"
)

func sr25519Verify(
	validatorID parachaintypes.ValidatorID,
	payload []byte,
	signature parachaintypes.ValidatorSignature,
) (bool, error) {
	return sr25519.Verify(sr25519.PublicKey(validatorID), payload, sr25519.Signature(signature))
}
