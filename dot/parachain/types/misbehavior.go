// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

// Misbehavior is a provable equivocation by a validator at one relay
// parent, drained from the statement table and forwarded to the
// Provisioner.
type Misbehavior struct {
	// DoubleSeconded holds two conflicting Seconded statements this
	// validator signed at the same relay parent (for two different
	// candidates, or for one candidate under two different signatures),
	// if that is this report's kind.
	DoubleSeconded *DoubleSeconded
	// DoubleValid holds two Valid statements this validator signed for
	// the same candidate under different signatures, if that is this
	// report's kind.
	DoubleValid *DoubleValid
}

// DoubleSeconded is emitted when a validator sends two distinct Seconded
// statements at the same relay parent (S5).
type DoubleSeconded struct {
	First  SignedStatement
	Second SignedStatement
}

// DoubleValid is emitted when a validator sends two distinct Valid votes
// that the table considers contradictory within the same relay parent.
type DoubleValid struct {
	First  SignedStatement
	Second SignedStatement
}

// MisbehaviorReport pairs a Misbehavior with the validator responsible
// and the relay parent it occurred at.
type MisbehaviorReport struct {
	RelayParent Hash
	Validator   ValidatorIndex
	Report      Misbehavior
}
