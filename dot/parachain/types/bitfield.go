// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"errors"
	"io"
)

var errUnsupportedBitfieldLength = errors.New("bitfield: length prefix too large for this codec")

// Bitfield is a fixed-length bitvector, used for BackedCandidate's
// validator_indices: bit i set means the i-th member of the assigned
// group contributed a vote.
type Bitfield struct {
	bits []bool
}

// NewBitfield allocates a zeroed Bitfield of the given length.
func NewBitfield(length int) Bitfield {
	return Bitfield{bits: make([]bool, length)}
}

// Len returns the bitfield's fixed length.
func (b Bitfield) Len() int { return len(b.bits) }

// Set marks bit i.
func (b *Bitfield) Set(i int) {
	b.bits[i] = true
}

// Get reads bit i.
func (b Bitfield) Get(i int) bool {
	return b.bits[i]
}

// Count returns the number of set bits.
func (b Bitfield) Count() int {
	n := 0
	for _, bit := range b.bits {
		if bit {
			n++
		}
	}
	return n
}

// MarshalSCALE encodes the bitfield as length-prefixed bytes, one byte
// per bit for simplicity and unambiguous round-tripping.
func (b Bitfield) MarshalSCALE() ([]byte, error) {
	out := make([]byte, 0, len(b.bits)+4)
	out = appendCompact(out, uint64(len(b.bits)))
	for _, bit := range b.bits {
		if bit {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out, nil
}

func appendCompact(out []byte, n uint64) []byte {
	// Mirrors pkg/scale's compact encoding for the small lengths a group
	// bitfield will ever have.
	if n < 1<<6 {
		return append(out, byte(n<<2))
	}
	b0 := byte(n<<2) | 0b01
	b1 := byte(n >> 6)
	return append(out, b0, b1)
}

// UnmarshalSCALE decodes a bitfield encoded by MarshalSCALE.
func (b *Bitfield) UnmarshalSCALE(r io.Reader) error {
	first, err := readByte(r)
	if err != nil {
		return err
	}
	var length uint64
	switch first & 0b11 {
	case 0b00:
		length = uint64(first >> 2)
	case 0b01:
		second, err := readByte(r)
		if err != nil {
			return err
		}
		length = (uint64(second)<<8 | uint64(first)) >> 2
	default:
		return errUnsupportedBitfieldLength
	}
	bits := make([]bool, length)
	for i := range bits {
		v, err := readByte(r)
		if err != nil {
			return err
		}
		bits[i] = v != 0
	}
	b.bits = bits
	return nil
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
