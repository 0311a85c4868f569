// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import "fmt"

const (
	povDataVariantReady               uint = 1
	povDataVariantFetchFromValidator  uint = 2
)

// FetchFromValidator describes where to request a candidate's PoV from
// when the coordinator does not already hold it.
type FetchFromValidator struct {
	From          ValidatorIndex
	CandidateHash CandidateHash
	PovHash       Hash
}

// PoVData is either an already-available PoV or a request to fetch one
// from a specific peer validator.
type PoVData struct {
	value any // PoV | FetchFromValidator
}

// NewPoVDataReady wraps an already-available PoV.
func NewPoVDataReady(pov PoV) PoVData { return PoVData{value: pov} }

// NewPoVDataFetchFromValidator wraps a fetch request.
func NewPoVDataFetchFromValidator(f FetchFromValidator) PoVData { return PoVData{value: f} }

// Index implements scale.VaryingDataType.
func (p PoVData) Index() uint {
	switch p.value.(type) {
	case PoV:
		return povDataVariantReady
	case FetchFromValidator:
		return povDataVariantFetchFromValidator
	default:
		return 0
	}
}

// Value implements scale.VaryingDataType.
func (p PoVData) Value() any { return p.value }

// Set implements scale.VaryingDataType.
func (p *PoVData) Set(val any) error {
	switch val.(type) {
	case PoV, FetchFromValidator:
		p.value = val
		return nil
	default:
		return fmt.Errorf("povdata: unsupported variant value %T", val)
	}
}

// Ready reports whether the PoV is already in hand.
func (p PoVData) Ready() (PoV, bool) {
	pov, ok := p.value.(PoV)
	return pov, ok
}

// FetchFromValidator reports whether the PoV must be fetched, and from
// where.
func (p PoVData) FetchFromValidator() (FetchFromValidator, bool) {
	f, ok := p.value.(FetchFromValidator)
	return f, ok
}
