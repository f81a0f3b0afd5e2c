package dex

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrSignatureMismatch = errors.New("event signature mismatch")
	ErrFieldTypeMismatch = errors.New("field type mismatch")
	ErrAmountOverflow    = errors.New("amount overflow")
)

// SignatureMismatchError is returned when topic0 is not the expected event id.
type SignatureMismatchError struct {
	Want common.Hash
	Got  *common.Hash
}

func (e *SignatureMismatchError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("event signature mismatch: want %s, log has no topics", e.Want.Hex())
	}
	return fmt.Sprintf("event signature mismatch: want %s, got %s", e.Want.Hex(), e.Got.Hex())
}

func (e *SignatureMismatchError) Is(target error) bool {
	return target == ErrSignatureMismatch
}

// FieldTypeMismatchError is returned when a required field is absent or has the wrong shape.
type FieldTypeMismatchError struct {
	Field  string
	Reason string
}

func (e *FieldTypeMismatchError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

func (e *FieldTypeMismatchError) Is(target error) bool {
	return target == ErrFieldTypeMismatch
}

// AmountOverflowError is returned when an amount does not fit in 128 signed bits.
type AmountOverflowError struct {
	Field string
	Raw   string
}

func (e *AmountOverflowError) Error() string {
	return fmt.Sprintf("field %s: amount overflows int128 (raw %s)", e.Field, e.Raw)
}

func (e *AmountOverflowError) Is(target error) bool {
	return target == ErrAmountOverflow
}
