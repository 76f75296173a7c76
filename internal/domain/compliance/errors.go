package compliance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound      = errors.New("compliance item not found")
	ErrInvalidType       = errors.New("invalid compliance obligation type")
	ErrAmbiguousState    = errors.New("obligation is filed per state, state is required")
	ErrAlreadyFiled      = errors.New("compliance obligation already filed")
	ErrAmountMismatch    = errors.New("filed amount does not match the obligation amount")
	ErrInvalidTransition = errors.New("invalid compliance status transition")
)

// AmountMismatchError - the filed amount differs from the computed obligation
type AmountMismatchError struct {
	ItemID   string
	Expected decimal.Decimal
	Got      decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("compliance item %s: expected amount %s, got %s", e.ItemID, e.Expected.StringFixed(2), e.Got.StringFixed(2))
}

func (e *AmountMismatchError) Unwrap() error {
	return ErrAmountMismatch
}
