package ruletable

import (
	"errors"
	"fmt"
)

var (
	ErrRuleSetNotFound         = errors.New("rule set not found")
	ErrInvalidRuleSet          = errors.New("invalid rule set")
	ErrUnsupportedJurisdiction = errors.New("unsupported jurisdiction")
)

// UnsupportedJurisdictionError - no table for the state under the given scheme
type UnsupportedJurisdictionError struct {
	Scheme  Scheme
	State   State
	Version string
}

func (e *UnsupportedJurisdictionError) Error() string {
	if e.State == "" {
		return fmt.Sprintf("%s: no state configured (rule set %s)", e.Scheme, e.Version)
	}
	return fmt.Sprintf("%s: no table for state %s (rule set %s)", e.Scheme, e.State, e.Version)
}

func (e *UnsupportedJurisdictionError) Unwrap() error {
	return ErrUnsupportedJurisdiction
}
