package leave

import (
	"errors"
	"fmt"
)

var (
	ErrLeaveTypeNotFound   = errors.New("leave type not found")
	ErrLeaveTypeInactive   = errors.New("leave type is inactive")
	ErrBalanceNotFound     = errors.New("leave balance not found, initialize the year first")
	ErrInsufficientBalance = errors.New("insufficient leave balance")
	ErrNotEmployedInYear   = errors.New("employee did not join before the end of the year")
	ErrBalanceExists       = errors.New("leave balance already opened for the year")
)

// InsufficientBalanceError is returned when usage exceeds the balance of a type without LOP conversion.
type InsufficientBalanceError struct {
	EmployeeID  string
	LeaveTypeID string
	Year        int
	Requested   float64
	Available   float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance for employee %s, leave type %s, year %d: requested %.1f, available %.1f",
		e.EmployeeID, e.LeaveTypeID, e.Year, e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}
