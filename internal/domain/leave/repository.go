package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LeaveTypeRepository - interface for leave_types table
type LeaveTypeRepository interface {
	GetByID(ctx context.Context, id string) (LeaveType, error)
	GetActiveByCompanyID(ctx context.Context, companyID string) ([]LeaveType, error)
}

// LeaveBalanceRepository - interface for leave_balances and leave_lop_entries tables
type LeaveBalanceRepository interface {
	GetByEmployeeYear(ctx context.Context, employeeID string, year int) ([]LeaveBalance, error)
	// GetForUpdate locks the row for the rest of the surrounding transaction.
	GetForUpdate(ctx context.Context, employeeID, leaveTypeID string, year int) (LeaveBalance, error)
	Create(ctx context.Context, balance LeaveBalance) (LeaveBalance, error)
	UpdateUsage(ctx context.Context, balance LeaveBalance) error
	AddLOPEntry(ctx context.Context, entry LOPEntry) error
	// LOPDaysBetween sums converted usage per employee for entries dated within [start, end].
	LOPDaysBetween(ctx context.Context, employeeIDs []string, start, end time.Time) (map[string]decimal.Decimal, error)
}
