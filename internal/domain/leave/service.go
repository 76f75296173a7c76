package leave

import "context"

type LedgerService interface {
	InitializeYear(ctx context.Context, employeeID string, year int) ([]LeaveBalance, error)
	// InitializeCompanyYear opens the year for every active employee and returns how many were initialized.
	InitializeCompanyYear(ctx context.Context, companyID string, year int) (int, error)
	RecordUsage(ctx context.Context, req RecordUsageRequest) (LeaveBalance, error)
	GetBalances(ctx context.Context, employeeID string, year int) ([]LeaveBalance, error)
}
