package payroll

import "context"

// PayrollRepository defines data access methods for payroll.
// All methods include companyID parameter to prevent cross-company data access.
type PayrollRepository interface {
	// Runs
	GetRun(ctx context.Context, companyID string, month, year int) (PayrollRun, error)
	// SaveRun inserts or updates the run of (company, month, year).
	SaveRun(ctx context.Context, run PayrollRun) (PayrollRun, error)

	// Salary records
	// SupersedeRecords flags the current records of the period before a new revision is
	// written. Empty employeeIDs supersedes every employee of the period.
	SupersedeRecords(ctx context.Context, companyID string, month, year int, employeeIDs []string) (int64, error)
	InsertRecords(ctx context.Context, records []SalaryRecord) error
	// ListRecords returns the current (non-superseded) records ordered by employee code.
	ListRecords(ctx context.Context, companyID string, month, year int) ([]SalaryRecord, error)

	// ESI determinations
	GetESIDeterminations(ctx context.Context, employeeIDs []string, periodKey string) (map[string]ESIDetermination, error)
	// SaveESIDeterminations keeps the earliest determination of each (employee, period);
	// a determination from the same or an earlier month replaces the stored one.
	SaveESIDeterminations(ctx context.Context, determinations []ESIDetermination) error
}
