package payroll

import "context"

type PayrollService interface {
	ComputePayroll(ctx context.Context, req ComputePayrollRequest) (RunResult, error)
	GetRun(ctx context.Context, companyID string, month, year int) (PayrollRun, error)
	ListSalaryRecords(ctx context.Context, companyID string, month, year int) ([]SalaryRecord, error)
	// SyncCompliance rebuilds the compliance obligations of a completed run.
	SyncCompliance(ctx context.Context, companyID string, month, year int) (PayrollRun, error)
}
