package employee

import (
	"context"
	"time"
)

type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (Employee, error)
	GetByIDs(ctx context.Context, companyID string, ids []string) ([]Employee, error)
	// ListForPayroll returns the employees Employee.SelectedForPayroll picks for [start, end].
	ListForPayroll(ctx context.Context, companyID string, statuses []EmploymentStatus, start, end time.Time) ([]Employee, error)
	GetActiveByCompanyID(ctx context.Context, companyID string) ([]Employee, error)
}
