package company

import "context"

type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (Company, error)
	ListIDs(ctx context.Context) ([]string, error)
	GetPayrollSettings(ctx context.Context, companyID string) (PayrollSettings, error)
}
