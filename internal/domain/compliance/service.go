package compliance

import (
	"context"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
)

type ComplianceService interface {
	SyncFromRun(ctx context.Context, run payroll.PayrollRun) error
	GetComplianceObligations(ctx context.Context, companyID string, month, year int) ([]ComplianceItem, error)
	StartFiling(ctx context.Context, req StartFilingRequest) (ComplianceItem, error)
	FileObligation(ctx context.Context, req FileObligationRequest) (ComplianceItem, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]ComplianceItem, error)
}
