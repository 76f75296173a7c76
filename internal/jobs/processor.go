package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/company"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/compliance"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/leave"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/metrics"
	"github.com/hibiken/asynq"
)

// Processor executes the background jobs. The same methods back the asynq
// handlers and the in-process cron fallback.
type Processor struct {
	payroll    payroll.PayrollService
	compliance compliance.ComplianceService
	ledger     leave.LedgerService
	companies  company.CompanyRepository
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewProcessor(
	payrollSvc payroll.PayrollService,
	complianceSvc compliance.ComplianceService,
	ledger leave.LedgerService,
	companies company.CompanyRepository,
	m *metrics.Metrics,
) *Processor {
	return &Processor{
		payroll:    payrollSvc,
		compliance: complianceSvc,
		ledger:     ledger,
		companies:  companies,
		metrics:    m,
		now:        time.Now,
	}
}

// ========== ASYNQ HANDLERS ==========

func (p *Processor) HandleComputePayroll(ctx context.Context, t *asynq.Task) error {
	var payload ComputePayrollPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return p.ComputePayroll(ctx, payload.Request())
}

func (p *Processor) HandleOverdueScan(ctx context.Context, _ *asynq.Task) error {
	return p.ScanOverdue(ctx)
}

func (p *Processor) HandleLeaveInitializeYear(ctx context.Context, t *asynq.Task) error {
	var payload LeaveInitializeYearPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
	}
	return p.InitializeLeaveYear(ctx, payload.Year)
}

// ========== JOBS ==========

// ComputePayroll runs a queued payroll request. Requests that can never
// succeed are not retried; a held period lock is.
func (p *Processor) ComputePayroll(ctx context.Context, req payroll.ComputePayrollRequest) (err error) {
	tracker := p.metrics.Track(TaskComputePayroll)
	defer func() { err = tracker.End(err) }()

	req.Async = false
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid payroll task: %v: %w", err, asynq.SkipRetry)
	}

	result, err := p.payroll.ComputePayroll(ctx, req)
	var syncErr *payroll.ComplianceSyncError
	if errors.As(err, &syncErr) {
		// The run is saved; retrying the task would only hit the completed run.
		if _, err := p.payroll.SyncCompliance(ctx, req.CompanyID, req.Month, req.Year); err != nil {
			return fmt.Errorf("run %s completed without compliance obligations: %v: %w", syncErr.RunID, err, asynq.SkipRetry)
		}
		err = nil
	}
	if err != nil {
		switch {
		case errors.Is(err, payroll.ErrAlreadyProcessed), errors.Is(err, payroll.ErrConfiguration):
			slog.Warn("Queued payroll run rejected", "company_id", req.CompanyID, "month", req.Month, "year", req.Year, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		default:
			return fmt.Errorf("failed to compute payroll: %w", err)
		}
	}

	if partial := result.Err(); partial != nil {
		slog.Warn("Queued payroll run completed with failures", "run_id", result.Run.ID, "failures", len(result.Failures), "error", partial)
		return nil
	}
	slog.Info("Queued payroll run completed", "run_id", result.Run.ID, "records", len(result.Records))
	return nil
}

// ScanOverdue refreshes the overdue gauges and logs each overdue obligation.
func (p *Processor) ScanOverdue(ctx context.Context) (err error) {
	tracker := p.metrics.Track(TaskOverdueScan)
	defer func() { err = tracker.End(err) }()

	items, err := p.compliance.ListOverdue(ctx, p.now())
	if err != nil {
		return fmt.Errorf("failed to list overdue obligations: %w", err)
	}
	for _, item := range items {
		slog.Warn("Compliance obligation overdue",
			"company_id", item.CompanyID,
			"type", item.Type,
			"state", item.State,
			"period", fmt.Sprintf("%04d-%02d", item.Year, item.Month),
			"due_date", item.DueDate.Format(time.DateOnly),
			"amount", item.Amount.StringFixed(2),
		)
	}
	slog.Info("Compliance overdue scan finished", "overdue", len(items))
	return nil
}

// InitializeLeaveYear opens leave balances for every company. A company that
// fails does not stop the others; the failures are returned together.
func (p *Processor) InitializeLeaveYear(ctx context.Context, year int) (err error) {
	tracker := p.metrics.Track(TaskLeaveInitializeYear)
	defer func() { err = tracker.End(err) }()

	if year == 0 {
		year = p.now().Year()
	}

	companyIDs, err := p.companies.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list companies: %w", err)
	}

	var errs []error
	total := 0
	for _, companyID := range companyIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := p.ledger.InitializeCompanyYear(ctx, companyID, year)
		if err != nil {
			slog.Error("Failed to initialize leave year", "company_id", companyID, "year", year, "error", err)
			errs = append(errs, fmt.Errorf("company %s: %w", companyID, err))
			continue
		}
		total += n
	}

	slog.Info("Leave year initialization finished", "year", year, "companies", len(companyIDs), "employees", total, "failed_companies", len(errs))
	return errors.Join(errs...)
}
