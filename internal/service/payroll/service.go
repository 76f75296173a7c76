package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/attendance"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/company"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/leave"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/database"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/lock"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/service/statutory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWorkers bounds concurrent employee resolution when unset.
	DefaultWorkers = 8
	// DefaultRunLockTTL bounds how long a crashed run keeps its period locked.
	DefaultRunLockTTL = 10 * time.Minute
)

// ComplianceSyncer derives filing obligations from a completed run.
type ComplianceSyncer interface {
	SyncFromRun(ctx context.Context, run payroll.PayrollRun) error
}

var _ payroll.PayrollService = (*PayrollServiceImpl)(nil)

type PayrollServiceImpl struct {
	tx         database.Transactor
	locker     lock.Locker
	metrics    *metrics.Metrics
	rules      ruletable.Repository
	compliance ComplianceSyncer
	workers    int
	lockTTL    time.Duration
	norm       int
	now        func() time.Time

	companyRepo    company.CompanyRepository
	employeeRepo   employee.EmployeeRepository
	structureRepo  salary.StructureRepository
	attendanceRepo attendance.AttendanceRepository
	balanceRepo    leave.LeaveBalanceRepository
	payrollRepo    payroll.PayrollRepository
}

// Option customizes PayrollServiceImpl.
type Option func(*PayrollServiceImpl)

// WithWorkers sets the size of the employee worker pool.
func WithWorkers(n int) Option {
	return func(s *PayrollServiceImpl) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRunLockTTL sets the lease of the per-period run lock.
func WithRunLockTTL(ttl time.Duration) Option {
	return func(s *PayrollServiceImpl) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithDefaultNorm sets the working-days norm used when neither the company
// nor the employee configures one.
func WithDefaultNorm(days int) Option {
	return func(s *PayrollServiceImpl) {
		if days > 0 {
			s.norm = days
		}
	}
}

// WithNow replaces the clock used for run timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *PayrollServiceImpl) {
		s.now = now
	}
}

func NewPayrollService(
	tx database.Transactor,
	locker lock.Locker,
	m *metrics.Metrics,
	rules ruletable.Repository,
	compliance ComplianceSyncer,
	companyRepo company.CompanyRepository,
	employeeRepo employee.EmployeeRepository,
	structureRepo salary.StructureRepository,
	attendanceRepo attendance.AttendanceRepository,
	balanceRepo leave.LeaveBalanceRepository,
	payrollRepo payroll.PayrollRepository,
	opts ...Option,
) *PayrollServiceImpl {
	s := &PayrollServiceImpl{
		tx:             tx,
		locker:         locker,
		metrics:        m,
		rules:          rules,
		compliance:     compliance,
		workers:        DefaultWorkers,
		lockTTL:        DefaultRunLockTTL,
		norm:           company.DefaultWorkingDaysNorm,
		now:            time.Now,
		companyRepo:    companyRepo,
		employeeRepo:   employeeRepo,
		structureRepo:  structureRepo,
		attendanceRepo: attendanceRepo,
		balanceRepo:    balanceRepo,
		payrollRepo:    payrollRepo,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// runContext is everything shared by the employees of one run.
type runContext struct {
	run            payroll.PayrollRun
	settings       company.PayrollSettings
	rules          *ruletable.RuleSet
	calculator     *statutory.Calculator
	periodStart    time.Time
	periodEnd      time.Time
	esiPeriod      statutory.ESIPeriod
	attendance     map[string]attendance.Summary
	ledgerLOP      map[string]decimal.Decimal
	determinations map[string]payroll.ESIDetermination
	// subset is set when the request named employees; the rest of the
	// period's records stay current.
	subset bool
}

// employeeOutcome is the result of resolving one employee.
type employeeOutcome struct {
	record        payroll.SalaryRecord
	determination *payroll.ESIDetermination
}

// ========== QUERIES ==========

func (s *PayrollServiceImpl) GetRun(ctx context.Context, companyID string, month, year int) (payroll.PayrollRun, error) {
	return s.payrollRepo.GetRun(ctx, companyID, month, year)
}

func (s *PayrollServiceImpl) ListSalaryRecords(ctx context.Context, companyID string, month, year int) ([]payroll.SalaryRecord, error) {
	if _, err := s.payrollRepo.GetRun(ctx, companyID, month, year); err != nil {
		return nil, err
	}
	return s.payrollRepo.ListRecords(ctx, companyID, month, year)
}

// SyncCompliance rebuilds the obligations of a completed run. It recovers a
// run whose compliance sync failed after the run itself was saved.
func (s *PayrollServiceImpl) SyncCompliance(ctx context.Context, companyID string, month, year int) (payroll.PayrollRun, error) {
	release, err := s.locker.TryAcquire(ctx, lock.PayrollRunKey(companyID, month, year), s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return payroll.PayrollRun{}, payroll.ErrRunInProgress
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to acquire payroll run lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to release payroll run lock", "company_id", companyID, "month", month, "year", year, "error", err)
		}
	}()

	run, err := s.payrollRepo.GetRun(ctx, companyID, month, year)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	if run.Status != payroll.RunCompleted {
		return payroll.PayrollRun{}, fmt.Errorf("run %s is %s: %w", run.ID, run.Status, payroll.ErrRunNotCompleted)
	}
	if err := s.syncCompliance(ctx, run); err != nil {
		return run, err
	}
	slog.Info("Compliance obligations synced", "company_id", companyID, "month", month, "year", year, "run_id", run.ID)
	return run, nil
}

func (s *PayrollServiceImpl) syncCompliance(ctx context.Context, run payroll.PayrollRun) error {
	if s.compliance == nil {
		return nil
	}
	if err := s.compliance.SyncFromRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Error("Failed to sync compliance obligations", "company_id", run.CompanyID, "run_id", run.ID, "error", err)
		return &payroll.ComplianceSyncError{
			RunID:     run.ID,
			CompanyID: run.CompanyID,
			Month:     run.Month,
			Year:      run.Year,
			Err:       err,
		}
	}
	return nil
}

// ========== COMPUTE ==========

// ComputePayroll processes one company period. Per-employee failures are
// reported in the result and never abort the batch; a completed run with
// failures is still completed (see RunResult.Err).
func (s *PayrollServiceImpl) ComputePayroll(ctx context.Context, req payroll.ComputePayrollRequest) (payroll.RunResult, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunResult{}, err
	}

	release, err := s.locker.TryAcquire(ctx, lock.PayrollRunKey(req.CompanyID, req.Month, req.Year), s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return payroll.RunResult{}, payroll.ErrRunInProgress
		}
		return payroll.RunResult{}, fmt.Errorf("failed to acquire payroll run lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to release payroll run lock", "company_id", req.CompanyID, "month", req.Month, "year", req.Year, "error", err)
		}
	}()

	started := s.now()

	run, err := s.loadRun(ctx, req)
	if err != nil {
		return payroll.RunResult{}, err
	}

	rc, err := s.prepare(ctx, req, run)
	if err != nil {
		return payroll.RunResult{}, err
	}

	employees, failures, err := s.selectEmployees(ctx, req, rc)
	if err != nil {
		return payroll.RunResult{}, err
	}

	// Mark the run in progress before any employee is resolved.
	rc.run.Status = payroll.RunInProgress
	rc.run.Revision++
	rc.run.Partial = false
	rc.run.RuleTableVersion = rc.rules.Version
	startedAt := started
	rc.run.StartedAt = &startedAt
	rc.run.CompletedAt = nil
	rc.run, err = s.payrollRepo.SaveRun(ctx, rc.run)
	if err != nil {
		return payroll.RunResult{}, fmt.Errorf("failed to mark payroll run in progress: %w", err)
	}

	slog.Info("Payroll run started",
		"company_id", req.CompanyID,
		"month", req.Month,
		"year", req.Year,
		"revision", rc.run.Revision,
		"employees", len(employees),
		"rule_table_version", rc.rules.Version,
	)

	if err := s.loadInputs(ctx, rc, employees); err != nil {
		s.markFailed(ctx, rc.run)
		s.metrics.RunFinished(string(payroll.RunFailed), s.now().Sub(started))
		return payroll.RunResult{}, err
	}

	outcomes, workerFailures, cancelled := s.resolveAll(ctx, rc, employees)
	failures = append(failures, workerFailures...)

	result, err := s.finalize(ctx, rc, outcomes, failures, cancelled)
	s.metrics.RunFinished(string(result.Run.Status), s.now().Sub(started))
	for _, f := range failures {
		s.metrics.EmployeeFailed(f.Code)
	}
	if err != nil {
		return result, err
	}

	if cancelled {
		slog.Warn("Payroll run cancelled", "company_id", req.CompanyID, "month", req.Month, "year", req.Year, "records", len(result.Records))
		return result, ctx.Err()
	}

	syncErr := s.syncCompliance(ctx, result.Run)

	slog.Info("Payroll run completed",
		"company_id", req.CompanyID,
		"month", req.Month,
		"year", req.Year,
		"revision", result.Run.Revision,
		"records", len(result.Records),
		"failures", len(result.Failures),
		"total_net_pay", result.Run.TotalNetPay.String(),
	)
	return result, syncErr
}

func (s *PayrollServiceImpl) loadRun(ctx context.Context, req payroll.ComputePayrollRequest) (payroll.PayrollRun, error) {
	run, err := s.payrollRepo.GetRun(ctx, req.CompanyID, req.Month, req.Year)
	if errors.Is(err, payroll.ErrRunNotFound) {
		return payroll.PayrollRun{
			ID:        uuid.NewString(),
			CompanyID: req.CompanyID,
			Month:     req.Month,
			Year:      req.Year,
			Status:    payroll.RunNotStarted,
		}, nil
	}
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run: %w", err)
	}

	if run.Status == payroll.RunCompleted && !req.Force {
		return payroll.PayrollRun{}, &payroll.AlreadyProcessedError{
			CompanyID: req.CompanyID,
			Month:     req.Month,
			Year:      req.Year,
			RunID:     run.ID,
		}
	}
	return run, nil
}

func (s *PayrollServiceImpl) prepare(ctx context.Context, req payroll.ComputePayrollRequest, run payroll.PayrollRun) (*runContext, error) {
	settings, err := s.companyRepo.GetPayrollSettings(ctx, req.CompanyID)
	if err != nil {
		return nil, &payroll.ConfigurationError{CompanyID: req.CompanyID, Reason: "payroll settings", Err: err}
	}
	if settings.State == "" {
		return nil, &payroll.ConfigurationError{CompanyID: req.CompanyID, Reason: "establishment state is not configured"}
	}
	if settings.WorkingDaysNorm < 0 {
		return nil, &payroll.ConfigurationError{CompanyID: req.CompanyID, Reason: "working days norm must be positive"}
	}
	if settings.WorkingDaysNorm == 0 {
		settings.WorkingDaysNorm = s.norm
	}

	rc := &runContext{
		run:         run,
		settings:    settings,
		periodStart: run.PeriodStart(),
		periodEnd:   run.PeriodEnd(),
		esiPeriod:   statutory.ESIPeriodOf(req.Month, req.Year),
		subset:      len(req.EmployeeIDs) > 0,
	}

	if settings.RuleTableVersion != nil && *settings.RuleTableVersion != "" {
		rc.rules, err = s.rules.Get(ctx, *settings.RuleTableVersion)
	} else {
		rc.rules, err = s.rules.Effective(ctx, rc.periodEnd)
	}
	if err != nil {
		return nil, &payroll.ConfigurationError{CompanyID: req.CompanyID, Reason: "rule table", Err: err}
	}
	rc.calculator = statutory.NewCalculator(rc.rules)

	return rc, nil
}

// selectEmployees resolves the run population. Explicit IDs that are unknown
// or not employed during the period become failures instead of aborting.
func (s *PayrollServiceImpl) selectEmployees(ctx context.Context, req payroll.ComputePayrollRequest, rc *runContext) ([]employee.Employee, []payroll.EmployeeFailure, error) {
	if len(req.EmployeeIDs) == 0 {
		employees, err := s.employeeRepo.ListForPayroll(ctx, req.CompanyID,
			employee.PayrollStatuses(rc.settings.IncludeOnLeave), rc.periodStart, rc.periodEnd)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list employees: %w", err)
		}
		return employees, nil, nil
	}

	found, err := s.employeeRepo.GetByIDs(ctx, req.CompanyID, req.EmployeeIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get employees: %w", err)
	}
	byID := make(map[string]employee.Employee, len(found))
	for _, emp := range found {
		byID[emp.ID] = emp
	}

	var employees []employee.Employee
	var failures []payroll.EmployeeFailure
	for _, id := range req.EmployeeIDs {
		emp, ok := byID[id]
		if !ok {
			failures = append(failures, payroll.EmployeeFailure{
				EmployeeID: id,
				Code:       payroll.FailureNotFound,
				Message:    employee.ErrEmployeeNotFound.Error(),
			})
			continue
		}
		if !emp.EmployedDuring(rc.periodStart, rc.periodEnd) {
			failures = append(failures, payroll.EmployeeFailure{
				EmployeeID:   id,
				EmployeeCode: emp.EmployeeCode,
				Code:         payroll.FailureNotEligible,
				Message:      "employee is not employed during the period",
			})
			continue
		}
		employees = append(employees, emp)
	}
	return employees, failures, nil
}

// loadInputs fetches the period inputs of every employee in batch.
func (s *PayrollServiceImpl) loadInputs(ctx context.Context, rc *runContext, employees []employee.Employee) error {
	ids := make([]string, 0, len(employees))
	for _, emp := range employees {
		ids = append(ids, emp.ID)
	}
	if len(ids) == 0 {
		rc.attendance = map[string]attendance.Summary{}
		rc.ledgerLOP = map[string]decimal.Decimal{}
		rc.determinations = map[string]payroll.ESIDetermination{}
		return nil
	}

	records, err := s.attendanceRepo.ListForPeriod(ctx, rc.run.CompanyID, ids, rc.periodStart, rc.periodEnd)
	if err != nil {
		return fmt.Errorf("failed to get attendance: %w", err)
	}
	rc.attendance = make(map[string]attendance.Summary, len(ids))
	for _, r := range records {
		summary, ok := rc.attendance[r.EmployeeID]
		if !ok {
			summary = attendance.EmptySummary(r.EmployeeID)
		}
		rc.attendance[r.EmployeeID] = summary.Add(r.Status)
	}

	rc.ledgerLOP, err = s.balanceRepo.LOPDaysBetween(ctx, ids, rc.periodStart, rc.periodEnd)
	if err != nil {
		return fmt.Errorf("failed to get leave loss of pay: %w", err)
	}

	rc.determinations, err = s.payrollRepo.GetESIDeterminations(ctx, ids, rc.esiPeriod.Key())
	if err != nil {
		return fmt.Errorf("failed to get ESI determinations: %w", err)
	}
	return nil
}

// resolveAll fans employees out to a bounded worker pool. Cancellation
// stops dispatching; an employee already being resolved finishes. The
// returned bool reports whether any employee was left unprocessed.
func (s *PayrollServiceImpl) resolveAll(ctx context.Context, rc *runContext, employees []employee.Employee) ([]employeeOutcome, []payroll.EmployeeFailure, bool) {
	var (
		mu       sync.Mutex
		outcomes []employeeOutcome
		failures []payroll.EmployeeFailure
		skipped  int
		g        errgroup.Group
	)
	g.SetLimit(s.workers)

	for i, emp := range employees {
		if ctx.Err() != nil {
			mu.Lock()
			skipped += len(employees) - i
			mu.Unlock()
			break
		}
		emp := emp
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			outcome, failure := s.resolveEmployee(ctx, rc, emp)
			mu.Lock()
			defer mu.Unlock()
			if failure != nil {
				failures = append(failures, *failure)
				return nil
			}
			outcomes = append(outcomes, outcome)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, failures, skipped > 0
}

func (s *PayrollServiceImpl) resolveEmployee(ctx context.Context, rc *runContext, emp employee.Employee) (employeeOutcome, *payroll.EmployeeFailure) {
	fail := func(code string, err error) (employeeOutcome, *payroll.EmployeeFailure) {
		slog.Warn("Employee payroll failed",
			"company_id", rc.run.CompanyID,
			"employee_id", emp.ID,
			"employee_code", emp.EmployeeCode,
			"code", code,
			"error", err,
		)
		return employeeOutcome{}, &payroll.EmployeeFailure{
			EmployeeID:   emp.ID,
			EmployeeCode: emp.EmployeeCode,
			Code:         code,
			Message:      err.Error(),
		}
	}

	if emp.SalaryStructureID == nil || *emp.SalaryStructureID == "" {
		return fail(payroll.FailureNoSalaryStructure, salary.ErrStructureNotFound)
	}
	structure, err := s.structureRepo.GetEffective(ctx, *emp.SalaryStructureID, rc.periodEnd)
	if err != nil {
		if errors.Is(err, salary.ErrStructureNotFound) || errors.Is(err, salary.ErrNoEffectiveRevision) {
			return fail(payroll.FailureNoSalaryStructure, err)
		}
		return fail(payroll.FailureInternal, err)
	}

	norm := rc.settings.Norm()
	if emp.WorkingDaysNorm != nil {
		norm = *emp.WorkingDaysNorm
	}

	summary, ok := rc.attendance[emp.ID]
	if !ok {
		summary = attendance.EmptySummary(emp.ID)
	}
	summary.LOPDays = summary.LOPDays.
		Add(rc.ledgerLOP[emp.ID]).
		Add(EmploymentGapLOP(emp, rc.periodStart, rc.periodEnd, norm))

	resolution, err := Resolve(structure, summary, norm)
	if err != nil {
		return fail(payroll.FailureConfiguration, err)
	}

	var prior *bool
	if det, ok := rc.determinations[emp.ID]; ok && det.Binds(rc.run.Month, rc.run.Year) {
		prior = &det.Eligible
	}
	esiEligible, isNew := statutory.DetermineESI(resolution.GrossEarned, prior, rc.rules.ESI)

	state := emp.Jurisdiction(rc.settings.State)
	contributions, err := rc.calculator.Compute(statutory.Input{
		Month:       rc.run.Month,
		Year:        rc.run.Year,
		BasicWage:   resolution.BasicEarned,
		GrossWage:   resolution.GrossEarned,
		State:       state,
		EPFOptOut:   emp.EPFOptOut,
		ESIEligible: esiEligible,
	})
	if err != nil {
		if errors.Is(err, ruletable.ErrUnsupportedJurisdiction) {
			return fail(payroll.FailureUnsupportedState, err)
		}
		return fail(payroll.FailureInternal, err)
	}

	deductions := payroll.Deductions{
		EPF: contributions.EPF.EmployeeAmount,
		ESI: contributions.ESI.EmployeeAmount,
		PT:  contributions.PT.EmployeeAmount,
		LWF: contributions.LWF.EmployeeAmount,
	}
	outcome := employeeOutcome{
		record: payroll.SalaryRecord{
			ID:               uuid.NewString(),
			RunID:            rc.run.ID,
			Revision:         rc.run.Revision,
			CompanyID:        rc.run.CompanyID,
			EmployeeID:       emp.ID,
			EmployeeCode:     emp.EmployeeCode,
			Month:            rc.run.Month,
			Year:             rc.run.Year,
			State:            state,
			SalaryRevisionID: structure.RevisionID,
			Basis:            resolution.Basis(),
			Earnings:         resolution.Lines,
			BasicEarned:      resolution.BasicEarned,
			GrossEarned:      resolution.GrossEarned,
			Deductions:       deductions,
			Employer: payroll.EmployerContributions{
				EPF: contributions.EPF.EmployerEPF,
				EPS: contributions.EPF.EmployerEPS,
				ESI: contributions.ESI.EmployerAmount,
				PT:  contributions.PT.EmployerAmount,
				LWF: contributions.LWF.EmployerAmount,
			},
			NetPay:      resolution.GrossEarned.Sub(deductions.Total()),
			ESIEligible: esiEligible,
		},
	}

	// A month without wages does not fix eligibility for the period.
	if isNew && resolution.GrossEarned.IsPositive() {
		outcome.determination = &payroll.ESIDetermination{
			EmployeeID: emp.ID,
			PeriodKey:  rc.esiPeriod.Key(),
			Eligible:   esiEligible,
			Month:      rc.run.Month,
			Year:       rc.run.Year,
		}
	}
	return outcome, nil
}

// finalize persists the run outcome in one transaction. It runs detached
// from ctx so a cancelled run still records what was computed. Run totals
// cover every current record of the period, including records of employees
// outside a subset request.
func (s *PayrollServiceImpl) finalize(ctx context.Context, rc *runContext, outcomes []employeeOutcome, failures []payroll.EmployeeFailure, cancelled bool) (payroll.RunResult, error) {
	records := make([]payroll.SalaryRecord, 0, len(outcomes))
	var determinations []payroll.ESIDetermination
	revisionIDs := make([]string, 0, len(outcomes))
	seenRevision := make(map[string]bool)
	for _, o := range outcomes {
		records = append(records, o.record)
		if o.determination != nil {
			determinations = append(determinations, *o.determination)
		}
		if id := o.record.SalaryRevisionID; id != "" && !seenRevision[id] {
			seenRevision[id] = true
			revisionIDs = append(revisionIDs, id)
		}
	}
	payroll.SortRecords(records)
	payroll.SortFailures(failures)

	// A subset run replaces only the employees it recomputed; an employee
	// that failed again keeps its previous record.
	var supersede []string
	if rc.subset {
		for _, rec := range records {
			supersede = append(supersede, rec.EmployeeID)
		}
	}

	run := rc.run
	run.FailureCount = len(failures)
	completedAt := s.now()
	run.CompletedAt = &completedAt
	if cancelled {
		run.Status = payroll.RunFailed
		run.Partial = len(records) > 0
	} else {
		run.Status = payroll.RunCompleted
	}

	persistCtx := context.WithoutCancel(ctx)
	err := s.tx.WithinTransaction(persistCtx, func(txCtx context.Context) error {
		if !rc.subset || len(supersede) > 0 {
			if _, err := s.payrollRepo.SupersedeRecords(txCtx, run.CompanyID, run.Month, run.Year, supersede); err != nil {
				return fmt.Errorf("failed to supersede salary records: %w", err)
			}
		}
		if len(records) > 0 {
			if err := s.payrollRepo.InsertRecords(txCtx, records); err != nil {
				return fmt.Errorf("failed to insert salary records: %w", err)
			}
		}
		if len(determinations) > 0 {
			if err := s.payrollRepo.SaveESIDeterminations(txCtx, determinations); err != nil {
				return fmt.Errorf("failed to save ESI determinations: %w", err)
			}
		}
		if run.Status == payroll.RunCompleted && len(revisionIDs) > 0 {
			if err := s.structureRepo.LockRevisions(txCtx, revisionIDs); err != nil {
				return fmt.Errorf("failed to lock salary structure revisions: %w", err)
			}
		}

		current := records
		if rc.subset {
			var err error
			current, err = s.payrollRepo.ListRecords(txCtx, run.CompanyID, run.Month, run.Year)
			if err != nil {
				return fmt.Errorf("failed to list current salary records: %w", err)
			}
		}
		run.Aggregate(current)

		saved, err := s.payrollRepo.SaveRun(txCtx, run)
		if err != nil {
			return fmt.Errorf("failed to save payroll run: %w", err)
		}
		run = saved
		return nil
	})
	if err != nil {
		s.markFailed(persistCtx, rc.run)
		run.Status = payroll.RunFailed
		return payroll.RunResult{Run: run, Failures: failures}, err
	}

	return payroll.RunResult{Run: run, Records: records, Failures: failures}, nil
}

// markFailed records a run whose results could not be persisted.
func (s *PayrollServiceImpl) markFailed(ctx context.Context, run payroll.PayrollRun) {
	run.Status = payroll.RunFailed
	run.Partial = false
	completedAt := s.now()
	run.CompletedAt = &completedAt
	if _, err := s.payrollRepo.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Error("Failed to mark payroll run failed", "company_id", run.CompanyID, "run_id", run.ID, "error", err)
	}
}
