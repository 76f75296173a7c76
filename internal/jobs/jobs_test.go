package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/company"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/compliance"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/leave"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/metrics"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========== FAKES ==========

type fakePayroll struct {
	calls     []payroll.ComputePayrollRequest
	res       payroll.RunResult
	err       error
	syncCalls int
	syncErr   error
}

func (f *fakePayroll) ComputePayroll(ctx context.Context, req payroll.ComputePayrollRequest) (payroll.RunResult, error) {
	f.calls = append(f.calls, req)
	return f.res, f.err
}

func (f *fakePayroll) GetRun(ctx context.Context, companyID string, month, year int) (payroll.PayrollRun, error) {
	return payroll.PayrollRun{}, payroll.ErrRunNotFound
}

func (f *fakePayroll) ListSalaryRecords(ctx context.Context, companyID string, month, year int) ([]payroll.SalaryRecord, error) {
	return nil, payroll.ErrRunNotFound
}

func (f *fakePayroll) SyncCompliance(ctx context.Context, companyID string, month, year int) (payroll.PayrollRun, error) {
	f.syncCalls++
	return f.res.Run, f.syncErr
}

type fakeCompliance struct {
	asOf  time.Time
	items []compliance.ComplianceItem
}

func (f *fakeCompliance) SyncFromRun(ctx context.Context, run payroll.PayrollRun) error { return nil }

func (f *fakeCompliance) GetComplianceObligations(ctx context.Context, companyID string, month, year int) ([]compliance.ComplianceItem, error) {
	return nil, nil
}

func (f *fakeCompliance) StartFiling(ctx context.Context, req compliance.StartFilingRequest) (compliance.ComplianceItem, error) {
	return compliance.ComplianceItem{}, nil
}

func (f *fakeCompliance) FileObligation(ctx context.Context, req compliance.FileObligationRequest) (compliance.ComplianceItem, error) {
	return compliance.ComplianceItem{}, nil
}

func (f *fakeCompliance) ListOverdue(ctx context.Context, asOf time.Time) ([]compliance.ComplianceItem, error) {
	f.asOf = asOf
	return f.items, nil
}

type fakeLedger struct {
	years  map[string]int
	failOn string
}

func (f *fakeLedger) InitializeYear(ctx context.Context, employeeID string, year int) ([]leave.LeaveBalance, error) {
	return nil, nil
}

func (f *fakeLedger) InitializeCompanyYear(ctx context.Context, companyID string, year int) (int, error) {
	if companyID == f.failOn {
		return 0, errors.New("connection reset")
	}
	f.years[companyID] = year
	return 3, nil
}

func (f *fakeLedger) RecordUsage(ctx context.Context, req leave.RecordUsageRequest) (leave.LeaveBalance, error) {
	return leave.LeaveBalance{}, nil
}

func (f *fakeLedger) GetBalances(ctx context.Context, employeeID string, year int) ([]leave.LeaveBalance, error) {
	return nil, nil
}

type fakeCompanies struct {
	ids []string
}

func (f *fakeCompanies) GetByID(ctx context.Context, id string) (company.Company, error) {
	return company.Company{ID: id}, nil
}

func (f *fakeCompanies) ListIDs(ctx context.Context) ([]string, error) {
	return f.ids, nil
}

func (f *fakeCompanies) GetPayrollSettings(ctx context.Context, companyID string) (company.PayrollSettings, error) {
	return company.PayrollSettings{}, company.ErrPayrollSettingsNotFound
}

type fixture struct {
	processor  *Processor
	payroll    *fakePayroll
	compliance *fakeCompliance
	ledger     *fakeLedger
}

func newFixture(companyIDs ...string) *fixture {
	f := &fixture{
		payroll:    &fakePayroll{},
		compliance: &fakeCompliance{},
		ledger:     &fakeLedger{years: map[string]int{}},
	}
	f.processor = NewProcessor(f.payroll, f.compliance, f.ledger, &fakeCompanies{ids: companyIDs}, metrics.New())
	f.processor.now = func() time.Time { return time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC) }
	return f
}

// ========== TASKS ==========

func TestComputePayrollTaskID(t *testing.T) {
	req := payroll.ComputePayrollRequest{CompanyID: "c-1", Month: 3, Year: 2025}
	assert.Equal(t, "payroll:compute:c-1:2025-03", ComputePayrollTaskID(req))

	req.Force = true
	assert.Equal(t, "payroll:compute:c-1:2025-03:force", ComputePayrollTaskID(req))
}

func TestNewComputePayrollTask_RoundTripsRequest(t *testing.T) {
	// Setup
	req := payroll.ComputePayrollRequest{CompanyID: "c-1", Month: 3, Year: 2025, EmployeeIDs: []string{"e-1"}, Force: true, Async: true}

	// Act
	task, err := NewComputePayrollTask(req)
	require.NoError(t, err)

	var payload ComputePayrollPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))

	// Assert
	assert.Equal(t, TaskComputePayroll, task.Type())
	got := payload.Request()
	assert.Equal(t, "c-1", got.CompanyID)
	assert.Equal(t, []string{"e-1"}, got.EmployeeIDs)
	assert.True(t, got.Force)
	assert.False(t, got.Async)
}

// ========== CLIENT ==========

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestClient_EnqueueComputePayroll(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	req := payroll.ComputePayrollRequest{CompanyID: "c-1", Month: 1, Year: 2025}

	// Act
	queued, err := client.EnqueueComputePayroll(ctx, req)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "payroll:compute:c-1:2025-01", queued.TaskID)
	assert.Equal(t, QueuePayroll, queued.Queue)
	assert.Equal(t, 1, queued.Month)
	assert.Equal(t, 2025, queued.Year)
	assert.True(t, mr.Exists("asynq:{payroll}:t:payroll:compute:c-1:2025-01"))
}

func TestClient_EnqueueComputePayroll_DuplicateIsInProgress(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	req := payroll.ComputePayrollRequest{CompanyID: "c-1", Month: 1, Year: 2025}

	// Setup
	_, err := client.EnqueueComputePayroll(ctx, req)
	require.NoError(t, err)

	// Act
	_, err = client.EnqueueComputePayroll(ctx, req)

	// Assert
	assert.ErrorIs(t, err, payroll.ErrRunInProgress)

	req.Force = true
	_, err = client.EnqueueComputePayroll(ctx, req)
	assert.NoError(t, err, "a forced reprocess is queued under its own id")
}

// ========== PROCESSOR ==========

func TestProcessor_HandleComputePayroll(t *testing.T) {
	// Setup
	f := newFixture()
	f.payroll.res = payroll.RunResult{
		Run:      payroll.PayrollRun{ID: "run-1", Status: payroll.RunCompleted},
		Failures: []payroll.EmployeeFailure{{EmployeeID: "e-2", EmployeeCode: "E002", Code: "NO_STRUCTURE"}},
	}
	task, err := NewComputePayrollTask(payroll.ComputePayrollRequest{CompanyID: "c-1", Month: 1, Year: 2025})
	require.NoError(t, err)

	// Act
	err = f.processor.HandleComputePayroll(context.Background(), task)

	// Assert
	require.NoError(t, err, "employee failures do not fail the job")
	require.Len(t, f.payroll.calls, 1)
	assert.Equal(t, "c-1", f.payroll.calls[0].CompanyID)
	assert.False(t, f.payroll.calls[0].Async)
}

func TestProcessor_HandleComputePayroll_Errors(t *testing.T) {
	tests := []struct {
		name      string
		payload   []byte
		err       error
		skipRetry bool
	}{
		{name: "malformed payload", payload: []byte("{"), skipRetry: true},
		{name: "invalid period", payload: []byte(`{"company_id":"c-1","month":13,"year":2025}`), skipRetry: true},
		{name: "already processed", payload: []byte(`{"company_id":"c-1","month":1,"year":2025}`),
			err: &payroll.AlreadyProcessedError{CompanyID: "c-1", Month: 1, Year: 2025, RunID: "run-1"}, skipRetry: true},
		{name: "configuration", payload: []byte(`{"company_id":"c-1","month":1,"year":2025}`),
			err: &payroll.ConfigurationError{CompanyID: "c-1", Reason: "missing settings"}, skipRetry: true},
		{name: "lock held is retried", payload: []byte(`{"company_id":"c-1","month":1,"year":2025}`),
			err: payroll.ErrRunInProgress, skipRetry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			f := newFixture()
			f.payroll.err = tt.err

			// Act
			err := f.processor.HandleComputePayroll(context.Background(), asynq.NewTask(TaskComputePayroll, tt.payload))

			// Assert
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestProcessor_ComputePayroll_ResyncsCompliance(t *testing.T) {
	// Setup
	f := newFixture()
	f.payroll.res = payroll.RunResult{Run: payroll.PayrollRun{ID: "run-1", Status: payroll.RunCompleted}}
	f.payroll.err = &payroll.ComplianceSyncError{RunID: "run-1", CompanyID: "c-1", Month: 1, Year: 2025, Err: errors.New("db down")}

	// Act
	err := f.processor.ComputePayroll(context.Background(), payroll.ComputePayrollRequest{CompanyID: "c-1", Month: 1, Year: 2025})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, f.payroll.syncCalls)
}

func TestProcessor_ComputePayroll_ResyncFailsWithoutRetry(t *testing.T) {
	// Setup
	f := newFixture()
	f.payroll.res = payroll.RunResult{Run: payroll.PayrollRun{ID: "run-1", Status: payroll.RunCompleted}}
	f.payroll.err = &payroll.ComplianceSyncError{RunID: "run-1", CompanyID: "c-1", Month: 1, Year: 2025, Err: errors.New("db down")}
	f.payroll.syncErr = errors.New("still down")

	// Act
	err := f.processor.ComputePayroll(context.Background(), payroll.ComputePayrollRequest{CompanyID: "c-1", Month: 1, Year: 2025})

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, err.Error(), "run-1")
}

func TestProcessor_ScanOverdue(t *testing.T) {
	// Setup
	f := newFixture()
	f.compliance.items = []compliance.ComplianceItem{{
		ID: "item-1", CompanyID: "c-1", Type: compliance.TypeEPF, Month: 11, Year: 2024,
		Amount: decimal.NewFromInt(10800), DueDate: time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC),
		Status: compliance.StatusOverdue,
	}}

	// Act
	err := f.processor.HandleOverdueScan(context.Background(), NewOverdueScanTask())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC), f.compliance.asOf)
}

func TestProcessor_InitializeLeaveYear(t *testing.T) {
	// Setup
	f := newFixture("c-1", "c-2", "c-3")
	f.ledger.failOn = "c-2"
	task, err := NewLeaveInitializeYearTask(0)
	require.NoError(t, err)

	// Act
	err = f.processor.HandleLeaveInitializeYear(context.Background(), task)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company c-2")
	assert.Equal(t, map[string]int{"c-1": 2025, "c-3": 2025}, f.ledger.years, "other companies still run")
}

func TestProcessor_InitializeLeaveYear_ExplicitYear(t *testing.T) {
	// Setup
	f := newFixture("c-1")
	task, err := NewLeaveInitializeYearTask(2026)
	require.NoError(t, err)

	// Act
	err = f.processor.HandleLeaveInitializeYear(context.Background(), task)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2026, f.ledger.years["c-1"])
}

func TestDefaultCron(t *testing.T) {
	entries, err := DefaultCron("0 2 * * *", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, TaskOverdueScan, entries[0].Task.Type())

	entries, err = DefaultCron("0 2 * * *", "5 0 1 1 *")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, TaskLeaveInitializeYear, entries[1].Task.Type())
}
