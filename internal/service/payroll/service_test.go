package payroll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/attendance"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/company"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/leave"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/lock"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/validator"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/repository/ruleset"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========== FAKES ==========

type fakeTransactor struct{}

func (fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeCompanyRepo struct {
	settings map[string]company.PayrollSettings
}

func (f *fakeCompanyRepo) GetByID(ctx context.Context, id string) (company.Company, error) {
	return company.Company{ID: id}, nil
}

func (f *fakeCompanyRepo) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for id := range f.settings {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeCompanyRepo) GetPayrollSettings(ctx context.Context, companyID string) (company.PayrollSettings, error) {
	s, ok := f.settings[companyID]
	if !ok {
		return company.PayrollSettings{}, company.ErrPayrollSettingsNotFound
	}
	return s, nil
}

type fakeEmployeeRepo struct {
	employees []employee.Employee
}

func (f *fakeEmployeeRepo) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	for _, e := range f.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (f *fakeEmployeeRepo) GetByIDs(ctx context.Context, companyID string, ids []string) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, e := range f.employees {
		for _, id := range ids {
			if e.ID == id && e.CompanyID == companyID {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (f *fakeEmployeeRepo) ListForPayroll(ctx context.Context, companyID string, statuses []employee.EmploymentStatus, start, end time.Time) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, e := range f.employees {
		if e.CompanyID == companyID && e.SelectedForPayroll(statuses, start, end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEmployeeRepo) GetActiveByCompanyID(ctx context.Context, companyID string) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, e := range f.employees {
		if e.CompanyID == companyID && e.Status == employee.StatusActive {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeStructureRepo struct {
	mu         sync.Mutex
	structures map[string]salary.SalaryStructure
	locked     []string
	onGet      func(structureID string)
}

func (f *fakeStructureRepo) GetEffective(ctx context.Context, structureID string, asOf time.Time) (salary.SalaryStructure, error) {
	if f.onGet != nil {
		f.onGet(structureID)
	}
	s, ok := f.structures[structureID]
	if !ok {
		return salary.SalaryStructure{}, salary.ErrStructureNotFound
	}
	return s, nil
}

func (f *fakeStructureRepo) LockRevisions(ctx context.Context, revisionIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = append(f.locked, revisionIDs...)
	return nil
}

type fakeAttendanceRepo struct {
	records []attendance.Attendance
}

func (f *fakeAttendanceRepo) ListForPeriod(ctx context.Context, companyID string, employeeIDs []string, start, end time.Time) ([]attendance.Attendance, error) {
	var out []attendance.Attendance
	for _, r := range f.records {
		if !r.Date.Before(start) && !r.Date.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeBalanceRepo struct {
	lop map[string]decimal.Decimal
}

func (f *fakeBalanceRepo) GetByEmployeeYear(ctx context.Context, employeeID string, year int) ([]leave.LeaveBalance, error) {
	return nil, nil
}

func (f *fakeBalanceRepo) GetForUpdate(ctx context.Context, employeeID, leaveTypeID string, year int) (leave.LeaveBalance, error) {
	return leave.LeaveBalance{}, leave.ErrBalanceNotFound
}

func (f *fakeBalanceRepo) Create(ctx context.Context, balance leave.LeaveBalance) (leave.LeaveBalance, error) {
	return balance, nil
}

func (f *fakeBalanceRepo) UpdateUsage(ctx context.Context, balance leave.LeaveBalance) error {
	return nil
}

func (f *fakeBalanceRepo) AddLOPEntry(ctx context.Context, entry leave.LOPEntry) error {
	return nil
}

func (f *fakeBalanceRepo) LOPDaysBetween(ctx context.Context, employeeIDs []string, start, end time.Time) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for k, v := range f.lop {
		out[k] = v
	}
	return out, nil
}

type fakePayrollRepo struct {
	mu             sync.Mutex
	runs           map[string]payroll.PayrollRun
	records        []payroll.SalaryRecord
	determinations map[string]payroll.ESIDetermination
	savedStatuses  []payroll.RunStatus
}

func newFakePayrollRepo() *fakePayrollRepo {
	return &fakePayrollRepo{
		runs:           make(map[string]payroll.PayrollRun),
		determinations: make(map[string]payroll.ESIDetermination),
	}
}

func runKey(companyID string, month, year int) string {
	return fmt.Sprintf("%s:%d:%d", companyID, year, month)
}

func (f *fakePayrollRepo) GetRun(ctx context.Context, companyID string, month, year int) (payroll.PayrollRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runKey(companyID, month, year)]
	if !ok {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}
	return run, nil
}

func (f *fakePayrollRepo) SaveRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[runKey(run.CompanyID, run.Month, run.Year)] = run
	f.savedStatuses = append(f.savedStatuses, run.Status)
	return run, nil
}

func (f *fakePayrollRepo) SupersedeRecords(ctx context.Context, companyID string, month, year int, employeeIDs []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	selected := func(employeeID string) bool {
		if len(employeeIDs) == 0 {
			return true
		}
		for _, id := range employeeIDs {
			if id == employeeID {
				return true
			}
		}
		return false
	}
	var n int64
	for i := range f.records {
		r := &f.records[i]
		if r.CompanyID == companyID && r.Month == month && r.Year == year && !r.Superseded && selected(r.EmployeeID) {
			r.Superseded = true
			n++
		}
	}
	return n, nil
}

func (f *fakePayrollRepo) InsertRecords(ctx context.Context, records []payroll.SalaryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, records...)
	return nil
}

func (f *fakePayrollRepo) ListRecords(ctx context.Context, companyID string, month, year int) ([]payroll.SalaryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payroll.SalaryRecord
	for _, r := range f.records {
		if r.CompanyID == companyID && r.Month == month && r.Year == year && !r.Superseded {
			out = append(out, r)
		}
	}
	payroll.SortRecords(out)
	return out, nil
}

func (f *fakePayrollRepo) GetESIDeterminations(ctx context.Context, employeeIDs []string, periodKey string) (map[string]payroll.ESIDetermination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]payroll.ESIDetermination)
	for _, id := range employeeIDs {
		if d, ok := f.determinations[id+"|"+periodKey]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (f *fakePayrollRepo) SaveESIDeterminations(ctx context.Context, determinations []payroll.ESIDetermination) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range determinations {
		key := d.EmployeeID + "|" + d.PeriodKey
		if existing, ok := f.determinations[key]; ok && existing.Binds(d.Month, d.Year) {
			continue
		}
		f.determinations[key] = d
	}
	return nil
}

type fakeCompliance struct {
	mu   sync.Mutex
	runs []payroll.PayrollRun
	err  error
}

func (f *fakeCompliance) SyncFromRun(ctx context.Context, run payroll.PayrollRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, run)
	return nil
}

// ========== SETUP ==========

const companyID = "company-1"

type fixture struct {
	service     *PayrollServiceImpl
	locker      *lock.LocalLocker
	employees   *fakeEmployeeRepo
	structures  *fakeStructureRepo
	attendance  *fakeAttendanceRepo
	balances    *fakeBalanceRepo
	payrolls    *fakePayrollRepo
	compliance  *fakeCompliance
	companyRepo *fakeCompanyRepo
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	rules, err := ruleset.Default()
	require.NoError(t, err)

	f := &fixture{
		locker:    lock.NewLocalLocker(),
		employees: &fakeEmployeeRepo{},
		structures: &fakeStructureRepo{structures: map[string]salary.SalaryStructure{
			"ss-std": testStructure(),
		}},
		attendance: &fakeAttendanceRepo{},
		balances:   &fakeBalanceRepo{lop: map[string]decimal.Decimal{}},
		payrolls:   newFakePayrollRepo(),
		compliance: &fakeCompliance{},
		companyRepo: &fakeCompanyRepo{settings: map[string]company.PayrollSettings{
			companyID: {CompanyID: companyID, State: "MH", WorkingDaysNorm: 26},
		}},
	}
	f.service = NewPayrollService(fakeTransactor{}, f.locker, nil, rules, f.compliance,
		f.companyRepo, f.employees, f.structures, f.attendance, f.balances, f.payrolls, opts...)
	return f
}

func (f *fixture) addEmployee(code string, mutate ...func(*employee.Employee)) employee.Employee {
	structureID := "ss-std"
	emp := employee.Employee{
		ID:                "id-" + code,
		CompanyID:         companyID,
		EmployeeCode:      code,
		Status:            employee.StatusActive,
		SalaryStructureID: &structureID,
		JoiningDate:       time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, m := range mutate {
		m(&emp)
	}
	f.employees.employees = append(f.employees.employees, emp)
	return emp
}

func jan2025(opts ...func(*payroll.ComputePayrollRequest)) payroll.ComputePayrollRequest {
	req := payroll.ComputePayrollRequest{CompanyID: companyID, Month: 1, Year: 2025}
	for _, o := range opts {
		o(&req)
	}
	return req
}

func codes(records []payroll.SalaryRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.EmployeeCode)
	}
	return out
}

// ========== TESTS ==========

func TestPayrollService_ComputePayroll_Completes(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E003")
	f.addEmployee("E001")
	f.addEmployee("E002")
	ctx := context.Background()

	// Act
	result, err := f.service.ComputePayroll(ctx, jan2025())

	// Assert
	require.NoError(t, err)
	assert.NoError(t, result.Err())
	assert.Equal(t, payroll.RunCompleted, result.Run.Status)
	assert.Equal(t, 1, result.Run.Revision)
	assert.Equal(t, "2019-07", result.Run.RuleTableVersion)
	assert.Equal(t, []string{"E001", "E002", "E003"}, codes(result.Records), "records are ordered by employee code")
	assert.Equal(t, []payroll.RunStatus{payroll.RunInProgress, payroll.RunCompleted}, f.payrolls.savedStatuses)

	rec := result.Records[0]
	assert.True(t, rec.GrossEarned.Equal(dec("22600")))
	assert.True(t, rec.Deductions.EPF.Equal(dec("1800")))
	assert.True(t, rec.Employer.EPS.Equal(dec("1250")))
	assert.True(t, rec.Employer.EPF.Equal(dec("550")))
	assert.True(t, rec.Deductions.ESI.IsZero(), "gross above the ESI ceiling")
	assert.True(t, rec.Deductions.PT.Equal(dec("200")))
	assert.True(t, rec.Deductions.LWF.IsZero(), "January is not an LWF filing month in MH")
	assert.True(t, rec.NetPay.Equal(dec("20600")))
	assert.Equal(t, ruletable.State("MH"), rec.State)

	assert.True(t, result.Run.TotalGross.Equal(dec("67800")))
	assert.True(t, result.Run.TotalNetPay.Equal(dec("61800")))
	assert.True(t, result.Run.TotalEmployerCost.Equal(dec("73200")))

	require.Len(t, f.compliance.runs, 1)
	assert.Equal(t, result.Run.ID, f.compliance.runs[0].ID)
	assert.Equal(t, []string{"ssr-1"}, f.structures.locked)
}

func TestPayrollService_ComputePayroll_ReprocessWithoutForce(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E001")
	ctx := context.Background()
	first, err := f.service.ComputePayroll(ctx, jan2025())
	require.NoError(t, err)

	// Act
	_, err = f.service.ComputePayroll(ctx, jan2025())

	// Assert
	require.ErrorIs(t, err, payroll.ErrAlreadyProcessed)
	var processed *payroll.AlreadyProcessedError
	require.ErrorAs(t, err, &processed)
	assert.Equal(t, first.Run.ID, processed.RunID)

	records, err := f.service.ListSalaryRecords(ctx, companyID, 1, 2025)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, first.Records[0].ID, records[0].ID, "existing records are left unchanged")
	assert.Len(t, f.compliance.runs, 1)
}

func TestPayrollService_ComputePayroll_ForceSupersedes(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E001")
	ctx := context.Background()
	first, err := f.service.ComputePayroll(ctx, jan2025())
	require.NoError(t, err)

	// Act
	second, err := f.service.ComputePayroll(ctx, jan2025(func(r *payroll.ComputePayrollRequest) { r.Force = true }))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, first.Run.ID, second.Run.ID)
	assert.Equal(t, 2, second.Run.Revision)
	assert.Equal(t, 2, second.Records[0].Revision)

	require.Len(t, f.payrolls.records, 2, "prior records are kept, not overwritten")
	assert.True(t, f.payrolls.records[0].Superseded)

	current, err := f.service.ListSalaryRecords(ctx, companyID, 1, 2025)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, second.Records[0].ID, current[0].ID)
}

func TestPayrollService_ComputePayroll_IsolatesUnsupportedState(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E001")
	f.addEmployee("E002", func(e *employee.Employee) {
		state := ruletable.State("ZZ")
		e.WorkState = &state
	})
	f.addEmployee("E003")

	// Act
	result, err := f.service.ComputePayroll(context.Background(), jan2025())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, payroll.RunCompleted, result.Run.Status)
	assert.Equal(t, []string{"E001", "E003"}, codes(result.Records))
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "E002", result.Failures[0].EmployeeCode)
	assert.Equal(t, payroll.FailureUnsupportedState, result.Failures[0].Code)
	assert.Equal(t, 1, result.Run.FailureCount)
	assert.ErrorIs(t, result.Err(), payroll.ErrPartialRun)
}

func TestPayrollService_ComputePayroll_SubsetRetryKeepsOtherRecords(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E001")
	f.addEmployee("E002", func(e *employee.Employee) {
		state := ruletable.State("ZZ")
		e.WorkState = &state
	})
	f.addEmployee("E003")
	ctx := context.Background()

	first, err := f.service.ComputePayroll(ctx, jan2025())
	require.NoError(t, err)
	require.Equal(t, []string{"E001", "E003"}, codes(first.Records))
	require.True(t, first.Run.TotalGross.Equal(dec("45200")))

	f.employees.employees[1].WorkState = nil

	// Act
	retry, err := f.service.ComputePayroll(ctx, jan2025(func(r *payroll.ComputePayrollRequest) {
		r.EmployeeIDs = []string{"id-E002"}
		r.Force = true
	}))

	// Assert
	require.NoError(t, err)
	assert.NoError(t, retry.Err())
	assert.Equal(t, []string{"E002"}, codes(retry.Records))

	current, err := f.service.ListSalaryRecords(ctx, companyID, 1, 2025)
	require.NoError(t, err)
	require.Len(t, current, 3)
	assert.Equal(t, []string{"E001", "E002", "E003"}, codes(current))
	assert.Equal(t, 1, current[0].Revision, "records outside the retry are untouched")
	assert.Equal(t, 2, current[1].Revision)

	assert.Equal(t, 3, retry.Run.EmployeeCount)
	assert.Equal(t, 0, retry.Run.FailureCount)
	assert.True(t, retry.Run.TotalGross.Equal(dec("67800")), "total gross = %s", retry.Run.TotalGross)
	assert.True(t, retry.Run.TotalNetPay.Equal(dec("61800")))

	stored, err := f.service.GetRun(ctx, companyID, 1, 2025)
	require.NoError(t, err)
	assert.True(t, stored.TotalGross.Equal(dec("67800")))

	require.Len(t, f.compliance.runs, 2)
	assert.True(t, f.compliance.runs[1].TotalGross.Equal(dec("67800")), "obligations follow the whole period")
}

func TestPayrollService_ComputePayroll_SubsetFailureKeepsPriorRecord(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E001")
	f.addEmployee("E002")
	ctx := context.Background()
	_, err := f.service.ComputePayroll(ctx, jan2025())
	require.NoError(t, err)

	f.employees.employees[0].SalaryStructureID = nil

	// Act
	retry, err := f.service.ComputePayroll(ctx, jan2025(func(r *payroll.ComputePayrollRequest) {
		r.EmployeeIDs = []string{"id-E001"}
		r.Force = true
	}))

	// Assert
	require.NoError(t, err)
	require.Len(t, retry.Failures, 1)
	assert.Empty(t, retry.Records)

	current, err := f.service.ListSalaryRecords(ctx, companyID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, []string{"E001", "E002"}, codes(current))
	assert.True(t, retry.Run.TotalGross.Equal(dec("45200")))
}

func TestPayrollService_ComputePayroll_ComplianceSyncFailure(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E001")
	f.compliance.err = errors.New("connection reset")
	ctx := context.Background()

	// Act
	result, err := f.service.ComputePayroll(ctx, jan2025())

	// Assert
	require.ErrorIs(t, err, payroll.ErrComplianceSync)
	var syncErr *payroll.ComplianceSyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, result.Run.ID, syncErr.RunID)
	assert.Equal(t, payroll.RunCompleted, result.Run.Status)
	assert.Len(t, result.Records, 1)

	stored, err := f.service.GetRun(ctx, companyID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunCompleted, stored.Status, "the run is kept")

	// The obligations can be rebuilt without reprocessing.
	f.compliance.err = nil
	run, err := f.service.SyncCompliance(ctx, companyID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, result.Run.ID, run.ID)
	require.Len(t, f.compliance.runs, 1)
	assert.Equal(t, result.Run.ID, f.compliance.runs[0].ID)
}

func TestPayrollService_SyncCompliance_Errors(t *testing.T) {
	// Setup
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.payrolls.SaveRun(ctx, payroll.PayrollRun{ID: "run-failed", CompanyID: companyID, Month: 2, Year: 2025, Status: payroll.RunFailed})
	require.NoError(t, err)

	// Act
	_, missingErr := f.service.SyncCompliance(ctx, companyID, 1, 2025)
	_, failedErr := f.service.SyncCompliance(ctx, companyID, 2, 2025)

	// Assert
	assert.ErrorIs(t, missingErr, payroll.ErrRunNotFound)
	assert.ErrorIs(t, failedErr, payroll.ErrRunNotCompleted)
	assert.Empty(t, f.compliance.runs)
}

func TestPayrollService_ComputePayroll_MissingStructureIsFailure(t *testing.T) {
	f := newFixture(t)
	f.addEmployee("E001", func(e *employee.Employee) { e.SalaryStructureID = nil })
	f.addEmployee("E002")

	result, err := f.service.ComputePayroll(context.Background(), jan2025())

	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, payroll.FailureNoSalaryStructure, result.Failures[0].Code)
	assert.Equal(t, []string{"E002"}, codes(result.Records))
}

func TestPayrollService_ComputePayroll_RunInProgress(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E001")
	ctx := context.Background()
	release, err := f.locker.TryAcquire(ctx, lock.PayrollRunKey(companyID, 1, 2025), time.Minute)
	require.NoError(t, err)
	defer release(ctx)

	// Act
	_, err = f.service.ComputePayroll(ctx, jan2025())

	// Assert
	assert.ErrorIs(t, err, payroll.ErrRunInProgress)
	assert.Empty(t, f.payrolls.runs)
}

func TestPayrollService_ComputePayroll_ConfigurationError(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]company.PayrollSettings
	}{
		{"settings missing", map[string]company.PayrollSettings{}},
		{"state missing", map[string]company.PayrollSettings{companyID: {CompanyID: companyID}}},
		{"unknown pinned version", map[string]company.PayrollSettings{companyID: {CompanyID: companyID, State: "MH", RuleTableVersion: strPtr("1999-01")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addEmployee("E001")
			f.companyRepo.settings = tt.settings

			_, err := f.service.ComputePayroll(context.Background(), jan2025())

			assert.ErrorIs(t, err, payroll.ErrConfiguration)
			assert.Empty(t, f.payrolls.runs, "no run state is written")
		})
	}
}

func TestPayrollService_ComputePayroll_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.ComputePayroll(context.Background(), jan2025(func(r *payroll.ComputePayrollRequest) { r.Month = 13 }))

	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestPayrollService_ComputePayroll_ExplicitEmployees(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E001")
	exit := time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC)
	f.addEmployee("E002", func(e *employee.Employee) { e.ExitDate = &exit; e.Status = employee.StatusResigned })
	f.addEmployee("E003", func(e *employee.Employee) { e.Status = employee.StatusOnLeave })

	// Act
	result, err := f.service.ComputePayroll(context.Background(), jan2025(func(r *payroll.ComputePayrollRequest) {
		r.EmployeeIDs = []string{"id-E003", "id-E002", "id-missing"}
	}))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"E003"}, codes(result.Records), "explicit selection ignores status")
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "", result.Failures[0].EmployeeCode)
	assert.Equal(t, payroll.FailureNotFound, result.Failures[0].Code)
	assert.Equal(t, "E002", result.Failures[1].EmployeeCode)
	assert.Equal(t, payroll.FailureNotEligible, result.Failures[1].Code)
}

func TestPayrollService_ComputePayroll_IncludesOnLeaveWhenConfigured(t *testing.T) {
	f := newFixture(t)
	f.addEmployee("E001")
	f.addEmployee("E002", func(e *employee.Employee) { e.Status = employee.StatusOnLeave })
	f.addEmployee("E003", func(e *employee.Employee) { e.JoiningDate = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) })

	result, err := f.service.ComputePayroll(context.Background(), jan2025())
	require.NoError(t, err)
	assert.Equal(t, []string{"E001"}, codes(result.Records))

	settings := f.companyRepo.settings[companyID]
	settings.IncludeOnLeave = true
	f.companyRepo.settings[companyID] = settings

	result, err = f.service.ComputePayroll(context.Background(), jan2025(func(r *payroll.ComputePayrollRequest) { r.Force = true }))
	require.NoError(t, err)
	assert.Equal(t, []string{"E001", "E002"}, codes(result.Records))
}

func TestPayrollService_ComputePayroll_LOPSources(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E001", func(e *employee.Employee) { e.JoiningDate = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC) })
	day := func(d int, st attendance.DayStatus) attendance.Attendance {
		return attendance.Attendance{EmployeeID: "id-E001", Date: time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC), Status: st}
	}
	f.attendance.records = []attendance.Attendance{day(13, attendance.DayAbsent), day(14, attendance.DayHalfDay), day(15, attendance.DayPaidLeave)}
	f.balances.lop["id-E001"] = dec("1")

	// Act
	result, err := f.service.ComputePayroll(context.Background(), jan2025())

	// Assert
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	basis := result.Records[0].Basis
	// attendance 1.5 + ledger 1 + joined on the 10th 7.5
	assert.True(t, basis.LOPDays.Equal(dec("10")), "lop = %s", basis.LOPDays)
	assert.True(t, basis.PaidDays.Equal(dec("16")))
	assert.True(t, basis.PaidLeaveDays.Equal(dec("1")))
}

func TestPayrollService_ComputePayroll_ESIDeterminationHoldsForPeriod(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E001")
	f.payrolls.determinations["id-E001|2024-10"] = payroll.ESIDetermination{
		EmployeeID: "id-E001", PeriodKey: "2024-10", Eligible: true, Month: 10, Year: 2024,
	}

	// Act
	result, err := f.service.ComputePayroll(context.Background(), payroll.ComputePayrollRequest{CompanyID: companyID, Month: 11, Year: 2024})

	// Assert
	require.NoError(t, err)
	rec := result.Records[0]
	assert.True(t, rec.ESIEligible, "eligibility fixed by October holds in November")
	// 22600 * 0.0075 = 169.5 -> 170; 22600 * 0.0325 = 734.5 -> 735
	assert.True(t, rec.Deductions.ESI.Equal(dec("170")), "esi = %s", rec.Deductions.ESI)
	assert.True(t, rec.Employer.ESI.Equal(dec("735")))
}

func TestPayrollService_ComputePayroll_StoresFirstESIDetermination(t *testing.T) {
	f := newFixture(t)
	f.addEmployee("E001")

	_, err := f.service.ComputePayroll(context.Background(), payroll.ComputePayrollRequest{CompanyID: companyID, Month: 4, Year: 2025})
	require.NoError(t, err)

	det, ok := f.payrolls.determinations["id-E001|2025-04"]
	require.True(t, ok)
	assert.False(t, det.Eligible)
	assert.Equal(t, 4, det.Month)
}

func TestPayrollService_ComputePayroll_ESIEarlierMonthProcessedLate(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E001")
	ctx := context.Background()
	for _, d := range []int{7, 8, 9} {
		f.attendance.records = append(f.attendance.records, attendance.Attendance{
			EmployeeID: "id-E001", Date: time.Date(2025, 4, d, 0, 0, 0, 0, time.UTC), Status: attendance.DayAbsent,
		})
	}
	may := payroll.ComputePayrollRequest{CompanyID: companyID, Month: 5, Year: 2025}
	april := payroll.ComputePayrollRequest{CompanyID: companyID, Month: 4, Year: 2025}

	// Act
	_, err := f.service.ComputePayroll(ctx, may)
	require.NoError(t, err)
	aprilResult, err := f.service.ComputePayroll(ctx, april)
	require.NoError(t, err)
	may.Force = true
	mayAgain, err := f.service.ComputePayroll(ctx, may)
	require.NoError(t, err)

	// Assert
	require.Len(t, aprilResult.Records, 1)
	assert.True(t, aprilResult.Records[0].ESIEligible, "april gross = %s", aprilResult.Records[0].GrossEarned)

	det := f.payrolls.determinations["id-E001|2025-04"]
	assert.Equal(t, 4, det.Month, "the first month of the period owns the determination")
	assert.True(t, det.Eligible)

	require.Len(t, mayAgain.Records, 1)
	assert.True(t, mayAgain.Records[0].ESIEligible, "april's determination binds may")
	assert.True(t, mayAgain.Records[0].Deductions.ESI.IsPositive())
}

func TestPayrollService_ComputePayroll_IncludesExitWithinPeriod(t *testing.T) {
	// Setup
	f := newFixture(t)
	f.addEmployee("E001")
	exit := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	f.addEmployee("E002", func(e *employee.Employee) { e.Status = employee.StatusResigned; e.ExitDate = &exit })
	earlier := time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)
	f.addEmployee("E003", func(e *employee.Employee) { e.Status = employee.StatusTerminated; e.ExitDate = &earlier })

	// Act
	result, err := f.service.ComputePayroll(context.Background(), jan2025())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"E001", "E002"}, codes(result.Records))
	// 11 days after the exit on a 26-day norm over 31 days: 9.23 -> 9
	assert.True(t, result.Records[1].Basis.LOPDays.Equal(dec("9")), "lop = %s", result.Records[1].Basis.LOPDays)
}

func TestPayrollService_ComputePayroll_CancellationPersistsPartialRun(t *testing.T) {
	// Setup
	f := newFixture(t, WithWorkers(1))
	for i := 1; i <= 4; i++ {
		code := fmt.Sprintf("E%03d", i)
		structureID := "ss-" + code
		f.structures.structures[structureID] = testStructure()
		f.addEmployee(code, func(e *employee.Employee) { e.SalaryStructureID = &structureID })
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.structures.onGet = func(structureID string) {
		if structureID == "ss-E002" {
			cancel()
		}
	}

	// Act
	result, err := f.service.ComputePayroll(ctx, jan2025())

	// Assert
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, payroll.RunFailed, result.Run.Status)
	assert.True(t, result.Run.Partial)
	assert.Equal(t, []string{"E001", "E002"}, codes(result.Records))

	stored, err := f.service.GetRun(context.Background(), companyID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunFailed, stored.Status)
	assert.True(t, stored.Partial)
	assert.Len(t, f.payrolls.records, 2)
	assert.Empty(t, f.compliance.runs, "failed runs do not produce obligations")
	assert.Empty(t, f.structures.locked)

	// A failed run can be processed again without force.
	f.structures.onGet = nil
	result, err = f.service.ComputePayroll(context.Background(), jan2025())
	require.NoError(t, err)
	assert.Equal(t, payroll.RunCompleted, result.Run.Status)
	assert.Equal(t, 2, result.Run.Revision)
	assert.Len(t, result.Records, 4)
}

func TestPayrollService_ComputePayroll_ConcurrentRunsDoNotDoubleProcess(t *testing.T) {
	// Setup
	f := newFixture(t)
	for i := 1; i <= 20; i++ {
		f.addEmployee(fmt.Sprintf("E%03d", i))
	}

	// Act
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.ComputePayroll(context.Background(), jan2025())
		}(i)
	}
	wg.Wait()

	// Assert
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, isRejection(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	current, err := f.service.ListSalaryRecords(context.Background(), companyID, 1, 2025)
	require.NoError(t, err)
	assert.Len(t, current, 20)
	assert.Len(t, f.payrolls.records, 20)
}

func TestPayrollService_ListSalaryRecords_RunNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.ListSalaryRecords(context.Background(), companyID, 3, 2025)

	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
}

func isRejection(err error) bool {
	return errors.Is(err, payroll.ErrRunInProgress) || errors.Is(err, payroll.ErrAlreadyProcessed)
}

func strPtr(s string) *string { return &s }
