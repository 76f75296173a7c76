package payroll

import (
	"sort"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// RunStatus enum
type RunStatus string

const (
	RunNotStarted RunStatus = "not_started"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// PayrollRun - one run per company period. Revision grows every time the
// period is (re)processed; records of older revisions are superseded.
type PayrollRun struct {
	ID               string
	CompanyID        string
	Month            int
	Year             int
	Status           RunStatus
	Revision         int
	Partial          bool // failed after some records were produced
	RuleTableVersion string

	EmployeeCount int
	FailureCount  int

	TotalGross        decimal.Decimal
	TotalDeductions   decimal.Decimal
	TotalNetPay       decimal.Decimal
	TotalEmployerCost decimal.Decimal
	Statutory         []SchemeTotal

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PeriodStart returns the first day of the run's month.
func (r PayrollRun) PeriodStart() time.Time {
	return time.Date(r.Year, time.Month(r.Month), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodEnd returns the last day of the run's month.
func (r PayrollRun) PeriodEnd() time.Time {
	return r.PeriodStart().AddDate(0, 1, -1)
}

// SchemeTotal - run-wide contributions of one statutory scheme. State is
// set for PT and LWF, whose obligations are filed per state.
type SchemeTotal struct {
	Scheme         ruletable.Scheme `json:"scheme"`
	State          ruletable.State  `json:"state,omitempty"`
	EmployeeAmount decimal.Decimal  `json:"employee_amount"`
	EmployerAmount decimal.Decimal  `json:"employer_amount"`
}

func (t SchemeTotal) Total() decimal.Decimal {
	return t.EmployeeAmount.Add(t.EmployerAmount)
}

// ProRationBasis - how gross was pro-rated for the month
type ProRationBasis struct {
	WorkingDaysNorm int             `json:"working_days_norm"`
	WorkedDays      decimal.Decimal `json:"worked_days"`
	PaidLeaveDays   decimal.Decimal `json:"paid_leave_days"`
	LOPDays         decimal.Decimal `json:"lop_days"`
	PaidDays        decimal.Decimal `json:"paid_days"`
	PerDayRate      decimal.Decimal `json:"per_day_rate"`
}

// EarningLine - one earned salary component
type EarningLine struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Full   decimal.Decimal `json:"full_amount"`
	Amount decimal.Decimal `json:"amount"`
	Fixed  bool            `json:"fixed"`
}

// Deductions - employee-side statutory deductions
type Deductions struct {
	EPF decimal.Decimal `json:"epf"`
	ESI decimal.Decimal `json:"esi"`
	PT  decimal.Decimal `json:"pt"`
	LWF decimal.Decimal `json:"lwf"`
}

func (d Deductions) Total() decimal.Decimal {
	return money.Sum(d.EPF, d.ESI, d.PT, d.LWF)
}

// EmployerContributions - statutory cost borne by the employer, not deducted from pay
type EmployerContributions struct {
	EPF decimal.Decimal `json:"epf"`
	EPS decimal.Decimal `json:"eps"`
	ESI decimal.Decimal `json:"esi"`
	PT  decimal.Decimal `json:"pt"`
	LWF decimal.Decimal `json:"lwf"`
}

// Total counts EPF and EPS once each; together they make up the employer's provident fund share.
func (c EmployerContributions) Total() decimal.Decimal {
	return money.Sum(c.EPF, c.EPS, c.ESI, c.PT, c.LWF)
}

// SalaryRecord - payroll result of one employee month for one run revision
type SalaryRecord struct {
	ID               string
	RunID            string
	Revision         int
	CompanyID        string
	EmployeeID       string
	EmployeeCode     string
	Month            int
	Year             int
	State            ruletable.State
	SalaryRevisionID string
	Basis            ProRationBasis
	Earnings         []EarningLine
	BasicEarned      decimal.Decimal
	GrossEarned      decimal.Decimal
	Deductions       Deductions
	Employer         EmployerContributions
	NetPay           decimal.Decimal
	ESIEligible      bool
	Superseded       bool
	CreatedAt        time.Time
}

// EmployerCost is gross plus the employer's statutory contributions.
func (r SalaryRecord) EmployerCost() decimal.Decimal {
	return r.GrossEarned.Add(r.Employer.Total())
}

// Failure codes reported per employee.
const (
	FailureNotFound          = "not_found"
	FailureNotEligible       = "not_eligible"
	FailureNoSalaryStructure = "no_salary_structure"
	FailureConfiguration     = "configuration"
	FailureUnsupportedState  = "unsupported_jurisdiction"
	FailureInternal          = "internal"
)

// EmployeeFailure - one employee that could not be resolved in a run
type EmployeeFailure struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeCode string `json:"employee_code"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

// ESIDetermination - eligibility fixed for one employee and contribution period
type ESIDetermination struct {
	EmployeeID string
	PeriodKey  string
	Eligible   bool
	Month      int
	Year       int
	CreatedAt  time.Time
}

// RunResult - outcome of ComputePayroll
type RunResult struct {
	Run      PayrollRun
	Records  []SalaryRecord
	Failures []EmployeeFailure
}

// Err reports per-employee failures as a PartialRunFailure, or nil.
func (r RunResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &PartialRunFailure{RunID: r.Run.ID, Failures: r.Failures}
}

// SortRecords orders records by employee code, then ID, so output does not
// depend on completion order.
func SortRecords(records []SalaryRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].EmployeeCode != records[j].EmployeeCode {
			return records[i].EmployeeCode < records[j].EmployeeCode
		}
		return records[i].EmployeeID < records[j].EmployeeID
	})
}

func SortFailures(failures []EmployeeFailure) {
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].EmployeeCode != failures[j].EmployeeCode {
			return failures[i].EmployeeCode < failures[j].EmployeeCode
		}
		return failures[i].EmployeeID < failures[j].EmployeeID
	})
}

// Aggregate sets run totals and per-scheme statutory totals from records.
func (r *PayrollRun) Aggregate(records []SalaryRecord) {
	r.TotalGross = decimal.Zero
	r.TotalDeductions = decimal.Zero
	r.TotalNetPay = decimal.Zero
	r.TotalEmployerCost = decimal.Zero

	epf := SchemeTotal{Scheme: ruletable.SchemeEPF, EmployeeAmount: decimal.Zero, EmployerAmount: decimal.Zero}
	esi := SchemeTotal{Scheme: ruletable.SchemeESI, EmployeeAmount: decimal.Zero, EmployerAmount: decimal.Zero}
	pt := make(map[ruletable.State]SchemeTotal)
	lwf := make(map[ruletable.State]SchemeTotal)

	addState := func(m map[ruletable.State]SchemeTotal, scheme ruletable.Scheme, state ruletable.State, ee, er decimal.Decimal) {
		t, ok := m[state]
		if !ok {
			t = SchemeTotal{Scheme: scheme, State: state, EmployeeAmount: decimal.Zero, EmployerAmount: decimal.Zero}
		}
		t.EmployeeAmount = t.EmployeeAmount.Add(ee)
		t.EmployerAmount = t.EmployerAmount.Add(er)
		m[state] = t
	}

	for _, rec := range records {
		r.TotalGross = r.TotalGross.Add(rec.GrossEarned)
		r.TotalDeductions = r.TotalDeductions.Add(rec.Deductions.Total())
		r.TotalNetPay = r.TotalNetPay.Add(rec.NetPay)
		r.TotalEmployerCost = r.TotalEmployerCost.Add(rec.EmployerCost())

		epf.EmployeeAmount = epf.EmployeeAmount.Add(rec.Deductions.EPF)
		epf.EmployerAmount = epf.EmployerAmount.Add(rec.Employer.EPF.Add(rec.Employer.EPS))
		esi.EmployeeAmount = esi.EmployeeAmount.Add(rec.Deductions.ESI)
		esi.EmployerAmount = esi.EmployerAmount.Add(rec.Employer.ESI)
		addState(pt, ruletable.SchemePT, rec.State, rec.Deductions.PT, rec.Employer.PT)
		addState(lwf, ruletable.SchemeLWF, rec.State, rec.Deductions.LWF, rec.Employer.LWF)
	}

	totals := []SchemeTotal{epf, esi}
	for _, m := range []map[ruletable.State]SchemeTotal{pt, lwf} {
		states := make([]string, 0, len(m))
		for s := range m {
			states = append(states, string(s))
		}
		sort.Strings(states)
		for _, s := range states {
			totals = append(totals, m[ruletable.State(s)])
		}
	}

	r.Statutory = totals
	r.EmployeeCount = len(records)
}

// Binds reports whether the determination fixes eligibility for month/year,
// i.e. it was made by an earlier month of the same contribution period.
func (d ESIDetermination) Binds(month, year int) bool {
	return d.Year*12+d.Month < year*12+month
}
