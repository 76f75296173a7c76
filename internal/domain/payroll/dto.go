package payroll

import (
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== REQUEST DTOs ==========

type ComputePayrollRequest struct {
	CompanyID   string   `json:"-"`
	Month       int      `json:"month" validate:"min=1,max=12"`
	Year        int      `json:"year" validate:"gte=2000,lte=9999"`
	EmployeeIDs []string `json:"employee_ids,omitempty" validate:"omitempty,dive,required"`
	Force       bool     `json:"force"`
	Async       bool     `json:"async"`
}

func (r *ComputePayrollRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}

	var errs validator.ValidationErrors
	if validator.IsEmpty(r.CompanyID) {
		errs = append(errs, validator.ValidationError{Field: "company_id", Message: "company_id is required"})
	}
	seen := make(map[string]bool, len(r.EmployeeIDs))
	for _, id := range r.EmployeeIDs {
		if seen[id] {
			errs = append(errs, validator.ValidationError{Field: "employee_ids", Message: "duplicate employee id " + id})
			break
		}
		seen[id] = true
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========== RESPONSE DTOs ==========

type RunResponse struct {
	ID                string          `json:"id"`
	CompanyID         string          `json:"company_id"`
	Month             int             `json:"month"`
	Year              int             `json:"year"`
	Status            RunStatus       `json:"status"`
	Revision          int             `json:"revision"`
	Partial           bool            `json:"partial"`
	RuleTableVersion  string          `json:"rule_table_version"`
	EmployeeCount     int             `json:"employee_count"`
	FailureCount      int             `json:"failure_count"`
	TotalGross        decimal.Decimal `json:"total_gross"`
	TotalDeductions   decimal.Decimal `json:"total_deductions"`
	TotalNetPay       decimal.Decimal `json:"total_net_pay"`
	TotalEmployerCost decimal.Decimal `json:"total_employer_cost"`
	Statutory         []SchemeTotal   `json:"statutory"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

func NewRunResponse(run PayrollRun) RunResponse {
	return RunResponse{
		ID:                run.ID,
		CompanyID:         run.CompanyID,
		Month:             run.Month,
		Year:              run.Year,
		Status:            run.Status,
		Revision:          run.Revision,
		Partial:           run.Partial,
		RuleTableVersion:  run.RuleTableVersion,
		EmployeeCount:     run.EmployeeCount,
		FailureCount:      run.FailureCount,
		TotalGross:        run.TotalGross,
		TotalDeductions:   run.TotalDeductions,
		TotalNetPay:       run.TotalNetPay,
		TotalEmployerCost: run.TotalEmployerCost,
		Statutory:         run.Statutory,
		StartedAt:         run.StartedAt,
		CompletedAt:       run.CompletedAt,
	}
}

type SalaryRecordResponse struct {
	ID                    string                `json:"id"`
	EmployeeID            string                `json:"employee_id"`
	EmployeeCode          string                `json:"employee_code"`
	Revision              int                   `json:"revision"`
	State                 string                `json:"state"`
	Basis                 ProRationBasis        `json:"basis"`
	Earnings              []EarningLine         `json:"earnings"`
	GrossEarned           decimal.Decimal       `json:"gross_earned"`
	Deductions            Deductions            `json:"deductions"`
	TotalDeductions       decimal.Decimal       `json:"total_deductions"`
	EmployerContributions EmployerContributions `json:"employer_contributions"`
	NetPay                decimal.Decimal       `json:"net_pay"`
	ESIEligible           bool                  `json:"esi_eligible"`
}

func NewSalaryRecordResponse(r SalaryRecord) SalaryRecordResponse {
	return SalaryRecordResponse{
		ID:                    r.ID,
		EmployeeID:            r.EmployeeID,
		EmployeeCode:          r.EmployeeCode,
		Revision:              r.Revision,
		State:                 string(r.State),
		Basis:                 r.Basis,
		Earnings:              r.Earnings,
		GrossEarned:           r.GrossEarned,
		Deductions:            r.Deductions,
		TotalDeductions:       r.Deductions.Total(),
		EmployerContributions: r.Employer,
		NetPay:                r.NetPay,
		ESIEligible:           r.ESIEligible,
	}
}

func NewSalaryRecordResponses(records []SalaryRecord) []SalaryRecordResponse {
	out := make([]SalaryRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, NewSalaryRecordResponse(r))
	}
	return out
}

type ComputePayrollResponse struct {
	Run      RunResponse            `json:"run"`
	Records  []SalaryRecordResponse `json:"records"`
	Failures []EmployeeFailure      `json:"failures"`
}

func NewComputePayrollResponse(result RunResult) ComputePayrollResponse {
	failures := result.Failures
	if failures == nil {
		failures = []EmployeeFailure{}
	}
	return ComputePayrollResponse{
		Run:      NewRunResponse(result.Run),
		Records:  NewSalaryRecordResponses(result.Records),
		Failures: failures,
	}
}

// QueuedPayrollResponse is returned when a run is enqueued for the worker.
type QueuedPayrollResponse struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
	Month  int    `json:"month"`
	Year   int    `json:"year"`
}
