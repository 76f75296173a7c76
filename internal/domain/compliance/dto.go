package compliance

import (
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== REQUEST DTOs ==========

type StartFilingRequest struct {
	CompanyID string          `json:"-"`
	Type      Type            `json:"-"`
	State     ruletable.State `json:"state,omitempty"`
	Month     int             `json:"-"`
	Year      int             `json:"-"`
}

func (r *StartFilingRequest) Validate() error {
	return validatePeriod(r.CompanyID, r.Type, r.State, r.Month, r.Year)
}

type FileObligationRequest struct {
	CompanyID string          `json:"-"`
	Type      Type            `json:"-"`
	State     ruletable.State `json:"state,omitempty"`
	Month     int             `json:"-"`
	Year      int             `json:"-"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" validate:"required,max=100"`
}

func (r *FileObligationRequest) Validate() error {
	var errs validator.ValidationErrors
	if err := validatePeriod(r.CompanyID, r.Type, r.State, r.Month, r.Year); err != nil {
		errs = append(errs, err.(validator.ValidationErrors)...)
	}
	if err := validator.Struct(r); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		errs = append(errs, verrs...)
	}
	if !r.Amount.IsPositive() {
		errs = append(errs, validator.ValidationError{Field: "amount", Message: "amount must be greater than 0"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePeriod(companyID string, t Type, state ruletable.State, month, year int) error {
	var errs validator.ValidationErrors
	if validator.IsEmpty(companyID) {
		errs = append(errs, validator.ValidationError{Field: "company_id", Message: "company_id is required"})
	}
	if !t.Valid() {
		errs = append(errs, validator.ValidationError{Field: "type", Message: "type must be one of EPF ESI PT LWF"})
	}
	if state != "" && !validator.IsValidStateCode(string(state)) {
		errs = append(errs, validator.ValidationError{Field: "state", Message: "state must be a two-letter state code"})
	}
	if !validator.IsValidPeriod(month, year) {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "month must be 1-12 and year 2000-9999"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========== RESPONSE DTOs ==========

type ComplianceItemResponse struct {
	ID             string           `json:"id"`
	Type           Type             `json:"type"`
	State          string           `json:"state,omitempty"`
	Month          int              `json:"month"`
	Year           int              `json:"year"`
	EmployeeAmount decimal.Decimal  `json:"employee_amount"`
	EmployerAmount decimal.Decimal  `json:"employer_amount"`
	Amount         decimal.Decimal  `json:"amount"`
	DueDate        string           `json:"due_date"`
	Status         Status           `json:"status"`
	RunID          string           `json:"run_id"`
	RunRevision    int              `json:"run_revision"`
	FiledAmount    *decimal.Decimal `json:"filed_amount,omitempty"`
	FiledReference *string          `json:"filed_reference,omitempty"`
	FiledAt        *time.Time       `json:"filed_at,omitempty"`
}

func NewComplianceItemResponse(item ComplianceItem) ComplianceItemResponse {
	return ComplianceItemResponse{
		ID:             item.ID,
		Type:           item.Type,
		State:          string(item.State),
		Month:          item.Month,
		Year:           item.Year,
		EmployeeAmount: item.EmployeeAmount,
		EmployerAmount: item.EmployerAmount,
		Amount:         item.Amount,
		DueDate:        item.DueDate.Format("2006-01-02"),
		Status:         item.Status,
		RunID:          item.RunID,
		RunRevision:    item.RunRevision,
		FiledAmount:    item.FiledAmount,
		FiledReference: item.FiledReference,
		FiledAt:        item.FiledAt,
	}
}

func NewComplianceItemResponses(items []ComplianceItem) []ComplianceItemResponse {
	out := make([]ComplianceItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewComplianceItemResponse(item))
	}
	return out
}
