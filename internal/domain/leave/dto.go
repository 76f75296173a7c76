package leave

import (
	"math"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/validator"
)

type RecordUsageRequest struct {
	EmployeeID  string  `json:"employee_id" validate:"required"`
	LeaveTypeID string  `json:"leave_type_id" validate:"required"`
	Year        int     `json:"year" validate:"gte=2000,lte=9999"`
	Days        float64 `json:"days" validate:"gt=0"`
	Date        string  `json:"date" validate:"required"`
}

func (r *RecordUsageRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}

	var errs validator.ValidationErrors
	if r.Days*2 != math.Trunc(r.Days*2) {
		errs = append(errs, validator.ValidationError{
			Field:   "days",
			Message: "days must be a multiple of 0.5",
		})
	}
	date, ok := validator.IsValidDate(r.Date)
	if !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date must be in YYYY-MM-DD format",
		})
	} else if date.Year() != r.Year {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date must fall within year",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// UsageDate returns the parsed date; call after Validate.
func (r *RecordUsageRequest) UsageDate() time.Time {
	date, _ := validator.IsValidDate(r.Date)
	return date
}

type BalanceResponse struct {
	LeaveTypeID string  `json:"leave_type_id"`
	Year        int     `json:"year"`
	Opening     float64 `json:"opening"`
	Accrued     float64 `json:"accrued"`
	Used        float64 `json:"used"`
	LOPDays     float64 `json:"lop_days"`
	Closing     float64 `json:"closing"`
}

func NewBalanceResponse(b LeaveBalance) BalanceResponse {
	return BalanceResponse{
		LeaveTypeID: b.LeaveTypeID,
		Year:        b.Year,
		Opening:     b.Opening,
		Accrued:     b.Accrued,
		Used:        b.Used,
		LOPDays:     b.LOPDays,
		Closing:     b.Closing(),
	}
}

type ListBalanceResponse struct {
	EmployeeID string            `json:"employee_id"`
	Year       int               `json:"year"`
	Balances   []BalanceResponse `json:"balances"`
}

func NewListBalanceResponse(employeeID string, year int, balances []LeaveBalance) ListBalanceResponse {
	resp := ListBalanceResponse{EmployeeID: employeeID, Year: year, Balances: make([]BalanceResponse, 0, len(balances))}
	for _, b := range balances {
		resp.Balances = append(resp.Balances, NewBalanceResponse(b))
	}
	return resp
}
