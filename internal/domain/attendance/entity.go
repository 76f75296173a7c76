package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayStatus - attendance marker for one employee day
type DayStatus string

const (
	DayPresent     DayStatus = "present"
	DayAbsent      DayStatus = "absent"
	DayHalfDay     DayStatus = "half_day"
	DayPaidLeave   DayStatus = "paid_leave"
	DayUnpaidLeave DayStatus = "unpaid_leave"
	DayHoliday     DayStatus = "holiday"
	DayWeeklyOff   DayStatus = "weekly_off"
)

type Attendance struct {
	ID         string
	EmployeeID string
	CompanyID  string
	Date       time.Time
	Status     DayStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Summary - per-period aggregate consumed by payroll
type Summary struct {
	EmployeeID    string
	WorkedDays    decimal.Decimal
	PaidLeaveDays decimal.Decimal
	LOPDays       decimal.Decimal
}

// EmptySummary is the aggregate of an employee with no marked days.
func EmptySummary(employeeID string) Summary {
	return Summary{
		EmployeeID:    employeeID,
		WorkedDays:    decimal.Zero,
		PaidLeaveDays: decimal.Zero,
		LOPDays:       decimal.Zero,
	}
}

var half = decimal.NewFromFloat(0.5)

// Add folds one day into the summary. A half day is half worked, half loss of pay.
func (s Summary) Add(status DayStatus) Summary {
	switch status {
	case DayPresent:
		s.WorkedDays = s.WorkedDays.Add(decimal.NewFromInt(1))
	case DayHalfDay:
		s.WorkedDays = s.WorkedDays.Add(half)
		s.LOPDays = s.LOPDays.Add(half)
	case DayPaidLeave:
		s.PaidLeaveDays = s.PaidLeaveDays.Add(decimal.NewFromInt(1))
	case DayAbsent, DayUnpaidLeave:
		s.LOPDays = s.LOPDays.Add(decimal.NewFromInt(1))
	}
	return s
}

// Summarize aggregates the records of one employee.
func Summarize(employeeID string, records []Attendance) Summary {
	summary := EmptySummary(employeeID)
	for _, r := range records {
		if r.EmployeeID != employeeID {
			continue
		}
		summary = summary.Add(r.Status)
	}
	return summary
}
