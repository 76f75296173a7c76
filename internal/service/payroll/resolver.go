package payroll

import (
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/attendance"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// BasicCode is the earning line code of basic salary.
const BasicCode = "BASIC"

// Resolution - earned salary of one employee month
type Resolution struct {
	PerDayRate      decimal.Decimal
	WorkingDaysNorm int
	WorkedDays      decimal.Decimal
	PaidLeaveDays   decimal.Decimal
	PaidDays        decimal.Decimal
	LOPDays         decimal.Decimal
	BasicEarned     decimal.Decimal
	GrossEarned     decimal.Decimal
	Lines           []payroll.EarningLine
}

// Basis returns the pro-ration basis stored on the salary record.
func (r Resolution) Basis() payroll.ProRationBasis {
	return payroll.ProRationBasis{
		WorkingDaysNorm: r.WorkingDaysNorm,
		WorkedDays:      r.WorkedDays,
		PaidLeaveDays:   r.PaidLeaveDays,
		LOPDays:         r.LOPDays,
		PaidDays:        r.PaidDays,
		PerDayRate:      r.PerDayRate,
	}
}

// Resolve pro-rates a salary structure over the attendance of one month.
// Paid leave is paid; every loss-of-pay day reduces paid days. Fixed
// components are paid in full.
func Resolve(structure salary.SalaryStructure, summary attendance.Summary, norm int) (Resolution, error) {
	if norm <= 0 {
		return Resolution{}, &payroll.ConfigurationError{
			EmployeeID: summary.EmployeeID,
			Reason:     "working days norm must be positive",
		}
	}

	normDays := decimal.NewFromInt(int64(norm))
	lop := summary.LOPDays
	if lop.IsNegative() {
		lop = decimal.Zero
	}
	paid := normDays.Sub(lop)
	if paid.IsNegative() {
		paid = decimal.Zero
	}
	if paid.GreaterThan(normDays) {
		paid = normDays
	}

	res := Resolution{
		PerDayRate:      structure.MonthlyTotal().Div(normDays).Round(2),
		WorkingDaysNorm: norm,
		WorkedDays:      summary.WorkedDays,
		PaidLeaveDays:   summary.PaidLeaveDays,
		PaidDays:        paid,
		LOPDays:         lop,
		GrossEarned:     decimal.Zero,
		Lines:           make([]payroll.EarningLine, 0, len(structure.Components)+1),
	}

	basic := money.ProRate(structure.BasicSalary, paid, normDays)
	res.BasicEarned = basic
	res.Lines = append(res.Lines, payroll.EarningLine{Code: BasicCode, Name: "Basic", Full: structure.BasicSalary, Amount: basic})
	res.GrossEarned = basic

	for _, c := range structure.Components {
		amount := money.RoundRupee(c.Amount)
		if !c.Fixed {
			amount = money.ProRate(c.Amount, paid, normDays)
		}
		res.Lines = append(res.Lines, payroll.EarningLine{Code: c.Code, Name: c.Name, Full: c.Amount, Amount: amount, Fixed: c.Fixed})
		res.GrossEarned = res.GrossEarned.Add(amount)
	}

	return res, nil
}

// EmploymentGapLOP converts the calendar days of [start, end] outside the
// employment into loss-of-pay days on the working-days norm, rounded to
// the nearest half day.
func EmploymentGapLOP(emp employee.Employee, start, end time.Time, norm int) decimal.Decimal {
	daysInMonth := int(end.Sub(start).Hours()/24) + 1
	outside := 0
	if emp.JoiningDate.After(start) {
		outside += int(emp.JoiningDate.Sub(start).Hours() / 24)
	}
	if emp.ExitDate != nil && emp.ExitDate.Before(end) {
		outside += int(end.Sub(*emp.ExitDate).Hours() / 24)
	}
	if outside <= 0 {
		return decimal.Zero
	}
	if outside > daysInMonth {
		outside = daysInMonth
	}

	two := decimal.NewFromInt(2)
	lop := decimal.NewFromInt(int64(norm * outside)).Div(decimal.NewFromInt(int64(daysInMonth)))
	return lop.Mul(two).Round(0).Div(two)
}
