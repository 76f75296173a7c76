package leave

import (
	"math"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/leave"
)

// QuotaCalculator derives the opening and accrued entitlement of a new ledger year.
type QuotaCalculator struct {
}

func NewQuotaCalculator() *QuotaCalculator {
	return &QuotaCalculator{}
}

// Accrued returns the annual quota, pro-rated by the months remaining after
// joining when the employee joined during year. The joining month counts when
// the employee joined on or before the 15th.
func (c *QuotaCalculator) Accrued(leaveType leave.LeaveType, joiningDate time.Time, year int) float64 {
	if joiningDate.Year() < year {
		return leaveType.AnnualQuota
	}
	if joiningDate.Year() > year {
		return 0
	}

	months := c.monthsRemaining(joiningDate)
	return roundHalfDay(leaveType.AnnualQuota * float64(months) / 12.0)
}

// Opening carries the prior year's closing balance forward when the type allows it.
func (c *QuotaCalculator) Opening(leaveType leave.LeaveType, prior *leave.LeaveBalance) float64 {
	if !leaveType.CarryForward || prior == nil {
		return 0
	}

	opening := prior.Closing()
	if leaveType.MaxCarryForward != nil && opening > *leaveType.MaxCarryForward {
		opening = *leaveType.MaxCarryForward
	}
	if opening < 0 {
		opening = 0
	}
	return opening
}

func (c *QuotaCalculator) monthsRemaining(joiningDate time.Time) int {
	months := 12 - int(joiningDate.Month())
	if joiningDate.Day() <= 15 {
		months++
	}
	return months
}

// roundHalfDay rounds to the nearest half day, halves rounding up.
func roundHalfDay(days float64) float64 {
	return math.Floor(days*2+0.5) / 2
}
