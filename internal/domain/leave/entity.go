package leave

import "time"

// LeaveType - company leave policy
type LeaveType struct {
	ID          string
	CompanyID   string
	Code        string
	Name        string
	AnnualQuota float64

	// Rollover Rules
	CarryForward    bool
	MaxCarryForward *float64 // nil carries the whole closing balance

	// AllowNegative converts usage beyond the balance into loss-of-pay days
	AllowNegative bool
	IsActive      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeaveBalance - one ledger row per employee, leave type and year.
// Day counts move in half-day steps.
type LeaveBalance struct {
	ID          string
	EmployeeID  string
	LeaveTypeID string
	Year        int
	Opening     float64
	Accrued     float64
	Used        float64
	LOPDays     float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Closing is always derived, never stored.
func (b LeaveBalance) Closing() float64 {
	return b.Opening + b.Accrued - b.Used
}

// Available is the entitlement left before usage turns into loss of pay.
func (b LeaveBalance) Available() float64 {
	available := b.Closing()
	if available < 0 {
		return 0
	}
	return available
}

// LOPEntry - usage that exceeded the balance, charged to the payroll month of Date
type LOPEntry struct {
	ID          string
	EmployeeID  string
	LeaveTypeID string
	Date        time.Time
	Days        float64
	CreatedAt   time.Time
}
