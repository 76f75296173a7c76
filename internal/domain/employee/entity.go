package employee

import (
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
)

type Employee struct {
	ID                string
	CompanyID         string
	EmployeeCode      string
	FullName          string
	Status            EmploymentStatus
	SalaryStructureID *string
	WorkState         *ruletable.State // deployment state at the client site; nil uses the company's
	WorkingDaysNorm   *int
	EPFOptOut         bool
	UAN               *string
	ESIIPNumber       *string
	JoiningDate       time.Time
	ExitDate          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type EmploymentStatus string

const (
	StatusActive     EmploymentStatus = "active"
	StatusOnLeave    EmploymentStatus = "on_leave"
	StatusInactive   EmploymentStatus = "inactive"
	StatusResigned   EmploymentStatus = "resigned"
	StatusTerminated EmploymentStatus = "terminated"
)

// EmployedDuring reports whether the employment overlaps [start, end].
func (e Employee) EmployedDuring(start, end time.Time) bool {
	if e.JoiningDate.After(end) {
		return false
	}
	if e.ExitDate != nil && e.ExitDate.Before(start) {
		return false
	}
	return true
}

// Jurisdiction returns the state whose PT and LWF tables apply.
func (e Employee) Jurisdiction(fallback ruletable.State) ruletable.State {
	if e.WorkState != nil && *e.WorkState != "" {
		return *e.WorkState
	}
	return fallback
}

// PayrollStatuses lists the statuses included in a default payroll run.
func PayrollStatuses(includeOnLeave bool) []EmploymentStatus {
	if includeOnLeave {
		return []EmploymentStatus{StatusActive, StatusOnLeave}
	}
	return []EmploymentStatus{StatusActive}
}

// ExitedStatuses are included in a default run only for the month of exit,
// which is paid up to the exit date.
func ExitedStatuses() []EmploymentStatus {
	return []EmploymentStatus{StatusResigned, StatusTerminated}
}

// SelectedForPayroll reports whether a default run over [start, end] picks
// the employee: one of statuses, or exited within the period.
func (e Employee) SelectedForPayroll(statuses []EmploymentStatus, start, end time.Time) bool {
	if !e.EmployedDuring(start, end) {
		return false
	}
	for _, st := range statuses {
		if e.Status == st {
			return true
		}
	}
	if e.ExitDate == nil || e.ExitDate.After(end) {
		return false
	}
	for _, st := range ExitedStatuses() {
		if e.Status == st {
			return true
		}
	}
	return false
}
