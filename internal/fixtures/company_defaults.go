// Package fixtures holds the default setup a new establishment starts from.
package fixtures

import (
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/company"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/leave"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
)

func float64Ptr(f float64) *float64 { return &f }

// ==========================================
// PAYROLL SETTINGS
// ==========================================

// GetDefaultPayrollSettings registers the establishment in state with the
// standard 26-day norm and no pinned rule table.
func GetDefaultPayrollSettings(companyID string, state ruletable.State) company.PayrollSettings {
	return company.PayrollSettings{
		CompanyID:       companyID,
		State:           state,
		WorkingDaysNorm: company.DefaultWorkingDaysNorm,
		IncludeOnLeave:  true,
	}
}

// ==========================================
// LEAVE TYPES
// ==========================================

// GetDefaultLeaveTypes returns the usual earned, casual and sick leave split
// of shops and establishments rules.
func GetDefaultLeaveTypes(companyID string) []leave.LeaveType {
	return []leave.LeaveType{
		{
			CompanyID:       companyID,
			Code:            "EL",
			Name:            "Earned Leave",
			AnnualQuota:     15,
			CarryForward:    true,
			MaxCarryForward: float64Ptr(30),
			IsActive:        true,
		},
		{
			CompanyID:     companyID,
			Code:          "CL",
			Name:          "Casual Leave",
			AnnualQuota:   8,
			AllowNegative: true,
			IsActive:      true,
		},
		{
			CompanyID:       companyID,
			Code:            "SL",
			Name:            "Sick Leave",
			AnnualQuota:     7,
			CarryForward:    true,
			MaxCarryForward: float64Ptr(14),
			IsActive:        true,
		},
	}
}
