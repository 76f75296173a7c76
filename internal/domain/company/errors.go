package company

import "errors"

var (
	ErrCompanyNotFound         = errors.New("company not found")
	ErrPayrollSettingsNotFound = errors.New("company payroll settings not found")
)
