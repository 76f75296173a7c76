package company

import (
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
)

// DefaultWorkingDaysNorm is used when an organization has not configured one.
const DefaultWorkingDaysNorm = 26

type Company struct {
	ID        string
	Name      string
	Username  string
	Address   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PayrollSettings - organization-level payroll and statutory setup
type PayrollSettings struct {
	CompanyID         string
	State             ruletable.State // registered establishment state
	WorkingDaysNorm   int
	IncludeOnLeave    bool
	RuleTableVersion  *string // pinned version; nil selects the version effective for the period
	EPFEstablishment  *string
	ESIEmployerCode   *string
	PTRegistrationNo  *string
	LWFRegistrationNo *string
	UpdatedAt         time.Time
}

// Norm returns the configured working-days norm, or the default when unset.
func (s PayrollSettings) Norm() int {
	if s.WorkingDaysNorm == 0 {
		return DefaultWorkingDaysNorm
	}
	return s.WorkingDaysNorm
}
