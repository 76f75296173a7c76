package salary

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalaryStructure - one revision of an organization's salary structure.
// A revision referenced by a completed payroll run is locked; changes are
// made by adding a revision with a later EffectiveFrom.
type SalaryStructure struct {
	ID            string
	RevisionID    string
	CompanyID     string
	Name          string
	BasicSalary   decimal.Decimal
	Components    []Component
	EffectiveFrom time.Time
	LockedAt      *time.Time
}

// Component - allowance paid on top of basic (HRA, conveyance, special)
type Component struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Fixed  bool            `json:"fixed"` // paid in full regardless of loss-of-pay days
}

// MonthlyTotal is basic plus every allowance.
func (s SalaryStructure) MonthlyTotal() decimal.Decimal {
	total := s.BasicSalary
	for _, c := range s.Components {
		total = total.Add(c.Amount)
	}
	return total
}
