package statutory

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// ESIWithinCeiling reports whether gross makes an employee ESI-eligible.
func ESIWithinCeiling(gross decimal.Decimal, rules ruletable.ESIRules) bool {
	return gross.LessThanOrEqual(rules.WageCeiling)
}

// ESI computes state insurance on gross. eligible is the determination for
// the contribution period, not this month's wage test.
func ESI(gross decimal.Decimal, eligible bool, rules ruletable.ESIRules) Contribution {
	if !eligible || !gross.IsPositive() {
		return zero()
	}
	return Contribution{
		EmployeeAmount: money.Percent(gross, rules.EmployeeRate),
		EmployerAmount: money.Percent(gross, rules.EmployerRate),
	}
}

// ESIPeriod is a half-yearly contribution period, April–September or October–March.
type ESIPeriod struct {
	Start time.Time
}

// ESIPeriodOf returns the contribution period containing month/year.
func ESIPeriodOf(month, year int) ESIPeriod {
	switch {
	case month >= 4 && month <= 9:
		return ESIPeriod{Start: time.Date(year, time.April, 1, 0, 0, 0, 0, time.UTC)}
	case month >= 10:
		return ESIPeriod{Start: time.Date(year, time.October, 1, 0, 0, 0, 0, time.UTC)}
	default:
		return ESIPeriod{Start: time.Date(year-1, time.October, 1, 0, 0, 0, 0, time.UTC)}
	}
}

// Key identifies the period in storage, e.g. "2024-10".
func (p ESIPeriod) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Start.Year(), int(p.Start.Month()))
}

// End is the last day of the period.
func (p ESIPeriod) End() time.Time {
	return p.Start.AddDate(0, 6, -1)
}

// DetermineESI resolves eligibility for a month. A prior determination for
// the same contribution period wins; otherwise this month's wage decides and
// the returned bool tells the caller to persist it.
func DetermineESI(gross decimal.Decimal, prior *bool, rules ruletable.ESIRules) (eligible bool, isNew bool) {
	if prior != nil {
		return *prior, false
	}
	return ESIWithinCeiling(gross, rules), true
}
