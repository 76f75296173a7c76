package statutory

import (
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/shopspring/decimal"
)

// PT looks up professional tax for gross in the state's slab table.
// Professional tax has no employer share.
func PT(gross decimal.Decimal, state ruletable.State, month int, rules *ruletable.RuleSet) (Contribution, error) {
	if rules == nil {
		return Contribution{}, ErrNoRuleSet
	}
	schedule, ok := rules.ProfessionalTax[state]
	if !ok {
		return Contribution{}, &ruletable.UnsupportedJurisdictionError{Scheme: ruletable.SchemePT, State: state, Version: rules.Version}
	}
	if schedule.Exempt {
		return zero(), nil
	}

	slab, ok := schedule.SlabFor(gross)
	if !ok {
		return zero(), nil
	}

	amount := slab.Amount
	if override, ok := schedule.MonthAmounts[month]; ok && schedule.IsTopSlab(slab) {
		amount = override
	}
	return Contribution{EmployeeAmount: amount, EmployerAmount: decimal.Zero}, nil
}
