package statutory

import (
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// LWF returns the labour welfare fund contribution for month. Months outside
// the state's filing cycle, and months without wages, yield zero.
func LWF(gross decimal.Decimal, state ruletable.State, month int, rules *ruletable.RuleSet) (Contribution, error) {
	if rules == nil {
		return Contribution{}, ErrNoRuleSet
	}
	schedule, ok := rules.LabourWelfareFund[state]
	if !ok {
		return Contribution{}, &ruletable.UnsupportedJurisdictionError{Scheme: ruletable.SchemeLWF, State: state, Version: rules.Version}
	}
	if schedule.Exempt || !schedule.InFilingMonth(month) || !gross.IsPositive() {
		return zero(), nil
	}

	shares := decimal.NewFromInt(schedule.EmployeeShare + schedule.EmployerShare)
	employee := money.ProRate(schedule.Amount, decimal.NewFromInt(schedule.EmployeeShare), shares)
	return Contribution{
		EmployeeAmount: employee,
		EmployerAmount: schedule.Amount.Sub(employee),
	}, nil
}
