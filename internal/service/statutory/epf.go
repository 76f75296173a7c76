package statutory

import (
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// EPFContribution - provident fund with the employer share split into
// the pension (EPS) and provident (A/c 1) accounts
type EPFContribution struct {
	Contribution
	EmployerEPF decimal.Decimal
	EmployerEPS decimal.Decimal
	Wage        decimal.Decimal
}

// EPF computes provident fund on basic wage capped at the wage ceiling.
func EPF(basic decimal.Decimal, rules ruletable.EPFRules) EPFContribution {
	if basic.IsNegative() {
		basic = decimal.Zero
	}
	wage := decimal.Min(basic, rules.WageCeiling)

	employee := money.Percent(wage, rules.EmployeeRate)
	employer := money.Percent(wage, rules.EmployerRate)

	epsWage := decimal.Min(basic, rules.EPSWageCeiling)
	eps := money.Percent(epsWage, rules.EPSRate)
	if eps.GreaterThan(employer) {
		eps = employer
	}

	return EPFContribution{
		Contribution: Contribution{EmployeeAmount: employee, EmployerAmount: employer},
		EmployerEPF:  employer.Sub(eps),
		EmployerEPS:  eps,
		Wage:         wage,
	}
}
