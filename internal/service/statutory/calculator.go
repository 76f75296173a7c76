// Package statutory computes the Indian statutory contributions (EPF, ESI,
// Professional Tax, Labour Welfare Fund) of one employee for one month.
// Every function is pure: amounts go in, rounded rupee amounts come out.
package statutory

import (
	"errors"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

var ErrNoRuleSet = errors.New("statutory: rule set is required")

// Contribution - employee and employer share of one scheme
type Contribution struct {
	EmployeeAmount decimal.Decimal
	EmployerAmount decimal.Decimal
}

func (c Contribution) Total() decimal.Decimal {
	return c.EmployeeAmount.Add(c.EmployerAmount)
}

func zero() Contribution {
	return Contribution{EmployeeAmount: decimal.Zero, EmployerAmount: decimal.Zero}
}

// Input - everything the calculator needs for one employee month
type Input struct {
	Month       int
	Year        int
	BasicWage   decimal.Decimal
	GrossWage   decimal.Decimal
	State       ruletable.State
	EPFOptOut   bool
	ESIEligible bool
}

// Result - per-scheme contributions of one employee month
type Result struct {
	EPF EPFContribution
	ESI Contribution
	PT  Contribution
	LWF Contribution
}

func (r Result) EmployeeTotal() decimal.Decimal {
	return money.Sum(r.EPF.EmployeeAmount, r.ESI.EmployeeAmount, r.PT.EmployeeAmount, r.LWF.EmployeeAmount)
}

func (r Result) EmployerTotal() decimal.Decimal {
	return money.Sum(r.EPF.EmployerAmount, r.ESI.EmployerAmount, r.PT.EmployerAmount, r.LWF.EmployerAmount)
}

type Calculator struct {
	rules *ruletable.RuleSet
}

func NewCalculator(rules *ruletable.RuleSet) *Calculator {
	return &Calculator{rules: rules}
}

// Version reports the rule set version the calculator applies.
func (c *Calculator) Version() string {
	if c.rules == nil {
		return ""
	}
	return c.rules.Version
}

// Compute applies every scheme to in. An unsupported state fails the whole
// computation so the caller never books a partial set of deductions.
func (c *Calculator) Compute(in Input) (Result, error) {
	if c.rules == nil {
		return Result{}, ErrNoRuleSet
	}

	result := Result{
		EPF: EPFContribution{Contribution: zero(), EmployerEPF: decimal.Zero, EmployerEPS: decimal.Zero, Wage: decimal.Zero},
		ESI: zero(),
	}
	if !in.EPFOptOut {
		result.EPF = EPF(in.BasicWage, c.rules.EPF)
	}
	result.ESI = ESI(in.GrossWage, in.ESIEligible, c.rules.ESI)

	pt, err := PT(in.GrossWage, in.State, in.Month, c.rules)
	if err != nil {
		return Result{}, err
	}
	result.PT = pt

	lwf, err := LWF(in.GrossWage, in.State, in.Month, c.rules)
	if err != nil {
		return Result{}, err
	}
	result.LWF = lwf

	return result, nil
}
