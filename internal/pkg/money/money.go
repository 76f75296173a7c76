// Package money holds the rupee rounding rules shared by payroll and statutory code.
package money

import "github.com/shopspring/decimal"

var half = decimal.NewFromFloat(0.5)

// RoundRupee rounds to the nearest whole rupee, half-up.
func RoundRupee(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}

// Percent applies rate (0.12 for 12%) to amount and rounds to the rupee.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return RoundRupee(amount.Mul(rate))
}

// ProRate returns amount * num / den rounded to the rupee. den must be positive.
func ProRate(amount, num, den decimal.Decimal) decimal.Decimal {
	return RoundRupee(amount.Mul(num).Div(den))
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
