package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoundRupee(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"157.5", "158"},
		{"157.49", "157"},
		{"0.5", "1"},
		{"1800", "1800"},
		{"-2.5", "-2"},
	}
	for _, c := range cases {
		got := RoundRupee(d(c.in))
		assert.True(t, got.Equal(d(c.want)), "RoundRupee(%s) = %s, want %s", c.in, got, c.want)
	}
}

func TestPercent(t *testing.T) {
	assert.True(t, Percent(d("15000"), d("0.12")).Equal(d("1800")))
	assert.True(t, Percent(d("21000"), d("0.0075")).Equal(d("158")))
	assert.True(t, Percent(d("21000"), d("0.0325")).Equal(d("683")))
}

func TestProRate(t *testing.T) {
	// 10000 over 26 days, 20 paid: 7692.307... rounds down
	assert.True(t, ProRate(d("10000"), d("20"), d("26")).Equal(d("7692")))
	assert.True(t, ProRate(d("2600"), d("13"), d("26")).Equal(d("1300")))
}

func TestSum(t *testing.T) {
	assert.True(t, Sum().Equal(decimal.Zero))
	assert.True(t, Sum(d("1"), d("2.5"), d("3")).Equal(d("6.5")))
}
