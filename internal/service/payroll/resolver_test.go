package payroll

import (
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/attendance"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/salary"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testStructure() salary.SalaryStructure {
	return salary.SalaryStructure{
		ID:          "ss-1",
		RevisionID:  "ssr-1",
		BasicSalary: dec("15000"),
		Components: []salary.Component{
			{Code: "HRA", Name: "House Rent", Amount: dec("6000")},
			{Code: "CONV", Name: "Conveyance", Amount: dec("1600"), Fixed: true},
		},
	}
}

func summary(lop string) attendance.Summary {
	return attendance.Summary{EmployeeID: "emp-1", WorkedDays: dec("20"), PaidLeaveDays: dec("2"), LOPDays: dec(lop)}
}

func TestResolve_FullMonth(t *testing.T) {
	// Act
	res, err := Resolve(testStructure(), summary("0"), 26)

	// Assert
	require.NoError(t, err)
	assert.True(t, res.PaidDays.Equal(dec("26")))
	assert.True(t, res.GrossEarned.Equal(dec("22600")), "gross = %s", res.GrossEarned)
	assert.True(t, res.BasicEarned.Equal(dec("15000")))
	assert.True(t, res.PerDayRate.Equal(dec("869.23")), "rate = %s", res.PerDayRate)
	require.Len(t, res.Lines, 3)
	assert.Equal(t, BasicCode, res.Lines[0].Code)
}

func TestResolve_ProRatesLOP(t *testing.T) {
	// Act
	res, err := Resolve(testStructure(), summary("2.5"), 26)

	// Assert
	require.NoError(t, err)
	assert.True(t, res.PaidDays.Equal(dec("23.5")))
	// 15000 * 23.5 / 26 = 13557.69 -> 13558
	assert.True(t, res.BasicEarned.Equal(dec("13558")), "basic = %s", res.BasicEarned)
	// 6000 * 23.5 / 26 = 5423.08 -> 5423
	assert.True(t, res.Lines[1].Amount.Equal(dec("5423")))
	assert.True(t, res.Lines[2].Amount.Equal(dec("1600")), "fixed component is not pro-rated")
	assert.True(t, res.GrossEarned.Equal(dec("20581")), "gross = %s", res.GrossEarned)

	basis := res.Basis()
	assert.Equal(t, 26, basis.WorkingDaysNorm)
	assert.True(t, basis.LOPDays.Equal(dec("2.5")))
	assert.True(t, basis.PaidLeaveDays.Equal(dec("2")))
}

func TestResolve_LOPBeyondNorm(t *testing.T) {
	res, err := Resolve(testStructure(), summary("30"), 26)

	require.NoError(t, err)
	assert.True(t, res.PaidDays.IsZero())
	assert.True(t, res.BasicEarned.IsZero())
	assert.True(t, res.Lines[1].Amount.IsZero())
	assert.True(t, res.GrossEarned.Equal(dec("1600")), "only fixed components remain")
}

func TestResolve_InvalidNorm(t *testing.T) {
	for _, norm := range []int{0, -3} {
		_, err := Resolve(testStructure(), summary("0"), norm)

		require.Error(t, err)
		assert.True(t, errors.Is(err, payroll.ErrConfiguration))
	}
}

func TestEmploymentGapLOP(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	exit := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		emp  employee.Employee
		want string
	}{
		{"whole month", employee.Employee{JoiningDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}, "0"},
		{"joined on first", employee.Employee{JoiningDate: start}, "0"},
		// 9 days outside: 26 * 9 / 31 = 7.55 -> 7.5
		{"joined on tenth", employee.Employee{JoiningDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)}, "7.5"},
		// 11 days outside: 26 * 11 / 31 = 9.23 -> 9
		{"left on twentieth", employee.Employee{JoiningDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ExitDate: &exit}, "9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EmploymentGapLOP(tt.emp, start, end, 26)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}
