package attendance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	day := func(d int, status DayStatus) Attendance {
		return Attendance{EmployeeID: "emp-1", Date: time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC), Status: status}
	}
	records := []Attendance{
		day(1, DayPresent),
		day(2, DayPresent),
		day(3, DayHalfDay),
		day(4, DayAbsent),
		day(5, DayWeeklyOff),
		day(6, DayPaidLeave),
		day(7, DayUnpaidLeave),
		day(8, DayHoliday),
		{EmployeeID: "emp-2", Status: DayAbsent},
	}

	got := Summarize("emp-1", records)

	assert.Equal(t, "emp-1", got.EmployeeID)
	assert.True(t, got.WorkedDays.Equal(decimal.NewFromFloat(2.5)), "worked = %s", got.WorkedDays)
	assert.True(t, got.PaidLeaveDays.Equal(decimal.NewFromInt(1)), "paid leave = %s", got.PaidLeaveDays)
	assert.True(t, got.LOPDays.Equal(decimal.NewFromFloat(2.5)), "lop = %s", got.LOPDays)
}

func TestParseDayStatus(t *testing.T) {
	st, err := ParseDayStatus("half_day")
	assert.NoError(t, err)
	assert.Equal(t, DayHalfDay, st)

	_, err = ParseDayStatus("late")
	assert.ErrorIs(t, err, ErrInvalidDayStatus)
}
