package attendance

import "errors"

var (
	ErrInvalidDayStatus = errors.New("invalid attendance day status")
)

// ParseDayStatus validates a stored status value.
func ParseDayStatus(s string) (DayStatus, error) {
	switch st := DayStatus(s); st {
	case DayPresent, DayAbsent, DayHalfDay, DayPaidLeave, DayUnpaidLeave, DayHoliday, DayWeeklyOff:
		return st, nil
	}
	return "", ErrInvalidDayStatus
}
