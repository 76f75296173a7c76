package attendance

import (
	"context"
	"time"
)

type AttendanceRepository interface {
	// ListForPeriod returns day records of the given employees within [start, end].
	ListForPeriod(ctx context.Context, companyID string, employeeIDs []string, start, end time.Time) ([]Attendance, error)
}
