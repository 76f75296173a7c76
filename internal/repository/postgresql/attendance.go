package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/attendance"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/database"
)

type attendanceRepositoryImpl struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepositoryImpl{db: db}
}

// ListForPeriod implements attendance.AttendanceRepository.
func (r *attendanceRepositoryImpl) ListForPeriod(ctx context.Context, companyID string, employeeIDs []string, start, end time.Time) ([]attendance.Attendance, error) {
	if len(employeeIDs) == 0 {
		return []attendance.Attendance{}, nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_id, company_id, date, status, created_at, updated_at
		FROM attendances
		WHERE company_id = $1
		  AND employee_id = ANY($2)
		  AND date BETWEEN $3 AND $4
		ORDER BY employee_id, date
	`

	rows, err := q.Query(ctx, query, companyID, employeeIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance for period: %w", err)
	}
	defer rows.Close()

	records := make([]attendance.Attendance, 0)
	for rows.Next() {
		var a attendance.Attendance
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.CompanyID, &a.Date, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, a)
	}
	return records, rows.Err()
}
