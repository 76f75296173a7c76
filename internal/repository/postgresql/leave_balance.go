package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/leave"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type leaveBalanceRepositoryImpl struct {
	db *database.DB
}

func NewLeaveBalanceRepository(db *database.DB) leave.LeaveBalanceRepository {
	return &leaveBalanceRepositoryImpl{db: db}
}

const leaveBalanceColumns = `
	id, employee_id, leave_type_id, year,
	opening, accrued, used, lop_days,
	created_at, updated_at
`

func scanLeaveBalance(row pgx.Row) (leave.LeaveBalance, error) {
	var b leave.LeaveBalance
	err := row.Scan(
		&b.ID, &b.EmployeeID, &b.LeaveTypeID, &b.Year,
		&b.Opening, &b.Accrued, &b.Used, &b.LOPDays,
		&b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// GetByEmployeeYear implements leave.LeaveBalanceRepository.
func (r *leaveBalanceRepositoryImpl) GetByEmployeeYear(ctx context.Context, employeeID string, year int) ([]leave.LeaveBalance, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + leaveBalanceColumns + `
		FROM leave_balances
		WHERE employee_id = $1 AND year = $2
		ORDER BY leave_type_id
	`
	rows, err := q.Query(ctx, query, employeeID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to get leave balances: %w", err)
	}
	defer rows.Close()

	balances := make([]leave.LeaveBalance, 0)
	for rows.Next() {
		b, err := scanLeaveBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// GetForUpdate implements leave.LeaveBalanceRepository.
func (r *leaveBalanceRepositoryImpl) GetForUpdate(ctx context.Context, employeeID, leaveTypeID string, year int) (leave.LeaveBalance, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + leaveBalanceColumns + `
		FROM leave_balances
		WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3
		FOR UPDATE
	`
	b, err := scanLeaveBalance(q.QueryRow(ctx, query, employeeID, leaveTypeID, year))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leave.LeaveBalance{}, leave.ErrBalanceNotFound
		}
		return leave.LeaveBalance{}, fmt.Errorf("failed to lock leave balance: %w", err)
	}
	return b, nil
}

// Create implements leave.LeaveBalanceRepository.
func (r *leaveBalanceRepositoryImpl) Create(ctx context.Context, balance leave.LeaveBalance) (leave.LeaveBalance, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO leave_balances (employee_id, leave_type_id, year, opening, accrued, used, lop_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + leaveBalanceColumns

	created, err := scanLeaveBalance(q.QueryRow(ctx, query,
		balance.EmployeeID, balance.LeaveTypeID, balance.Year,
		balance.Opening, balance.Accrued, balance.Used, balance.LOPDays,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return leave.LeaveBalance{}, leave.ErrBalanceExists
		}
		return leave.LeaveBalance{}, fmt.Errorf("failed to create leave balance: %w", err)
	}
	return created, nil
}

// UpdateUsage implements leave.LeaveBalanceRepository.
func (r *leaveBalanceRepositoryImpl) UpdateUsage(ctx context.Context, balance leave.LeaveBalance) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE leave_balances
		SET used = $1, lop_days = $2, updated_at = NOW()
		WHERE id = $3
	`
	tag, err := q.Exec(ctx, query, balance.Used, balance.LOPDays, balance.ID)
	if err != nil {
		return fmt.Errorf("failed to update leave usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return leave.ErrBalanceNotFound
	}
	return nil
}

// AddLOPEntry implements leave.LeaveBalanceRepository.
func (r *leaveBalanceRepositoryImpl) AddLOPEntry(ctx context.Context, entry leave.LOPEntry) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO leave_lop_entries (employee_id, leave_type_id, date, days)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := q.Exec(ctx, query, entry.EmployeeID, entry.LeaveTypeID, entry.Date, entry.Days); err != nil {
		return fmt.Errorf("failed to add loss-of-pay entry: %w", err)
	}
	return nil
}

// LOPDaysBetween implements leave.LeaveBalanceRepository.
func (r *leaveBalanceRepositoryImpl) LOPDaysBetween(ctx context.Context, employeeIDs []string, start, end time.Time) (map[string]decimal.Decimal, error) {
	days := make(map[string]decimal.Decimal, len(employeeIDs))
	if len(employeeIDs) == 0 {
		return days, nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT employee_id, SUM(days)
		FROM leave_lop_entries
		WHERE employee_id = ANY($1) AND date BETWEEN $2 AND $3
		GROUP BY employee_id
	`
	rows, err := q.Query(ctx, query, employeeIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to sum loss-of-pay days: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			employeeID string
			total      decimal.Decimal
		)
		if err := rows.Scan(&employeeID, &total); err != nil {
			return nil, err
		}
		days[employeeID] = total
	}
	return days, rows.Err()
}
