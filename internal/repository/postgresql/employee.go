package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

const employeeColumns = `
	id, company_id, employee_code, full_name, status, salary_structure_id, work_state,
	working_days_norm, epf_opt_out, uan, esi_ip_number, joining_date, exit_date,
	created_at, updated_at
`

func scanEmployee(row pgx.Row) (employee.Employee, error) {
	var emp employee.Employee
	err := row.Scan(
		&emp.ID, &emp.CompanyID, &emp.EmployeeCode, &emp.FullName, &emp.Status, &emp.SalaryStructureID, &emp.WorkState,
		&emp.WorkingDaysNorm, &emp.EPFOptOut, &emp.UAN, &emp.ESIIPNumber, &emp.JoiningDate, &emp.ExitDate,
		&emp.CreatedAt, &emp.UpdatedAt,
	)
	return emp, err
}

func collectEmployees(rows pgx.Rows) ([]employee.Employee, error) {
	defer rows.Close()

	employees := make([]employee.Employee, 0)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// GetByID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	emp, err := scanEmployee(q.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee with id %s: %w", id, err)
	}
	return emp, nil
}

// GetByIDs implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByIDs(ctx context.Context, companyID string, ids []string) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `SELECT ` + employeeColumns + `
		FROM employees
		WHERE company_id = $1 AND id = ANY($2)
		ORDER BY employee_code
	`
	rows, err := q.Query(ctx, query, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get employees by ids: %w", err)
	}
	return collectEmployees(rows)
}

// ListForPayroll implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) ListForPayroll(ctx context.Context, companyID string, statuses []employee.EmploymentStatus, start, end time.Time) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	exited := make([]string, 0, 2)
	for _, s := range employee.ExitedStatuses() {
		exited = append(exited, string(s))
	}

	query := `SELECT ` + employeeColumns + `
		FROM employees
		WHERE company_id = $1
		  AND joining_date <= $4
		  AND (exit_date IS NULL OR exit_date >= $3)
		  AND (status = ANY($2) OR (status = ANY($5) AND exit_date <= $4))
		ORDER BY employee_code
	`
	rows, err := q.Query(ctx, query, companyID, names, start, end, exited)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees for payroll: %w", err)
	}
	return collectEmployees(rows)
}

// GetActiveByCompanyID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetActiveByCompanyID(ctx context.Context, companyID string) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `SELECT ` + employeeColumns + `
		FROM employees
		WHERE company_id = $1 AND status = ANY($2)
		ORDER BY employee_code
	`
	active := []string{string(employee.StatusActive), string(employee.StatusOnLeave)}
	rows, err := q.Query(ctx, query, companyID, active)
	if err != nil {
		return nil, fmt.Errorf("failed to get active employees: %w", err)
	}
	return collectEmployees(rows)
}
