package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

// ========== RUNS ==========

const payrollRunColumns = `
	id, company_id, month, year, status, revision, partial, rule_table_version,
	employee_count, failure_count,
	total_gross, total_deductions, total_net_pay, total_employer_cost, statutory,
	started_at, completed_at, created_at, updated_at
`

func scanPayrollRun(row pgx.Row) (payroll.PayrollRun, error) {
	var (
		run           payroll.PayrollRun
		statutoryJSON []byte
	)
	err := row.Scan(
		&run.ID, &run.CompanyID, &run.Month, &run.Year, &run.Status, &run.Revision, &run.Partial, &run.RuleTableVersion,
		&run.EmployeeCount, &run.FailureCount,
		&run.TotalGross, &run.TotalDeductions, &run.TotalNetPay, &run.TotalEmployerCost, &statutoryJSON,
		&run.StartedAt, &run.CompletedAt, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	if err := json.Unmarshal(statutoryJSON, &run.Statutory); err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to decode statutory totals: %w", err)
	}
	return run, nil
}

func (r *payrollRepository) GetRun(ctx context.Context, companyID string, month, year int) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollRunColumns + `
		FROM payroll_runs
		WHERE company_id = $1 AND month = $2 AND year = $3
	`
	run, err := scanPayrollRun(q.QueryRow(ctx, query, companyID, month, year))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, payroll.ErrRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run: %w", err)
	}
	return run, nil
}

func (r *payrollRepository) SaveRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	statutory := run.Statutory
	if statutory == nil {
		statutory = []payroll.SchemeTotal{}
	}
	statutoryJSON, err := json.Marshal(statutory)
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to encode statutory totals: %w", err)
	}

	query := `
		INSERT INTO payroll_runs (
			id, company_id, month, year, status, revision, partial, rule_table_version,
			employee_count, failure_count,
			total_gross, total_deductions, total_net_pay, total_employer_cost, statutory,
			started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			revision = EXCLUDED.revision,
			partial = EXCLUDED.partial,
			rule_table_version = EXCLUDED.rule_table_version,
			employee_count = EXCLUDED.employee_count,
			failure_count = EXCLUDED.failure_count,
			total_gross = EXCLUDED.total_gross,
			total_deductions = EXCLUDED.total_deductions,
			total_net_pay = EXCLUDED.total_net_pay,
			total_employer_cost = EXCLUDED.total_employer_cost,
			statutory = EXCLUDED.statutory,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()
		RETURNING ` + payrollRunColumns

	saved, err := scanPayrollRun(q.QueryRow(ctx, query,
		run.ID, run.CompanyID, run.Month, run.Year, run.Status, run.Revision, run.Partial, run.RuleTableVersion,
		run.EmployeeCount, run.FailureCount,
		run.TotalGross, run.TotalDeductions, run.TotalNetPay, run.TotalEmployerCost, statutoryJSON,
		run.StartedAt, run.CompletedAt,
	))
	if err != nil {
		// Another instance inserted the period's run first.
		if isUniqueViolation(err) {
			return payroll.PayrollRun{}, payroll.ErrRunInProgress
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to save payroll run: %w", err)
	}
	return saved, nil
}

// ========== SALARY RECORDS ==========

func (r *payrollRepository) SupersedeRecords(ctx context.Context, companyID string, month, year int, employeeIDs []string) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE salary_records
		SET superseded = TRUE
		WHERE company_id = $1 AND month = $2 AND year = $3 AND NOT superseded
	`
	args := []any{companyID, month, year}
	if len(employeeIDs) > 0 {
		query += ` AND employee_id = ANY($4)`
		args = append(args, employeeIDs)
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to supersede salary records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *payrollRepository) InsertRecords(ctx context.Context, records []payroll.SalaryRecord) error {
	if len(records) == 0 {
		return nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO salary_records (
			id, run_id, revision, company_id, employee_id, employee_code, month, year, state,
			salary_revision_id, basis, earnings, basic_earned, gross_earned,
			deductions, employer, net_pay, esi_eligible
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		basisJSON, err := json.Marshal(rec.Basis)
		if err != nil {
			return fmt.Errorf("failed to encode basis for employee %s: %w", rec.EmployeeID, err)
		}
		earningsJSON, err := json.Marshal(rec.Earnings)
		if err != nil {
			return fmt.Errorf("failed to encode earnings for employee %s: %w", rec.EmployeeID, err)
		}
		deductionsJSON, err := json.Marshal(rec.Deductions)
		if err != nil {
			return fmt.Errorf("failed to encode deductions for employee %s: %w", rec.EmployeeID, err)
		}
		employerJSON, err := json.Marshal(rec.Employer)
		if err != nil {
			return fmt.Errorf("failed to encode employer contributions for employee %s: %w", rec.EmployeeID, err)
		}

		batch.Queue(query,
			rec.ID, rec.RunID, rec.Revision, rec.CompanyID, rec.EmployeeID, rec.EmployeeCode, rec.Month, rec.Year, string(rec.State),
			rec.SalaryRevisionID, basisJSON, earningsJSON, rec.BasicEarned, rec.GrossEarned,
			deductionsJSON, employerJSON, rec.NetPay, rec.ESIEligible,
		)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()
	for _, rec := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert salary record for employee %s: %w", rec.EmployeeID, err)
		}
	}
	return nil
}

func (r *payrollRepository) ListRecords(ctx context.Context, companyID string, month, year int) ([]payroll.SalaryRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, run_id, revision, company_id, employee_id, employee_code, month, year, state,
			   salary_revision_id, basis, earnings, basic_earned, gross_earned,
			   deductions, employer, net_pay, esi_eligible, superseded, created_at
		FROM salary_records
		WHERE company_id = $1 AND month = $2 AND year = $3 AND NOT superseded
		ORDER BY employee_code, employee_id
	`
	rows, err := q.Query(ctx, query, companyID, month, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list salary records: %w", err)
	}
	defer rows.Close()

	records := make([]payroll.SalaryRecord, 0)
	for rows.Next() {
		var rec payroll.SalaryRecord
		var basisJSON, earningsJSON, deductionsJSON, employerJSON []byte
		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Revision, &rec.CompanyID, &rec.EmployeeID, &rec.EmployeeCode, &rec.Month, &rec.Year, &rec.State,
			&rec.SalaryRevisionID, &basisJSON, &earningsJSON, &rec.BasicEarned, &rec.GrossEarned,
			&deductionsJSON, &employerJSON, &rec.NetPay, &rec.ESIEligible, &rec.Superseded, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(basisJSON, &rec.Basis); err != nil {
			return nil, fmt.Errorf("failed to decode basis of record %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(earningsJSON, &rec.Earnings); err != nil {
			return nil, fmt.Errorf("failed to decode earnings of record %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(deductionsJSON, &rec.Deductions); err != nil {
			return nil, fmt.Errorf("failed to decode deductions of record %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(employerJSON, &rec.Employer); err != nil {
			return nil, fmt.Errorf("failed to decode employer contributions of record %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ========== ESI DETERMINATIONS ==========

func (r *payrollRepository) GetESIDeterminations(ctx context.Context, employeeIDs []string, periodKey string) (map[string]payroll.ESIDetermination, error) {
	determinations := make(map[string]payroll.ESIDetermination, len(employeeIDs))
	if len(employeeIDs) == 0 {
		return determinations, nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT employee_id, period_key, eligible, month, year, created_at
		FROM esi_determinations
		WHERE employee_id = ANY($1) AND period_key = $2
	`
	rows, err := q.Query(ctx, query, employeeIDs, periodKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get ESI determinations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d payroll.ESIDetermination
		if err := rows.Scan(&d.EmployeeID, &d.PeriodKey, &d.Eligible, &d.Month, &d.Year, &d.CreatedAt); err != nil {
			return nil, err
		}
		determinations[d.EmployeeID] = d
	}
	return determinations, rows.Err()
}

func (r *payrollRepository) SaveESIDeterminations(ctx context.Context, determinations []payroll.ESIDetermination) error {
	if len(determinations) == 0 {
		return nil
	}
	q := GetQuerier(ctx, r.db)

	// The earliest processed month of the period owns the row; months processed
	// out of order hand it back to an earlier one.
	query := `
		INSERT INTO esi_determinations (employee_id, period_key, eligible, month, year)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (employee_id, period_key) DO UPDATE
		SET eligible = EXCLUDED.eligible, month = EXCLUDED.month, year = EXCLUDED.year
		WHERE (EXCLUDED.year * 12 + EXCLUDED.month) <= (esi_determinations.year * 12 + esi_determinations.month)
	`

	batch := &pgx.Batch{}
	for _, d := range determinations {
		batch.Queue(query, d.EmployeeID, d.PeriodKey, d.Eligible, d.Month, d.Year)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()
	for _, d := range determinations {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save ESI determination for employee %s: %w", d.EmployeeID, err)
		}
	}
	return nil
}
