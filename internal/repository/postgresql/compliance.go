package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/compliance"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type complianceRepositoryImpl struct {
	db *database.DB
}

func NewComplianceRepository(db *database.DB) compliance.ComplianceRepository {
	return &complianceRepositoryImpl{db: db}
}

const complianceColumns = `
	id, company_id, type, state, month, year,
	employee_amount, employer_amount, amount, due_date, status,
	run_id, run_revision, filed_amount, filed_reference, started_at, filed_at,
	created_at, updated_at
`

func scanComplianceItem(row pgx.Row) (compliance.ComplianceItem, error) {
	var item compliance.ComplianceItem
	err := row.Scan(
		&item.ID, &item.CompanyID, &item.Type, &item.State, &item.Month, &item.Year,
		&item.EmployeeAmount, &item.EmployerAmount, &item.Amount, &item.DueDate, &item.Status,
		&item.RunID, &item.RunRevision, &item.FiledAmount, &item.FiledReference, &item.StartedAt, &item.FiledAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	return item, err
}

func collectComplianceItems(rows pgx.Rows) ([]compliance.ComplianceItem, error) {
	defer rows.Close()

	items := make([]compliance.ComplianceItem, 0)
	for rows.Next() {
		item, err := scanComplianceItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListByPeriod implements compliance.ComplianceRepository.
func (r *complianceRepositoryImpl) ListByPeriod(ctx context.Context, companyID string, month, year int) ([]compliance.ComplianceItem, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + complianceColumns + `
		FROM compliance_items
		WHERE company_id = $1 AND month = $2 AND year = $3
		ORDER BY type, state
	`
	rows, err := q.Query(ctx, query, companyID, month, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list compliance items: %w", err)
	}
	return collectComplianceItems(rows)
}

// GetForUpdate implements compliance.ComplianceRepository.
func (r *complianceRepositoryImpl) GetForUpdate(ctx context.Context, id string) (compliance.ComplianceItem, error) {
	q := GetQuerier(ctx, r.db)

	item, err := scanComplianceItem(q.QueryRow(ctx, `SELECT `+complianceColumns+` FROM compliance_items WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return compliance.ComplianceItem{}, compliance.ErrItemNotFound
		}
		return compliance.ComplianceItem{}, fmt.Errorf("failed to lock compliance item %s: %w", id, err)
	}
	return item, nil
}

// Create implements compliance.ComplianceRepository.
func (r *complianceRepositoryImpl) Create(ctx context.Context, item compliance.ComplianceItem) (compliance.ComplianceItem, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO compliance_items (
			id, company_id, type, state, month, year,
			employee_amount, employer_amount, amount, due_date, status,
			run_id, run_revision
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + complianceColumns

	created, err := scanComplianceItem(q.QueryRow(ctx, query,
		item.ID, item.CompanyID, string(item.Type), string(item.State), item.Month, item.Year,
		item.EmployeeAmount, item.EmployerAmount, item.Amount, item.DueDate, string(item.Status),
		item.RunID, item.RunRevision,
	))
	if err != nil {
		return compliance.ComplianceItem{}, fmt.Errorf("failed to create compliance item: %w", err)
	}
	return created, nil
}

// Update implements compliance.ComplianceRepository.
func (r *complianceRepositoryImpl) Update(ctx context.Context, item compliance.ComplianceItem) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE compliance_items
		SET employee_amount = $1, employer_amount = $2, amount = $3, due_date = $4, status = $5,
			run_id = $6, run_revision = $7, filed_amount = $8, filed_reference = $9,
			started_at = $10, filed_at = $11, updated_at = NOW()
		WHERE id = $12
	`
	tag, err := q.Exec(ctx, query,
		item.EmployeeAmount, item.EmployerAmount, item.Amount, item.DueDate, string(item.Status),
		item.RunID, item.RunRevision, item.FiledAmount, item.FiledReference,
		item.StartedAt, item.FiledAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update compliance item %s: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return compliance.ErrItemNotFound
	}
	return nil
}

// Delete implements compliance.ComplianceRepository.
func (r *complianceRepositoryImpl) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM compliance_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete compliance item %s: %w", id, err)
	}
	return nil
}

// ListOpenDueBefore implements compliance.ComplianceRepository.
func (r *complianceRepositoryImpl) ListOpenDueBefore(ctx context.Context, date time.Time) ([]compliance.ComplianceItem, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + complianceColumns + `
		FROM compliance_items
		WHERE status <> $1 AND due_date < $2
		ORDER BY due_date, company_id, type, state
	`
	rows, err := q.Query(ctx, query, string(compliance.StatusCompleted), date)
	if err != nil {
		return nil, fmt.Errorf("failed to list open compliance items: %w", err)
	}
	return collectComplianceItems(rows)
}
