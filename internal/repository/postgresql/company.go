package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/company"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type companyRepositoryImpl struct {
	db *database.DB
}

func NewCompanyRepository(db *database.DB) company.CompanyRepository {
	return &companyRepositoryImpl{db: db}
}

// GetByID implements company.CompanyRepository.
func (c *companyRepositoryImpl) GetByID(ctx context.Context, id string) (company.Company, error) {
	q := GetQuerier(ctx, c.db)

	query := `
		SELECT id, name, username, address, created_at, updated_at
		FROM companies
		WHERE id = $1
	`

	var found company.Company
	err := q.QueryRow(ctx, query, id).
		Scan(&found.ID, &found.Name, &found.Username, &found.Address, &found.CreatedAt, &found.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return company.Company{}, company.ErrCompanyNotFound
		}
		return company.Company{}, fmt.Errorf("failed to get company with id %s: %w", id, err)
	}
	return found, nil
}

// ListIDs implements company.CompanyRepository.
func (c *companyRepositoryImpl) ListIDs(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, c.db)

	rows, err := q.Query(ctx, `SELECT id FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetPayrollSettings implements company.CompanyRepository.
func (c *companyRepositoryImpl) GetPayrollSettings(ctx context.Context, companyID string) (company.PayrollSettings, error) {
	q := GetQuerier(ctx, c.db)

	query := `
		SELECT company_id, state, working_days_norm, include_on_leave, rule_table_version,
			   epf_establishment, esi_employer_code, pt_registration_no, lwf_registration_no,
			   updated_at
		FROM company_payroll_settings
		WHERE company_id = $1
	`

	var s company.PayrollSettings
	err := q.QueryRow(ctx, query, companyID).Scan(
		&s.CompanyID, &s.State, &s.WorkingDaysNorm, &s.IncludeOnLeave, &s.RuleTableVersion,
		&s.EPFEstablishment, &s.ESIEmployerCode, &s.PTRegistrationNo, &s.LWFRegistrationNo,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return company.PayrollSettings{}, company.ErrPayrollSettingsNotFound
		}
		return company.PayrollSettings{}, fmt.Errorf("failed to get payroll settings: %w", err)
	}
	return s, nil
}
