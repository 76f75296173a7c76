package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type salaryStructureRepositoryImpl struct {
	db *database.DB
}

func NewSalaryStructureRepository(db *database.DB) salary.StructureRepository {
	return &salaryStructureRepositoryImpl{db: db}
}

// GetEffective implements salary.StructureRepository.
func (r *salaryStructureRepositoryImpl) GetEffective(ctx context.Context, structureID string, asOf time.Time) (salary.SalaryStructure, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT s.id, s.company_id, s.name,
			   rev.id, rev.basic_salary, rev.components, rev.effective_from, rev.locked_at
		FROM salary_structures s
		LEFT JOIN LATERAL (
			SELECT id, basic_salary, components, effective_from, locked_at
			FROM salary_structure_revisions
			WHERE structure_id = s.id AND effective_from <= $2
			ORDER BY effective_from DESC
			LIMIT 1
		) rev ON TRUE
		WHERE s.id = $1
	`

	var (
		st             salary.SalaryStructure
		revisionID     *string
		basic          *decimal.Decimal
		componentsJSON []byte
		effectiveFrom  *time.Time
	)
	err := q.QueryRow(ctx, query, structureID, asOf).Scan(
		&st.ID, &st.CompanyID, &st.Name,
		&revisionID, &basic, &componentsJSON, &effectiveFrom, &st.LockedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return salary.SalaryStructure{}, salary.ErrStructureNotFound
		}
		return salary.SalaryStructure{}, fmt.Errorf("failed to get salary structure %s: %w", structureID, err)
	}
	if revisionID == nil {
		return salary.SalaryStructure{}, salary.ErrNoEffectiveRevision
	}

	st.RevisionID = *revisionID
	st.BasicSalary = *basic
	st.EffectiveFrom = *effectiveFrom
	if err := json.Unmarshal(componentsJSON, &st.Components); err != nil {
		return salary.SalaryStructure{}, fmt.Errorf("failed to decode components of revision %s: %w", st.RevisionID, err)
	}
	return st, nil
}

// LockRevisions implements salary.StructureRepository.
func (r *salaryStructureRepositoryImpl) LockRevisions(ctx context.Context, revisionIDs []string) error {
	if len(revisionIDs) == 0 {
		return nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE salary_structure_revisions
		SET locked_at = NOW()
		WHERE id = ANY($1) AND locked_at IS NULL
	`
	if _, err := q.Exec(ctx, query, revisionIDs); err != nil {
		return fmt.Errorf("failed to lock salary structure revisions: %w", err)
	}
	return nil
}
