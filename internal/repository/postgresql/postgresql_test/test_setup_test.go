package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/fixtures"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/database"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/repository/postgresql"
	"github.com/stretchr/testify/require"
)

// TestDatabaseSetup holds a migrated test database
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and applies the schema.
// The test is skipped when the variable is unset.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolOptions{MaxConns: 5, MinConns: 1})
	require.NoError(t, err)
	require.NoError(t, postgresql.Migrate(ctx, db))

	setup := &TestDatabaseSetup{DB: db}
	require.NoError(t, setup.TruncateAllTables(ctx))
	t.Cleanup(setup.Close)
	return setup
}

// TruncateAllTables removes every row the tests may have written
func (s *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"compliance_items",
		"esi_determinations",
		"salary_records",
		"payroll_runs",
		"leave_lop_entries",
		"leave_balances",
		"leave_types",
		"attendances",
		"employees",
		"salary_structure_revisions",
		"salary_structures",
		"company_payroll_settings",
		"companies",
	}

	for _, table := range tables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// Close closes the database pool
func (s *TestDatabaseSetup) Close() {
	s.DB.Close()
}

func (s *TestDatabaseSetup) createCompany(t *testing.T, username string) string {
	t.Helper()
	var id string
	err := s.DB.QueryRow(context.Background(), `
		INSERT INTO companies (name, username) VALUES ($1, $2) RETURNING id
	`, "Company "+username, username).Scan(&id)
	require.NoError(t, err)

	settings := fixtures.GetDefaultPayrollSettings(id, "MH")
	_, err = s.DB.Exec(context.Background(), `
		INSERT INTO company_payroll_settings (company_id, state, working_days_norm, include_on_leave)
		VALUES ($1, $2, $3, $4)
	`, settings.CompanyID, string(settings.State), settings.WorkingDaysNorm, settings.IncludeOnLeave)
	require.NoError(t, err)
	return id
}

// seedLeaveTypes inserts the default leave policy and returns the IDs by code.
func (s *TestDatabaseSetup) seedLeaveTypes(t *testing.T, companyID string) map[string]string {
	t.Helper()
	ids := make(map[string]string)
	for _, lt := range fixtures.GetDefaultLeaveTypes(companyID) {
		var id string
		err := s.DB.QueryRow(context.Background(), `
			INSERT INTO leave_types (company_id, code, name, annual_quota, carry_forward, max_carry_forward, allow_negative, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id
		`, lt.CompanyID, lt.Code, lt.Name, lt.AnnualQuota, lt.CarryForward, lt.MaxCarryForward, lt.AllowNegative, lt.IsActive).Scan(&id)
		require.NoError(t, err)
		ids[lt.Code] = id
	}
	return ids
}

func (s *TestDatabaseSetup) createEmployee(t *testing.T, companyID, code, status, joining string) string {
	t.Helper()
	var id string
	err := s.DB.QueryRow(context.Background(), `
		INSERT INTO employees (company_id, employee_code, full_name, status, joining_date)
		VALUES ($1, $2, $3, $4, $5) RETURNING id
	`, companyID, code, "Employee "+code, status, joining).Scan(&id)
	require.NoError(t, err)
	return id
}
