// Package app wires configuration, storage and services shared by the API
// and worker binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/config"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/company"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/compliance"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/leave"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	appHTTP "github.com/cmlabs-hris/manpower-payroll-go/internal/handler/http"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/database"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/lock"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/repository/postgresql"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/repository/ruleset"
	complianceService "github.com/cmlabs-hris/manpower-payroll-go/internal/service/compliance"
	leaveService "github.com/cmlabs-hris/manpower-payroll-go/internal/service/leave"
	payrollService "github.com/cmlabs-hris/manpower-payroll-go/internal/service/payroll"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Level   slog.Level
	Metrics *metrics.Metrics

	Companies  company.CompanyRepository
	Employees  employee.EmployeeRepository
	Payroll    payroll.PayrollService
	Compliance compliance.ComplianceService
	Ledger     leave.LedgerService

	closers []func()
}

// New connects to Postgres (and Redis when configured) and builds the
// services. Close releases everything New opened.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New()}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	if err := a.Level.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
		a.Level = slog.LevelInfo
	}
	a.Logger = appHTTP.NewLogger(cfg.App.Name, cfg.App.Env, a.Level)
	slog.SetDefault(a.Logger)

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	if cfg.Database.AutoMigrate {
		if err := postgresql.Migrate(ctx, db); err != nil {
			return nil, err
		}
		slog.Info("Database schema applied")
	}

	rules, err := ruleset.LoadFile(cfg.Payroll.RuleTablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule tables: %w", err)
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		return nil, err
	}

	// Repositories
	tx := postgresql.NewTransactor(db)
	companyRepo := postgresql.NewCompanyRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	structureRepo := postgresql.NewSalaryStructureRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	leaveTypeRepo := postgresql.NewLeaveTypeRepository(db)
	leaveBalanceRepo := postgresql.NewLeaveBalanceRepository(db)
	payrollRepo := postgresql.NewPayrollRepository(db)
	complianceRepo := postgresql.NewComplianceRepository(db)

	// Services
	complianceSvc := complianceService.NewComplianceService(tx, rules, a.Metrics, complianceRepo)
	a.Ledger = leaveService.NewLedgerService(tx, locker, a.Metrics, leaveService.NewQuotaCalculator(), leaveTypeRepo, leaveBalanceRepo, employeeRepo)
	a.Payroll = payrollService.NewPayrollService(
		tx, locker, a.Metrics, rules, complianceSvc,
		companyRepo, employeeRepo, structureRepo, attendanceRepo, leaveBalanceRepo, payrollRepo,
		payrollService.WithWorkers(cfg.Payroll.Workers),
		payrollService.WithRunLockTTL(cfg.Payroll.RunLockTTL),
		payrollService.WithDefaultNorm(cfg.Payroll.WorkingDaysNorm),
	)
	a.Compliance = complianceSvc
	a.Companies = companyRepo
	a.Employees = employeeRepo

	ready = true
	return a, nil
}

func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	if !a.Config.Redis.Enabled() {
		slog.Warn("REDIS_ADDR not set, using in-process locks")
		return lock.NewLocalLocker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			slog.Warn("Failed to close redis client", "error", err)
		}
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return lock.NewRedisLocker(client), nil
}

// RedisOpts returns the asynq connection settings for the configured Redis.
func (a *App) RedisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
