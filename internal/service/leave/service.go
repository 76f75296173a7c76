package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/leave"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/database"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/lock"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/metrics"
)

// ledgerLockTTL bounds how long a crashed writer can block an employee year.
const ledgerLockTTL = 30 * time.Second

type LedgerServiceImpl struct {
	tx         database.Transactor
	locker     lock.Locker
	metrics    *metrics.Metrics
	calculator *QuotaCalculator
	leave.LeaveTypeRepository
	leave.LeaveBalanceRepository
	employee.EmployeeRepository
}

func NewLedgerService(
	tx database.Transactor,
	locker lock.Locker,
	m *metrics.Metrics,
	calculator *QuotaCalculator,
	leaveTypeRepo leave.LeaveTypeRepository,
	leaveBalanceRepo leave.LeaveBalanceRepository,
	employeeRepo employee.EmployeeRepository,
) leave.LedgerService {
	return &LedgerServiceImpl{
		tx:                     tx,
		locker:                 locker,
		metrics:                m,
		calculator:             calculator,
		LeaveTypeRepository:    leaveTypeRepo,
		LeaveBalanceRepository: leaveBalanceRepo,
		EmployeeRepository:     employeeRepo,
	}
}

// InitializeYear implements leave.LedgerService.
func (l *LedgerServiceImpl) InitializeYear(ctx context.Context, employeeID string, year int) ([]leave.LeaveBalance, error) {
	emp, err := l.EmployeeRepository.GetByID(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	if emp.JoiningDate.Year() > year {
		return nil, leave.ErrNotEmployedInYear
	}

	var balances []leave.LeaveBalance
	err = l.withLedgerLock(ctx, employeeID, year, func(ctx context.Context) error {
		balances, err = l.initializeYear(ctx, emp, year)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

func (l *LedgerServiceImpl) initializeYear(ctx context.Context, emp employee.Employee, year int) ([]leave.LeaveBalance, error) {
	existing, err := l.LeaveBalanceRepository.GetByEmployeeYear(ctx, emp.ID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to get leave balances: %w", err)
	}
	opened := make(map[string]bool, len(existing))
	for _, b := range existing {
		opened[b.LeaveTypeID] = true
	}

	leaveTypes, err := l.LeaveTypeRepository.GetActiveByCompanyID(ctx, emp.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active leave types: %w", err)
	}

	prior, err := l.LeaveBalanceRepository.GetByEmployeeYear(ctx, emp.ID, year-1)
	if err != nil {
		return nil, fmt.Errorf("failed to get prior year balances: %w", err)
	}
	priorByType := make(map[string]*leave.LeaveBalance, len(prior))
	for i := range prior {
		priorByType[prior[i].LeaveTypeID] = &prior[i]
	}

	balances := existing
	for _, leaveType := range leaveTypes {
		if opened[leaveType.ID] {
			continue
		}

		balance := leave.LeaveBalance{
			EmployeeID:  emp.ID,
			LeaveTypeID: leaveType.ID,
			Year:        year,
			Opening:     l.calculator.Opening(leaveType, priorByType[leaveType.ID]),
			Accrued:     l.calculator.Accrued(leaveType, emp.JoiningDate, year),
		}
		created, err := l.LeaveBalanceRepository.Create(ctx, balance)
		if errors.Is(err, leave.ErrBalanceExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create leave balance for %s: %w", leaveType.Code, err)
		}
		balances = append(balances, created)

		slog.Info("Opened leave balance",
			"employee_id", emp.ID,
			"leave_type", leaveType.Code,
			"year", year,
			"opening", balance.Opening,
			"accrued", balance.Accrued,
		)
	}

	sort.Slice(balances, func(i, j int) bool { return balances[i].LeaveTypeID < balances[j].LeaveTypeID })
	return balances, nil
}

// InitializeCompanyYear implements leave.LedgerService.
func (l *LedgerServiceImpl) InitializeCompanyYear(ctx context.Context, companyID string, year int) (int, error) {
	employees, err := l.EmployeeRepository.GetActiveByCompanyID(ctx, companyID)
	if err != nil {
		return 0, fmt.Errorf("failed to get active employees: %w", err)
	}

	var errs []error
	initialized := 0
	for _, emp := range employees {
		if err := ctx.Err(); err != nil {
			return initialized, err
		}
		if _, err := l.InitializeYear(ctx, emp.ID, year); err != nil {
			if errors.Is(err, leave.ErrNotEmployedInYear) {
				continue
			}
			slog.Warn("Failed to initialize leave year", "employee_id", emp.ID, "year", year, "error", err)
			errs = append(errs, fmt.Errorf("employee %s: %w", emp.ID, err))
			continue
		}
		initialized++
	}

	return initialized, errors.Join(errs...)
}

// RecordUsage implements leave.LedgerService.
func (l *LedgerServiceImpl) RecordUsage(ctx context.Context, req leave.RecordUsageRequest) (leave.LeaveBalance, error) {
	if err := req.Validate(); err != nil {
		return leave.LeaveBalance{}, err
	}

	var balance leave.LeaveBalance
	outcome := "consumed"
	err := l.withLedgerLock(ctx, req.EmployeeID, req.Year, func(ctx context.Context) error {
		leaveType, err := l.LeaveTypeRepository.GetByID(ctx, req.LeaveTypeID)
		if err != nil {
			return fmt.Errorf("failed to get leave type: %w", err)
		}
		if !leaveType.IsActive {
			return leave.ErrLeaveTypeInactive
		}

		balance, err = l.LeaveBalanceRepository.GetForUpdate(ctx, req.EmployeeID, req.LeaveTypeID, req.Year)
		if err != nil {
			return err
		}

		available := balance.Available()
		if req.Days <= available {
			balance.Used += req.Days
			return l.LeaveBalanceRepository.UpdateUsage(ctx, balance)
		}

		if !leaveType.AllowNegative {
			outcome = "insufficient"
			return &leave.InsufficientBalanceError{
				EmployeeID:  req.EmployeeID,
				LeaveTypeID: req.LeaveTypeID,
				Year:        req.Year,
				Requested:   req.Days,
				Available:   available,
			}
		}

		// Consume what is left; the rest becomes loss of pay in the month of the leave.
		excess := req.Days - available
		balance.Used += available
		balance.LOPDays += excess
		outcome = "lop"

		if err := l.LeaveBalanceRepository.UpdateUsage(ctx, balance); err != nil {
			return err
		}
		return l.LeaveBalanceRepository.AddLOPEntry(ctx, leave.LOPEntry{
			EmployeeID:  req.EmployeeID,
			LeaveTypeID: req.LeaveTypeID,
			Date:        req.UsageDate(),
			Days:        excess,
		})
	})
	if err != nil {
		if outcome != "insufficient" {
			outcome = "error"
		}
		l.metrics.LeaveUsage(outcome)
		return leave.LeaveBalance{}, err
	}

	l.metrics.LeaveUsage(outcome)
	return balance, nil
}

// GetBalances implements leave.LedgerService.
func (l *LedgerServiceImpl) GetBalances(ctx context.Context, employeeID string, year int) ([]leave.LeaveBalance, error) {
	balances, err := l.LeaveBalanceRepository.GetByEmployeeYear(ctx, employeeID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to get leave balances: %w", err)
	}
	return balances, nil
}

// withLedgerLock runs fn inside a transaction while holding the employee-year writer lock.
func (l *LedgerServiceImpl) withLedgerLock(ctx context.Context, employeeID string, year int, fn func(ctx context.Context) error) error {
	release, err := l.locker.Acquire(ctx, lock.LeaveLedgerKey(employeeID, year), ledgerLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire leave ledger lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to release leave ledger lock", "employee_id", employeeID, "year", year, "error", err)
		}
	}()

	return l.tx.WithinTransaction(ctx, fn)
}
