package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/compliance"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/database"
	"github.com/cmlabs-hris/manpower-payroll-go/internal/pkg/metrics"
	"github.com/google/uuid"
)

var _ compliance.ComplianceService = (*ComplianceServiceImpl)(nil)

type ComplianceServiceImpl struct {
	tx      database.Transactor
	rules   ruletable.Repository
	metrics *metrics.Metrics
	now     func() time.Time
	compliance.ComplianceRepository
}

// Option customizes ComplianceServiceImpl.
type Option func(*ComplianceServiceImpl)

// WithNow replaces the clock used to derive overdue status.
func WithNow(now func() time.Time) Option {
	return func(s *ComplianceServiceImpl) {
		s.now = now
	}
}

func NewComplianceService(
	tx database.Transactor,
	rules ruletable.Repository,
	m *metrics.Metrics,
	repo compliance.ComplianceRepository,
	opts ...Option,
) *ComplianceServiceImpl {
	s := &ComplianceServiceImpl{
		tx:                   tx,
		rules:                rules,
		metrics:              m,
		now:                  time.Now,
		ComplianceRepository: repo,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ========== SYNC ==========

// SyncFromRun upserts one obligation per scheme (and state, for PT and LWF)
// with a nonzero total. A completed item whose amount changed is reopened;
// stale items of the period that no longer carry an amount are removed
// unless they were already filed.
func (s *ComplianceServiceImpl) SyncFromRun(ctx context.Context, run payroll.PayrollRun) error {
	if run.Status != payroll.RunCompleted {
		return fmt.Errorf("sync compliance: run %s is %s, not completed", run.ID, run.Status)
	}
	rules, err := s.rules.Get(ctx, run.RuleTableVersion)
	if err != nil {
		return fmt.Errorf("failed to get rule table %s: %w", run.RuleTableVersion, err)
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.ComplianceRepository.ListByPeriod(ctx, run.CompanyID, run.Month, run.Year)
		if err != nil {
			return fmt.Errorf("failed to list compliance items: %w", err)
		}
		byKey := make(map[string]compliance.ComplianceItem, len(existing))
		for _, item := range existing {
			byKey[itemKey(item.Type, item.State)] = item
		}

		for _, total := range run.Statutory {
			if !total.Total().IsPositive() {
				continue
			}
			typ := compliance.Type(total.Scheme)
			state := total.State
			if !typ.PerState() {
				state = ""
			}
			key := itemKey(typ, state)

			due, err := compliance.DueDate(typ, state, run.Month, run.Year, rules)
			if err != nil {
				return fmt.Errorf("failed to derive due date for %s: %w", key, err)
			}

			item, found := byKey[key]
			delete(byKey, key)
			if !found {
				_, err := s.ComplianceRepository.Create(ctx, compliance.ComplianceItem{
					ID:             uuid.NewString(),
					CompanyID:      run.CompanyID,
					Type:           typ,
					State:          state,
					Month:          run.Month,
					Year:           run.Year,
					EmployeeAmount: total.EmployeeAmount,
					EmployerAmount: total.EmployerAmount,
					Amount:         total.Total(),
					DueDate:        due,
					Status:         compliance.StatusPending,
					RunID:          run.ID,
					RunRevision:    run.Revision,
				})
				if err != nil {
					return fmt.Errorf("failed to create compliance item %s: %w", key, err)
				}
				continue
			}

			changed := !item.Amount.Equal(total.Total())
			item.EmployeeAmount = total.EmployeeAmount
			item.EmployerAmount = total.EmployerAmount
			item.Amount = total.Total()
			item.DueDate = due
			item.RunID = run.ID
			item.RunRevision = run.Revision
			if changed && item.Status == compliance.StatusCompleted {
				slog.Warn("Reopening filed compliance obligation after reprocess",
					"company_id", run.CompanyID,
					"type", item.Type,
					"state", item.State,
					"month", run.Month,
					"year", run.Year,
				)
				item.Status = compliance.StatusPending
			}
			if err := s.ComplianceRepository.Update(ctx, item); err != nil {
				return fmt.Errorf("failed to update compliance item %s: %w", key, err)
			}
		}

		for key, stale := range byKey {
			if stale.Status == compliance.StatusCompleted {
				continue
			}
			if err := s.ComplianceRepository.Delete(ctx, stale.ID); err != nil {
				return fmt.Errorf("failed to delete stale compliance item %s: %w", key, err)
			}
		}
		return nil
	})
}

func itemKey(t compliance.Type, state ruletable.State) string {
	if state == "" {
		return string(t)
	}
	return string(t) + ":" + string(state)
}

// ========== QUERIES ==========

func (s *ComplianceServiceImpl) GetComplianceObligations(ctx context.Context, companyID string, month, year int) ([]compliance.ComplianceItem, error) {
	items, err := s.ComplianceRepository.ListByPeriod(ctx, companyID, month, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list compliance items: %w", err)
	}
	now := s.now()
	for i := range items {
		items[i] = items[i].WithEffectiveStatus(now)
	}
	sortItems(items)
	return items, nil
}

// ListOverdue returns every open obligation past its due date as of asOf
// and refreshes the overdue gauge.
func (s *ComplianceServiceImpl) ListOverdue(ctx context.Context, asOf time.Time) ([]compliance.ComplianceItem, error) {
	today := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	items, err := s.ComplianceRepository.ListOpenDueBefore(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue compliance items: %w", err)
	}

	counts := map[compliance.Type]int{compliance.TypeEPF: 0, compliance.TypeESI: 0, compliance.TypePT: 0, compliance.TypeLWF: 0}
	overdue := make([]compliance.ComplianceItem, 0, len(items))
	for _, item := range items {
		item = item.WithEffectiveStatus(asOf)
		if item.Status != compliance.StatusOverdue {
			continue
		}
		counts[item.Type]++
		overdue = append(overdue, item)
	}
	for t, n := range counts {
		s.metrics.SetOverdue(string(t), n)
	}
	sortItems(overdue)
	return overdue, nil
}

func sortItems(items []compliance.ComplianceItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.CompanyID != b.CompanyID {
			return a.CompanyID < b.CompanyID
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.State < b.State
	})
}

// ========== FILING ==========

// StartFiling moves a pending obligation to in_progress.
func (s *ComplianceServiceImpl) StartFiling(ctx context.Context, req compliance.StartFilingRequest) (compliance.ComplianceItem, error) {
	if err := req.Validate(); err != nil {
		return compliance.ComplianceItem{}, err
	}

	var item compliance.ComplianceItem
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.findForUpdate(ctx, req.CompanyID, req.Type, req.State, req.Month, req.Year)
		if err != nil {
			return err
		}

		switch item.Status {
		case compliance.StatusInProgress:
			return nil
		case compliance.StatusCompleted:
			return compliance.ErrAlreadyFiled
		case compliance.StatusPending:
		default:
			return compliance.ErrInvalidTransition
		}

		now := s.now()
		item.Status = compliance.StatusInProgress
		item.StartedAt = &now
		return s.ComplianceRepository.Update(ctx, item)
	})
	if err != nil {
		return compliance.ComplianceItem{}, err
	}
	return item.WithEffectiveStatus(s.now()), nil
}

// FileObligation completes an obligation once the filed amount matches.
func (s *ComplianceServiceImpl) FileObligation(ctx context.Context, req compliance.FileObligationRequest) (compliance.ComplianceItem, error) {
	if err := req.Validate(); err != nil {
		return compliance.ComplianceItem{}, err
	}

	var item compliance.ComplianceItem
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.findForUpdate(ctx, req.CompanyID, req.Type, req.State, req.Month, req.Year)
		if err != nil {
			return err
		}

		if item.Status == compliance.StatusCompleted {
			return compliance.ErrAlreadyFiled
		}
		if !req.Amount.Equal(item.Amount) {
			return &compliance.AmountMismatchError{ItemID: item.ID, Expected: item.Amount, Got: req.Amount}
		}

		now := s.now()
		amount := req.Amount
		reference := req.Reference
		if item.StartedAt == nil {
			item.StartedAt = &now
		}
		item.Status = compliance.StatusCompleted
		item.FiledAmount = &amount
		item.FiledReference = &reference
		item.FiledAt = &now
		return s.ComplianceRepository.Update(ctx, item)
	})
	if err != nil {
		return compliance.ComplianceItem{}, err
	}

	slog.Info("Compliance obligation filed",
		"company_id", item.CompanyID,
		"type", item.Type,
		"state", item.State,
		"month", item.Month,
		"year", item.Year,
		"amount", item.Amount.String(),
	)
	return item, nil
}

// findForUpdate resolves the single item of a type in the period. PT and
// LWF items need the state when the period has several.
func (s *ComplianceServiceImpl) findForUpdate(ctx context.Context, companyID string, t compliance.Type, state ruletable.State, month, year int) (compliance.ComplianceItem, error) {
	items, err := s.ComplianceRepository.ListByPeriod(ctx, companyID, month, year)
	if err != nil {
		return compliance.ComplianceItem{}, fmt.Errorf("failed to list compliance items: %w", err)
	}

	var matches []compliance.ComplianceItem
	for _, item := range items {
		if item.Type != t {
			continue
		}
		if state != "" && item.State != state {
			continue
		}
		matches = append(matches, item)
	}

	switch len(matches) {
	case 0:
		return compliance.ComplianceItem{}, compliance.ErrItemNotFound
	case 1:
		item, err := s.ComplianceRepository.GetForUpdate(ctx, matches[0].ID)
		if err != nil {
			if errors.Is(err, compliance.ErrItemNotFound) {
				return compliance.ComplianceItem{}, err
			}
			return compliance.ComplianceItem{}, fmt.Errorf("failed to lock compliance item: %w", err)
		}
		return item, nil
	default:
		return compliance.ComplianceItem{}, compliance.ErrAmbiguousState
	}
}
