package compliance

import (
	"time"

	"github.com/cmlabs-hris/manpower-payroll-go/internal/domain/ruletable"
	"github.com/shopspring/decimal"
)

// Type - statutory obligation
type Type string

const (
	TypeEPF Type = Type(ruletable.SchemeEPF)
	TypeESI Type = Type(ruletable.SchemeESI)
	TypePT  Type = Type(ruletable.SchemePT)
	TypeLWF Type = Type(ruletable.SchemeLWF)
)

func (t Type) Valid() bool {
	switch t {
	case TypeEPF, TypeESI, TypePT, TypeLWF:
		return true
	}
	return false
}

// PerState reports whether the obligation is filed separately for each state.
func (t Type) PerState() bool {
	return t == TypePT || t == TypeLWF
}

// Status enum. Overdue is derived at read time and never stored.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
)

// ComplianceItem - one obligation per company, type, state and period.
// State is empty for EPF and ESI.
type ComplianceItem struct {
	ID             string
	CompanyID      string
	Type           Type
	State          ruletable.State
	Month          int
	Year           int
	EmployeeAmount decimal.Decimal
	EmployerAmount decimal.Decimal
	Amount         decimal.Decimal
	DueDate        time.Time
	Status         Status
	RunID          string
	RunRevision    int
	FiledAmount    *decimal.Decimal
	FiledReference *string
	StartedAt      *time.Time
	FiledAt        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EffectiveStatus derives overdue from the stored status: an item not yet
// completed whose due date is before today is overdue.
func (i ComplianceItem) EffectiveStatus(now time.Time) Status {
	if i.Status == StatusCompleted {
		return i.Status
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	due := time.Date(i.DueDate.Year(), i.DueDate.Month(), i.DueDate.Day(), 0, 0, 0, 0, time.UTC)
	if today.After(due) {
		return StatusOverdue
	}
	return i.Status
}

// WithEffectiveStatus returns a copy whose Status is the derived status.
func (i ComplianceItem) WithEffectiveStatus(now time.Time) ComplianceItem {
	i.Status = i.EffectiveStatus(now)
	return i
}

// DueDate derives the filing deadline of an obligation for month/year.
// The day is clamped to the end of the due month.
func DueDate(t Type, state ruletable.State, month, year int, rules *ruletable.RuleSet) (time.Time, error) {
	day := 15
	offset := 1
	switch t {
	case TypeEPF:
		day = rules.EPF.DueDay
	case TypeESI:
		day = rules.ESI.DueDay
	case TypePT:
		schedule, ok := rules.ProfessionalTax[state]
		if !ok {
			return time.Time{}, &ruletable.UnsupportedJurisdictionError{Scheme: ruletable.SchemePT, State: state, Version: rules.Version}
		}
		day = schedule.DueDay
	case TypeLWF:
		schedule, ok := rules.LabourWelfareFund[state]
		if !ok {
			return time.Time{}, &ruletable.UnsupportedJurisdictionError{Scheme: ruletable.SchemeLWF, State: state, Version: rules.Version}
		}
		day = schedule.DueDay
		offset = schedule.DueMonthOffset
	default:
		return time.Time{}, ErrInvalidType
	}
	if day <= 0 {
		day = 15
	}
	if offset <= 0 {
		offset = 1
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, offset, 0)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC), nil
}
