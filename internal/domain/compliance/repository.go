package compliance

import (
	"context"
	"time"
)

type ComplianceRepository interface {
	ListByPeriod(ctx context.Context, companyID string, month, year int) ([]ComplianceItem, error)
	// GetForUpdate locks the item for the rest of the surrounding transaction.
	GetForUpdate(ctx context.Context, id string) (ComplianceItem, error)
	Create(ctx context.Context, item ComplianceItem) (ComplianceItem, error)
	Update(ctx context.Context, item ComplianceItem) error
	Delete(ctx context.Context, id string) error
	// ListOpenDueBefore returns items not completed whose due date is before date.
	ListOpenDueBefore(ctx context.Context, date time.Time) ([]ComplianceItem, error)
}
