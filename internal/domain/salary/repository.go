package salary

import (
	"context"
	"time"
)

type StructureRepository interface {
	// GetEffective returns the latest revision of structureID effective on or before asOf.
	GetEffective(ctx context.Context, structureID string, asOf time.Time) (SalaryStructure, error)
	// LockRevisions marks revisions as referenced by a processed run.
	LockRevisions(ctx context.Context, revisionIDs []string) error
}
