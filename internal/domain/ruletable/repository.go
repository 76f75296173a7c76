package ruletable

import (
	"context"
	"time"
)

type Repository interface {
	// Get returns the rule set with the given version.
	Get(ctx context.Context, version string) (*RuleSet, error)
	// Effective returns the newest rule set whose EffectiveFrom is on or before asOf.
	Effective(ctx context.Context, asOf time.Time) (*RuleSet, error)
}
