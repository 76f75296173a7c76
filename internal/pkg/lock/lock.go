// Package lock provides single-writer locks keyed by string. The Redis
// implementation coordinates several API/worker processes; the local one
// serves single-process deployments and tests.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrLockHeld = errors.New("lock is held by another owner")
	ErrLockLost = errors.New("lock expired or was taken over before release")
)

// Release gives the lock back. It reports ErrLockLost when the lease had already expired.
type Release func(ctx context.Context) error

type Locker interface {
	// TryAcquire takes the lock without waiting and fails with ErrLockHeld when it is taken.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
	// Acquire waits for the lock until ctx is done.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// PayrollRunKey guards the run state machine of one organization period.
func PayrollRunKey(companyID string, month, year int) string {
	return fmt.Sprintf("payroll:run:%s:%04d-%02d:lock", companyID, year, month)
}

// LeaveLedgerKey serializes ledger writes for one employee year.
func LeaveLedgerKey(employeeID string, year int) string {
	return fmt.Sprintf("leave:ledger:%s:%d:lock", employeeID, year)
}

func waitLoop(ctx context.Context, key string, interval time.Duration, try func() (Release, error)) (Release, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		release, err := try()
		if !errors.Is(err, ErrLockHeld) {
			return release, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
