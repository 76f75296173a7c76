package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker. The ttl argument is ignored; locks
// live until released.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]chan struct{})}
}

func (l *LocalLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrLockHeld
	}
	return l.take(key), nil
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	for {
		l.mu.Lock()
		done, ok := l.held[key]
		if !ok {
			release := l.take(key)
			l.mu.Unlock()
			return release, nil
		}
		l.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// take must be called with l.mu held.
func (l *LocalLocker) take(key string) Release {
	done := make(chan struct{})
	l.held[key] = done

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] != done {
			return ErrLockLost
		}
		delete(l.held, key)
		close(done)
		return nil
	}
}
