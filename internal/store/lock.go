package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockTimeout is returned when another process holds the writer lock for too long.
var ErrLockTimeout = errors.New("timed out waiting for writer lock")

// WriteLock serializes goal mutations across processes sharing one workspace directory.
type WriteLock struct {
	fl *flock.Flock
}

// LockWriter blocks until the workspace writer lock is held or timeout elapses.
func (s Store) LockWriter(ctx context.Context, timeout time.Duration) (*WriteLock, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(s.LockPath())
	ok, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("lock %s: %w", s.LockPath(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w %s after %s (another goals process is writing)", ErrLockTimeout, s.LockPath(), timeout)
	}
	return &WriteLock{fl: fl}, nil
}

func (l *WriteLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
