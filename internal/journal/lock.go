package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const lockRetryWait = 25 * time.Millisecond

// WithLock runs fn while holding an exclusive advisory lock on lockPath.
// Writers in different processes that append to the same journal under this
// lock see each other's rotations before writing.
func WithLock(ctx context.Context, lockPath string, fn func() error) error {
	lockPath, err := cleanPath(lockPath)
	if err != nil {
		return err
	}
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), defaultDirPerm); err != nil {
		return fmt.Errorf("journal ensure lock dir: %w", err)
	}
	for {
		release, busy, err := tryLock(lockPath)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrLockUnavailable, lockPath, err)
		}
		if !busy {
			defer release()
			return fn()
		}
		if err := waitForLockRetry(ctx, lockPath); err != nil {
			return err
		}
	}
}

func waitForLockRetry(ctx context.Context, lockPath string) error {
	timer := time.NewTimer(lockRetryWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrLockTimeout, lockPath, ctx.Err())
	case <-timer.C:
		return nil
	}
}
