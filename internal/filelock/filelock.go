// Package filelock provides the advisory lock that serializes mutating
// workspace operations across processes.
package filelock

import (
	"context"
	"errors"
	"os"
	"time"
)

const (
	lockFileMode  = 0o600
	retryInterval = 25 * time.Millisecond
)

// ErrLocked is returned by TryLock when another process holds the lock.
var ErrLocked = errors.New("workspace is locked by another process")

// Lock acquires an exclusive advisory lock on the file at path, creating it
// if it does not exist. It waits until the lock is free or ctx is done. The
// returned function releases the lock.
func Lock(ctx context.Context, path string) (unlock func() error, err error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}

	for {
		err := tryLockFile(f)
		if err == nil {
			return release(f), nil
		}
		if !errors.Is(err, ErrLocked) {
			_ = f.Close()
			return nil, err
		}
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// TryLock acquires the lock without waiting. It returns ErrLocked when the
// lock is held elsewhere.
func TryLock(path string) (unlock func() error, err error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := tryLockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return release(f), nil
}

func open(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFileMode) //nolint:gosec // lock file path from trusted source
}

func release(f *os.File) func() error {
	return func() error {
		unlockErr := unlockFile(f)
		closeErr := f.Close()
		if unlockErr != nil {
			return unlockErr
		}
		return closeErr
	}
}
