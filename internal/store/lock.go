package store

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// acquireLock opens path and takes a non-blocking exclusive flock on it.
func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	var lockErr error
	rawConn, err := f.SyscallConn()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to access lock file %s: %w", path, err)
	}
	if err := rawConn.Control(func(fd uintptr) {
		lockErr = unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB)
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to access lock file %s: %w", path, err)
	}

	if lockErr != nil {
		f.Close()
		if errors.Is(lockErr, unix.EWOULDBLOCK) {
			return nil, ErrStoreLocked
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, lockErr)
	}

	return f, nil
}

// releaseLock drops the flock by closing the descriptor.
func releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}
	return f.Close()
}
