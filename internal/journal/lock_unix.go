//go:build !windows

package journal

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// tryLock takes a non-blocking flock. busy reports that another holder has it.
func tryLock(lockPath string) (release func(), busy bool, err error) {
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, defaultFilePerm)
	if err != nil {
		return nil, false, err
	}
	fd := int(file.Fd())
	for {
		err = unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	switch {
	case err == nil:
		return func() {
			_ = unix.Flock(fd, unix.LOCK_UN)
			_ = file.Close()
		}, false, nil
	case errors.Is(err, unix.EWOULDBLOCK):
		_ = file.Close()
		return nil, true, nil
	default:
		_ = file.Close()
		return nil, false, err
	}
}
