//go:build windows

package journal

import (
	"errors"
	"os"
)

// tryLock uses an exclusively created marker file; the holder removes it.
func tryLock(lockPath string) (release func(), busy bool, err error) {
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, defaultFilePerm)
	if errors.Is(err, os.ErrExist) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return func() {
		_ = file.Close()
		_ = os.Remove(lockPath)
	}, false, nil
}
