package journal

import "errors"

var (
	ErrInvalidPath     = errors.New("journal: invalid path")
	ErrClosed          = errors.New("journal: writer closed")
	ErrLockTimeout     = errors.New("journal: lock timeout")
	ErrLockUnavailable = errors.New("journal: lock unavailable")
	ErrEncodeFailed    = errors.New("journal: encode failed")
)
