package cache

import "errors"

var (
	ErrCacheMiss   = errors.New("cache miss")
	ErrLockNotHeld = errors.New("lock not held")
)
