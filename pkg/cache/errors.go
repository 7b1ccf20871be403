package cache

import "errors"

// ErrCacheMiss is returned by Get for keys never written or deleted.
var ErrCacheMiss = errors.New("cache miss")
