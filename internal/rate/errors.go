package rate

import "errors"

// ErrRateLimited is returned when a rule's attempt budget is exhausted.
var ErrRateLimited = errors.New("rate limited")

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("rate limiter redis unavailable")
