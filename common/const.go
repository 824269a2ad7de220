package common

import (
	"time"

	"github.com/avast/retry-go/v4"
)

var (
	RetryAttemptNum = uint(5)
	RetryAttempts   = retry.Attempts(RetryAttemptNum)
	RetryDelay      = retry.Delay(time.Millisecond * 400)
	RetryErr        = retry.LastErrorOnly(true)
)

const (
	// RetryInterval is the pause between iterations of the background loops.
	RetryInterval = 1 * time.Second

	// LockRetryAfter is the hint returned with a 503 on token lock contention.
	LockRetryAfter = 1 * time.Second

	// RequestTimeout bounds every request-scoped database transaction. On
	// expiry the store rolls back, leaving no partial ballot/token state.
	RequestTimeout = 5 * time.Second
)
