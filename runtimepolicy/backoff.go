package runtimepolicy

import (
	"time"

	"github.com/bakerrun/petriflow/instance"
)

// ExponentialBackoff returns an OnFailure that retries with exponentially
// growing delay (base, base*2, base*4, ...) up to maxRetries, then blocks
// the job for operator intervention. A maxRetries of 0 blocks on the first
// failure.
func ExponentialBackoff(base time.Duration, maxRetries int) OnFailure {
	return func(job *instance.Job, failureCount int, reason string) instance.ExceptionStrategy {
		if failureCount > maxRetries {
			return instance.BlockTransition()
		}
		delay := base
		for i := 1; i < failureCount; i++ {
			delay *= 2
		}
		return instance.RetryWithDelay(delay)
	}
}

// AlwaysBlock returns an OnFailure that never retries; every failure blocks
// the job until an operator overrides it. Useful for transitions whose
// effects are not safely retriable.
func AlwaysBlock() OnFailure {
	return func(job *instance.Job, failureCount int, reason string) instance.ExceptionStrategy {
		return instance.BlockTransition()
	}
}
