// Package retry provides exponential backoff with jitter for transient failures.
//
// The rosbridge connection never retries on its own; callers that want a
// persistent session wrap Connect in Do:
//
//	err := retry.DoNotify(ctx, retry.DefaultConfig(), func() error {
//	    return conn.Connect(ctx, host, port)
//	}, func(attempt int, err error, delay time.Duration) {
//	    logger.Warn("connect failed", "attempt", attempt, "retry_in", delay, "error", err)
//	})
//
// MaxAttempts of zero retries until the context is cancelled. Errors wrapped
// with NonRetryable stop the loop immediately.
package retry
