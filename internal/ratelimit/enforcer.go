package ratelimit

import (
	"fmt"
	"time"
)

// CheckResult is the outcome of a rate limit check.
type CheckResult struct {
	Exceeded bool
	Category string
	Current  int
	Limit    int
	// RetryAfter is the time left in the current window when Exceeded.
	RetryAfter time.Duration
	Reason     string
}

// Check compares the current count against the limit.
func Check(count int, limit *Limit) CheckResult {
	if !limit.enabled() {
		return CheckResult{}
	}
	if count >= limit.MaxRequests {
		return CheckResult{
			Exceeded: true,
			Current:  count,
			Limit:    limit.MaxRequests,
			Reason: fmt.Sprintf("rate limit exceeded: %d/%d requests in %s window",
				count, limit.MaxRequests, limit.Window),
		}
	}
	return CheckResult{}
}
