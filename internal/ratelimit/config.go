// Package ratelimit applies fixed-window request limits per client.
package ratelimit

import (
	"fmt"
	"time"
)

// Limit caps requests from one client within a fixed window.
// Zero values mean no limit.
type Limit struct {
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
	Window      time.Duration `yaml:"window" json:"window"`
}

func (l *Limit) enabled() bool {
	return l != nil && l.MaxRequests > 0 && l.Window > 0
}

// Config maps request categories (envelope, action, mfa) to their limits.
// The "*" entry applies to categories without their own.
type Config map[string]*Limit

// HasLimits returns true if any category has a configured limit.
func (c Config) HasLimits() bool {
	for _, l := range c {
		if l.enabled() {
			return true
		}
	}
	return false
}

// For returns the limit for category, falling back to "*". Nil when unlimited.
func (c Config) For(category string) *Limit {
	if l := c[category]; l != nil {
		if l.enabled() {
			return l
		}
		return nil
	}
	if l := c["*"]; l.enabled() {
		return l
	}
	return nil
}

// Validate rejects negative values.
func (c Config) Validate() error {
	for cat, l := range c {
		if l == nil {
			continue
		}
		if l.MaxRequests < 0 || l.Window < 0 {
			return fmt.Errorf("rate limit %q: max_requests and window must not be negative", cat)
		}
	}
	return nil
}
