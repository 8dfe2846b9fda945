package ratelimit

import (
	"sync"
	"time"
)

// sweepAbove is the window count at which expired windows are pruned.
const sweepAbove = 4096

type key struct {
	client   string
	category string
}

type window struct {
	start time.Time
	count int
	span  time.Duration
}

// Limiter counts requests per client and category in fixed windows.
// Safe for concurrent use.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	windows map[key]*window
}

// New returns a limiter for cfg.
func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg, windows: make(map[key]*window)}
}

// Allow checks the client's count for category and, when within the limit,
// records the request. Categories without a limit are always allowed.
func (l *Limiter) Allow(client, category string, now time.Time) CheckResult {
	limit := l.cfg.For(category)
	if limit == nil {
		return CheckResult{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.windows) > sweepAbove {
		l.sweep(now)
	}

	k := key{client: client, category: category}
	w := l.windows[k]
	if w == nil || now.Sub(w.start) >= limit.Window {
		w = &window{start: now, span: limit.Window}
		l.windows[k] = w
	}

	result := Check(w.count, limit)
	if result.Exceeded {
		result.Category = category
		result.RetryAfter = limit.Window - now.Sub(w.start)
		return result
	}
	w.count++
	return CheckResult{}
}

func (l *Limiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if now.Sub(w.start) >= w.span {
			delete(l.windows, k)
		}
	}
}
