package server

import (
	"fmt"
	"sync"
	"time"
)

// Limits caps how much work a single client may submit. Zero disables a limit.
type Limits struct {
	RequestsPerMinute int
	RequestsPerHour   int
	RequestsPerDay    int
	BytesPerDay       int64
}

// RateLimiter tracks per-client request counts in fixed minute, hour and day
// windows. HTTP requests and websocket frames are charged against the same
// budget.
type RateLimiter struct {
	mu      sync.Mutex
	limits  Limits
	now     func() time.Time
	clients map[string]*clientUsage
}

type clientUsage struct {
	minuteStart time.Time
	hourStart   time.Time
	dayStart    time.Time

	minute int
	hour   int
	day    int
	bytes  int64

	lastSeen time.Time
}

// Usage is a snapshot of one client's consumption in the current windows.
type Usage struct {
	Minute int
	Hour   int
	Day    int
	Bytes  int64
}

// NewRateLimiter creates a rate limiter enforcing limits.
func NewRateLimiter(limits Limits) *RateLimiter {
	return &RateLimiter{
		limits:  limits,
		now:     time.Now,
		clients: make(map[string]*clientUsage),
	}
}

// Limits returns the configured limits.
func (rl *RateLimiter) Limits() Limits { return rl.limits }

// Allow charges one request of size bytes to client. It returns a
// *RateLimitError or *QuotaExceededError when a limit is hit; rejected
// requests are not charged.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[client]
	if !ok {
		u = &clientUsage{minuteStart: now, hourStart: now, dayStart: startOfDay(now)}
		rl.clients[client] = u
	}
	u.roll(now)
	u.lastSeen = now

	if rl.limits.RequestsPerMinute > 0 && u.minute >= rl.limits.RequestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.limits.RequestsPerMinute,
			RetryAfter: u.minuteStart.Add(time.Minute).Sub(now),
		}
	}
	if rl.limits.RequestsPerHour > 0 && u.hour >= rl.limits.RequestsPerHour {
		return &RateLimitError{
			Type:       "hour",
			Limit:      rl.limits.RequestsPerHour,
			RetryAfter: u.hourStart.Add(time.Hour).Sub(now),
		}
	}
	resets := u.dayStart.AddDate(0, 0, 1)
	if rl.limits.RequestsPerDay > 0 && u.day >= rl.limits.RequestsPerDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  int64(rl.limits.RequestsPerDay),
			Used:   int64(u.day),
			Resets: resets,
		}
	}
	if rl.limits.BytesPerDay > 0 && u.bytes+size > rl.limits.BytesPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.limits.BytesPerDay,
			Used:   u.bytes,
			Resets: resets,
		}
	}

	u.minute++
	u.hour++
	u.day++
	u.bytes += size
	return nil
}

// Usage returns the consumption of client in its current windows.
func (rl *RateLimiter) Usage(client string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.clients[client]
	if !ok {
		return Usage{}
	}
	u.roll(rl.now())
	return Usage{Minute: u.minute, Hour: u.hour, Day: u.day, Bytes: u.bytes}
}

// Prune forgets clients idle for longer than idle and returns how many were
// removed.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, u := range rl.clients {
		if now.Sub(u.lastSeen) > idle {
			delete(rl.clients, id)
			removed++
		}
	}
	return removed
}

// roll starts new windows for every period that has elapsed.
func (u *clientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart = now
		u.minute = 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart = now
		u.hour = 0
	}
	if day := startOfDay(now); day.After(u.dayStart) {
		u.dayStart = day
		u.day = 0
		u.bytes = 0
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
