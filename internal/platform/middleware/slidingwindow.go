package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// SlidingWindow admits at most Limit events per key within any trailing
// Window. State is in-memory and per-process.
type SlidingWindow struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	events map[string][]time.Time
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindow{limit: limit, window: window, events: make(map[string][]time.Time)}
}

// Allow drops timestamps older than the window, then records now and returns
// true if fewer than limit events remain for key. A rejected call is not
// recorded.
func (s *SlidingWindow) Allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.prune(key, now)
	if len(kept) >= s.limit {
		return false
	}
	s.events[key] = append(kept, now)
	return true
}

// RetryAfter reports how long until key may send again. Zero means now.
func (s *SlidingWindow) RetryAfter(key string, now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.prune(key, now)
	if len(kept) < s.limit {
		return 0
	}
	return kept[0].Add(s.window).Sub(now)
}

// Remaining reports how many events key may still send in the current window.
func (s *SlidingWindow) Remaining(key string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit - len(s.prune(key, now))
}

// prune must be called with mu held.
func (s *SlidingWindow) prune(key string, now time.Time) []time.Time {
	ts := s.events[key]
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	ts = ts[i:]
	if len(ts) == 0 {
		delete(s.events, key)
		return nil
	}
	s.events[key] = ts
	return ts
}

// Limit applies the window to each request, keyed by user or client IP.
func (s *SlidingWindow) Limit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := clientKey(c)
			now := time.Now()
			if !s.Allow(key, now) {
				secs := int(s.RetryAfter(key, now).Seconds()) + 1
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests,
					fmt.Sprintf("too many requests: limit is %d per %s", s.limit, s.window))
			}
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(s.Remaining(key, now)))
			return next(c)
		}
	}
}
