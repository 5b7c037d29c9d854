// Package analytics keeps an in-memory view of API usage for the admin
// console: request totals, error rate, latency and the busiest routes and
// dashboard features.
package analytics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/platform/auth"
)

const dashboardPrefix = "/api/v1/dashboard/"

// RequestMetric is one recorded request. Route is the matched route pattern
// (e.g. /api/v1/dashboard/medications/:id) so IDs do not split the counters.
type RequestMetric struct {
	Timestamp  time.Time     `json:"timestamp"`
	Method     string        `json:"method"`
	Route      string        `json:"route"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration"`
	UserID     string        `json:"user_id,omitempty"`
	Feature    string        `json:"feature,omitempty"`
}

type routeStats struct {
	key           string
	totalRequests int64
	totalErrors   int64
	totalDuration int64
	statusCounts  map[int]int64
	mu            sync.Mutex
}

type RouteSummary struct {
	Route           string        `json:"route"`
	TotalRequests   int64         `json:"total_requests"`
	ErrorRate       float64       `json:"error_rate"`
	AvgLatency      time.Duration `json:"avg_latency"`
	P95Latency      time.Duration `json:"p95_latency"`
	StatusBreakdown map[int]int64 `json:"status_breakdown"`
}

type FeatureSummary struct {
	Feature  string `json:"feature"`
	Requests int64  `json:"requests"`
	Users    int    `json:"users"`
}

type UsageOverview struct {
	TotalRequests int64           `json:"total_requests"`
	TotalErrors   int64           `json:"total_errors"`
	ErrorRate     float64         `json:"error_rate"`
	AvgLatency    time.Duration   `json:"avg_latency"`
	UniqueUsers   int             `json:"unique_users"`
	UniqueRoutes  int             `json:"unique_routes"`
	TopRoutes     []*RouteSummary `json:"top_routes"`
}

type TimeSeriesBucket struct {
	Timestamp    time.Time     `json:"timestamp"`
	RequestCount int64         `json:"request_count"`
	ErrorCount   int64         `json:"error_count"`
	AvgLatency   time.Duration `json:"avg_latency"`
}

// UsageTracker aggregates request metrics. Recent metrics are kept in a
// fixed-size ring; totals and per-route counters cover the whole lifetime.
type UsageTracker struct {
	mu         sync.RWMutex
	ring       []*RequestMetric
	maxMetrics int
	writePos   int
	full       bool
	routes     map[string]*routeStats
	features   map[string]int64
	featureUse map[string]map[string]struct{}
	users      map[string]struct{}

	totalRequests int64
	totalErrors   int64
	totalDuration int64
	now           func() time.Time
}

func NewUsageTracker(maxMetrics int) *UsageTracker {
	if maxMetrics <= 0 {
		maxMetrics = 10000
	}
	return &UsageTracker{
		ring:       make([]*RequestMetric, 0, maxMetrics),
		maxMetrics: maxMetrics,
		routes:     map[string]*routeStats{},
		features:   map[string]int64{},
		featureUse: map[string]map[string]struct{}{},
		users:      map[string]struct{}{},
		now:        time.Now,
	}
}

// Record adds m to the ring and updates the counters.
func (ut *UsageTracker) Record(m *RequestMetric) {
	isError := m.StatusCode >= 400
	atomic.AddInt64(&ut.totalRequests, 1)
	if isError {
		atomic.AddInt64(&ut.totalErrors, 1)
	}
	atomic.AddInt64(&ut.totalDuration, int64(m.Duration))

	key := m.Method + " " + m.Route
	ut.mu.Lock()
	if ut.full {
		ut.ring[ut.writePos] = m
	} else {
		ut.ring = append(ut.ring, m)
	}
	ut.writePos++
	if ut.writePos >= ut.maxMetrics {
		ut.writePos = 0
		ut.full = true
	}
	rs, ok := ut.routes[key]
	if !ok {
		rs = &routeStats{key: key, statusCounts: map[int]int64{}}
		ut.routes[key] = rs
	}
	if m.UserID != "" {
		ut.users[m.UserID] = struct{}{}
	}
	if m.Feature != "" {
		ut.features[m.Feature]++
		if m.UserID != "" {
			if ut.featureUse[m.Feature] == nil {
				ut.featureUse[m.Feature] = map[string]struct{}{}
			}
			ut.featureUse[m.Feature][m.UserID] = struct{}{}
		}
	}
	ut.mu.Unlock()

	rs.mu.Lock()
	rs.totalRequests++
	if isError {
		rs.totalErrors++
	}
	rs.totalDuration += int64(m.Duration)
	rs.statusCounts[m.StatusCode]++
	rs.mu.Unlock()
}

func (ut *UsageTracker) Overview() *UsageOverview {
	total := atomic.LoadInt64(&ut.totalRequests)
	errs := atomic.LoadInt64(&ut.totalErrors)
	dur := atomic.LoadInt64(&ut.totalDuration)

	ov := &UsageOverview{TotalRequests: total, TotalErrors: errs, TopRoutes: ut.TopRoutes(5)}
	if total > 0 {
		ov.ErrorRate = float64(errs) / float64(total)
		ov.AvgLatency = time.Duration(dur / total)
	}
	ut.mu.RLock()
	ov.UniqueUsers = len(ut.users)
	ov.UniqueRoutes = len(ut.routes)
	ut.mu.RUnlock()
	return ov
}

// TopRoutes returns the limit busiest routes, busiest first.
func (ut *UsageTracker) TopRoutes(limit int) []*RouteSummary {
	ut.mu.RLock()
	all := make([]*routeStats, 0, len(ut.routes))
	for _, rs := range ut.routes {
		all = append(all, rs)
	}
	ut.mu.RUnlock()

	out := make([]*RouteSummary, 0, len(all))
	for _, rs := range all {
		out = append(out, ut.summarize(rs))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalRequests == out[j].TotalRequests {
			return out[i].Route < out[j].Route
		}
		return out[i].TotalRequests > out[j].TotalRequests
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Features lists dashboard features by request count.
func (ut *UsageTracker) Features() []FeatureSummary {
	ut.mu.RLock()
	out := make([]FeatureSummary, 0, len(ut.features))
	for f, n := range ut.features {
		out = append(out, FeatureSummary{Feature: f, Requests: n, Users: len(ut.featureUse[f])})
	}
	ut.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Requests == out[j].Requests {
			return out[i].Feature < out[j].Feature
		}
		return out[i].Requests > out[j].Requests
	})
	return out
}

// TimeSeries buckets the ring's metrics over the last duration.
func (ut *UsageTracker) TimeSeries(interval, duration time.Duration) []*TimeSeriesBucket {
	if interval <= 0 {
		interval = time.Minute
	}
	now := ut.now()
	start := now.Add(-duration).Truncate(interval)
	n := int(now.Sub(start)/interval) + 1

	buckets := make([]*TimeSeriesBucket, n)
	for i := range buckets {
		buckets[i] = &TimeSeriesBucket{Timestamp: start.Add(time.Duration(i) * interval)}
	}
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	for _, m := range ut.ring {
		if m.Timestamp.Before(start) || m.Timestamp.After(now) {
			continue
		}
		b := buckets[int(m.Timestamp.Sub(start)/interval)]
		b.RequestCount++
		if m.StatusCode >= 400 {
			b.ErrorCount++
		}
		b.AvgLatency += m.Duration
	}
	for _, b := range buckets {
		if b.RequestCount > 0 {
			b.AvgLatency = time.Duration(int64(b.AvgLatency) / b.RequestCount)
		}
	}
	return buckets
}

func (ut *UsageTracker) summarize(rs *routeStats) *RouteSummary {
	rs.mu.Lock()
	s := &RouteSummary{
		Route:           rs.key,
		TotalRequests:   rs.totalRequests,
		StatusBreakdown: make(map[int]int64, len(rs.statusCounts)),
	}
	if rs.totalRequests > 0 {
		s.ErrorRate = float64(rs.totalErrors) / float64(rs.totalRequests)
		s.AvgLatency = time.Duration(rs.totalDuration / rs.totalRequests)
	}
	for code, n := range rs.statusCounts {
		s.StatusBreakdown[code] = n
	}
	rs.mu.Unlock()
	s.P95Latency = ut.p95(rs.key)
	return s
}

// p95 is computed over the metrics still in the ring.
func (ut *UsageTracker) p95(key string) time.Duration {
	ut.mu.RLock()
	var durations []time.Duration
	for _, m := range ut.ring {
		if m.Method+" "+m.Route == key {
			durations = append(durations, m.Duration)
		}
	}
	ut.mu.RUnlock()
	if len(durations) == 0 {
		return 0
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	idx := int(float64(len(durations)) * 0.95)
	if idx >= len(durations) {
		idx = len(durations) - 1
	}
	return durations[idx]
}

// FeatureOf returns the dashboard section a path belongs to, e.g.
// "medications" for /api/v1/dashboard/medications/123.
func FeatureOf(path string) string {
	if !strings.HasPrefix(path, dashboardPrefix) {
		return ""
	}
	rest := path[len(dashboardPrefix):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// UsageMiddleware records every request into tracker.
func UsageMiddleware(tracker *UsageTracker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < 400 {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			tracker.Record(&RequestMetric{
				Timestamp:  start,
				Method:     c.Request().Method,
				Route:      route,
				StatusCode: status,
				Duration:   time.Since(start),
				UserID:     auth.UserIDFromContext(c.Request().Context()),
				Feature:    FeatureOf(c.Request().URL.Path),
			})
			return err
		}
	}
}

// UsageHandler serves the usage endpoints of the admin console.
type UsageHandler struct {
	tracker *UsageTracker
}

func NewUsageHandler(tracker *UsageTracker) *UsageHandler {
	return &UsageHandler{tracker: tracker}
}

func (h *UsageHandler) RegisterRoutes(admin *echo.Group) {
	g := admin.Group("/usage")
	g.GET("", h.HandleOverview)
	g.GET("/routes", h.HandleTopRoutes)
	g.GET("/features", h.HandleFeatures)
	g.GET("/timeseries", h.HandleTimeSeries)
}

func (h *UsageHandler) HandleOverview(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.Overview())
}

func (h *UsageHandler) HandleTopRoutes(c echo.Context) error {
	limit := 20
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 {
		limit = l
	}
	return c.JSON(http.StatusOK, h.tracker.TopRoutes(limit))
}

func (h *UsageHandler) HandleFeatures(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.Features())
}

func (h *UsageHandler) HandleTimeSeries(c echo.Context) error {
	interval := parseDuration(c.QueryParam("interval"), time.Minute)
	duration := parseDuration(c.QueryParam("duration"), time.Hour)
	if duration/interval > 10000 {
		return echo.NewHTTPError(http.StatusBadRequest, "too many buckets; widen the interval")
	}
	return c.JSON(http.StatusOK, h.tracker.TimeSeries(interval, duration))
}

// parseDuration accepts Go durations plus a "d" suffix for days.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if n, ok := strings.CutSuffix(s, "d"); ok {
		if days, err := strconv.Atoi(n); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
