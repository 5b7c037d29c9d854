// Package integrations holds what the remote API clients share: the circuit
// breaker, the JSON request helper and fallback bookkeeping. Every client
// degrades to sandbox data when its remote is unconfigured or failing.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/healthhub/healthhub/internal/platform/cache"
	"github.com/healthhub/healthhub/internal/platform/telemetry"
)

// Source tells the caller where a result came from.
type Source string

const (
	SourceLive  Source = "live"
	SourceMock  Source = "mock"
	SourceCache Source = "cache"
)

// DefaultTimeout bounds every outbound request.
const DefaultTimeout = 10 * time.Second

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// BreakerConfig tunes the circuit breaker around one remote.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// NewBreaker trips once at least MinRequests were made in the interval and
// the failure ratio reaches FailureThreshold.
func NewBreaker(name string, cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("integration", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
}

// Base carries the dependencies every client needs.
type Base struct {
	Name    string
	HTTP    *http.Client
	Breaker *gobreaker.CircuitBreaker
	Cache   cache.Cache
	Metrics *telemetry.Collector
	Logger  zerolog.Logger
}

// NewBase builds a Base with a fresh breaker and a timeout-bound client.
func NewBase(name string, logger zerolog.Logger) Base {
	logger = logger.With().Str("integration", name).Logger()
	return Base{
		Name:    name,
		HTTP:    &http.Client{Timeout: DefaultTimeout},
		Breaker: NewBreaker(name, DefaultBreakerConfig(), logger),
		Logger:  logger,
	}
}

// SetCache attaches an optional response cache.
func (b *Base) SetCache(c cache.Cache) { b.Cache = c }

// SetMetrics attaches an optional metrics collector.
func (b *Base) SetMetrics(m *telemetry.Collector) { b.Metrics = m }

// SetHTTPClient replaces the HTTP client, e.g. with an OAuth2 client.
func (b *Base) SetHTTPClient(c *http.Client) { b.HTTP = c }

// Live records a successful remote call.
func (b *Base) Live() Source {
	b.Metrics.IntegrationCall(b.Name, telemetry.OutcomeLive)
	return SourceLive
}

// Cached records a cache hit.
func (b *Base) Cached() Source {
	b.Metrics.IntegrationCall(b.Name, telemetry.OutcomeCached)
	return SourceCache
}

// Fallback logs why mock data is being served and records it. A nil err
// means the integration is simply not configured.
func (b *Base) Fallback(err error) Source {
	if err != nil {
		b.Logger.Warn().Err(err).Msg("remote call failed, serving mock data")
	}
	b.Metrics.IntegrationCall(b.Name, telemetry.OutcomeFallback)
	return SourceMock
}

// CacheGet reads key from the cache when one is attached.
func (b *Base) CacheGet(ctx context.Context, key string, dest interface{}) bool {
	if b.Cache == nil {
		return false
	}
	if err := b.Cache.Get(ctx, key, dest); err != nil {
		if !cache.IsMiss(err) {
			b.Logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	return true
}

// CacheSet stores value when a cache is attached; failures are only logged.
func (b *Base) CacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if b.Cache == nil {
		return
	}
	if err := b.Cache.Set(ctx, key, value, ttl); err != nil {
		b.Logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// DoJSON sends req through the breaker and decodes a 2xx JSON body into out.
func (b *Base) DoJSON(req *http.Request, out interface{}) error {
	_, err := b.Breaker.Execute(func() (interface{}, error) {
		resp, err := b.HTTP.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
		}
		if out == nil {
			return nil, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return nil, nil
	})
	return err
}

// NewJSONRequest builds a request with an optional JSON body.
func NewJSONRequest(ctx context.Context, method, url string, body interface{}) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
