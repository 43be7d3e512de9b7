package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/fieldops/pkg/authz"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedLimiter(config *RateLimitConfig) (*RateLimiter, *clock) {
	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(config)
	rl.now = c.Now
	return rl, c
}

func TestRateLimiter_Allow(t *testing.T) {
	config := &RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Second, BurstSize: 2}
	limiter, clk := newClockedLimiter(config)
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 20; i++ {
		status, err := limiter.Allow(ctx, "actor:1")
		require.NoError(t, err)
		if status.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 12, allowed)

	status, _ := limiter.Allow(ctx, "actor:1")
	assert.False(t, status.Allowed)
	assert.Equal(t, 0, status.Remaining)
	assert.Greater(t, status.ResetIn, time.Duration(0))

	// 10 per second refills one token every 100ms
	clk.Advance(150 * time.Millisecond)
	status, _ = limiter.Allow(ctx, "actor:1")
	assert.True(t, status.Allowed)
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := newClockedLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	ctx := context.Background()

	first, _ := limiter.Allow(ctx, "ip:10.0.0.1")
	second, _ := limiter.Allow(ctx, "ip:10.0.0.1")
	other, _ := limiter.Allow(ctx, "ip:10.0.0.2")

	assert.True(t, first.Allowed)
	assert.False(t, second.Allowed)
	assert.True(t, other.Allowed)
}

func TestRateLimiter_RefillCapsAtCapacity(t *testing.T) {
	limiter, clk := newClockedLimiter(&RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Second, BurstSize: 1})
	ctx := context.Background()

	limiter.Allow(ctx, "k")
	clk.Advance(time.Hour)

	status, _ := limiter.Allow(ctx, "k")
	assert.Equal(t, 5, status.Remaining)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter, clk := newClockedLimiter(&RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Second})
	limiter.Allow(context.Background(), "stale")
	clk.Advance(3 * time.Second)
	limiter.Allow(context.Background(), "fresh")

	limiter.Cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.buckets, "stale")
	assert.Contains(t, limiter.buckets, "fresh")
}

func TestRateLimiter_Concurrency(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 50, WindowDuration: time.Hour})
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if status, _ := limiter.Allow(context.Background(), "shared"); status.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestNewRateLimiter_NilConfig(t *testing.T) {
	limiter := NewRateLimiter(nil)
	assert.Equal(t, DefaultRateLimitConfig(), limiter.config)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "192.0.2.1:5678", want: "192.0.2.1"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, remote: "10.0.0.1:80", want: "203.0.113.9"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.4"}, remote: "10.0.0.1:80", want: "198.51.100.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}

type recordingLimiter struct {
	keys   []string
	status LimitStatus
	err    error
}

func (l *recordingLimiter) Allow(_ context.Context, key string) (LimitStatus, error) {
	l.keys = append(l.keys, key)
	return l.status, l.err
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestRateLimitMiddleware_KeysByActorOrIP(t *testing.T) {
	actors := &recordingLimiter{status: LimitStatus{Allowed: true, Limit: 1000, Remaining: 999}}
	anon := &recordingLimiter{status: LimitStatus{Allowed: true, Limit: 100, Remaining: 99}}
	handler := NewRateLimitMiddleware(actors, anon, true, nil).Handler(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:4000"
	w := serve(handler, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, []string{"ip:192.0.2.7"}, anon.keys)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(authz.ContextWithActor(r.Context(), &authz.Actor{ID: 42, CompanyID: 1}))
	w = serve(handler, r)
	assert.Equal(t, "999", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, []string{"actor:42"}, actors.keys)
}

func TestRateLimitMiddleware_Exceeded(t *testing.T) {
	limiter := &recordingLimiter{status: LimitStatus{Allowed: false, Limit: 10, ResetIn: 2400 * time.Millisecond}}
	handler := NewRateLimitMiddleware(limiter, limiter, true, nil).Handler(okHandler())

	w := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestRateLimitMiddleware_LimiterFailure(t *testing.T) {
	limiter := &recordingLimiter{err: errors.New("redis error: connection refused")}

	t.Run("fail open", func(t *testing.T) {
		log, hook := test.NewNullLogger()
		handler := NewRateLimitMiddleware(limiter, limiter, true, log).Handler(okHandler())

		w := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, "rate limiter unavailable", hook.LastEntry().Message)
	})

	t.Run("fail closed", func(t *testing.T) {
		log, _ := test.NewNullLogger()
		handler := NewRateLimitMiddleware(limiter, limiter, false, log).Handler(okHandler())

		w := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestRateLimitMiddleware_EndToEnd(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Hour})
	handler := NewRateLimitMiddleware(limiter, limiter, false, nil).Handler(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "198.51.100.1:1000"
		codes = append(codes, serve(handler, r).Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
