package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_BurstThenDeny(t *testing.T) {
	m := NewMemory(6, 2)
	defer m.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := m.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i)
	}

	ok, retry, err := m.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))

	ok, _, err = m.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok, "other keys have their own bucket")
}

func TestMemory_EvictIdle(t *testing.T) {
	m := NewMemory(60, 1)
	defer m.Close()

	_, _, _ = m.Allow(context.Background(), "a")
	require.Equal(t, 1, m.size())

	m.evictIdle(time.Now().Add(idleTTL + time.Second))
	assert.Equal(t, 0, m.size())
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedis_FixedWindow(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	l := NewRedis(rdb, "rl:test:", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, retry, err := l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, time.Minute)
	assert.True(t, mr.Exists("rl:test:ip"))

	mr.FastForward(time.Minute + time.Second)

	ok, _, err = l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, ok, "new window after expiry")
}

func TestRedis_ErrorWhenUnavailable(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	l := NewRedis(rdb, "rl:", 1, time.Minute)
	mr.Close()

	_, _, err := l.Allow(context.Background(), "ip")
	assert.Error(t, err)
}

type stubLimiter struct {
	allowed bool
	retry   time.Duration
	err     error
}

func (s stubLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return s.allowed, s.retry, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware_Rejects(t *testing.T) {
	h := Middleware(stubLimiter{allowed: false, retry: 1500 * time.Millisecond}, ClientIP)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
}

func TestMiddleware_FailsOpen(t *testing.T) {
	h := Middleware(stubLimiter{err: errors.New("redis down")}, ClientIP)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/messages", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	assert.Equal(t, "203.0.113.9", ClientIP(req))

	req.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}

func TestForwardedClientIP_RightmostTrusted(t *testing.T) {
	key := ForwardedClientIP(1)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.99:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	assert.Equal(t, "203.0.113.50", key(req))

	// A client-prepended address is left of the proxy's entry and ignored.
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 203.0.113.50")
	assert.Equal(t, "203.0.113.50", key(req))
}

func TestForwardedClientIP_TwoProxies(t *testing.T) {
	key := ForwardedClientIP(2)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	req.Header.Set("X-Forwarded-For", "6.6.6.6, 203.0.113.50, 10.0.0.1")
	assert.Equal(t, "203.0.113.50", key(req))

	// Too few hops to contain the trusted entry.
	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	assert.Equal(t, "10.0.0.2", key(req))
}

func TestForwardedClientIP_NoTrustIgnoresHeader(t *testing.T) {
	for _, n := range []int{0, -1} {
		key := ForwardedClientIP(n)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set("X-Forwarded-For", "203.0.113.1")
		req.Header.Set("X-Real-IP", "203.0.113.2")
		assert.Equal(t, "198.51.100.7", key(req), "trusted proxies %d", n)
	}
}

func TestMiddleware_SpoofedForwardingHeaderStillLimited(t *testing.T) {
	m := NewMemory(60, 1)
	defer m.Close()
	h := Middleware(m, ForwardedClientIP(1))(okHandler())

	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
		req.RemoteAddr = "10.0.0.99:1234"
		req.Header.Set("X-Forwarded-For", spoofed+", 203.0.113.50")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}
