package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	l := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("client-a") {
			t.Fatalf("request %d should be within budget", i+1)
		}
	}
	if l.Allow("client-a") {
		t.Error("fourth request should exceed the budget")
	}
	if !l.Allow("client-b") {
		t.Error("a different client has its own budget")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	l := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("anyone") {
			t.Fatal("zero limit must disable limiting")
		}
	}
}

func TestRateLimiterRefills(t *testing.T) {
	l := NewRateLimiter(60, 100*time.Millisecond)

	for i := 0; i < 60; i++ {
		l.Allow("client")
	}
	if l.Allow("client") {
		t.Fatal("budget should be exhausted")
	}

	time.Sleep(20 * time.Millisecond)
	if !l.Allow("client") {
		t.Error("tokens should refill continuously")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/match?q=x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("first two requests = %v, want 200s", statuses[:2])
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", statuses[2])
	}
}

func TestClientKeyIgnoresForwardedHeaderByDefault(t *testing.T) {
	// A client sending a fresh X-Forwarded-For per request would otherwise
	// mint a fresh bucket per request.
	l := NewRateLimiter(1, time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := l.clientKey(req); got != "10.0.0.1" {
		t.Errorf("clientKey = %q, want host without port", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	if got := l.clientKey(req); got != "10.0.0.1" {
		t.Errorf("clientKey = %q, want socket address despite header", got)
	}
}

func TestClientKeyTrustsProxyHeaderWhenEnabled(t *testing.T) {
	l := NewRateLimiter(1, time.Minute)
	l.TrustProxyHeader = true
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 192.0.2.9")
	if got := l.clientKey(req); got != "198.51.100.7" {
		t.Errorf("clientKey = %q, want first forwarded hop", got)
	}
}

func TestRateLimitMiddlewareSharesBucketAcrossForgedHeaders(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	last := 0
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/match?q=x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", "203.0.113."+string(rune('1'+i)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request with rotating header = %d, want 429", last)
	}
}
