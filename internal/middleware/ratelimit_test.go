package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestRateLimiter(burst int) *RateLimiter {
	return NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0 / 60.0), // テスト中の補充を事実上無効化
		GeneralBurst:    burst,
		CleanupInterval: time.Hour,
	}, "")
}

func doLimitedRequest(handler http.Handler, cookie *http.Cookie, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Result().StatusCode
}

func TestRateLimiter_WithinBurst_Allows(t *testing.T) {
	rl := newTestRateLimiter(3)
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cookie := &http.Cookie{Name: "access_token", Value: "tok-1"}
	for i := 0; i < 3; i++ {
		if status := doLimitedRequest(handler, cookie, ""); status != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, status)
		}
	}
}

func TestRateLimiter_ExceedsBurst_Returns429WithRetryAfter(t *testing.T) {
	rl := newTestRateLimiter(1)
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cookie := &http.Cookie{Name: "access_token", Value: "tok-1"}
	doLimitedRequest(handler, cookie, "")

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After ヘッダーが設定されていること")
	}
}

func TestRateLimiter_DistinctCredentials_IndependentBuckets(t *testing.T) {
	rl := newTestRateLimiter(1)
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if status := doLimitedRequest(handler, &http.Cookie{Name: "access_token", Value: "tok-a"}, ""); status != http.StatusOK {
		t.Fatalf("tok-a: status = %d, want 200", status)
	}
	// 別クライアントは独立したバケットを持つ
	if status := doLimitedRequest(handler, &http.Cookie{Name: "access_token", Value: "tok-b"}, ""); status != http.StatusOK {
		t.Errorf("tok-b: status = %d, want 200", status)
	}

	if count := rl.LimiterCount(); count != 2 {
		t.Errorf("LimiterCount = %d, want 2", count)
	}
}

func TestRateLimiter_NoCredential_FallsBackToRemoteIP(t *testing.T) {
	rl := newTestRateLimiter(1)
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if status := doLimitedRequest(handler, nil, "203.0.113.1:50000"); status != http.StatusOK {
		t.Fatalf("first: status = %d, want 200", status)
	}
	// 同一IPからの2回目はバースト超過
	if status := doLimitedRequest(handler, nil, "203.0.113.1:50001"); status != http.StatusTooManyRequests {
		t.Errorf("second: status = %d, want 429", status)
	}
	// 別IPは独立
	if status := doLimitedRequest(handler, nil, "203.0.113.2:50000"); status != http.StatusOK {
		t.Errorf("other IP: status = %d, want 200", status)
	}
}
