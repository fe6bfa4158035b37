package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestRateLimiter(generalBurst, sendBurst int) *RateLimiter {
	// 補充レートをほぼゼロにしてバースト消費のみを検証する
	return NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001),
		GeneralBurst:    generalBurst,
		SendRate:        rate.Limit(0.001),
		SendBurst:       sendBurst,
		CleanupInterval: time.Hour,
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func authedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/emails/list", nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

func TestGeneralMiddleware_BurstExhaustion_Returns429(t *testing.T) {
	rl := newTestRateLimiter(3, 1)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest("user-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}
}

func TestGeneralMiddleware_PerUserIsolation(t *testing.T) {
	rl := newTestRateLimiter(1, 1)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("user-1 first request: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("user-1 second request: status = %d, want 429", rec.Code)
	}

	// 別ユーザーは影響を受けない
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("user-2"))
	if rec.Code != http.StatusOK {
		t.Errorf("user-2 request: status = %d, want 200", rec.Code)
	}

	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("limiter count = %d, want 2", got)
	}
}

func TestSendMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := newTestRateLimiter(10, 1)
	defer rl.Stop()

	general := rl.GeneralMiddleware()(okHandler())
	send := rl.SendMiddleware()(okHandler())

	// 送信バーストを使い切る
	rec := httptest.NewRecorder()
	send.ServeHTTP(rec, authedRequest("user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("send first request: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	send.ServeHTTP(rec, authedRequest("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("send second request: status = %d, want 429", rec.Code)
	}

	// 一般APIは引き続き許可される
	rec = httptest.NewRecorder()
	general.ServeHTTP(rec, authedRequest("user-1"))
	if rec.Code != http.StatusOK {
		t.Errorf("general request: status = %d, want 200", rec.Code)
	}
}

func TestRateLimitMiddleware_MissingUserID_Returns401(t *testing.T) {
	rl := newTestRateLimiter(10, 10)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/emails/list", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    1,
		SendRate:        rate.Limit(1),
		SendBurst:       1,
		CleanupInterval: 10 * time.Millisecond,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), authedRequest("user-1"))

	if got := rl.GeneralLimiterCount(); got != 1 {
		t.Fatalf("limiter count = %d, want 1", got)
	}

	// TTL（CleanupInterval×2）経過後にクリーンアップされるまで待つ
	deadline := time.Now().Add(time.Second)
	for rl.GeneralLimiterCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := rl.GeneralLimiterCount(); got != 0 {
		t.Errorf("limiter count after cleanup = %d, want 0", got)
	}
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.SendBurst != 30 {
		t.Errorf("SendBurst = %d, want 30", cfg.SendBurst)
	}
	if cfg.GeneralRate != rate.Limit(2) {
		t.Errorf("GeneralRate = %v, want 2 req/sec", cfg.GeneralRate)
	}
}
