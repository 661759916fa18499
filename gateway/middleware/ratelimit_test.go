package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"vaults": {RatePerSecond: 1, Burst: 1},
	}, nil)

	handler := limiter.Middleware("vaults")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/vaults/dqv1x", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesRoutes(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"vaults": {RatePerSecond: 1, Burst: 1},
		"admin":  {RatePerSecond: 1, Burst: 1},
	}, nil)

	vaultHandler := limiter.Middleware("vaults")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	adminHandler := limiter.Middleware("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/vaults/dqv1x/role", nil)
	req.Header.Set("X-API-Key", "tenant-A")
	res := httptest.NewRecorder()
	vaultHandler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected vault request to succeed, got %d", res.Code)
	}

	adminReq := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	adminReq.Header.Set("X-API-Key", "tenant-A")
	adminRes := httptest.NewRecorder()
	adminHandler.ServeHTTP(adminRes, adminReq)
	if adminRes.Code != http.StatusOK {
		t.Fatalf("expected first admin request to succeed, got %d", adminRes.Code)
	}

	adminRes = httptest.NewRecorder()
	adminHandler.ServeHTTP(adminRes, adminReq)
	if adminRes.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second admin request to hit limit, got %d", adminRes.Code)
	}
}

func TestRateLimiterAppliesRouteTokens(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"vaults": {
			RatePerSecond: 5,
			Burst:         5,
			DefaultTokens: 1,
			Tokens: map[string]int{
				"POST /v1/vaults": 3,
			},
		},
	}, nil)

	handler := limiter.Middleware("vaults")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/vaults", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first initialize request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second initialize request to consume burst and be rate limited, got %d", res.Code)
	}

	// A different route should still be able to proceed because it only
	// consumes the default token cost of 1.
	statusReq := httptest.NewRequest(http.MethodGet, "/v1/vaults/dqv1x", nil)
	statusRes := httptest.NewRecorder()
	handler.ServeHTTP(statusRes, statusReq)
	if statusRes.Code != http.StatusOK {
		t.Fatalf("expected read route to succeed with default token cost, got %d", statusRes.Code)
	}
}

func TestRateLimiterKeysByCaller(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"vaults": {RatePerSecond: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("vaults")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, fill := range []byte{0x01, 0x02} {
		req := httptest.NewRequest(http.MethodGet, "/v1/vaults/dqv1x", nil)
		ctx := context.WithValue(req.Context(), ContextKeyCaller, testCaller(fill))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req.WithContext(ctx))
		if res.Code != http.StatusOK {
			t.Fatalf("caller %x: expected success, got %d", fill, res.Code)
		}
	}
}

func TestRateLimiterPrefersAPIKeyOverIP(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"vaults": {RatePerSecond: 1, Burst: 1},
	}, nil)

	handler := limiter.Middleware("vaults")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	reqA := httptest.NewRequest(http.MethodGet, "/v1/vaults/dqv1x/role", nil)
	reqA.Header.Set("X-API-Key", "tenant-A")
	resA := httptest.NewRecorder()
	handler.ServeHTTP(resA, reqA)
	if resA.Code != http.StatusOK {
		t.Fatalf("expected tenant A request to succeed, got %d", resA.Code)
	}

	reqB := httptest.NewRequest(http.MethodGet, "/v1/vaults/dqv1x/role", nil)
	reqB.Header.Set("X-API-Key", "tenant-B")
	resB := httptest.NewRecorder()
	handler.ServeHTTP(resB, reqB)
	if resB.Code != http.StatusOK {
		t.Fatalf("expected tenant B request to succeed, got %d", resB.Code)
	}
}
