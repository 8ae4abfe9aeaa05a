package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ledgerworks/ledgercore/pkg/logger"
)

const secret = "middleware-test-secret-of-32-bytes-or-more"

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(secret)

	token, err := svc.GenerateToken("svc-billing", "Billing", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "svc-billing", claims.Subject)
	assert.Equal(t, "Billing", claims.Name)
	assert.Equal(t, TokenIssuer, claims.Issuer)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(secret)

	_, err := svc.GenerateToken(" ", "nobody", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSubject)

	other, err := NewJWTService("a-completely-different-secret-value!!").GenerateToken("x", "", time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(other)
	assert.Error(t, err, "wrong key")

	expired := NewJWTService(secret)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.GenerateToken("x", "", time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(old)
	assert.Error(t, err, "expired")
}

func TestJWTMiddleware_SetsCaller(t *testing.T) {
	svc := NewJWTService(secret)
	token, err := svc.GenerateToken("svc-billing", "Billing", time.Hour)
	require.NoError(t, err)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetCallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := JWTMiddleware(svc)(next)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc.def.ghi", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, "svc-billing", seen)
}

func TestGetCallerFromContext_Empty(t *testing.T) {
	_, ok := GetCallerFromContext(context.Background())
	assert.False(t, ok)
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRateLimiter_PerClientAndSweep(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(rate.Limit(1), 1)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"), "clients have separate buckets")

	now = now.Add(visitorIdleTTL + time.Second)
	assert.True(t, rl.allow("10.0.0.3"))
	assert.Len(t, rl.visitors, 1, "idle visitors are swept")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:51234"
	assert.Equal(t, "192.0.2.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
