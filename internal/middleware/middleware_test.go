package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"holdings-server/internal/auth"
	"holdings-server/internal/shared/config"
	"holdings-server/internal/shared/cookies"
	"holdings-server/internal/shared/errors"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAuthenticator map[string]*auth.Session

func (f fakeAuthenticator) Authenticate(value string) (*auth.Session, error) {
	if s, ok := f[value]; ok {
		return s, nil
	}
	return nil, errors.Unauthorized("session expired")
}

func TestSessionMiddleware(t *testing.T) {
	session := &auth.Session{ID: "s1", Character: auth.Character{ID: 7, Name: "Pilot"}}
	mw := SessionMiddleware(fakeAuthenticator{"good": session}, testLogger())

	var seen *auth.Session
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSessionFromContext(r)
	}))

	tests := []struct {
		name   string
		cookie string
		status int
	}{
		{"no cookie", "", http.StatusUnauthorized},
		{"unknown session", "bad", http.StatusUnauthorized},
		{"valid session", "good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/holdings/roots", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: cookies.SessionCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Same(t, session, seen)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, BurstSize: 2}, testLogger())
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 2, rl.sweep(time.Now().Add(2*clientIdleAfter)))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "192.168.1.1", getClientIP(req, false))
	assert.Equal(t, "203.0.113.9", getClientIP(req, true))
}
