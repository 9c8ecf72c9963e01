package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"holdings-server/internal/auth"
	"holdings-server/internal/shared/cookies"
	"holdings-server/internal/shared/errors"
	"holdings-server/internal/shared/response"
)

type contextKey string

const SessionContextKey contextKey = "session"

// Authenticator resolves a session cookie value to a session
type Authenticator interface {
	Authenticate(cookieValue string) (*auth.Session, error)
}

func SessionMiddleware(authenticator Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logger.With(
				"middleware", "session",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			cookie, err := r.Cookie(cookies.SessionCookieName)
			if err != nil {
				response.Error(w, r, logger, errors.Unauthorized("authentication required"))
				return
			}

			session, err := authenticator.Authenticate(cookie.Value)
			if err != nil {
				response.Error(w, r, logger, err)
				return
			}

			logger.Debug("Session authenticated", "character_id", session.Character.ID)
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

func WithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, SessionContextKey, session)
}

// GetSessionFromContext returns the session set by SessionMiddleware
func GetSessionFromContext(r *http.Request) *auth.Session {
	if session, ok := r.Context().Value(SessionContextKey).(*auth.Session); ok {
		return session
	}
	return nil
}
