package auth

import (
	"context"
	"log/slog"
	"time"

	"holdings-server/internal/auth/providers"
	"holdings-server/internal/shared/errors"
)

type Service struct {
	provider   providers.OAuthProvider
	states     *StateManager
	sessions   *SessionStore
	secret     string
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewService(provider providers.OAuthProvider, secret string, sessionTTL time.Duration, logger *slog.Logger) *Service {
	logger.Debug("Initializing auth service", "provider", provider.Name())

	return &Service{
		provider:   provider,
		states:     NewStateManager(),
		sessions:   NewSessionStore(sessionTTL),
		secret:     secret,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// OnCharacterLogout registers fn to run when the last session of a
// character ends, by logout or by expiry
func (s *Service) OnCharacterLogout(fn func(characterID int64)) {
	s.sessions.OnEnd(func(session *Session) {
		id := session.Character.ID
		if s.sessions.HasCharacter(id) {
			return
		}
		s.logger.Debug("Last session of character ended", "character_id", id)
		fn(id)
	})
}

// AuthURL starts a login and returns the SSO URL to redirect to
func (s *Service) AuthURL(userAgent string) (string, error) {
	state, err := s.states.GenerateState(userAgent)
	if err != nil {
		return "", errors.WrapInternal("failed to initialize OAuth flow", err)
	}
	return s.provider.GetAuthURL(state), nil
}

// CompleteLogin exchanges the callback code and opens a session. It returns
// the session and the signed value for the session cookie.
func (s *Service) CompleteLogin(ctx context.Context, code, state, userAgent string) (*Session, string, error) {
	logger := s.logger.With("operation", "complete_login")

	if code == "" {
		return nil, "", errors.Validation("missing authorization code")
	}
	if err := s.states.ValidateState(state, userAgent); err != nil {
		return nil, "", errors.WrapValidation("invalid request state", err)
	}

	token, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, "", errors.WrapExternal("failed to exchange authorization code", err)
	}

	character, _, err := ParseCharacterToken(token.AccessToken)
	if err != nil {
		return nil, "", err
	}

	// The session outlives the request, so the token source must not be
	// bound to the request context.
	session, err := NewSession(*character, s.provider.TokenSource(context.Background(), token))
	if err != nil {
		return nil, "", errors.WrapInternal("failed to create session", err)
	}

	signed, err := GenerateSessionJWT(s.secret, session.ID, character.ID, s.sessionTTL)
	if err != nil {
		return nil, "", errors.WrapInternal("failed to sign session", err)
	}

	s.sessions.Put(session)
	logger.Info("Character logged in",
		"character_id", character.ID,
		"character_name", character.Name,
		"active_sessions", s.sessions.Len())

	return session, signed, nil
}

// Authenticate resolves a session cookie value to its live session
func (s *Service) Authenticate(cookieValue string) (*Session, error) {
	claims, err := ValidateSessionJWT(s.secret, cookieValue)
	if err != nil {
		return nil, errors.Unauthorized("invalid session")
	}

	session, ok := s.sessions.Get(claims.SessionID)
	if !ok || session.Character.ID != claims.CharacterID {
		return nil, errors.Unauthorized("session expired")
	}
	return session, nil
}

func (s *Service) Logout(cookieValue string) {
	claims, err := ValidateSessionJWT(s.secret, cookieValue)
	if err != nil {
		return
	}
	s.sessions.Delete(claims.SessionID)
	s.logger.Debug("Session closed", "character_id", claims.CharacterID)
}
