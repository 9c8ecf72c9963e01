package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
)

// Session is one logged in character. The OAuth token stays on the server;
// the browser only holds a signed reference to the session.
type Session struct {
	ID        string
	Character Character
	CreatedAt time.Time
	tokens    oauth2.TokenSource
}

func NewSession(character Character, tokens oauth2.TokenSource) (*Session, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	return &Session{
		ID:        hex.EncodeToString(b),
		Character: character,
		CreatedAt: time.Now(),
		tokens:    tokens,
	}, nil
}

// TokenSource refreshes the character's access token as needed
func (s *Session) TokenSource() oauth2.TokenSource { return s.tokens }

type SessionStore struct {
	sessions *cache.Cache
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: cache.New(ttl, 10*time.Minute),
	}
}

func (s *SessionStore) Put(session *Session) {
	s.sessions.Set(session.ID, session, cache.DefaultExpiration)
}

func (s *SessionStore) Get(id string) (*Session, bool) {
	obj, found := s.sessions.Get(id)
	if !found {
		return nil, false
	}
	session, ok := obj.(*Session)
	return session, ok
}

func (s *SessionStore) Delete(id string) {
	s.sessions.Delete(id)
}

// OnEnd registers fn to run after a session is deleted or expires
func (s *SessionStore) OnEnd(fn func(*Session)) {
	s.sessions.OnEvicted(func(_ string, obj interface{}) {
		if session, ok := obj.(*Session); ok {
			fn(session)
		}
	})
}

// HasCharacter reports whether any live session belongs to characterID
func (s *SessionStore) HasCharacter(characterID int64) bool {
	for _, item := range s.sessions.Items() {
		if session, ok := item.Object.(*Session); ok && session.Character.ID == characterID {
			return true
		}
	}
	return false
}

func (s *SessionStore) Len() int {
	return s.sessions.ItemCount()
}
