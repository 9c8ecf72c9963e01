package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	cache "github.com/patrickmn/go-cache"
)

const stateTTL = 10 * time.Minute

// StateManager issues one-time OAuth state tokens
type StateManager struct {
	states *cache.Cache
}

type StateEntry struct {
	CreatedAt time.Time
	UserAgent string
}

func NewStateManager() *StateManager {
	return &StateManager{
		states: cache.New(stateTTL, 5*time.Minute),
	}
}

// GenerateState creates a new state token and stores it for validation
func (sm *StateManager) GenerateState(userAgent string) (string, error) {
	logger := slog.With("component", "state_manager", "operation", "generate")

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logger.Error("Failed to generate random bytes for state token", "error", err)
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	state := base64.URLEncoding.EncodeToString(b)

	sm.states.Set(state, StateEntry{CreatedAt: time.Now(), UserAgent: userAgent}, cache.DefaultExpiration)

	logger.Debug("OAuth state token generated and stored", "state_length", len(state))
	return state, nil
}

// ValidateState checks the state token and consumes it
func (sm *StateManager) ValidateState(state, userAgent string) error {
	logger := slog.With("component", "state_manager", "operation", "validate")

	if state == "" {
		logger.Warn("Empty state token provided")
		return fmt.Errorf("state token is required")
	}

	obj, found := sm.states.Get(state)
	if !found {
		logger.Warn("Invalid or expired state token")
		return fmt.Errorf("invalid or expired state token")
	}
	sm.states.Delete(state)

	entry := obj.(StateEntry)
	if entry.UserAgent != userAgent {
		logger.Warn("State token user agent mismatch",
			"stored_user_agent", entry.UserAgent,
			"received_user_agent", userAgent)
	}

	logger.Debug("State token validated successfully",
		"token_age_seconds", time.Since(entry.CreatedAt).Seconds())
	return nil
}

func (sm *StateManager) Len() int {
	return sm.states.ItemCount()
}
