package holdings

import (
	"context"
	"log/slog"
	"sync"

	"holdings-server/internal/catalog"
	"holdings-server/internal/metadata"
	"holdings-server/internal/shared/config"

	"golang.org/x/oauth2"
)

// ClientFactory builds a catalog client acting with a character's token
type ClientFactory func(tokens oauth2.TokenSource) catalog.Client

// Manager keeps one Service per logged in character
type Manager struct {
	ctx     context.Context
	factory ClientFactory
	cfg     config.HoldingsConfig
	logger  *slog.Logger

	mu       sync.Mutex
	policy   metadata.Policy
	services map[int64]*Service
}

// NewManager creates a manager whose background loads live as long as ctx
func NewManager(ctx context.Context, factory ClientFactory, policy metadata.Policy, cfg config.HoldingsConfig, logger *slog.Logger) *Manager {
	logger.Debug("Initializing holdings manager",
		"max_concurrent_fetches", cfg.MaxConcurrent,
		"load_timeout", cfg.LoadTimeout)

	return &Manager{
		ctx:      ctx,
		factory:  factory,
		cfg:      cfg,
		logger:   logger,
		policy:   policy,
		services: make(map[int64]*Service),
	}
}

// Service returns the character's service, creating it on first use with a
// client acting with tokens
func (m *Manager) Service(characterID int64, tokens oauth2.TokenSource) *Service {
	s, _ := m.service(characterID, tokens)
	return s
}

func (m *Manager) service(characterID int64, tokens oauth2.TokenSource) (*Service, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.services[characterID]; ok {
		return s, false
	}

	s := NewService(characterID, m.factory(tokens), m.policy, m.cfg.MaxConcurrent, m.cfg.LoadTimeout, m.logger)
	m.services[characterID] = s
	return s, true
}

// Lookup returns the character's service if one exists
func (m *Manager) Lookup(characterID int64) (*Service, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[characterID]
	return s, ok
}

// Start loads the character's holdings in the background. The load acts
// with tokens, which may belong to a newer session than the one that
// created the service.
func (m *Manager) Start(characterID int64, tokens oauth2.TokenSource) *Service {
	s, created := m.service(characterID, tokens)
	if !created {
		s.UseClient(m.factory(tokens))
	}
	s.Start(m.ctx)
	return s
}

// Remove stops and forgets the character's service, typically once the
// character has no session left
func (m *Manager) Remove(characterID int64) {
	m.mu.Lock()
	s, ok := m.services[characterID]
	delete(m.services, characterID)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.Close()
	m.logger.Info("Holdings released", "component", "holdings_manager", "character_id", characterID)
}

// ApplyPolicy hands a reloaded unpack policy to every character. Types whose
// flag flips invalidate their holders; everything else is invalidated too
// since assembled totals depend on where the walk stops.
func (m *Manager) ApplyPolicy(policy metadata.Policy) {
	m.mu.Lock()
	m.policy = policy
	services := make([]*Service, 0, len(m.services))
	for _, s := range m.services {
		services = append(services, s)
	}
	m.mu.Unlock()

	for _, s := range services {
		s.Registry().ApplyPolicy(policy)
		s.Tree().InvalidateAll()
	}

	m.logger.Info("Unpack policy reloaded", "component", "holdings_manager", "characters", len(services))
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.services {
		s.Close()
		delete(m.services, id)
	}
}
