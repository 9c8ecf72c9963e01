package holdings

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"holdings-server/internal/catalog"
	"holdings-server/internal/location"
	"holdings-server/internal/metadata"
	"holdings-server/internal/metrics"
	"holdings-server/internal/shared/errors"
)

// Service owns the location tree of one character and loads it from the
// catalog. A new load cancels the one in flight; nodes merged before the
// cancellation stay in the tree.
type Service struct {
	characterID int64
	registry    *metadata.Registry
	tree        *location.Tree
	timeout     time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	client  catalog.Client
	status  Status
	cancel  context.CancelFunc
	loadSeq uint64
}

func NewService(characterID int64, client catalog.Client, policy metadata.Policy, maxConcurrent int, timeout time.Duration, logger *slog.Logger) *Service {
	logger = logger.With("component", "holdings_service", "character_id", characterID)
	logger.Debug("Initializing holdings service")

	registry := metadata.NewRegistry(client, policy, maxConcurrent, logger)

	return &Service{
		characterID: characterID,
		client:      client,
		registry:    registry,
		tree:        location.NewTree(registry, logger),
		timeout:     timeout,
		logger:      logger,
		status:      Status{CharacterID: characterID, State: LoadStateIdle},
	}
}

func (s *Service) Tree() *location.Tree { return s.tree }

func (s *Service) Registry() *metadata.Registry { return s.registry }

// Status returns the state of the last load together with live tree counters
func (s *Service) Status() Status {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()

	status.Nodes = s.tree.Len()
	status.Version = s.tree.Version()
	status.Pending = len(s.tree.PendingRefs())
	return status
}

// UseClient replaces the catalog client for later loads and metadata
// fetches, for example after the character logged in again
func (s *Service) UseClient(client catalog.Client) {
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	s.registry.SetSource(client)
}

func (s *Service) currentClient() catalog.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// Load fetches prices, items and sell orders, merges them into the tree and
// resolves the metadata they reference. Prices and orders are optional: a
// failure there is logged and the load goes on. A fetched list is complete,
// so entries missing from it leave the tree.
func (s *Service) Load(ctx context.Context) (Summary, error) {
	ctx, seq, release := s.prepare(ctx)
	defer release()
	return s.run(ctx, seq)
}

// Start runs Load in the background. The status reports loading as soon as
// Start returns.
func (s *Service) Start(ctx context.Context) {
	ctx, seq, release := s.prepare(ctx)
	go func() {
		defer release()
		if _, err := s.run(ctx, seq); err != nil {
			s.logger.Warn("Holdings load did not complete", "error", err)
		}
	}()
}

// prepare derives the load context and claims the status for a new load
func (s *Service) prepare(ctx context.Context) (context.Context, uint64, context.CancelFunc) {
	release := func() {}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		release = cancel
	}
	ctx, cancel := context.WithCancel(ctx)
	timeout := release
	release = func() {
		cancel()
		timeout()
	}

	return ctx, s.begin(cancel), release
}

func (s *Service) run(ctx context.Context, seq uint64) (Summary, error) {
	started := time.Now()
	summary, err := s.load(ctx)

	outcome := s.finish(seq, err)
	metrics.LoadDurationSeconds.WithLabelValues(string(outcome)).Observe(time.Since(started).Seconds())
	return summary, err
}

// Cancel stops the load in flight, if any
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Service) Close() {
	s.Cancel()
	s.tree.Close()
}

func (s *Service) begin(cancel context.CancelFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.logger.Info("Canceling previous holdings load")
		s.cancel()
	}
	s.cancel = cancel
	s.loadSeq++

	now := time.Now()
	s.status.State = LoadStateLoading
	s.status.Done = false
	s.status.Error = ""
	s.status.StartedAt = &now
	s.status.FinishedAt = nil
	return s.loadSeq
}

func (s *Service) finish(seq uint64, err error) LoadState {
	state := LoadStateDone
	switch {
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		state = LoadStateCanceled
	case err != nil:
		state = LoadStateFailed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// a newer load owns the status
	if seq != s.loadSeq {
		return state
	}
	now := time.Now()
	s.status.State = state
	s.status.Done = state == LoadStateDone
	s.status.FinishedAt = &now
	if err != nil {
		s.status.Error = err.Error()
	}
	s.cancel = nil
	return state
}

func (s *Service) load(ctx context.Context) (Summary, error) {
	logger := s.logger.With("operation", "load")
	logger.Info("Loading holdings")

	var summary Summary
	client := s.currentClient()

	prices, err := client.MarketPrices(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		logger.Warn("Market prices unavailable, values stay unknown", "error", err)
	} else {
		summary.Prices = len(prices)
		s.registry.SetPrices(prices)
	}

	items, err := client.Items(ctx, s.characterID)
	if err != nil {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		return summary, errors.WrapExternal("failed to fetch character items", err)
	}
	summary.Items = len(items)
	s.tree.Sync(items)

	orders, err := client.SellOrders(ctx, s.characterID)
	if err != nil {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		logger.Warn("Sell orders unavailable", "error", err)
	} else {
		summary.Orders = len(orders)
		s.tree.SyncOrders(orders)
	}

	report, err := s.registry.ResolveAll(ctx, s.tree.PendingRefs())
	if err != nil {
		return summary, err
	}

	// Linking adds solar system placeholders that need their own names
	summary.Linked = s.tree.LinkLocations()
	if summary.Linked > 0 {
		more, err := s.registry.ResolveAll(ctx, s.tree.PendingRefs())
		if err != nil {
			return summary, err
		}
		report.Requested += more.Requested
		report.Failed += more.Failed
		report.Pending = more.Pending
	}
	summary.Metadata = report

	logger.Info("Holdings loaded",
		"items", summary.Items,
		"orders", summary.Orders,
		"prices", summary.Prices,
		"linked", summary.Linked,
		"metadata_requested", report.Requested,
		"metadata_failed", report.Failed,
		"metadata_pending", report.Pending,
		"nodes", s.tree.Len())

	return summary, nil
}
