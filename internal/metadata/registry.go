package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"holdings-server/internal/catalog"
	"holdings-server/internal/metrics"
	"holdings-server/internal/shared/errors"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// fetchTimeout bounds one shared catalog fetch. The fetch outlives the
// caller that started it so that callers joining it are not failed by a
// cancellation that is not theirs.
const fetchTimeout = 2 * time.Minute

// Registry owns every Info of a session. Infos are created on first use,
// never removed, and mutated in place when their reference resolves.
type Registry struct {
	source        catalog.Source
	maxConcurrent int
	logger        *slog.Logger

	mu     sync.Mutex
	infos  map[Ref]*Info
	prices map[int64]float64
	policy Policy

	inflight singleflight.Group

	listenersMu  sync.Mutex
	listeners    map[int]func(*Info)
	nextListener int
}

// Report summarizes a batch resolution
type Report struct {
	Requested int `json:"requested"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// NewRegistry creates an empty registry. maxConcurrent bounds parallel
// fetches in ResolveAll; zero means unlimited.
func NewRegistry(source catalog.Source, policy Policy, maxConcurrent int, logger *slog.Logger) *Registry {
	logger.Debug("Initializing metadata registry", "max_concurrent", maxConcurrent)

	return &Registry{
		source:        source,
		maxConcurrent: maxConcurrent,
		logger:        logger,
		infos:         make(map[Ref]*Info),
		prices:        make(map[int64]float64),
		policy:        policy,
		listeners:     make(map[int]func(*Info)),
	}
}

// GetOrCreate returns the shared Info for ref, inserting a pending one if
// the registry has not seen ref yet
func (r *Registry) GetOrCreate(ref Ref) *Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.infos[ref]; ok {
		return info
	}

	info := newInfo(ref)
	switch ref.Kind {
	case KindType:
		price, ok := r.prices[ref.ID]
		info.setPrice(price, ok)
	case KindOrders:
		info.setStatic(placeholderName(ref))
	}
	r.infos[ref] = info
	return info
}

// SetSource replaces the catalog the registry fetches from, for example
// when the character logs in again with a fresh token
func (r *Registry) SetSource(source catalog.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = source
}

func (r *Registry) currentSource() catalog.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

// Lookup returns the Info for ref without creating it
func (r *Registry) Lookup(ref Ref) (*Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.infos[ref]
	return info, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.infos)
}

// Resolve fetches ref from the catalog unless it already resolved. Concurrent
// callers for the same ref share one fetch. A structure the caller may not
// read becomes a terminal Forbidden info and Resolve returns nil. Any other
// failure leaves the info pending and is returned. A caller whose ctx ends
// stops waiting; the shared fetch carries on for the others.
func (r *Registry) Resolve(ctx context.Context, ref Ref) error {
	info := r.GetOrCreate(ref)
	if !ref.Kind.Fetchable() || !info.Pending() {
		return nil
	}

	done := r.inflight.DoChan(ref.String(), func() (interface{}, error) {
		// A fetch that finished between the check above and DoChan is not repeated
		if !info.Pending() {
			return nil, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return nil, r.fetch(fetchCtx, info)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-done:
		if res.Shared {
			metrics.MetadataDeduplicatedTotal.Inc()
		}
		return res.Err
	}
}

func (r *Registry) fetch(ctx context.Context, info *Info) error {
	ref := info.Ref()
	logger := r.logger.With("component", "metadata_registry", "operation", "resolve", "ref", ref.String())

	source := r.currentSource()

	var err error
	switch ref.Kind {
	case KindType:
		var t *catalog.TypeInfo
		if t, err = source.TypeInfo(ctx, ref.ID); err == nil {
			info.applyType(t, r.currentPolicy())
		}
	default:
		var l *catalog.LocationInfo
		if l, err = source.LocationInfo(ctx, ref.ID, catalog.LocationKind(ref.Kind)); err == nil {
			info.applyLocation(l)
		}
	}

	switch {
	case err == nil:
		metrics.MetadataFetchesTotal.WithLabelValues(string(ref.Kind), "ready").Inc()
		logger.Debug("Metadata resolved")
	case ref.Kind == KindStructure && catalog.IsForbidden(err):
		info.setForbidden()
		metrics.MetadataFetchesTotal.WithLabelValues(string(ref.Kind), "forbidden").Inc()
		logger.Info("Structure is not accessible, marking forbidden")
	default:
		info.setErr(err)
		metrics.MetadataFetchesTotal.WithLabelValues(string(ref.Kind), "failed").Inc()
		logger.Warn("Failed to resolve metadata", "error", err)
		return errors.WrapExternal(fmt.Sprintf("failed to resolve %s", ref), err)
	}

	r.notify(info)
	return nil
}

// ResolveAll resolves refs in parallel. A failing ref never stops the
// others; the returned error is only set when ctx was cancelled. The report
// counts pending refs among those requested.
func (r *Registry) ResolveAll(ctx context.Context, refs []Ref) (Report, error) {
	logger := r.logger.With("component", "metadata_registry", "operation", "resolve_all")

	var g errgroup.Group
	if r.maxConcurrent > 0 {
		g.SetLimit(r.maxConcurrent)
	}

	var failed atomic.Int64
	for _, ref := range refs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := r.Resolve(ctx, ref); err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	pending := 0
	for _, ref := range refs {
		if info, ok := r.Lookup(ref); ok && ref.Kind.Fetchable() && info.Pending() {
			pending++
		}
	}

	report := Report{
		Requested: len(refs),
		Failed:    int(failed.Load()),
		Pending:   pending,
	}
	logger.Info("Metadata batch resolved", "requested", report.Requested, "failed", report.Failed, "pending", report.Pending)

	return report, ctx.Err()
}

// ResolvePending retries every info that still carries its loader token
func (r *Registry) ResolvePending(ctx context.Context) (Report, error) {
	return r.ResolveAll(ctx, r.PendingRefs())
}

// PendingRefs lists the fetchable refs that have not resolved yet
func (r *Registry) PendingRefs() []Ref {
	r.mu.Lock()
	infos := make([]*Info, 0, len(r.infos))
	for _, info := range r.infos {
		infos = append(infos, info)
	}
	r.mu.Unlock()

	var refs []Ref
	for _, info := range infos {
		if info.ref.Kind.Fetchable() && info.Pending() {
			refs = append(refs, info.ref)
		}
	}
	return refs
}

// SetPrices replaces the market price table. Every existing type info is
// updated in place and future ones pick their price up on creation.
func (r *Registry) SetPrices(prices map[int64]float64) {
	table := make(map[int64]float64, len(prices))
	for typeID, price := range prices {
		table[typeID] = price
	}

	r.mu.Lock()
	r.prices = table
	types := make([]*Info, 0, len(r.infos))
	for ref, info := range r.infos {
		if ref.Kind == KindType {
			types = append(types, info)
		}
	}
	r.mu.Unlock()

	changed := 0
	for _, info := range types {
		price, ok := table[info.ref.ID]
		if info.setPrice(price, ok) {
			changed++
			r.notify(info)
		}
	}

	r.logger.Info("Market prices applied", "component", "metadata_registry", "prices", len(table), "changed", changed)
}

// ApplyPolicy re-evaluates the do-not-unpack flag of every resolved type
func (r *Registry) ApplyPolicy(policy Policy) {
	r.mu.Lock()
	r.policy = policy
	types := make([]*Info, 0, len(r.infos))
	for ref, info := range r.infos {
		if ref.Kind == KindType {
			types = append(types, info)
		}
	}
	r.mu.Unlock()

	changed := 0
	for _, info := range types {
		if info.setDoNotUnpack(policy) {
			changed++
			r.notify(info)
		}
	}

	r.logger.Info("Unpack policy applied", "component", "metadata_registry", "changed", changed)
}

// Subscribe registers fn to be called after any in-place change of an info.
// The returned function removes the listener.
func (r *Registry) Subscribe(fn func(*Info)) func() {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()

	id := r.nextListener
	r.nextListener++
	r.listeners[id] = fn

	return func() {
		r.listenersMu.Lock()
		defer r.listenersMu.Unlock()
		delete(r.listeners, id)
	}
}

func (r *Registry) notify(info *Info) {
	r.listenersMu.Lock()
	listeners := make([]func(*Info), 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(info)
	}
}

func (r *Registry) currentPolicy() Policy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.policy
}

