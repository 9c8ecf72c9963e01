package catalog

import (
	"context"
	"log/slog"
)

// Layered answers reference lookups from a static source first and falls
// back to the live client for anything the static data does not cover.
type Layered struct {
	static Source
	live   Client
	logger *slog.Logger
}

func NewLayered(static Source, live Client, logger *slog.Logger) *Layered {
	logger.Debug("Initializing layered catalog", "static", static != nil)

	return &Layered{
		static: static,
		live:   live,
		logger: logger,
	}
}

func (l *Layered) TypeInfo(ctx context.Context, typeID int64) (*TypeInfo, error) {
	if l.static != nil {
		info, err := l.static.TypeInfo(ctx, typeID)
		if err == nil {
			return info, nil
		}
		if !IsNotFound(err) {
			l.logger.Warn("Static type lookup failed, using live catalog", "type_id", typeID, "error", err)
		}
	}
	return l.live.TypeInfo(ctx, typeID)
}

func (l *Layered) LocationInfo(ctx context.Context, id int64, kind LocationKind) (*LocationInfo, error) {
	if l.static != nil && kind != KindStructure {
		info, err := l.static.LocationInfo(ctx, id, kind)
		if err == nil {
			return info, nil
		}
		if !IsNotFound(err) {
			l.logger.Warn("Static location lookup failed, using live catalog", "location_id", id, "kind", kind, "error", err)
		}
	}
	return l.live.LocationInfo(ctx, id, kind)
}

func (l *Layered) Items(ctx context.Context, subjectID int64) ([]RawItem, error) {
	return l.live.Items(ctx, subjectID)
}

func (l *Layered) SellOrders(ctx context.Context, subjectID int64) ([]RawOrder, error) {
	return l.live.SellOrders(ctx, subjectID)
}

func (l *Layered) MarketPrices(ctx context.Context) (map[int64]float64, error) {
	return l.live.MarketPrices(ctx)
}
