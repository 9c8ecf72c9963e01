package sde

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"holdings-server/internal/catalog"
	"holdings-server/internal/shared/database"
)

// Store answers reference lookups from a copy of the static data export
type Store struct {
	db     *database.DB
	logger *slog.Logger
}

func NewStore(db *database.DB, logger *slog.Logger) *Store {
	logger.Debug("Initializing static data store", "driver", db.Driver)

	return &Store{
		db:     db,
		logger: logger,
	}
}

func (s *Store) TypeInfo(ctx context.Context, typeID int64) (*catalog.TypeInfo, error) {
	logger := s.logger.With("component", "sde_store", "operation", "type_info", "type_id", typeID)

	query := `
		SELECT t."typeID", t."typeName", t."groupID", g."categoryID", t."volume", t."packagedVolume", t."iconID"
		FROM "invTypes" t
		JOIN "invGroups" g ON g."groupID" = t."groupID"
		WHERE t."typeID" = ` + s.db.Placeholder(1)

	var (
		info     catalog.TypeInfo
		volume   sql.NullFloat64
		packaged sql.NullFloat64
		iconID   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query, typeID).Scan(
		&info.TypeID,
		&info.Name,
		&info.GroupID,
		&info.CategoryID,
		&volume,
		&packaged,
		&iconID,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("type %d: %w", typeID, catalog.ErrNotFound)
	}
	if err != nil {
		logger.Error("Failed to read type", "error", err)
		return nil, fmt.Errorf("failed to read type %d: %w", typeID, err)
	}

	info.Volume = volume.Float64
	if packaged.Valid {
		p := packaged.Float64
		info.PackagedVolume = &p
	}
	info.IconID = iconID.Int64
	return &info, nil
}

func (s *Store) LocationInfo(ctx context.Context, id int64, kind catalog.LocationKind) (*catalog.LocationInfo, error) {
	switch kind {
	case catalog.KindStation:
		return s.station(ctx, id)
	case catalog.KindSystem:
		return s.system(ctx, id)
	default:
		// Structures are player owned and never part of the export
		return nil, fmt.Errorf("%s %d: %w", kind, id, catalog.ErrNotFound)
	}
}

func (s *Store) station(ctx context.Context, id int64) (*catalog.LocationInfo, error) {
	query := `
		SELECT "stationName", "solarSystemID", "stationTypeID"
		FROM "staStations"
		WHERE "stationID" = ` + s.db.Placeholder(1)

	info := catalog.LocationInfo{ID: id, Kind: catalog.KindStation}
	var typeID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(&info.Name, &info.SystemID, &typeID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("station %d: %w", id, catalog.ErrNotFound)
	}
	if err != nil {
		s.logger.Error("Failed to read station", "component", "sde_store", "station_id", id, "error", err)
		return nil, fmt.Errorf("failed to read station %d: %w", id, err)
	}
	info.TypeID = typeID.Int64
	return &info, nil
}

func (s *Store) system(ctx context.Context, id int64) (*catalog.LocationInfo, error) {
	query := `
		SELECT "solarSystemName"
		FROM "mapSolarSystems"
		WHERE "solarSystemID" = ` + s.db.Placeholder(1)

	info := catalog.LocationInfo{ID: id, Kind: catalog.KindSystem}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&info.Name)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("system %d: %w", id, catalog.ErrNotFound)
	}
	if err != nil {
		s.logger.Error("Failed to read solar system", "component", "sde_store", "system_id", id, "error", err)
		return nil, fmt.Errorf("failed to read system %d: %w", id, err)
	}
	return &info, nil
}

var _ catalog.Source = (*Store)(nil)
