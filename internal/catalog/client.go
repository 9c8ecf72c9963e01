package catalog

import (
	"context"
	stderrors "errors"

	"holdings-server/internal/shared/errors"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks holdings-server/internal/catalog Client

var (
	// ErrForbidden is returned when the caller may not read a reference, typically a structure
	ErrForbidden = stderrors.New("access forbidden")
	// ErrNotFound is returned by static sources that do not know an id
	ErrNotFound = stderrors.New("not found")
)

// Source is the reference-data half of the catalog
type Source interface {
	TypeInfo(ctx context.Context, typeID int64) (*TypeInfo, error)
	LocationInfo(ctx context.Context, id int64, kind LocationKind) (*LocationInfo, error)
}

// Client is everything the holdings core needs from the remote service
type Client interface {
	Source
	Items(ctx context.Context, subjectID int64) ([]RawItem, error)
	SellOrders(ctx context.Context, subjectID int64) ([]RawOrder, error)
	MarketPrices(ctx context.Context) (map[int64]float64, error)
}

// IsForbidden reports whether err means access was denied
func IsForbidden(err error) bool {
	return stderrors.Is(err, ErrForbidden) || errors.Is(err, errors.ErrorTypeForbidden)
}

// IsNotFound reports whether err means the id is unknown to the source
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound) || errors.Is(err, errors.ErrorTypeNotFound)
}
