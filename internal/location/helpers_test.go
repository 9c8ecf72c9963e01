package location

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"holdings-server/internal/catalog"
	"holdings-server/internal/metadata"

	"github.com/stretchr/testify/require"
)

const (
	typeTritanium = 34
	typeRifter    = 587
	typeContainer = 3467

	stationJita = 60003760
	systemJita  = 30000142
)

type stubSource struct {
	mu        sync.Mutex
	types     map[int64]*catalog.TypeInfo
	locations map[int64]*catalog.LocationInfo
	forbidden map[int64]bool
}

func (s *stubSource) TypeInfo(ctx context.Context, typeID int64) (*catalog.TypeInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.types[typeID]; ok {
		return t, nil
	}
	return nil, catalog.ErrNotFound
}

func (s *stubSource) LocationInfo(ctx context.Context, id int64, kind catalog.LocationKind) (*catalog.LocationInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forbidden[id] {
		return nil, catalog.ErrForbidden
	}
	if l, ok := s.locations[id]; ok {
		return l, nil
	}
	return nil, catalog.ErrNotFound
}

func floatPtr(f float64) *float64 { return &f }

func newStubSource() *stubSource {
	return &stubSource{
		types: map[int64]*catalog.TypeInfo{
			typeTritanium: {TypeID: typeTritanium, Name: "Tritanium", GroupID: 18, CategoryID: 4, Volume: 0.01},
			typeContainer: {TypeID: typeContainer, Name: "Small Secure Container", GroupID: 340, CategoryID: 2, Volume: 100},
			typeRifter: {
				TypeID: typeRifter, Name: "Rifter", GroupID: 25, CategoryID: metadata.CategoryShip,
				Volume: 27289, PackagedVolume: floatPtr(2500),
			},
		},
		locations: map[int64]*catalog.LocationInfo{
			stationJita: {ID: stationJita, Kind: catalog.KindStation, Name: "Jita IV - Moon 4", SystemID: systemJita},
			systemJita:  {ID: systemJita, Kind: catalog.KindSystem, Name: "Jita"},
		},
		forbidden: map[int64]bool{},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTree(t *testing.T, src *stubSource) (*Tree, *metadata.Registry) {
	t.Helper()

	reg := metadata.NewRegistry(src, metadata.DefaultPolicy(), 0, testLogger())
	reg.SetPrices(map[int64]float64{
		typeTritanium: 5,
		typeContainer: 1000,
		typeRifter:    500000,
	})
	tree := NewTree(reg, testLogger())
	t.Cleanup(tree.Close)
	return tree, reg
}

func resolve(t *testing.T, reg *metadata.Registry) {
	t.Helper()
	_, err := reg.ResolvePending(context.Background())
	require.NoError(t, err)
}

func known(t *testing.T, a Amount) float64 {
	t.Helper()
	v, ok := a.Float()
	require.True(t, ok, "amount is unknown")
	return v
}

func item(id, typeID, location int64, flag string, qty int64) catalog.RawItem {
	return catalog.RawItem{ItemID: id, TypeID: typeID, LocationID: location, LocationFlag: flag, Quantity: qty}
}

func byItemID(nodes []*Node, id int64) *Node {
	for _, n := range nodes {
		if n.itemID == id {
			return n
		}
	}
	return nil
}
