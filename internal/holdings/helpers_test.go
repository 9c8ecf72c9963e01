package holdings

import (
	"context"
	"io"
	"log/slog"

	"holdings-server/internal/catalog"
	"holdings-server/internal/catalog/mocks"
	"holdings-server/internal/metadata"

	"github.com/golang/mock/gomock"
)

const (
	characterID   = 90000001
	typeTritanium = 34
	typeContainer = 3467
	stationJita   = 60003760
	systemJita    = 30000142
	containerID   = 1000000000001
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testItems() []catalog.RawItem {
	return []catalog.RawItem{
		{ItemID: containerID, TypeID: typeContainer, LocationID: stationJita, LocationFlag: "Hangar", Quantity: 1, IsSingleton: true, Name: "Minerals"},
		{ItemID: 1000000000002, TypeID: typeTritanium, LocationID: containerID, LocationFlag: "Unlocked", Quantity: 100},
	}
}

func testOrders() []catalog.RawOrder {
	return []catalog.RawOrder{
		{OrderID: 5000, TypeID: typeTritanium, LocationID: stationJita, Price: 6, VolumeRemain: 10, VolumeTotal: 10},
		{OrderID: 5001, TypeID: typeTritanium, LocationID: stationJita, Price: 4, VolumeRemain: 50, VolumeTotal: 50, IsBuyOrder: true},
	}
}

// expectMetadata serves static type and location answers for any number of calls
func expectMetadata(client *mocks.MockClient) {
	types := map[int64]*catalog.TypeInfo{
		typeTritanium: {TypeID: typeTritanium, Name: "Tritanium", GroupID: 18, CategoryID: 4, Volume: 0.01},
		typeContainer: {TypeID: typeContainer, Name: "Small Secure Container", GroupID: 340, CategoryID: 2, Volume: 100},
	}
	locations := map[int64]*catalog.LocationInfo{
		stationJita: {ID: stationJita, Kind: catalog.KindStation, Name: "Jita IV - Moon 4", SystemID: systemJita},
		systemJita:  {ID: systemJita, Kind: catalog.KindSystem, Name: "Jita"},
	}

	client.EXPECT().TypeInfo(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, id int64) (*catalog.TypeInfo, error) {
			if t, ok := types[id]; ok {
				return t, nil
			}
			return nil, catalog.ErrNotFound
		}).AnyTimes()
	client.EXPECT().LocationInfo(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, id int64, _ catalog.LocationKind) (*catalog.LocationInfo, error) {
			if l, ok := locations[id]; ok {
				return l, nil
			}
			return nil, catalog.ErrNotFound
		}).AnyTimes()
}

func newTestService(client catalog.Client) *Service {
	return NewService(characterID, client, metadata.DefaultPolicy(), 4, 0, testLogger())
}
