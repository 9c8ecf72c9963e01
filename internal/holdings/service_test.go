package holdings

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"holdings-server/internal/catalog"
	"holdings-server/internal/catalog/mocks"
	"holdings-server/internal/location"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(t *testing.T, a location.Amount) float64 {
	t.Helper()
	v, ok := a.Float()
	require.True(t, ok, "amount is unknown")
	return v
}

func TestLoadBuildsLinkedTree(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	expectMetadata(client)
	client.EXPECT().MarketPrices(gomock.Any()).Return(map[int64]float64{typeTritanium: 5, typeContainer: 1000}, nil)
	client.EXPECT().Items(gomock.Any(), int64(characterID)).Return(testItems(), nil)
	client.EXPECT().SellOrders(gomock.Any(), int64(characterID)).Return(testOrders(), nil)

	s := newTestService(client)
	defer s.Close()

	summary, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Items)
	assert.Equal(t, 2, summary.Orders)
	assert.Equal(t, 1, summary.Linked)
	assert.Zero(t, summary.Metadata.Pending)

	roots := s.Tree().Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "Jita", roots[0].Name)

	route, err := s.Tree().Route(location.KeyOf(containerID))
	require.NoError(t, err)
	names := make([]string, 0, len(route))
	for _, r := range route {
		names = append(names, r.FullName())
	}
	assert.Equal(t, []string{"Jita", "Jita IV - Moon 4", "Small Secure Container (Minerals)"}, names)

	// container 1000, tritanium 100*5, sell order 10*6
	station, err := s.Tree().Totals(location.KeyOf(stationJita))
	require.NoError(t, err)
	assert.InDelta(t, 1560, amount(t, station.Value()), 1e-9)

	status := s.Status()
	assert.Equal(t, LoadStateDone, status.State)
	assert.True(t, status.Done)
	assert.Equal(t, s.Tree().Len(), status.Nodes)
	assert.Empty(t, status.Error)
	assert.NotNil(t, status.FinishedAt)
}

func TestLoadWithoutPricesLeavesValuesUnknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	expectMetadata(client)
	client.EXPECT().MarketPrices(gomock.Any()).Return(nil, stderrors.New("esi down"))
	client.EXPECT().Items(gomock.Any(), gomock.Any()).Return(testItems(), nil)
	client.EXPECT().SellOrders(gomock.Any(), gomock.Any()).Return(nil, stderrors.New("esi down"))

	s := newTestService(client)
	defer s.Close()

	_, err := s.Load(context.Background())
	require.NoError(t, err)

	station, err := s.Tree().Totals(location.KeyOf(stationJita))
	require.NoError(t, err)
	assert.False(t, station.Value().IsKnown())
	assert.InDelta(t, 101, amount(t, station.PackagedVolume()), 1e-9)
}

func TestLoadFailsWhenItemsFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().MarketPrices(gomock.Any()).Return(map[int64]float64{}, nil)
	client.EXPECT().Items(gomock.Any(), gomock.Any()).Return(nil, catalog.ErrForbidden)

	s := newTestService(client)
	defer s.Close()

	_, err := s.Load(context.Background())
	require.Error(t, err)

	status := s.Status()
	assert.Equal(t, LoadStateFailed, status.State)
	assert.False(t, status.Done)
	assert.Contains(t, status.Error, "failed to fetch character items")
}

func TestLoadHonorsCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().MarketPrices(gomock.Any()).DoAndReturn(func(ctx context.Context) (map[int64]float64, error) {
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestService(client)
	defer s.Close()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	status := s.Status()
	assert.Equal(t, LoadStateCanceled, status.State)
	assert.False(t, status.Done)
}

func TestNewLoadCancelsPrevious(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	expectMetadata(client)

	started := make(chan struct{})
	firstDone := make(chan struct{})
	client.EXPECT().MarketPrices(gomock.Any()).Return(map[int64]float64{}, nil).Times(2)
	gomock.InOrder(
		client.EXPECT().Items(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ int64) ([]catalog.RawItem, error) {
			close(started)
			<-ctx.Done()
			close(firstDone)
			return nil, ctx.Err()
		}),
		client.EXPECT().Items(gomock.Any(), gomock.Any()).Return(testItems(), nil),
	)
	client.EXPECT().SellOrders(gomock.Any(), gomock.Any()).Return(nil, nil)

	s := newTestService(client)
	defer s.Close()

	s.Start(context.Background())
	<-started

	_, err := s.Load(context.Background())
	require.NoError(t, err)

	select {
	case <-firstDone:
	case <-time.After(5 * time.Second):
		t.Fatal("first load was not canceled")
	}

	// the superseded load must not overwrite the status of the newer one
	time.Sleep(50 * time.Millisecond)
	status := s.Status()
	assert.Equal(t, LoadStateDone, status.State)
	assert.True(t, status.Done)
}

func TestStartReportsLoadingImmediately(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	canceled := make(chan struct{})
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().MarketPrices(gomock.Any()).DoAndReturn(func(ctx context.Context) (map[int64]float64, error) {
		<-ctx.Done()
		close(canceled)
		return nil, ctx.Err()
	})

	s := newTestService(client)
	defer s.Close()

	s.Start(context.Background())
	assert.Equal(t, LoadStateLoading, s.Status().State)

	s.Cancel()
	select {
	case <-canceled:
	case <-time.After(5 * time.Second):
		t.Fatal("load was not canceled")
	}
	assert.Eventually(t, func() bool {
		return s.Status().State == LoadStateCanceled
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReloadDropsItemsNoLongerListed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sold := catalog.RawItem{ItemID: 1000000000003, TypeID: typeTritanium, LocationID: stationJita, LocationFlag: "Hangar", Quantity: 10}

	client := mocks.NewMockClient(ctrl)
	expectMetadata(client)
	client.EXPECT().MarketPrices(gomock.Any()).Return(map[int64]float64{typeTritanium: 5, typeContainer: 1000}, nil).Times(2)
	gomock.InOrder(
		client.EXPECT().Items(gomock.Any(), int64(characterID)).Return(append(testItems(), sold), nil),
		client.EXPECT().Items(gomock.Any(), int64(characterID)).Return(testItems(), nil),
	)
	gomock.InOrder(
		client.EXPECT().SellOrders(gomock.Any(), int64(characterID)).Return(testOrders(), nil),
		client.EXPECT().SellOrders(gomock.Any(), int64(characterID)).Return(nil, nil),
	)

	s := newTestService(client)
	defer s.Close()

	_, err := s.Load(context.Background())
	require.NoError(t, err)

	station, err := s.Tree().Totals(location.KeyOf(stationJita))
	require.NoError(t, err)
	assert.InDelta(t, 1610, amount(t, station.Value()), 1e-9)
	records, err := s.Tree().Records(location.KeyOf(stationJita))
	require.NoError(t, err)
	assert.Len(t, records, 3)

	_, err = s.Load(context.Background())
	require.NoError(t, err)

	station, err = s.Tree().Totals(location.KeyOf(stationJita))
	require.NoError(t, err)
	assert.InDelta(t, 1500, amount(t, station.Value()), 1e-9)
	records, err = s.Tree().Records(location.KeyOf(stationJita))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Small Secure Container (Minerals)", records[0].FullName())

	_, err = s.Tree().Node(location.OrdersKey(stationJita))
	assert.Error(t, err)
}

func TestContainerArrivingLaterIsNotFetchedAsLocation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	lookups := 0
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().LocationInfo(gomock.Any(), int64(containerID), gomock.Any()).DoAndReturn(
		func(context.Context, int64, catalog.LocationKind) (*catalog.LocationInfo, error) {
			lookups++
			return nil, catalog.ErrNotFound
		}).AnyTimes()
	expectMetadata(client)
	client.EXPECT().MarketPrices(gomock.Any()).Return(map[int64]float64{}, nil).Times(2)
	client.EXPECT().SellOrders(gomock.Any(), int64(characterID)).Return(nil, nil).Times(2)

	items := testItems()
	gomock.InOrder(
		client.EXPECT().Items(gomock.Any(), int64(characterID)).Return(items[1:], nil),
		client.EXPECT().Items(gomock.Any(), int64(characterID)).Return(items, nil),
	)

	s := newTestService(client)
	defer s.Close()

	summary, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Metadata.Pending)
	assert.Equal(t, 1, s.Status().Pending)
	assert.Equal(t, 1, lookups)

	summary, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Metadata.Pending)
	assert.Equal(t, 0, s.Status().Pending)
	assert.Equal(t, 1, lookups)

	route, err := s.Tree().Route(location.KeyOf(containerID))
	require.NoError(t, err)
	require.Len(t, route, 3)
	assert.Equal(t, "Jita", route[0].Name)
}
