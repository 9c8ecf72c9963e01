package metadata

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"holdings-server/internal/catalog"
	"holdings-server/internal/catalog/mocks"
	"holdings-server/internal/shared/errors"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func floatPtr(f float64) *float64 { return &f }

func TestGetOrCreateSharesPointer(t *testing.T) {
	r := NewRegistry(nil, DefaultPolicy(), 0, testLogger())

	a := r.GetOrCreate(Ref{KindType, 34})
	b := r.GetOrCreate(Ref{KindType, 34})

	assert.Same(t, a, b)
	assert.True(t, a.Pending())
	assert.Equal(t, "Type 34", a.Fields().Name)
	assert.Equal(t, 1, r.Len())
}

func TestResolveUpdatesInPlace(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().TypeInfo(gomock.Any(), int64(587)).Return(&catalog.TypeInfo{
		TypeID:         587,
		Name:           "Rifter",
		GroupID:        25,
		CategoryID:     CategoryShip,
		Volume:         27289,
		PackagedVolume: floatPtr(2500),
	}, nil)

	r := NewRegistry(client, DefaultPolicy(), 0, testLogger())
	info := r.GetOrCreate(Ref{KindType, 587})

	require.NoError(t, r.Resolve(context.Background(), Ref{KindType, 587}))

	f := info.Fields()
	assert.Equal(t, StateReady, f.State)
	assert.Equal(t, "Rifter", f.Name)
	require.NotNil(t, f.PackagedVolume)
	assert.Equal(t, 2500.0, *f.PackagedVolume)
	require.NotNil(t, f.AssembledVolume)
	assert.Equal(t, 27289.0, *f.AssembledVolume)
	assert.True(t, f.DoNotUnpack)

	// Resolved infos are not fetched again
	require.NoError(t, r.Resolve(context.Background(), Ref{KindType, 587}))
}

func TestResolveDeduplicatesConcurrentCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	started := make(chan struct{})
	release := make(chan struct{})

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().TypeInfo(gomock.Any(), int64(34)).DoAndReturn(func(ctx context.Context, typeID int64) (*catalog.TypeInfo, error) {
		close(started)
		<-release
		return &catalog.TypeInfo{TypeID: 34, Name: "Tritanium", Volume: 0.01}, nil
	}).Times(1)

	r := NewRegistry(client, DefaultPolicy(), 0, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Resolve(context.Background(), Ref{KindType, 34}))
		}()
	}

	<-started
	close(release)
	wg.Wait()

	info, ok := r.Lookup(Ref{KindType, 34})
	require.True(t, ok)
	assert.Equal(t, "Tritanium", info.Fields().Name)
}

func TestResolveSurvivesCancellationOfFirstCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	started := make(chan struct{})
	release := make(chan struct{})

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().TypeInfo(gomock.Any(), int64(34)).DoAndReturn(func(ctx context.Context, typeID int64) (*catalog.TypeInfo, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &catalog.TypeInfo{TypeID: 34, Name: "Tritanium", Volume: 0.01}, nil
	}).Times(1)

	r := NewRegistry(client, DefaultPolicy(), 0, testLogger())
	ref := Ref{KindType, 34}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- r.Resolve(ctx, ref) }()
	<-started

	second := make(chan error, 1)
	go func() { second <- r.Resolve(context.Background(), ref) }()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	require.NoError(t, <-second)
	assert.Equal(t, "Tritanium", r.GetOrCreate(ref).Fields().Name)
	assert.False(t, r.GetOrCreate(ref).Pending())
}

func TestSetSourceIsUsedForLaterFetches(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	old := mocks.NewMockClient(ctrl)
	fresh := mocks.NewMockClient(ctrl)
	fresh.EXPECT().LocationInfo(gomock.Any(), int64(1_035_466_617_946), catalog.KindStructure).Return(&catalog.LocationInfo{
		ID:       1_035_466_617_946,
		Kind:     catalog.KindStructure,
		Name:     "Perimeter - Tranquility Trading Tower",
		SystemID: 30000144,
	}, nil)

	r := NewRegistry(old, DefaultPolicy(), 0, testLogger())
	r.SetSource(fresh)

	ref := Ref{KindStructure, 1_035_466_617_946}
	require.NoError(t, r.Resolve(context.Background(), ref))
	assert.Equal(t, int64(30000144), r.GetOrCreate(ref).Fields().SystemID)
}

func TestResolveAllReportsOnlyRequestedRefs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().TypeInfo(gomock.Any(), int64(34)).Return(&catalog.TypeInfo{TypeID: 34, Name: "Tritanium", Volume: 0.01}, nil)

	r := NewRegistry(client, DefaultPolicy(), 0, testLogger())
	r.GetOrCreate(Ref{KindStructure, 1_000_000_000_777})

	report, err := r.ResolveAll(context.Background(), []Ref{{KindType, 34}})
	require.NoError(t, err)
	assert.Equal(t, Report{Requested: 1}, report)
}

func TestResolveForbiddenStructureIsTerminal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().
		LocationInfo(gomock.Any(), int64(1_035_466_617_946), catalog.KindStructure).
		Return(nil, errors.WrapForbidden("structure not accessible", catalog.ErrForbidden)).
		Times(1)

	r := NewRegistry(client, DefaultPolicy(), 0, testLogger())
	ref := Ref{KindStructure, 1_035_466_617_946}

	require.NoError(t, r.Resolve(context.Background(), ref))
	require.NoError(t, r.Resolve(context.Background(), ref))

	f := r.GetOrCreate(ref).Fields()
	assert.Equal(t, StateForbidden, f.State)
	assert.Equal(t, ForbiddenName, f.Name)
	assert.Nil(t, f.PackagedVolume)
	assert.Empty(t, r.PendingRefs())
}

func TestResolveTransientFailureStaysPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	boom := stderrors.New("connection reset")
	client := mocks.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().LocationInfo(gomock.Any(), int64(60003760), catalog.KindStation).Return(nil, boom),
		client.EXPECT().LocationInfo(gomock.Any(), int64(60003760), catalog.KindStation).Return(&catalog.LocationInfo{
			ID:       60003760,
			Kind:     catalog.KindStation,
			Name:     "Jita IV - Moon 4 - Caldari Navy Assembly Plant",
			SystemID: 30000142,
		}, nil),
	)

	r := NewRegistry(client, DefaultPolicy(), 0, testLogger())
	ref := Ref{KindStation, 60003760}

	err := r.Resolve(context.Background(), ref)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeExternal, errors.GetType(err))

	info := r.GetOrCreate(ref)
	assert.True(t, info.Pending())
	assert.ErrorIs(t, info.Err(), boom)
	assert.Equal(t, "Location 60003760", info.Fields().Name)

	require.NoError(t, r.Resolve(context.Background(), ref))
	assert.False(t, info.Pending())
	assert.NoError(t, info.Err())
	assert.Equal(t, int64(30000142), info.Fields().SystemID)
}

func TestResolveSkipsUnfetchableKinds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := NewRegistry(mocks.NewMockClient(ctrl), DefaultPolicy(), 0, testLogger())

	require.NoError(t, r.Resolve(context.Background(), Ref{KindUnknown, 42}))
	assert.True(t, r.GetOrCreate(Ref{KindUnknown, 42}).Pending())

	orders := r.GetOrCreate(Ref{KindOrders, 60003760})
	assert.False(t, orders.Pending())
	assert.Equal(t, "Sell orders", orders.Fields().Name)
}

func TestResolveAllContinuesPastFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().TypeInfo(gomock.Any(), int64(34)).Return(&catalog.TypeInfo{TypeID: 34, Name: "Tritanium", Volume: 0.01}, nil)
	client.EXPECT().TypeInfo(gomock.Any(), int64(35)).Return(nil, stderrors.New("timeout"))
	client.EXPECT().TypeInfo(gomock.Any(), int64(36)).Return(&catalog.TypeInfo{TypeID: 36, Name: "Mexallon", Volume: 0.01}, nil)

	r := NewRegistry(client, DefaultPolicy(), 2, testLogger())

	report, err := r.ResolveAll(context.Background(), []Ref{{KindType, 34}, {KindType, 35}, {KindType, 36}})
	require.NoError(t, err)
	assert.Equal(t, Report{Requested: 3, Failed: 1, Pending: 1}, report)
	assert.Equal(t, []Ref{{KindType, 35}}, r.PendingRefs())
}

func TestSetPricesFansOut(t *testing.T) {
	r := NewRegistry(nil, DefaultPolicy(), 0, testLogger())
	existing := r.GetOrCreate(Ref{KindType, 34})

	var notified []*Info
	unsubscribe := r.Subscribe(func(info *Info) { notified = append(notified, info) })

	r.SetPrices(map[int64]float64{34: 5.5, 35: 11})

	require.NotNil(t, existing.Fields().Price)
	assert.Equal(t, 5.5, *existing.Fields().Price)
	assert.Equal(t, []*Info{existing}, notified)

	// Same prices again change nothing
	r.SetPrices(map[int64]float64{34: 5.5, 35: 11})
	assert.Len(t, notified, 1)

	later := r.GetOrCreate(Ref{KindType, 35})
	require.NotNil(t, later.Fields().Price)
	assert.Equal(t, 11.0, *later.Fields().Price)

	unsubscribe()
	r.SetPrices(map[int64]float64{34: 6})
	assert.Len(t, notified, 1)
	assert.Nil(t, later.Fields().Price)
}

func TestApplyPolicyReevaluatesTypes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().TypeInfo(gomock.Any(), int64(3467)).Return(&catalog.TypeInfo{
		TypeID:     3467,
		Name:       "Small Secure Container",
		GroupID:    448,
		CategoryID: 2,
		Volume:     100,
	}, nil)

	r := NewRegistry(client, DefaultPolicy(), 0, testLogger())
	ref := Ref{KindType, 3467}
	require.NoError(t, r.Resolve(context.Background(), ref))

	info := r.GetOrCreate(ref)
	assert.False(t, info.Fields().DoNotUnpack)
	assert.Nil(t, info.Fields().AssembledVolume)

	changed := 0
	r.Subscribe(func(*Info) { changed++ })

	r.ApplyPolicy(NewPolicy(nil, []int64{448}))
	assert.True(t, info.Fields().DoNotUnpack)
	assert.Equal(t, 1, changed)

	r.ApplyPolicy(NewPolicy(nil, []int64{448}))
	assert.Equal(t, 1, changed)
}

func TestKindForLocation(t *testing.T) {
	assert.Equal(t, KindSystem, KindForLocation(30000142))
	assert.Equal(t, KindStation, KindForLocation(60003760))
	assert.Equal(t, KindStructure, KindForLocation(1_035_466_617_946))
	assert.Equal(t, KindUnknown, KindForLocation(12345))
}
