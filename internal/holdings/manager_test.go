package holdings

import (
	"context"
	"testing"
	"time"

	"holdings-server/internal/catalog"
	"holdings-server/internal/catalog/mocks"
	"holdings-server/internal/location"
	"holdings-server/internal/metadata"
	"holdings-server/internal/shared/config"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestManagerKeepsOneServicePerCharacter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	built := 0
	factory := func(oauth2.TokenSource) catalog.Client {
		built++
		return mocks.NewMockClient(ctrl)
	}

	m := NewManager(context.Background(), factory, metadata.DefaultPolicy(), config.HoldingsConfig{MaxConcurrent: 2}, testLogger())
	defer m.Close()

	_, ok := m.Lookup(1)
	assert.False(t, ok)

	a := m.Service(1, nil)
	b := m.Service(1, nil)
	c := m.Service(2, nil)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, built)

	found, ok := m.Lookup(1)
	require.True(t, ok)
	assert.Same(t, a, found)
}

func TestManagerAppliesPolicyToEveryCharacter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	expectMetadata(client)
	client.EXPECT().MarketPrices(gomock.Any()).Return(map[int64]float64{}, nil)
	client.EXPECT().Items(gomock.Any(), gomock.Any()).Return(testItems(), nil)
	client.EXPECT().SellOrders(gomock.Any(), gomock.Any()).Return(nil, nil)

	factory := func(oauth2.TokenSource) catalog.Client { return client }
	m := NewManager(context.Background(), factory, metadata.DefaultPolicy(), config.HoldingsConfig{}, testLogger())
	defer m.Close()

	s := m.Service(characterID, nil)
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	station, err := s.Tree().Totals(location.KeyOf(stationJita))
	require.NoError(t, err)
	assert.InDelta(t, 101, amount(t, station.AssembledVolume()), 1e-9)

	// keeping secure containers (group 340) assembled hides their content
	m.ApplyPolicy(metadata.NewPolicy([]int64{metadata.CategoryShip}, []int64{340}))

	station, err = s.Tree().Totals(location.KeyOf(stationJita))
	require.NoError(t, err)
	assert.InDelta(t, 100, amount(t, station.AssembledVolume()), 1e-9)
	assert.InDelta(t, 101, amount(t, station.PackagedVolume()), 1e-9)
}

func TestManagerStartUsesLatestTokens(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	old := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "old"})
	fresh := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "fresh"})

	stale := mocks.NewMockClient(ctrl)
	current := mocks.NewMockClient(ctrl)
	expectMetadata(current)
	current.EXPECT().MarketPrices(gomock.Any()).Return(map[int64]float64{}, nil)
	current.EXPECT().Items(gomock.Any(), int64(characterID)).Return(testItems(), nil)
	current.EXPECT().SellOrders(gomock.Any(), int64(characterID)).Return(nil, nil)

	factory := func(tokens oauth2.TokenSource) catalog.Client {
		token, err := tokens.Token()
		require.NoError(t, err)
		if token.AccessToken == "fresh" {
			return current
		}
		return stale
	}

	m := NewManager(context.Background(), factory, metadata.DefaultPolicy(), config.HoldingsConfig{}, testLogger())
	defer m.Close()

	first := m.Service(characterID, old)
	s := m.Start(characterID, fresh)
	assert.Same(t, first, s)

	assert.Eventually(t, func() bool {
		return s.Status().State == LoadStateDone
	}, 5*time.Second, 10*time.Millisecond)
}

func TestManagerRemoveForgetsCharacter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	factory := func(oauth2.TokenSource) catalog.Client { return mocks.NewMockClient(ctrl) }
	m := NewManager(context.Background(), factory, metadata.DefaultPolicy(), config.HoldingsConfig{}, testLogger())
	defer m.Close()

	first := m.Service(characterID, nil)
	m.Remove(characterID)
	m.Remove(characterID)

	_, ok := m.Lookup(characterID)
	assert.False(t, ok)
	assert.NotSame(t, first, m.Service(characterID, nil))
}
