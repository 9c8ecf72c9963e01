package esi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"holdings-server/internal/catalog"
	"holdings-server/internal/catalog/respcache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler, cache respcache.Cache) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token", TokenType: "Bearer"})
	return NewClient(Options{
		BaseURL:           srv.URL,
		Datasource:        "tranquility",
		UserAgent:         "holdings-server-test",
		Timeout:           5 * time.Second,
		Retries:           2,
		RequestsPerSecond: 1000,
		BurstSize:         100,
		CacheTTL:          time.Minute,
	}, tokens, cache, testLogger())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestTypeInfoJoinsGroupAndCaches(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/universe/types/587/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "tranquility", r.URL.Query().Get("datasource"))
		assert.Equal(t, "holdings-server-test", r.Header.Get("User-Agent"))
		writeJSON(w, map[string]interface{}{
			"type_id": 587, "name": "Rifter", "group_id": 25, "volume": 27289, "packaged_volume": 2500, "icon_id": 587,
		})
	})
	mux.HandleFunc("/universe/groups/25/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"group_id": 25, "category_id": 6, "name": "Frigate"})
	})

	client := newTestClient(t, mux, respcache.NewMemory(time.Minute))

	info, err := client.TypeInfo(context.Background(), 587)
	require.NoError(t, err)
	assert.Equal(t, "Rifter", info.Name)
	assert.Equal(t, int64(6), info.CategoryID)
	require.NotNil(t, info.PackagedVolume)
	assert.Equal(t, 2500.0, *info.PackagedVolume)

	_, err = client.TypeInfo(context.Background(), 587)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestStructureForbiddenIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/universe/structures/1035466617946/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		http.Error(w, `{"error":"Forbidden"}`, http.StatusForbidden)
	})

	client := newTestClient(t, mux, nil)

	_, err := client.LocationInfo(context.Background(), 1035466617946, catalog.KindStructure)
	require.Error(t, err)
	assert.True(t, catalog.IsForbidden(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestServerErrorsAreRetried(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/universe/systems/30000142/", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]interface{}{"system_id": 30000142, "name": "Jita"})
	})

	client := newTestClient(t, mux, nil)

	info, err := client.LocationInfo(context.Background(), 30000142, catalog.KindSystem)
	require.NoError(t, err)
	assert.Equal(t, "Jita", info.Name)
	assert.Equal(t, int32(2), hits.Load())
}

func TestNotFound(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler(), nil)

	_, err := client.LocationInfo(context.Background(), 60000001, catalog.KindStation)
	require.Error(t, err)
	assert.True(t, catalog.IsNotFound(err))
}

func TestItemsReadsAllPagesAndNames(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/characters/90000001/assets/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Pages", "2")
		switch r.URL.Query().Get("page") {
		case "1":
			writeJSON(w, []map[string]interface{}{
				{"item_id": 100, "type_id": 587, "location_id": 60003760, "location_flag": "Hangar", "location_type": "station", "quantity": 1, "is_singleton": true},
			})
		case "2":
			writeJSON(w, []map[string]interface{}{
				{"item_id": 101, "type_id": 34, "location_id": 100, "location_flag": "Cargo", "location_type": "item", "quantity": 500, "is_singleton": false},
			})
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})
	mux.HandleFunc("/characters/90000001/assets/names/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var ids []int64
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ids))
		assert.Equal(t, []int64{100}, ids)
		writeJSON(w, []map[string]interface{}{{"item_id": 100, "name": "Scout"}})
	})

	client := newTestClient(t, mux, nil)

	items, err := client.Items(context.Background(), 90000001)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Scout", items[0].Name)
	assert.Equal(t, "Cargo", items[1].LocationFlag)
	assert.Equal(t, int64(500), items[1].Quantity)
}

func TestSellOrdersDropsBuyOrders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/characters/90000001/orders/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]interface{}{
			{"order_id": 1, "type_id": 34, "location_id": 60003760, "region_id": 10000002, "price": 5.5, "volume_remain": 10, "volume_total": 20},
			{"order_id": 2, "type_id": 34, "location_id": 60003760, "region_id": 10000002, "price": 4, "volume_remain": 10, "volume_total": 10, "is_buy_order": true},
		})
	})

	client := newTestClient(t, mux, nil)

	orders, err := client.SellOrders(context.Background(), 90000001)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(1), orders[0].OrderID)
	assert.Equal(t, 5.5, orders[0].Price)
}

func TestMarketPricesFallsBackToAdjusted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/markets/prices/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]interface{}{
			{"type_id": 34, "average_price": 5.1, "adjusted_price": 4.9},
			{"type_id": 35, "adjusted_price": 11.2},
			{"type_id": 36},
		})
	})

	client := newTestClient(t, mux, nil)

	prices, err := client.MarketPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{34: 5.1, 35: 11.2}, prices)
}
