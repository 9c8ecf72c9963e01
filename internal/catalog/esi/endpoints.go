package esi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"holdings-server/internal/catalog"
	"holdings-server/internal/shared/errors"
)

// namesBatchSize is the most ids the asset names endpoint accepts at once
const namesBatchSize = 1000

type typeResponse struct {
	TypeID         int64    `json:"type_id"`
	Name           string   `json:"name"`
	GroupID        int64    `json:"group_id"`
	Volume         float64  `json:"volume"`
	PackagedVolume *float64 `json:"packaged_volume"`
	IconID         int64    `json:"icon_id"`
}

type groupResponse struct {
	GroupID    int64  `json:"group_id"`
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
}

type stationResponse struct {
	StationID int64  `json:"station_id"`
	Name      string `json:"name"`
	SystemID  int64  `json:"system_id"`
	TypeID    int64  `json:"type_id"`
}

type structureResponse struct {
	Name          string `json:"name"`
	SolarSystemID int64  `json:"solar_system_id"`
	TypeID        int64  `json:"type_id"`
}

type systemResponse struct {
	SystemID int64  `json:"system_id"`
	Name     string `json:"name"`
}

type assetName struct {
	ItemID int64  `json:"item_id"`
	Name   string `json:"name"`
}

type marketPrice struct {
	TypeID        int64    `json:"type_id"`
	AveragePrice  *float64 `json:"average_price"`
	AdjustedPrice *float64 `json:"adjusted_price"`
}

func decode(resp *response, v interface{}, what string) error {
	if err := json.Unmarshal(resp.body, v); err != nil {
		return errors.WrapExternal(fmt.Sprintf("failed to decode %s", what), err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, cacheable bool, v interface{}) error {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: path, cacheable: cacheable})
	if err != nil {
		return err
	}
	return decode(resp, v, path)
}

func (c *Client) TypeInfo(ctx context.Context, typeID int64) (*catalog.TypeInfo, error) {
	var t typeResponse
	if err := c.get(ctx, fmt.Sprintf("/universe/types/%d/", typeID), true, &t); err != nil {
		return nil, err
	}

	var g groupResponse
	if err := c.get(ctx, fmt.Sprintf("/universe/groups/%d/", t.GroupID), true, &g); err != nil {
		return nil, err
	}

	return &catalog.TypeInfo{
		TypeID:         typeID,
		Name:           t.Name,
		GroupID:        t.GroupID,
		CategoryID:     g.CategoryID,
		Volume:         t.Volume,
		PackagedVolume: t.PackagedVolume,
		IconID:         t.IconID,
	}, nil
}

func (c *Client) LocationInfo(ctx context.Context, id int64, kind catalog.LocationKind) (*catalog.LocationInfo, error) {
	switch kind {
	case catalog.KindStation:
		var s stationResponse
		if err := c.get(ctx, fmt.Sprintf("/universe/stations/%d/", id), true, &s); err != nil {
			return nil, err
		}
		return &catalog.LocationInfo{ID: id, Kind: kind, Name: s.Name, SystemID: s.SystemID, TypeID: s.TypeID}, nil
	case catalog.KindStructure:
		// Structure visibility depends on the character, never share it
		var s structureResponse
		if err := c.get(ctx, fmt.Sprintf("/universe/structures/%d/", id), false, &s); err != nil {
			return nil, err
		}
		return &catalog.LocationInfo{ID: id, Kind: kind, Name: s.Name, SystemID: s.SolarSystemID, TypeID: s.TypeID}, nil
	case catalog.KindSystem:
		var s systemResponse
		if err := c.get(ctx, fmt.Sprintf("/universe/systems/%d/", id), true, &s); err != nil {
			return nil, err
		}
		return &catalog.LocationInfo{ID: id, Kind: kind, Name: s.Name}, nil
	default:
		return nil, errors.Validationf("unsupported location kind '%s'", kind)
	}
}

// Items reads every page of the character's assets and fills in the names
// of singleton items that carry one
func (c *Client) Items(ctx context.Context, subjectID int64) ([]catalog.RawItem, error) {
	logger := c.logger.With("component", "esi_client", "operation", "items", "character_id", subjectID)

	var items []catalog.RawItem
	pages := 1
	for page := 1; page <= pages; page++ {
		resp, err := c.do(ctx, request{
			method: http.MethodGet,
			path:   fmt.Sprintf("/characters/%d/assets/", subjectID),
			query:  url.Values{"page": {strconv.Itoa(page)}},
		})
		if err != nil {
			return nil, err
		}

		var batch []catalog.RawItem
		if err := decode(resp, &batch, "assets"); err != nil {
			return nil, err
		}
		items = append(items, batch...)

		if n, err := strconv.Atoi(resp.header.Get("X-Pages")); err == nil && n > pages {
			pages = n
		}
	}

	if err := c.fillNames(ctx, subjectID, items); err != nil {
		logger.Warn("Failed to read asset names", "error", err)
	}

	logger.Info("Assets fetched", "items", len(items), "pages", pages)
	return items, nil
}

func (c *Client) fillNames(ctx context.Context, subjectID int64, items []catalog.RawItem) error {
	index := make(map[int64]int)
	var ids []int64
	for i, it := range items {
		if it.IsSingleton {
			index[it.ItemID] = i
			ids = append(ids, it.ItemID)
		}
	}

	for start := 0; start < len(ids); start += namesBatchSize {
		end := start + namesBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		body, err := json.Marshal(ids[start:end])
		if err != nil {
			return errors.WrapInternal("failed to encode asset ids", err)
		}
		resp, err := c.do(ctx, request{
			method: http.MethodPost,
			path:   fmt.Sprintf("/characters/%d/assets/names/", subjectID),
			body:   body,
		})
		if err != nil {
			return err
		}

		var names []assetName
		if err := decode(resp, &names, "asset names"); err != nil {
			return err
		}
		for _, n := range names {
			// Unnamed items come back as "None"
			if i, ok := index[n.ItemID]; ok && n.Name != "" && n.Name != "None" {
				items[i].Name = n.Name
			}
		}
	}
	return nil
}

func (c *Client) SellOrders(ctx context.Context, subjectID int64) ([]catalog.RawOrder, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/characters/%d/orders/", subjectID),
	})
	if err != nil {
		return nil, err
	}

	var orders []catalog.RawOrder
	if err := decode(resp, &orders, "orders"); err != nil {
		return nil, err
	}

	sell := orders[:0]
	for _, o := range orders {
		if !o.IsBuyOrder {
			sell = append(sell, o)
		}
	}
	return sell, nil
}

// MarketPrices returns the average price per type, falling back to the
// adjusted price for types without recent trades
func (c *Client) MarketPrices(ctx context.Context) (map[int64]float64, error) {
	var rows []marketPrice
	if err := c.get(ctx, "/markets/prices/", true, &rows); err != nil {
		return nil, err
	}

	prices := make(map[int64]float64, len(rows))
	for _, row := range rows {
		switch {
		case row.AveragePrice != nil:
			prices[row.TypeID] = *row.AveragePrice
		case row.AdjustedPrice != nil:
			prices[row.TypeID] = *row.AdjustedPrice
		}
	}
	return prices, nil
}

var _ catalog.Client = (*Client)(nil)
