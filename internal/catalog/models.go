package catalog

import "strconv"

type LocationKind string

const (
	KindStation   LocationKind = "station"
	KindStructure LocationKind = "structure"
	KindSystem    LocationKind = "system"
)

// RawItem is one asset row as delivered by the character assets endpoint
type RawItem struct {
	ItemID       int64  `json:"item_id"`
	TypeID       int64  `json:"type_id"`
	LocationID   int64  `json:"location_id"`
	LocationFlag string `json:"location_flag"`
	LocationType string `json:"location_type"`
	Quantity     int64  `json:"quantity"`
	IsSingleton  bool   `json:"is_singleton"`
	Name         string `json:"name,omitempty"`
}

// RawOrder is one open market order of the character
type RawOrder struct {
	OrderID      int64   `json:"order_id"`
	TypeID       int64   `json:"type_id"`
	LocationID   int64   `json:"location_id"`
	RegionID     int64   `json:"region_id"`
	Price        float64 `json:"price"`
	VolumeRemain int64   `json:"volume_remain"`
	VolumeTotal  int64   `json:"volume_total"`
	IsBuyOrder   bool    `json:"is_buy_order"`
}

type TypeInfo struct {
	TypeID         int64
	Name           string
	GroupID        int64
	CategoryID     int64
	Volume         float64
	PackagedVolume *float64
	IconID         int64
}

type LocationInfo struct {
	ID       int64
	Kind     LocationKind
	Name     string
	SystemID int64
	TypeID   int64
}

const (
	minSystemID    = 30_000_000
	maxSystemID    = 33_000_000
	minStationID   = 60_000_000
	maxStationID   = 64_000_000
	minStructureID = 1_000_000_000_000
)

// ClassifyLocation guesses the kind of a location id from its numeric range.
// Structure ids share their range with item ids, so a structure answer only
// holds until an asset with the same id shows up.
func ClassifyLocation(id int64) (LocationKind, bool) {
	switch {
	case id >= minSystemID && id < maxSystemID:
		return KindSystem, true
	case id >= minStationID && id < maxStationID:
		return KindStation, true
	case id >= minStructureID:
		return KindStructure, true
	default:
		return "", false
	}
}

// ParseID parses a decimal location or item id
func ParseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
