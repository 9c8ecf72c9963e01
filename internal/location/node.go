package location

import (
	"strconv"

	"holdings-server/internal/metadata"
)

// Key identifies a location node. The empty key marks a pure item that can
// never hold children.
type Key string

func KeyOf(id int64) Key {
	return Key(strconv.FormatInt(id, 10))
}

// OrdersKey is the synthetic key of the sell-order container at a location
func OrdersKey(locationID int64) Key {
	return Key("ord" + strconv.FormatInt(locationID, 10))
}

// ID returns the numeric id behind a real location key
func (k Key) ID() (int64, bool) {
	id, err := strconv.ParseInt(string(k), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Pos links a node to its parent. Label names the slot inside the parent
// (cargo, hangar, ...) and is used only for grouping.
type Pos struct {
	Key   Key    `json:"key"`
	Label string `json:"label,omitempty"`
}

type aggregate struct {
	value     Amount
	packaged  Amount
	assembled Amount
	set       bool
}

// Node is a location or an item instance. Nodes are owned by a Tree and
// their fields may only be read or written while holding the tree lock;
// use Tree.Records and friends from other goroutines.
type Node struct {
	Key      Key
	Info     *metadata.Info
	Pos      Pos
	Quantity *int64
	// nil means the node is not a container, empty means known-empty
	Children []*Node
	Virtual  bool
	Comment  string

	price       *float64
	parent      *Node
	itemID      int64
	orderID     int64
	identity    uint64
	placeholder bool
	cache       aggregate
}

// IsContainer reports whether the node can hold children
func (n *Node) IsContainer() bool { return n.Children != nil }

// Parent returns the node this one is attached to, nil for roots
func (n *Node) Parent() *Node { return n.parent }

func (n *Node) ItemID() int64 { return n.itemID }

func (n *Node) PriceOverride() *float64 { return n.price }

func quantity(q int64) *int64 { return &q }
