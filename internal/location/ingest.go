package location

import (
	"encoding/binary"

	"holdings-server/internal/catalog"
	"holdings-server/internal/metadata"
	"holdings-server/internal/metrics"

	"github.com/cespare/xxhash/v2"
)

// MarketLabel is the position label of sell-order containers
const MarketLabel = "Market"

type itemGroup struct {
	item     catalog.RawItem
	identity uint64
	quantity int64
}

type identityHash struct {
	d   *xxhash.Digest
	buf [8]byte
}

func newIdentityHash() *identityHash {
	return &identityHash{d: xxhash.New()}
}

func (h *identityHash) int(v int64) {
	binary.LittleEndian.PutUint64(h.buf[:], uint64(v))
	_, _ = h.d.Write(h.buf[:])
}

func (h *identityHash) str(s string) {
	h.int(int64(len(s)))
	_, _ = h.d.WriteString(s)
}

func itemIdentity(it catalog.RawItem) uint64 {
	h := newIdentityHash()
	h.int(it.ItemID)
	h.str(it.Name)
	h.int(it.TypeID)
	h.int(it.LocationID)
	h.str(it.LocationFlag)
	return h.d.Sum64()
}

func orderIdentity(o catalog.RawOrder) uint64 {
	h := newIdentityHash()
	h.int(o.OrderID)
	h.int(o.TypeID)
	h.int(o.LocationID)
	return h.d.Sum64()
}

func validItem(it catalog.RawItem) bool {
	return it.ItemID > 0 && it.TypeID > 0 && it.LocationID > 0 && it.Quantity >= 0
}

func validOrder(o catalog.RawOrder) bool {
	return o.OrderID > 0 && o.TypeID > 0 && o.LocationID > 0 && o.VolumeRemain >= 0
}

// Ingest merges a batch of asset rows into the tree and returns the batch
// nodes whose parent is not part of the batch. The batch is built completely
// before any of it is attached, all under one hold of the tree lock.
// Ingesting the same batch again leaves the tree unchanged.
func (t *Tree) Ingest(items []catalog.RawItem) []*Node {
	return t.ingest(items, false)
}

// Sync ingests a complete asset list and, in the same step, removes the
// items the list no longer contains. Locations left empty go with them; a
// removed container whose content is still listed stays as a placeholder.
func (t *Tree) Sync(items []catalog.RawItem) []*Node {
	return t.ingest(items, true)
}

func (t *Tree) ingest(items []catalog.RawItem, complete bool) []*Node {
	operation := "ingest"
	if complete {
		operation = "sync"
	}
	logger := t.logger.With("component", "location_tree", "operation", operation)

	groups := make([]*itemGroup, 0, len(items))
	byIdentity := make(map[uint64]*itemGroup, len(items))
	parents := make(map[int64]struct{}, len(items))
	listed := make(map[int64]struct{}, len(items))
	skipped := 0

	for _, it := range items {
		if !validItem(it) {
			skipped++
			metrics.MalformedRecordsTotal.WithLabelValues("items").Inc()
			logger.Debug("Skipping malformed item", "item_id", it.ItemID, "type_id", it.TypeID, "location_id", it.LocationID, "quantity", it.Quantity)
			continue
		}

		id := itemIdentity(it)
		if g, ok := byIdentity[id]; ok {
			g.quantity += it.Quantity
			continue
		}
		listed[it.ItemID] = struct{}{}
		g := &itemGroup{item: it, identity: id, quantity: it.Quantity}
		byIdentity[id] = g
		groups = append(groups, g)
		parents[it.LocationID] = struct{}{}
	}
	metrics.IngestedRecordsTotal.WithLabelValues("items").Add(float64(len(groups)))

	t.mu.Lock()
	defer t.mu.Unlock()

	batch := make([]*Node, 0, len(groups))
	keys := make(map[Key]struct{})
	for _, g := range groups {
		_, referenced := parents[g.item.ItemID]
		n := t.upsertItem(g, referenced)
		batch = append(batch, n)
		if n.Key != "" {
			keys[n.Key] = struct{}{}
		}
	}

	var top []*Node
	for _, n := range batch {
		if _, inBatch := keys[n.Pos.Key]; !inBatch {
			top = append(top, n)
		}
		if n.parent == nil {
			_ = t.addChild(n.Pos.Key, n)
		}
	}

	removed := 0
	if complete {
		removed = t.prune(func(n *Node) bool {
			if n.itemID <= 0 || n.placeholder {
				return false
			}
			_, ok := listed[n.itemID]
			return !ok
		})
	}
	t.bump()

	logger.Info("Items ingested", "records", len(items), "nodes", len(batch), "top_level", len(top), "removed", removed, "skipped", skipped)
	return top
}

func (t *Tree) upsertItem(g *itemGroup, referenced bool) *Node {
	it := g.item
	info := t.registry.GetOrCreate(metadata.Ref{Kind: metadata.KindType, ID: it.TypeID})
	pos := Pos{Key: KeyOf(it.LocationID), Label: it.LocationFlag}

	if n, ok := t.items[it.ItemID]; ok {
		if n.identity == g.identity {
			t.setQuantity(n, g.quantity)
		} else {
			t.merge(n, info, pos, g)
		}
		if referenced {
			t.promote(n)
		}
		return n
	}

	// Children arrived first and left a placeholder under this item's key
	if n, ok := t.nodes[KeyOf(it.ItemID)]; ok {
		t.merge(n, info, pos, g)
		t.items[it.ItemID] = n
		return n
	}

	n := &Node{
		Info:     info,
		Pos:      pos,
		Quantity: quantity(g.quantity),
		Comment:  it.Name,
		itemID:   it.ItemID,
		identity: g.identity,
	}
	t.items[it.ItemID] = n
	t.hold(info, n)
	t.count++
	if referenced {
		t.promote(n)
	}
	return n
}

// merge moves the fields of a fresh record into an existing node, keeping
// the node pointer and its children
func (t *Tree) merge(n *Node, info *metadata.Info, pos Pos, g *itemGroup) {
	if n.Info != info {
		t.release(n.Info, n)
		n.Info = info
		t.hold(info, n)
	}

	switch {
	case n.placeholder:
		n.placeholder = false
		t.removeRoot(n)
	case n.parent != nil && n.parent.Key != pos.Key:
		t.detach(n)
	}

	n.Pos = pos
	n.Quantity = quantity(g.quantity)
	n.Comment = g.item.Name
	n.itemID = g.item.ItemID
	n.identity = g.identity
	t.invalidate(n)
}

// IngestOrders files sell orders into one virtual container per location and
// returns the containers created by this call
func (t *Tree) IngestOrders(orders []catalog.RawOrder) []*Node {
	return t.ingestOrders(orders, false)
}

// SyncOrders ingests the complete list of open orders and removes the orders
// that are no longer in it, together with market containers left empty
func (t *Tree) SyncOrders(orders []catalog.RawOrder) []*Node {
	return t.ingestOrders(orders, true)
}

func (t *Tree) ingestOrders(orders []catalog.RawOrder, complete bool) []*Node {
	operation := "ingest_orders"
	if complete {
		operation = "sync_orders"
	}
	logger := t.logger.With("component", "location_tree", "operation", operation)

	t.mu.Lock()
	defer t.mu.Unlock()

	var created []*Node
	accepted, skipped := 0, 0
	open := make(map[int64]struct{}, len(orders))

	for _, o := range orders {
		if o.IsBuyOrder {
			continue
		}
		if !validOrder(o) {
			skipped++
			metrics.MalformedRecordsTotal.WithLabelValues("orders").Inc()
			logger.Debug("Skipping malformed order", "order_id", o.OrderID, "type_id", o.TypeID, "location_id", o.LocationID)
			continue
		}
		accepted++
		open[o.OrderID] = struct{}{}

		price := o.Price
		if n, ok := t.orders[o.OrderID]; ok {
			t.setQuantity(n, o.VolumeRemain)
			if n.price == nil || *n.price != price {
				n.price = &price
				t.invalidate(n)
			}
			continue
		}

		key := OrdersKey(o.LocationID)
		container, ok := t.nodes[key]
		if !ok {
			container = &Node{
				Key:      key,
				Info:     t.registry.GetOrCreate(metadata.Ref{Kind: metadata.KindOrders, ID: o.LocationID}),
				Pos:      Pos{Key: KeyOf(o.LocationID), Label: MarketLabel},
				Children: []*Node{},
				Virtual:  true,
			}
			t.nodes[key] = container
			t.hold(container.Info, container)
			t.count++
			created = append(created, container)
		}

		n := &Node{
			Info:     t.registry.GetOrCreate(metadata.Ref{Kind: metadata.KindType, ID: o.TypeID}),
			Pos:      Pos{Key: key},
			Quantity: quantity(o.VolumeRemain),
			price:    &price,
			orderID:  o.OrderID,
			identity: orderIdentity(o),
		}
		t.orders[o.OrderID] = n
		t.hold(n.Info, n)
		t.count++

		container.Children = append(container.Children, n)
		n.parent = container
		t.invalidate(container)
	}
	metrics.IngestedRecordsTotal.WithLabelValues("orders").Add(float64(accepted))

	for _, c := range created {
		_ = t.addChild(c.Pos.Key, c)
	}

	removed := 0
	if complete {
		removed = t.prune(func(n *Node) bool {
			if n.orderID <= 0 {
				return false
			}
			_, ok := open[n.orderID]
			return !ok
		})
	}
	t.bump()

	logger.Info("Orders ingested", "records", len(orders), "accepted", accepted, "containers", len(created), "removed", removed, "skipped", skipped)
	return created
}

// prune removes every node stale reports, children before parents.
// Placeholder and market locations that end up empty are removed too.
// It must be called with t.mu held and returns the number of nodes removed.
func (t *Tree) prune(stale func(*Node) bool) int {
	removed := 0
	var visit func(n *Node)
	visit = func(n *Node) {
		for _, c := range append([]*Node(nil), n.Children...) {
			visit(c)
		}
		vacant := (n.placeholder || n.Virtual) && len(n.Children) == 0
		if stale(n) || vacant {
			if t.drop(n) {
				removed++
			}
		}
	}
	for _, r := range append([]*Node(nil), t.roots...) {
		visit(r)
	}
	return removed
}

// drop removes n from the tree. A container that still holds children is
// kept as a placeholder root instead and drop returns false.
func (t *Tree) drop(n *Node) bool {
	if n.itemID > 0 && t.items[n.itemID] == n {
		delete(t.items, n.itemID)
	}
	if n.orderID > 0 && t.orders[n.orderID] == n {
		delete(t.orders, n.orderID)
	}
	t.detach(n)

	if len(n.Children) > 0 {
		t.release(n.Info, n)
		n.Info = t.registry.GetOrCreate(placeholderRef(n.Key))
		t.hold(n.Info, n)
		n.Pos = Pos{}
		n.Quantity = nil
		n.Comment = ""
		n.itemID = 0
		n.identity = 0
		n.placeholder = true
		t.roots = append(t.roots, n)
		t.invalidate(n)
		return false
	}

	if n.Key != "" && t.nodes[n.Key] == n {
		delete(t.nodes, n.Key)
	}
	t.release(n.Info, n)
	t.count--
	return true
}
