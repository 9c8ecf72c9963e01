package location

import (
	"log/slog"
	"sort"
	"sync"

	"holdings-server/internal/metadata"
	"holdings-server/internal/metrics"
	"holdings-server/internal/shared/errors"
)

// Tree is the canonical registry of location nodes for one session. A single
// mutex guards every node; mutations and aggregate reads both take it.
type Tree struct {
	registry *metadata.Registry
	logger   *slog.Logger

	mu      sync.Mutex
	nodes   map[Key]*Node
	items   map[int64]*Node
	orders  map[int64]*Node
	roots   []*Node
	holders map[*metadata.Info][]*Node
	count   int
	version uint64

	subsMu      sync.Mutex
	subscribers map[chan struct{}]struct{}

	unsubscribe func()
}

func NewTree(registry *metadata.Registry, logger *slog.Logger) *Tree {
	logger.Debug("Initializing location tree")

	t := &Tree{
		registry:    registry,
		logger:      logger,
		nodes:       make(map[Key]*Node),
		items:       make(map[int64]*Node),
		orders:      make(map[int64]*Node),
		holders:     make(map[*metadata.Info][]*Node),
		subscribers: make(map[chan struct{}]struct{}),
	}
	t.unsubscribe = registry.Subscribe(t.onInfoChanged)
	return t
}

// Close detaches the tree from its registry
func (t *Tree) Close() {
	t.unsubscribe()
}

func unknownLocation(key Key) error {
	return errors.NotFoundf("Unknown location '%s'", key)
}

// Node returns the canonical node for key
func (t *Tree) Node(key Key) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[key]
	if !ok {
		return nil, unknownLocation(key)
	}
	return n, nil
}

func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Version increases on every mutation of the tree or of metadata it holds
func (t *Tree) Version() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// Subscribe returns a channel that receives a signal after mutations.
// Signals coalesce: a slow reader sees one pending signal, not a backlog.
func (t *Tree) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	t.subsMu.Lock()
	t.subscribers[ch] = struct{}{}
	t.subsMu.Unlock()

	return ch, func() {
		t.subsMu.Lock()
		delete(t.subscribers, ch)
		t.subsMu.Unlock()
	}
}

// bump must be called with t.mu held
func (t *Tree) bump() {
	t.version++

	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	for ch := range t.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// AddChild attaches node under parentKey. A missing parent is synthesized as
// a pending placeholder root so the node is never lost. A node that is
// currently a root is moved; a node attached elsewhere is rejected.
func (t *Tree) AddChild(parentKey Key, node *Node) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if node.Info == nil {
		return errors.Validation("location has no metadata")
	}
	if node.parent != nil {
		return errors.Validationf("location '%s' is already attached to '%s'", node.Key, node.parent.Key)
	}
	t.register(node)
	t.removeRoot(node)
	return t.addChild(parentKey, node)
}

// register indexes a node built outside the builder
func (t *Tree) register(n *Node) {
	if !t.holds(n.Info, n) {
		t.count++
	}
	if n.Key != "" {
		if _, ok := t.nodes[n.Key]; !ok {
			t.nodes[n.Key] = n
			if n.Children == nil {
				n.Children = []*Node{}
			}
		}
	}
	if n.itemID > 0 {
		if _, ok := t.items[n.itemID]; !ok {
			t.items[n.itemID] = n
		}
	}
	if !t.holds(n.Info, n) {
		t.hold(n.Info, n)
	}
	for _, c := range n.Children {
		c.parent = n
		t.register(c)
	}
}

func (t *Tree) addChild(parentKey Key, child *Node) error {
	parent := t.nodes[parentKey]
	if parent == nil {
		if id, ok := parentKey.ID(); ok {
			if item := t.items[id]; item != nil {
				t.promote(item)
				parent = item
			}
		}
	}
	if parent == nil {
		parent = t.placeholder(parentKey)
	}

	for x := parent; x != nil; x = x.parent {
		if x == child {
			t.roots = append(t.roots, child)
			t.logger.Warn("Refusing to attach location under its own descendant", "component", "location_tree", "key", child.Key, "parent", parentKey)
			return errors.Validationf("location '%s' cannot contain itself", child.Key)
		}
	}

	parent.Children = append(parent.Children, child)
	child.parent = parent
	t.invalidate(parent)
	t.bump()
	return nil
}

func placeholderRef(key Key) metadata.Ref {
	if id, ok := key.ID(); ok {
		return metadata.Ref{Kind: metadata.KindForLocation(id), ID: id}
	}
	return metadata.Ref{Kind: metadata.KindUnknown}
}

// placeholder synthesizes a pending root for a parent that has no record yet
func (t *Tree) placeholder(key Key) *Node {
	ref := placeholderRef(key)

	n := &Node{
		Key:         key,
		Info:        t.registry.GetOrCreate(ref),
		Children:    []*Node{},
		placeholder: true,
	}
	t.nodes[key] = n
	t.roots = append(t.roots, n)
	t.hold(n.Info, n)
	t.count++

	metrics.PlaceholdersTotal.Inc()
	t.logger.Debug("Synthesized placeholder location", "component", "location_tree", "key", key, "ref", ref.String())
	return n
}

// promote turns a pure item into a container once something references it
func (t *Tree) promote(n *Node) {
	if n.Key != "" {
		return
	}
	n.Key = KeyOf(n.itemID)
	n.Children = []*Node{}
	t.nodes[n.Key] = n
}

func (t *Tree) removeRoot(n *Node) {
	for i, r := range t.roots {
		if r == n {
			t.roots = append(t.roots[:i], t.roots[i+1:]...)
			return
		}
	}
}

func (t *Tree) detach(n *Node) {
	parent := n.parent
	if parent == nil {
		t.removeRoot(n)
		return
	}
	for i, c := range parent.Children {
		if c == n {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			break
		}
	}
	n.parent = nil
	t.invalidate(parent)
}

// invalidate clears cached aggregates of n and every ancestor
func (t *Tree) invalidate(n *Node) {
	for x := n; x != nil; x = x.parent {
		x.cache.set = false
	}
	metrics.InvalidationsTotal.Inc()
}

func (t *Tree) hold(info *metadata.Info, n *Node) {
	t.holders[info] = append(t.holders[info], n)
}

func (t *Tree) holds(info *metadata.Info, n *Node) bool {
	for _, h := range t.holders[info] {
		if h == n {
			return true
		}
	}
	return false
}

func (t *Tree) release(info *metadata.Info, n *Node) {
	holders := t.holders[info]
	for i, h := range holders {
		if h == n {
			holders = append(holders[:i], holders[i+1:]...)
			break
		}
	}
	if len(holders) == 0 {
		delete(t.holders, info)
		return
	}
	t.holders[info] = holders
}

// PendingRefs lists the fetchable refs that nodes of the tree still hold
// and that have not resolved yet
func (t *Tree) PendingRefs() []metadata.Ref {
	t.mu.Lock()
	defer t.mu.Unlock()

	var refs []metadata.Ref
	for info := range t.holders {
		if ref := info.Ref(); ref.Kind.Fetchable() && info.Pending() {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].ID < refs[j].ID
	})
	return refs
}

func (t *Tree) onInfoChanged(info *metadata.Info) {
	t.mu.Lock()
	defer t.mu.Unlock()

	holders := t.holders[info]
	if len(holders) == 0 {
		return
	}
	for _, n := range holders {
		t.invalidate(n)
	}
	t.bump()
}

// InvalidateAll drops every cached aggregate
func (t *Tree) InvalidateAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range t.roots {
		walk(r, func(n *Node) { n.cache.set = false })
	}
	t.bump()
}

// SetQuantity changes an item's quantity and invalidates its ancestors
func (t *Tree) SetQuantity(n *Node, q int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.setQuantity(n, q) {
		t.bump()
	}
}

func (t *Tree) setQuantity(n *Node, q int64) bool {
	if n.Quantity != nil && *n.Quantity == q {
		return false
	}
	n.Quantity = quantity(q)
	t.invalidate(n)
	return true
}

// LinkLocations moves resolved station and structure roots under their solar
// system so routes read system, station, container
func (t *Tree) LinkLocations() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var linked int
	for _, r := range append([]*Node(nil), t.roots...) {
		kind := r.Info.Ref().Kind
		if kind != metadata.KindStation && kind != metadata.KindStructure {
			continue
		}
		systemID := r.Info.Fields().SystemID
		if systemID <= 0 {
			continue
		}
		t.removeRoot(r)
		if err := t.addChild(KeyOf(systemID), r); err == nil {
			linked++
		}
	}
	if linked > 0 {
		t.logger.Debug("Linked locations to solar systems", "component", "location_tree", "linked", linked)
	}
	return linked
}

// Roots returns records for every top-level location
func (t *Tree) Roots() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := make([]Record, 0, len(t.roots))
	for _, r := range t.roots {
		records = append(records, t.record(r))
	}
	return records
}

// Route returns the chain of containers from the root down to key
func (t *Tree) Route(key Key) ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[key]
	if !ok {
		return nil, unknownLocation(key)
	}

	var chain []*Node
	for x := n; x != nil; x = x.parent {
		chain = append(chain, x)
	}
	route := make([]Record, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		route = append(route, t.record(chain[i]))
	}
	return route, nil
}

// Totals returns the aggregated record of key itself
func (t *Tree) Totals(key Key) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[key]
	if !ok {
		return Record{}, unknownLocation(key)
	}
	return t.record(n), nil
}

// Records lists the direct children of key
func (t *Tree) Records(key Key) ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[key]
	if !ok {
		return nil, unknownLocation(key)
	}

	records := make([]Record, 0, len(n.Children))
	for _, c := range n.Children {
		records = append(records, t.record(c))
	}
	return records, nil
}

// Cargo lists every item below key, flattened. In assembled mode items
// kept assembled are listed as one unit without their content.
func (t *Tree) Cargo(key Key, assembled bool) ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[key]
	if !ok {
		return nil, unknownLocation(key)
	}

	nodes := Flatten(n.Children, FlattenOptions{Assembled: assembled})
	records := make([]Record, 0, len(nodes))
	for _, c := range nodes {
		if c.Quantity == nil {
			continue
		}
		records = append(records, t.record(c))
	}
	return records, nil
}

// Containers lists key and every container below it, depth first
func (t *Tree) Containers(key Key) ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[key]
	if !ok {
		return nil, unknownLocation(key)
	}

	nodes := Flatten([]*Node{n}, FlattenOptions{ContainersOnly: true})
	records := make([]Record, 0, len(nodes))
	for _, c := range nodes {
		records = append(records, t.record(c))
	}
	return records, nil
}

func walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		walk(c, fn)
	}
}
