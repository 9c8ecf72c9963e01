package metadata

import (
	"fmt"
	"sync"

	"holdings-server/internal/catalog"
)

// Kind is the namespace of a reference id
type Kind string

const (
	KindType      Kind = "type"
	KindStation   Kind = "station"
	KindStructure Kind = "structure"
	KindSystem    Kind = "system"
	KindUnknown   Kind = "unknown"
	KindOrders    Kind = "orders"
)

// Fetchable reports whether the catalog can resolve refs of this kind
func (k Kind) Fetchable() bool {
	switch k {
	case KindType, KindStation, KindStructure, KindSystem:
		return true
	default:
		return false
	}
}

// KindForLocation infers the reference kind of a bare location id
func KindForLocation(id int64) Kind {
	kind, ok := catalog.ClassifyLocation(id)
	if !ok {
		return KindUnknown
	}
	return Kind(kind)
}

// Ref identifies one piece of reference information
type Ref struct {
	Kind Kind
	ID   int64
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

type State string

const (
	StatePending   State = "pending"
	StateReady     State = "ready"
	StateForbidden State = "forbidden"
)

const ForbiddenName = "Forbidden"

// Info is the shared, mutable metadata of one reference. Every node that
// refers to the same Ref holds the same *Info; the registry updates it in
// place when a fetch completes or prices and policy change.
type Info struct {
	ref Ref

	mu          sync.RWMutex
	state       State
	name        string
	comment     string
	iconID      int64
	groupID     int64
	categoryID  int64
	systemID    int64
	price       *float64
	packaged    *float64
	assembled   *float64
	doNotUnpack bool
	lastErr     error
}

// Fields is a consistent snapshot of an Info
type Fields struct {
	State           State    `json:"state"`
	Name            string   `json:"name"`
	Comment         string   `json:"comment,omitempty"`
	IconID          int64    `json:"icon_id,omitempty"`
	GroupID         int64    `json:"group_id,omitempty"`
	CategoryID      int64    `json:"category_id,omitempty"`
	SystemID        int64    `json:"system_id,omitempty"`
	Price           *float64 `json:"price"`
	PackagedVolume  *float64 `json:"packaged_volume"`
	AssembledVolume *float64 `json:"assembled_volume"`
	DoNotUnpack     bool     `json:"do_not_unpack"`
}

func newInfo(ref Ref) *Info {
	return &Info{ref: ref, state: StatePending}
}

func (i *Info) Ref() Ref { return i.ref }

func (i *Info) Fields() Fields {
	i.mu.RLock()
	defer i.mu.RUnlock()

	name := i.name
	if i.state == StatePending && name == "" {
		name = placeholderName(i.ref)
	}
	return Fields{
		State:           i.state,
		Name:            name,
		Comment:         i.comment,
		IconID:          i.iconID,
		GroupID:         i.groupID,
		CategoryID:      i.categoryID,
		SystemID:        i.systemID,
		Price:           i.price,
		PackagedVolume:  i.packaged,
		AssembledVolume: i.assembled,
		DoNotUnpack:     i.doNotUnpack,
	}
}

// Pending reports whether the loader token is still set
func (i *Info) Pending() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state == StatePending
}

// Err returns the last transient resolution failure, if any
func (i *Info) Err() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lastErr
}

func placeholderName(ref Ref) string {
	switch ref.Kind {
	case KindType:
		return fmt.Sprintf("Type %d", ref.ID)
	case KindOrders:
		return "Sell orders"
	default:
		return fmt.Sprintf("Location %d", ref.ID)
	}
}

func (i *Info) applyType(t *catalog.TypeInfo, policy Policy) {
	packaged := t.Volume
	if t.PackagedVolume != nil {
		packaged = *t.PackagedVolume
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.state = StateReady
	i.name = t.Name
	i.iconID = t.IconID
	i.groupID = t.GroupID
	i.categoryID = t.CategoryID
	i.packaged = &packaged
	// Only types that repackage to a different size keep an assembled form
	if t.PackagedVolume != nil && *t.PackagedVolume != t.Volume {
		assembled := t.Volume
		i.assembled = &assembled
	} else {
		i.assembled = nil
	}
	i.doNotUnpack = policy.KeepsAssembled(t.GroupID, t.CategoryID)
	i.lastErr = nil
}

func (i *Info) applyLocation(l *catalog.LocationInfo) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.state = StateReady
	i.name = l.Name
	i.systemID = l.SystemID
	if l.Kind != catalog.KindSystem && l.TypeID > 0 {
		i.comment = fmt.Sprintf("type %d", l.TypeID)
	}
	i.lastErr = nil
}

func (i *Info) setForbidden() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.state = StateForbidden
	i.name = ForbiddenName
	i.packaged = nil
	i.assembled = nil
	i.lastErr = nil
}

func (i *Info) setStatic(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.state = StateReady
	i.name = name
}

func (i *Info) setErr(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.lastErr = err
}

// setPrice reports whether the price actually changed
func (i *Info) setPrice(price float64, ok bool) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !ok {
		changed := i.price != nil
		i.price = nil
		return changed
	}
	if i.price != nil && *i.price == price {
		return false
	}
	i.price = &price
	return true
}

// setDoNotUnpack reports whether the flag changed
func (i *Info) setDoNotUnpack(policy Policy) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateReady || i.ref.Kind != KindType {
		return false
	}
	next := policy.KeepsAssembled(i.groupID, i.categoryID)
	if next == i.doNotUnpack {
		return false
	}
	i.doNotUnpack = next
	return true
}
