package location

import (
	"encoding/json"

	"holdings-server/internal/metadata"
)

// Record is a presentation row for one node. Descriptive fields are copied
// when the record is built; totals are evaluated on access so a record
// reflects later metadata resolution.
type Record struct {
	Key       Key
	Label     string
	Name      string
	Comment   string
	LinkID    int64
	Quantity  *int64
	Container bool
	Virtual   bool
	State     metadata.State

	tree *Tree
	node *Node
}

// record must be called with t.mu held
func (t *Tree) record(n *Node) Record {
	f := n.Info.Fields()
	comment := n.Comment
	if comment == "" {
		comment = f.Comment
	}

	var q *int64
	if n.Quantity != nil {
		q = quantity(*n.Quantity)
	}

	return Record{
		Key:       n.Key,
		Label:     n.Pos.Label,
		Name:      f.Name,
		Comment:   comment,
		LinkID:    n.Info.Ref().ID,
		Quantity:  q,
		Container: n.IsContainer(),
		Virtual:   n.Virtual,
		State:     f.State,
		tree:      t,
		node:      n,
	}
}

// FullName is the display name qualified by the comment, if any
func (r Record) FullName() string {
	if r.Comment == "" {
		return r.Name
	}
	return r.Name + " (" + r.Comment + ")"
}

func (r Record) GroupLabel() string { return r.Label }

func (r Record) Value() Amount {
	if r.tree == nil {
		return Unknown
	}
	return r.tree.value(r.node)
}

func (r Record) PackagedVolume() Amount {
	if r.tree == nil {
		return Unknown
	}
	return r.tree.packagedVolume(r.node)
}

func (r Record) AssembledVolume() Amount {
	if r.tree == nil {
		return Unknown
	}
	return r.tree.assembledVolume(r.node)
}

type recordJSON struct {
	Key             Key            `json:"key,omitempty"`
	Label           string         `json:"label,omitempty"`
	Name            string         `json:"name"`
	FullName        string         `json:"full_name"`
	LinkID          int64          `json:"link_id"`
	Quantity        *int64         `json:"quantity,omitempty"`
	Container       bool           `json:"container"`
	Virtual         bool           `json:"virtual,omitempty"`
	State           metadata.State `json:"state"`
	Value           Amount         `json:"value"`
	PackagedVolume  Amount         `json:"packaged_volume"`
	AssembledVolume Amount         `json:"assembled_volume"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Key:             r.Key,
		Label:           r.Label,
		Name:            r.Name,
		FullName:        r.FullName(),
		LinkID:          r.LinkID,
		Quantity:        r.Quantity,
		Container:       r.Container,
		Virtual:         r.Virtual,
		State:           r.State,
		Value:           r.Value(),
		PackagedVolume:  r.PackagedVolume(),
		AssembledVolume: r.AssembledVolume(),
	})
}
