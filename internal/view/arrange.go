package view

import (
	"sort"
	"strings"

	"holdings-server/internal/location"
	"holdings-server/internal/shared/errors"
)

// Item is anything the view can group and sort
type Item interface {
	GroupLabel() string
	FullName() string
	Value() location.Amount
	PackagedVolume() location.Amount
	AssembledVolume() location.Amount
}

// Items adapts a typed slice to the view
func Items[T Item](in []T) []Item {
	out := make([]Item, len(in))
	for i, it := range in {
		out[i] = it
	}
	return out
}

type SortKey string

const (
	SortName      SortKey = "name"
	SortValue     SortKey = "value"
	SortPackaged  SortKey = "packaged"
	SortAssembled SortKey = "assembled"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
	None Direction = "none"
)

type Sort struct {
	Key SortKey   `json:"sort"`
	Dir Direction `json:"dir"`
}

// DefaultSort keeps input order
var DefaultSort = Sort{Key: SortName, Dir: None}

// ParseSort validates query or message values; empty values fall back to
// the default
func ParseSort(key, dir string) (Sort, error) {
	s := DefaultSort
	if key != "" {
		s.Key = SortKey(strings.ToLower(key))
	}
	if dir != "" {
		s.Dir = Direction(strings.ToLower(dir))
	}

	switch s.Key {
	case SortName, SortValue, SortPackaged, SortAssembled:
	default:
		return Sort{}, errors.Validationf("unknown sort key '%s'", key)
	}
	switch s.Dir {
	case Asc, Desc, None:
	default:
		return Sort{}, errors.Validationf("unknown sort direction '%s'", dir)
	}
	return s, nil
}

// Row is one line of an arranged view. Header rows carry the totals of the
// group that follows them and no item.
type Row struct {
	Header          bool            `json:"header"`
	Label           string          `json:"label"`
	Name            string          `json:"name"`
	Value           location.Amount `json:"value"`
	PackagedVolume  location.Amount `json:"packaged_volume"`
	AssembledVolume location.Amount `json:"assembled_volume"`
	Item            Item            `json:"item,omitempty"`
}

type group struct {
	header Row
	rows   []Row
}

// Arrange groups items by position label, puts a header row carrying the
// group sums in front of every group and orders groups and members with the
// same comparator. Totals are read once per item.
func Arrange(items []Item, s Sort) []Row {
	var groups []*group
	byLabel := make(map[string]*group)

	for _, it := range items {
		label := it.GroupLabel()
		row := Row{
			Label:           label,
			Name:            it.FullName(),
			Value:           it.Value(),
			PackagedVolume:  it.PackagedVolume(),
			AssembledVolume: it.AssembledVolume(),
			Item:            it,
		}

		g, ok := byLabel[label]
		if !ok {
			g = &group{header: Row{
				Header:          true,
				Label:           label,
				Name:            label,
				Value:           location.Known(0),
				PackagedVolume:  location.Known(0),
				AssembledVolume: location.Known(0),
			}}
			byLabel[label] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, row)
		g.header.Value = g.header.Value.Add(row.Value)
		g.header.PackagedVolume = g.header.PackagedVolume.Add(row.PackagedVolume)
		g.header.AssembledVolume = g.header.AssembledVolume.Add(row.AssembledVolume)
	}

	if s.Dir != None {
		less := comparator(s)
		sort.SliceStable(groups, func(i, j int) bool { return less(groups[i].header, groups[j].header) })
		for _, g := range groups {
			rows := g.rows
			sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
		}
	}

	out := make([]Row, 0, len(items)+len(groups))
	for _, g := range groups {
		out = append(out, g.header)
		out = append(out, g.rows...)
	}
	return out
}

func comparator(s Sort) func(a, b Row) bool {
	var cmp func(a, b Row) int
	switch s.Key {
	case SortValue:
		cmp = func(a, b Row) int { return a.Value.Compare(b.Value) }
	case SortPackaged:
		cmp = func(a, b Row) int { return a.PackagedVolume.Compare(b.PackagedVolume) }
	case SortAssembled:
		cmp = func(a, b Row) int { return a.AssembledVolume.Compare(b.AssembledVolume) }
	default:
		cmp = func(a, b Row) int { return strings.Compare(a.Name, b.Name) }
	}

	if s.Dir == Desc {
		return func(a, b Row) bool { return cmp(a, b) > 0 }
	}
	return func(a, b Row) bool { return cmp(a, b) < 0 }
}
