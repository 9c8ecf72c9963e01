package location

import "holdings-server/internal/metadata"

// own returns the node's contribution without its children. Pure locations
// contribute zero; items whose metadata is still pending contribute unknown.
func own(n *Node) aggregate {
	if n.Quantity == nil {
		return aggregate{value: Known(0), packaged: Known(0), assembled: Known(0)}
	}

	f := n.Info.Fields()
	if f.State == metadata.StatePending {
		return aggregate{value: Unknown, packaged: Unknown, assembled: Unknown}
	}

	q := float64(*n.Quantity)
	price := f.Price
	if n.price != nil {
		price = n.price
	}
	unitAssembled := f.AssembledVolume
	if unitAssembled == nil {
		unitAssembled = f.PackagedVolume
	}

	return aggregate{
		value:     amountOf(price).Scale(q),
		packaged:  amountOf(f.PackagedVolume).Scale(q),
		assembled: amountOf(unitAssembled).Scale(q),
	}
}

// totals returns the memoized aggregates of n, recomputing invalidated
// branches. Callers must hold the tree lock.
func (t *Tree) totals(n *Node) aggregate {
	if n.cache.set {
		return n.cache
	}

	agg := own(n)
	keepAssembled := n.Quantity != nil && n.Info.Fields().DoNotUnpack
	for _, c := range n.Children {
		ct := t.totals(c)
		agg.value = agg.value.Add(ct.value)
		agg.packaged = agg.packaged.Add(ct.packaged)
		if !keepAssembled {
			agg.assembled = agg.assembled.Add(ct.assembled)
		}
	}

	agg.set = true
	n.cache = agg
	return agg
}

func (t *Tree) value(n *Node) Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals(n).value
}

func (t *Tree) packagedVolume(n *Node) Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals(n).packaged
}

func (t *Tree) assembledVolume(n *Node) Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals(n).assembled
}
