package jsontree

// FindField searches the tree depth-first in pre-order for the first member
// named field. A direct key on an object wins over anything nested below it;
// otherwise object values are searched in key order and array elements in
// index order.
func FindField(n *Node, field string) (*Node, bool) {
	if n == nil {
		return nil, false
	}

	switch n.kind {
	case Object:
		if v, ok := n.Get(field); ok {
			return v, true
		}
		for _, m := range n.members {
			if m.Value == nil || m.Value.kind == Scalar {
				continue
			}
			if v, ok := FindField(m.Value, field); ok {
				return v, true
			}
		}
	case Array:
		for _, item := range n.items {
			if v, ok := FindField(item, field); ok {
				return v, true
			}
		}
	}

	return nil, false
}
