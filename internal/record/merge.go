package record

import "path"

// nodeIO is the minimal record access merge3 needs. Store implementations
// pass an unlocked view so the merge can run inside their own critical
// sections.
type nodeIO interface {
	get(id ID) (*Node, error)
	put(n *Node) (ID, error)
}

// merge3 replays the changes between base and theirs on top of ours and
// returns the id of the merged tree. An empty id stands for an absent node.
//
// Properties resolve last-write-wins in favor of the incoming side on
// genuine overlap; disjoint changes union. A node deleted on one side and
// modified on the other cannot be reconciled and fails with ConflictError.
func merge3(io nodeIO, base, ours, theirs ID, at string) (ID, error) {
	if theirs == base || ours == theirs {
		return ours, nil
	}
	if ours == base {
		return theirs, nil
	}

	baseNode, err := loadOrEmpty(io, base)
	if err != nil {
		return "", err
	}
	oursNode, err := loadOrEmpty(io, ours)
	if err != nil {
		return "", err
	}
	theirsNode, err := loadOrEmpty(io, theirs)
	if err != nil {
		return "", err
	}

	merged := &Node{}
	merged.Props = mergeProps(baseNode, oursNode, theirsNode)
	merged.Children, err = mergeChildren(io, baseNode, oursNode, theirsNode, at)
	if err != nil {
		return "", err
	}
	return io.put(merged)
}

func loadOrEmpty(io nodeIO, id ID) (*Node, error) {
	if id == "" {
		return &Node{}, nil
	}
	return io.get(id)
}

func mergeProps(base, ours, theirs *Node) []Property {
	var out []Property
	for _, p := range ours.Props {
		if tp, ok := theirs.Prop(p.Name); ok {
			bp, inBase := base.Prop(p.Name)
			if !inBase || !propEqual(bp, tp) {
				// theirs changed this property; incoming side wins
				out = append(out, tp)
				continue
			}
			out = append(out, p)
			continue
		}
		if bp, inBase := base.Prop(p.Name); inBase && propEqual(bp, p) {
			// removed by theirs, untouched by ours
			continue
		}
		out = append(out, p)
	}
	for _, tp := range theirs.Props {
		if _, ok := ours.Prop(tp.Name); ok {
			continue
		}
		if bp, inBase := base.Prop(tp.Name); inBase && propEqual(bp, tp) {
			// removed by ours, untouched by theirs
			continue
		}
		out = append(out, tp)
	}
	return out
}

func mergeChildren(io nodeIO, base, ours, theirs *Node, at string) ([]Child, error) {
	var out []Child
	seen := make(map[string]bool)
	for _, oc := range ours.Children {
		seen[oc.Name] = true
		merged, keep, err := mergeChild(io, base, oc.ID, theirs, oc.Name, at)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, Child{Name: oc.Name, ID: merged})
		}
	}
	for _, tc := range theirs.Children {
		if seen[tc.Name] {
			continue
		}
		var baseID ID
		if bc, ok := base.Lookup(tc.Name); ok {
			baseID = bc.ID
		}
		if baseID == tc.ID {
			// existed at base, deleted by ours, untouched by theirs
			continue
		}
		if baseID != "" {
			return nil, &ConflictError{
				Path: path.Join(at, tc.Name),
				Msg:  "deleted by one side, modified by the other",
			}
		}
		out = append(out, tc)
	}
	return out, nil
}

func mergeChild(io nodeIO, base *Node, oursID ID, theirs *Node, name, at string) (ID, bool, error) {
	var baseID, theirsID ID
	if bc, ok := base.Lookup(name); ok {
		baseID = bc.ID
	}
	tc, inTheirs := theirs.Lookup(name)
	if inTheirs {
		theirsID = tc.ID
	}
	if !inTheirs && baseID != "" {
		if oursID == baseID {
			// deleted by theirs, untouched by ours
			return "", false, nil
		}
		return "", false, &ConflictError{
			Path: path.Join(at, name),
			Msg:  "deleted by one side, modified by the other",
		}
	}
	merged, err := merge3(io, baseID, oursID, theirsID, path.Join(at, name))
	if err != nil {
		return "", false, err
	}
	return merged, merged != "", nil
}

func propEqual(a, b Property) bool {
	if a.Name != b.Name || a.Kind != b.Kind || a.Array != b.Array || len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if !valueEqual(a.Values[i], b.Values[i]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b Value) bool {
	switch {
	case a.Bool != nil:
		return b.Bool != nil && *a.Bool == *b.Bool
	case a.Int != nil:
		return b.Int != nil && *a.Int == *b.Int
	case a.Float != nil:
		return b.Float != nil && *a.Float == *b.Float
	case a.Str != nil:
		return b.Str != nil && *a.Str == *b.Str
	case a.Time != nil:
		return b.Time != nil && a.Time.Equal(*b.Time)
	case a.Blob != nil:
		return b.Blob != nil && *a.Blob == *b.Blob
	}
	return b.Bool == nil && b.Int == nil && b.Float == nil &&
		b.Str == nil && b.Time == nil && b.Blob == nil
}
