package canopy

import (
	"fmt"
	"math/big"

	"github.com/canopydb/canopy/internal/record"
)

// Conversion between the public property model and the record wire form.

func propToWire(p PropertyState) record.Property {
	w := record.Property{
		Name:  p.Name(),
		Kind:  uint8(p.Kind()),
		Array: p.IsArray(),
	}
	for _, v := range p.values {
		w.Values = append(w.Values, valueToWire(v))
	}
	return w
}

func valueToWire(v Value) record.Value {
	switch v.Kind() {
	case KindBool:
		b := v.Bool()
		return record.Value{Bool: &b}
	case KindLong:
		n := v.Long()
		return record.Value{Int: &n}
	case KindDouble:
		f := v.Double()
		return record.Value{Float: &f}
	case KindDecimal:
		s := v.dec.RatString()
		return record.Value{Str: &s}
	case KindDate:
		t := v.Date()
		return record.Value{Time: &t}
	case KindString, KindName, KindPath, KindReference:
		s := v.s
		return record.Value{Str: &s}
	case KindBinary:
		ref := v.Blob()
		return record.Value{Blob: &ref}
	}
	return record.Value{}
}

func propFromWire(w record.Property) (PropertyState, error) {
	kind := Kind(w.Kind)
	values := make([]Value, 0, len(w.Values))
	for _, wv := range w.Values {
		v, err := valueFromWire(kind, wv)
		if err != nil {
			return PropertyState{}, fmt.Errorf("property %q: %w", w.Name, err)
		}
		values = append(values, v)
	}
	if w.Array {
		return NewArrayProperty(w.Name, kind, values...), nil
	}
	if len(values) != 1 {
		return PropertyState{}, fmt.Errorf("property %q: scalar with %d values", w.Name, len(values))
	}
	return PropertyState{name: w.Name, kind: kind, values: values}, nil
}

func valueFromWire(kind Kind, w record.Value) (Value, error) {
	switch kind {
	case KindBool:
		if w.Bool == nil {
			return Value{}, fmt.Errorf("missing bool payload")
		}
		return BoolValue(*w.Bool), nil
	case KindLong:
		if w.Int == nil {
			return Value{}, fmt.Errorf("missing long payload")
		}
		return LongValue(*w.Int), nil
	case KindDouble:
		if w.Float == nil {
			return Value{}, fmt.Errorf("missing double payload")
		}
		return DoubleValue(*w.Float), nil
	case KindDecimal:
		if w.Str == nil {
			return Value{}, fmt.Errorf("missing decimal payload")
		}
		r, ok := new(big.Rat).SetString(*w.Str)
		if !ok {
			return Value{}, fmt.Errorf("malformed decimal %q", *w.Str)
		}
		return Value{kind: KindDecimal, dec: r}, nil
	case KindDate:
		if w.Time == nil {
			return Value{}, fmt.Errorf("missing date payload")
		}
		return DateValue(*w.Time), nil
	case KindString, KindName, KindPath, KindReference:
		if w.Str == nil {
			return Value{}, fmt.Errorf("missing string payload")
		}
		return Value{kind: kind, s: *w.Str}, nil
	case KindBinary:
		if w.Blob == nil {
			return Value{}, fmt.Errorf("missing binary payload")
		}
		return BinaryValue(*w.Blob), nil
	}
	return Value{}, fmt.Errorf("unknown kind %d", kind)
}

// writeTree persists every not-yet-persisted subtree of st and returns the
// id of the root record. Record ids are computed bottom-up before anything
// is written, so the batch lands in one store round trip.
func writeTree(rs record.Store, st NodeState) (record.ID, error) {
	var batch []*record.Node
	id, err := collectTree(st, &batch)
	if err != nil {
		return "", err
	}
	if len(batch) > 0 {
		if _, err := rs.PutMulti(batch); err != nil {
			return "", fmt.Errorf("store records: %w", err)
		}
	}
	return id, nil
}

func collectTree(st NodeState, batch *[]*record.Node) (record.ID, error) {
	if id := st.recordID(); id != "" {
		return id, nil
	}
	n := &record.Node{}
	for p := range st.Properties() {
		n.Props = append(n.Props, propToWire(p))
	}
	for name, child := range st.Children() {
		cid, err := collectTree(child, batch)
		if err != nil {
			return "", err
		}
		n.Children = append(n.Children, record.Child{Name: name, ID: cid})
	}
	id, _, err := record.Encode(n)
	if err != nil {
		return "", err
	}
	*batch = append(*batch, n)
	return id, nil
}
