package canopy

// PropertyState is an immutable named property: a kind tag plus one value,
// or an ordered sequence of values for array properties.
type PropertyState struct {
	name   string
	kind   Kind
	array  bool
	values []Value
}

// NewProperty creates a single-valued property.
func NewProperty(name string, v Value) PropertyState {
	return PropertyState{name: name, kind: v.Kind(), values: []Value{v}}
}

// NewArrayProperty creates a multi-valued property. All values must share
// the given kind; an empty array is permitted.
func NewArrayProperty(name string, kind Kind, values ...Value) PropertyState {
	vs := make([]Value, len(values))
	copy(vs, values)
	return PropertyState{name: name, kind: kind, array: true, values: vs}
}

// StringProperty is shorthand for a single string property.
func StringProperty(name, s string) PropertyState {
	return NewProperty(name, StringValue(s))
}

// LongProperty is shorthand for a single long property.
func LongProperty(name string, n int64) PropertyState {
	return NewProperty(name, LongValue(n))
}

// BoolProperty is shorthand for a single boolean property.
func BoolProperty(name string, b bool) PropertyState {
	return NewProperty(name, BoolValue(b))
}

func (p PropertyState) Name() string  { return p.name }
func (p PropertyState) Kind() Kind    { return p.kind }
func (p PropertyState) IsArray() bool { return p.array }

// Value returns the single value of a non-array property, or the first
// value of an array property (zero Value if the array is empty).
func (p PropertyState) Value() Value {
	if len(p.values) == 0 {
		return Value{}
	}
	return p.values[0]
}

// Values returns a copy of the value sequence.
func (p PropertyState) Values() []Value {
	vs := make([]Value, len(p.values))
	copy(vs, p.values)
	return vs
}

// Size returns the number of values.
func (p PropertyState) Size() int { return len(p.values) }

// Equal reports structural equality of two properties.
func (p PropertyState) Equal(o PropertyState) bool {
	if p.name != o.name || p.kind != o.kind || p.array != o.array || len(p.values) != len(o.values) {
		return false
	}
	for i := range p.values {
		if !p.values[i].Equal(o.values[i]) {
			return false
		}
	}
	return true
}
