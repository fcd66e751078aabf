package canopy

import (
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// Kind tags the type of a property value.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindLong
	KindDouble
	KindDecimal
	KindDate
	KindString
	KindName
	KindPath
	KindReference
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	case KindString:
		return "string"
	case KindName:
		return "name"
	case KindPath:
		return "path"
	case KindReference:
		return "reference"
	case KindBinary:
		return "binary"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a single typed property value: a closed tagged union over the
// supported kinds. The zero Value has no kind and compares equal only to
// another zero Value.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	dec  *big.Rat
	t    time.Time
	s    string
	ref  BlobRef
}

func BoolValue(b bool) Value        { return Value{kind: KindBool, b: b} }
func LongValue(n int64) Value       { return Value{kind: KindLong, i: n} }
func DoubleValue(f float64) Value   { return Value{kind: KindDouble, f: f} }
func DateValue(t time.Time) Value   { return Value{kind: KindDate, t: t} }
func StringValue(s string) Value    { return Value{kind: KindString, s: s} }
func NameValue(s string) Value      { return Value{kind: KindName, s: s} }
func PathValue(s string) Value      { return Value{kind: KindPath, s: s} }
func ReferenceValue(s string) Value { return Value{kind: KindReference, s: s} }
func BinaryValue(ref BlobRef) Value { return Value{kind: KindBinary, ref: ref} }

// DecimalValue holds an exact rational. The value is copied so callers may
// keep mutating their own Rat.
func DecimalValue(r *big.Rat) Value {
	return Value{kind: KindDecimal, dec: new(big.Rat).Set(r)}
}

// Kind returns the value's type tag.
func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() bool      { return v.b }
func (v Value) Long() int64     { return v.i }
func (v Value) Double() float64 { return v.f }
func (v Value) Date() time.Time { return v.t }
func (v Value) Blob() BlobRef   { return v.ref }

// Decimal returns a copy of the held rational, or nil for other kinds.
func (v Value) Decimal() *big.Rat {
	if v.dec == nil {
		return nil
	}
	return new(big.Rat).Set(v.dec)
}

// Text returns the string payload for the string-like kinds and a
// formatted rendering for the rest.
func (v Value) Text() string {
	switch v.kind {
	case KindString, KindName, KindPath, KindReference:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindLong:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindDecimal:
		return v.dec.RatString()
	case KindDate:
		return v.t.Format(time.RFC3339Nano)
	case KindBinary:
		return string(v.ref)
	}
	return ""
}

func (v Value) String() string { return v.Text() }

// Equal reports structural equality of two values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindLong:
		return v.i == o.i
	case KindDouble:
		return v.f == o.f
	case KindDecimal:
		return v.dec.Cmp(o.dec) == 0
	case KindDate:
		return v.t.Equal(o.t)
	case KindString, KindName, KindPath, KindReference:
		return v.s == o.s
	case KindBinary:
		return v.ref == o.ref
	}
	return true
}
