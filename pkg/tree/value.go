package tree

import (
	"math"
	"strconv"
	"strings"
)

// Reserved keys that carry reference and type information.
const (
	KeyID     = "$id"
	KeyRef    = "$ref"
	KeyType   = "$type"
	KeyValues = "$values"
)

// leadingKeys is the fixed order of keys that must start every object.
var leadingKeys = [...]string{KeyID, KeyRef, KeyType, KeyValues}

// Kind identifies the JSON type of a [Value].
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the lower-case JSON name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "unknown"
}

// Value is a node of the tree: one of [Null], [Bool], [Number], [String],
// *[Array] or *[Object].
type Value interface {
	Kind() Kind
}

// Null is the JSON null literal.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// String is a JSON string.
type String string

// Number is a JSON number kept as its literal text.
type Number string

func (Null) Kind() Kind    { return KindNull }
func (Bool) Kind() Kind    { return KindBool }
func (String) Kind() Kind  { return KindString }
func (Number) Kind() Kind  { return KindNumber }
func (*Array) Kind() Kind  { return KindArray }
func (*Object) Kind() Kind { return KindObject }

// Int returns the number for an integer.
func Int(n int) Number {
	return Number(strconv.Itoa(n))
}

// Float returns the number for a float, always written with a fractional
// part (26000 becomes "26000.0") the way the project files store floats.
func Float(f float64) Number {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "0.0"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return Number(s)
}

// Int64 parses the number as an integer. Literals with a zero fractional
// part ("12.0") are accepted.
func (n Number) Int64() (int64, bool) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// Float64 parses the number as a float.
func (n Number) Float64() (float64, bool) {
	f, err := strconv.ParseFloat(string(n), 64)
	return f, err == nil
}

// Array is an ordered sequence of values.
type Array struct {
	Items []Value
}

// NewArray returns an array holding items.
func NewArray(items ...Value) *Array {
	return &Array{Items: items}
}

// Len returns the number of items.
func (a *Array) Len() int { return len(a.Items) }

// Append adds v to the end of the array.
func (a *Array) Append(v Value) { a.Items = append(a.Items, v) }

// RemoveAt deletes the item at index i.
func (a *Array) RemoveAt(i int) {
	a.Items = append(a.Items[:i], a.Items[i+1:]...)
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch x := v.(type) {
	case *Object:
		return x.Clone()
	case *Array:
		out := &Array{Items: make([]Value, len(x.Items))}
		for i, it := range x.Items {
			out.Items[i] = Clone(it)
		}
		return out
	default:
		return v
	}
}
