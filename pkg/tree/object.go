package tree

import "slices"

// Object is a JSON object that remembers the order its keys were added in.
// The zero value is not usable; create objects with [NewObject].
type Object struct {
	keys []string
	vals map[string]Value
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{vals: make(map[string]Value)}
}

// Len returns the number of keys.
func (o *Object) Len() int { return len(o.keys) }

// Keys returns the keys in insertion order. The slice is a copy.
func (o *Object) Keys() []string { return slices.Clone(o.keys) }

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.vals[key]
	return ok
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Set stores v under key. A new key is appended; an existing key keeps its
// position.
func (o *Object) Set(key string, v Value) *Object {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
	return o
}

// InsertBefore stores v under key, placing a new key immediately before
// the key named before. If before is absent the key is appended. An
// existing key is updated in place.
func (o *Object) InsertBefore(before, key string, v Value) {
	if _, ok := o.vals[key]; ok {
		o.vals[key] = v
		return
	}
	o.vals[key] = v
	i := slices.Index(o.keys, before)
	if i < 0 {
		o.keys = append(o.keys, key)
		return
	}
	o.keys = slices.Insert(o.keys, i, key)
}

// Delete removes key and reports whether it was present.
func (o *Object) Delete(key string) bool {
	if _, ok := o.vals[key]; !ok {
		return false
	}
	delete(o.vals, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
	return true
}

// Object returns the object stored under key, or nil.
func (o *Object) Object(key string) *Object {
	v, _ := o.vals[key].(*Object)
	return v
}

// String returns the string stored under key.
func (o *Object) String(key string) (string, bool) {
	v, ok := o.vals[key].(String)
	return string(v), ok
}

// Int returns the integer stored under key.
func (o *Object) Int(key string) (int, bool) {
	n, ok := o.vals[key].(Number)
	if !ok {
		return 0, false
	}
	i, ok := n.Int64()
	return int(i), ok
}

// Float returns the number stored under key as a float.
func (o *Object) Float(key string) (float64, bool) {
	n, ok := o.vals[key].(Number)
	if !ok {
		return 0, false
	}
	return n.Float64()
}

// ID returns the reference id declared by the object.
func (o *Object) ID() (string, bool) {
	return o.String(KeyID)
}

// Ref returns the reference id an alias object points to.
func (o *Object) Ref() (string, bool) {
	return o.String(KeyRef)
}

// IsAlias reports whether the object is a "$ref" alias.
func (o *Object) IsAlias() bool {
	return o.Has(KeyRef)
}

// Type returns the "$type" discriminator.
func (o *Object) Type() (string, bool) {
	return o.String(KeyType)
}

// Values returns the item array of a list container ("$values"), or nil
// when the object is not a list container.
func (o *Object) Values() *Array {
	v, _ := o.vals[KeyValues].(*Array)
	return v
}

// Clone returns a deep copy of the object.
func (o *Object) Clone() *Object {
	out := &Object{keys: slices.Clone(o.keys), vals: make(map[string]Value, len(o.vals))}
	for k, v := range o.vals {
		out.vals[k] = Clone(v)
	}
	return out
}

// OrderedKeys returns the keys in serialization order: the reserved keys
// "$id", "$ref", "$type" and "$values" that are present come first in that
// order, followed by every other key in insertion order.
func (o *Object) OrderedKeys() []string {
	out := make([]string, 0, len(o.keys))
	for _, k := range leadingKeys {
		if o.Has(k) {
			out = append(out, k)
		}
	}
	for _, k := range o.keys {
		if !isLeadingKey(k) {
			out = append(out, k)
		}
	}
	return out
}

func isLeadingKey(k string) bool {
	for _, l := range leadingKeys {
		if k == l {
			return true
		}
	}
	return false
}

// NewAlias returns an alias object pointing at id.
func NewAlias(id string) *Object {
	return NewObject().Set(KeyRef, String(id))
}

// NewList returns a list container with the given reference id and items.
func NewList(id string, items ...Value) *Object {
	if items == nil {
		items = []Value{}
	}
	return NewObject().Set(KeyID, String(id)).Set(KeyValues, NewArray(items...))
}
