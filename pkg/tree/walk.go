package tree

// Walk visits v and every value below it depth-first, in the order the
// values appear in encoded text. If fn returns false the children of the
// current value are skipped.
func Walk(v Value, fn func(v Value) bool) {
	if !fn(v) {
		return
	}
	switch x := v.(type) {
	case *Object:
		for _, k := range x.OrderedKeys() {
			child, _ := x.Get(k)
			Walk(child, fn)
		}
	case *Array:
		for _, it := range x.Items {
			Walk(it, fn)
		}
	}
}

// Objects calls fn for every object in v in encoded-text order.
func Objects(v Value, fn func(o *Object)) {
	Walk(v, func(v Value) bool {
		if o, ok := v.(*Object); ok {
			fn(o)
		}
		return true
	})
}

// Equal reports whether a and b are structurally equal. Object key order is
// ignored; array order is not. Numbers compare by literal text, falling back
// to numeric value so that 1.0 and 1.00 are equal.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Null:
		return true
	case Bool:
		return x == b.(Bool)
	case String:
		return x == b.(String)
	case Number:
		y := b.(Number)
		if x == y {
			return true
		}
		fx, ok1 := x.Float64()
		fy, ok2 := y.Float64()
		return ok1 && ok2 && fx == fy
	case *Array:
		y := b.(*Array)
		if len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	case *Object:
		y := b.(*Object)
		if x.Len() != y.Len() {
			return false
		}
		for _, k := range x.keys {
			yv, ok := y.Get(k)
			if !ok || !Equal(x.vals[k], yv) {
				return false
			}
		}
		return true
	}
	return false
}
