package tree

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DefaultIndent is the per-level indentation used by [Marshal].
const DefaultIndent = "  "

// Marshal encodes v with [DefaultIndent].
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, v, DefaultIndent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes v to w as indented JSON followed by a newline.
//
// Every object is written in [Object.OrderedKeys] order. Numbers are written
// as their literal text and strings are escaped without HTML escaping, so
// values such as "<Builds>" survive unchanged. Empty arrays and objects are
// written as [] and {}.
func Encode(w io.Writer, v Value, indent string) error {
	e := &encoder{w: bufio.NewWriter(w), indent: indent}
	e.value(v, 0)
	e.w.WriteByte('\n')
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

type encoder struct {
	w      *bufio.Writer
	indent string
	err    error
}

func (e *encoder) value(v Value, depth int) {
	if e.err != nil {
		return
	}
	switch x := v.(type) {
	case nil, Null:
		e.w.WriteString("null")
	case Bool:
		if x {
			e.w.WriteString("true")
		} else {
			e.w.WriteString("false")
		}
	case Number:
		if !isNumberLiteral(string(x)) {
			e.err = fmt.Errorf("invalid number literal %q", string(x))
			return
		}
		e.w.WriteString(string(x))
	case String:
		e.string(string(x))
	case *Array:
		e.array(x, depth)
	case *Object:
		e.object(x, depth)
	default:
		e.err = fmt.Errorf("unsupported value %T", v)
	}
}

func (e *encoder) array(a *Array, depth int) {
	if len(a.Items) == 0 {
		e.w.WriteString("[]")
		return
	}
	e.w.WriteByte('[')
	for i, it := range a.Items {
		if i > 0 {
			e.w.WriteByte(',')
		}
		e.newline(depth + 1)
		e.value(it, depth+1)
	}
	e.newline(depth)
	e.w.WriteByte(']')
}

func (e *encoder) object(o *Object, depth int) {
	if o.Len() == 0 {
		e.w.WriteString("{}")
		return
	}
	e.w.WriteByte('{')
	for i, k := range o.OrderedKeys() {
		if i > 0 {
			e.w.WriteByte(',')
		}
		e.newline(depth + 1)
		e.string(k)
		e.w.WriteString(": ")
		v, _ := o.Get(k)
		e.value(v, depth+1)
	}
	e.newline(depth)
	e.w.WriteByte('}')
}

func (e *encoder) newline(depth int) {
	e.w.WriteByte('\n')
	for i := 0; i < depth; i++ {
		e.w.WriteString(e.indent)
	}
}

func isNumberLiteral(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	return !strings.ContainsAny(s, " \t\r\n") && json.Valid([]byte(s))
}

func (e *encoder) string(s string) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		e.err = err
		return
	}
	e.w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}
