package terrain

import (
	"fmt"
	"slices"
	"strings"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/tree"
)

// Fixed keys that follow the property bag of every node object.
const (
	keyNodeID    = "Id"
	keyName      = "Name"
	keyPosition  = "Position"
	keyPorts     = "Ports"
	keyModifiers = "Modifiers"

	keyPortType   = "Type"
	keyExporting  = "IsExporting"
	keyParent     = "Parent"
	keyRecord     = "Record"
	keyRecFrom    = "From"
	keyRecTo      = "To"
	keyRecFromPt  = "FromPort"
	keyRecToPt    = "ToPort"
	keyRecIsValid = "IsValid"
)

// fixedNodeKeys are the node keys that are not part of the property bag.
var fixedNodeKeys = []string{keyNodeID, keyName, keyPosition, keyPorts, keyModifiers}

// IsReservedNodeKey reports whether key belongs to the fixed part of a
// node object rather than its property bag.
func IsReservedNodeKey(key string) bool {
	return strings.HasPrefix(key, "$") || slices.Contains(fixedNodeKeys, key)
}

// Point is a position on the graph canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a view of one node object inside a document.
type Node struct {
	ID  int
	obj *tree.Object
	doc *Document
}

// Object returns the underlying node object.
func (n *Node) Object() *tree.Object { return n.obj }

// Name returns the display name.
func (n *Node) Name() string {
	s, _ := n.obj.String(keyName)
	return s
}

// Type returns the fully qualified type discriminator.
func (n *Node) Type() string {
	s, _ := n.obj.Type()
	return s
}

// ShortType returns the unqualified type name, e.g. "Mountain" for
// "QuadSpinner.Gaea.Nodes.Mountain, Gaea.Nodes".
func (n *Node) ShortType() string {
	return ShortTypeName(n.Type())
}

// Position returns the canvas position.
func (n *Node) Position() Point {
	pos := n.doc.deref(n.obj.Object(keyPosition))
	if pos == nil {
		return Point{}
	}
	x, _ := pos.Float("X")
	y, _ := pos.Float("Y")
	return Point{X: x, Y: y}
}

// PropertyKeys returns the keys of the property bag in document order.
func (n *Node) PropertyKeys() []string {
	var keys []string
	for _, k := range n.obj.Keys() {
		if !IsReservedNodeKey(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Property returns the value of a property bag entry.
func (n *Node) Property(key string) (tree.Value, bool) {
	if IsReservedNodeKey(key) {
		return nil, false
	}
	return n.obj.Get(key)
}

// Ports returns the node's ports in order.
func (n *Node) Ports() []*Port {
	list := n.doc.deref(n.obj.Object(keyPorts))
	if list == nil || list.Values() == nil {
		return nil
	}
	var out []*Port
	for _, it := range list.Values().Items {
		o, ok := it.(*tree.Object)
		if !ok {
			continue
		}
		if o = n.doc.deref(o); o != nil {
			out = append(out, &Port{obj: o, doc: n.doc})
		}
	}
	return out
}

// Port returns the port with the given name, or a NOT_FOUND error.
func (n *Node) Port(name string) (*Port, error) {
	for _, p := range n.Ports() {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, gerrors.New(gerrors.ErrCodeNotFound, "port %q not found on node %d", name, n.ID)
}

// Port is a view of one port object.
type Port struct {
	obj *tree.Object
	doc *Document
}

// Object returns the underlying port object.
func (p *Port) Object() *tree.Object { return p.obj }

// Name returns the port name.
func (p *Port) Name() string {
	s, _ := p.obj.String(keyName)
	return s
}

// Kind returns the capability tag.
func (p *Port) Kind() PortKind {
	s, _ := p.obj.String(keyPortType)
	return PortKind(s)
}

// IsExporting returns the export flag.
func (p *Port) IsExporting() bool {
	v, _ := p.obj.Get(keyExporting)
	b, _ := v.(tree.Bool)
	return bool(b)
}

// Record returns the connection record attached to the port.
func (p *Port) Record() (Connection, bool) {
	rec := p.doc.deref(p.obj.Object(keyRecord))
	if rec == nil {
		return Connection{}, false
	}
	return connectionFrom(rec), true
}

// Connection is a directed edge as stored in a destination port's record.
type Connection struct {
	From     int    `json:"from"`
	FromPort string `json:"from_port"`
	To       int    `json:"to"`
	ToPort   string `json:"to_port"`
	IsValid  bool   `json:"is_valid"`
}

// String formats the connection as "1:Out -> 2:In".
func (c Connection) String() string {
	return fmt.Sprintf("%d:%s -> %d:%s", c.From, c.FromPort, c.To, c.ToPort)
}

func connectionFrom(rec *tree.Object) Connection {
	from, _ := rec.Int(keyRecFrom)
	to, _ := rec.Int(keyRecTo)
	fromPort, _ := rec.String(keyRecFromPt)
	toPort, _ := rec.String(keyRecToPt)
	v, _ := rec.Get(keyRecIsValid)
	valid, _ := v.(tree.Bool)
	return Connection{From: from, FromPort: fromPort, To: to, ToPort: toPort, IsValid: bool(valid)}
}

// Connections returns every connection record in the graph, ordered by
// destination node and port position.
func (d *Document) Connections() []Connection {
	var out []Connection
	for _, n := range d.AllNodes() {
		for _, p := range n.Ports() {
			if c, ok := p.Record(); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// Inbound returns the connections whose destination is node id.
func (d *Document) Inbound(id int) []Connection {
	var out []Connection
	for _, c := range d.Connections() {
		if c.To == id {
			out = append(out, c)
		}
	}
	return out
}

// ShortTypeName strips the namespace and assembly from a type
// discriminator.
func ShortTypeName(t string) string {
	if i := strings.IndexByte(t, ','); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimSpace(t)
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return t
}
