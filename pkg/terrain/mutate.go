package terrain

import (
	"strconv"
	"strings"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/tree"
)

// Canvas placement for nodes added without an explicit position.
const (
	defaultOriginX = 26000.0
	defaultOriginY = 26000.0
	defaultSpacing = 400.0
)

// NoSelection is the SelectedNode value meaning "nothing selected".
const NoSelection = -1

// NodeOptions are the optional parts of a new node.
type NodeOptions struct {
	// Name is the display name. Defaults to the short type name.
	Name string
	// Position is the canvas position. Defaults to a slot to the right of
	// the existing nodes.
	Position *Point
	// Properties are inlined into the node's property bag in order.
	Properties *tree.Object
}

// AddNode creates a node of the given type with one port per entry of
// ports and returns its id, which is one above the largest existing node
// id. All reference ids the node needs come from a single allocator.
func (d *Document) AddNode(typeName string, ports []PortSpec, opts NodeOptions) (int, error) {
	typeName = strings.TrimSpace(typeName)
	if typeName == "" {
		return 0, gerrors.New(gerrors.ErrCodeInvalidInput, "node type cannot be empty")
	}
	name := opts.Name
	if name == "" {
		name = ShortTypeName(typeName)
	}
	if err := gerrors.ValidateNodeName(name); err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(ports))
	for _, p := range ports {
		if p.Name == "" {
			return 0, gerrors.New(gerrors.ErrCodeInvalidInput, "port name cannot be empty")
		}
		if seen[p.Name] {
			return 0, gerrors.New(gerrors.ErrCodeInvalidInput, "duplicate port %q", p.Name)
		}
		seen[p.Name] = true
		if p.Kind == "" {
			return 0, gerrors.New(gerrors.ErrCodeInvalidInput, "port %q has no kind", p.Name)
		}
	}
	if opts.Properties != nil {
		for _, k := range opts.Properties.Keys() {
			if err := checkPropertyKey(k); err != nil {
				return 0, err
			}
			v, _ := opts.Properties.Get(k)
			if err := checkPropertyValue(k, v); err != nil {
				return 0, err
			}
		}
	}

	id := d.nextNodeID()
	pos := d.defaultPosition()
	if opts.Position != nil {
		pos = *opts.Position
	}

	alloc := NewAllocator(d)
	node := tree.NewObject()
	nodeRef := alloc.Next()
	node.Set(tree.KeyID, tree.String(nodeRef))
	node.Set(tree.KeyType, tree.String(typeName))
	if opts.Properties != nil {
		for _, k := range opts.Properties.Keys() {
			v, _ := opts.Properties.Get(k)
			node.Set(k, withFreshIDs(tree.Clone(v), alloc))
		}
	}
	node.Set(keyNodeID, tree.Int(id))
	node.Set(keyName, tree.String(name))
	node.Set(keyPosition, tree.NewObject().
		Set(tree.KeyID, tree.String(alloc.Next())).
		Set("X", tree.Float(pos.X)).
		Set("Y", tree.Float(pos.Y)))

	portList := tree.NewObject().Set(tree.KeyID, tree.String(alloc.Next()))
	items := make([]tree.Value, 0, len(ports))
	for _, p := range ports {
		items = append(items, tree.NewObject().
			Set(tree.KeyID, tree.String(alloc.Next())).
			Set(keyName, tree.String(p.Name)).
			Set(keyPortType, tree.String(string(p.Kind))).
			Set(keyExporting, tree.Bool(true)).
			Set(keyParent, tree.NewAlias(nodeRef)))
	}
	portList.Set(tree.KeyValues, tree.NewArray(items...))
	node.Set(keyPorts, portList)
	node.Set(keyModifiers, tree.NewList(alloc.Next()))

	d.nodes.Set(strconv.Itoa(id), node)
	d.touch()
	return id, nil
}

// RemoveNode deletes a node, every connection record that uses it as a
// source, any UI selection pointing at it, and aliases left dangling by
// the deletion.
func (d *Document) RemoveNode(id int) error {
	if _, err := d.Node(id); err != nil {
		return err
	}
	d.nodes.Delete(strconv.Itoa(id))

	for _, n := range d.AllNodes() {
		for _, p := range n.Ports() {
			if c, ok := p.Record(); ok && (c.From == id || c.To == id) {
				p.obj.Delete(keyRecord)
			}
		}
	}
	if state := d.State(); state != nil {
		if sel, ok := state.Int(keySelected); ok && sel == id {
			state.Set(keySelected, tree.Int(NoSelection))
		}
	}
	d.pruneDanglingAliases()
	return nil
}

// ConnectPort wires fromPort of node from to toPort of node to. The
// destination port's record is replaced unconditionally; the source port
// is left untouched.
//
// Port capabilities are not matched against each other, with one
// exception: a record is never attached to a port whose tag marks it as an
// output.
func (d *Document) ConnectPort(from int, fromPort string, to int, toPort string) error {
	src, err := d.Node(from)
	if err != nil {
		return err
	}
	dst, err := d.Node(to)
	if err != nil {
		return err
	}
	if _, err := src.Port(fromPort); err != nil {
		return err
	}
	in, err := dst.Port(toPort)
	if err != nil {
		return err
	}
	if from == to {
		return gerrors.New(gerrors.ErrCodeInvalidInput, "cannot connect node %d to itself", from)
	}
	if k := in.Kind(); k.IsOutput() {
		return gerrors.New(gerrors.ErrCodeInvalidInput, "port %q on node %d is an output (%s)", toPort, to, k)
	}

	alloc := NewAllocator(d)
	rec := tree.NewObject().
		Set(tree.KeyID, tree.String(alloc.Next())).
		Set(keyRecFrom, tree.Int(from)).
		Set(keyRecTo, tree.Int(to)).
		Set(keyRecFromPt, tree.String(fromPort)).
		Set(keyRecToPt, tree.String(toPort)).
		Set(keyRecIsValid, tree.Bool(true))
	_, replaced := in.Record()
	in.obj.Set(keyRecord, rec)
	if replaced {
		d.pruneDanglingAliases()
	} else {
		d.touch()
	}
	return nil
}

// DisconnectPort removes the connection record from a port. It fails with
// ALREADY_DISCONNECTED when the port holds no record.
func (d *Document) DisconnectPort(id int, port string) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	p, err := n.Port(port)
	if err != nil {
		return err
	}
	if _, ok := p.Record(); !ok {
		return gerrors.New(gerrors.ErrCodeAlreadyDisconnected, "port %q on node %d is not connected", port, id)
	}
	p.obj.Delete(keyRecord)
	d.pruneDanglingAliases()
	return nil
}

// SetProperty stores value under key in the node's property bag. An
// existing key keeps its position; a new key is placed after the existing
// properties and before the fixed node keys. Values are not checked
// against the node type. Nested objects receive fresh reference ids.
func (d *Document) SetProperty(id int, key string, value tree.Value) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	if err := checkPropertyKey(key); err != nil {
		return err
	}
	if value == nil {
		value = tree.Null{}
	}
	if err := checkPropertyValue(key, value); err != nil {
		return err
	}

	value = withFreshIDs(tree.Clone(value), NewAllocator(d))
	if n.obj.Has(key) {
		n.obj.Set(key, value)
	} else {
		n.obj.InsertBefore(firstFixedKey(n.obj), key, value)
	}
	d.pruneDanglingAliases()
	return nil
}

// RemoveProperty deletes key from the node's property bag.
func (d *Document) RemoveProperty(id int, key string) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	if IsReservedNodeKey(key) || !n.obj.Has(key) {
		return gerrors.New(gerrors.ErrCodeNotFound, "property %q not found on node %d", key, id)
	}
	n.obj.Delete(key)
	d.pruneDanglingAliases()
	return nil
}

// MoveNode sets the canvas position of a node.
func (d *Document) MoveNode(id int, p Point) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	pos := d.deref(n.obj.Object(keyPosition))
	if pos == nil {
		pos = tree.NewObject().Set(tree.KeyID, tree.String(NewAllocator(d).Next()))
		n.obj.InsertBefore(keyPorts, keyPosition, pos)
	}
	pos.Set("X", tree.Float(p.X))
	pos.Set("Y", tree.Float(p.Y))
	d.touch()
	return nil
}

// RenameNode sets the display name of a node.
func (d *Document) RenameNode(id int, name string) error {
	n, err := d.Node(id)
	if err != nil {
		return err
	}
	if err := gerrors.ValidateNodeName(name); err != nil {
		return err
	}
	n.obj.Set(keyName, tree.String(name))
	return nil
}

func (d *Document) nextNodeID() int {
	max := 0
	for _, id := range d.NodeIDs() {
		if id > max {
			max = id
		}
	}
	return max + 1
}

func (d *Document) defaultPosition() Point {
	return Point{X: defaultOriginX + defaultSpacing*float64(d.NodeCount()), Y: defaultOriginY}
}

func firstFixedKey(node *tree.Object) string {
	for _, k := range node.Keys() {
		if !strings.HasPrefix(k, "$") && IsReservedNodeKey(k) {
			return k
		}
	}
	return ""
}

func checkPropertyKey(key string) error {
	if err := gerrors.ValidatePropertyKey(key); err != nil {
		return err
	}
	if IsReservedNodeKey(key) {
		return gerrors.New(gerrors.ErrCodeInvalidInput, "%q is a fixed node key, not a property", key)
	}
	return nil
}

// checkPropertyValue rejects values containing aliases: they would point
// into parts of the document the caller cannot see.
func checkPropertyValue(key string, v tree.Value) error {
	var err error
	tree.Objects(v, func(o *tree.Object) {
		if err == nil && o.IsAlias() {
			err = gerrors.New(gerrors.ErrCodeInvalidInput, "property %q contains a %s alias", key, tree.KeyRef)
		}
	})
	return err
}

// withFreshIDs gives every object in v a newly allocated "$id", replacing
// any id the caller supplied.
func withFreshIDs(v tree.Value, alloc *Allocator) tree.Value {
	tree.Objects(v, func(o *tree.Object) {
		o.Set(tree.KeyID, tree.String(alloc.Next()))
	})
	return v
}
