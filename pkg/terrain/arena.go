package terrain

import (
	"strconv"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/tree"
)

// ScanMaxID returns the largest integer reference id declared anywhere in
// v. Non-numeric ids are ignored; a tree without ids yields 0.
func ScanMaxID(v tree.Value) int {
	max := 0
	tree.Objects(v, func(o *tree.Object) {
		id, ok := o.ID()
		if !ok {
			return
		}
		if n, err := strconv.Atoi(id); err == nil && n > max {
			max = n
		}
	})
	return max
}

// Allocator mints reference ids that do not occur in the document it was
// created for. A single Allocator must be shared by every step of one
// logical mutation.
type Allocator struct {
	next int
}

// NewAllocator returns an allocator whose first id is one above the largest
// id currently declared in d.
func NewAllocator(d *Document) *Allocator {
	return &Allocator{next: ScanMaxID(d.Root) + 1}
}

// Next returns a fresh id.
func (a *Allocator) Next() string {
	id := strconv.Itoa(a.next)
	a.next++
	return id
}

// Index returns the reference arena: every object that declares a "$id",
// keyed by that id. The index is rebuilt after mutations.
func (d *Document) Index() map[string]*tree.Object {
	if d.index == nil {
		idx := make(map[string]*tree.Object)
		tree.Objects(d.Root, func(o *tree.Object) {
			if id, ok := o.ID(); ok {
				if _, dup := idx[id]; !dup {
					idx[id] = o
				}
			}
		})
		d.index = idx
	}
	return d.index
}

// Resolve returns the object that declares id, or nil.
func (d *Document) Resolve(id string) *tree.Object {
	return d.Index()[id]
}

// touch drops cached derived state after a mutation.
func (d *Document) touch() {
	d.index = nil
}

// Validate checks the reference and graph invariants of the document:
//   - reference ids are unique
//   - every alias resolves, and its target is declared earlier in the text
//   - node keys are positive integers matching the node's Id field
//   - port names are unique within each node
//   - connection records point at existing nodes
//
// Violations are reported as FORMAT_ERROR.
func (d *Document) Validate() error {
	declared := make(map[string]bool)
	var refErr error
	tree.Objects(d.Root, func(o *tree.Object) {
		if refErr != nil {
			return
		}
		if id, ok := o.ID(); ok {
			if declared[id] {
				refErr = gerrors.New(gerrors.ErrCodeFormat, "duplicate reference id %q", id)
				return
			}
			declared[id] = true
		}
		if ref, ok := o.Ref(); ok && !declared[ref] {
			if d.Resolve(ref) == nil {
				refErr = gerrors.New(gerrors.ErrCodeFormat, "alias to unknown reference id %q", ref)
			} else {
				refErr = gerrors.New(gerrors.ErrCodeFormat, "alias to reference id %q precedes its declaration", ref)
			}
		}
	})
	if refErr != nil {
		return refErr
	}

	for _, k := range d.nodes.Keys() {
		if k == tree.KeyID {
			continue
		}
		id, ok := parseNodeKey(k)
		if !ok {
			return gerrors.New(gerrors.ErrCodeFormat, "node key %q is not a positive integer", k)
		}
		n, err := d.Node(id)
		if err != nil {
			return gerrors.New(gerrors.ErrCodeFormat, "node key %q does not hold an object", k)
		}
		if got, ok := n.obj.Int(keyNodeID); !ok || got != id {
			return gerrors.New(gerrors.ErrCodeFormat, "node key %q has Id %d", k, got)
		}
		seen := make(map[string]bool)
		for _, p := range n.Ports() {
			if seen[p.Name()] {
				return gerrors.New(gerrors.ErrCodeFormat, "node %d has duplicate port %q", id, p.Name())
			}
			seen[p.Name()] = true
			if c, ok := p.Record(); ok {
				if _, err := d.Node(c.From); err != nil {
					return gerrors.New(gerrors.ErrCodeFormat, "port %q on node %d references missing source node %d", p.Name(), id, c.From)
				}
				if c.To != id {
					return gerrors.New(gerrors.ErrCodeFormat, "port %q on node %d records destination %d", p.Name(), id, c.To)
				}
			}
		}
	}
	return nil
}

// pruneDanglingAliases removes aliases whose target no longer exists:
// alias items are dropped from arrays and alias fields are set to null.
func (d *Document) pruneDanglingAliases() {
	d.touch()
	idx := d.Index()
	dangling := func(v tree.Value) bool {
		o, ok := v.(*tree.Object)
		if !ok {
			return false
		}
		ref, ok := o.Ref()
		return ok && idx[ref] == nil
	}
	tree.Walk(d.Root, func(v tree.Value) bool {
		switch x := v.(type) {
		case *tree.Object:
			for _, k := range x.Keys() {
				if child, _ := x.Get(k); dangling(child) {
					x.Set(k, tree.Null{})
				}
			}
		case *tree.Array:
			for i := len(x.Items) - 1; i >= 0; i-- {
				if dangling(x.Items[i]) {
					x.RemoveAt(i)
				}
			}
		}
		return true
	})
}
