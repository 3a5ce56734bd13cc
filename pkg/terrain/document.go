package terrain

import (
	"io"
	"slices"
	"strconv"
	"strings"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/tree"
)

// Keys of the sections the core navigates.
const (
	keyAssets    = "Assets"
	keyGraph     = "Terrain"
	keyNodes     = "Nodes"
	keyMetadata  = "Metadata"
	keyState     = "State"
	keySelected  = "SelectedNode"
	keyDateSaved = "DateLastSaved"
	keyBuildDef  = "BuildDefinition"
)

// Document is a loaded project file. The shortcuts to the asset, its graph
// section and the node mapping are resolved once when the document is
// created.
type Document struct {
	Root *tree.Object

	asset *tree.Object
	graph *tree.Object
	nodes *tree.Object

	index map[string]*tree.Object
}

// Load parses a project file from r. It returns a FORMAT_ERROR when the
// text is not JSON or lacks the asset list, the graph section or the node
// mapping. Load does not close r.
func Load(r io.Reader) (*Document, error) {
	v, err := tree.Decode(r)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeFormat, err, "parse project")
	}
	return fromValue(v)
}

// LoadBytes parses a project file held in memory.
func LoadBytes(data []byte) (*Document, error) {
	v, err := tree.Parse(data)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeFormat, err, "parse project")
	}
	return fromValue(v)
}

func fromValue(v tree.Value) (*Document, error) {
	root, ok := v.(*tree.Object)
	if !ok {
		return nil, gerrors.New(gerrors.ErrCodeFormat, "project root is a %s, want object", v.Kind())
	}
	d := &Document{Root: root}

	assets := d.deref(root.Object(keyAssets))
	if assets == nil || assets.Values() == nil {
		return nil, gerrors.New(gerrors.ErrCodeFormat, "missing %s list", keyAssets)
	}
	items := assets.Values().Items
	if len(items) == 0 {
		return nil, gerrors.New(gerrors.ErrCodeFormat, "%s list is empty", keyAssets)
	}
	asset, ok := items[0].(*tree.Object)
	if !ok {
		return nil, gerrors.New(gerrors.ErrCodeFormat, "asset is a %s, want object", items[0].Kind())
	}
	d.asset = d.deref(asset)

	d.graph = d.deref(d.asset.Object(keyGraph))
	if d.graph == nil {
		return nil, gerrors.New(gerrors.ErrCodeFormat, "asset has no %s section", keyGraph)
	}
	d.nodes = d.deref(d.graph.Object(keyNodes))
	if d.nodes == nil {
		return nil, gerrors.New(gerrors.ErrCodeFormat, "%s section has no %s", keyGraph, keyNodes)
	}
	return d, nil
}

// Asset returns the project asset.
func (d *Document) Asset() *tree.Object { return d.asset }

// Graph returns the asset's graph section.
func (d *Document) Graph() *tree.Object { return d.graph }

// Nodes returns the node mapping of the graph section.
func (d *Document) Nodes() *tree.Object { return d.nodes }

// State returns the asset's UI state section, or nil.
func (d *Document) State() *tree.Object { return d.deref(d.asset.Object(keyState)) }

// BuildDefinition returns the asset's build definition section, or nil.
func (d *Document) BuildDefinition() *tree.Object {
	return d.deref(d.asset.Object(keyBuildDef))
}

// deref follows an alias to its declaration. Non-alias objects and nil
// are returned unchanged; unresolved aliases yield nil.
func (d *Document) deref(o *tree.Object) *tree.Object {
	if o == nil || !o.IsAlias() {
		return o
	}
	ref, _ := o.Ref()
	return d.Resolve(ref)
}

// NodeIDs returns the ids of all nodes in ascending order.
func (d *Document) NodeIDs() []int {
	var ids []int
	for _, k := range d.nodes.Keys() {
		if id, ok := parseNodeKey(k); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// NodeCount returns the number of nodes.
func (d *Document) NodeCount() int { return len(d.NodeIDs()) }

// Node returns the node with the given id, or a NOT_FOUND error.
func (d *Document) Node(id int) (*Node, error) {
	obj := d.deref(d.nodes.Object(strconv.Itoa(id)))
	if obj == nil {
		return nil, gerrors.New(gerrors.ErrCodeNotFound, "node %d not found", id)
	}
	return &Node{ID: id, obj: obj, doc: d}, nil
}

// AllNodes returns every node in ascending id order.
func (d *Document) AllNodes() []*Node {
	ids := d.NodeIDs()
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n, err := d.Node(id); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// ProjectName returns the name stored in the outer metadata.
func (d *Document) ProjectName() string {
	if md := d.deref(d.Root.Object(keyMetadata)); md != nil {
		name, _ := md.String("Name")
		return name
	}
	return ""
}

// SetProjectName stores name in the outer and graph metadata.
func (d *Document) SetProjectName(name string) {
	for _, md := range []*tree.Object{d.deref(d.Root.Object(keyMetadata)), d.deref(d.graph.Object(keyMetadata))} {
		if md != nil {
			md.Set("Name", tree.String(name))
		}
	}
}

func parseNodeKey(k string) (int, bool) {
	if strings.HasPrefix(k, "$") {
		return 0, false
	}
	id, err := strconv.Atoi(k)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
