// Package catalog holds the static node type data: for each node type its
// fully qualified type name, the ports a new node gets and the properties it
// starts with.
//
// The built-in catalog is embedded from types.toml and available through
// [Default]. Lookups accept either the short name ("Erosion2") or the full
// type string ("QuadSpinner.Gaea.Nodes.Erosion2, Gaea.Nodes") and ignore
// case.
//
//	t, err := catalog.Default().Lookup("mountain")
//	id, err := doc.AddNode(t.FullName, t.PortSpecs(), terrain.NodeOptions{
//	    Properties: t.DefaultProperties(),
//	})
package catalog

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/terrain"
	"github.com/yushimatenjin/gaea-mcp/pkg/tree"
)

//go:embed types.toml
var builtin []byte

// Type describes one node type.
type Type struct {
	Name        string             `json:"name"`
	FullName    string             `json:"type"`
	Category    string             `json:"category"`
	Description string             `json:"description,omitempty"`
	Ports       []terrain.PortSpec `json:"ports"`

	defaults *tree.Object
}

// PortSpecs returns a copy of the type's ports in creation order.
func (t *Type) PortSpecs() []terrain.PortSpec {
	return slices.Clone(t.Ports)
}

// DefaultProperties returns a fresh copy of the starting properties.
func (t *Type) DefaultProperties() *tree.Object {
	return t.defaults.Clone()
}

// DefaultKeys returns the names of the starting properties in order.
func (t *Type) DefaultKeys() []string {
	return t.defaults.Keys()
}

// Catalog is an immutable set of node types.
type Catalog struct {
	types  []*Type
	byName map[string]*Type
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// Default returns the built-in catalog.
func Default() *Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := Parse(builtin)
		if err != nil {
			panic("catalog: invalid built-in types: " + err.Error())
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

type catalogFile struct {
	Types map[string]typeEntry `toml:"types"`
}

type typeEntry struct {
	Type        string             `toml:"type"`
	Category    string             `toml:"category"`
	Description string             `toml:"description"`
	Ports       []terrain.PortSpec `toml:"ports"`
	Defaults    map[string]any     `toml:"defaults"`
}

// Parse reads a catalog in the types.toml layout. Type and default property
// order follow the file.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	var order []string
	defaultOrder := make(map[string][]string)
	for _, k := range md.Keys() {
		if len(k) < 2 || k[0] != "types" {
			continue
		}
		switch {
		case len(k) == 2:
			order = append(order, k[1])
		case len(k) == 4 && k[2] == "defaults":
			defaultOrder[k[1]] = append(defaultOrder[k[1]], k[3])
		}
	}

	c := &Catalog{byName: make(map[string]*Type)}
	for _, name := range order {
		e := f.Types[name]
		t, err := newType(name, e, defaultOrder[name])
		if err != nil {
			return nil, err
		}
		for _, key := range []string{strings.ToLower(t.Name), strings.ToLower(t.FullName)} {
			if _, dup := c.byName[key]; dup {
				return nil, fmt.Errorf("type %s: duplicate name %q", name, key)
			}
			c.byName[key] = t
		}
		c.types = append(c.types, t)
	}
	return c, nil
}

func newType(name string, e typeEntry, keys []string) (*Type, error) {
	if e.Type == "" {
		return nil, fmt.Errorf("type %s: missing type string", name)
	}
	if terrain.ShortTypeName(e.Type) != name {
		return nil, fmt.Errorf("type %s: type string %q names %s", name, e.Type, terrain.ShortTypeName(e.Type))
	}
	for _, p := range e.Ports {
		if !p.Kind.Known() {
			return nil, fmt.Errorf("type %s: port %s has unknown kind %q", name, p.Name, p.Kind)
		}
	}

	defaults := tree.NewObject()
	for _, k := range keys {
		v, err := toValue(e.Defaults[k])
		if err != nil {
			return nil, fmt.Errorf("type %s: default %s: %w", name, k, err)
		}
		defaults.Set(k, v)
	}
	return &Type{
		Name:        name,
		FullName:    e.Type,
		Category:    e.Category,
		Description: e.Description,
		Ports:       e.Ports,
		defaults:    defaults,
	}, nil
}

func toValue(v any) (tree.Value, error) {
	switch x := v.(type) {
	case string:
		return tree.String(x), nil
	case bool:
		return tree.Bool(x), nil
	case int64:
		return tree.Int(int(x)), nil
	case float64:
		return tree.Float(x), nil
	case []any:
		arr := tree.NewArray()
		for _, it := range x {
			iv, err := toValue(it)
			if err != nil {
				return nil, err
			}
			arr.Append(iv)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

// Lookup finds a type by short or fully qualified name, ignoring case.
func (c *Catalog) Lookup(name string) (*Type, error) {
	if t, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return nil, gerrors.New(gerrors.ErrCodeNotFound, "unknown node type %q", name)
}

// Types returns every type in catalog order.
func (c *Catalog) Types() []*Type {
	return slices.Clone(c.types)
}

// Names returns the short type names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.types))
	for _, t := range c.types {
		names = append(names, t.Name)
	}
	slices.Sort(names)
	return names
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	var cats []string
	for _, t := range c.types {
		if !slices.Contains(cats, t.Category) {
			cats = append(cats, t.Category)
		}
	}
	slices.Sort(cats)
	return cats
}

// InCategory returns the types of one category in catalog order. The match
// ignores case; an empty category matches every type.
func (c *Catalog) InCategory(category string) []*Type {
	if category == "" {
		return c.Types()
	}
	var out []*Type
	for _, t := range c.types {
		if strings.EqualFold(t.Category, category) {
			out = append(out, t)
		}
	}
	return out
}

// Resolve returns the full type string, ports and starting properties for
// a new node of the named type. Ports, when given, replace the catalog's
// and may use any spelling [terrain.ParsePortKind] accepts. A type missing
// from the catalog is accepted only as a full type string with explicit
// ports, and starts with no properties.
func (c *Catalog) Resolve(name string, ports []terrain.PortSpec) (string, []terrain.PortSpec, *tree.Object, error) {
	specs := make([]terrain.PortSpec, 0, len(ports))
	for _, p := range ports {
		kind, err := terrain.ParsePortKind(string(p.Kind))
		if err != nil {
			return "", nil, nil, err
		}
		specs = append(specs, terrain.PortSpec{Name: p.Name, Kind: kind})
	}

	if t, err := c.Lookup(name); err == nil {
		if len(specs) == 0 {
			specs = t.PortSpecs()
		}
		return t.FullName, specs, t.DefaultProperties(), nil
	}
	if len(specs) == 0 || !strings.Contains(name, ",") {
		return "", nil, nil, gerrors.New(gerrors.ErrCodeNotFound,
			"unknown node type %q: use a catalog type, or a full type string with explicit ports", name)
	}
	return strings.TrimSpace(name), specs, tree.NewObject(), nil
}
