package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yushimatenjin/gaea-mcp/pkg/edit"
	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/swarm"
	"github.com/yushimatenjin/gaea-mcp/pkg/terrain"
	"github.com/yushimatenjin/gaea-mcp/pkg/tree"
)

// outputTail is the number of renderer log lines returned by build_terrain.
const outputTail = 40

type props map[string]any

func schema(required []string, p props) map[string]any {
	s := map[string]any{"type": "object", "properties": p, "additionalProperties": false}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func typed(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

var pathProp = typed("string", "Path to the .terrain project file.")

func (s *Server) registerTools() {
	s.register(Tool{
		Name:        "create_project",
		Description: "Create an empty project file with no nodes.",
		InputSchema: schema([]string{"path"}, props{
			"path":      pathProp,
			"name":      typed("string", "Project name. Defaults to the file name without extension."),
			"overwrite": typed("boolean", "Replace an existing file."),
		}),
	}, s.createProject)

	s.register(Tool{
		Name:        "get_project_info",
		Description: "Summarize a project: name, node and connection counts, and unconnected required inputs.",
		InputSchema: schema([]string{"path"}, props{"path": pathProp}),
	}, s.projectInfo)

	s.register(Tool{
		Name:        "list_nodes",
		Description: "List every node with its type, position, properties and ports.",
		InputSchema: schema([]string{"path"}, props{"path": pathProp}),
	}, s.listNodes)

	s.register(Tool{
		Name:        "list_node_types",
		Description: "List the known node types with their ports and default properties.",
		InputSchema: schema(nil, props{
			"category": typed("string", "Only list types in this category."),
		}),
	}, s.listNodeTypes)

	s.register(Tool{
		Name: "add_node",
		Description: "Add a node and return its id. The type is a short name from list_node_types " +
			"or a full type string together with explicit ports.",
		InputSchema: schema([]string{"path", "type"}, props{
			"path": pathProp,
			"type": typed("string", "Node type, for example \"Mountain\" or \"Erosion2\"."),
			"name": typed("string", "Display name. Defaults to the type name."),
			"position": schema([]string{"x", "y"}, props{
				"x": typed("number", "Canvas X."),
				"y": typed("number", "Canvas Y."),
			}),
			"properties": typed("object", "Property values, overriding the type defaults."),
			"ports": map[string]any{
				"type":        "array",
				"description": "Ports for a type not in the catalog.",
				"items": schema([]string{"name", "kind"}, props{
					"name": typed("string", "Port name."),
					"kind": typed("string", "PrimaryIn, \"PrimaryIn, Required\", PrimaryOut, In, \"In, Required\" or Out."),
				}),
			},
		}),
	}, s.addNode)

	s.register(Tool{
		Name:        "remove_node",
		Description: "Remove a node together with every connection that uses it.",
		InputSchema: schema([]string{"path", "id"}, props{
			"path": pathProp,
			"id":   typed("integer", "Node id."),
		}),
	}, s.removeNode)

	s.register(Tool{
		Name:        "connect_nodes",
		Description: "Connect an output port to an input port, replacing any connection the input already has.",
		InputSchema: schema([]string{"path", "from", "to"}, props{
			"path":      pathProp,
			"from":      typed("integer", "Source node id."),
			"from_port": typed("string", "Source port. Defaults to Out."),
			"to":        typed("integer", "Destination node id."),
			"to_port":   typed("string", "Destination port. Defaults to In."),
		}),
	}, s.connectNodes)

	s.register(Tool{
		Name:        "disconnect_port",
		Description: "Remove the connection feeding an input port.",
		InputSchema: schema([]string{"path", "id", "port"}, props{
			"path": pathProp,
			"id":   typed("integer", "Node id."),
			"port": typed("string", "Input port name."),
		}),
	}, s.disconnectPort)

	s.register(Tool{
		Name:        "set_node_property",
		Description: "Set or remove one property of a node. The value may be any JSON value.",
		InputSchema: schema([]string{"path", "id", "key"}, props{
			"path":  pathProp,
			"id":    typed("integer", "Node id."),
			"key":   typed("string", "Property name."),
			"value": map[string]any{"description": "New value."},
			"unset": typed("boolean", "Remove the property instead of setting it."),
		}),
	}, s.setNodeProperty)

	s.register(Tool{
		Name:        "move_node",
		Description: "Move a node on the canvas.",
		InputSchema: schema([]string{"path", "id", "x", "y"}, props{
			"path": pathProp,
			"id":   typed("integer", "Node id."),
			"x":    typed("number", "Canvas X."),
			"y":    typed("number", "Canvas Y."),
		}),
	}, s.moveNode)

	s.register(Tool{
		Name:        "rename_node",
		Description: "Change the display name of a node.",
		InputSchema: schema([]string{"path", "id", "name"}, props{
			"path": pathProp,
			"id":   typed("integer", "Node id."),
			"name": typed("string", "New name."),
		}),
	}, s.renameNode)

	s.register(Tool{
		Name:        "build_terrain",
		Description: "Build the project with Gaea.Swarm and return its exit status and log tail.",
		InputSchema: schema([]string{"path"}, props{
			"path":            pathProp,
			"profile":         typed("string", "Build profile."),
			"region":          typed("string", "Region to build."),
			"seed":            typed("integer", "Seed override."),
			"ignore_cache":    typed("boolean", "Recompute every node."),
			"variables":       map[string]any{"type": "object", "description": "Automation variable overrides.", "additionalProperties": map[string]any{"type": "string"}},
			"timeout_seconds": typed("integer", "Build time limit. Defaults to the server setting."),
		}),
	}, s.buildTerrain)

	s.register(Tool{
		Name:        "detect_gaea",
		Description: "Report where Gaea.Swarm was found, if anywhere.",
		InputSchema: schema(nil, props{}),
	}, s.detectGaea)
}

// =============================================================================
// Results
// =============================================================================

type propertyInfo struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type portInfo struct {
	Name       string              `json:"name"`
	Kind       terrain.PortKind    `json:"kind"`
	Connection *terrain.Connection `json:"connection,omitempty"`
}

type nodeInfo struct {
	ID         int            `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Position   terrain.Point  `json:"position"`
	Properties []propertyInfo `json:"properties"`
	Ports      []portInfo     `json:"ports"`
}

func describeNode(n *terrain.Node) (nodeInfo, error) {
	info := nodeInfo{
		ID:         n.ID,
		Name:       n.Name(),
		Type:       n.ShortType(),
		Position:   n.Position(),
		Properties: []propertyInfo{},
		Ports:      []portInfo{},
	}
	for _, k := range n.PropertyKeys() {
		v, _ := n.Property(k)
		raw, err := rawValue(v)
		if err != nil {
			return info, err
		}
		info.Properties = append(info.Properties, propertyInfo{Key: k, Value: raw})
	}
	for _, p := range n.Ports() {
		pi := portInfo{Name: p.Name(), Kind: p.Kind()}
		if c, ok := p.Record(); ok {
			pi.Connection = &c
		}
		info.Ports = append(info.Ports, pi)
	}
	return info, nil
}

func rawValue(v tree.Value) (json.RawMessage, error) {
	b, err := tree.Marshal(v)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInternal, err, "encode property")
	}
	return json.RawMessage(b), nil
}

func parseValue(raw json.RawMessage) (tree.Value, error) {
	v, err := tree.Parse(raw)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "invalid value")
	}
	return v, nil
}

// =============================================================================
// Handlers
// =============================================================================

type pathArgs struct {
	Path string `json:"path"`
}

type nodeArgs struct {
	Path string `json:"path"`
	ID   int    `json:"id"`
}

func (s *Server) createProject(ctx context.Context, raw json.RawMessage) (any, error) {
	a, err := decodeArgs[struct {
		Path      string `json:"path"`
		Name      string `json:"name"`
		Overwrite bool   `json:"overwrite"`
	}](raw)
	if err != nil {
		return nil, err
	}
	doc, err := s.editor.Create(ctx, a.Path, a.Name, a.Overwrite)
	if err != nil {
		return nil, err
	}
	abs, _ := edit.Resolve(a.Path)
	return map[string]any{"path": abs, "name": doc.ProjectName(), "node_count": doc.NodeCount()}, nil
}

type projectInfo struct {
	Path            string               `json:"path"`
	Name            string               `json:"name"`
	NodeCount       int                  `json:"node_count"`
	ConnectionCount int                  `json:"connection_count"`
	Connections     []terrain.Connection `json:"connections"`
	MissingInputs   []string             `json:"missing_inputs,omitempty"`
	Problem         string               `json:"problem,omitempty"`
}

func (s *Server) projectInfo(ctx context.Context, raw json.RawMessage) (any, error) {
	a, err := decodeArgs[pathArgs](raw)
	if err != nil {
		return nil, err
	}
	var info projectInfo
	err = s.editor.View(ctx, a.Path, func(d *terrain.Document) error {
		info.Path, _ = edit.Resolve(a.Path)
		info.Name = d.ProjectName()
		info.NodeCount = d.NodeCount()
		info.Connections = d.Connections()
		if info.Connections == nil {
			info.Connections = []terrain.Connection{}
		}
		info.ConnectionCount = len(info.Connections)
		for _, n := range d.AllNodes() {
			for _, p := range n.Ports() {
				if _, ok := p.Record(); p.Kind().IsRequired() && !ok {
					info.MissingInputs = append(info.MissingInputs, fmt.Sprintf("%s (#%d) %s", n.Name(), n.ID, p.Name()))
				}
			}
		}
		if err := d.Validate(); err != nil {
			info.Problem = gerrors.UserMessage(err)
		}
		return nil
	})
	return info, err
}

func (s *Server) listNodes(ctx context.Context, raw json.RawMessage) (any, error) {
	a, err := decodeArgs[pathArgs](raw)
	if err != nil {
		return nil, err
	}
	nodes := []nodeInfo{}
	err = s.editor.View(ctx, a.Path, func(d *terrain.Document) error {
		for _, n := range d.AllNodes() {
			info, err := describeNode(n)
			if err != nil {
				return err
			}
			nodes = append(nodes, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"nodes": nodes}, nil
}

type typeInfo struct {
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	Category    string             `json:"category"`
	Description string             `json:"description,omitempty"`
	Ports       []terrain.PortSpec `json:"ports"`
	Defaults    []propertyInfo     `json:"defaults"`
}

func (s *Server) listNodeTypes(_ context.Context, raw json.RawMessage) (any, error) {
	a, err := decodeArgs[struct {
		Category string `json:"category"`
	}](raw)
	if err != nil {
		return nil, err
	}
	types := s.catalog.InCategory(a.Category)
	if len(types) == 0 {
		return nil, gerrors.New(gerrors.ErrCodeNotFound, "no node types in category %q (have %s)",
			a.Category, strings.Join(s.catalog.Categories(), ", "))
	}
	out := make([]typeInfo, 0, len(types))
	for _, t := range types {
		ti := typeInfo{Name: t.Name, Type: t.FullName, Category: t.Category, Description: t.Description, Ports: t.PortSpecs(), Defaults: []propertyInfo{}}
		defaults := t.DefaultProperties()
		for _, k := range defaults.Keys() {
			v, _ := defaults.Get(k)
			rv, err := rawValue(v)
			if err != nil {
				return nil, err
			}
			ti.Defaults = append(ti.Defaults, propertyInfo{Key: k, Value: rv})
		}
		out = append(out, ti)
	}
	return map[string]any{"types": out}, nil
}

type addNodeArgs struct {
	Path       string             `json:"path"`
	Type       string             `json:"type"`
	Name       string             `json:"name"`
	Position   *terrain.Point     `json:"position"`
	Properties json.RawMessage    `json:"properties"`
	Ports      []terrain.PortSpec `json:"ports"`
}

// resolveType returns the full type string, ports and starting properties
// for a node, with the call's properties layered over the type defaults.
func (s *Server) resolveType(a addNodeArgs) (string, []terrain.PortSpec, *tree.Object, error) {
	typeName, ports, props, err := s.catalog.Resolve(a.Type, a.Ports)
	if err != nil {
		return "", nil, nil, err
	}
	if len(a.Properties) > 0 && string(a.Properties) != "null" {
		v, err := parseValue(a.Properties)
		if err != nil {
			return "", nil, nil, err
		}
		overrides, ok := v.(*tree.Object)
		if !ok {
			return "", nil, nil, gerrors.New(gerrors.ErrCodeInvalidInput, "properties must be an object")
		}
		for _, k := range overrides.Keys() {
			pv, _ := overrides.Get(k)
			props.Set(k, pv)
		}
	}
	return typeName, ports, props, nil
}

func (s *Server) addNode(ctx context.Context, raw json.RawMessage) (any, error) {
	a, err := decodeArgs[addNodeArgs](raw)
	if err != nil {
		return nil, err
	}
	typeName, ports, props, err := s.resolveType(a)
	if err != nil {
		return nil, err
	}
	var info nodeInfo
	err = s.editor.Edit(ctx, a.Path, func(d *terrain.Document) error {
		id, err := d.AddNode(typeName, ports, terrain.NodeOptions{Name: a.Name, Position: a.Position, Properties: props})
		if err != nil {
			return err
		}
		n, err := d.Node(id)
		if err != nil {
			return err
		}
		info, err = describeNode(n)
		return err
	})
	return info, err
}

func (s *Server) removeNode(ctx context.Context, raw json.RawMessage) (any, error) {
	a, err := decodeArgs[nodeArgs](raw)
	if err != nil {
		return nil, err
	}
	var removed []terrain.Connection
	err = s.editor.Edit(ctx, a.Path, func(d *terrain.Document) error {
		for _, c := range d.Connections() {
			if c.From == a.ID || c.To == a.ID {
				removed = append(removed, c)
			}
		}
		return d.RemoveNode(a.ID)
	})
	if err != nil {
		return nil, err
	}
	if removed == nil {
		removed = []terrain.Connection{}
	}
	return map[string]any{"id": a.ID, "removed_connections": removed}, nil
}

func (s *Server) connectNodes(ctx context.Context, raw json.RawMessage) (any, error) {
	a, err := decodeArgs[struct {
		Path     string `json:"path"`
		From     int    `json:"from"`
		FromPort string `json:"from_port"`
		To       int    `json:"to"`
		ToPort   string `json:"to_port"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if a.FromPort == "" {
		a.FromPort = "Out"
	}
	if a.ToPort == "" {
		a.ToPort = "In"
	}
	err = s.editor.Edit(ctx, a.Path, func(d *terrain.Document) error {
		return d.ConnectPort(a.From, a.FromPort, a.To, a.ToPort)
	})
	if err != nil {
		return nil, err
	}
	return terrain.Connection{From: a.From, FromPort: a.FromPort, To: a.To, ToPort: a.ToPort, IsValid: true}, nil
}

func (s *Server) disconnectPort(ctx context.Context, raw json.RawMessage) (any, error) {
	a, err := decodeArgs[struct {
		Path string `json:"path"`
		ID   int    `json:"id"`
		Port string `json:"port"`
	}](raw)
	if err != nil {
		return nil, err
	}
	var removed terrain.Connection
	err = s.editor.Edit(ctx, a.Path, func(d *terrain.Document) error {
		n, err := d.Node(a.ID)
		if err != nil {
			return err
		}
		p, err := n.Port(a.Port)
		if err != nil {
			return err
		}
		removed, _ = p.Record()
		return d.DisconnectPort(a.ID, a.Port)
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"removed": removed}, nil
}

func (s *Server) setNodeProperty(ctx context.Context, raw json.RawMessage) (any, error) {
	a, err := decodeArgs[struct {
		Path  string          `json:"path"`
		ID    int             `json:"id"`
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
		Unset bool            `json:"unset"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if a.Unset {
		err = s.editor.Edit(ctx, a.Path, func(d *terrain.Document) error {
			return d.RemoveProperty(a.ID, a.Key)
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": a.ID, "key": a.Key, "removed": true}, nil
	}
	if len(a.Value) == 0 {
		return nil, gerrors.New(gerrors.ErrCodeInvalidInput, "value is required unless unset is true")
	}
	v, err := parseValue(a.Value)
	if err != nil {
		return nil, err
	}
	err = s.editor.Edit(ctx, a.Path, func(d *terrain.Document) error {
		return d.SetProperty(a.ID, a.Key, v)
	})
	if err != nil {
		return nil, err
	}
	rv, err := rawValue(v)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": a.ID, "key": a.Key, "value": rv}, nil
}

func (s *Server) moveNode(ctx context.Context, raw json.RawMessage) (any, error) {
	a, err := decodeArgs[struct {
		Path string  `json:"path"`
		ID   int     `json:"id"`
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
	}](raw)
	if err != nil {
		return nil, err
	}
	p := terrain.Point{X: a.X, Y: a.Y}
	err = s.editor.Edit(ctx, a.Path, func(d *terrain.Document) error {
		return d.MoveNode(a.ID, p)
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": a.ID, "position": p}, nil
}

func (s *Server) renameNode(ctx context.Context, raw json.RawMessage) (any, error) {
	a, err := decodeArgs[struct {
		Path string `json:"path"`
		ID   int    `json:"id"`
		Name string `json:"name"`
	}](raw)
	if err != nil {
		return nil, err
	}
	err = s.editor.Edit(ctx, a.Path, func(d *terrain.Document) error {
		return d.RenameNode(a.ID, a.Name)
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": a.ID, "name": a.Name}, nil
}

type buildResult struct {
	Executable string   `json:"executable"`
	ExitCode   int      `json:"exit_code"`
	DurationMS int64    `json:"duration_ms"`
	Output     []string `json:"output"`
}

func (s *Server) buildTerrain(ctx context.Context, raw json.RawMessage) (any, error) {
	a, err := decodeArgs[struct {
		Path           string            `json:"path"`
		Profile        string            `json:"profile"`
		Region         string            `json:"region"`
		Seed           *int              `json:"seed"`
		IgnoreCache    bool              `json:"ignore_cache"`
		Variables      map[string]string `json:"variables"`
		TimeoutSeconds int               `json:"timeout_seconds"`
	}](raw)
	if err != nil {
		return nil, err
	}
	abs, err := edit.Resolve(a.Path)
	if err != nil {
		return nil, err
	}
	exe, err := swarm.Detect(s.opts.SwarmPath)
	if err != nil {
		return nil, err
	}
	timeout := s.opts.BuildTimeout
	if a.TimeoutSeconds > 0 {
		timeout = time.Duration(a.TimeoutSeconds) * time.Second
	}
	opts := swarm.Options{
		File:        abs,
		Profile:     a.Profile,
		Region:      a.Region,
		Seed:        a.Seed,
		IgnoreCache: a.IgnoreCache,
		Variables:   a.Variables,
	}

	// The file stays locked for the whole build so no edit lands while the
	// renderer is reading it.
	var res *swarm.Result
	err = s.editor.View(ctx, abs, func(d *terrain.Document) error {
		if err := d.Validate(); err != nil {
			return err
		}
		var err error
		res, err = swarm.Build(ctx, exe, opts, swarm.RunOptions{Timeout: timeout, Logger: s.logger})
		return err
	})
	if err != nil {
		return nil, err
	}
	out := res.Output
	if len(out) > outputTail {
		out = out[len(out)-outputTail:]
	}
	if out == nil {
		out = []string{}
	}
	return buildResult{Executable: exe, ExitCode: res.ExitCode, DurationMS: res.Duration.Milliseconds(), Output: out}, nil
}

func (s *Server) detectGaea(context.Context, json.RawMessage) (any, error) {
	exe, err := swarm.Detect(s.opts.SwarmPath)
	if err != nil {
		return map[string]any{"found": false, "reason": gerrors.UserMessage(err)}, nil
	}
	return map[string]any{"found": true, "path": exe}, nil
}
