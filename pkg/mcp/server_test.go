package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/terrain"
)

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *ResponseError  `json:"error"`
}

type toolResult struct {
	Content           []Content       `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent"`
	IsError           bool            `json:"isError"`
}

func request(t *testing.T, method string, params any) []byte {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = params
	}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func call(t *testing.T, s *Server, method string, params any) rpcResponse {
	t.Helper()
	out := s.Handle(context.Background(), request(t, method, params))
	var resp rpcResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode response %s: %v", out, err)
	}
	return resp
}

func callTool(t *testing.T, s *Server, name string, args any) toolResult {
	t.Helper()
	resp := call(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
	if resp.Error != nil {
		t.Fatalf("%s: rpc error %+v", name, resp.Error)
	}
	var res toolResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		t.Fatalf("decode %s result: %v", name, err)
	}
	return res
}

func mustTool(t *testing.T, s *Server, name string, args any, out any) {
	t.Helper()
	res := callTool(t, s, name, args)
	if res.IsError {
		t.Fatalf("%s failed: %s", name, res.Content[0].Text)
	}
	if out != nil {
		if err := json.Unmarshal(res.StructuredContent, out); err != nil {
			t.Fatalf("decode %s content: %v", name, err)
		}
	}
}

func toolErrorCode(t *testing.T, res toolResult) string {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected tool error, got %s", res.StructuredContent)
	}
	var te ToolError
	if err := json.Unmarshal(res.StructuredContent, &te); err != nil {
		t.Fatal(err)
	}
	return te.Code
}

func newProject(t *testing.T, s *Server) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.terrain")
	mustTool(t, s, "create_project", map[string]any{"path": path, "name": "World"}, nil)
	return path
}

func TestInitialize(t *testing.T) {
	resp := call(t, New(Options{}), "initialize", map[string]any{"protocolVersion": ProtocolVersion})
	if resp.Error != nil {
		t.Fatalf("error: %+v", resp.Error)
	}
	var res initializeResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		t.Fatal(err)
	}
	if res.ServerInfo.Name != ServerName || res.ProtocolVersion != ProtocolVersion {
		t.Errorf("result = %+v", res)
	}
	if _, ok := res.Capabilities["tools"]; !ok {
		t.Error("tools capability missing")
	}
	if string(resp.ID) != "1" {
		t.Errorf("id = %s", resp.ID)
	}
}

func TestToolsList(t *testing.T) {
	resp := call(t, New(Options{}), "tools/list", nil)
	var res listToolsResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		if tool.InputSchema["type"] != "object" {
			t.Errorf("%s schema type = %v", tool.Name, tool.InputSchema["type"])
		}
	}
	for _, want := range []string{
		"create_project", "get_project_info", "list_nodes", "list_node_types",
		"add_node", "remove_node", "connect_nodes", "disconnect_port",
		"set_node_property", "move_node", "build_terrain", "detect_gaea",
	} {
		if !slices.Contains(names, want) {
			t.Errorf("tool %s not listed", want)
		}
	}
}

func TestProtocolErrors(t *testing.T) {
	s := New(Options{})
	tests := []struct {
		name string
		in   string
		code int
	}{
		{"parse error", `{"jsonrpc":`, CodeParseError},
		{"batch", `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, CodeInvalidRequest},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, CodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"nope"}`, CodeMethodNotFound},
		{"unknown tool", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope"}}`, CodeInvalidParams},
		{"missing tool name", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`, CodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp rpcResponse
			if err := json.Unmarshal(s.Handle(context.Background(), []byte(tt.in)), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %d", resp.Error, tt.code)
			}
		})
	}
}

func TestNotificationsHaveNoResponse(t *testing.T) {
	s := New(Options{})
	for _, in := range []string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"ping"}`,
	} {
		if out := s.Handle(context.Background(), []byte(in)); out != nil {
			t.Errorf("%s: got response %s", in, out)
		}
	}
}

func TestEditWorkflow(t *testing.T) {
	s := New(Options{})
	path := newProject(t, s)

	var mountain, erosion nodeInfo
	mustTool(t, s, "add_node", map[string]any{"path": path, "type": "mountain", "properties": map[string]any{"Height": 0.9}}, &mountain)
	mustTool(t, s, "add_node", map[string]any{"path": path, "type": "Erosion2", "name": "Erode", "position": map[string]any{"x": 100, "y": 200}}, &erosion)
	if mountain.ID != 1 || erosion.ID != 2 {
		t.Fatalf("ids = %d, %d", mountain.ID, erosion.ID)
	}
	if erosion.Name != "Erode" || erosion.Position != (terrain.Point{X: 100, Y: 200}) {
		t.Errorf("erosion = %+v", erosion)
	}
	var keys []string
	for _, p := range mountain.Properties {
		keys = append(keys, p.Key)
		if p.Key == "Height" && string(p.Value) != "0.9" {
			t.Errorf("Height = %s", p.Value)
		}
	}
	if keys[0] != "Scale" || !slices.Contains(keys, "Height") {
		t.Errorf("property keys = %v", keys)
	}

	var conn terrain.Connection
	mustTool(t, s, "connect_nodes", map[string]any{"path": path, "from": 1, "to": 2}, &conn)
	if conn != (terrain.Connection{From: 1, FromPort: "Out", To: 2, ToPort: "In", IsValid: true}) {
		t.Errorf("connection = %+v", conn)
	}

	var info projectInfo
	mustTool(t, s, "get_project_info", map[string]any{"path": path}, &info)
	if info.Name != "World" || info.NodeCount != 2 || info.ConnectionCount != 1 || info.Problem != "" {
		t.Errorf("info = %+v", info)
	}

	mustTool(t, s, "set_node_property", map[string]any{"path": path, "id": 2, "key": "Seed", "value": 12345}, nil)
	mustTool(t, s, "move_node", map[string]any{"path": path, "id": 1, "x": -50, "y": 10.5}, nil)
	mustTool(t, s, "rename_node", map[string]any{"path": path, "id": 1, "name": "Peak"}, nil)

	var listed struct {
		Nodes []nodeInfo `json:"nodes"`
	}
	mustTool(t, s, "list_nodes", map[string]any{"path": path}, &listed)
	if len(listed.Nodes) != 2 {
		t.Fatalf("nodes = %d", len(listed.Nodes))
	}
	peak, erode := listed.Nodes[0], listed.Nodes[1]
	if peak.Name != "Peak" || peak.Position != (terrain.Point{X: -50, Y: 10.5}) {
		t.Errorf("node 1 = %+v", peak)
	}
	var seed string
	for _, p := range erode.Properties {
		if p.Key == "Seed" {
			seed = string(p.Value)
		}
	}
	if seed != "12345" {
		t.Errorf("Seed = %q", seed)
	}
	for _, p := range erode.Ports {
		if p.Name == "In" && (p.Connection == nil || p.Connection.From != 1) {
			t.Errorf("In port = %+v", p)
		}
	}

	mustTool(t, s, "disconnect_port", map[string]any{"path": path, "id": 2, "port": "In"}, nil)
	mustTool(t, s, "get_project_info", map[string]any{"path": path}, &info)
	if info.ConnectionCount != 0 || len(info.MissingInputs) != 1 {
		t.Errorf("after disconnect: %+v", info)
	}

	mustTool(t, s, "connect_nodes", map[string]any{"path": path, "from": 1, "to": 2}, nil)
	var removed struct {
		RemovedConnections []terrain.Connection `json:"removed_connections"`
	}
	mustTool(t, s, "remove_node", map[string]any{"path": path, "id": 1}, &removed)
	if len(removed.RemovedConnections) != 1 {
		t.Errorf("removed = %+v", removed)
	}

	d, err := terrain.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if d.NodeCount() != 1 {
		t.Errorf("NodeCount = %d", d.NodeCount())
	}
}

func TestAddNodeCustomType(t *testing.T) {
	s := New(Options{})
	path := newProject(t, s)
	var n nodeInfo
	mustTool(t, s, "add_node", map[string]any{
		"path": path,
		"type": "Acme.Nodes.Warp, Acme.Nodes",
		"ports": []map[string]string{
			{"name": "In", "kind": "primary-input-required"},
			{"name": "Out", "kind": "PrimaryOut"},
		},
		"properties": map[string]any{"Strength": 2},
	}, &n)
	if n.Type != "Warp" || len(n.Ports) != 2 || n.Ports[0].Kind != terrain.PrimaryInRequired {
		t.Errorf("node = %+v", n)
	}
}

func TestToolErrors(t *testing.T) {
	s := New(Options{})
	path := newProject(t, s)
	mustTool(t, s, "add_node", map[string]any{"path": path, "type": "Mountain"}, nil)
	mustTool(t, s, "add_node", map[string]any{"path": path, "type": "Erosion2"}, nil)

	tests := []struct {
		name string
		tool string
		args map[string]any
		code gerrors.Code
	}{
		{"unknown type", "add_node", map[string]any{"path": path, "type": "Nope"}, gerrors.ErrCodeNotFound},
		{"bad port kind", "add_node", map[string]any{"path": path, "type": "A.B, C", "ports": []map[string]string{{"name": "In", "kind": "sideways"}}}, gerrors.ErrCodeInvalidInput},
		{"properties not object", "add_node", map[string]any{"path": path, "type": "Mountain", "properties": []int{1}}, gerrors.ErrCodeInvalidInput},
		{"missing node", "connect_nodes", map[string]any{"path": path, "from": 1, "to": 9}, gerrors.ErrCodeNotFound},
		{"missing port", "connect_nodes", map[string]any{"path": path, "from": 1, "from_port": "Nope", "to": 2}, gerrors.ErrCodeNotFound},
		{"not connected", "disconnect_port", map[string]any{"path": path, "id": 2, "port": "In"}, gerrors.ErrCodeAlreadyDisconnected},
		{"remove missing", "remove_node", map[string]any{"path": path, "id": 7}, gerrors.ErrCodeNotFound},
		{"unknown argument", "list_nodes", map[string]any{"path": path, "verbose": true}, gerrors.ErrCodeInvalidInput},
		{"missing file", "get_project_info", map[string]any{"path": filepath.Join(t.TempDir(), "none.terrain")}, gerrors.ErrCodeFileNotFound},
		{"empty path", "list_nodes", map[string]any{"path": ""}, gerrors.ErrCodeInvalidPath},
		{"file exists", "create_project", map[string]any{"path": path}, gerrors.ErrCodeFileExists},
		{"value required", "set_node_property", map[string]any{"path": path, "id": 1, "key": "Scale"}, gerrors.ErrCodeInvalidInput},
		{"unknown category", "list_node_types", map[string]any{"category": "Nope"}, gerrors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toolErrorCode(t, callTool(t, s, tt.tool, tt.args)); got != string(tt.code) {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}

	// Failed edits leave the file untouched.
	d, err := terrain.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if d.NodeCount() != 2 || len(d.Connections()) != 0 {
		t.Errorf("file changed by failed calls: %d nodes, %d connections", d.NodeCount(), len(d.Connections()))
	}
}

func TestListNodeTypes(t *testing.T) {
	s := New(Options{})
	var res struct {
		Types []typeInfo `json:"types"`
	}
	mustTool(t, s, "list_node_types", map[string]any{"category": "simulate"}, &res)
	if len(res.Types) == 0 {
		t.Fatal("no simulate types")
	}
	for _, ti := range res.Types {
		if !strings.EqualFold(ti.Category, "simulate") {
			t.Errorf("type %s in category %s", ti.Name, ti.Category)
		}
	}
}

func fakeSwarm(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script renderer")
	}
	exe := filepath.Join(t.TempDir(), "Gaea.Swarm")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return exe
}

func TestBuildTerrain(t *testing.T) {
	exe := fakeSwarm(t, "echo \"args: $*\"\necho done\n")
	s := New(Options{SwarmPath: exe})
	path := newProject(t, s)

	var res buildResult
	mustTool(t, s, "build_terrain", map[string]any{"path": path, "seed": 7, "variables": map[string]string{"Scale": "2"}}, &res)
	if res.ExitCode != 0 || res.Executable != exe {
		t.Errorf("result = %+v", res)
	}
	if len(res.Output) != 2 || !strings.Contains(res.Output[0], "--seed 7 -v Scale=2") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestBuildTerrainFailure(t *testing.T) {
	exe := fakeSwarm(t, "echo 'missing input' >&2\nexit 4\n")
	s := New(Options{SwarmPath: exe})
	path := newProject(t, s)

	res := callTool(t, s, "build_terrain", map[string]any{"path": path})
	if code := toolErrorCode(t, res); code != string(gerrors.ErrCodeBuildFailed) {
		t.Fatalf("code = %s", code)
	}
	if !strings.Contains(res.Content[0].Text, "missing input") {
		t.Errorf("text = %q", res.Content[0].Text)
	}
}

func TestDetectGaea(t *testing.T) {
	s := New(Options{SwarmPath: filepath.Join(t.TempDir(), "missing")})
	var res struct {
		Found  bool   `json:"found"`
		Reason string `json:"reason"`
	}
	mustTool(t, s, "detect_gaea", nil, &res)
	if res.Found || res.Reason == "" {
		t.Errorf("result = %+v", res)
	}
}
