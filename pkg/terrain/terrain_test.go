package terrain

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/tree"
)

const (
	mountainType = "QuadSpinner.Gaea.Nodes.Mountain, Gaea.Nodes"
	erosionType  = "QuadSpinner.Gaea.Nodes.Erosion2, Gaea.Nodes"
)

var (
	testNow = time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC)

	mountainPorts = []PortSpec{
		{Name: "In", Kind: PrimaryIn},
		{Name: "Out", Kind: PrimaryOut},
	}
	erosionPorts = []PortSpec{
		{Name: "In", Kind: PrimaryInRequired},
		{Name: "Out", Kind: PrimaryOut},
		{Name: "Flow", Kind: SecondaryOut},
		{Name: "Wear", Kind: SecondaryOut},
		{Name: "Deposits", Kind: SecondaryOut},
	}
)

func mustAdd(t *testing.T, d *Document, typ string, ports []PortSpec) int {
	t.Helper()
	id, err := d.AddNode(typ, ports, NodeOptions{})
	if err != nil {
		t.Fatalf("AddNode(%s) error: %v", ShortTypeName(typ), err)
	}
	return id
}

func snapshot(t *testing.T, d *Document) []byte {
	t.Helper()
	b, err := tree.Marshal(d.Root)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return b
}

func roundTrip(t *testing.T, d *Document) *Document {
	t.Helper()
	b, err := d.Bytes(testNow)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	got, err := LoadBytes(b)
	if err != nil {
		t.Fatalf("LoadBytes: %v\n%s", err, b)
	}
	return got
}

// scenarioA builds a Mountain feeding an Erosion.
func scenarioA(t *testing.T) *Document {
	t.Helper()
	d := CreateEmpty(testNow)
	if id := mustAdd(t, d, mountainType, mountainPorts); id != 1 {
		t.Fatalf("Mountain id = %d, want 1", id)
	}
	if id := mustAdd(t, d, erosionType, erosionPorts); id != 2 {
		t.Fatalf("Erosion id = %d, want 2", id)
	}
	if err := d.ConnectPort(1, "Out", 2, "In"); err != nil {
		t.Fatalf("ConnectPort: %v", err)
	}
	return d
}

func TestScenarioConnect(t *testing.T) {
	d := scenarioA(t)

	erosion, _ := d.Node(2)
	in, err := erosion.Port("In")
	if err != nil {
		t.Fatal(err)
	}
	got, ok := in.Record()
	if !ok {
		t.Fatal("node 2 In has no record")
	}
	want := Connection{From: 1, FromPort: "Out", To: 2, ToPort: "In", IsValid: true}
	if got != want {
		t.Errorf("record = %+v, want %+v", got, want)
	}

	mountain, _ := d.Node(1)
	out, _ := mountain.Port("Out")
	if _, ok := out.Record(); ok {
		t.Error("source port should not hold a record")
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestScenarioRemoveCascades(t *testing.T) {
	d := scenarioA(t)
	if err := d.RemoveNode(1); err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	if _, err := d.Node(1); !gerrors.Is(err, gerrors.ErrCodeNotFound) {
		t.Errorf("Node(1) error = %v, want NOT_FOUND", err)
	}
	if n := len(d.Inbound(2)); n != 0 {
		t.Errorf("Inbound(2) = %d connections, want 0", n)
	}
	erosion, _ := d.Node(2)
	in, _ := erosion.Port("In")
	if in.Object().Has("Record") {
		t.Error("In port still holds a Record key")
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestScenarioPropertyRoundTrip(t *testing.T) {
	d := scenarioA(t)
	if err := d.RemoveNode(1); err != nil {
		t.Fatal(err)
	}
	if err := d.SetProperty(2, "Seed", tree.Int(12345)); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}

	got := roundTrip(t, d)
	n, err := got.Node(2)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := n.Property("Seed")
	if !ok {
		t.Fatal("Seed missing after round trip")
	}
	if seed, _ := v.(tree.Number).Int64(); seed != 12345 {
		t.Errorf("Seed = %v, want 12345", v)
	}

	keys := n.Object().Keys()
	want := []string{"$id", "$type", "Seed", "Id", "Name", "Position", "Ports", "Modifiers"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("node keys = %v, want %v", keys, want)
	}
}

func TestRoundTripEqual(t *testing.T) {
	d := scenarioA(t)
	props := tree.NewObject().
		Set("Scale", tree.Float(1.5)).
		Set("Curve", tree.NewObject().Set("Points", tree.NewArray(tree.Int(0), tree.Int(1))))
	if _, err := d.AddNode(mountainType, mountainPorts, NodeOptions{Name: "Ridge", Properties: props}); err != nil {
		t.Fatal(err)
	}

	got := roundTrip(t, d)
	if !Equal(d, got) {
		t.Error("document changed across write/load")
	}

	// Only the saved timestamps may differ from a later write.
	later, err := LoadBytes(mustBytes(t, got, testNow.Add(time.Hour)))
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(d, later) {
		t.Error("documents written at different times should compare equal")
	}
}

func mustBytes(t *testing.T, d *Document, now time.Time) []byte {
	t.Helper()
	b, err := d.Bytes(now)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestWriteStampsSavedTimestamps(t *testing.T) {
	d := CreateEmpty(testNow)
	saved := time.Date(2026, 1, 2, 3, 4, 5, 678, time.FixedZone("X", 3600))
	got, err := LoadBytes(mustBytes(t, d, saved))
	if err != nil {
		t.Fatal(err)
	}
	want := "2026-01-02 02:04:05Z"
	outer, _ := got.Root.Object("Metadata").String("DateLastSaved")
	inner, _ := got.Graph().Object("Metadata").String("DateLastSaved")
	if outer != want || inner != want {
		t.Errorf("DateLastSaved = %q / %q, want %q", outer, inner, want)
	}
	created, _ := got.Root.Object("Metadata").String("DateCreated")
	if created != FormatTimestamp(testNow) {
		t.Errorf("DateCreated = %q, want unchanged", created)
	}
}

func TestWriteLeadingKeys(t *testing.T) {
	d := scenarioA(t)
	// Integer-looking property keys must not move ahead of the leading keys.
	for _, key := range []string{"1", "42", "Scale-X"} {
		if err := d.SetProperty(2, key, tree.Int(5)); err != nil {
			t.Fatalf("SetProperty(%q): %v", key, err)
		}
	}
	text := string(mustBytes(t, d, testNow))

	v, err := tree.Parse([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	rank := map[string]int{"$id": 0, "$ref": 1, "$type": 2, "$values": 3}
	tree.Objects(v, func(o *tree.Object) {
		last := -1
		sawOther := false
		for _, k := range o.Keys() {
			r, leading := rank[k]
			if !leading {
				sawOther = true
				continue
			}
			if sawOther || r < last {
				t.Errorf("object keys out of order: %v", o.Keys())
				return
			}
			last = r
		}
	})

	got, err := LoadBytes([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	n, err := got.Node(2)
	if err != nil {
		t.Fatal(err)
	}
	keys := n.obj.Keys()
	at := func(k string) int { return slices.Index(keys, k) }
	if at("1") <= at(tree.KeyType) || at("1") >= at(keyNodeID) {
		t.Errorf("node keys = %v, want \"1\" between %s and %s", keys, tree.KeyType, keyNodeID)
	}
	if v, ok := n.Property("1"); !ok || v != tree.Int(5) {
		t.Errorf("Property(\"1\") = %v, %v", v, ok)
	}
}

func TestAddNodeIDsUnique(t *testing.T) {
	d := CreateEmpty(testNow)
	for i := 0; i < 10; i++ {
		props := tree.NewObject().Set("Nested", tree.NewObject().Set(tree.KeyID, tree.String("1")).Set("V", tree.Int(i)))
		id, err := d.AddNode(mountainType, mountainPorts, NodeOptions{Properties: props})
		if err != nil {
			t.Fatal(err)
		}
		if id != i+1 {
			t.Fatalf("node id = %d, want %d", id, i+1)
		}
	}

	seen := map[string]bool{}
	tree.Objects(d.Root, func(o *tree.Object) {
		if id, ok := o.ID(); ok {
			if seen[id] {
				t.Errorf("reference id %q declared twice", id)
			}
			seen[id] = true
		}
	})
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestAddNodeAfterGap(t *testing.T) {
	d := CreateEmpty(testNow)
	for i := 0; i < 3; i++ {
		mustAdd(t, d, mountainType, mountainPorts)
	}
	if err := d.RemoveNode(2); err != nil {
		t.Fatal(err)
	}
	if id := mustAdd(t, d, mountainType, mountainPorts); id != 4 {
		t.Errorf("id after gap = %d, want 4", id)
	}
}

func TestAddNodeDefaults(t *testing.T) {
	d := CreateEmpty(testNow)
	mustAdd(t, d, mountainType, mountainPorts)
	id := mustAdd(t, d, erosionType, erosionPorts)
	n, _ := d.Node(id)
	if n.Name() != "Erosion2" {
		t.Errorf("Name = %q, want short type name", n.Name())
	}
	if got := n.Position(); got != (Point{X: 26400, Y: 26000}) {
		t.Errorf("Position = %+v", got)
	}
	for _, p := range n.Ports() {
		parent := p.Object().Object("Parent")
		ref, _ := parent.Ref()
		nodeRef, _ := n.Object().ID()
		if ref != nodeRef {
			t.Errorf("port %s Parent = %q, want %q", p.Name(), ref, nodeRef)
		}
		if !p.IsExporting() {
			t.Errorf("port %s not exporting", p.Name())
		}
	}
}

func TestAddNodeInvalid(t *testing.T) {
	tests := []struct {
		name  string
		typ   string
		ports []PortSpec
		opts  NodeOptions
	}{
		{"empty type", " ", mountainPorts, NodeOptions{}},
		{"duplicate port", mountainType, []PortSpec{{"In", PrimaryIn}, {"In", PrimaryOut}}, NodeOptions{}},
		{"port without kind", mountainType, []PortSpec{{Name: "In"}}, NodeOptions{}},
		{"reserved property", mountainType, mountainPorts, NodeOptions{Properties: tree.NewObject().Set("Ports", tree.Int(1))}},
		{"alias property", mountainType, mountainPorts, NodeOptions{Properties: tree.NewObject().Set("X", tree.NewAlias("1"))}},
		{"control char name", mountainType, mountainPorts, NodeOptions{Name: "a\x00b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CreateEmpty(testNow)
			before := snapshot(t, d)
			_, err := d.AddNode(tt.typ, tt.ports, tt.opts)
			if !gerrors.Is(err, gerrors.ErrCodeInvalidInput) {
				t.Errorf("error = %v, want INVALID_INPUT", err)
			}
			if !bytes.Equal(before, snapshot(t, d)) {
				t.Error("failed AddNode modified the document")
			}
		})
	}
}

func TestAllocatorMonotonic(t *testing.T) {
	d := scenarioA(t)
	existing := map[string]bool{}
	tree.Objects(d.Root, func(o *tree.Object) {
		if id, ok := o.ID(); ok {
			existing[id] = true
		}
	})

	alloc := NewAllocator(d)
	issued := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := alloc.Next()
		if existing[id] {
			t.Fatalf("allocator returned existing id %q", id)
		}
		if issued[id] {
			t.Fatalf("allocator returned %q twice", id)
		}
		issued[id] = true
	}
}

func TestScanMaxID(t *testing.T) {
	v, err := tree.Parse([]byte(`{"$id":"3","a":{"$id":"x"},"b":[{"$id":"17"},{"$ref":"99"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := ScanMaxID(v); got != 17 {
		t.Errorf("ScanMaxID = %d, want 17", got)
	}
	if got := ScanMaxID(tree.NewObject()); got != 0 {
		t.Errorf("ScanMaxID(empty) = %d, want 0", got)
	}
}

func TestRemoveNodeClearsSelection(t *testing.T) {
	d := scenarioA(t)
	d.State().Set(keySelected, tree.Int(1))
	if err := d.RemoveNode(1); err != nil {
		t.Fatal(err)
	}
	if sel, _ := d.State().Int("SelectedNode"); sel != NoSelection {
		t.Errorf("SelectedNode = %d, want %d", sel, NoSelection)
	}

	d.State().Set(keySelected, tree.Int(2))
	if err := d.RemoveNode(99); !gerrors.Is(err, gerrors.ErrCodeNotFound) {
		t.Errorf("RemoveNode(99) = %v, want NOT_FOUND", err)
	}
	if sel, _ := d.State().Int("SelectedNode"); sel != 2 {
		t.Errorf("SelectedNode = %d, want 2", sel)
	}
}

func TestRemoveNodeNoDanglingRecords(t *testing.T) {
	d := CreateEmpty(testNow)
	a := mustAdd(t, d, mountainType, mountainPorts)
	b := mustAdd(t, d, erosionType, erosionPorts)
	c := mustAdd(t, d, erosionType, erosionPorts)
	for _, e := range [][4]any{{a, "Out", b, "In"}, {b, "Flow", c, "In"}} {
		if err := d.ConnectPort(e[0].(int), e[1].(string), e[2].(int), e[3].(string)); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.RemoveNode(b); err != nil {
		t.Fatal(err)
	}
	for _, conn := range d.Connections() {
		if conn.From == b || conn.To == b {
			t.Errorf("dangling connection %s", conn)
		}
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestConnectOverwrites(t *testing.T) {
	d := CreateEmpty(testNow)
	a := mustAdd(t, d, mountainType, mountainPorts)
	b := mustAdd(t, d, mountainType, mountainPorts)
	e := mustAdd(t, d, erosionType, erosionPorts)

	if err := d.ConnectPort(a, "Out", e, "In"); err != nil {
		t.Fatal(err)
	}
	if err := d.ConnectPort(b, "Out", e, "In"); err != nil {
		t.Fatal(err)
	}
	in := d.Inbound(e)
	if len(in) != 1 {
		t.Fatalf("Inbound = %v, want one connection", in)
	}
	if in[0].From != b {
		t.Errorf("From = %d, want %d", in[0].From, b)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestConnectErrors(t *testing.T) {
	tests := []struct {
		name     string
		from     int
		fromPort string
		to       int
		toPort   string
		code     gerrors.Code
	}{
		{"missing source", 9, "Out", 2, "In", gerrors.ErrCodeNotFound},
		{"missing destination", 1, "Out", 9, "In", gerrors.ErrCodeNotFound},
		{"missing source port", 1, "Nope", 2, "In", gerrors.ErrCodeNotFound},
		{"missing destination port", 1, "Out", 2, "Nope", gerrors.ErrCodeNotFound},
		{"self", 2, "Out", 2, "In", gerrors.ErrCodeInvalidInput},
		{"into output", 1, "Out", 2, "Flow", gerrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := scenarioA(t)
			before := snapshot(t, d)
			err := d.ConnectPort(tt.from, tt.fromPort, tt.to, tt.toPort)
			if !gerrors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
			if !bytes.Equal(before, snapshot(t, d)) {
				t.Error("failed ConnectPort modified the document")
			}
		})
	}
}

func TestDisconnectNullRecord(t *testing.T) {
	d := scenarioA(t)
	n, _ := d.Node(1)
	p, err := n.Port("In")
	if err != nil {
		t.Fatal(err)
	}
	p.obj.Set(keyRecord, tree.Null{})

	before := snapshot(t, d)
	if err := d.DisconnectPort(1, "In"); !gerrors.Is(err, gerrors.ErrCodeAlreadyDisconnected) {
		t.Errorf("DisconnectPort on null record = %v, want ALREADY_DISCONNECTED", err)
	}
	if !bytes.Equal(before, snapshot(t, d)) {
		t.Error("failed disconnect modified the document")
	}

	if err := d.ConnectPort(2, "Out", 1, "In"); err != nil {
		t.Fatalf("ConnectPort over null record: %v", err)
	}
	if c, ok := p.Record(); !ok || c.From != 2 || c.ToPort != "In" {
		t.Errorf("Record = %+v, %v", c, ok)
	}
}

func TestDisconnect(t *testing.T) {
	d := scenarioA(t)
	if err := d.DisconnectPort(2, "In"); err != nil {
		t.Fatalf("DisconnectPort: %v", err)
	}
	if n := len(d.Connections()); n != 0 {
		t.Errorf("Connections = %d, want 0", n)
	}

	before := snapshot(t, d)
	err := d.DisconnectPort(2, "In")
	if !gerrors.Is(err, gerrors.ErrCodeAlreadyDisconnected) {
		t.Errorf("second disconnect = %v, want ALREADY_DISCONNECTED", err)
	}
	if !bytes.Equal(before, snapshot(t, d)) {
		t.Error("failed disconnect modified the document")
	}

	if err := d.DisconnectPort(2, "Nope"); !gerrors.Is(err, gerrors.ErrCodeNotFound) {
		t.Errorf("unknown port = %v, want NOT_FOUND", err)
	}
	if err := d.DisconnectPort(7, "In"); !gerrors.Is(err, gerrors.ErrCodeNotFound) {
		t.Errorf("unknown node = %v, want NOT_FOUND", err)
	}
}

func TestSetProperty(t *testing.T) {
	d := scenarioA(t)
	if err := d.SetProperty(1, "Height", tree.Float(0.5)); err != nil {
		t.Fatal(err)
	}
	if err := d.SetProperty(1, "Scale", tree.Float(2)); err != nil {
		t.Fatal(err)
	}
	// Replacing keeps the original position.
	if err := d.SetProperty(1, "Height", tree.Float(0.75)); err != nil {
		t.Fatal(err)
	}
	n, _ := d.Node(1)
	if got := strings.Join(n.PropertyKeys(), ","); got != "Height,Scale" {
		t.Errorf("PropertyKeys = %s", got)
	}
	v, _ := n.Property("Height")
	if f, _ := v.(tree.Number).Float64(); f != 0.75 {
		t.Errorf("Height = %v", v)
	}

	obj := tree.NewObject().Set(tree.KeyID, tree.String("5")).Set("A", tree.Int(1))
	if err := d.SetProperty(1, "Range", obj); err != nil {
		t.Fatal(err)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate after nested property: %v", err)
	}
	if id, _ := obj.ID(); id != "5" {
		t.Error("SetProperty modified the caller's value")
	}

	if err := d.RemoveProperty(1, "Scale"); err != nil {
		t.Fatal(err)
	}
	if err := d.RemoveProperty(1, "Scale"); !gerrors.Is(err, gerrors.ErrCodeNotFound) {
		t.Errorf("RemoveProperty twice = %v, want NOT_FOUND", err)
	}
}

func TestSetPropertyErrors(t *testing.T) {
	tests := []struct {
		name  string
		id    int
		key   string
		value tree.Value
		code  gerrors.Code
	}{
		{"missing node", 42, "Seed", tree.Int(1), gerrors.ErrCodeNotFound},
		{"fixed key", 1, "Name", tree.String("x"), gerrors.ErrCodeInvalidInput},
		{"dollar key", 1, "$type", tree.String("x"), gerrors.ErrCodeInvalidInput},
		{"empty key", 1, "", tree.Int(1), gerrors.ErrCodeInvalidInput},
		{"alias value", 1, "Seed", tree.NewArray(tree.NewAlias("1")), gerrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := scenarioA(t)
			before := snapshot(t, d)
			if err := d.SetProperty(tt.id, tt.key, tt.value); !gerrors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
			if !bytes.Equal(before, snapshot(t, d)) {
				t.Error("failed SetProperty modified the document")
			}
		})
	}
}

func TestMoveAndRename(t *testing.T) {
	d := scenarioA(t)
	if err := d.MoveNode(1, Point{X: 100, Y: -50.5}); err != nil {
		t.Fatal(err)
	}
	if err := d.RenameNode(1, "Base"); err != nil {
		t.Fatal(err)
	}
	got := roundTrip(t, d)
	n, _ := got.Node(1)
	if n.Position() != (Point{X: 100, Y: -50.5}) {
		t.Errorf("Position = %+v", n.Position())
	}
	if n.Name() != "Base" {
		t.Errorf("Name = %q", n.Name())
	}
	if err := d.RenameNode(1, ""); !gerrors.Is(err, gerrors.ErrCodeInvalidInput) {
		t.Errorf("empty rename = %v, want INVALID_INPUT", err)
	}
}

func TestCreateEmpty(t *testing.T) {
	d := CreateEmpty(testNow)
	if d.NodeCount() != 0 {
		t.Errorf("NodeCount = %d", d.NodeCount())
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if sel, ok := d.State().Int("SelectedNode"); !ok || sel != NoSelection {
		t.Errorf("SelectedNode = %d, %v", sel, ok)
	}
	tabs := d.Graph().Object("GraphTabs").Values()
	if tabs == nil || tabs.Len() != 1 {
		t.Fatalf("GraphTabs = %v", tabs)
	}
	if d.BuildDefinition() == nil {
		t.Error("missing BuildDefinition")
	}
	if got, want := ScanMaxID(d.Root), len(d.Index()); got != want {
		t.Errorf("ids not sequential: max %d, count %d", got, want)
	}

	other := CreateEmpty(testNow)
	a, _ := d.Graph().String("Id")
	b, _ := other.Graph().String("Id")
	if a == b {
		t.Error("projects share an id")
	}
}

func TestFormatTimestamp(t *testing.T) {
	got := FormatTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 999999999, time.UTC))
	if got != "2024-01-02 03:04:05Z" {
		t.Errorf("FormatTimestamp = %q", got)
	}
}

func TestLoadFormatErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not json", `{"Assets":`},
		{"array root", `[]`},
		{"no assets", `{"$id":"1"}`},
		{"empty assets", `{"$id":"1","Assets":{"$id":"2","$values":[]}}`},
		{"no graph", `{"$id":"1","Assets":{"$id":"2","$values":[{"$id":"3"}]}}`},
		{"no nodes", `{"$id":"1","Assets":{"$id":"2","$values":[{"$id":"3","Terrain":{"$id":"4"}}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.text))
			if !gerrors.Is(err, gerrors.ErrCodeFormat) {
				t.Errorf("error = %v, want FORMAT_ERROR", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	const minimal = `{"$id":"1","Assets":{"$id":"2","$values":[{"$id":"3","Terrain":{"$id":"4","Nodes":{"$id":"5"%s}}}]}%s}`
	tests := []struct {
		name  string
		nodes string
		tail  string
		ok    bool
	}{
		{"empty", "", "", true},
		{"duplicate id", "", `,"Extra":{"$id":"5"}`, false},
		{"forward alias", "", `,"Extra":{"$ref":"77"}`, false},
		{"backward alias", "", `,"Extra":{"$ref":"4"}`, true},
		{"bad node key", `,"x":{"$id":"6","Id":1}`, "", false},
		{"id mismatch", `,"3":{"$id":"6","Id":1}`, "", false},
		{"dangling source", `,"1":{"$id":"6","Id":1,"Ports":{"$id":"7","$values":[{"$id":"8","Name":"In","Record":{"$id":"9","From":5,"To":1,"FromPort":"Out","ToPort":"In","IsValid":true}}]}}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Replace(minimal, "%s", tt.nodes, 1)
			text = strings.Replace(text, "%s", tt.tail, 1)
			d, err := LoadBytes([]byte(text))
			if err != nil {
				t.Fatalf("LoadBytes: %v", err)
			}
			err = d.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate = %v, want nil", err)
			}
			if !tt.ok && !gerrors.Is(err, gerrors.ErrCodeFormat) {
				t.Errorf("Validate = %v, want FORMAT_ERROR", err)
			}
		})
	}
}

func TestPortKinds(t *testing.T) {
	tests := []struct {
		in   string
		want PortKind
	}{
		{"PrimaryIn", PrimaryIn},
		{"PrimaryIn, Required", PrimaryInRequired},
		{"primary-output", PrimaryOut},
		{"in", SecondaryIn},
		{"secondary-input-required", SecondaryInReq},
		{"Out", SecondaryOut},
	}
	for _, tt := range tests {
		got, err := ParsePortKind(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParsePortKind(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParsePortKind("sideways"); !gerrors.Is(err, gerrors.ErrCodeInvalidInput) {
		t.Errorf("unknown kind error = %v", err)
	}
	if !PrimaryInRequired.IsRequired() || PrimaryIn.IsRequired() {
		t.Error("IsRequired mismatch")
	}
	if !SecondaryOut.IsOutput() || SecondaryIn.IsOutput() {
		t.Error("IsOutput mismatch")
	}
}

func TestShortTypeName(t *testing.T) {
	for in, want := range map[string]string{
		mountainType:  "Mountain",
		"Erosion2":    "Erosion2",
		"A.B.C":       "C",
		" X.Y , Asm ": "Y",
	} {
		if got := ShortTypeName(in); got != want {
			t.Errorf("ShortTypeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.terrain")
	d := scenarioA(t)
	if err := WriteFile(path, d, testNow); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// Overwrite once more to exercise the replace path.
	if err := WriteFile(path, d, testNow); err != nil {
		t.Fatalf("WriteFile overwrite: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !Equal(d, got) {
		t.Error("file round trip changed the document")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %v, want only the project file", names)
	}
}

func TestFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadFile(filepath.Join(dir, "missing.terrain")); !gerrors.Is(err, gerrors.ErrCodeFileNotFound) {
		t.Errorf("missing file = %v, want FILE_NOT_FOUND", err)
	}

	bad := filepath.Join(dir, "bad.terrain")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(bad); !gerrors.Is(err, gerrors.ErrCodeFormat) {
		t.Errorf("bad file = %v, want FORMAT_ERROR", err)
	}

	noDir := filepath.Join(dir, "nope", "x.terrain")
	if err := WriteFile(noDir, CreateEmpty(testNow), testNow); !gerrors.Is(err, gerrors.ErrCodeIO) {
		t.Errorf("write into missing dir = %v, want IO_ERROR", err)
	}
}
