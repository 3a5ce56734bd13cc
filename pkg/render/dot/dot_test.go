package dot

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/yushimatenjin/gaea-mcp/pkg/catalog"
	"github.com/yushimatenjin/gaea-mcp/pkg/terrain"
)

func sampleDoc(t *testing.T) *terrain.Document {
	t.Helper()
	d := terrain.CreateEmpty(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	for _, name := range []string{"Mountain", "Erosion2", "Combine"} {
		typ, err := catalog.Default().Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := d.AddNode(typ.FullName, typ.PortSpecs(), terrain.NodeOptions{Properties: typ.DefaultProperties()}); err != nil {
			t.Fatalf("AddNode(%s): %v", name, err)
		}
	}
	if err := d.ConnectPort(1, "Out", 2, "In"); err != nil {
		t.Fatal(err)
	}
	if err := d.ConnectPort(2, "Out", 3, "In"); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestToDOT(t *testing.T) {
	got := ToDOT(sampleDoc(t), Options{})

	for _, want := range []string{
		"rankdir=LR;",
		`n1 [label="Mountain (#1)"];`,
		`n2 [label="Erosion2 (#2)"];`,
		`n1 -> n2 [label="Out → In"];`,
		`n2 -> n3 [label="Out → In"];`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("DOT missing %q\n%s", want, got)
		}
	}
	if strings.Index(got, "n1 [") > strings.Index(got, "n2 [") {
		t.Error("nodes not in id order")
	}
}

func TestToDOTDetailed(t *testing.T) {
	got := ToDOT(sampleDoc(t), Options{Detailed: true, RankDir: "tb"})
	if !strings.Contains(got, "rankdir=TB;") {
		t.Errorf("rankdir not applied\n%s", got)
	}
	if !strings.Contains(got, `Mountain (#1)\nMountain\nScale: 1.0`) {
		t.Errorf("detailed label missing type or properties\n%s", got)
	}
}

func TestToDOTMarksMissingRequiredInput(t *testing.T) {
	d := sampleDoc(t)
	if err := d.DisconnectPort(2, "In"); err != nil {
		t.Fatal(err)
	}
	got := ToDOT(d, Options{})
	var line string
	for _, l := range strings.Split(got, "\n") {
		if strings.Contains(l, "n2 [") {
			line = l
		}
	}
	if !strings.Contains(line, "penwidth=2") {
		t.Errorf("node 2 not highlighted: %q", line)
	}
	if strings.Contains(got, "n1 -> n2") {
		t.Error("disconnected edge still present")
	}
}

func TestToDOTEmpty(t *testing.T) {
	got := ToDOT(terrain.CreateEmpty(time.Now()), Options{})
	if strings.Contains(got, "->") || !strings.HasSuffix(got, "}\n") {
		t.Errorf("unexpected DOT for empty graph:\n%s", got)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	got := normalizeViewBox(in)
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.00 50.00" width="100" height="50"><g/></svg>`
	if string(got) != want {
		t.Errorf("got %s\nwant %s", got, want)
	}

	plain := []byte(`<svg><g/></svg>`)
	if !bytes.Equal(normalizeViewBox(plain), plain) {
		t.Error("svg without viewBox should be unchanged")
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(ToDOT(sampleDoc(t), Options{}))
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) || !bytes.Contains(svg, []byte("Mountain (#1)")) {
		t.Errorf("unexpected SVG output: %.200s", svg)
	}
}
