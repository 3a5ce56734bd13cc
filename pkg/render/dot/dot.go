package dot

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/yushimatenjin/gaea-mcp/pkg/terrain"
	"github.com/yushimatenjin/gaea-mcp/pkg/tree"
)

// Options configures diagram generation.
type Options struct {
	// Detailed includes the node type and scalar properties in labels.
	// When false, only the name and id are shown.
	Detailed bool
	// RankDir is the Graphviz layout direction (LR, TB, RL, BT).
	RankDir string
}

// ToDOT converts the node graph of d to Graphviz DOT source. Nodes are
// emitted in id order and edges in destination order, so the output is
// stable for an unchanged document.
func ToDOT(d *terrain.Document, opts Options) string {
	rankdir := strings.ToUpper(opts.RankDir)
	if rankdir == "" {
		rankdir = "LR"
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range d.AllNodes() {
		label := fmtLabel(n, opts.Detailed)
		attrs := fmtAttrs(n, label)
		fmt.Fprintf(&buf, "  n%d [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, c := range d.Connections() {
		fmt.Fprintf(&buf, "  n%d -> n%d [label=%q];\n", c.From, c.To, c.FromPort+" → "+c.ToPort)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n *terrain.Node, detailed bool) string {
	head := fmt.Sprintf("%s (#%d)", n.Name(), n.ID)
	if !detailed {
		return head
	}

	parts := []string{head, n.ShortType()}
	for _, k := range n.PropertyKeys() {
		v, _ := n.Property(k)
		if s, ok := scalar(v); ok {
			parts = append(parts, fmt.Sprintf("%s: %s", k, s))
		}
	}
	return strings.Join(parts, "\n")
}

func scalar(v tree.Value) (string, bool) {
	switch v := v.(type) {
	case tree.String:
		return string(v), true
	case tree.Number:
		return string(v), true
	case tree.Bool:
		return strconv.FormatBool(bool(v)), true
	}
	return "", false
}

// fmtAttrs highlights nodes with an unconnected required input.
func fmtAttrs(n *terrain.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	for _, p := range n.Ports() {
		if !p.Kind().IsRequired() {
			continue
		}
		if _, ok := p.Record(); !ok {
			attrs = append(attrs, "color=\"#d9534f\"", "penwidth=2")
			break
		}
	}
	return attrs
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the Graphviz root element with one whose
// viewBox starts at the origin and whose size matches it.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
