// Package dot renders a project's node graph as a Graphviz diagram.
//
// # Usage
//
// Convert a document to DOT source, then render to SVG:
//
//	src := dot.ToDOT(doc, dot.Options{Detailed: true})
//	svg, err := dot.RenderSVG(src)
//
// Nodes are labeled "name (#id)". Each connection becomes an edge from the
// source node to the destination node labeled with both port names, so a
// node feeding two inputs of the same destination produces two edges.
//
// # Options
//
//   - Detailed: adds the short type name and scalar properties to labels
//   - RankDir: Graphviz rank direction, "LR" when empty
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. No external Graphviz install is needed.
package dot
