// Package render groups the exporters that turn a project's node graph
// into something viewable.
//
// Currently there is one, [dot], which writes Graphviz DOT and lays it out
// to SVG through an embedded Graphviz build.
//
//	src := dot.ToDOT(doc, dot.Options{Detailed: true})
//	svg, err := dot.RenderSVG(src)
package render
