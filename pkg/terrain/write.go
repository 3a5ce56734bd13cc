package terrain

import (
	"bytes"
	"io"
	"time"

	"github.com/yushimatenjin/gaea-mcp/pkg/tree"
)

// Write stamps the document as saved at now and encodes it to w.
//
// Both last-saved timestamps (the graph section's and the outer
// document's) are updated first. Every object is written with its "$id",
// "$ref", "$type" and "$values" keys ahead of all other keys; the external
// application refuses files that do not follow this order.
func (d *Document) Write(w io.Writer, now time.Time) error {
	d.StampSaved(now)
	return tree.Encode(w, d.Root, tree.DefaultIndent)
}

// Bytes is like [Document.Write] but returns the encoded text.
func (d *Document) Bytes(now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf, now); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StampSaved sets both last-saved timestamps to now.
func (d *Document) StampSaved(now time.Time) {
	ts := tree.String(FormatTimestamp(now))
	for _, md := range d.metadataSections() {
		md.Set(keyDateSaved, ts)
	}
}

func (d *Document) metadataSections() []*tree.Object {
	var out []*tree.Object
	if md := d.deref(d.graph.Object(keyMetadata)); md != nil {
		out = append(out, md)
	}
	if md := d.deref(d.Root.Object(keyMetadata)); md != nil {
		out = append(out, md)
	}
	return out
}

// Equal reports whether two documents are structurally identical, ignoring
// the last-saved timestamps.
func Equal(a, b *Document) bool {
	ca, cb := a.Root.Clone(), b.Root.Clone()
	for _, root := range []*tree.Object{ca, cb} {
		for _, md := range []*tree.Object{root.Object(keyMetadata), graphMetadata(root)} {
			if md != nil {
				md.Delete(keyDateSaved)
			}
		}
	}
	return tree.Equal(ca, cb)
}

func graphMetadata(root *tree.Object) *tree.Object {
	assets := root.Object(keyAssets)
	if assets == nil || assets.Values() == nil || assets.Values().Len() == 0 {
		return nil
	}
	asset, _ := assets.Values().Items[0].(*tree.Object)
	if asset == nil || asset.Object(keyGraph) == nil {
		return nil
	}
	return asset.Object(keyGraph).Object(keyMetadata)
}
