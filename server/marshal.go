package server

import (
	"io"

	"github.com/mailru/easyjson/jwriter"

	"github.com/royalcat/geograph/generator"
	"github.com/royalcat/geograph/quadtree"
)

// Responses are written with easyjson writers. Edge lists for dense
// graphs run to millions of entries, reflective marshaling is too slow
// for that.

func writeIndexInfo(out io.Writer, tree *quadtree.Node) {
	w := jwriter.Writer{}
	w.RawByte('{')
	w.RawString(`"size":`)
	w.Int(tree.Size())
	w.RawString(`,"cells":`)
	w.Int(tree.MaxCellID() + 1)
	w.RawByte('}')
	w.DumpTo(out)
}

func writeElementList(out io.Writer, ids []quadtree.ElementID) {
	w := jwriter.Writer{}
	w.RawByte('[')
	for i, id := range ids {
		if i > 0 {
			w.RawByte(',')
		}
		w.Int64(id)
	}
	w.RawByte(']')
	w.DumpTo(out)
}

func writeGraph(out io.Writer, g *generator.Graph) {
	w := jwriter.Writer{}
	w.RawByte('{')
	w.RawString(`"n":`)
	w.Int(g.N)
	w.RawString(`,"edges":[`)
	for i, e := range g.Edges {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawByte('[')
		w.Int64(e[0])
		w.RawByte(',')
		w.Int64(e[1])
		w.RawByte(']')
	}
	w.RawString(`]}`)
	w.DumpTo(out)
}
