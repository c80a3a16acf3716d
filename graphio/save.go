// Package graphio persists generated graphs as a compact binary edge
// list, compressed with zstd behind a magic header and a compatibility
// level so the format can evolve.
package graphio

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/royalcat/geograph/generator"
)

var MAGIC_BYTES = []byte("GEOGRAPH")

const COMPATIBILITY_LEVEL uint32 = 1

type Metadata struct {
	RunID       string
	DateCreated time.Time
}

func Save(graph *generator.Graph, meta Metadata, w io.Writer) error {
	if _, err := w.Write(MAGIC_BYTES); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, COMPATIBILITY_LEVEL); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}

	if err := writeString(enc, meta.RunID); err != nil {
		return err
	}
	if err := writeString(enc, meta.DateCreated.Format(time.RFC3339)); err != nil {
		return err
	}

	if err := binary.Write(enc, binary.LittleEndian, uint64(graph.N)); err != nil {
		return err
	}
	if err := binary.Write(enc, binary.LittleEndian, uint64(len(graph.Edges))); err != nil {
		return err
	}
	for _, e := range graph.Edges {
		if err := binary.Write(enc, binary.LittleEndian, e); err != nil {
			return err
		}
	}

	return enc.Close()
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}
