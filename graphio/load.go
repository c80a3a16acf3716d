package graphio

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/royalcat/geograph/generator"
)

func Load(r io.Reader, log *slog.Logger) (*generator.Graph, Metadata, error) {
	var meta Metadata

	magic := make([]byte, len(MAGIC_BYTES))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, meta, fmt.Errorf("reading magic bytes: %w", err)
	}
	if string(magic) != string(MAGIC_BYTES) {
		return nil, meta, fmt.Errorf("not a geograph file")
	}

	var compatibilityLevel uint32
	if err := binary.Read(r, binary.LittleEndian, &compatibilityLevel); err != nil {
		return nil, meta, fmt.Errorf("reading compatibility level: %w", err)
	}
	if compatibilityLevel != COMPATIBILITY_LEVEL {
		return nil, meta, fmt.Errorf("unsupported compatibility level: %d", compatibilityLevel)
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, meta, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	meta.RunID, err = readString(dec)
	if err != nil {
		return nil, meta, err
	}
	created, err := readString(dec)
	if err != nil {
		return nil, meta, err
	}
	meta.DateCreated, _ = time.Parse(time.RFC3339, created)

	var n, edges uint64
	if err := binary.Read(dec, binary.LittleEndian, &n); err != nil {
		return nil, meta, err
	}
	if err := binary.Read(dec, binary.LittleEndian, &edges); err != nil {
		return nil, meta, err
	}

	graph := &generator.Graph{
		N:     int(n),
		Edges: make([][2]int64, edges),
	}
	for i := range graph.Edges {
		if err := binary.Read(dec, binary.LittleEndian, &graph.Edges[i]); err != nil {
			return nil, meta, fmt.Errorf("reading edge %d: %w", i, err)
		}
	}

	log.Info("graph loaded", "nodes", graph.N, "edges", len(graph.Edges), "run_id", meta.RunID)
	return graph, meta, nil
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
