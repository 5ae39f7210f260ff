package archive

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/log"
	"github.com/achilleasa/widebvh/types"
)

var logger = log.New("archive")

// Write archive to a file, replacing it if it exists.
func WriteFile(filename string, a *Archive) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err = Write(f, a); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write archive as a zip stream.
func Write(w io.Writer, a *Archive) error {
	if a.Binary == nil || !a.Binary.Built() || a.Compressed == nil || !a.Compressed.Built() {
		return fmt.Errorf("archive: %w", bvh.ErrNotBuilt)
	}

	start := time.Now()
	zw := zip.NewWriter(w)

	var manifest bytes.Buffer
	if err := gob.NewEncoder(&manifest).Encode(&a.Manifest); err != nil {
		return err
	}

	var vertices, indices bytes.Buffer
	if err := binary.Write(&vertices, binary.LittleEndian, []types.Vec4(a.Store)); err != nil {
		return err
	}
	if err := binary.Write(&indices, binary.LittleEndian, a.Binary.Indices()); err != nil {
		return err
	}

	entries := []struct {
		name string
		data []byte
	}{
		{manifestFile, manifest.Bytes()},
		{verticesFile, vertices.Bytes()},
		{bvhNodesFile, bvh.EncodeNodes(a.Binary.Nodes())},
		{bvhIndicesFile, indices.Bytes()},
		{cwbvhNodesFile, a.Compressed.NodeBytes()},
		{cwbvhPrimsFile, a.Compressed.PrimitiveBytes()},
	}

	total := 0
	for _, entry := range entries {
		fw, err := zw.Create(entry.name)
		if err != nil {
			return err
		}
		if _, err = fw.Write(entry.data); err != nil {
			return fmt.Errorf("archive: failed to write %s: %w", entry.name, err)
		}
		total += len(entry.data)
	}
	if err := zw.Close(); err != nil {
		return err
	}

	logger.Noticef(
		"wrote archive %q (%s uncompressed) in %d ms",
		a.Manifest.Name, bvh.FormatSize(total), time.Since(start).Nanoseconds()/1e6,
	)
	return nil
}
