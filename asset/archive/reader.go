package archive

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/achilleasa/widebvh/asset"
	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/cwbvh"
	"github.com/achilleasa/widebvh/types"
)

// Load archive from a local path or http(s) URL.
func Load(pathToArchive string) (*Archive, error) {
	res, err := asset.NewResource(pathToArchive, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return Read(res)
}

// Read an archive and restore its hierarchies. The restored binary tree is
// bound to the archived vertex store.
func Read(res *asset.Resource) (*Archive, error) {
	logger.Noticef(`loading archive from "%s"`, res.Path())
	start := time.Now()

	// zip needs a ReaderAt so the whole archive is buffered in memory.
	data, err := io.ReadAll(res)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		switch f.Name {
		case manifestFile, verticesFile, bvhNodesFile, bvhIndicesFile, cwbvhNodesFile, cwbvhPrimsFile:
		default:
			logger.Warningf("unknown file %s in archive; skipping", f.Name)
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		entries[f.Name], err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("archive: failed to load %s: %w", f.Name, err)
		}
	}
	for _, name := range []string{manifestFile, verticesFile, bvhNodesFile, bvhIndicesFile, cwbvhNodesFile, cwbvhPrimsFile} {
		if _, exists := entries[name]; !exists {
			return nil, fmt.Errorf("%w %s", ErrMissingEntry, name)
		}
	}

	a := &Archive{}
	if err = gob.NewDecoder(bytes.NewReader(entries[manifestFile])).Decode(&a.Manifest); err != nil {
		return nil, fmt.Errorf("%w %s: %s", ErrCorrupt, manifestFile, err)
	}
	if a.Manifest.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: archive format %d; expected %d", ErrVersionMismatch, a.Manifest.FormatVersion, FormatVersion)
	}
	if a.Manifest.LayoutVersion != cwbvh.LayoutVersion {
		return nil, fmt.Errorf("%w: node layout %d; expected %d", ErrVersionMismatch, a.Manifest.LayoutVersion, cwbvh.LayoutVersion)
	}

	if a.Store, err = decodeVertices(entries[verticesFile], a.Manifest.Triangles); err != nil {
		return nil, err
	}
	nodes, err := bvh.DecodeNodes(entries[bvhNodesFile])
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrCorrupt, bvhNodesFile, err)
	}
	indices, err := decodeIndices(entries[bvhIndicesFile])
	if err != nil {
		return nil, err
	}
	if a.Binary, err = bvh.Restore(a.Manifest.BuildOptions, a.Store, nodes, indices, a.Manifest.Refittable); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrCorrupt, bvhNodesFile, err)
	}
	if a.Compressed, err = cwbvh.FromBytes(entries[cwbvhNodesFile], entries[cwbvhPrimsFile]); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrCorrupt, cwbvhNodesFile, err)
	}

	logger.Noticef(
		"loaded archive %q with %d triangles in %d ms",
		a.Manifest.Name, a.Manifest.Triangles, time.Since(start).Nanoseconds()/1e6,
	)
	return a, nil
}

func decodeVertices(data []byte, triangles uint32) (bvh.Store, error) {
	const vertexSize = 16
	if uint64(len(data)) != uint64(triangles)*3*vertexSize {
		return nil, fmt.Errorf("%w %s: expected %d triangles; got %d bytes", ErrCorrupt, verticesFile, triangles, len(data))
	}
	vertices := make([]types.Vec4, 3*triangles)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, vertices); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrCorrupt, verticesFile, err)
	}
	return bvh.NewStore(vertices)
}

func decodeIndices(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w %s: length %d is not a multiple of 4", ErrCorrupt, bvhIndicesFile, len(data))
	}
	indices := make([]uint32, len(data)/4)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, indices); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrCorrupt, bvhIndicesFile, err)
	}
	return indices, nil
}
