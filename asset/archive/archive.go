// Package archive stores built hierarchies in zip files so they can be
// reloaded without rebuilding.
//
// An archive contains a gob-encoded manifest plus raw little-endian blobs for
// the vertex store, the binary tree nodes and indices, and the compressed
// wide node and primitive arrays.
package archive

import (
	"errors"
	"time"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/cwbvh"
	"github.com/achilleasa/widebvh/wide"
	"github.com/google/uuid"
)

// Version of the archive container. Bumped whenever the set or encoding of
// archive entries changes.
const FormatVersion = 1

const (
	manifestFile   = "manifest.gob"
	verticesFile   = "vertices.bin"
	bvhNodesFile   = "bvh_nodes.bin"
	bvhIndicesFile = "bvh_indices.bin"
	cwbvhNodesFile = "cwbvh_nodes.bin"
	cwbvhPrimsFile = "cwbvh_prims.bin"
)

var (
	ErrMissingEntry    = errors.New("archive: missing entry")
	ErrVersionMismatch = errors.New("archive: version mismatch")
	ErrCorrupt         = errors.New("archive: corrupt entry")
)

// Manifest describes the archive contents.
type Manifest struct {
	FormatVersion uint32
	LayoutVersion uint32

	Name    string
	Created time.Time

	// Id of the binary tree when the archive was written.
	TreeID uuid.UUID

	Triangles  uint32
	Refittable bool

	BuildOptions bvh.BuildOptions
	WideOptions  wide.Options
}

// Archive bundles a primitive store with the hierarchies built over it.
type Archive struct {
	Manifest Manifest

	Store      bvh.Store
	Binary     *bvh.BVH
	Compressed *cwbvh.BVH
}

// Create an archive for a binary tree and a compressed tree built over the
// same store.
func New(name string, binary *bvh.BVH, compressed *cwbvh.BVH, wideOpts wide.Options) *Archive {
	return &Archive{
		Manifest: Manifest{
			FormatVersion: FormatVersion,
			LayoutVersion: cwbvh.LayoutVersion,
			Name:          name,
			Created:       time.Now().UTC(),
			TreeID:        binary.ID(),
			Triangles:     uint32(binary.Store().TriangleCount()),
			Refittable:    binary.Refittable(),
			BuildOptions:  binary.Options(),
			WideOptions:   wideOpts,
		},
		Store:      binary.Store(),
		Binary:     binary,
		Compressed: compressed,
	}
}
