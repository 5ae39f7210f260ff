// Package mesh loads triangle meshes from wavefront obj files into
// primitive stores.
package mesh

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/widebvh/asset"
	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/log"
	"github.com/achilleasa/widebvh/types"
)

var ErrNoFaces = errors.New("mesh: no faces defined")

// Group is a named run of consecutive triangles.
type Group struct {
	Name  string
	First uint32
	Count uint32
}

// Mesh is a triangulated mesh ready to be indexed by a hierarchy.
type Mesh struct {
	Name   string
	Groups []Group

	// Three vertices per triangle in face order.
	Store  bvh.Store
	Bounds types.AABB
}

// Number of triangles in the mesh.
func (m *Mesh) TriangleCount() int {
	return m.Store.TriangleCount()
}

// Load a mesh from a local path or http(s) URL.
func Load(pathToMesh string) (*Mesh, error) {
	res, err := asset.NewResource(pathToMesh, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return Read(res)
}

// Read a mesh from a wavefront obj resource. Faces with more than three
// vertices are fan-triangulated. Normals, texture coordinates and material
// statements are ignored. Other obj files may be pulled in with "call".
func Read(res *asset.Resource) (*Mesh, error) {
	r := newWavefrontReader()
	r.logger.Noticef(`parsing mesh from "%s"`, res.Path())
	start := time.Now()

	if err := r.parse(res); err != nil {
		return nil, err
	}
	r.closeGroup()
	if len(r.vertices) == 0 {
		return nil, fmt.Errorf(`%w in "%s"`, ErrNoFaces, res.Path())
	}

	m := &Mesh{
		Name:   res.Name(),
		Groups: r.groups,
		Store:  bvh.Store(r.vertices),
		Bounds: types.EmptyAABB(),
	}
	for _, v := range r.vertices {
		m.Bounds.GrowPoint(v.Vec3())
	}

	r.logger.Noticef(
		"parsed %d triangles in %d groups in %d ms",
		m.TriangleCount(), len(m.Groups), time.Since(start).Nanoseconds()/1e6,
	)
	return m, nil
}

type wavefrontReader struct {
	logger log.Logger

	// Coordinates from all parsed files.
	coords []types.Vec3

	// Triangle vertices.
	vertices []types.Vec4

	groups    []Group
	groupName string
	groupFrom int

	// Frames describing the chain of "call" statements that led to the
	// file currently being parsed.
	errStack []string
}

func newWavefrontReader() *wavefrontReader {
	return &wavefrontReader{
		logger:    log.New("wavefront reader"),
		groupName: "default",
	}
}

// Generate an error message that also includes any data in the error stack.
func (r *wavefrontReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)
	return errors.New(strings.Trim(
		fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n")),
		"\n",
	))
}

func (r *wavefrontReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

func (r *wavefrontReader) popFrame() {
	r.errStack = r.errStack[1:]
}

// Close the current group, dropping it if it contains no triangles.
func (r *wavefrontReader) closeGroup() {
	first := r.groupFrom / 3
	count := len(r.vertices)/3 - first
	if count == 0 {
		if r.groupName != "default" {
			r.logger.Warningf(`dropping group "%s" as it contains no polygons`, r.groupName)
		}
		return
	}
	r.groups = append(r.groups, Group{Name: r.groupName, First: uint32(first), Count: uint32(count)})
}

func (r *wavefrontReader) parse(res *asset.Resource) error {
	lineNum := 0

	// Positive face indices are relative to the file they appear in.
	relOffset := len(r.coords)

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "call":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "call"; expected 1 argument; got %d`, len(lineTokens)-1)
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [call]", res.Path(), lineNum))
			incRes, err := asset.NewResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			err = r.parse(incRes)
			incRes.Close()
			if err != nil {
				return err
			}
			r.popFrame()
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.coords = append(r.coords, v)
		case "g", "o":
			if len(lineTokens) < 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument for object name; got %d`, lineTokens[0], len(lineTokens)-1)
			}
			r.closeGroup()
			r.groupName = lineTokens[1]
			r.groupFrom = len(r.vertices)
		case "f":
			if err := r.parseFace(lineTokens, relOffset); err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		case "vn", "vt", "mtllib", "usemtl", "s":
		default:
			r.logger.Debugf(`%s:%d: skipping unsupported statement "%s"`, res.Path(), lineNum, lineTokens[0])
		}
	}

	return scanner.Err()
}

// Parse face definition. Each face argument is a vertex index optionally
// followed by /uv and /normal indices which are ignored. Indices start from 1
// and may be negative to select coordinates from the end of the list.
func (r *wavefrontReader) parseFace(lineTokens []string, relOffset int) error {
	if len(lineTokens) < 4 {
		return fmt.Errorf(`unsupported syntax for "f"; expected at least 3 arguments; got %d`, len(lineTokens)-1)
	}

	corners := make([]types.Vec3, len(lineTokens)-1)
	for arg := range corners {
		vTokens := strings.Split(lineTokens[arg+1], "/")
		if vTokens[0] == "" {
			return fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		offset, err := selectFaceCoordIndex(vTokens[0], len(r.coords), relOffset)
		if err != nil {
			return fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg, err.Error())
		}
		corners[arg] = r.coords[offset]
	}

	for i := 1; i+1 < len(corners); i++ {
		r.vertices = append(r.vertices, corners[0].Vec4(1), corners[i].Vec4(1), corners[i+1].Vec4(1))
	}
	return nil
}

// Given a face coord index token calculate the offset into the coord list.
func selectFaceCoordIndex(indexToken string, coordListLen int, relOffset int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var offset int
	if index < 0 {
		offset = coordListLen + int(index)
	} else {
		offset = relOffset + int(index-1)
	}
	if index == 0 || offset < 0 || offset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return offset, nil
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf(`unsupported syntax for "%s"; expected 3 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}
