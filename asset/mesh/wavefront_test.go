package mesh

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/achilleasa/widebvh/asset"
	"github.com/achilleasa/widebvh/types"
)

func TestVec3Parser(t *testing.T) {
	expError := `unsupported syntax for "v"; expected 3 arguments; got 0`
	_, err := parseVec3([]string{"v"})
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get %s; got %v", expError, err)
	}

	_, err = parseVec3([]string{"v", "not-a-float", "2", "3"})
	if err == nil {
		t.Fatal("expected to get a parse error")
	}

	v, err := parseVec3([]string{"v", "3.14", "0", "0.4"})
	if err != nil {
		t.Fatal(err)
	}

	expVal := types.Vec3{3.14, 0, 0.4}
	if !reflect.DeepEqual(v, expVal) {
		t.Fatalf("expected parsed value to be %v; got %v", expVal, v)
	}
}

func TestSelectFaceCoordinate(t *testing.T) {
	expError := "index out of bounds"
	type spec struct {
		in        string
		listLen   int
		relOffset int
		out       int
		expError  string
	}
	specs := []spec{
		{"2", 1, 0, -1, expError},
		{"-2", 1, 0, -1, expError},
		{"0", 10, 0, -1, expError},
		{"1", 10, 0, 0, ""}, // indices are 1-based
		{"-1", 10, 0, 9, ""},
		{"1", 10, 4, 4, ""},
		{"-1", 10, 4, 9, ""},
	}

	for idx, s := range specs {
		v, err := selectFaceCoordIndex(s.in, s.listLen, s.relOffset)
		if s.expError != "" {
			if err == nil || err.Error() != s.expError {
				t.Fatalf("[spec %d] expected error %s; got %v", idx, s.expError, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", idx, err)
		}
		if v != s.out {
			t.Fatalf("[spec %d] expected index to be %d; got %d", idx, s.out, v)
		}
	}
}

func TestParseSingleFace(t *testing.T) {
	payload := `
o testObj
v 0 0 0
v 1 0 0
v 0 1 0
vn 1 0 0
vt 0 0
# Comment
f 1/1/1 2/1/1 -1/1/1
`

	m, err := Read(asset.NewResourceFromStream("embedded", strings.NewReader(payload)))
	if err != nil {
		t.Fatal(err)
	}

	if m.TriangleCount() != 1 {
		t.Fatalf("expected 1 triangle; got %d", m.TriangleCount())
	}
	expGroups := []Group{{Name: "testObj", First: 0, Count: 1}}
	if !reflect.DeepEqual(m.Groups, expGroups) {
		t.Fatalf("expected groups %v; got %v", expGroups, m.Groups)
	}

	expPoints := []types.Vec4{
		{0, 0, 0, 1},
		{1, 0, 0, 1},
		{0, 1, 0, 1},
	}
	for idx, exp := range expPoints {
		if m.Store[idx] != exp {
			t.Fatalf("expected vertex %d to be %v; got %v", idx, exp, m.Store[idx])
		}
	}

	expBounds := types.AABB{Min: types.XYZ(0, 0, 0), Max: types.XYZ(1, 1, 0)}
	if m.Bounds != expBounds {
		t.Fatalf("expected bounds %v; got %v", expBounds, m.Bounds)
	}
}

func TestParsePolygonsAndGroups(t *testing.T) {
	payload := `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0 0 1
f 1 2 3
g quad
f 1 2 3 4
g empty
g pentagon
f 1 2 3 4 5
`

	m, err := Read(asset.NewResourceFromStream("embedded", strings.NewReader(payload)))
	if err != nil {
		t.Fatal(err)
	}

	expGroups := []Group{
		{Name: "default", First: 0, Count: 1},
		{Name: "quad", First: 1, Count: 2},
		{Name: "pentagon", First: 3, Count: 3},
	}
	if !reflect.DeepEqual(m.Groups, expGroups) {
		t.Fatalf("expected groups %v; got %v", expGroups, m.Groups)
	}
	if m.TriangleCount() != 6 {
		t.Fatalf("expected 6 triangles; got %d", m.TriangleCount())
	}

	// Fan triangulation keeps the first corner.
	for tri := 0; tri < m.TriangleCount(); tri++ {
		if v0 := m.Store[3*tri]; v0 != (types.Vec4{0, 0, 0, 1}) {
			t.Fatalf("expected triangle %d to start at the first face corner; got %v", tri, v0)
		}
	}
	if err = m.Store.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestParseErrors(t *testing.T) {
	type spec struct {
		payload  string
		expError string
	}
	specs := []spec{
		{"v 1 2", `[embedded: 1] error: unsupported syntax for "v"; expected 3 arguments; got 2`},
		{"v 0 0 0\nf 1 2", `[embedded: 2] error: unsupported syntax for "f"; expected at least 3 arguments; got 2`},
		{"v 0 0 0\nf 1 1 4", "[embedded: 2] error: could not parse vertex coord for face argument 2: index out of bounds"},
		{"v 0 0 0\nf /1 1 1", "[embedded: 2] error: face argument 0 does not include a vertex index"},
		{"g", `[embedded: 1] error: unsupported syntax for "g"; expected 1 argument for object name; got 0`},
		{"call", `[embedded: 1] error: unsupported syntax for "call"; expected 1 argument; got 0`},
	}

	for idx, s := range specs {
		_, err := Read(asset.NewResourceFromStream("embedded", strings.NewReader(s.payload)))
		if err == nil || err.Error() != s.expError {
			t.Fatalf("[spec %d] expected error %q; got %v", idx, s.expError, err)
		}
	}
}

func TestNoFaces(t *testing.T) {
	_, err := Read(asset.NewResourceFromStream("embedded", strings.NewReader("v 0 0 0\n")))
	if !errors.Is(err, ErrNoFaces) {
		t.Fatalf("expected ErrNoFaces; got %v", err)
	}
}

func TestCallIncludesRelativeFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"main.obj":      "v 5 5 5\ncall parts/tri.obj\nf -1 -2 -3\n",
		"parts/tri.obj": "g part\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n",
		"broken.obj":    "call parts/missing.obj\n",
	}
	for name, data := range files {
		fullPath := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(fullPath, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	m, err := Load(filepath.Join(dir, "main.obj"))
	if err != nil {
		t.Fatal(err)
	}
	if m.TriangleCount() != 2 {
		t.Fatalf("expected 2 triangles; got %d", m.TriangleCount())
	}
	if m.Name != "main.obj" {
		t.Fatalf("expected mesh name main.obj; got %s", m.Name)
	}
	if exp := (types.Vec4{0, 1, 0, 1}); m.Store[3] != exp {
		t.Fatalf("expected negative indices to select the last parsed coords; got %v", m.Store[3])
	}

	_, err = Load(filepath.Join(dir, "broken.obj"))
	if err == nil || !strings.Contains(err.Error(), "broken.obj: 1] error") {
		t.Fatalf("expected an include error; got %v", err)
	}
}
