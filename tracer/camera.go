package tracer

import (
	"fmt"
	"math"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/types"
)

// Ray directions through the four corners of the image plane in TL, TR, BL,
// BR order. Per pixel directions are interpolated from them.
type Frustum [4]types.Vec3

func (fr Frustum) String() string {
	return fmt.Sprintf(
		"Frustum Rays:\nTL : (%3.3f, %3.3f, %3.3f)\nTR : (%3.3f, %3.3f, %3.3f)\nBL : (%3.3f, %3.3f, %3.3f)\nBR : (%3.3f, %3.3f, %3.3f)",
		fr[0][0], fr[0][1], fr[0][2],
		fr[1][0], fr[1][1], fr[1][2],
		fr[2][0], fr[2][1], fr[2][2],
		fr[3][0], fr[3][1], fr[3][2],
	)
}

// Camera is a pinhole camera generating primary rays.
type Camera struct {
	Eye  types.Vec3
	Look types.Vec3
	Up   types.Vec3

	// Vertical field of view in degrees.
	FOV float32
}

// Position a camera in front of bounds so the whole box is in view. The
// camera looks down the -Z axis towards the box center.
func FitCamera(bounds types.AABB, fov float32) Camera {
	center := bounds.Center()
	radius := bounds.Extent().Len() * 0.5
	if radius <= 0 {
		radius = 1
	}
	halfFOV := float64(fov) * math.Pi / 360.0
	dist := radius / float32(math.Sin(halfFOV))

	return Camera{
		Eye:  center.Add(types.XYZ(0, 0, dist)),
		Look: center,
		Up:   types.XYZ(0, 1, 0),
		FOV:  fov,
	}
}

// Calculate the frustum corner rays for an image with the given aspect ratio.
func (c Camera) Frustum(aspect float32) Frustum {
	forward := c.Look.Sub(c.Eye).Normalize()
	right := forward.Cross(c.Up).Normalize()
	up := right.Cross(forward)

	halfH := float32(math.Tan(float64(c.FOV) * math.Pi / 360.0))
	halfW := halfH * aspect
	return Frustum{
		forward.Add(right.Mul(-halfW)).Add(up.Mul(halfH)),
		forward.Add(right.Mul(halfW)).Add(up.Mul(halfH)),
		forward.Add(right.Mul(-halfW)).Add(up.Mul(-halfH)),
		forward.Add(right.Mul(halfW)).Add(up.Mul(-halfH)),
	}
}

// Generate one primary ray through the center of every pixel, row by row
// starting from the top left corner.
func (c Camera) Rays(width, height int) []bvh.Ray {
	fr := c.Frustum(float32(width) / float32(height))
	rays := make([]bvh.Ray, 0, width*height)
	for y := 0; y < height; y++ {
		ty := (float32(y) + 0.5) / float32(height)
		left := lerp(fr[0], fr[2], ty)
		right := lerp(fr[1], fr[3], ty)
		for x := 0; x < width; x++ {
			tx := (float32(x) + 0.5) / float32(width)
			rays = append(rays, bvh.NewRay(c.Eye, lerp(left, right, tx).Normalize()))
		}
	}
	return rays
}

func lerp(a, b types.Vec3, t float32) types.Vec3 {
	return a.Mul(1 - t).Add(b.Mul(t))
}
