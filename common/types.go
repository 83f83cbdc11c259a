// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned bounding box stored as center and half extents.
type AABB struct {
	// Center is the world-space center of the box.
	Center mgl32.Vec3
	// Extents holds the half size of the box along each axis. Never negative.
	Extents mgl32.Vec3
}

// NewAABBMinMax builds an AABB from its min and max corners.
//
// Parameters:
//   - min: the minimum corner
//   - max: the maximum corner
//
// Returns:
//   - AABB: the box in center/extents form
func NewAABBMinMax(min, max mgl32.Vec3) AABB {
	return AABB{
		Center:  min.Add(max).Mul(0.5),
		Extents: max.Sub(min).Mul(0.5),
	}
}

// Min returns the minimum corner.
func (b AABB) Min() mgl32.Vec3 { return b.Center.Sub(b.Extents) }

// Max returns the maximum corner.
func (b AABB) Max() mgl32.Vec3 { return b.Center.Add(b.Extents) }

// Encapsulate returns the smallest box containing both b and o.
//
// Parameters:
//   - o: the other box
//
// Returns:
//   - AABB: the union box
func (b AABB) Encapsulate(o AABB) AABB {
	bMin, bMax := b.Min(), b.Max()
	oMin, oMax := o.Min(), o.Max()
	var mn, mx mgl32.Vec3
	for i := range 3 {
		mn[i] = min(bMin[i], oMin[i])
		mx[i] = max(bMax[i], oMax[i])
	}
	return NewAABBMinMax(mn, mx)
}

// Sphere returns the bounding sphere of the box.
func (b AABB) Sphere() Sphere {
	return Sphere{Center: b.Center, Radius: b.Extents.Len()}
}

// Sphere is a bounding sphere.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}
