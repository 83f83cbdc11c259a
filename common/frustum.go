package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
// Points with a positive signed distance are on the inside of the plane.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// NewPlane builds a normalized plane from a normal and a point on the plane.
//
// Parameters:
//   - normal: the inward-facing normal, need not be unit length
//   - point: any point lying on the plane
//
// Returns:
//   - Plane: the normalized plane
func NewPlane(normal, point mgl32.Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, Distance: -n.Dot(point)}
}

// SignedDistance returns the signed distance from the plane to p.
//
// Parameters:
//   - p: the point to measure
//
// Returns:
//   - float32: positive inside, negative outside
func (p Plane) SignedDistance(point mgl32.Vec3) float32 {
	return p.Normal.Dot(point) + p.Distance
}

// IntersectResult classifies a volume against a set of planes.
type IntersectResult int

const (
	// Out means the volume is fully outside at least one plane.
	Out IntersectResult = iota
	// In means the volume is fully inside every plane.
	In
	// Partial means the volume straddles at least one plane.
	Partial
)

// String returns a readable name for the result.
func (r IntersectResult) String() string {
	switch r {
	case In:
		return "In"
	case Partial:
		return "Partial"
	default:
		return "Out"
	}
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix.
// The matrix should be the combined Projection * View matrix in WebGPU clip space (Z in [0, 1]).
// Uses the Gribb/Hartmann method for plane extraction.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the column-major view-projection matrix
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj mgl32.Mat4) Frustum {
	var f Frustum
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{viewProj[r], viewProj[4+r], viewProj[8+r], viewProj[12+r]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	set := func(i int, v mgl32.Vec4) {
		f.Planes[i] = Plane{Normal: mgl32.Vec3{v[0], v[1], v[2]}, Distance: v[3]}
	}
	set(FrustumLeft, r3.Add(r0))
	set(FrustumRight, r3.Sub(r0))
	set(FrustumBottom, r3.Add(r1))
	set(FrustumTop, r3.Sub(r1))
	// WebGPU depth is [0, 1], so the near plane is row2 alone.
	set(FrustumNear, r2)
	set(FrustumFar, r3.Sub(r2))

	for i := range f.Planes {
		f.normalizePlane(i)
	}

	return f
}

// Slice returns the frustum planes as a slice.
func (f *Frustum) Slice() []Plane {
	return f.Planes[:]
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := p.Normal.Len()
	if length > 0 {
		invLen := 1.0 / length
		p.Normal = p.Normal.Mul(invLen)
		p.Distance *= invLen
	}
}

// IntersectAABB classifies an axis-aligned box against an arbitrary plane set.
// This is the scalar reference used for chunk-level tests; entity-level tests use
// four-plane packets in the culling package.
//
// Parameters:
//   - planes: inward-facing planes
//   - box: the box to classify
//
// Returns:
//   - IntersectResult: In, Out or Partial
func IntersectAABB(planes []Plane, box AABB) IntersectResult {
	result := In
	for _, p := range planes {
		dist := p.SignedDistance(box.Center)
		radius := absF32(p.Normal[0])*box.Extents[0] +
			absF32(p.Normal[1])*box.Extents[1] +
			absF32(p.Normal[2])*box.Extents[2]
		if dist+radius < 0 {
			return Out
		}
		if dist-radius < 0 {
			result = Partial
		}
	}
	return result
}
