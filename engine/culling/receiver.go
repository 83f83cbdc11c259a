package culling

import (
	"math"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/go-gl/mathgl/mgl32"
)

// ReceiverPlaneEpsilon is the tolerance used when classifying a plane against the light direction.
const ReceiverPlaneEpsilon = 1e-12

// ComputeReceiverPlanes keeps the receiver planes whose inward normal does not point along the
// light. A caster outside such a plane is behind the receivers relative to the light and
// cannot shadow them. Near-perpendicular planes are kept.
//
// Parameters:
//   - frustumPlanes: inward-facing planes of the receiver volume
//   - lightDir: normalized direction the light travels
//
// Returns:
//   - []common.Plane: the planes with dot(normal, lightDir) < 1e-12
func ComputeReceiverPlanes(frustumPlanes []common.Plane, lightDir mgl32.Vec3) []common.Plane {
	out := make([]common.Plane, 0, len(frustumPlanes))
	for _, p := range frustumPlanes {
		if float64(p.Normal.Dot(lightDir)) < ReceiverPlaneEpsilon {
			out = append(out, p)
		}
	}
	return out
}

// maxCapsuleLength bounds capsules whose ray never leaves the receiver volume.
const maxCapsuleLength = 1e6

// ReceiverSphereCuller rejects cascades a caster's shadow cannot reach, and stops at the
// first cascade that fully covers it. The zero value is disabled and keeps every split.
type ReceiverSphereCuller struct {
	numSplits int

	centerX, centerY, centerZ [4]float32
	radius                    [4]float32
	coreRadius                [4]float32

	lightDir mgl32.Vec3
	planes   []common.Plane
}

// NewReceiverSphereCuller builds the culler for a light context. It is enabled only for
// stable-fit projections with 1 to 4 splits whose sphere radii are all > 0. A NaN radius
// fails that comparison, which disables the culler.
//
// Parameters:
//   - ctx: the light context
//
// Returns:
//   - ReceiverSphereCuller: the culler, disabled when the requirements are not met
func NewReceiverSphereCuller(ctx *CullingContext) ReceiverSphereCuller {
	n := len(ctx.Splits)
	if ctx.CascadeProjection != ProjectionStableFit || n < 1 || n > 4 {
		return ReceiverSphereCuller{}
	}

	var c ReceiverSphereCuller
	for i, s := range ctx.Splits {
		if !(s.SphereRadius > 0) {
			return ReceiverSphereCuller{}
		}
		factor := s.CascadeBlendCullingFactor
		if factor == 0 {
			factor = 1
		}
		c.centerX[i], c.centerY[i], c.centerZ[i] = s.SphereCenter[0], s.SphereCenter[1], s.SphereCenter[2]
		c.radius[i] = s.SphereRadius
		c.coreRadius[i] = s.SphereRadius * factor
	}
	c.numSplits = n
	c.lightDir = ctx.LightDirection
	c.planes = ctx.ReceiverPlanes
	return c
}

// Enabled reports whether the culler restricts split masks.
func (c ReceiverSphereCuller) Enabled() bool {
	return c.numSplits > 0
}

// Cull returns the split mask a caster may contribute to. A split that fully covers the
// caster clears every later split, but only when planeHits says the caster is inside it.
//
// Parameters:
//   - bounds: the caster's world AABB
//   - planeHits: the caster's split mask from the cascade plane tests
//
// Returns:
//   - uint8: one bit per split; 0xFF when disabled
func (c *ReceiverSphereCuller) Cull(bounds common.AABB, planeHits uint8) uint8 {
	if !c.Enabled() {
		return 0xFF
	}
	sphere := bounds.Sphere()
	length := min(ShadowCapsuleLength(sphere, c.lightDir, c.planes), maxCapsuleLength)
	begin := sphere.Center
	end := begin.Add(c.lightDir.Mul(length))

	var overlaps, covered [4]bool
	for lane := range 4 {
		center := mgl32.Vec3{c.centerX[lane], c.centerY[lane], c.centerZ[lane]}
		d := distanceToSegment(center, begin, end)
		overlaps[lane] = d <= c.radius[lane]+sphere.Radius
		covered[lane] = begin.Sub(center).Len()+sphere.Radius <= c.coreRadius[lane] &&
			end.Sub(center).Len()+sphere.Radius <= c.coreRadius[lane]
	}

	var mask uint8
	for i := range c.numSplits {
		if overlaps[i] {
			mask |= 1 << i
		}
		if covered[i] && planeHits&(1<<i) != 0 {
			break
		}
	}
	return mask
}

// ShadowCapsuleLength returns how far a caster's shadow can travel along lightDir before the
// whole caster sphere has left the receiver volume. Planes parallel to the light are ignored.
// Each exit distance is extended by r·tanθ, the extra travel needed for the far edge of the
// sphere's cross section to cross a plane tilted by θ from the light's perpendicular.
//
// Parameters:
//   - caster: the caster's bounding sphere
//   - lightDir: normalized direction the light travels
//   - planes: receiver planes (inward-facing)
//
// Returns:
//   - float32: the capsule length, never negative; math.MaxFloat32 when no plane bounds the ray
func ShadowCapsuleLength(caster common.Sphere, lightDir mgl32.Vec3, planes []common.Plane) float32 {
	best := float32(math.MaxFloat32)
	for _, p := range planes {
		cosTheta := p.Normal.Dot(lightDir)
		if math.Abs(float64(cosTheta)) <= ReceiverPlaneEpsilon || cosTheta > 0 {
			continue
		}
		cosAbs := -cosTheta
		t := p.SignedDistance(caster.Center) / cosAbs
		sinTheta := float32(math.Sqrt(float64(max(0, 1-cosAbs*cosAbs))))
		t += caster.Radius * sinTheta / cosAbs
		best = min(best, t)
	}
	return max(best, 0)
}

func distanceToSegment(p, a, b mgl32.Vec3) float32 {
	ab := b.Sub(a)
	denom := ab.Dot(ab)
	if denom == 0 {
		return p.Sub(a).Len()
	}
	t := p.Sub(a).Dot(ab) / denom
	t = max(0, min(1, t))
	return p.Sub(a.Add(ab.Mul(t))).Len()
}
