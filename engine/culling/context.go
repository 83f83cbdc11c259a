package culling

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxSplits is the maximum number of shadow splits a light view may carry.
// One bit of an entity's split mask is reserved per split.
const MaxSplits = 8

// ViewType is the kind of view being culled.
type ViewType int

const (
	// ViewCamera culls against a single camera frustum.
	ViewCamera ViewType = iota
	// ViewLight culls shadow casters against per-split light frusta.
	ViewLight
)

// CascadeProjection describes how shadow cascades are fitted to the camera.
type CascadeProjection int

const (
	// ProjectionCloseFit fits each cascade tightly to its frustum slice.
	ProjectionCloseFit CascadeProjection = iota
	// ProjectionStableFit fits each cascade to a bounding sphere, which makes sphere culling valid.
	ProjectionStableFit
)

// CullingSplit is one shadow cascade. Its planes live in CullingContext.CullingPlanes.
type CullingSplit struct {
	PlaneOffset  int
	PlaneCount   int
	SphereCenter mgl32.Vec3
	SphereRadius float32
	// CascadeBlendCullingFactor scales SphereRadius to the core region in which a caster
	// is considered fully covered by this cascade. Zero is treated as 1.
	CascadeBlendCullingFactor float32
}

// CullingContext is the immutable description of one view.
// Build it with NewCameraContext or NewShadowContext; the derived plane packets are
// computed once on first use and shared by every worker.
type CullingContext struct {
	ViewType          ViewType
	CullingPlanes     []common.Plane
	Splits            []CullingSplit
	ReceiverPlanes    []common.Plane
	LightDirection    mgl32.Vec3
	CascadeProjection CascadeProjection

	once     sync.Once
	prepared preparedContext
}

type preparedContext struct {
	frustum  []PlanePacket4
	splits   [][]PlanePacket4
	receiver []PlanePacket4
	spheres  ReceiverSphereCuller
}

// NewCameraContext builds a camera view context from a view-projection matrix.
//
// Parameters:
//   - viewProj: the combined projection * view matrix
//
// Returns:
//   - *CullingContext: a camera context with six frustum planes in a single split
func NewCameraContext(viewProj mgl32.Mat4) *CullingContext {
	f := common.ExtractFrustumFromMatrix(viewProj)
	planes := append([]common.Plane(nil), f.Slice()...)
	return &CullingContext{
		ViewType:      ViewCamera,
		CullingPlanes: planes,
		Splits:        []CullingSplit{{PlaneOffset: 0, PlaneCount: len(planes)}},
	}
}

// NewShadowContext builds a light view context. Split planes are concatenated into
// CullingPlanes and the receiver planes are derived from receiverFrustum.
//
// Parameters:
//   - lightDir: direction the light travels (from light toward scene)
//   - receiverFrustum: planes bounding the region that can receive shadows (usually the camera frustum)
//   - splits: per-cascade planes and spheres, at most MaxSplits
//   - projection: how cascades were fitted
//
// Returns:
//   - *CullingContext: the light context
func NewShadowContext(lightDir mgl32.Vec3, receiverFrustum []common.Plane, splits []SplitPlanes, projection CascadeProjection) *CullingContext {
	lightDir = lightDir.Normalize()
	ctx := &CullingContext{
		ViewType:          ViewLight,
		LightDirection:    lightDir,
		CascadeProjection: projection,
		ReceiverPlanes:    ComputeReceiverPlanes(receiverFrustum, lightDir),
	}
	for i, s := range splits {
		if i == MaxSplits {
			break
		}
		ctx.Splits = append(ctx.Splits, CullingSplit{
			PlaneOffset:               len(ctx.CullingPlanes),
			PlaneCount:                len(s.Planes),
			SphereCenter:              s.Sphere.Center,
			SphereRadius:              s.Sphere.Radius,
			CascadeBlendCullingFactor: s.BlendCullingFactor,
		})
		ctx.CullingPlanes = append(ctx.CullingPlanes, s.Planes...)
	}
	return ctx
}

// SplitPlanes is the input description of one cascade.
type SplitPlanes struct {
	Planes             []common.Plane
	Sphere             common.Sphere
	BlendCullingFactor float32
}

// SplitFromOrtho builds a cascade from an orthographic light projection centered on center.
// The eye is placed half of far behind center, against the light direction.
//
// Parameters:
//   - lightDir: normalized direction the light points (from light toward scene)
//   - center: world-space center of the cascade
//   - halfExtent: half-size of the orthographic frustum in world units
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - SplitPlanes: the six cascade planes and the sphere inscribed in the cascade's XY footprint
//   - mgl32.Mat4: the light view-projection matrix
func SplitFromOrtho(lightDir, center mgl32.Vec3, halfExtent, near, far float32) (SplitPlanes, mgl32.Mat4) {
	eye := center.Sub(lightDir.Mul(far * 0.5))

	up := mgl32.Vec3{0, 1, 0}
	if abs32(lightDir[1]) > 0.99 {
		up = mgl32.Vec3{1, 0, 0}
	}

	view := common.LookAt(eye, center, up)
	proj := common.Ortho(-halfExtent, halfExtent, -halfExtent, halfExtent, near, far)
	vp := proj.Mul4(view)

	f := common.ExtractFrustumFromMatrix(vp)
	return SplitPlanes{
		Planes:             append([]common.Plane(nil), f.Slice()...),
		Sphere:             common.Sphere{Center: center, Radius: halfExtent},
		BlendCullingFactor: 1,
	}, vp
}

func (c *CullingContext) prepare() *preparedContext {
	c.once.Do(func() {
		p := &c.prepared
		switch c.ViewType {
		case ViewLight:
			p.receiver = BuildPackets(c.ReceiverPlanes)
			p.splits = make([][]PlanePacket4, len(c.Splits))
			for i, s := range c.Splits {
				p.splits[i] = BuildPackets(c.CullingPlanes[s.PlaneOffset : s.PlaneOffset+s.PlaneCount])
			}
			p.spheres = NewReceiverSphereCuller(c)
		default:
			p.frustum = BuildPackets(c.CullingPlanes)
		}
	})
	return &c.prepared
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
