package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/culling"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestCameraCullingContext(t *testing.T) {
	cam := NewCamera(WithPosition(mgl32.Vec3{0, 0, 10}), WithClip(0.5, 50))
	culler := culling.NewCuller()

	chunk := func(center mgl32.Vec3) *culling.CullChunk {
		box := common.AABB{Center: center, Extents: mgl32.Vec3{0.5, 0.5, 0.5}}
		return &culling.CullChunk{
			Bounds:       box,
			EntityBounds: []common.AABB{box},
			Visible:      common.MaskFirstN(1),
		}
	}

	inside := chunk(mgl32.Vec3{})
	culler.CullChunk(cam.CullingContext(), inside)
	assert.True(t, inside.Visible.IsSet(0))

	for _, c := range []mgl32.Vec3{{100, 0, 0}, {0, 0, 20}, {0, 0, -100}} {
		outside := chunk(c)
		culler.CullChunk(cam.CullingContext(), outside)
		assert.True(t, outside.Visible.IsZero(), "box at %v", c)
	}
}

func TestSettersRecomputeMatrices(t *testing.T) {
	cam := NewCamera()
	before := cam.ViewProjectionMatrix()
	cam.SetPosition(mgl32.Vec3{3, 2, 5})
	assert.NotEqual(t, before, cam.ViewProjectionMatrix())
	assert.Equal(t, cam.ProjectionMatrix().Mul4(cam.ViewMatrix()), cam.ViewProjectionMatrix())

	cam.SetAspect(2)
	cam.SetFov(math.Pi / 2)
	cam.SetClip(1, 10)
	assert.Equal(t, float32(2), cam.Aspect())
	assert.Equal(t, float32(1), cam.Near())
	assert.Equal(t, float32(10), cam.Far())
}

func TestSliceCornersLieOnTheFrustum(t *testing.T) {
	cam := NewCamera(WithPosition(mgl32.Vec3{0, 0, 5}), WithAspect(1.5))
	corners := cam.SliceCorners(1, 2)
	f := cam.Frustum()

	for i, c := range corners {
		for _, p := range f.Planes {
			assert.GreaterOrEqual(t, p.SignedDistance(c), float32(-1e-3), "corner %d", i)
		}
	}
	assert.InDelta(t, 4, corners[0][2], 1e-4)
	assert.InDelta(t, 3, corners[7][2], 1e-4)
	assert.InDelta(t, corners[1][0]-corners[0][0], 1.5*(corners[3][1]-corners[0][1]), 1e-4)
}
