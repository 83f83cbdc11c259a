package culling

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/jobs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boxPlanes(lo, hi mgl32.Vec3) []common.Plane {
	return []common.Plane{
		common.NewPlane(mgl32.Vec3{1, 0, 0}, lo),
		common.NewPlane(mgl32.Vec3{-1, 0, 0}, hi),
		common.NewPlane(mgl32.Vec3{0, 1, 0}, lo),
		common.NewPlane(mgl32.Vec3{0, -1, 0}, hi),
		common.NewPlane(mgl32.Vec3{0, 0, 1}, lo),
		common.NewPlane(mgl32.Vec3{0, 0, -1}, hi),
	}
}

func cube(center mgl32.Vec3, half float32) common.AABB {
	return common.AABB{Center: center, Extents: mgl32.Vec3{half, half, half}}
}

func boxCamera(lo, hi mgl32.Vec3) *CullingContext {
	planes := boxPlanes(lo, hi)
	return &CullingContext{
		ViewType:      ViewCamera,
		CullingPlanes: planes,
		Splits:        []CullingSplit{{PlaneCount: len(planes)}},
	}
}

func TestPropagateVisibilityMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	frame := make([]common.Mask128, 16)
	dispatch := make([]common.Mask128, 16)

	for range 10 {
		camera := make([]common.Mask128, 16)
		for i := range camera {
			camera[i] = common.Mask128{Lower: rng.Uint64(), Upper: rng.Uint64()}
		}
		prev := append([]common.Mask128(nil), frame...)

		needs := PropagateVisibility(camera, frame, dispatch)

		for i := range frame {
			assert.Equal(t, prev[i], frame[i].And(prev[i]), "frame mask lost bits in chunk %d", i)
			assert.Equal(t, camera[i].AndNot(prev[i]), needs[i])
			assert.Equal(t, camera[i], dispatch[i].And(camera[i]))
		}
	}

	ResetFrame(frame)
	for _, m := range frame {
		assert.True(t, m.IsZero())
	}
}

func TestPacketsMatchScalarIntersection(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	planes := boxPlanes(mgl32.Vec3{-10, -10, -10}, mgl32.Vec3{10, 10, 10})
	planes = append(planes, common.NewPlane(mgl32.Vec3{1, 1, 0}, mgl32.Vec3{-8, 0, 0}))
	packets := BuildPackets(planes)
	require.Len(t, packets, 2)

	for range 500 {
		box := cube(mgl32.Vec3{
			rng.Float32()*40 - 20,
			rng.Float32()*40 - 20,
			rng.Float32()*40 - 20,
		}, rng.Float32()*5)
		want := common.IntersectAABB(planes, box)
		assert.Equal(t, want, IntersectAABB(packets, box))
		assert.Equal(t, want != common.Out, IntersectsAABB(packets, box))
	}
}

func TestCameraCullingSoundness(t *testing.T) {
	ctx := boxCamera(mgl32.Vec3{-10, -10, -10}, mgl32.Vec3{10, 10, 10})
	c := NewCuller()

	inside := &CullChunk{
		Bounds:       cube(mgl32.Vec3{}, 5),
		EntityBounds: []common.AABB{cube(mgl32.Vec3{}, 1), cube(mgl32.Vec3{2, 0, 0}, 1)},
		Visible:      common.MaskFirstN(2),
	}
	s := c.CullChunk(ctx, inside)
	assert.Equal(t, common.MaskFirstN(2), inside.Visible)
	assert.Equal(t, 1, s.ChunksIn)
	assert.Zero(t, s.EntitiesTested)

	outside := &CullChunk{
		Bounds:       cube(mgl32.Vec3{50, 0, 0}, 5),
		EntityBounds: []common.AABB{cube(mgl32.Vec3{50, 0, 0}, 1)},
		Visible:      common.MaskFirstN(1),
	}
	s = c.CullChunk(ctx, outside)
	assert.True(t, outside.Visible.IsZero())
	assert.Equal(t, 1, s.ChunksOut)

	partial := &CullChunk{
		Bounds: cube(mgl32.Vec3{10, 0, 0}, 20),
		EntityBounds: []common.AABB{
			cube(mgl32.Vec3{0, 0, 0}, 1),
			cube(mgl32.Vec3{25, 0, 0}, 1),
			cube(mgl32.Vec3{10, 0, 0}, 1),
		},
		Visible: common.MaskFirstN(3),
	}
	s = c.CullChunk(ctx, partial)
	assert.True(t, partial.Visible.IsSet(0))
	assert.False(t, partial.Visible.IsSet(1))
	assert.True(t, partial.Visible.IsSet(2))
	assert.Equal(t, 3, s.EntitiesTested)
	assert.Equal(t, 1, s.EntitiesCulled)
}

func TestNewCameraContextFromPerspective(t *testing.T) {
	view := common.LookAt(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	proj := common.Perspective(math.Pi/2, 1, 0.1, 100)
	ctx := NewCameraContext(proj.Mul4(view))
	p := ctx.prepare()

	assert.Equal(t, common.In, IntersectAABB(p.frustum, cube(mgl32.Vec3{}, 1)))
	assert.Equal(t, common.Out, IntersectAABB(p.frustum, cube(mgl32.Vec3{0, 0, 20}, 1)))
	assert.Equal(t, common.Partial, IntersectAABB(p.frustum, cube(mgl32.Vec3{0, 0, 10}, 1)))
}

func TestComputeReceiverPlanes(t *testing.T) {
	planes := boxPlanes(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	down := mgl32.Vec3{0, -1, 0}

	kept := ComputeReceiverPlanes(planes, down)
	// The top plane's inward normal points along the light; everything else is kept,
	// including the four perpendicular side planes.
	require.Len(t, kept, 5)
	for _, p := range kept {
		assert.Less(t, float64(p.Normal.Dot(down)), ReceiverPlaneEpsilon)
	}
}

func TestShadowCapsuleLength(t *testing.T) {
	planes := ComputeReceiverPlanes(boxPlanes(mgl32.Vec3{-50, -1, -50}, mgl32.Vec3{50, 50, 50}), mgl32.Vec3{0, -1, 0})
	caster := common.Sphere{Center: mgl32.Vec3{0, 2, 0}, Radius: 0.5}

	assert.InDelta(t, 3, ShadowCapsuleLength(caster, mgl32.Vec3{0, -1, 0}, planes), 1e-5)

	// A tilted light adds r·tanθ to the exit distance.
	dir := mgl32.Vec3{1, -1, 0}.Normalize()
	cos := float32(math.Sqrt2 / 2)
	want := 3/cos + 0.5*1
	bottom := []common.Plane{common.NewPlane(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, -1, 0})}
	assert.InDelta(t, want, ShadowCapsuleLength(caster, dir, bottom), 1e-4)

	// Parallel planes never bound the ray.
	side := []common.Plane{common.NewPlane(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{-50, 0, 0})}
	assert.Equal(t, float32(math.MaxFloat32), ShadowCapsuleLength(caster, mgl32.Vec3{0, -1, 0}, side))
}

func sphereContext(radii ...float32) *CullingContext {
	receiver := boxPlanes(mgl32.Vec3{-100, -1, -100}, mgl32.Vec3{100, 50, 100})
	splits := make([]SplitPlanes, len(radii))
	for i, r := range radii {
		splits[i] = SplitPlanes{
			Planes: boxPlanes(mgl32.Vec3{-r, -r, -r}, mgl32.Vec3{r, r, r}),
			Sphere: common.Sphere{Radius: r},
		}
	}
	return NewShadowContext(mgl32.Vec3{0, -1, 0}, receiver, splits, ProjectionStableFit)
}

func TestReceiverSphereCullerEnablement(t *testing.T) {
	assert.True(t, sphereContext(10, 20).prepare().spheres.Enabled())

	nan := float32(math.NaN())
	assert.False(t, sphereContext(10, nan).prepare().spheres.Enabled())
	assert.False(t, sphereContext(10, 0).prepare().spheres.Enabled())
	assert.False(t, sphereContext(10, 20, 30, 40, 50).prepare().spheres.Enabled())

	closeFit := sphereContext(10, 20)
	closeFit.CascadeProjection = ProjectionCloseFit
	assert.False(t, closeFit.prepare().spheres.Enabled())

	var disabled ReceiverSphereCuller
	assert.Equal(t, uint8(0xFF), disabled.Cull(cube(mgl32.Vec3{}, 1), 0xFF))
}

func TestReceiverSphereCullerStopsAtFirstCoveringSplit(t *testing.T) {
	ctx := sphereContext(10, 20, 40)
	sc := ctx.prepare().spheres
	require.True(t, sc.Enabled())

	assert.Equal(t, uint8(0b001), sc.Cull(cube(mgl32.Vec3{0, 2, 0}, 0.5), 0xFF))
	assert.Equal(t, uint8(0b010), sc.Cull(cube(mgl32.Vec3{15, 2, 0}, 0.5), 0xFF))
	// Straddling the first sphere: overlaps split 0 but only split 1 covers it.
	assert.Equal(t, uint8(0b011), sc.Cull(cube(mgl32.Vec3{9.8, 2, 0}, 0.5), 0xFF))
	assert.Equal(t, uint8(0), sc.Cull(cube(mgl32.Vec3{90, 2, 0}, 0.5), 0xFF))
}

func TestReceiverSphereCullerKeepsSearchingPastMissedSplit(t *testing.T) {
	sc := sphereContext(10, 20, 40).prepare().spheres

	// Covered by split 0's sphere, but the plane tests only placed it in split 1.
	assert.Equal(t, uint8(0b011), sc.Cull(cube(mgl32.Vec3{0, 2, 0}, 0.5), 0b010))
}

func TestStableCascadesKeepCasterOfOuterCascade(t *testing.T) {
	lightDir := mgl32.Vec3{0, -1, 0}
	inner, _ := SplitFromOrtho(lightDir, mgl32.Vec3{}, 10, 0.1, 200)
	outer, _ := SplitFromOrtho(lightDir, mgl32.Vec3{}, 40, 0.1, 200)
	assert.Equal(t, float32(10), inner.Sphere.Radius)
	assert.Equal(t, float32(40), outer.Sphere.Radius)

	receiver := boxPlanes(mgl32.Vec3{-100, -100, -100}, mgl32.Vec3{100, 100, 100})
	ctx := NewShadowContext(lightDir, receiver, []SplitPlanes{inner, outer}, ProjectionStableFit)
	require.True(t, ctx.prepare().spheres.Enabled())

	caster := cube(mgl32.Vec3{12.5, 0, 0}, 0.5)
	chunk := &CullChunk{Bounds: caster, EntityBounds: []common.AABB{caster}, Visible: common.MaskFirstN(1)}
	NewCuller().CullChunk(ctx, chunk)

	assert.True(t, chunk.Visible.IsSet(0))
	assert.Equal(t, uint8(0b10), chunk.SplitMasks[0])
}

func TestLightViewSplitMasks(t *testing.T) {
	receiver := boxPlanes(mgl32.Vec3{-200, -200, -200}, mgl32.Vec3{200, 200, 200})
	splits := []SplitPlanes{
		{Planes: boxPlanes(mgl32.Vec3{-10, -10, -10}, mgl32.Vec3{10, 10, 10})},
		{Planes: boxPlanes(mgl32.Vec3{0, -10, -10}, mgl32.Vec3{30, 10, 10})},
	}
	ctx := NewShadowContext(mgl32.Vec3{0, -1, 0}, receiver, splits, ProjectionCloseFit)

	entities := []common.AABB{
		cube(mgl32.Vec3{-5, 0, 0}, 1),
		cube(mgl32.Vec3{5, 0, 0}, 1),
		cube(mgl32.Vec3{25, 0, 0}, 1),
		cube(mgl32.Vec3{100, 0, 0}, 1),
	}
	bounds := entities[0]
	for _, e := range entities[1:] {
		bounds = bounds.Encapsulate(e)
	}
	chunk := &CullChunk{Bounds: bounds, EntityBounds: entities, Visible: common.MaskFirstN(4)}

	s := NewCuller().CullChunk(ctx, chunk)

	assert.Equal(t, uint8(0b01), chunk.SplitMasks[0])
	assert.Equal(t, uint8(0b11), chunk.SplitMasks[1])
	assert.Equal(t, uint8(0b10), chunk.SplitMasks[2])
	assert.Equal(t, uint8(0), chunk.SplitMasks[3])
	assert.Equal(t, common.MaskFirstN(3), chunk.Visible)
	assert.Equal(t, 1, s.EntitiesCulled)
}

func TestLightViewRejectsChunkBehindReceivers(t *testing.T) {
	receiver := boxPlanes(mgl32.Vec3{-10, 0, -10}, mgl32.Vec3{10, 10, 10})
	splits := []SplitPlanes{{Planes: boxPlanes(mgl32.Vec3{-100, -100, -100}, mgl32.Vec3{100, 100, 100})}}
	ctx := NewShadowContext(mgl32.Vec3{0, -1, 0}, receiver, splits, ProjectionCloseFit)

	// Below the receivers: the light travels down, so its shadow can never reach them.
	below := &CullChunk{
		Bounds:       cube(mgl32.Vec3{0, -20, 0}, 2),
		EntityBounds: []common.AABB{cube(mgl32.Vec3{0, -20, 0}, 1)},
		Visible:      common.MaskFirstN(1),
	}
	NewCuller().CullChunk(ctx, below)
	assert.True(t, below.Visible.IsZero())

	// Above the receivers: the top plane was dropped, so it survives.
	above := &CullChunk{
		Bounds:       cube(mgl32.Vec3{0, 40, 0}, 2),
		EntityBounds: []common.AABB{cube(mgl32.Vec3{0, 40, 0}, 1)},
		Visible:      common.MaskFirstN(1),
	}
	NewCuller().CullChunk(ctx, above)
	assert.Equal(t, common.MaskFirstN(1), above.Visible)
	assert.Equal(t, uint8(1), above.SplitMasks[0])
}

func TestParallelCullMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	ctx := boxCamera(mgl32.Vec3{-10, -10, -10}, mgl32.Vec3{10, 10, 10})

	build := func() []*CullChunk {
		chunks := make([]*CullChunk, 64)
		for i := range chunks {
			center := mgl32.Vec3{rng.Float32()*40 - 20, 0, 0}
			n := 1 + rng.Intn(common.ChunkCapacity)
			ents := make([]common.AABB, n)
			for j := range ents {
				ents[j] = cube(center.Add(mgl32.Vec3{rng.Float32()*8 - 4, 0, 0}), 0.5)
			}
			chunks[i] = &CullChunk{Bounds: cube(center, 4.5), EntityBounds: ents, Visible: common.MaskFirstN(n)}
		}
		return chunks
	}

	serialChunks := build()
	parallelChunks := make([]*CullChunk, len(serialChunks))
	for i, c := range serialChunks {
		cp := *c
		parallelChunks[i] = &cp
	}

	pool := jobs.NewPool(4)
	defer pool.Release()

	want := NewCuller().Cull(ctx, serialChunks)
	got := NewCuller(WithPool(pool)).Cull(ctx, parallelChunks)

	assert.Equal(t, want, got)
	for i := range serialChunks {
		assert.Equal(t, serialChunks[i].Visible, parallelChunks[i].Visible)
	}
}
