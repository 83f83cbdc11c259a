package common

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestMask128(t *testing.T) {
	var m Mask128
	m.Set(3)
	m.Set(64)
	m.Set(127)
	assert.True(t, m.IsSet(64))
	assert.Equal(t, 3, m.Count())

	var bits []int
	m.Each(func(i int) { bits = append(bits, i) })
	assert.Equal(t, []int{3, 64, 127}, bits)

	m.Clear(64)
	assert.False(t, m.IsSet(64))
	assert.Equal(t, Mask128{Lower: 1 << 3}, m.And(MaskFirstN(64)))
	assert.True(t, m.AndNot(m).IsZero())
	assert.Equal(t, 128, MaskFirstN(200).Count())
	assert.Equal(t, 70, MaskFirstN(70).Count())
	assert.True(t, MaskFirstN(-1).IsZero())
}

func TestTransformQvvsMarshal(t *testing.T) {
	tr := IdentityQvvs()
	tr.Position = mgl32.Vec3{1, 2, 3}
	tr.Scale = 2

	buf := make([]byte, TransformQvvsSize)
	tr.MarshalTo(buf)
	word := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(1), word(12), "rotation w")
	assert.Equal(t, float32(2), word(20))
	assert.Zero(t, binary.LittleEndian.Uint32(buf[28:]), "padding")
	assert.Equal(t, float32(1), word(32))
	assert.Equal(t, float32(2), word(44))
}

func TestFrustumClassification(t *testing.T) {
	vp := Ortho(-1, 1, -1, 1, 0.1, 10).Mul4(LookAt(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}))
	f := ExtractFrustumFromMatrix(vp)
	small := mgl32.Vec3{0.1, 0.1, 0.1}

	assert.Equal(t, In, IntersectAABB(f.Slice(), AABB{Extents: small}))
	assert.Equal(t, Out, IntersectAABB(f.Slice(), AABB{Center: mgl32.Vec3{5, 0, 0}, Extents: small}))
	assert.Equal(t, Partial, IntersectAABB(f.Slice(), AABB{Center: mgl32.Vec3{1, 0, 0}, Extents: small}))
}
