package common

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// TransformQvvs is a quaternion-vector-vector-scale transform, the world pose of one bone.
// Stretch is non-uniform scale applied to the bone's own geometry only.
// GPU layout: 48 bytes (rotation xyzw, position xyz + pad, stretch xyz + scale).
type TransformQvvs struct {
	Rotation mgl32.Quat
	Position mgl32.Vec3
	Stretch  mgl32.Vec3
	Scale    float32
}

// TransformQvvsSize is the GPU size of a TransformQvvs in bytes.
const TransformQvvsSize = 48

// IdentityQvvs returns the identity transform.
func IdentityQvvs() TransformQvvs {
	return TransformQvvs{
		Rotation: mgl32.QuatIdent(),
		Stretch:  mgl32.Vec3{1, 1, 1},
		Scale:    1,
	}
}

// MarshalTo serializes the transform into dst, which must hold at least 48 bytes.
//
// Parameters:
//   - dst: destination byte slice
func (t *TransformQvvs) MarshalTo(dst []byte) {
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(dst[off:off+4], math.Float32bits(v))
	}
	put(0, t.Rotation.V[0])
	put(4, t.Rotation.V[1])
	put(8, t.Rotation.V[2])
	put(12, t.Rotation.W)
	put(16, t.Position[0])
	put(20, t.Position[1])
	put(24, t.Position[2])
	binary.LittleEndian.PutUint32(dst[28:32], 0) // pad
	put(32, t.Stretch[0])
	put(36, t.Stretch[1])
	put(40, t.Stretch[2])
	put(44, t.Scale)
}
