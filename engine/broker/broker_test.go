package broker

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBrokerUploadOnUnlock(t *testing.T) {
	b := NewMemoryBroker()

	meta, err := b.GetMetaUint4UploadBuffer(3)
	require.NoError(t, err)
	assert.True(t, meta.Locked())
	assert.Equal(t, 3, meta.Len())

	meta.Data()[1] = Uint4{1, 2, 3, 4}
	assert.Empty(t, b.LastMeta())

	require.NoError(t, meta.Unlock())
	assert.False(t, meta.Locked())
	assert.Equal(t, []Uint4{{}, {1, 2, 3, 4}, {}}, b.LastMeta())
	assert.Equal(t, 1, b.Uploads())

	assert.ErrorIs(t, meta.Unlock(), ErrLocked)
}

func TestMemoryBrokerReusesAndClears(t *testing.T) {
	b := NewMemoryBroker()

	bones, err := b.GetBonesBuffer(4)
	require.NoError(t, err)
	bones.Data()[0] = common.IdentityQvvs()
	require.NoError(t, bones.Unlock())

	again, err := b.GetBonesBuffer(2)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Len())
	assert.Equal(t, common.TransformQvvs{}, again.Data()[0])
}

func TestMemoryBrokerGPUBuffers(t *testing.T) {
	b := NewMemoryBroker()

	scratch, err := b.GetSkinningTransformsBuffer(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10*SkinningTransformSize), scratch.Bytes())
	assert.Equal(t, SkinningTransformsUsage, scratch.Usage)

	deform, err := b.GetDeformBuffer(0)
	require.NoError(t, err)
	assert.Zero(t, deform.Bytes())
}

func TestMarshalBones(t *testing.T) {
	bones := []common.TransformQvvs{common.IdentityQvvs(), {
		Rotation: mgl32.QuatIdent(),
		Position: mgl32.Vec3{1, 2, 3},
		Stretch:  mgl32.Vec3{1, 1, 1},
		Scale:    2,
	}}
	data := MarshalBones(bones)
	require.Len(t, data, 2*common.TransformQvvsSize)
	second := data[common.TransformQvvsSize:]
	assert.Equal(t, math.Float32bits(1), binary.LittleEndian.Uint32(second[16:]))
	assert.Equal(t, math.Float32bits(3), binary.LittleEndian.Uint32(second[24:]))
	assert.Equal(t, math.Float32bits(2), binary.LittleEndian.Uint32(second[44:]))
}

func TestNewWGPUBrokerRequiresDevice(t *testing.T) {
	_, err := NewWGPUBroker(nil, nil)
	assert.Error(t, err)
}

func TestRoundUpPow2(t *testing.T) {
	assert.Equal(t, uint64(1), roundUpPow2(0))
	assert.Equal(t, uint64(256), roundUpPow2(256))
	assert.Equal(t, uint64(512), roundUpPow2(257))
}

func TestQueueUploadReportsWriteFailure(t *testing.T) {
	failed := errors.New("device lost")
	var written []byte
	writer := func(_ *wgpu.Buffer, offset uint64, data []byte) error {
		written = data
		return failed
	}

	meta := newUploadBuffer("meta", MetaUsage, make([]Uint4, 2), nil, queueUpload(writer, nil, common.SliceToBytes[Uint4]))
	meta.Data()[0] = Uint4{7, 0, 0, 0}
	err := meta.Unlock()
	assert.ErrorIs(t, err, failed)
	assert.Len(t, written, 2*Uint4Size)

	ok := queueUpload(func(*wgpu.Buffer, uint64, []byte) error { return nil }, nil, MarshalBones)
	assert.NoError(t, ok([]common.TransformQvvs{common.IdentityQvvs()}))
	assert.NoError(t, ok(nil))
}
