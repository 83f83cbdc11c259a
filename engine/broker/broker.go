// Package broker hands out the GPU-visible buffers a frame writes into. The
// pipeline never owns GPU memory: it asks a GraphicsBufferBroker for a buffer of
// the exact size the layout planner computed, fills it, and unlocks it.
package broker

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// Uint4 is one element of the meta upload buffer (a WGSL vec4<u32>).
type Uint4 = [4]uint32

// Uint4Size is the size of a Uint4 in bytes.
const Uint4Size = 16

// Usage flags requested for each buffer kind.
const (
	MetaUsage               = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	BonesUsage              = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	SkinningTransformsUsage = wgpu.BufferUsageStorage
	DeformUsage             = wgpu.BufferUsageStorage | wgpu.BufferUsageVertex
)

// SkinningTransformSize is the size in bytes of one scratch skinning transform (a 3x4 matrix,
// large enough to also hold a dual quaternion plus scale).
const SkinningTransformSize = 48

// ErrLocked is returned when a buffer is requested or unlocked in the wrong state.
var ErrLocked = errors.New("broker: buffer lock state mismatch")

// GraphicsBufferBroker supplies the per-frame GPU buffers of the skinning pipeline.
type GraphicsBufferBroker interface {
	// GetMetaUint4UploadBuffer returns a locked upload buffer with room for size uint4 elements.
	//
	// Parameters:
	//   - size: the number of Uint4 elements
	//
	// Returns:
	//   - *UploadBuffer[Uint4]: the buffer, already locked for writing
	//   - error: an error if the buffer could not be provided
	GetMetaUint4UploadBuffer(size int) (*UploadBuffer[Uint4], error)

	// GetBonesBuffer returns a locked upload buffer with room for size bone transforms.
	//
	// Parameters:
	//   - size: the number of bone transforms
	//
	// Returns:
	//   - *UploadBuffer[common.TransformQvvs]: the buffer, already locked for writing
	//   - error: an error if the buffer could not be provided
	GetBonesBuffer(size int) (*UploadBuffer[common.TransformQvvs], error)

	// GetSkinningTransformsBuffer returns a GPU-only scratch buffer of size transforms.
	//
	// Parameters:
	//   - size: the number of scratch transforms
	//
	// Returns:
	//   - *GPUBuffer: the buffer descriptor
	//   - error: an error if the buffer could not be provided
	GetSkinningTransformsBuffer(size int) (*GPUBuffer, error)

	// GetDeformBuffer returns the persistent deform buffer sized for size elements.
	//
	// Parameters:
	//   - size: the number of deformed vertices or transforms
	//
	// Returns:
	//   - *GPUBuffer: the buffer descriptor
	//   - error: an error if the buffer could not be provided
	GetDeformBuffer(size int) (*GPUBuffer, error)

	// Release frees every buffer held by the broker.
	Release()
}

// UploadBuffer is a CPU-writable region that is flushed to the GPU on Unlock.
// Writers may fill disjoint ranges of Data concurrently while the buffer is locked.
type UploadBuffer[T any] struct {
	mu     sync.Mutex
	label  string
	usage  wgpu.BufferUsage
	data   []T
	locked bool
	handle *wgpu.Buffer
	flush  func(data []T) error
}

func newUploadBuffer[T any](label string, usage wgpu.BufferUsage, data []T, handle *wgpu.Buffer, flush func([]T) error) *UploadBuffer[T] {
	return &UploadBuffer[T]{label: label, usage: usage, data: data, locked: true, handle: handle, flush: flush}
}

// Label returns the debug label of the buffer.
func (b *UploadBuffer[T]) Label() string { return b.label }

// Usage returns the GPU usage flags of the buffer.
func (b *UploadBuffer[T]) Usage() wgpu.BufferUsage { return b.usage }

// Handle returns the backing GPU buffer, or nil for CPU-only brokers.
func (b *UploadBuffer[T]) Handle() *wgpu.Buffer { return b.handle }

// Len returns the number of elements in the buffer.
func (b *UploadBuffer[T]) Len() int { return len(b.data) }

// Data returns the writable elements. Only valid while the buffer is locked.
func (b *UploadBuffer[T]) Data() []T { return b.data }

// Locked reports whether the buffer is still open for writing.
func (b *UploadBuffer[T]) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Unlock flushes the written elements to the GPU and closes the buffer for writing.
//
// Returns:
//   - error: ErrLocked if the buffer was already unlocked, or the flush error
func (b *UploadBuffer[T]) Unlock() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.locked {
		return errors.Wrapf(ErrLocked, "unlock %q", b.label)
	}
	b.locked = false
	if b.flush == nil {
		return nil
	}
	return errors.Wrapf(b.flush(b.data), "flush %q", b.label)
}

// GPUBuffer describes a GPU-only buffer the CPU never writes.
type GPUBuffer struct {
	Label       string
	Usage       wgpu.BufferUsage
	Elements    int
	ElementSize int
	Handle      *wgpu.Buffer
}

// Bytes returns the buffer size in bytes.
func (b *GPUBuffer) Bytes() uint64 {
	return uint64(b.Elements) * uint64(b.ElementSize)
}

// MarshalBones serializes bone transforms in GPU layout.
//
// Parameters:
//   - bones: the transforms to serialize
//
// Returns:
//   - []byte: len(bones) * 48 bytes
func MarshalBones(bones []common.TransformQvvs) []byte {
	buf := make([]byte, len(bones)*common.TransformQvvsSize)
	for i := range bones {
		bones[i].MarshalTo(buf[i*common.TransformQvvsSize:])
	}
	return buf
}
