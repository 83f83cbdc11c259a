package broker

import (
	"math/bits"
	"sync"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// minBufferBytes keeps zero-sized requests from creating invalid GPU buffers.
const minBufferBytes = 256

type wgpuBrokerImpl struct {
	mu     sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	buffers map[string]*wgpu.Buffer
	sizes   map[string]uint64
}

// NewWGPUBroker creates a GraphicsBufferBroker backed by wgpu storage buffers.
// Buffers are created lazily, grown to the next power of two, and reused across frames.
// Upload buffers are written through the queue when unlocked.
//
// Parameters:
//   - device: the wgpu device used to create buffers
//   - queue: the queue used for uploads
//
// Returns:
//   - GraphicsBufferBroker: the broker
//   - error: an error if device or queue is nil
func NewWGPUBroker(device *wgpu.Device, queue *wgpu.Queue) (GraphicsBufferBroker, error) {
	if device == nil || queue == nil {
		return nil, errors.New("broker: wgpu device and queue are required")
	}
	return &wgpuBrokerImpl{
		device:  device,
		queue:   queue,
		buffers: make(map[string]*wgpu.Buffer),
		sizes:   make(map[string]uint64),
	}, nil
}

func (b *wgpuBrokerImpl) GetMetaUint4UploadBuffer(size int) (*UploadBuffer[Uint4], error) {
	buf, err := b.ensure("Skinning Meta Buffer", uint64(size)*Uint4Size, MetaUsage)
	if err != nil {
		return nil, err
	}
	return newUploadBuffer("meta", MetaUsage, make([]Uint4, size), buf, queueUpload(b.queue.WriteBuffer, buf, common.SliceToBytes[Uint4])), nil
}

func (b *wgpuBrokerImpl) GetBonesBuffer(size int) (*UploadBuffer[common.TransformQvvs], error) {
	buf, err := b.ensure("Skinning Bones Buffer", uint64(size)*common.TransformQvvsSize, BonesUsage)
	if err != nil {
		return nil, err
	}
	return newUploadBuffer("bones", BonesUsage, make([]common.TransformQvvs, size), buf, queueUpload(b.queue.WriteBuffer, buf, MarshalBones)), nil
}

// bufferWriter matches wgpu.Queue.WriteBuffer.
type bufferWriter func(buffer *wgpu.Buffer, offset uint64, data []byte) error

// queueUpload returns a flush that encodes the written elements and writes them to buf.
//
// Parameters:
//   - write: the queue write, usually Queue.WriteBuffer
//   - buf: the destination GPU buffer
//   - encode: converts the elements to bytes
//
// Returns:
//   - func([]T) error: the flush, passing any write failure through
func queueUpload[T any](write bufferWriter, buf *wgpu.Buffer, encode func([]T) []byte) func([]T) error {
	return func(data []T) error {
		if len(data) == 0 {
			return nil
		}
		return errors.Wrap(write(buf, 0, encode(data)), "queue write failed")
	}
}

func (b *wgpuBrokerImpl) GetSkinningTransformsBuffer(size int) (*GPUBuffer, error) {
	buf, err := b.ensure("Skinning Transforms Buffer", uint64(size)*SkinningTransformSize, SkinningTransformsUsage)
	if err != nil {
		return nil, err
	}
	return &GPUBuffer{Label: "skinning transforms", Usage: SkinningTransformsUsage, Elements: size, ElementSize: SkinningTransformSize, Handle: buf}, nil
}

func (b *wgpuBrokerImpl) GetDeformBuffer(size int) (*GPUBuffer, error) {
	buf, err := b.ensure("Deform Buffer", uint64(size)*SkinningTransformSize, DeformUsage)
	if err != nil {
		return nil, err
	}
	return &GPUBuffer{Label: "deform", Usage: DeformUsage, Elements: size, ElementSize: SkinningTransformSize, Handle: buf}, nil
}

func (b *wgpuBrokerImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for label, buf := range b.buffers {
		buf.Release()
		delete(b.buffers, label)
		delete(b.sizes, label)
	}
}

// ensure returns the buffer registered under label, recreating it when it is too small.
func (b *wgpuBrokerImpl) ensure(label string, byteSize uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if buf, ok := b.buffers[label]; ok && b.sizes[label] >= byteSize {
		return buf, nil
	}

	capacity := roundUpPow2(max(byteSize, minBufferBytes))
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             capacity,
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create %s (%d bytes)", label, capacity)
	}
	if old, ok := b.buffers[label]; ok {
		old.Release()
	}
	b.buffers[label] = buf
	b.sizes[label] = capacity
	return buf, nil
}

func roundUpPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len64(n-1)
}
