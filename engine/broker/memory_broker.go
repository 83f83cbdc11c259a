package broker

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
)

// MemoryBroker is a CPU-only GraphicsBufferBroker. Backing slices are reused
// across frames and the most recent unlocked contents are kept for inspection.
type MemoryBroker struct {
	mu sync.Mutex

	meta  []Uint4
	bones []common.TransformQvvs

	lastMeta   []Uint4
	lastBones  []common.TransformQvvs
	uploads    int
	scratch    int
	deformSize int
}

var _ GraphicsBufferBroker = (*MemoryBroker)(nil)

// NewMemoryBroker creates an empty MemoryBroker.
//
// Returns:
//   - *MemoryBroker: the broker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

func (m *MemoryBroker) GetMetaUint4UploadBuffer(size int) (*UploadBuffer[Uint4], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = grow(m.meta, size)
	return newUploadBuffer("meta", MetaUsage, m.meta, nil, func(data []Uint4) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.lastMeta = append(m.lastMeta[:0], data...)
		m.uploads++
		return nil
	}), nil
}

func (m *MemoryBroker) GetBonesBuffer(size int) (*UploadBuffer[common.TransformQvvs], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bones = grow(m.bones, size)
	return newUploadBuffer("bones", BonesUsage, m.bones, nil, func(data []common.TransformQvvs) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.lastBones = append(m.lastBones[:0], data...)
		m.uploads++
		return nil
	}), nil
}

func (m *MemoryBroker) GetSkinningTransformsBuffer(size int) (*GPUBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scratch = max(m.scratch, size)
	return &GPUBuffer{Label: "skinning transforms", Usage: SkinningTransformsUsage, Elements: size, ElementSize: SkinningTransformSize}, nil
}

func (m *MemoryBroker) GetDeformBuffer(size int) (*GPUBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deformSize = max(m.deformSize, size)
	return &GPUBuffer{Label: "deform", Usage: DeformUsage, Elements: size, ElementSize: SkinningTransformSize}, nil
}

func (m *MemoryBroker) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta, m.bones, m.lastMeta, m.lastBones = nil, nil, nil, nil
}

// LastMeta returns a copy of the most recently unlocked meta buffer.
func (m *MemoryBroker) LastMeta() []Uint4 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Uint4(nil), m.lastMeta...)
}

// LastBones returns a copy of the most recently unlocked bones buffer.
func (m *MemoryBroker) LastBones() []common.TransformQvvs {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]common.TransformQvvs(nil), m.lastBones...)
}

// Uploads returns how many buffers have been unlocked so far.
func (m *MemoryBroker) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}

// grow returns s resized to n zeroed elements, reusing its backing array when possible.
func grow[T any](s []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if cap(s) < n {
		return make([]T, n)
	}
	s = s[:n]
	clear(s)
	return s
}
