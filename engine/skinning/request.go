package skinning

import (
	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/layout"
)

// SkeletonRef addresses a skeleton entity by chunk and slot.
type SkeletonRef struct {
	Chunk int32
	Index int32
}

// Skeleton is one skeleton entity.
type Skeleton struct {
	Entity uint32
	// Bones holds the current, previous and two-frames-ago world bone transforms.
	// Every snapshot has the same length, the skeleton's bone count.
	Bones [HistoryCount][]common.TransformQvvs
}

// BoneCount returns the number of bones of the current snapshot.
func (s *Skeleton) BoneCount() int { return len(s.Bones[HistoryCurrent]) }

// SkeletonChunk is a chunk of skeleton entities.
type SkeletonChunk struct {
	Skeletons []Skeleton
}

// MeshInfo describes a skinned mesh asset. Its index in Input.Meshes is the mesh
// descriptor index the shader uses to find bindposes and weights.
type MeshInfo struct {
	BoneCount   int
	VertexCount int
}

// DeformSlots is the number of distinct outputs a mesh entity can write.
const DeformSlots = MaxUsagesPerMesh

// SkinnedMesh is one skinned mesh entity.
type SkinnedMesh struct {
	Entity   uint32
	Skeleton SkeletonRef
	Mesh     int
	// DeformOffsets holds the destination offset of each output, indexed by DeformSlot.
	DeformOffsets [DeformSlots]uint32
}

// DeformSlot returns the index of u's output in SkinnedMesh.DeformOffsets.
func DeformSlot(u ShaderUsage) int {
	return (int(u.Kind())-1)*HistoryCount + int(u.History())
}

// MeshChunk is a chunk of skinned mesh entities.
type MeshChunk struct {
	ID ChunkID
	// Visible holds the entities that became visible in this dispatch.
	Visible common.Mask128
	Meshes  []SkinnedMesh
}

// MeshSkinningRequest asks for one output of one mesh entity.
type MeshSkinningRequest struct {
	Skeleton          SkeletonRef
	Entity            uint32
	MeshIndex         int32
	Usage             ShaderUsage
	DestinationOffset uint32
}

// SkeletonGroup is the contiguous run of requests that share a skeleton.
type SkeletonGroup struct {
	Skeleton SkeletonRef
	Requests []MeshSkinningRequest
}

// requestBlockSize is the number of bucket ids stored per block during grouping.
const requestBlockSize = 256

type bucketBlock struct {
	ids  [requestBlockSize]int32
	n    int
	next *bucketBlock
}

// GroupBySkeleton stable-sorts requests by skeleton with a counting sort: buckets are
// assigned in first-arrival order through a map, bucket ids are recorded in a block list,
// and a prefix sum over bucket counts gives each group's start. Arrival order is preserved
// within a skeleton. Runs single-threaded.
//
// Parameters:
//   - requests: the requests in arrival order
//   - dst: storage for the grouped requests, at least len(requests) long
//
// Returns:
//   - []SkeletonGroup: one group per skeleton, in first-arrival order, slicing dst
func GroupBySkeleton(requests []MeshSkinningRequest, dst []MeshSkinningRequest) []SkeletonGroup {
	if len(requests) == 0 {
		return nil
	}

	buckets := make(map[SkeletonRef]int32)
	var refs []SkeletonRef
	var counts []uint32

	head := &bucketBlock{}
	tail := head
	for _, r := range requests {
		id, ok := buckets[r.Skeleton]
		if !ok {
			id = int32(len(refs))
			buckets[r.Skeleton] = id
			refs = append(refs, r.Skeleton)
			counts = append(counts, 0)
		}
		counts[id]++
		if tail.n == requestBlockSize {
			tail.next = &bucketBlock{}
			tail = tail.next
		}
		tail.ids[tail.n] = id
		tail.n++
	}

	starts, _ := layout.PrefixSum(counts)
	cursor := append([]uint32(nil), starts...)

	i := 0
	for blk := head; blk != nil; blk = blk.next {
		for _, id := range blk.ids[:blk.n] {
			dst[cursor[id]] = requests[i]
			cursor[id]++
			i++
		}
	}

	groups := make([]SkeletonGroup, len(refs))
	for id, ref := range refs {
		groups[id] = SkeletonGroup{Skeleton: ref, Requests: dst[starts[id] : starts[id]+counts[id]]}
	}
	return groups
}
