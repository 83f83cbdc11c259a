package skinning

import (
	"cmp"
	"log/slog"
	"slices"
)

// Strategy is the code-generation path chosen for one history chain.
type Strategy uint8

const (
	// SingleMeshBatched keeps one mesh's converted bones in group-shared memory.
	SingleMeshBatched Strategy = iota
	// SingleMeshExpanded spills one mesh's conversions through an expansion pass.
	SingleMeshExpanded
	// MultiMeshBatched keeps several meshes in group-shared memory, or spills their
	// conversions to the skinning-transforms buffer when they do not fit together.
	MultiMeshBatched
	// MultiMeshExpanded spills several meshes through an expansion pass.
	MultiMeshExpanded
)

func (s Strategy) String() string {
	switch s {
	case SingleMeshBatched:
		return "SingleMeshBatched"
	case SingleMeshExpanded:
		return "SingleMeshExpanded"
	case MultiMeshBatched:
		return "MultiMeshBatched"
	default:
		return "MultiMeshExpanded"
	}
}

// Expanded reports whether the strategy uses the expansion pass.
func (s Strategy) Expanded() bool {
	return s == SingleMeshExpanded || s == MultiMeshExpanded
}

// chain is the requests of one skeleton for one history, ready for emission.
type chain struct {
	skeleton      SkeletonRef
	history       History
	boneCount     int
	strategy      Strategy
	requests      []MeshSkinningRequest
	distinctBones int // bones summed over distinct meshes
}

// validateGroup removes requests whose mesh needs more bones than the skeleton has, or whose
// mesh index is unknown. Each offending entity is logged once, however many outputs it requested.
//
// Returns:
//   - []MeshSkinningRequest: the surviving requests, compacted in place
//   - int: the number of removed requests
func validateGroup(logger *slog.Logger, g SkeletonGroup, skeleton *Skeleton, meshes []MeshInfo) ([]MeshSkinningRequest, int) {
	skeletonBones := skeleton.BoneCount()
	var logged map[uint32]struct{}
	kept := g.Requests[:0]
	dropped := 0
	for _, r := range g.Requests {
		if r.MeshIndex < 0 || int(r.MeshIndex) >= len(meshes) {
			dropped++
			if _, ok := logged[r.Entity]; !ok {
				logged = markLogged(logged, r.Entity)
				logger.Error("skinned mesh references unknown mesh",
					"entity", r.Entity, "mesh", r.MeshIndex, "skeleton", skeleton.Entity)
			}
			continue
		}
		meshBones := meshes[r.MeshIndex].BoneCount
		if meshBones > skeletonBones {
			dropped++
			if _, ok := logged[r.Entity]; !ok {
				logged = markLogged(logged, r.Entity)
				logger.Error("mesh requires more bones than its skeleton provides",
					"entity", r.Entity, "mesh", r.MeshIndex, "skeleton", skeleton.Entity,
					"meshBones", meshBones, "skeletonBones", skeletonBones)
			}
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}

func markLogged(m map[uint32]struct{}, entity uint32) map[uint32]struct{} {
	if m == nil {
		m = make(map[uint32]struct{})
	}
	m[entity] = struct{}{}
	return m
}

// splitHistoryChains stable-sorts requests by history and cuts them where the history changes.
//
// Returns:
//   - [][]MeshSkinningRequest: up to three non-empty sub-slices of requests
func splitHistoryChains(requests []MeshSkinningRequest) [][]MeshSkinningRequest {
	slices.SortStableFunc(requests, func(a, b MeshSkinningRequest) int {
		return cmp.Compare(a.Usage.History(), b.Usage.History())
	})
	var chains [][]MeshSkinningRequest
	start := 0
	for i := 1; i <= len(requests); i++ {
		if i == len(requests) || requests[i].Usage.History() != requests[start].Usage.History() {
			chains = append(chains, requests[start:i])
			start = i
		}
	}
	return chains
}

// sortChain orders a chain by (conversion category, mesh bone count, mesh index, vertex before deform)
// so that requests sharing a conversion end up adjacent.
func sortChain(requests []MeshSkinningRequest, meshes []MeshInfo) {
	vertexFirst := func(u ShaderUsage) int {
		if u.IsVertex() {
			return 0
		}
		return 1
	}
	slices.SortStableFunc(requests, func(a, b MeshSkinningRequest) int {
		return cmp.Or(
			cmp.Compare(a.Usage.category(), b.Usage.category()),
			cmp.Compare(meshes[a.MeshIndex].BoneCount, meshes[b.MeshIndex].BoneCount),
			cmp.Compare(a.MeshIndex, b.MeshIndex),
			cmp.Compare(vertexFirst(a.Usage), vertexFirst(b.Usage)),
		)
	})
}

// chooseStrategy picks the code-generation path. A chain is batched only when the skeleton and
// every mesh fit within threshold bones.
func chooseStrategy(skeletonBones int, requests []MeshSkinningRequest, meshes []MeshInfo, threshold int) (Strategy, int) {
	batched := skeletonBones <= threshold
	distinct := 0
	distinctBones := 0
	last := int32(-1)
	seen := make(map[int32]struct{}, 4)
	for _, r := range requests {
		bones := meshes[r.MeshIndex].BoneCount
		if bones > threshold {
			batched = false
		}
		if r.MeshIndex == last {
			continue
		}
		last = r.MeshIndex
		if _, ok := seen[r.MeshIndex]; ok {
			continue
		}
		seen[r.MeshIndex] = struct{}{}
		distinct++
		distinctBones += bones
	}
	switch {
	case distinct == 1 && batched:
		return SingleMeshBatched, distinctBones
	case distinct == 1:
		return SingleMeshExpanded, distinctBones
	case batched:
		return MultiMeshBatched, distinctBones
	default:
		return MultiMeshExpanded, distinctBones
	}
}
