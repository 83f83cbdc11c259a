package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixSum(t *testing.T) {
	out, total := PrefixSum([]int{3, 0, 5, 1})
	assert.Equal(t, []int{0, 3, 3, 8}, out)
	assert.Equal(t, 9, total)

	empty, zero := PrefixSum[uint32](nil)
	assert.Empty(t, empty)
	assert.Zero(t, zero)
}

func TestPlanRegionsAreDisjointAndDense(t *testing.T) {
	counts := []ChunkCounts{
		{Bones: 10, BatchHeaders: 2, BatchMeshCommands: 5},
		{},
		{Bones: 700, SkinningTransforms: 700, ExpansionHeaders: 1, ExpansionMeshCommands: 2, MeshSkinningCommands: 3},
		{Bones: 4, BatchHeaders: 1, BatchMeshCommands: 1},
	}
	l, offs := Plan(counts)
	require.Len(t, offs, len(counts))

	assert.Equal(t, uint32(0), l.BatchHeadersStart)
	assert.Equal(t, uint32(3), l.BatchHeadersCount)
	assert.Equal(t, uint32(3), l.BatchMeshCommandsStart)
	assert.Equal(t, uint32(6), l.BatchMeshCommandsCount)
	assert.Equal(t, uint32(9), l.ExpansionHeadersStart)
	assert.Equal(t, uint32(10), l.ExpansionMeshCommandsStart)
	assert.Equal(t, uint32(12), l.MeshSkinningCommandsStart)
	assert.Equal(t, uint32(15), l.MetaSize)
	assert.Equal(t, uint32(714), l.BonesCount)
	assert.Equal(t, uint32(700), l.SkinningTransformsCount)

	assert.Equal(t, uint32(0), offs[0].Bones)
	assert.Equal(t, uint32(10), offs[2].Bones)
	assert.Equal(t, uint32(710), offs[3].Bones)
	assert.Equal(t, uint32(2), offs[3].BatchHeaders)
	assert.Equal(t, uint32(3+5), offs[3].BatchMeshCommands)
	assert.Equal(t, l.ExpansionHeadersStart, offs[2].ExpansionHeaders)
	assert.Equal(t, l.MeshSkinningCommandsStart, offs[2].MeshSkinningCommands)

	// every chunk's batch command region ends where the next one begins
	for i := 0; i+1 < len(counts); i++ {
		assert.Equal(t, offs[i].BatchMeshCommands+counts[i].BatchMeshCommands, offs[i+1].BatchMeshCommands)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	counts := []ChunkCounts{
		{Bones: 31, BatchHeaders: 3, BatchMeshCommands: 9},
		{Bones: 2000, SkinningTransforms: 4000, ExpansionHeaders: 2, ExpansionMeshCommands: 4, MeshSkinningCommands: 4},
		{Bones: 1, BatchHeaders: 1, BatchMeshCommands: 1},
	}
	l1, o1 := Plan(counts)
	l2, o2 := Plan(counts)
	assert.Equal(t, l1, l2)
	assert.Equal(t, o1, o2)
}
