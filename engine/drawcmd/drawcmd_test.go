package drawcmd

import (
	"log/slog"
	"math/rand"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/jobs"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/logging"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSettings() DrawCommandSettings {
	return DrawCommandSettings{
		BatchID:           3,
		MeshID:            7,
		MaterialID:        11,
		SubMeshIndex:      1,
		SplitMask:         0,
		MeshLod:           2,
		Flags:             FlagHasMotion,
		FilterIndex:       1,
		RenderingPriority: -5,
	}
}

func TestEqualsIffFieldsMatch(t *testing.T) {
	a := baseSettings()
	b := baseSettings()
	assert.True(t, a.Equals(b))
	assert.Equal(t, a.Key().Hash(), b.Key().Hash())
	assert.Equal(t, a, a.Key().Settings())

	b.RenderingPriority = -4
	assert.False(t, a.Equals(b), "settings differing only in priority must not be equal")

	mutations := map[string]func(*DrawCommandSettings){
		"batch":     func(s *DrawCommandSettings) { s.BatchID++ },
		"mesh":      func(s *DrawCommandSettings) { s.MeshID++ },
		"material":  func(s *DrawCommandSettings) { s.MaterialID++ },
		"submesh":   func(s *DrawCommandSettings) { s.SubMeshIndex++ },
		"splitMask": func(s *DrawCommandSettings) { s.SplitMask++ },
		"meshLod":   func(s *DrawCommandSettings) { s.MeshLod++ },
		"flags":     func(s *DrawCommandSettings) { s.Flags |= FlagFlipWinding },
		"filter":    func(s *DrawCommandSettings) { s.FilterIndex++ },
		"priority":  func(s *DrawCommandSettings) { s.RenderingPriority = 1 << 30 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			m := baseSettings()
			mutate(&m)
			assert.False(t, a.Equals(m))
			assert.NotZero(t, a.Key().CompareTo(m.Key()))
			assert.Equal(t, m, m.Key().Settings())
		})
	}
}

func TestPriorityOrdersAsSigned(t *testing.T) {
	lo := baseSettings()
	lo.RenderingPriority = -100
	hi := baseSettings()
	hi.RenderingPriority = 100
	assert.Equal(t, -1, lo.Key().CompareTo(hi.Key()))
	assert.Equal(t, 1, hi.Key().CompareTo(lo.Key()))
	assert.Zero(t, hi.Key().CompareTo(hi.Key()))
}

func randomKeys(rng *rand.Rand, n int) []BinKey {
	seen := make(map[BinKey]struct{}, n)
	keys := make([]BinKey, 0, n)
	for len(keys) < n {
		k := DrawCommandSettings{
			BatchID:           uint32(rng.Intn(8)),
			MeshID:            uint32(rng.Intn(64)),
			MaterialID:        uint32(rng.Intn(16)),
			SubMeshIndex:      uint16(rng.Intn(4)),
			MeshLod:           uint8(rng.Intn(3)),
			FilterIndex:       uint32(rng.Intn(3)),
			RenderingPriority: int32(rng.Intn(5) - 2),
		}.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

func TestSortBinsMatchesReference(t *testing.T) {
	pool := jobs.NewPool(4)
	defer pool.Release()
	rng := rand.New(rand.NewSource(42))

	for _, n := range []int{0, 1, 4, 5, 1000} {
		keys := randomKeys(rng, n)
		got := SortBins(pool, keys)
		require.Len(t, got, n)

		want := slices.Clone(keys)
		slices.SortFunc(want, BinKey.CompareTo)
		for i, idx := range got {
			assert.True(t, want[i].Equals(keys[idx]), "n=%d position %d", n, i)
		}
	}
}

// chunkOf builds a chunk of n entities cycling through the given settings.
func chunkOf(base uint32, n int, settings ...DrawCommandSettings) *DrawChunk {
	c := &DrawChunk{InstanceBase: base, Visible: common.MaskFirstN(n)}
	for i := range n {
		c.Settings = append(c.Settings, settings[i%len(settings)])
	}
	return c
}

func TestInstanceCountConservation(t *testing.T) {
	pool := jobs.NewPool(4)
	defer pool.Release()
	rng := rand.New(rand.NewSource(9))

	variants := make([]DrawCommandSettings, 6)
	for i := range variants {
		variants[i] = baseSettings()
		variants[i].MeshID = uint32(i % 3)
		variants[i].MaterialID = uint32(i / 3)
	}

	var chunks []*DrawChunk
	visible := 0
	want := map[uint32]bool{}
	for i := range 40 {
		c := chunkOf(uint32(i*common.ChunkCapacity), common.ChunkCapacity, variants[rng.Intn(6)], variants[rng.Intn(6)])
		c.Visible = common.Mask128{Lower: rng.Uint64(), Upper: rng.Uint64()}
		visible += c.Visible.Count()
		c.Visible.Each(func(e int) { want[c.InstanceBase+uint32(e)] = true })
		chunks = append(chunks, c)
	}

	out := NewCollector(WithPool(pool)).Generate(chunks)

	sum := 0
	for _, bi := range out.Bins.BinIndices {
		sum += bi.InstanceCount
	}
	assert.Equal(t, visible, sum)
	require.Len(t, out.VisibleInstances, visible)

	got := map[uint32]bool{}
	for _, idx := range out.VisibleInstances {
		got[idx] = true
	}
	assert.Equal(t, want, got)

	drawn := uint32(0)
	for _, cmd := range out.DrawCommands {
		drawn += cmd.VisibleCount
	}
	assert.Equal(t, uint32(visible), drawn)
}

func TestDrawCommandSplitting(t *testing.T) {
	s := baseSettings()
	var chunks []*DrawChunk
	for i := 0; i < 10000; i += common.ChunkCapacity {
		chunks = append(chunks, chunkOf(uint32(i), min(common.ChunkCapacity, 10000-i), s))
	}

	out := NewCollector().Generate(chunks)

	require.Len(t, out.Bins.BinIndices, 1)
	assert.Equal(t, 10000, out.Bins.BinIndices[0].InstanceCount)
	require.Len(t, out.DrawCommands, 3)
	total := uint32(0)
	for i, cmd := range out.DrawCommands {
		assert.Equal(t, uint32(i*DefaultMaxInstancesPerDrawCommand), cmd.VisibleOffset)
		total += cmd.VisibleCount
	}
	assert.Equal(t, uint32(10000), total)
	assert.Equal(t, uint32(10000-2*4096), out.DrawCommands[2].VisibleCount)
}

func TestDepthSortedBinsGetOneCommandPerInstance(t *testing.T) {
	s := baseSettings()
	s.Flags |= FlagHasSortingPosition
	c := chunkOf(100, 3, s)
	c.Positions = []mgl32.Vec3{{1, 0, 0}, {2, 0, 0}, {3, 0, 0}}
	c.PostProcess = []mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(0, 10, 0), mgl32.Ident4()}

	out := NewCollector().Generate([]*DrawChunk{c})

	require.Len(t, out.DrawCommands, 3)
	assert.Equal(t, []uint32{100, 101, 102}, out.VisibleInstances)
	assert.Equal(t, []mgl32.Vec3{{1, 0, 0}, {2, 10, 0}, {3, 0, 0}}, out.SortingPositions)
	for i, cmd := range out.DrawCommands {
		assert.Equal(t, uint32(1), cmd.VisibleCount)
		assert.Equal(t, uint32(i), cmd.SortingPosition)
	}
	require.Len(t, out.DrawRanges, 1)
	assert.True(t, out.DrawRanges[0].AllDepthSorted)
}

func TestLodCrossfadePacking(t *testing.T) {
	s := baseSettings()
	s.Flags |= FlagLodCrossfadeValuePacked
	c := chunkOf(0x01000005, 2, s)
	c.LodCrossfade = []uint8{0x80, 0x7F}

	out := NewCollector().Generate([]*DrawChunk{c})

	assert.Equal(t, []uint32{0x80000005, 0x7F000006}, out.VisibleInstances)
}

func TestSplitMasksSeparateBins(t *testing.T) {
	c := chunkOf(0, 4, baseSettings())
	c.SplitMasks = &[common.ChunkCapacity]uint8{1, 1, 2, 3}

	out := NewCollector().Generate([]*DrawChunk{c})

	require.Len(t, out.Bins.BinIndices, 3)
	masks := []uint8{}
	for _, cmd := range out.DrawCommands {
		masks = append(masks, cmd.SplitVisibilityMask)
	}
	assert.Equal(t, []uint8{1, 2, 3}, masks)
	assert.Equal(t, uint32(2), out.DrawCommands[0].VisibleCount)
}

func TestRangeCoalescing(t *testing.T) {
	var cmds []BatchDrawCommand
	for _, f := range []uint32{1, 1, 1, 2, 2} {
		cmds = append(cmds, BatchDrawCommand{FilterIndex: f, VisibleCount: 10})
	}

	ranges := GenerateRanges(cmds, DefaultMaxInstancesPerRange, DefaultMaxCommandsPerRange)

	require.Len(t, ranges, 2)
	assert.Equal(t, uint32(3), ranges[0].DrawCommandsCount)
	assert.Equal(t, uint32(2), ranges[1].DrawCommandsCount)
	assert.Equal(t, uint32(3), ranges[1].DrawCommandsBegin)
	assert.False(t, ranges[0].AllDepthSorted)
}

func TestRangeLimits(t *testing.T) {
	cmds := []BatchDrawCommand{
		{FilterIndex: 1, VisibleCount: 1, Flags: FlagHasSortingPosition},
		{FilterIndex: 1, VisibleCount: 1, Flags: FlagHasSortingPosition},
		{FilterIndex: 1, VisibleCount: 1},
		{FilterIndex: 1, VisibleCount: 50},
	}

	ranges := GenerateRanges(cmds, 40, 2)

	require.Len(t, ranges, 3)
	assert.Equal(t, []uint32{2, 1, 1}, []uint32{ranges[0].DrawCommandsCount, ranges[1].DrawCommandsCount, ranges[2].DrawCommandsCount})
	assert.True(t, ranges[0].AllDepthSorted)
	assert.False(t, ranges[1].AllDepthSorted)

	assert.Empty(t, GenerateRanges(nil, 40, 2))
}

func TestParallelOutputMatchesSerial(t *testing.T) {
	pool := jobs.NewPool(4)
	defer pool.Release()
	rng := rand.New(rand.NewSource(5))

	a, b := baseSettings(), baseSettings()
	b.MaterialID = 99
	var chunks []*DrawChunk
	for i := range 32 {
		c := chunkOf(uint32(i*common.ChunkCapacity), common.ChunkCapacity, a, b)
		c.Visible = common.Mask128{Lower: rng.Uint64(), Upper: rng.Uint64()}
		chunks = append(chunks, c)
	}

	serial := NewCollector().Generate(chunks)
	parallel := NewCollector(WithPool(pool)).Generate(chunks)

	assert.Equal(t, serial.VisibleInstances, parallel.VisibleInstances)
	assert.Equal(t, serial.DrawCommands, parallel.DrawCommands)
	assert.Equal(t, serial.DrawRanges, parallel.DrawRanges)
}

func TestCollectorReuseAcrossFrames(t *testing.T) {
	c := NewCollector()
	first := c.Generate([]*DrawChunk{chunkOf(0, 10, baseSettings())})
	second := c.Generate([]*DrawChunk{chunkOf(0, 3, baseSettings())})

	assert.Len(t, first.VisibleInstances, 10)
	assert.Len(t, second.VisibleInstances, 3)
	assert.Len(t, second.Bins.WorkItems, 1)
}

func TestMissingSettingsAreLogged(t *testing.T) {
	rec, logger := logging.NewRecorder()
	c := chunkOf(0, 2, baseSettings())
	c.Visible = common.MaskFirstN(4)

	out := NewCollector(WithLogger(logger)).Generate([]*DrawChunk{c})

	assert.Len(t, out.VisibleInstances, 2)
	assert.Equal(t, 1, rec.Count(slog.LevelError))
}
