package drawcmd

import (
	"log/slog"
	"math/bits"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/arena"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/jobs"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/logging"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxSlots is the maximum number of concurrently emitting slots. One presence-filter
// bit is reserved per slot.
const MaxSlots = 64

// DrawChunk is the draw view of one chunk.
type DrawChunk struct {
	// InstanceBase is the instance index of entity 0.
	InstanceBase uint32
	// Visible holds the entities to draw.
	Visible common.Mask128
	// Settings holds the draw state of each entity.
	Settings []DrawCommandSettings
	// SplitMasks overrides each entity's SplitMask when set (light views).
	SplitMasks *[common.ChunkCapacity]uint8
	// LodCrossfade holds an optional crossfade byte per entity.
	LodCrossfade []uint8
	// Positions holds the cached world position of each entity, used for depth sorting.
	Positions []mgl32.Vec3
	// PostProcess holds an optional per-entity matrix applied to the sorting position.
	PostProcess []mgl32.Mat4
}

// BinIndex locates one sorted bin in the output arrays.
type BinIndex struct {
	InstanceOffset    int
	InstanceCount     int
	SortingOffset     int // -1 when the bin is not depth sorted
	DrawCommandOffset int
	DrawCommandCount  int
}

// DrawCommandWorkItem is the contribution of one slot to one bin. Work items carry
// absolute output offsets, so all of them can be expanded in parallel.
type DrawCommandWorkItem struct {
	Bin            int
	Slot           int
	InstanceOffset int
	SortingOffset  int
	Count          int

	slotBin int
}

// Bins is the finalized, globally sorted bin list of a frame.
type Bins struct {
	// Keys is the unsorted list of unique bin keys.
	Keys []BinKey
	// SortedBins is the permutation of Keys in ascending key order.
	SortedBins []int32
	// BinIndices holds the output offsets of each bin, in sorted order.
	BinIndices []BinIndex
	// WorkItems lists every (bin, slot) contribution, grouped by bin in sorted order.
	WorkItems []DrawCommandWorkItem

	TotalInstances        int
	TotalSortingPositions int
	TotalDrawCommands     int
}

// Key returns the key of the i-th sorted bin.
func (b *Bins) Key(i int) BinKey { return b.Keys[b.SortedBins[i]] }

// Collector bins visible draws and turns them into draw commands.
// A Collector is reused across frames but runs one frame at a time.
type Collector interface {
	// Begin clears all state and prepares slots for a new frame.
	//
	// Parameters:
	//   - slots: the number of emitting slots, clamped to [1, MaxSlots]
	Begin(slots int)

	// EmitChunk adds the entities of mask to the bins of slot. Only the owner of slot may call it.
	//
	// Parameters:
	//   - slot: the emitting slot
	//   - chunkIndex: the index of chunk in the slice later passed to Expand
	//   - chunk: the chunk's draw data
	//   - mask: the entities to emit
	EmitChunk(slot, chunkIndex int, chunk *DrawChunk, mask common.Mask128)

	// Collect runs Begin and EmitChunk for every chunk's Visible mask across the pool.
	//
	// Parameters:
	//   - chunks: the chunks of this frame
	Collect(chunks []*DrawChunk)

	// Finalize merges every slot's bins into one sorted list with output offsets.
	//
	// Returns:
	//   - *Bins: the sorted bins and work items
	Finalize() *Bins

	// Expand materializes bins into instance indices, sorting positions, draw commands and ranges.
	//
	// Parameters:
	//   - bins: the result of Finalize
	//   - chunks: the chunks the bins were emitted from
	//
	// Returns:
	//   - *Output: the flat draw arrays
	Expand(bins *Bins, chunks []*DrawChunk) *Output

	// Generate runs Collect, Finalize and Expand.
	//
	// Parameters:
	//   - chunks: the chunks of this frame
	//
	// Returns:
	//   - *Output: the flat draw arrays
	Generate(chunks []*DrawChunk) *Output
}

type collector struct {
	maxInstancesPerDrawCommand int
	maxInstancesPerRange       int
	maxCommandsPerRange        int
	filterSize                 int

	pool   jobs.Pool
	logger *slog.Logger

	slots     []*slot
	active    int
	filter    []atomic.Uint64
	unique    *concurrentSet
	workItems *arena.Arena[DrawCommandWorkItem]
}

var _ Collector = &collector{}

// NewCollector creates a Collector.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Collector: the collector
func NewCollector(options ...CollectorBuilderOption) Collector {
	c := &collector{
		maxInstancesPerDrawCommand: DefaultMaxInstancesPerDrawCommand,
		maxInstancesPerRange:       DefaultMaxInstancesPerRange,
		maxCommandsPerRange:        DefaultMaxCommandsPerRange,
		filterSize:                 DefaultFilterSize,
		pool:                       jobs.Serial(),
		logger:                     logging.Nop(),
		unique:                     newConcurrentSet(),
		workItems:                  arena.New[DrawCommandWorkItem](0),
	}
	for _, opt := range options {
		opt(c)
	}
	c.filter = make([]atomic.Uint64, c.filterSize)
	return c
}

func (c *collector) Begin(slots int) {
	slots = max(1, min(slots, MaxSlots))
	for len(c.slots) < slots {
		c.slots = append(c.slots, newSlot())
	}
	for _, s := range c.slots[:slots] {
		s.reset()
	}
	c.active = slots
	for i := range c.filter {
		c.filter[i].Store(0)
	}
	c.unique.reset()
	c.workItems.Reset()
}

func (c *collector) EmitChunk(slotIndex, chunkIndex int, chunk *DrawChunk, mask common.Mask128) {
	if mask.IsZero() {
		return
	}
	valid := common.MaskFirstN(len(chunk.Settings))
	if extra := mask.AndNot(valid); !extra.IsZero() {
		c.logger.Error("visible entities without draw settings",
			"chunk", chunkIndex, "entities", len(chunk.Settings), "missing", extra.Count())
		mask = mask.And(valid)
	}

	var (
		keys   [common.ChunkCapacity]BinKey
		groups [common.ChunkCapacity]common.Mask128
		n      int
		last   = -1
	)
	mask.Each(func(e int) {
		s := chunk.Settings[e]
		if chunk.SplitMasks != nil {
			s.SplitMask = chunk.SplitMasks[e]
		}
		k := s.Key()
		if last >= 0 && keys[last].Equals(k) {
			groups[last].Set(e)
			return
		}
		for g := range n {
			if keys[g].Equals(k) {
				groups[g].Set(e)
				last = g
				return
			}
		}
		keys[n] = k
		groups[n].Set(e)
		last = n
		n++
	})

	s := c.slots[slotIndex]
	bit := uint64(1) << slotIndex
	for g := range n {
		if s.add(keys[g], int32(chunkIndex), groups[g]) {
			c.filter[keys[g].hash%uint64(len(c.filter))].Or(bit)
		}
	}
}

func (c *collector) Collect(chunks []*DrawChunk) {
	slots := min(c.pool.Workers(), MaxSlots)
	c.Begin(slots)
	c.pool.ForEachBatch(len(chunks), c.active, func(batch, start, end int) {
		for i := start; i < end; i++ {
			if chunks[i] != nil {
				c.EmitChunk(batch, i, chunks[i], chunks[i].Visible)
			}
		}
	})
}

func (c *collector) Finalize() *Bins {
	slots := c.slots[:c.active]

	// Unique keys across slots.
	c.pool.ForEachBatch(len(slots), len(slots), func(_, start, end int) {
		for _, s := range slots[start:end] {
			for i := range s.bins {
				c.unique.add(s.bins[i].key)
			}
		}
	})
	keys := c.unique.all()
	sorted := SortBins(c.pool, keys)

	bins := &Bins{
		Keys:       keys,
		SortedBins: sorted,
		BinIndices: make([]BinIndex, len(sorted)),
	}
	contributors := make([]int, len(sorted))

	// Per-bin totals, using the presence filter to skip slots that cannot hold the bin.
	c.pool.ForEachBatch(len(sorted), 0, func(_, start, end int) {
		for b := start; b < end; b++ {
			key := keys[sorted[b]]
			c.eachContribution(key, func(_ int, s *slot, idx int) {
				bins.BinIndices[b].InstanceCount += s.bins[idx].instances
				contributors[b]++
			})
		}
	})

	// Serial prefix sum in sorted order.
	var instances, positions, commands, items int
	itemOffsets := make([]int, len(sorted))
	for b := range bins.BinIndices {
		bi := &bins.BinIndices[b]
		key := keys[sorted[b]]
		bi.InstanceOffset = instances
		bi.SortingOffset = -1
		bi.DrawCommandOffset = commands
		if key.DepthSorted() {
			bi.SortingOffset = positions
			positions += bi.InstanceCount
			bi.DrawCommandCount = bi.InstanceCount
		} else {
			bi.DrawCommandCount = common.CeilDiv(bi.InstanceCount, c.maxInstancesPerDrawCommand)
		}
		instances += bi.InstanceCount
		commands += bi.DrawCommandCount
		itemOffsets[b] = items
		items += contributors[b]
	}
	bins.TotalInstances = instances
	bins.TotalSortingPositions = positions
	bins.TotalDrawCommands = commands

	// Work items with running offsets inside each bin.
	bins.WorkItems = c.workItems.Alloc(items)
	c.pool.ForEachBatch(len(sorted), 0, func(_, start, end int) {
		for b := start; b < end; b++ {
			bi := bins.BinIndices[b]
			key := keys[sorted[b]]
			next := itemOffsets[b]
			running := 0
			c.eachContribution(key, func(slotIndex int, s *slot, idx int) {
				n := s.bins[idx].instances
				item := DrawCommandWorkItem{
					Bin:            b,
					Slot:           slotIndex,
					InstanceOffset: bi.InstanceOffset + running,
					SortingOffset:  -1,
					Count:          n,
					slotBin:        idx,
				}
				if bi.SortingOffset >= 0 {
					item.SortingOffset = bi.SortingOffset + running
				}
				bins.WorkItems[next] = item
				next++
				running += n
			})
		}
	})
	return bins
}

// eachContribution calls fn for every slot holding key, in ascending slot order.
func (c *collector) eachContribution(key BinKey, fn func(slotIndex int, s *slot, idx int)) {
	present := c.filter[key.hash%uint64(len(c.filter))].Load()
	for w := present; w != 0; w &= w - 1 {
		si := bits.TrailingZeros64(w)
		if si >= c.active {
			break
		}
		s := c.slots[si]
		if idx := s.find(key); idx >= 0 {
			fn(si, s, idx)
		}
	}
}

func (c *collector) Generate(chunks []*DrawChunk) *Output {
	c.Collect(chunks)
	return c.Expand(c.Finalize(), chunks)
}
