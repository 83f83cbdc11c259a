package drawcmd

import (
	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/arena"
)

// visBlockSize is the number of chunk visibility words stored per stream block.
const visBlockSize = 32

// visItem records which entities of one chunk landed in a bin.
type visItem struct {
	chunk int32
	mask  common.Mask128
}

// visBlock is one node of a bin's append-only stream.
type visBlock struct {
	items [visBlockSize]visItem
	n     int
	next  *visBlock
}

// slotBin is a bin as seen by a single slot.
type slotBin struct {
	key       BinKey
	head      *visBlock
	tail      *visBlock
	instances int
}

// slot is the exclusively owned collection state of one worker batch.
// It is written only by its owner during emission and only read afterwards.
type slot struct {
	table  []uint32 // open addressing; 0 is empty, otherwise bin index + 1
	bins   []slotBin
	blocks *arena.Arena[visBlock]
}

const minSlotTable = 64

func newSlot() *slot {
	return &slot{
		table:  make([]uint32, minSlotTable),
		blocks: arena.New[visBlock](256),
	}
}

func (s *slot) reset() {
	clear(s.table)
	s.bins = s.bins[:0]
	s.blocks.Reset()
}

// find returns the index of the bin with key, or -1.
func (s *slot) find(key BinKey) int {
	mask := uint64(len(s.table) - 1)
	for i := key.hash & mask; ; i = (i + 1) & mask {
		e := s.table[i]
		if e == 0 {
			return -1
		}
		if s.bins[e-1].key.Equals(key) {
			return int(e - 1)
		}
	}
}

// add appends a chunk's visibility word to the bin for key, creating the bin if needed.
//
// Returns:
//   - bool: true if a new bin was created
func (s *slot) add(key BinKey, chunk int32, m common.Mask128) bool {
	idx := s.find(key)
	created := idx < 0
	if created {
		if (len(s.bins)+1)*2 > len(s.table) {
			s.grow()
		}
		idx = len(s.bins)
		s.bins = append(s.bins, slotBin{key: key})
		s.insert(key.hash, uint32(idx+1))
	}

	b := &s.bins[idx]
	if b.tail == nil || b.tail.n == visBlockSize {
		blk := &s.blocks.Alloc(1)[0]
		if b.tail == nil {
			b.head = blk
		} else {
			b.tail.next = blk
		}
		b.tail = blk
	}
	b.tail.items[b.tail.n] = visItem{chunk: chunk, mask: m}
	b.tail.n++
	b.instances += m.Count()
	return created
}

func (s *slot) insert(hash uint64, entry uint32) {
	mask := uint64(len(s.table) - 1)
	i := hash & mask
	for s.table[i] != 0 {
		i = (i + 1) & mask
	}
	s.table[i] = entry
}

func (s *slot) grow() {
	s.table = make([]uint32, len(s.table)*2)
	for i := range s.bins {
		s.insert(s.bins[i].key.hash, uint32(i+1))
	}
}

// each calls fn for every visibility word of bin idx, in insertion order.
func (s *slot) each(idx int, fn func(item visItem)) {
	for blk := s.bins[idx].head; blk != nil; blk = blk.next {
		for i := range blk.n {
			fn(blk.items[i])
		}
	}
}
