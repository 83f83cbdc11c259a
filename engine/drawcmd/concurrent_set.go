package drawcmd

import "sync"

const setShards = 16

// concurrentSet deduplicates bin keys coming from many slots at once.
// Keys are spread over mutex-guarded shards by hash.
type concurrentSet struct {
	shards [setShards]setShard
}

type setShard struct {
	mu   sync.Mutex
	seen map[BinKey]struct{}
	keys []BinKey
}

func newConcurrentSet() *concurrentSet {
	s := &concurrentSet{}
	for i := range s.shards {
		s.shards[i].seen = make(map[BinKey]struct{})
	}
	return s
}

// add inserts key and reports whether it was not present before.
func (s *concurrentSet) add(key BinKey) bool {
	sh := &s.shards[key.hash%setShards]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.seen[key]; ok {
		return false
	}
	sh.seen[key] = struct{}{}
	sh.keys = append(sh.keys, key)
	return true
}

// all returns every unique key. Order depends on insertion and is not meaningful.
func (s *concurrentSet) all() []BinKey {
	n := 0
	for i := range s.shards {
		n += len(s.shards[i].keys)
	}
	out := make([]BinKey, 0, n)
	for i := range s.shards {
		out = append(out, s.shards[i].keys...)
	}
	return out
}

func (s *concurrentSet) reset() {
	for i := range s.shards {
		clear(s.shards[i].seen)
		s.shards[i].keys = s.shards[i].keys[:0]
	}
}
