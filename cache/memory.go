package cache

import (
	"time"

	"github.com/karlseguin/ccache/v3"
)

// memoryTTL is long enough that entries only leave the cache through LRU pruning.
const memoryTTL = 24 * time.Hour

// MemoryStore is a bounded LRU held in process memory.
type MemoryStore struct {
	cache *ccache.Cache[[]byte]
}

// NewMemoryStore keeps at most maxEntries responses; non-positive means 1000.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	prune := max(uint32(maxEntries/10), 1)
	return &MemoryStore{
		cache: ccache.New(ccache.Configure[[]byte]().MaxSize(int64(maxEntries)).ItemsToPrune(prune)),
	}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	item := s.cache.Get(key)
	if item == nil || item.Expired() {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (s *MemoryStore) Put(key string, data []byte) error {
	s.cache.Set(key, data, memoryTTL)
	return nil
}

// Close stops the cache's background goroutine.
func (s *MemoryStore) Close() error {
	s.cache.Stop()
	return nil
}
