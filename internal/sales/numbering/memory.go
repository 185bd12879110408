package numbering

import (
	"context"
	"fmt"
	"sync"
)

// MemoryAllocator is a process local allocator for tests and single node tools.
type MemoryAllocator struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemoryAllocator constructs an empty allocator.
func NewMemoryAllocator() *MemoryAllocator {
	return &MemoryAllocator{counters: make(map[string]int64)}
}

// Seed sets the last issued value for a key.
func (a *MemoryAllocator) Seed(docType DocumentType, year int, last int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters[fmt.Sprintf("%s:%d", docType, year)] = last
}

// Allocate returns the next sequence for the key.
func (a *MemoryAllocator) Allocate(_ context.Context, docType DocumentType, year int) (int64, error) {
	if _, err := docType.Prefix(); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := fmt.Sprintf("%s:%d", docType, year)
	a.counters[key]++
	return a.counters[key], nil
}
