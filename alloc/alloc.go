// Package alloc provides the allocator every esch component routes its
// storage through.
//
// Go owns the actual memory; an Allocator is the accounting authority.
// Each piece of storage an object or collector holds is paired with a
// Block, and the Counted allocator tracks every Block it hands out so that
// teardown can detect leaks and a byte limit can simulate memory pressure.
package alloc

import (
	"fmt"
	"sync"

	"github.com/chazu/esch/errcode"
)

// Block is an accounted span handed out by an Allocator.
type Block struct {
	id   uint64
	size int
}

// Size returns the size of the block in bytes.
func (b *Block) Size() int {
	if b == nil {
		return 0
	}
	return b.size
}

// Allocator is the pluggable realloc/free pair.
type Allocator interface {
	// Realloc resizes b to size bytes, or allocates a new block when b is
	// nil. On failure b is left untouched and remains valid.
	Realloc(b *Block, size int) (*Block, error)

	// Free releases b. Freeing nil is a no-op.
	Free(b *Block) error
}

// Stats is a point-in-time view of allocator accounting.
type Stats struct {
	Allocs uint64 // successful fresh allocations
	Frees  uint64 // successful deallocations
	Live   int    // blocks currently outstanding
	InUse  int64  // bytes currently outstanding
	Peak   int64  // high-water mark of InUse
}

// Counted is the default Allocator. It is safe for concurrent use.
type Counted struct {
	mu     sync.Mutex
	limit  int64
	nextID uint64
	live   map[uint64]int
	stats  Stats
}

// Option configures a Counted allocator.
type Option func(*Counted)

// WithLimit caps the number of bytes that may be outstanding at once.
// Requests beyond the cap fail with errcode.OutOfMemory. Zero means no cap.
func WithLimit(bytes int64) Option {
	return func(a *Counted) {
		a.limit = bytes
	}
}

// New creates a Counted allocator.
func New(opts ...Option) *Counted {
	a := &Counted{
		live: make(map[uint64]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Realloc implements Allocator.
func (a *Counted) Realloc(b *Block, size int) (*Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("alloc: realloc: size %d: %w", size, errcode.InvalidParameter)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	old := 0
	if b != nil {
		cur, ok := a.live[b.id]
		if !ok {
			return nil, fmt.Errorf("alloc: realloc: block %d not owned by this allocator: %w",
				b.id, errcode.InvalidParameter)
		}
		old = cur
	}

	delta := int64(size - old)
	if a.limit > 0 && a.stats.InUse+delta > a.limit {
		return nil, fmt.Errorf("alloc: realloc: %d bytes requested, %d of %d in use: %w",
			size, a.stats.InUse, a.limit, errcode.OutOfMemory)
	}

	if b == nil {
		a.nextID++
		b = &Block{id: a.nextID}
		a.stats.Allocs++
		a.stats.Live++
	}
	b.size = size
	a.live[b.id] = size
	a.stats.InUse += delta
	if a.stats.InUse > a.stats.Peak {
		a.stats.Peak = a.stats.InUse
	}
	return b, nil
}

// Free implements Allocator. Freeing a block twice fails with
// errcode.InvalidState.
func (a *Counted) Free(b *Block) error {
	if b == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	size, ok := a.live[b.id]
	if !ok {
		return fmt.Errorf("alloc: free: block %d is not live: %w", b.id, errcode.InvalidState)
	}
	delete(a.live, b.id)
	a.stats.Frees++
	a.stats.Live--
	a.stats.InUse -= int64(size)
	return nil
}

// Stats returns the current accounting counters.
func (a *Counted) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Close tears the allocator down. It fails with errcode.InvalidState when
// allocations and deallocations do not balance.
func (a *Counted) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stats.Allocs != a.stats.Frees {
		return fmt.Errorf("alloc: close: leak detected: %d blocks, %d bytes outstanding: %w",
			a.stats.Live, a.stats.InUse, errcode.InvalidState)
	}
	return nil
}
