package yolostream

import (
	"fmt"
	"sync"
)

// BufferPool holds a set of named pools of reusable slices, used to avoid
// allocating fresh tensor and detection buffers for every frame
type BufferPool[T any] struct {
	mu    sync.Mutex
	pools map[string]*bufferEntry[T]
}

// bufferEntry defines a single buffer
type bufferEntry[T any] struct {
	pool    sync.Pool
	maxSize int
}

// NewBufferPool returns an empty BufferPool
func NewBufferPool[T any]() *BufferPool[T] {
	return &BufferPool[T]{
		pools: make(map[string]*bufferEntry[T]),
	}
}

// Create registers a new pool under 'name' that will produce buffers
// up to maxSize. Calling it twice with the same name returns an error.
func (b *BufferPool[T]) Create(name string, maxSize int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.pools[name]; exists {
		return fmt.Errorf("buffer pool %q already exists", name)
	}

	entry := &bufferEntry[T]{maxSize: maxSize}

	entry.pool.New = func() any {
		return make([]T, maxSize)
	}

	b.pools[name] = entry
	return nil
}

// Has reports if a pool has been registered under 'name'
func (b *BufferPool[T]) Has(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.pools[name]
	return ok
}

// Get returns a zeroed slice of length 'size' from the named pool.
// If size > maxSize, it allocates a new slice of exactly size.
// Panics if the pool name is unknown.
func (b *BufferPool[T]) Get(name string, size int) []T {
	b.mu.Lock()
	entry, ok := b.pools[name]
	b.mu.Unlock()

	if !ok {
		panic(fmt.Sprintf("buffer pool %q not registered", name))
	}

	buf := entry.pool.Get().([]T)

	if cap(buf) < size {
		return make([]T, size)
	}

	// get buffer of required size
	buf = buf[:size]

	// zero out the buffer
	clear(buf)

	return buf
}

// Put returns a buffer back into it's named pool.
// You must only call Put on a buffer you previously got via Get
// with the same name.  Buffers that were allocated beyond the pool's
// maxSize are left for the garbage collector.
func (b *BufferPool[T]) Put(name string, buf []T) {
	b.mu.Lock()
	entry, ok := b.pools[name]
	b.mu.Unlock()

	if !ok {
		panic(fmt.Sprintf("buffer pool %q not registered", name))
	}

	if cap(buf) < entry.maxSize {
		return
	}

	// restore to full capacity so it matches entry.New next time
	entry.pool.Put(buf[:entry.maxSize])
}
