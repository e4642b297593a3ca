package capture

import (
	"sync"

	"golang.org/x/sys/unix"
)

// mappedBuffer is one dmabuf mapped into process memory, kept alive as
// long as its pool slot is still in use by the compositor.
type mappedBuffer struct {
	fd   int
	data []byte
}

// bufferCache maps each pool SlotID to its current mmap, so a given
// buffer is mapped at most once across its lifetime in the pool rather
// than once per frame. The compositor reuses a small fixed pool of
// dmabufs round-robin; without this cache every captured frame would pay
// an mmap/munmap syscall pair even though most frames reuse an
// already-mapped allocation.
type bufferCache struct {
	mu      sync.Mutex
	entries map[uint32]*mappedBuffer
}

func newBufferCache() *bufferCache {
	return &bufferCache{entries: make(map[uint32]*mappedBuffer)}
}

// mmapFunc abstracts unix.Mmap so tests can substitute a fake without
// touching real file descriptors.
type mmapFunc func(fd int, length int) ([]byte, error)

func realMmap(fd int, length int) ([]byte, error) {
	return unix.Mmap(fd, 0, length, unix.PROT_READ, unix.MAP_SHARED)
}

// get returns the mapping for slot, creating it via mmap on first sight of
// that slot. The compositor sends a fresh fd referring to the same
// underlying allocation on every frame that reuses slot; once a slot has a
// mapping, get closes the incoming fd unused and returns the cached
// mapping instead of mapping again. length, when it differs
// from a cached mapping's length, forces a remap (a resize reuses slot
// numbers with larger allocations).
func (c *bufferCache) get(slot uint32, fd int, length int, mmap mmapFunc) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[slot]; ok && len(existing.data) == length {
		unix.Close(fd)
		return existing.data, nil
	}
	c.evictLocked(slot)

	data, err := mmap(fd, length)
	unix.Close(fd)
	if err != nil {
		return nil, err
	}
	c.entries[slot] = &mappedBuffer{fd: fd, data: data}
	return data, nil
}

func (c *bufferCache) evictLocked(slot uint32) {
	if m, ok := c.entries[slot]; ok {
		unix.Munmap(m.data)
		delete(c.entries, slot)
	}
}

// clear unmaps every cached buffer. Called on Stop.
func (c *bufferCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for slot := range c.entries {
		c.evictLocked(slot)
	}
}
