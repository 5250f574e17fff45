package backend

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// bufferPool hands out fixed-size scratch buffers for marshalling
// request bodies. Under sustained high-RPM load the HTTP backend
// marshals one JSON body per issued request; the scratch space lives in
// anonymous mmap regions rather than ordinary heap allocations, keeping
// it off the GC-scanned heap.
type bufferPool struct {
	size int

	mu    sync.Mutex
	slabs [][]byte // every mmap region ever allocated, for Close
	free  [][]byte
}

func newBufferPool(bufSize int) *bufferPool {
	return &bufferPool{size: bufSize}
}

// Get returns a buffer of at least p.size bytes, truncated to length 0.
func (p *bufferPool) Get() ([]byte, error) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		buf := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return buf[:0], nil
	}
	p.mu.Unlock()

	buf, err := unix.Mmap(-1, 0, p.size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("backend: mmap scratch buffer: %w", err)
	}

	p.mu.Lock()
	p.slabs = append(p.slabs, buf)
	p.mu.Unlock()
	return buf[:0], nil
}

// Put returns buf to the pool for reuse. buf must have been obtained
// from Get on this pool.
func (p *bufferPool) Put(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, buf[:cap(buf)])
}

// Close unmaps every slab this pool ever allocated.
func (p *bufferPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, slab := range p.slabs {
		if err := unix.Munmap(slab); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("backend: munmap scratch buffer: %w", err)
		}
	}
	p.slabs = nil
	p.free = nil
	return firstErr
}
