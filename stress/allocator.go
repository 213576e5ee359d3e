package stress

import (
	"errors"
	"fmt"
	"math"
	"runtime/debug"
)

// Backend names accepted by NewAllocator.
const (
	BackendHeap = "heap"
	BackendMmap = "mmap"
)

// ErrBlockTooLarge is returned when a block size cannot be addressed.
var ErrBlockTooLarge = errors.New("block too large")

// A Block is one contiguous chunk of memory owned by a Registry.
type Block interface {
	// Bytes returns the memory of the block.
	Bytes() []byte

	// Release gives the memory back. The block must not be used afterwards.
	Release() error
}

// An Allocator acquires blocks of memory.
type Allocator interface {
	// Allocate returns a block of exactly size bytes, or an error if the
	// memory cannot be acquired.
	Allocate(size uint64) (Block, error)
}

// DefaultBackend returns the backend used when none is selected.
func DefaultBackend() string {
	if mmapSupported {
		return BackendMmap
	}

	return BackendHeap
}

// NewAllocator returns the allocator for the named backend.
func NewAllocator(backend string) (Allocator, error) {
	switch backend {
	case BackendHeap:
		return HeapAllocator{}, nil
	case BackendMmap:
		if !mmapSupported {
			return nil, fmt.Errorf("backend %q is not supported on this platform",
				backend)
		}

		return MmapAllocator{}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q, use %q or %q",
			backend, BackendHeap, BackendMmap)
	}
}

// HeapAllocator allocates blocks on the Go heap. Released blocks are handed
// back to the operating system by forcing a scavenge.
type HeapAllocator struct{}

// Allocate allocates size bytes on the heap. Sizes larger than the memory of
// the machine are refused up front; running out of heap below that limit
// still terminates the process.
func (HeapAllocator) Allocate(size uint64) (b Block, err error) {
	if size > math.MaxInt {
		return nil, fmt.Errorf("%w: %d bytes", ErrBlockTooLarge, size)
	}

	if exceedsMemory(size) {
		return nil, fmt.Errorf("%w: %d bytes exceed the machine memory",
			ErrBlockTooLarge, size)
	}

	defer func() {
		if p := recover(); p != nil {
			b = nil
			err = fmt.Errorf("%w: %v", ErrBlockTooLarge, p)
		}
	}()

	return &heapBlock{buf: make([]byte, size)}, nil
}

type heapBlock struct {
	buf []byte
}

func (b *heapBlock) Bytes() []byte {
	return b.buf
}

func (b *heapBlock) Release() error {
	b.buf = nil
	debug.FreeOSMemory()

	return nil
}
