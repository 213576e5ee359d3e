//go:build !unix

package stress

import "errors"

const mmapSupported = false

// MmapAllocator is unavailable on this platform.
type MmapAllocator struct{}

// Allocate always fails.
func (MmapAllocator) Allocate(uint64) (Block, error) {
	return nil, errors.New("mmap backend is not supported on this platform")
}
