//go:build unix

package stress

import (
	"fmt"
	"math"

	"golang.org/x/sys/unix"
)

const mmapSupported = true

// MmapAllocator maps every block as private anonymous memory, so releasing a
// block unmaps it immediately.
type MmapAllocator struct{}

// Allocate maps size bytes of anonymous memory. The kernel may refuse the
// mapping with ENOMEM, which is returned as is.
func (MmapAllocator) Allocate(size uint64) (Block, error) {
	if size > math.MaxInt {
		return nil, fmt.Errorf("%w: %d bytes", ErrBlockTooLarge, size)
	}

	var (
		prot = unix.PROT_READ | unix.PROT_WRITE
		flag = unix.MAP_PRIVATE | unix.MAP_ANON
	)

	buf, err := unix.Mmap(-1, 0, int(size), prot, flag)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}

	return &mmapBlock{buf: buf}, nil
}

type mmapBlock struct {
	buf []byte
}

func (b *mmapBlock) Bytes() []byte {
	return b.buf
}

func (b *mmapBlock) Release() error {
	if b.buf == nil {
		return nil
	}

	err := unix.Munmap(b.buf)
	if err != nil {
		return fmt.Errorf("munmap %d bytes: %w", len(b.buf), err)
	}

	b.buf = nil

	return nil
}
