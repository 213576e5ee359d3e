package stress

import (
	"errors"
	"fmt"
	"log"
	"math"
	"unsafe"
)

// SlotSize is the bookkeeping cost charged per registry slot.
const SlotSize = uint64(unsafe.Sizeof(uintptr(0)))

// ErrTableTooLarge is returned when the slot table cannot be addressed or
// does not fit into the memory of the machine.
var ErrTableTooLarge = errors.New("block table too large")

// A Registry is the fixed-length slot table that owns every live block.
//
// Blocks enter in index order and leave in reverse index order, so the
// occupied slots always form the prefix [0, Occupied()).
type Registry struct {
	slots     []Block
	blockSize uint64
	occupied  int
	released  bool
}

// NewRegistry creates a registry with count empty slots for blocks of
// blockSize bytes.
func NewRegistry(count, blockSize uint64) (r *Registry, err error) {
	maxSlots := uint64(math.MaxInt) / uint64(unsafe.Sizeof(Block(nil)))
	if count > maxSlots {
		return nil, fmt.Errorf("%w: %d slots", ErrTableTooLarge, count)
	}

	if exceedsMemory(count * uint64(unsafe.Sizeof(Block(nil)))) {
		return nil, fmt.Errorf("%w: %d slots exceed the machine memory",
			ErrTableTooLarge, count)
	}

	defer func() {
		if p := recover(); p != nil {
			r = nil
			err = fmt.Errorf("%w: %v", ErrTableTooLarge, p)
		}
	}()

	r = &Registry{
		slots:     make([]Block, count),
		blockSize: blockSize,
	}

	return r, nil
}

// Len returns the number of slots.
func (r *Registry) Len() int {
	return len(r.slots)
}

// Occupied returns the number of slots holding a block.
func (r *Registry) Occupied() int {
	return r.occupied
}

// BlockSize returns the size of every block in the registry.
func (r *Registry) BlockSize() uint64 {
	return r.blockSize
}

// Overhead returns the bookkeeping cost of the slot table.
func (r *Registry) Overhead() uint64 {
	return uint64(len(r.slots)) * SlotSize
}

// LiveBytes returns the bytes accounted to the registry: its occupied
// blocks plus the table overhead until the table is released.
func (r *Registry) LiveBytes() uint64 {
	if r.released {
		return 0
	}

	return uint64(r.occupied)*r.blockSize + r.Overhead()
}

// Occupy stores b in slot i. Slots must be filled in index order.
func (r *Registry) Occupy(i int, b Block) {
	r.mustNotBeReleased()

	if i != r.occupied {
		log.Panicf("slot %d filled out of order, next slot is %d",
			i, r.occupied)
	}

	if r.slots[i] != nil {
		log.Panicf("slot %d is already occupied", i)
	}

	r.slots[i] = b
	r.occupied++
}

// Block returns the block in slot i, or nil if the slot is empty.
func (r *Registry) Block(i int) Block {
	return r.slots[i]
}

// Take removes the block from slot i and hands ownership to the caller.
// Only the last occupied slot can be taken.
func (r *Registry) Take(i int) Block {
	r.mustNotBeReleased()

	if i != r.occupied-1 {
		log.Panicf("slot %d taken out of order, last occupied slot is %d",
			i, r.occupied-1)
	}

	b := r.slots[i]
	r.slots[i] = nil
	r.occupied--

	return b
}

// Release drops the slot table. All slots must be empty.
func (r *Registry) Release() {
	r.mustNotBeReleased()

	if r.occupied != 0 {
		log.Panicf("releasing block table with %d occupied slots",
			r.occupied)
	}

	r.slots = nil
	r.released = true
}

// Released reports whether the slot table has been released.
func (r *Registry) Released() bool {
	return r.released
}

func (r *Registry) mustNotBeReleased() {
	if r.released {
		panic("block table already released")
	}
}
