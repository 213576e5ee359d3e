package monitoring

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

// A ProgressBar tracks how many blocks of a run are in memory and how many
// have already been given back.
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Allocated uint64    `json:"allocated"`
	Released  uint64    `json:"released"`
}

// NewProgressBar creates a progress bar for total blocks.
func NewProgressBar(name string, total uint64) *ProgressBar {
	return &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}
}

// IncrementAllocated counts newly allocated blocks.
func (b *ProgressBar) IncrementAllocated(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Allocated += amount
}

// MoveAllocatedToReleased moves blocks from allocated to released.
func (b *ProgressBar) MoveAllocatedToReleased(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Allocated -= amount
	b.Released += amount
}

// Live returns the number of blocks currently allocated.
func (b *ProgressBar) Live() uint64 {
	b.Lock()
	defer b.Unlock()

	return b.Allocated
}
