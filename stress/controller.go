// Package stress drives the allocate, touch, report, free lifecycle that puts
// a machine's memory subsystem under controlled pressure.
package stress

import (
	"fmt"
	"log"

	"github.com/sarchlab/allocate/hooking"
)

// Phase is a state of the lifecycle.
type Phase int

// Phases, in the order a successful run visits them.
const (
	PhaseIdle Phase = iota
	PhaseInit
	PhaseAllocating
	PhaseDeallocating
	PhaseTeardown
	PhaseDone
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:         "idle",
	PhaseInit:         "init",
	PhaseAllocating:   "allocating",
	PhaseDeallocating: "deallocating",
	PhaseTeardown:     "teardown",
	PhaseDone:         "done",
	PhaseFailed:       "failed",
}

func (p Phase) String() string {
	name, ok := phaseNames[p]
	if !ok {
		return fmt.Sprintf("Phase(%d)", int(p))
	}

	return name
}

// Hook positions triggered by the Controller. The HookCtx Item is always a
// Snapshot.
var (
	// HookPosPhaseStart is triggered when the controller enters a phase.
	HookPosPhaseStart = &hooking.HookPos{Name: "PhaseStart"}

	// HookPosTableCreated is triggered once the slot table exists.
	HookPosTableCreated = &hooking.HookPos{Name: "TableCreated"}

	// HookPosBlockAllocated is triggered after a block is touched and
	// counted.
	HookPosBlockAllocated = &hooking.HookPos{Name: "BlockAllocated"}

	// HookPosBlockReleased is triggered after a block is released.
	HookPosBlockReleased = &hooking.HookPos{Name: "BlockReleased"}

	// HookPosTableReleased is triggered after the slot table is released.
	HookPosTableReleased = &hooking.HookPos{Name: "TableReleased"}

	// HookPosAllocationFailed is triggered when an allocation fails, before
	// unwinding starts.
	HookPosAllocationFailed = &hooking.HookPos{Name: "AllocationFailed"}
)

// A Snapshot is the observable state of the controller at a hook site.
type Snapshot struct {
	Phase      Phase
	Index      int
	Occupied   int
	BlockCount uint64
	BlockSize  uint64
	Overhead   uint64
	Total      uint64
}

// TotalChanged reports whether pos is a site at which the running total has
// just changed.
func TotalChanged(pos *hooking.HookPos) bool {
	switch pos {
	case HookPosTableCreated,
		HookPosBlockAllocated,
		HookPosBlockReleased,
		HookPosTableReleased:
		return true
	default:
		return false
	}
}

// A Controller runs one Request through the lifecycle.
type Controller struct {
	hooking.HookableBase

	req       Request
	allocator Allocator
	sleeper   Sleeper

	registry *Registry
	phase    Phase
	index    int
	total    uint64
	overhead uint64
}

// Request returns the request the controller runs.
func (c *Controller) Request() Request {
	return c.req
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Total returns the running total of live bytes.
func (c *Controller) Total() uint64 {
	return c.total
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Phase:      c.phase,
		Index:      c.index,
		BlockCount: c.req.BlockCount,
		BlockSize:  c.req.BlockSize,
		Overhead:   c.overhead,
		Total:      c.total,
	}

	if c.registry != nil {
		s.Occupied = c.registry.Occupied()
	}

	return s
}

// Run executes the whole lifecycle. It returns an *AllocationFailure if
// memory could not be acquired; all memory acquired so far is released
// before it returns.
func (c *Controller) Run() error {
	if c.phase != PhaseIdle {
		log.Panicf("controller already ran, phase %s", c.phase)
	}

	err := c.setUp()
	if err != nil {
		return err
	}

	err = c.allocateBlocks()
	if err != nil {
		return err
	}

	c.releaseBlocks(true)
	c.tearDown(true)
	c.phase = PhaseDone

	return nil
}

func (c *Controller) setUp() error {
	c.enterPhase(PhaseInit)

	registry, err := NewRegistry(c.req.BlockCount, c.req.BlockSize)
	if err != nil {
		c.phase = PhaseFailed
		failure := &AllocationFailure{
			Index: -1,
			Size:  c.req.BlockCount,
			Err:   err,
		}
		c.notify(HookPosAllocationFailed)

		return failure
	}

	c.registry = registry
	c.overhead = registry.Overhead()
	c.total = c.overhead
	c.notify(HookPosTableCreated)
	c.pause()

	return nil
}

func (c *Controller) allocateBlocks() error {
	c.enterPhase(PhaseAllocating)

	for i := 0; i < c.registry.Len(); i++ {
		c.index = i

		b, err := c.allocator.Allocate(c.req.BlockSize)
		if err != nil {
			return c.abort(i, err)
		}

		if n := uint64(len(b.Bytes())); n != c.req.BlockSize {
			c.mustRelease(i, b)
			return c.abort(i, fmt.Errorf("allocator returned %d bytes", n))
		}

		Touch(b.Bytes(), Sentinel)

		c.registry.Occupy(i, b)
		c.total += c.req.BlockSize
		c.notify(HookPosBlockAllocated)
		c.pause()
	}

	return nil
}

// abort unwinds a run after the allocation of block i failed. The blocks
// already acquired are released without pausing.
func (c *Controller) abort(i int, cause error) error {
	c.notify(HookPosAllocationFailed)

	released := c.releaseBlocks(false)
	c.tearDown(false)
	c.phase = PhaseFailed

	return &AllocationFailure{
		Index:    i,
		Size:     c.req.BlockSize,
		Released: released,
		Err:      cause,
	}
}

func (c *Controller) releaseBlocks(pause bool) int {
	c.enterPhase(PhaseDeallocating)

	released := 0
	for i := c.registry.Occupied() - 1; i >= 0; i-- {
		c.index = i

		b := c.registry.Take(i)
		c.total -= c.req.BlockSize
		c.mustRelease(i, b)
		released++

		c.notify(HookPosBlockReleased)
		if pause {
			c.pause()
		}
	}

	return released
}

func (c *Controller) tearDown(pause bool) {
	c.enterPhase(PhaseTeardown)

	c.registry.Release()
	c.total -= c.overhead
	c.notify(HookPosTableReleased)

	if pause {
		c.pause()
	}
}

func (c *Controller) mustRelease(i int, b Block) {
	err := b.Release()
	if err != nil {
		log.Panicf("cannot release block %d: %v", i, err)
	}
}

func (c *Controller) enterPhase(p Phase) {
	c.phase = p
	c.index = -1
	c.notify(HookPosPhaseStart)
}

func (c *Controller) notify(pos *hooking.HookPos) {
	c.mustBeBalanced()

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   c.Snapshot(),
	})
}

func (c *Controller) mustBeBalanced() {
	if c.registry == nil {
		return
	}

	if live := c.registry.LiveBytes(); live != c.total {
		log.Panicf("running total %d does not match %d live bytes",
			c.total, live)
	}
}

func (c *Controller) pause() {
	c.sleeper.Sleep(c.req.StepDelay)
}
