package stress

import "github.com/sarchlab/allocate/hooking"

// Builder can help building Controllers.
type Builder struct {
	allocator Allocator
	sleeper   Sleeper
	hooks     []hooking.Hook
}

// MakeBuilder creates a builder that allocates with the default backend and
// pauses on the wall clock.
func MakeBuilder() Builder {
	allocator, err := NewAllocator(DefaultBackend())
	if err != nil {
		panic(err)
	}

	return Builder{
		allocator: allocator,
		sleeper:   wallClockSleeper{},
	}
}

// WithAllocator sets the allocator that acquires blocks.
func (b Builder) WithAllocator(a Allocator) Builder {
	b.allocator = a
	return b
}

// WithSleeper sets how the controller pauses between steps.
func (b Builder) WithSleeper(s Sleeper) Builder {
	b.sleeper = s
	return b
}

// WithHook registers a hook on the controller to be built.
func (b Builder) WithHook(h hooking.Hook) Builder {
	hooks := make([]hooking.Hook, 0, len(b.hooks)+1)
	hooks = append(hooks, b.hooks...)
	b.hooks = append(hooks, h)

	return b
}

// Build creates a controller for the request.
func (b Builder) Build(req Request) *Controller {
	c := &Controller{
		req:       req,
		allocator: b.allocator,
		sleeper:   b.sleeper,
		index:     -1,
	}

	for _, h := range b.hooks {
		c.AcceptHook(h)
	}

	return c
}
