// Package hooking lets observers attach to the allocation lifecycle without
// the lifecycle knowing who is watching.
package hooking

// HookPos names a site in the lifecycle where hooks are invoked.
type HookPos struct {
	Name string
}

// HookCtx is passed to every hook when it is triggered.
type HookCtx struct {
	// Domain is the object that invoked the hook.
	Domain Hookable

	// Pos is the site that triggered the hook.
	Pos *HookPos

	// Seq counts hook sites since the domain started, starting at 1.
	Seq uint64

	// Item carries the state observed at the site. Its type depends on the
	// domain.
	Item any
}

// Hookable is implemented by anything that accepts hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// Hook is a short piece of program that is invoked by a Hookable.
type Hook interface {
	// Func determines what to do when the hook is invoked.
	Func(ctx HookCtx)
}

// HookFunc adapts an ordinary function into a Hook. Functions cannot be
// compared, so HookFunc values skip the duplicate check.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase implements Hookable. Embed it and call InvokeHook.
type HookableBase struct {
	hookList []Hook
	seq      uint64
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook registers a hook. Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); isFunc {
		return
	}

	for _, existing := range h.hookList {
		if existing == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook stamps ctx with the next sequence number and triggers the
// registered hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.seq++
	ctx.Seq = h.seq

	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}
