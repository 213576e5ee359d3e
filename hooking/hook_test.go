package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingHook struct {
	seqs []uint64
	pos  []*HookPos
}

func (h *countingHook) Func(ctx HookCtx) {
	h.seqs = append(h.seqs, ctx.Seq)
	h.pos = append(h.pos, ctx.Pos)
}

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  *HookPos
	)

	BeforeEach(func() {
		base = &HookableBase{}
		pos = &HookPos{Name: "Test"}
	})

	It("should register hooks", func() {
		h := &countingHook{}
		base.AcceptHook(h)

		Expect(base.NumHooks()).To(Equal(1))
		Expect(base.Hooks()).To(ConsistOf(h))
	})

	It("should panic on duplicated hooks", func() {
		h := &countingHook{}
		base.AcceptHook(h)

		Expect(func() { base.AcceptHook(h) }).To(Panic())
	})

	It("should accept several hook funcs", func() {
		calls := 0
		f := HookFunc(func(HookCtx) { calls++ })

		base.AcceptHook(f)
		base.AcceptHook(f)
		base.InvokeHook(HookCtx{Pos: pos})

		Expect(calls).To(Equal(2))
	})

	It("should stamp increasing sequence numbers", func() {
		h1 := &countingHook{}
		h2 := &countingHook{}
		base.AcceptHook(h1)
		base.AcceptHook(h2)

		base.InvokeHook(HookCtx{Pos: pos})
		base.InvokeHook(HookCtx{Pos: pos, Seq: 100})

		Expect(h1.seqs).To(Equal([]uint64{1, 2}))
		Expect(h2.seqs).To(Equal([]uint64{1, 2}))
		Expect(h1.pos[0]).To(BeIdenticalTo(pos))
	})
})
