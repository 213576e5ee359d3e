package report

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/allocate/hooking"
	"github.com/sarchlab/allocate/stress"
)

type noSleep struct{}

func (noSleep) Sleep(time.Duration) {}

type fixedMemoryTeller struct {
	rss uint64
	err error
}

func (t fixedMemoryTeller) ResidentBytes() (uint64, error) {
	return t.rss, t.err
}

var _ = Describe("StatusReporter", func() {
	var (
		out *bytes.Buffer
		req stress.Request
	)

	run := func(r *StatusReporter) {
		c := stress.MakeBuilder().
			WithAllocator(stress.HeapAllocator{}).
			WithSleeper(noSleep{}).
			WithHook(r).
			Build(req)

		Expect(c.Run()).To(Succeed())
	}

	BeforeEach(func() {
		out = new(bytes.Buffer)

		var err error
		req, err = stress.Validate(5, 2, 1, true)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should narrate a verbose run", func() {
		run(NewStatusReporter(out, req))

		Expect(out.String()).To(Equal(
			"Making 2 allocations, each with size 5M, with 1 secs delay in between\n" +
				"\n" +
				"Creating array of memory block pointers\n" +
				"Total allocated size: 0.00 M\n" +
				"Allocation starts:\n" +
				"----------\n" +
				"Total allocated size: 5.00 M\n" +
				"Total allocated size: 10.00 M\n" +
				"\n" +
				"Deallocation starts:\n" +
				"----------\n" +
				"Total allocated size: 5.00 M\n" +
				"Total allocated size: 0.00 M\n" +
				"Freeing array of memory block pointers\n" +
				"Total allocated size: 0.00 M\n"))
	})

	It("should stay silent when not verbose", func() {
		req.Verbose = false

		run(NewStatusReporter(out, req))

		Expect(out.Len()).To(BeZero())
	})

	It("should render two decimals", func() {
		r := NewStatusReporter(out, req)

		r.PrintTotal(3*stress.MB + stress.MB/4)

		Expect(out.String()).To(Equal("Total allocated size: 3.25 M\n"))
	})

	It("should add the resident set size", func() {
		r := NewStatusReporter(out, req).
			WithMemoryTeller(fixedMemoryTeller{rss: 12 * stress.MB})

		r.PrintTotal(stress.MB)

		Expect(out.String()).To(Equal(
			"Total allocated size: 1.00 M\nResident set size: 12.00 M\n"))
	})

	It("should keep going when the resident set size is unavailable", func() {
		r := NewStatusReporter(out, req).
			WithMemoryTeller(fixedMemoryTeller{err: errors.New("no procfs")})

		r.PrintTotal(0)

		Expect(out.String()).To(ContainSubstring("unavailable (no procfs)"))
	})

	It("should ignore foreign hook items", func() {
		r := NewStatusReporter(out, req)

		r.Func(hooking.HookCtx{Pos: stress.HookPosBlockAllocated, Item: 42})

		Expect(out.Len()).To(BeZero())
	})
})
