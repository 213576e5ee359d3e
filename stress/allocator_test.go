package stress

import (
	"errors"
	"math"
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Allocators", func() {
	It("should build the default backend", func() {
		a, err := NewAllocator(DefaultBackend())

		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(BeNil())
	})

	It("should reject unknown backends", func() {
		_, err := NewAllocator("tcmalloc")

		Expect(err).To(MatchError(ContainSubstring("unknown backend")))
	})

	DescribeTable("should hand out writable blocks of the requested size",
		func(backend string) {
			if backend == BackendMmap && runtime.GOOS == "windows" {
				Skip("mmap is not available")
			}

			a, err := NewAllocator(backend)
			Expect(err).NotTo(HaveOccurred())

			b, err := a.Allocate(3 * 4096)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Bytes()).To(HaveLen(3 * 4096))

			Touch(b.Bytes(), Sentinel)
			Expect(b.Bytes()[3*4096-1]).To(Equal(Sentinel))

			Expect(b.Release()).To(Succeed())
			Expect(b.Bytes()).To(BeNil())
		},
		Entry("heap", BackendHeap),
		Entry("mmap", BackendMmap),
	)

	It("should refuse heap blocks that cannot be addressed", func() {
		_, err := HeapAllocator{}.Allocate(math.MaxUint64)

		Expect(errors.Is(err, ErrBlockTooLarge)).To(BeTrue())
	})

	It("should refuse heap blocks larger than the machine memory", func() {
		b, err := HeapAllocator{}.Allocate(1 << 50)

		Expect(b).To(BeNil())
		Expect(errors.Is(err, ErrBlockTooLarge)).To(BeTrue())
	})
})
