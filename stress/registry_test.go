package stress

import (
	"bytes"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	var r *Registry

	BeforeEach(func() {
		var err error
		r, err = NewRegistry(3, 100)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should start empty with table overhead", func() {
		Expect(r.Len()).To(Equal(3))
		Expect(r.Occupied()).To(Equal(0))
		Expect(r.BlockSize()).To(Equal(uint64(100)))
		Expect(r.Overhead()).To(Equal(3 * SlotSize))
		Expect(r.LiveBytes()).To(Equal(3 * SlotSize))
	})

	It("should count occupied blocks", func() {
		r.Occupy(0, &fakeBlock{buf: make([]byte, 100)})
		r.Occupy(1, &fakeBlock{buf: make([]byte, 100)})

		Expect(r.Occupied()).To(Equal(2))
		Expect(r.Block(1)).NotTo(BeNil())
		Expect(r.Block(2)).To(BeNil())
		Expect(r.LiveBytes()).To(Equal(200 + 3*SlotSize))
	})

	It("should panic when filled out of order", func() {
		Expect(func() { r.Occupy(1, &fakeBlock{}) }).To(Panic())
	})

	It("should only hand out the last occupied block", func() {
		b0 := &fakeBlock{}
		b1 := &fakeBlock{}
		r.Occupy(0, b0)
		r.Occupy(1, b1)

		Expect(func() { r.Take(0) }).To(Panic())
		Expect(r.Take(1)).To(BeIdenticalTo(b1))
		Expect(r.Take(0)).To(BeIdenticalTo(b0))
		Expect(r.Occupied()).To(Equal(0))
	})

	It("should refuse to release a table holding blocks", func() {
		r.Occupy(0, &fakeBlock{})

		Expect(func() { r.Release() }).To(Panic())
	})

	It("should release an empty table", func() {
		r.Release()

		Expect(r.Released()).To(BeTrue())
		Expect(r.LiveBytes()).To(BeZero())
		Expect(func() { r.Release() }).To(Panic())
	})

	It("should fail on tables that cannot be addressed", func() {
		_, err := NewRegistry(math.MaxUint64, 1)

		Expect(errors.Is(err, ErrTableTooLarge)).To(BeTrue())
	})

	It("should fail on tables larger than the machine memory", func() {
		_, err := NewRegistry(1<<44, 1)

		Expect(errors.Is(err, ErrTableTooLarge)).To(BeTrue())
	})

	Context("with a known memory limit", func() {
		var original func() (uint64, bool)

		BeforeEach(func() {
			original = memoryLimit
			memoryLimit = func() (uint64, bool) { return 1024, true }
		})

		AfterEach(func() {
			memoryLimit = original
		})

		It("should accept tables within the limit", func() {
			r, err := NewRegistry(8, 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(r.Len()).To(Equal(8))
		})

		It("should refuse tables above the limit", func() {
			_, err := NewRegistry(1024, 1)

			Expect(errors.Is(err, ErrTableTooLarge)).To(BeTrue())
		})

		It("should skip the check when the limit is unknown", func() {
			memoryLimit = func() (uint64, bool) { return 0, false }

			r, err := NewRegistry(1024, 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(r.Len()).To(Equal(1024))
		})
	})
})

var _ = Describe("Touch", func() {
	It("should write the value into every byte", func() {
		for _, n := range []int{1, 2, 3, 4095, 4096, 10000} {
			buf := make([]byte, n)
			Touch(buf, Sentinel)

			Expect(bytes.Count(buf, []byte{0xE9})).To(Equal(n))
		}
	})

	It("should accept empty buffers", func() {
		Expect(func() { Touch(nil, Sentinel) }).NotTo(Panic())
	})
})
