package ftl

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ValidBitmap", func() {
	var b *ValidBitmap

	BeforeEach(func() {
		b = NewValidBitmap(3, 40)
	})

	It("should address bits by block and offset", func() {
		b.Set(1, 39)
		b.Set(2, 0)

		Expect(b.Test(1, 39)).To(BeTrue())
		Expect(b.Test(2, 0)).To(BeTrue())
		Expect(b.Test(1, 38)).To(BeFalse())
		Expect(b.Count(1)).To(Equal(1))
		Expect(b.Highest(1)).To(Equal(PageOffset(39)))
		Expect(b.Highest(0)).To(Equal(NoOffset))
	})

	It("should clear bits", func() {
		b.Set(0, 3)
		b.Set(0, 5)
		b.Clear(0, 3)

		Expect(b.Count(0)).To(Equal(1))

		b.ClearBlock(0)
		Expect(b.Count(0)).To(Equal(0))
	})

	It("should panic outside of its bounds", func() {
		Expect(func() { b.Set(3, 0) }).To(Panic())
		Expect(func() { b.Test(0, 40) }).To(Panic())
		Expect(func() { b.Clear(-1, 0) }).To(Panic())
	})
})
