package ftl

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ftlsim/nand"
)

var _ = Describe("Allocator", func() {
	var (
		g nand.Geometry
		a *allocator
	)

	BeforeEach(func() {
		g = tinyGeometry()
		g.PlanesPerFlash = 2
		a = newAllocator(g)
	})

	It("should pool every block but the meta block", func() {
		Expect(a.Len()).To(Equal(7))
		Expect(a.contains(metaBlock)).To(BeFalse())
	})

	It("should keep one list per plane of each chip", func() {
		Expect(a.lists[0]).To(Equal([]nand.PBN{2}))
		Expect(a.lists[1]).To(Equal([]nand.PBN{4, 6}))
		Expect(a.lists[2]).To(Equal([]nand.PBN{1, 3}))
		Expect(a.lists[3]).To(Equal([]nand.PBN{5, 7}))
		Expect(a.listIndex(7)).To(Equal(3))
	})

	It("should rotate over the lists", func() {
		var got []nand.PBN
		for i := 0; i < 7; i++ {
			pbn, err := a.allocate(VictimOverall, 0)
			Expect(err).NotTo(HaveOccurred())
			got = append(got, pbn)
		}

		Expect(got).To(Equal([]nand.PBN{2, 4, 1, 5, 6, 3, 7}))
	})

	It("should allocate in chip, trying the sibling planes", func() {
		pbn, err := a.allocate(VictimInChip, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(pbn).To(Equal(nand.PBN(2)))

		pbn, err = a.allocate(VictimInChip, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(pbn).To(Equal(nand.PBN(1)))
	})

	It("should fail in chip when the chip is exhausted", func() {
		for i := 0; i < 3; i++ {
			_, err := a.allocate(VictimInChip, 0)
			Expect(err).NotTo(HaveOccurred())
		}

		_, err := a.allocate(VictimInChip, 2)
		Expect(errors.Is(err, ErrOutOfSpace)).To(BeTrue())

		pbn, err := a.allocateNear(VictimInChip, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(g.BlockAddrOf(pbn).Flash).To(Equal(1))
	})

	It("should report exhaustion", func() {
		for a.Len() > 0 {
			_, err := a.allocate(VictimOverall, 0)
			Expect(err).NotTo(HaveOccurred())
		}

		pbn, err := a.allocate(VictimOverall, 0)
		Expect(errors.Is(err, ErrOutOfSpace)).To(BeTrue())
		Expect(pbn).To(Equal(nand.NoBlock))
	})

	It("should ignore releasing a pooled block", func() {
		Expect(a.release(3)).To(BeFalse())
		Expect(a.Len()).To(Equal(7))

		pbn, _ := a.allocate(VictimOverall, 0)
		Expect(a.release(pbn)).To(BeTrue())
		Expect(a.release(pbn)).To(BeFalse())
		Expect(a.Len()).To(Equal(7))
	})
})
