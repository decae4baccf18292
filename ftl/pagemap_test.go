package ftl

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ftlsim/nand"
)

func buildFTL(g nand.Geometry, b Builder) (*FTL, *nand.Flash) {
	flash := nand.MakeBuilder().WithGeometry(g).Build("Flash")
	f := b.WithGeometry(g).
		WithDevice(flash).
		WithLogger(testLogger()).
		Build("FTL")

	return f, flash
}

var _ = Describe("Page Map", func() {
	var (
		f     *FTL
		flash *nand.Flash
	)

	BeforeEach(func() {
		f, flash = buildFTL(tinyGeometry(), MakeBuilder())
	})

	AfterEach(func() {
		Expect(f.CheckInvariants()).To(Succeed())
	})

	It("should spread writes over the chips", func() {
		Expect(f.Write(0, 1, sectorData(1, 1))).To(Succeed())
		Expect(f.Write(1, 1, sectorData(1, 2))).To(Succeed())

		Expect(f.Resolve(0)).To(Equal(nand.PPN(4)))
		Expect(f.Resolve(1)).To(Equal(nand.PPN(16)))
		Expect(f.EmptyBlocks()).To(Equal(5))

		data, err := f.Read(0, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(data[:512]).To(Equal(sectorData(1, 1)))
		Expect(data[512:]).To(Equal(sectorData(1, 2)))
	})

	It("should invalidate the old copy on overwrite", func() {
		Expect(f.Write(0, 1, sectorData(1, 1))).To(Succeed())
		Expect(f.Write(0, 1, sectorData(1, 2))).To(Succeed())

		Expect(f.Resolve(0)).To(Equal(nand.PPN(16)))

		old, _ := f.BlockState(1)
		Expect(old.ValidPages).To(Equal(0))
		Expect(old.WriteLimit).To(Equal(PageOffset(0)))

		data, err := f.Read(0, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal(sectorData(1, 2)))
	})

	It("should not read unwritten pages", func() {
		Expect(f.Write(0, 1, sectorData(1, 1))).To(Succeed())

		_, err := f.Read(0, 2)
		Expect(errors.Is(err, ErrUnmapped)).To(BeTrue())
		Expect(flash.Stats().PageReads).To(Equal(uint64(0)))
	})

	It("should drop discarded pages", func() {
		Expect(f.Write(0, 2, sectorData(2, 1))).To(Succeed())
		Expect(f.Discard(0, 1)).To(Succeed())

		_, err := f.Resolve(0)
		Expect(errors.Is(err, ErrUnmapped)).To(BeTrue())
		Expect(f.Resolve(1)).To(Equal(nand.PPN(16)))
		Expect(f.Stats().DiscardedPages).To(Equal(uint64(1)))

		s, _ := f.BlockState(1)
		Expect(s.ValidPages).To(Equal(0))
	})

	Context("when blocks fill up", func() {
		BeforeEach(func() {
			for lpn := int64(0); lpn < 8; lpn++ {
				Expect(f.Write(lpn, 1, sectorData(1, byte(lpn+1)))).To(Succeed())
			}

			for _, lpn := range []int64{0, 2, 4} {
				Expect(f.Write(lpn, 1, sectorData(1, byte(lpn+11)))).To(Succeed())
			}
		})

		It("should pick the inactive block with the fewest valid pages", func() {
			victim, ok := f.SelectVictim()
			Expect(ok).To(BeTrue())
			Expect(victim).To(Equal(nand.PBN(1)))
		})

		It("should move the valid pages of the victim", func() {
			reclaimed, err := f.Collect(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(reclaimed).To(Equal(3))

			Expect(f.Resolve(6)).To(Equal(nand.PPN(21)))
			s, _ := f.BlockState(1)
			Expect(s.Type).To(Equal(BlockEmpty))
			Expect(f.EmptyBlocks()).To(Equal(4))

			stats := f.Stats()
			Expect(stats.CopiedPages).To(Equal(uint64(1)))
			Expect(stats.BlockErases).To(Equal(uint64(1)))
			Expect(stats.GCRounds).To(Equal(uint64(1)))

			data, err := f.Read(6, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(sectorData(1, 7)))
		})

		It("should not collect empty blocks", func() {
			reclaimed, err := f.Collect(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(reclaimed).To(Equal(0))
			Expect(f.Stats().GCRounds).To(Equal(uint64(0)))
		})
	})
})

var _ = Describe("Page Map with multi-sector pages", func() {
	var f *FTL

	BeforeEach(func() {
		g := tinyGeometry()
		g.PageSize = 1024
		f, _ = buildFTL(g, MakeBuilder())
	})

	AfterEach(func() {
		Expect(f.CheckInvariants()).To(Succeed())
	})

	It("should merge a partial write with the old copy", func() {
		Expect(f.Write(0, 2, sectorData(2, 0xaa))).To(Succeed())
		Expect(f.Write(1, 1, sectorData(1, 0xbb))).To(Succeed())

		data, err := f.Read(0, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(data[:512]).To(Equal(sectorData(1, 0xaa)))
		Expect(data[512:]).To(Equal(sectorData(1, 0xbb)))
		Expect(f.Stats().PartialWrites).To(Equal(uint64(1)))
	})

	It("should fill a fresh partial page with zeros", func() {
		Expect(f.Write(3, 1, sectorData(1, 0xcc))).To(Succeed())

		data, err := f.Read(2, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(data[:512]).To(Equal(make([]byte, 512)))
		Expect(data[512:]).To(Equal(sectorData(1, 0xcc)))
		Expect(f.Stats().PartialWrites).To(Equal(uint64(0)))
	})

	It("should keep partly discarded pages", func() {
		Expect(f.Write(0, 4, sectorData(4, 1))).To(Succeed())
		Expect(f.Discard(1, 2)).To(Succeed())

		Expect(f.Resolve(0)).NotTo(Equal(nand.NoPage))
		Expect(f.Resolve(1)).NotTo(Equal(nand.NoPage))
		Expect(f.Stats().DiscardedPages).To(Equal(uint64(0)))

		Expect(f.Discard(2, 2)).To(Succeed())
		_, err := f.Resolve(1)
		Expect(errors.Is(err, ErrUnmapped)).To(BeTrue())
	})
})
