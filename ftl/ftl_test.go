package ftl

import (
	"errors"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/ftlsim/nand"
	"github.com/sarchlab/ftlsim/sim"
)

var _ = Describe("FTL", func() {
	var (
		mockCtrl *gomock.Controller
		device   *MockDevice
		f        *FTL
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		device = NewMockDevice(mockCtrl)
		f = MakeBuilder().
			WithGeometry(tinyGeometry()).
			WithDevice(device).
			WithLogger(testLogger()).
			Build("FTL")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should reject requests out of range", func() {
		_, err := f.Read(31, 2)
		Expect(err).To(MatchError(ErrOutOfRange))

		Expect(f.Write(-1, 1, nil)).To(MatchError(ErrOutOfRange))
		Expect(f.Discard(0, 0)).To(MatchError(ErrOutOfRange))
		Expect(f.Stats().Failures).To(Equal(uint64(3)))
	})

	It("should reject ranges that overflow the sector number", func() {
		_, err := f.Read(math.MaxInt64, 2)
		Expect(err).To(MatchError(ErrOutOfRange))

		Expect(f.Write(math.MaxInt64-1, 4, nil)).To(MatchError(ErrOutOfRange))
		Expect(f.Discard(math.MaxInt64, math.MaxInt32)).
			To(MatchError(ErrOutOfRange))
		Expect(f.Corrupted()).To(BeFalse())
	})

	It("should reject a payload of the wrong size", func() {
		Expect(f.Write(0, 2, make([]byte, 512))).To(MatchError(ErrOutOfRange))
	})

	It("should not touch the device for an unmapped read", func() {
		_, err := f.Read(0, 1)
		Expect(err).To(MatchError(ErrUnmapped))
	})

	It("should wrap a failed read", func() {
		device.EXPECT().WritePage(nand.PageAddr{Flash: 0, Block: 1, Page: 0}, gomock.Any())
		device.EXPECT().
			ReadPage(nand.PageAddr{Flash: 0, Block: 1, Page: 0}).
			Return(nil, nand.ErrAddress)

		Expect(f.Write(0, 1, nil)).To(Succeed())

		_, err := f.Read(0, 1)

		var nandErr *NandError
		Expect(errors.As(err, &nandErr)).To(BeTrue())
		Expect(nandErr.Op).To(Equal("read"))
		Expect(errors.Is(err, nand.ErrAddress)).To(BeTrue())
		Expect(f.Corrupted()).To(BeFalse())
	})

	It("should flag the state corrupted when a program fails", func() {
		device.EXPECT().
			WritePage(gomock.Any(), gomock.Any()).
			Return(nand.ErrProgramWithoutErase)

		err := f.Write(0, 1, nil)

		var nandErr *NandError
		Expect(errors.As(err, &nandErr)).To(BeTrue())
		Expect(nandErr.Op).To(Equal("program"))
		Expect(f.Corrupted()).To(BeTrue())

		_, err = f.Read(0, 1)
		Expect(err).To(MatchError(ErrCorruptState))
	})

	It("should report finished requests", func() {
		var done []*Request
		f.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == HookPosRequestDone {
				done = append(done, ctx.Item.(*Request))
			}
		}))

		device.EXPECT().WritePage(gomock.Any(), gomock.Any())

		Expect(f.Write(0, 1, nil)).To(Succeed())
		_, _ = f.Read(1, 1)

		Expect(done).To(HaveLen(2))
		Expect(done[0].Kind).To(Equal(RequestWrite))
		Expect(done[0].Err).To(BeNil())
		Expect(done[1].Kind).To(Equal(RequestRead))
		Expect(done[1].Err).To(MatchError(ErrUnmapped))
		Expect(done[0].ID).NotTo(Equal(done[1].ID))
	})

	It("should erase an empty block only once", func() {
		device.EXPECT().WritePage(gomock.Any(), gomock.Any())
		device.EXPECT().EraseBlock(nand.BlockAddr{Flash: 0, Block: 1})

		Expect(f.Write(0, 1, nil)).To(Succeed())
		Expect(f.Discard(0, 1)).To(Succeed())

		Expect(f.Collect(1)).To(Equal(4))
		Expect(f.eraseBlock(1)).To(Succeed())
		Expect(f.EmptyBlocks()).To(Equal(7))
	})
})

// shadow is the expected content of the logical pages.
type shadow struct {
	pageSize   int
	sectorSize int
	pages      map[LPN][]byte
}

func (s *shadow) write(sector int64, data []byte) {
	spp := int64(s.pageSize / s.sectorSize)

	for i := 0; i < len(data)/s.sectorSize; i++ {
		sec := sector + int64(i)
		lpn := LPN(sec / spp)

		page, ok := s.pages[lpn]
		if !ok {
			page = make([]byte, s.pageSize)
			s.pages[lpn] = page
		}

		at := int(sec%spp) * s.sectorSize
		copy(page[at:at+s.sectorSize], data[i*s.sectorSize:])
	}
}

func (s *shadow) read(sector int64, n int) ([]byte, bool) {
	spp := int64(s.pageSize / s.sectorSize)
	out := make([]byte, 0, n*s.sectorSize)

	for i := 0; i < n; i++ {
		sec := sector + int64(i)

		page, ok := s.pages[LPN(sec/spp)]
		if !ok {
			return nil, false
		}

		at := int(sec%spp) * s.sectorSize
		out = append(out, page[at:at+s.sectorSize]...)
	}

	return out, true
}

func (s *shadow) discard(sector int64, n int) {
	spp := int64(s.pageSize / s.sectorSize)

	for lpn := (sector + spp - 1) / spp; (lpn+1)*spp <= sector+int64(n); lpn++ {
		delete(s.pages, LPN(lpn))
	}
}

var _ = Describe("FTL under random requests", func() {
	const (
		footprint = 40
		requests  = 1500
	)

	g := nand.Geometry{
		PageSize:       1024,
		SectorSize:     512,
		PagesPerBlock:  4,
		BlocksPerFlash: 16,
		FlashCount:     2,
		PlanesPerFlash: 1,
		ChannelCount:   1,
	}

	DescribeTable("should match a model of the logical pages",
		func(b Builder) {
			f, _ := buildFTL(g, b)
			model := &shadow{
				pageSize:   g.PageSize,
				sectorSize: g.SectorSize,
				pages:      make(map[LPN][]byte),
			}
			rng := rand.New(rand.NewSource(7))

			for i := 0; i < requests; i++ {
				sector := rng.Int63n(footprint)
				n := 1 + rng.Intn(int(min(6, footprint-sector)))

				switch op := rng.Intn(10); {
				case op < 6:
					data := make([]byte, n*g.SectorSize)
					rng.Read(data)

					err := f.Write(sector, n, data)
					if errors.Is(err, ErrOutOfSpace) {
						break
					}

					Expect(err).NotTo(HaveOccurred())
					model.write(sector, data)
				case op < 9:
					expected, mapped := model.read(sector, n)
					data, err := f.Read(sector, n)

					if !mapped {
						Expect(err).To(MatchError(ErrUnmapped))
						break
					}

					Expect(err).NotTo(HaveOccurred())
					Expect(data).To(Equal(expected))
				default:
					Expect(f.Discard(sector, n)).To(Succeed())
					model.discard(sector, n)
				}

				Expect(f.CheckInvariants()).To(Succeed())
				Expect(f.Corrupted()).To(BeFalse())
			}
		},
		Entry("page map", MakeBuilder()),
		Entry("page map collecting in chip",
			MakeBuilder().WithGCPolicy(VictimInChip)),
		Entry("block map", MakeBuilder().WithScheme(SchemeBlockMap)),
		Entry("hybrid", MakeBuilder().
			WithScheme(SchemeHybrid).
			WithBMStartSector(8)),
	)
})
