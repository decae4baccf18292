package ftl

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/ftlsim/nand"
)

// spaceShortTranslator fails every collection for lack of space, optionally
// after erasing the victim.
type spaceShortTranslator struct {
	translator
	blocks *blockTable
	erase  bool
	calls  int
}

func (t *spaceShortTranslator) isCandidate(nand.PBN, *BlockState) bool {
	return true
}

func (t *spaceShortTranslator) collect(pbn nand.PBN) (int, error) {
	t.calls++

	if t.erase {
		t.blocks.reset(pbn)
	}

	return 0, ErrOutOfSpace
}

var _ = Describe("Garbage collection", func() {
	var (
		mockCtrl *gomock.Controller
		f        *FTL
		trans    *spaceShortTranslator
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		f = MakeBuilder().
			WithGeometry(tinyGeometry()).
			WithDevice(NewMockDevice(mockCtrl)).
			WithLogger(testLogger()).
			WithGCTrigger(tinyGeometry().TotalBlocks()).
			Build("FTL")

		trans = &spaceShortTranslator{translator: f.trans, blocks: f.blocks}
		f.trans = trans
		f.blocks.claim(3, 0, 0, true)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should stop quietly when a round finds no space", func() {
		Expect(f.CheckAndCollect()).To(Succeed())
		Expect(trans.calls).To(Equal(1))
		Expect(f.Corrupted()).To(BeFalse())
	})

	It("should fail when a round runs out of space after a change", func() {
		trans.erase = true

		Expect(f.CheckAndCollect()).To(MatchError(ErrOutOfSpace))
		Expect(trans.calls).To(Equal(1))
		Expect(f.Corrupted()).To(BeTrue())
	})
})
