package ftl

import (
	"log"

	"github.com/sarchlab/ftlsim/nand"
)

// ValidBitmap has one bit per physical page. A bit is set when the page holds
// the latest copy of its logical page.
type ValidBitmap struct {
	blocks        int
	pagesPerBlock int
	words         []uint64
}

// NewValidBitmap creates a cleared bitmap.
func NewValidBitmap(blocks, pagesPerBlock int) *ValidBitmap {
	bits := blocks * pagesPerBlock

	return &ValidBitmap{
		blocks:        blocks,
		pagesPerBlock: pagesPerBlock,
		words:         make([]uint64, (bits+63)/64),
	}
}

func (b *ValidBitmap) index(pbn nand.PBN, off PageOffset) int {
	if pbn < 0 || int(pbn) >= b.blocks {
		log.Panicf("pbn %d is out of range [0, %d)", pbn, b.blocks)
	}

	if off < 0 || int(off) >= b.pagesPerBlock {
		log.Panicf("page offset %d is out of range [0, %d)",
			off, b.pagesPerBlock)
	}

	return int(pbn)*b.pagesPerBlock + int(off)
}

// Set marks a page valid.
func (b *ValidBitmap) Set(pbn nand.PBN, off PageOffset) {
	i := b.index(pbn, off)
	b.words[i/64] |= 1 << (uint(i) % 64)
}

// Clear marks a page invalid.
func (b *ValidBitmap) Clear(pbn nand.PBN, off PageOffset) {
	i := b.index(pbn, off)
	b.words[i/64] &^= 1 << (uint(i) % 64)
}

// Test tells if a page is valid.
func (b *ValidBitmap) Test(pbn nand.PBN, off PageOffset) bool {
	i := b.index(pbn, off)
	return b.words[i/64]&(1<<(uint(i)%64)) != 0
}

// Count returns the number of valid pages in a block.
func (b *ValidBitmap) Count(pbn nand.PBN) int {
	n := 0

	for off := PageOffset(0); int(off) < b.pagesPerBlock; off++ {
		if b.Test(pbn, off) {
			n++
		}
	}

	return n
}

// Highest returns the highest valid offset of a block, or NoOffset.
func (b *ValidBitmap) Highest(pbn nand.PBN) PageOffset {
	for off := PageOffset(b.pagesPerBlock - 1); off >= 0; off-- {
		if b.Test(pbn, off) {
			return off
		}
	}

	return NoOffset
}

// ClearBlock marks all the pages of a block invalid.
func (b *ValidBitmap) ClearBlock(pbn nand.PBN) {
	for off := PageOffset(0); int(off) < b.pagesPerBlock; off++ {
		b.Clear(pbn, off)
	}
}
