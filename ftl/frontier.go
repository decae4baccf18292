package ftl

import "github.com/sarchlab/ftlsim/nand"

// frontier holds the blocks the page-mapped region currently appends to, one
// per empty-block list.
type frontier struct {
	pagesPerBlock int
	blocks        []nand.PBN
	next          []PageOffset
	cursor        int
}

func newFrontier(slots, pagesPerBlock int) *frontier {
	f := &frontier{
		pagesPerBlock: pagesPerBlock,
		blocks:        make([]nand.PBN, slots),
		next:          make([]PageOffset, slots),
	}

	for i := range f.blocks {
		f.blocks[i] = nand.NoBlock
		f.next[i] = PageOffset(pagesPerBlock)
	}

	return f
}

// pick returns the slot the next page comes from. VictimOverall rotates over
// the slots.
func (f *frontier) pick(policy VictimPolicy, index int) int {
	if policy == VictimInChip {
		return index
	}

	slot := f.cursor
	f.cursor = (f.cursor + 1) % len(f.blocks)

	return slot
}

func (f *frontier) exhausted(slot int) bool {
	return int(f.next[slot]) >= f.pagesPerBlock
}

func (f *frontier) install(slot int, pbn nand.PBN) {
	f.blocks[slot] = pbn
	f.next[slot] = 0
}

func (f *frontier) take(slot int) (nand.PBN, PageOffset) {
	page := f.next[slot]
	f.next[slot]++

	return f.blocks[slot], page
}

func (f *frontier) isActive(pbn nand.PBN) bool {
	for i, b := range f.blocks {
		if b == pbn && !f.exhausted(i) {
			return true
		}
	}

	return false
}

// retire stops appending to pbn.
func (f *frontier) retire(pbn nand.PBN) {
	for i, b := range f.blocks {
		if b == pbn {
			f.next[i] = PageOffset(f.pagesPerBlock)
		}
	}
}

// blocksFor returns how many new blocks taking pages pages would need,
// without changing the frontier.
func (f *frontier) blocksFor(pages int, policy VictimPolicy, index int) int {
	next := append([]PageOffset(nil), f.next...)
	cursor := f.cursor
	needed := 0

	for i := 0; i < pages; i++ {
		slot := index
		if policy == VictimOverall {
			slot = cursor
			cursor = (cursor + 1) % len(next)
		}

		if int(next[slot]) >= f.pagesPerBlock {
			needed++
			next[slot] = 0
		}

		next[slot]++
	}

	return needed
}
