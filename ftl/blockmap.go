package ftl

import (
	"fmt"

	"github.com/sarchlab/ftlsim/nand"
)

// blockMap maps each logical block onto one physical block, with every page
// at its logical offset. Writes may only append.
type blockMap struct {
	f     *FTL
	table []nand.PBN
}

func newBlockMap(f *FTL) *blockMap {
	m := &blockMap{
		f:     f,
		table: make([]nand.PBN, f.geometry.TotalBlocks()),
	}

	for i := range m.table {
		m.table[i] = nand.NoBlock
	}

	return m
}

func (m *blockMap) split(lpn LPN) (LBN, PageOffset) {
	ppb := LPN(m.f.geometry.PagesPerBlock)
	return LBN(lpn / ppb), PageOffset(lpn % ppb)
}

func (m *blockMap) locate(lpn LPN) (location, bool) {
	lbn, off := m.split(lpn)

	pbn := m.table[lbn]
	if pbn == nand.NoBlock || !m.f.blocks.isValid(pbn, off) {
		return nowhere, false
	}

	return location{pbn: pbn, page: off}, true
}

func (m *blockMap) runKey(lpn LPN) int64 {
	lbn, _ := m.split(lpn)
	return int64(lbn)
}

func (m *blockMap) writeRun(run *pageRun) error {
	lbn, off := m.split(run.first())

	pbn := m.table[lbn]
	if pbn == nand.NoBlock {
		var err error
		pbn, err = m.f.allocateBlock(lbn, 0)
		if err != nil {
			return err
		}

		m.table[lbn] = pbn

		return m.writeUnits(pbn, run, nand.NoBlock)
	}

	if !m.f.blocks.get(pbn).canAppend(off) {
		return errNotAppendable
	}

	return m.writeUnits(pbn, run, nand.NoBlock)
}

// writeUnits programs the units at their logical offsets of dst. An old copy
// may sit at the same offset of from.
func (m *blockMap) writeUnits(dst nand.PBN, run *pageRun, from nand.PBN) error {
	for _, u := range run.units {
		_, off := m.split(u.lpn)

		old := nowhere
		if from != nand.NoBlock && m.f.blocks.isValid(from, off) {
			old = location{pbn: from, page: off}
		}

		err := m.f.program(location{pbn: dst, page: off}, u, old)
		if err != nil {
			return err
		}

		if old.exists() {
			m.f.blocks.invalidate(old.pbn, old.page)
		}

		m.f.blocks.validate(dst, off)
	}

	return nil
}

// relocate moves a logical block to a new block, putting the run in place of
// the old copies of its pages.
func (m *blockMap) relocate(run *pageRun) error {
	lbn, first := m.split(run.first())
	_, last := m.split(run.last())
	src := m.table[lbn]

	dst, err := m.f.allocateBlock(lbn, 0)
	if err != nil {
		return err
	}

	err = m.copyRange(src, dst, 0, first)
	if err != nil {
		return err
	}

	err = m.writeUnits(dst, run, src)
	if err != nil {
		return err
	}

	err = m.copyRange(src, dst, last+1, PageOffset(m.f.geometry.PagesPerBlock))
	if err != nil {
		return err
	}

	m.table[lbn] = dst
	m.f.stats.Relocations++
	m.f.logger.Debug("relocated logical block",
		"lbn", lbn, "from", src, "to", dst)

	return m.f.eraseBlock(src)
}

func (m *blockMap) copyRange(src, dst nand.PBN, from, to PageOffset) error {
	for off := from; off < to; off++ {
		if !m.f.blocks.isValid(src, off) {
			continue
		}

		err := m.f.copyPage(
			location{pbn: src, page: off},
			location{pbn: dst, page: off})
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *blockMap) discardPage(lpn LPN) bool {
	old, ok := m.locate(lpn)
	if !ok {
		return false
	}

	return m.f.blocks.invalidate(old.pbn, old.page)
}

func (m *blockMap) blocksNeeded(runs []*pageRun) int {
	needed := 0

	for _, r := range runs {
		lbn, off := m.split(r.first())
		pbn := m.table[lbn]

		if pbn == nand.NoBlock || !m.f.blocks.get(pbn).canAppend(off) {
			needed++
		}
	}

	return needed
}

// isCandidate accepts only blocks without valid pages. Moving a block that
// still holds data does not free any page.
func (m *blockMap) isCandidate(_ nand.PBN, s *BlockState) bool {
	return s.ValidPages == 0
}

func (m *blockMap) collect(victim nand.PBN) (int, error) {
	s := m.f.blocks.get(victim)
	lbn := s.Owner
	ppb := m.f.geometry.PagesPerBlock

	if s.ValidPages == 0 {
		if m.table[lbn] == victim {
			m.table[lbn] = nand.NoBlock
		}

		return ppb, m.f.eraseBlock(victim)
	}

	if m.f.pool.Len() == 0 {
		return 0, fmt.Errorf("%w: collecting block %d", ErrOutOfSpace, victim)
	}

	dst, err := m.f.allocateBlock(lbn, 0)
	if err != nil {
		return 0, err
	}

	copied := s.ValidPages
	err = m.copyRange(victim, dst, 0, PageOffset(ppb))
	if err != nil {
		return 0, err
	}

	m.table[lbn] = dst

	return ppb - copied, m.f.eraseBlock(victim)
}

func (m *blockMap) checkMapping() []error {
	var errs []error

	for lbn, pbn := range m.table {
		if pbn == nand.NoBlock {
			continue
		}

		s := m.f.blocks.get(pbn)
		if s.Type != BlockData || s.Owner != LBN(lbn) {
			errs = append(errs, corruptf("lbn %d maps to block %d owned by %d",
				lbn, pbn, s.Owner))
		}
	}

	for pbn := range m.f.blocks.states {
		s := &m.f.blocks.states[pbn]
		if s.Type == BlockData && m.table[s.Owner] != nand.PBN(pbn) {
			errs = append(errs, corruptf("data block %d is not mapped by lbn %d",
				pbn, s.Owner))
		}
	}

	return errs
}
