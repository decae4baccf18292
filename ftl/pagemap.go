package ftl

import (
	"fmt"
	"log"

	"github.com/sarchlab/ftlsim/nand"
)

// pageMap maps each logical page to any physical page. Every write goes to a
// fresh page at the write frontier.
type pageMap struct {
	f        *FTL
	table    []nand.PPN
	frontier *frontier
}

func newPageMap(f *FTL, pages int64) *pageMap {
	m := &pageMap{
		f:     f,
		table: make([]nand.PPN, pages),
		frontier: newFrontier(
			f.geometry.FlashCount*f.geometry.PlanesPerFlash,
			f.geometry.PagesPerBlock),
	}

	for i := range m.table {
		m.table[i] = nand.NoPage
	}

	return m
}

func (m *pageMap) covers(lpn LPN) bool {
	return lpn >= 0 && int64(lpn) < int64(len(m.table))
}

func (m *pageMap) locate(lpn LPN) (location, bool) {
	if !m.covers(lpn) {
		log.Panicf("lpn %d is outside of the page-mapped region", lpn)
	}

	ppn := m.table[lpn]
	if ppn == nand.NoPage {
		return nowhere, false
	}

	pbn, page := m.f.geometry.SplitPPN(ppn)

	return location{pbn: pbn, page: PageOffset(page)}, true
}

func (m *pageMap) runKey(LPN) int64 {
	return 0
}

func (m *pageMap) writeRun(run *pageRun) error {
	for _, u := range run.units {
		err := m.writeUnit(u)
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *pageMap) writeUnit(u pageUnit) error {
	old, _ := m.locate(u.lpn)

	dst, err := m.nextPage(VictimOverall, 0)
	if err != nil {
		return err
	}

	err = m.f.program(dst, u, old)
	if err != nil {
		return err
	}

	m.commit(u.lpn, old, dst)

	return nil
}

// nextPage takes a page from the frontier, opening a new block when the slot
// is full.
func (m *pageMap) nextPage(policy VictimPolicy, index int) (location, error) {
	slot := m.frontier.pick(policy, index)

	if m.frontier.exhausted(slot) {
		pbn, err := m.f.pool.allocateNear(policy, slot)
		if err != nil {
			return nowhere, err
		}

		m.f.blocks.claim(pbn, NoLBN, 0, true)
		m.frontier.install(slot, pbn)
	}

	pbn, page := m.frontier.take(slot)

	return location{pbn: pbn, page: page}, nil
}

func (m *pageMap) commit(lpn LPN, old, dst location) {
	if old.exists() {
		m.f.blocks.invalidate(old.pbn, old.page)
	}

	m.f.blocks.validate(dst.pbn, dst.page)
	m.f.blocks.get(dst.pbn).pageOwners[dst.page] = lpn
	m.table[lpn] = m.f.geometry.PPNOf(dst.pbn, int(dst.page))
}

func (m *pageMap) discardPage(lpn LPN) bool {
	old, ok := m.locate(lpn)
	if !ok {
		return false
	}

	m.f.blocks.invalidate(old.pbn, old.page)
	m.table[lpn] = nand.NoPage

	return true
}

func (m *pageMap) blocksNeeded(runs []*pageRun) int {
	pages := 0
	for _, r := range runs {
		pages += len(r.units)
	}

	return m.frontier.blocksFor(pages, VictimOverall, 0)
}

func (m *pageMap) isCandidate(pbn nand.PBN, s *BlockState) bool {
	return s.PageMapped && !m.frontier.isActive(pbn)
}

// collect moves the valid pages of a victim to the frontier, then erases the
// victim.
func (m *pageMap) collect(victim nand.PBN) (int, error) {
	s := m.f.blocks.get(victim)
	policy := m.f.options.GCPolicy
	index := m.f.pool.listIndex(victim)

	m.frontier.retire(victim)

	needed := m.frontier.blocksFor(s.ValidPages, policy, index)
	if needed > m.f.pool.Len() {
		return 0, fmt.Errorf("%w: collecting block %d needs %d blocks",
			ErrOutOfSpace, victim, needed)
	}

	copied := 0
	ppb := PageOffset(m.f.geometry.PagesPerBlock)
	for page := PageOffset(0); page < ppb; page++ {
		if !m.f.blocks.isValid(victim, page) {
			continue
		}

		lpn := s.pageOwners[page]
		if lpn == NoLPN {
			return copied, corruptf("valid page %d of block %d has no owner",
				page, victim)
		}

		dst, err := m.nextPage(policy, index)
		if err != nil {
			return copied, err
		}

		err = m.f.copyPage(location{pbn: victim, page: page}, dst)
		if err != nil {
			return copied, err
		}

		m.f.blocks.get(dst.pbn).pageOwners[dst.page] = lpn
		m.table[lpn] = m.f.geometry.PPNOf(dst.pbn, int(dst.page))
		copied++
	}

	err := m.f.eraseBlock(victim)
	if err != nil {
		return copied, err
	}

	return int(ppb) - copied, nil
}

func (m *pageMap) checkMapping() []error {
	var errs []error

	mapped := 0
	for lpn, ppn := range m.table {
		if ppn == nand.NoPage {
			continue
		}

		mapped++
		pbn, page := m.f.geometry.SplitPPN(ppn)
		s := m.f.blocks.get(pbn)

		if !m.f.blocks.isValid(pbn, PageOffset(page)) {
			errs = append(errs, corruptf("lpn %d maps to invalid ppn %d", lpn, ppn))
			continue
		}

		if !s.PageMapped || s.pageOwners[page] != LPN(lpn) {
			errs = append(errs, corruptf("ppn %d is not owned by lpn %d", ppn, lpn))
		}
	}

	valid := 0
	for pbn := range m.f.blocks.states {
		s := &m.f.blocks.states[pbn]
		if s.Type == BlockData && s.PageMapped {
			valid += s.ValidPages
		}
	}

	if valid != mapped {
		errs = append(errs, corruptf(
			"%d valid page-mapped pages for %d mapped logical pages",
			valid, mapped))
	}

	return errs
}
