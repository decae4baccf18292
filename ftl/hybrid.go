package ftl

import (
	"fmt"

	"github.com/sarchlab/ftlsim/nand"
)

// hybridMap page-maps the logical pages below pmPages and block-maps the
// rest. A block-mapped logical block lives in a root block and, once the root
// can no longer append, in a replacement block too.
type hybridMap struct {
	f       *FTL
	pm      *pageMap
	pmPages LPN
	table   []nand.PBN
}

// pageMappedPages returns the number of logical pages below the first
// block-mapped sector, rounded up to whole blocks.
func pageMappedPages(g nand.Geometry, bmStartSector int64) LPN {
	spp := int64(g.SectorsPerPage())
	ppb := int64(g.PagesPerBlock)

	pages := (bmStartSector + spp - 1) / spp
	blocks := (pages + ppb - 1) / ppb

	if blocks > int64(g.TotalBlocks()) {
		blocks = int64(g.TotalBlocks())
	}

	return LPN(blocks * ppb)
}

func newHybridMap(f *FTL, bmStartSector int64) *hybridMap {
	pmPages := pageMappedPages(f.geometry, bmStartSector)
	bmBlocks := (f.geometry.TotalPages() - int64(pmPages)) /
		int64(f.geometry.PagesPerBlock)

	h := &hybridMap{
		f:       f,
		pm:      newPageMap(f, int64(pmPages)),
		pmPages: pmPages,
		table:   make([]nand.PBN, bmBlocks),
	}

	for i := range h.table {
		h.table[i] = nand.NoBlock
	}

	return h
}

func (h *hybridMap) pageMapped(lpn LPN) bool {
	return lpn < h.pmPages
}

func (h *hybridMap) split(lpn LPN) (LBN, PageOffset) {
	rel := lpn - h.pmPages
	ppb := LPN(h.f.geometry.PagesPerBlock)

	return LBN(rel / ppb), PageOffset(rel % ppb)
}

func (h *hybridMap) locate(lpn LPN) (location, bool) {
	if h.pageMapped(lpn) {
		return h.pm.locate(lpn)
	}

	lbn, off := h.split(lpn)

	return h.locateInLBN(lbn, off)
}

func (h *hybridMap) locateInLBN(lbn LBN, off PageOffset) (location, bool) {
	root := h.table[lbn]
	if root == nand.NoBlock {
		return nowhere, false
	}

	if page, ok := h.f.blocks.holds(root, off); ok {
		return location{pbn: root, page: page}, true
	}

	rs := h.f.blocks.get(root)
	if !rs.HasReplacement() {
		return nowhere, false
	}

	if page, ok := h.f.blocks.holds(rs.Replacement, off); ok {
		return location{pbn: rs.Replacement, page: page}, true
	}

	return nowhere, false
}

func (h *hybridMap) runKey(lpn LPN) int64 {
	if h.pageMapped(lpn) {
		return -1
	}

	lbn, _ := h.split(lpn)

	return int64(lbn)
}

// writeRun picks the first case that applies: a new root, appending to the
// root, opening a replacement, appending to the replacement, exchanging an
// emptied root with its replacement, or merging both into a new root.
func (h *hybridMap) writeRun(run *pageRun) error {
	if h.pageMapped(run.first()) {
		return h.pm.writeRun(run)
	}

	lbn, off := h.split(run.first())
	root := h.table[lbn]

	if root == nand.NoBlock {
		pbn, err := h.f.allocateBlock(lbn, off)
		if err != nil {
			return err
		}

		h.table[lbn] = pbn

		return h.writeUnits(pbn, run)
	}

	rs := h.f.blocks.get(root)
	if rs.canAppend(off) {
		return h.writeUnits(root, run)
	}

	if !rs.HasReplacement() {
		rp, err := h.openReplacement(lbn, root, off)
		if err != nil {
			return err
		}

		return h.writeUnits(rp, run)
	}

	if h.f.blocks.get(rs.Replacement).canAppend(off) {
		return h.writeUnits(rs.Replacement, run)
	}

	if rs.ValidPages == 0 {
		return h.exchange(lbn, run)
	}

	return h.fullMerge(lbn, run)
}

func (h *hybridMap) openReplacement(
	lbn LBN,
	root nand.PBN,
	start PageOffset,
) (nand.PBN, error) {
	rp, err := h.f.allocateBlock(lbn, start)
	if err != nil {
		return nand.NoBlock, err
	}

	h.f.blocks.get(root).Replacement = rp
	h.f.blocks.get(rp).Root = root

	return rp, nil
}

// writeUnits programs the units into pbn and invalidates their old copies,
// wherever they are.
func (h *hybridMap) writeUnits(pbn nand.PBN, run *pageRun) error {
	s := h.f.blocks.get(pbn)

	for _, u := range run.units {
		lbn, off := h.split(u.lpn)

		page := s.pageOf(off)
		if page == NoOffset {
			return corruptf("block %d starting at offset %d cannot hold offset %d",
				pbn, s.StartOffset, off)
		}

		old, _ := h.locateInLBN(lbn, off)
		dst := location{pbn: pbn, page: page}

		err := h.f.program(dst, u, old)
		if err != nil {
			return err
		}

		if old.exists() {
			h.f.blocks.invalidate(old.pbn, old.page)
		}

		h.f.blocks.validate(pbn, page)
	}

	return nil
}

// exchange retires a root that holds no valid page. The replacement becomes
// the root and the run goes to a new replacement. No page is copied.
func (h *hybridMap) exchange(lbn LBN, run *pageRun) error {
	err := h.switchMerge(lbn)
	if err != nil {
		return err
	}

	_, off := h.split(run.first())
	rp, err := h.openReplacement(lbn, h.table[lbn], off)
	if err != nil {
		return err
	}

	h.f.stats.Exchanges++
	h.f.logger.Debug("exchanged root block", "lbn", lbn, "root", h.table[lbn])

	return h.writeUnits(rp, run)
}

// switchMerge erases the root and promotes the replacement.
func (h *hybridMap) switchMerge(lbn LBN) error {
	root := h.table[lbn]
	rs := h.f.blocks.get(root)
	rp := rs.Replacement

	if rs.ValidPages != 0 {
		return corruptf("switching root %d that holds %d valid pages",
			root, rs.ValidPages)
	}

	err := h.f.eraseBlock(root)
	if err != nil {
		return err
	}

	h.f.blocks.get(rp).Root = nand.NoBlock
	h.table[lbn] = rp

	return nil
}

// checkSources verifies the root and replacement of a logical block before
// merging them.
func (h *hybridMap) checkSources(root, rp nand.PBN) error {
	ppb := PageOffset(h.f.geometry.PagesPerBlock)

	for _, pbn := range []nand.PBN{root, rp} {
		s := h.f.blocks.get(pbn)
		highest := h.f.blocks.valid.Highest(pbn)
		if highest > s.WriteLimit {
			return corruptf("block %d has valid page %d beyond write limit %d",
				pbn, highest, s.WriteLimit)
		}
	}

	for off := PageOffset(0); off < ppb; off++ {
		_, inRoot := h.f.blocks.holds(root, off)
		_, inRp := h.f.blocks.holds(rp, off)

		if inRoot && inRp {
			return corruptf("root %d and replacement %d both hold offset %d",
				root, rp, off)
		}
	}

	return nil
}

// fullMerge gathers the valid pages of the root and the replacement into a
// new block. When run is not nil, the run is written in place of the old
// copies of its pages.
func (h *hybridMap) fullMerge(lbn LBN, run *pageRun) error {
	root := h.table[lbn]
	rs := h.f.blocks.get(root)
	rp := rs.Replacement
	ps := h.f.blocks.get(rp)

	err := h.checkSources(root, rp)
	if err != nil {
		return err
	}

	ppb := PageOffset(h.f.geometry.PagesPerBlock)
	start := min(rs.StartOffset, ps.StartOffset)
	runFirst, runLast := ppb, ppb-1
	if run != nil {
		_, runFirst = h.split(run.first())
		_, runLast = h.split(run.last())
		start = min(start, runFirst)
	}

	if h.f.pool.Len() == 0 {
		return fmt.Errorf("%w: merging lbn %d", ErrOutOfSpace, lbn)
	}

	dst, err := h.f.allocateBlock(lbn, start)
	if err != nil {
		return err
	}

	before := h.f.stats.CopiedPages

	err = h.mergeRange(lbn, dst, start, runFirst)
	if err != nil {
		return err
	}

	if run != nil {
		err = h.writeUnits(dst, run)
		if err != nil {
			return err
		}
	}

	err = h.mergeRange(lbn, dst, runLast+1, ppb)
	if err != nil {
		return err
	}

	h.table[lbn] = dst

	err = h.f.eraseBlock(root)
	if err != nil {
		return err
	}

	err = h.f.eraseBlock(rp)
	if err != nil {
		return err
	}

	h.f.stats.FullMerges++
	h.f.logger.Debug("merged logical block",
		"lbn", lbn, "root", root, "replacement", rp, "to", dst,
		"copied", h.f.stats.CopiedPages-before)

	return nil
}

// mergeRange copies the offsets in [from, to) that hold a valid page into
// dst.
func (h *hybridMap) mergeRange(lbn LBN, dst nand.PBN, from, to PageOffset) error {
	ds := h.f.blocks.get(dst)

	for off := from; off < to; off++ {
		src, ok := h.locateInLBN(lbn, off)
		if !ok {
			continue
		}

		err := h.f.copyPage(src, location{pbn: dst, page: ds.pageOf(off)})
		if err != nil {
			return err
		}
	}

	return nil
}

// canPartialMerge tells if every valid page of the root lies after the last
// page written to the replacement, so the replacement can absorb them.
func (h *hybridMap) canPartialMerge(root, rp nand.PBN) bool {
	rs := h.f.blocks.get(root)
	ps := h.f.blocks.get(rp)
	rpEnd := ps.StartOffset + ps.WriteLimit

	ppb := PageOffset(h.f.geometry.PagesPerBlock)
	for page := PageOffset(0); page < ppb; page++ {
		if h.f.blocks.isValid(root, page) && rs.StartOffset+page <= rpEnd {
			return false
		}
	}

	return true
}

// partialMerge appends the valid pages of the root to the replacement and
// promotes the replacement.
func (h *hybridMap) partialMerge(lbn LBN) (int, error) {
	root := h.table[lbn]
	rs := h.f.blocks.get(root)
	rp := rs.Replacement
	ps := h.f.blocks.get(rp)

	copied := 0
	ppb := PageOffset(h.f.geometry.PagesPerBlock)
	for page := PageOffset(0); page < ppb; page++ {
		if !h.f.blocks.isValid(root, page) {
			continue
		}

		off := rs.StartOffset + page
		err := h.f.copyPage(
			location{pbn: root, page: page},
			location{pbn: rp, page: ps.pageOf(off)})
		if err != nil {
			return copied, err
		}

		copied++
	}

	ps.Root = nand.NoBlock
	h.table[lbn] = rp

	return copied, h.f.eraseBlock(root)
}

func (h *hybridMap) discardPage(lpn LPN) bool {
	if h.pageMapped(lpn) {
		return h.pm.discardPage(lpn)
	}

	old, ok := h.locate(lpn)
	if !ok {
		return false
	}

	return h.f.blocks.invalidate(old.pbn, old.page)
}

func (h *hybridMap) blocksNeeded(runs []*pageRun) int {
	needed := 0
	pmPages := 0

	for _, r := range runs {
		if h.pageMapped(r.first()) {
			pmPages += len(r.units)
			continue
		}

		lbn, off := h.split(r.first())
		root := h.table[lbn]
		if root == nand.NoBlock {
			needed++
			continue
		}

		rs := h.f.blocks.get(root)
		switch {
		case rs.canAppend(off):
		case !rs.HasReplacement():
			needed++
		case h.f.blocks.get(rs.Replacement).canAppend(off):
		case rs.ValidPages == 0:
			// The erased root pays for the new replacement.
		default:
			needed++
		}
	}

	return needed + h.pm.frontier.blocksFor(pmPages, VictimOverall, 0)
}

func (h *hybridMap) isCandidate(pbn nand.PBN, s *BlockState) bool {
	if s.PageMapped {
		return h.pm.isCandidate(pbn, s)
	}

	if s.IsReplacement() {
		return false
	}

	return s.HasReplacement() || s.ValidPages == 0
}

func (h *hybridMap) collect(victim nand.PBN) (int, error) {
	s := h.f.blocks.get(victim)
	if s.PageMapped {
		return h.pm.collect(victim)
	}

	root := victim
	if s.IsReplacement() {
		root = s.Root
	}

	rs := h.f.blocks.get(root)
	lbn := rs.Owner
	ppb := h.f.geometry.PagesPerBlock

	if !rs.HasReplacement() {
		return h.compact(lbn)
	}

	if rs.ValidPages == 0 {
		h.f.stats.SwitchMerges++
		return ppb, h.switchMerge(lbn)
	}

	err := h.checkSources(root, rs.Replacement)
	if err != nil {
		return 0, err
	}

	if h.canPartialMerge(root, rs.Replacement) {
		copied, err := h.partialMerge(lbn)
		if err != nil {
			return 0, err
		}

		h.f.stats.PartialMerges++

		return ppb - copied, nil
	}

	before := h.f.stats.CopiedPages
	err = h.fullMerge(lbn, nil)
	if err != nil {
		return 0, err
	}

	return 2*ppb - int(h.f.stats.CopiedPages-before), nil
}

// compact moves a root without replacement into a new block, dropping its
// invalid pages. A root without valid pages is simply erased.
func (h *hybridMap) compact(lbn LBN) (int, error) {
	root := h.table[lbn]
	rs := h.f.blocks.get(root)
	ppb := h.f.geometry.PagesPerBlock

	if rs.ValidPages == 0 {
		h.table[lbn] = nand.NoBlock
		return ppb, h.f.eraseBlock(root)
	}

	if h.f.pool.Len() == 0 {
		return 0, fmt.Errorf("%w: compacting lbn %d", ErrOutOfSpace, lbn)
	}

	dst, err := h.f.allocateBlock(lbn, rs.StartOffset)
	if err != nil {
		return 0, err
	}

	copied := 0
	for page := PageOffset(0); int(page) < ppb; page++ {
		if !h.f.blocks.isValid(root, page) {
			continue
		}

		err = h.f.copyPage(
			location{pbn: root, page: page},
			location{pbn: dst, page: page})
		if err != nil {
			return 0, err
		}

		copied++
	}

	h.table[lbn] = dst

	return ppb - copied, h.f.eraseBlock(root)
}

func (h *hybridMap) checkMapping() []error {
	errs := h.pm.checkMapping()
	ppb := PageOffset(h.f.geometry.PagesPerBlock)
	reachable := make(map[nand.PBN]bool)

	for lbn, root := range h.table {
		if root == nand.NoBlock {
			continue
		}

		reachable[root] = true
		rs := h.f.blocks.get(root)
		if rs.Type != BlockData || rs.Owner != LBN(lbn) || rs.IsReplacement() {
			errs = append(errs, corruptf("lbn %d maps to block %d in state %+v",
				lbn, root, *rs))
			continue
		}

		if !rs.HasReplacement() {
			continue
		}

		reachable[rs.Replacement] = true
		ps := h.f.blocks.get(rs.Replacement)
		if ps.Root != nand.PBN(root) || ps.Owner != LBN(lbn) {
			errs = append(errs, corruptf(
				"replacement %d of root %d links back to %d",
				rs.Replacement, root, ps.Root))
		}

		for off := PageOffset(0); off < ppb; off++ {
			_, inRoot := h.f.blocks.holds(root, off)
			_, inRp := h.f.blocks.holds(rs.Replacement, off)
			if inRoot && inRp {
				errs = append(errs, corruptf(
					"lbn %d offset %d is valid in both root and replacement",
					lbn, off))
			}
		}
	}

	for pbn := range h.f.blocks.states {
		s := &h.f.blocks.states[pbn]
		if s.Type == BlockData && !s.PageMapped && !reachable[nand.PBN(pbn)] {
			errs = append(errs, corruptf("block-mapped block %d is unreachable", pbn))
		}
	}

	return errs
}
