package ftl

import (
	"errors"

	"github.com/sarchlab/ftlsim/nand"
)

// CheckInvariants verifies that the block states, the valid bitmap, the
// empty pool, and the mapping agree with each other.
func (f *FTL) CheckInvariants() error {
	f.lock.Lock()
	defer f.lock.Unlock()

	var errs []error
	ppb := PageOffset(f.geometry.PagesPerBlock)
	empty := 0

	for i := range f.blocks.states {
		pbn := nand.PBN(i)
		s := &f.blocks.states[i]
		count := f.blocks.valid.Count(pbn)

		if count != s.ValidPages {
			errs = append(errs, corruptf(
				"block %d counts %d valid pages, the bitmap has %d",
				pbn, s.ValidPages, count))
		}

		if s.WriteLimit < NoOffset || s.WriteLimit >= ppb {
			errs = append(errs, corruptf("block %d has write limit %d",
				pbn, s.WriteLimit))
		}

		if highest := f.blocks.valid.Highest(pbn); highest > s.WriteLimit {
			errs = append(errs, corruptf(
				"block %d has valid page %d beyond write limit %d",
				pbn, highest, s.WriteLimit))
		}

		switch s.Type {
		case BlockEmpty:
			if count != 0 {
				errs = append(errs, corruptf("empty block %d has valid pages", pbn))
			}

			if pbn != metaBlock && !f.pool.contains(pbn) {
				errs = append(errs, corruptf("empty block %d is not pooled", pbn))
			}

			if pbn != metaBlock {
				empty++
			}
		case BlockData:
			if f.pool.contains(pbn) {
				errs = append(errs, corruptf("data block %d is pooled", pbn))
			}
		}
	}

	if empty != f.pool.Len() {
		errs = append(errs, corruptf("%d empty blocks, %d pooled",
			empty, f.pool.Len()))
	}

	errs = append(errs, f.trans.checkMapping()...)

	return errors.Join(errs...)
}
