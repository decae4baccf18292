package ftl

import (
	"errors"
	"fmt"

	"github.com/sarchlab/ftlsim/nand"
	"github.com/sarchlab/ftlsim/tracing"
)

// GCRecord describes one collected victim. It is the detail of the
// HookPosCollect hook.
type GCRecord struct {
	Victim    nand.PBN
	Valid     int
	Reclaimed int
	Copied    uint64
}

// SelectVictim returns the data block with the fewest valid pages among the
// blocks whose collection may free space. It reports false when no block
// qualifies.
func (f *FTL) SelectVictim() (nand.PBN, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.selectVictim()
}

func (f *FTL) selectVictim() (nand.PBN, bool) {
	victim := nand.NoBlock
	fewest := f.geometry.PagesPerBlock

	for i := range f.blocks.states {
		pbn := nand.PBN(i)
		s := &f.blocks.states[i]

		if s.Type != BlockData || !f.trans.isCandidate(pbn, s) {
			continue
		}

		if s.ValidPages < fewest {
			victim = pbn
			fewest = s.ValidPages
		}
	}

	return victim, victim != nand.NoBlock
}

// Collect reclaims a data block. The valid pages are moved elsewhere, the
// mapping is updated, and the block is erased and returned to the pool. It
// returns the number of pages reclaimed: the pages of the erased blocks minus
// the pages copied.
func (f *FTL) Collect(pbn nand.PBN) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.corrupted {
		return 0, ErrCorruptState
	}

	if pbn < 0 || int(pbn) >= f.geometry.TotalBlocks() {
		return 0, fmt.Errorf("%w: block %d", ErrOutOfRange, pbn)
	}

	if f.blocks.get(pbn).Type != BlockData {
		return 0, nil
	}

	var reclaimed int
	err := f.guard(func() error {
		var err error
		reclaimed, err = f.collect(pbn, "")
		return err
	})

	return reclaimed, err
}

func (f *FTL) collect(pbn nand.PBN, parentID string) (int, error) {
	valid := f.blocks.get(pbn).ValidPages
	copiedBefore := f.stats.CopiedPages

	reclaimed, err := f.trans.collect(pbn)
	if err != nil {
		return reclaimed, err
	}

	f.stats.GCRounds++
	record := GCRecord{
		Victim:    pbn,
		Valid:     valid,
		Reclaimed: reclaimed,
		Copied:    f.stats.CopiedPages - copiedBefore,
	}

	f.logger.Debug("collected block",
		"pbn", pbn, "valid", valid, "reclaimed", reclaimed,
		"copied", record.Copied, "empty", f.pool.Len())

	if parentID != "" {
		tracing.AddTaskStep(parentID, f, "gc")
	}

	if f.NumHooks() > 0 {
		f.InvokeHook(simHookCtx(f, HookPosCollect, record))
	}

	return reclaimed, nil
}

// CheckAndCollect runs garbage collection rounds when the empty pool is at or
// below the trigger. It stops when no victim is left, when a victim cannot
// be collected for lack of space, or after the configured number of rounds.
func (f *FTL) CheckAndCollect() error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.corrupted {
		return ErrCorruptState
	}

	return f.guard(func() error { return f.checkAndCollect("") })
}

func (f *FTL) checkAndCollect(parentID string) error {
	if f.options.GCTriggerBlocks < 0 ||
		f.pool.Len() > f.options.GCTriggerBlocks {
		return nil
	}

	for i := 0; i < f.options.GCVictimCount; i++ {
		victim, ok := f.selectVictim()
		if !ok {
			return nil
		}

		before := f.blocks.mutations
		_, err := f.collect(victim, parentID)

		// A round that ran out of space before touching the mapping ends the
		// collection. Running out after a change is left to guard.
		if errors.Is(err, ErrOutOfSpace) && f.blocks.mutations == before {
			return nil
		}

		if err != nil {
			return err
		}
	}

	return nil
}
