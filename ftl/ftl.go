// Package ftl implements a flash translation layer. It maps logical sectors
// onto the pages of a NAND device with one of three schemes, keeps track of
// page validity, and reclaims blocks through garbage collection and merges.
package ftl

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sarchlab/ftlsim/nand"
	"github.com/sarchlab/ftlsim/sim"
	"github.com/sarchlab/ftlsim/tracing"
)

// HookPosCollect marks a collected victim block. The item is a GCRecord.
var HookPosCollect = &sim.HookPos{Name: "FTL Collect"}

// HookPosRequestDone marks a completed request. The item is a *Request.
var HookPosRequestDone = &sim.HookPos{Name: "FTL Request Done"}

// RequestTaskKind is the kind of the tasks traced for requests. A request
// that fails gets a "failed" step, and one that triggers collection gets a
// "gc" step per victim.
const RequestTaskKind = "ftl_request"

// RequestKind tells what a request does.
type RequestKind int

// The request kinds.
const (
	RequestRead RequestKind = iota
	RequestWrite
	RequestDiscard
)

func (k RequestKind) String() string {
	switch k {
	case RequestRead:
		return "read"
	case RequestWrite:
		return "write"
	case RequestDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// Request records one call to Read, Write, or Discard.
type Request struct {
	ID      string
	Kind    RequestKind
	Sector  int64
	Sectors int
	Err     error
}

// FTL is a flash translation layer on top of a NAND device.
type FTL struct {
	*sim.ComponentBase

	lock sync.Mutex

	geometry nand.Geometry
	device   nand.Device
	options  Options
	logger   *slog.Logger

	blocks *blockTable
	pool   *allocator
	trans  translator

	stats     Stats
	corrupted bool
}

// Geometry returns the geometry of the underlying device.
func (f *FTL) Geometry() nand.Geometry {
	return f.geometry
}

// Options returns the options the FTL was built with.
func (f *FTL) Options() Options {
	return f.options
}

// TotalSectors returns the number of logical sectors.
func (f *FTL) TotalSectors() int64 {
	return f.geometry.TotalSectors()
}

// Corrupted tells if a failed operation left the mapping state inconsistent.
// A corrupted FTL rejects all requests with ErrCorruptState.
func (f *FTL) Corrupted() bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.corrupted
}

// Stats returns the counters of the FTL.
func (f *FTL) Stats() Stats {
	f.lock.Lock()
	defer f.lock.Unlock()

	s := f.stats
	s.EmptyBlocks = f.pool.Len()
	s.Corrupted = f.corrupted

	return s
}

// EmptyBlocks returns the number of blocks in the empty pool.
func (f *FTL) EmptyBlocks() int {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.pool.Len()
}

// BlockState returns a copy of the state of a block.
func (f *FTL) BlockState(pbn nand.PBN) (BlockState, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if pbn < 0 || int(pbn) >= f.geometry.TotalBlocks() {
		return BlockState{}, fmt.Errorf("%w: block %d", ErrOutOfRange, pbn)
	}

	return f.blocks.get(pbn).clone(), nil
}

// BlockStates returns a copy of the states of all the blocks.
func (f *FTL) BlockStates() []BlockState {
	f.lock.Lock()
	defer f.lock.Unlock()

	states := make([]BlockState, len(f.blocks.states))
	for i := range f.blocks.states {
		states[i] = f.blocks.states[i].clone()
	}

	return states
}

// Resolve returns the physical page that holds the latest copy of a logical
// page.
func (f *FTL) Resolve(lpn LPN) (nand.PPN, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if lpn < 0 || int64(lpn) >= f.geometry.TotalPages() {
		return nand.NoPage, fmt.Errorf("%w: lpn %d", ErrOutOfRange, lpn)
	}

	loc, ok := f.trans.locate(lpn)
	if !ok {
		return nand.NoPage, fmt.Errorf("lpn %d: %w", lpn, ErrUnmapped)
	}

	return f.geometry.PPNOf(loc.pbn, int(loc.page)), nil
}

// Read returns the content of n sectors starting at sector. If any page in
// the range was never written, no flash read is issued and ErrUnmapped is
// returned.
func (f *FTL) Read(sector int64, n int) ([]byte, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	req := f.startRequest(RequestRead, sector, n)

	data, err := f.read(sector, n)

	f.endRequest(req, err)

	return data, err
}

func (f *FTL) read(sector int64, n int) ([]byte, error) {
	if f.corrupted {
		return nil, ErrCorruptState
	}

	err := f.checkRange(sector, n, nil)
	if err != nil {
		return nil, err
	}

	units := f.split(sector, n, nil)

	locs := make([]location, len(units))
	for i, u := range units {
		loc, ok := f.trans.locate(u.lpn)
		if !ok {
			return nil, fmt.Errorf("lpn %d: %w", u.lpn, ErrUnmapped)
		}

		locs[i] = loc
	}

	ss := f.geometry.SectorSize
	out := make([]byte, n*ss)
	pos := 0

	for i, u := range units {
		addr := f.pageAddr(locs[i])
		page, err := f.device.ReadPage(addr)
		if err != nil {
			return nil, f.nandError("read", addr, err)
		}

		if page != nil {
			from := u.sectorOffset * ss
			copy(out[pos:pos+u.sectors*ss], page[from:from+u.sectors*ss])
		}

		pos += u.sectors * ss
		f.stats.HostReadPages++
	}

	return out, nil
}

// Write stores n sectors starting at sector. The data must hold exactly n
// sectors, or be nil to only account for the flash operations.
func (f *FTL) Write(sector int64, n int, data []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	req := f.startRequest(RequestWrite, sector, n)

	err := f.write(req.ID, sector, n, data)

	f.endRequest(req, err)

	return err
}

func (f *FTL) write(id string, sector int64, n int, data []byte) error {
	if f.corrupted {
		return ErrCorruptState
	}

	err := f.checkRange(sector, n, data)
	if err != nil {
		return err
	}

	err = f.guard(func() error { return f.checkAndCollect(id) })
	if err != nil {
		return err
	}

	runs := f.runs(f.split(sector, n, data))

	if f.options.WritePrecheck {
		needed := f.trans.blocksNeeded(runs)
		if needed > f.pool.Len() {
			return fmt.Errorf("%w: write needs %d blocks, %d empty",
				ErrOutOfSpace, needed, f.pool.Len())
		}
	}

	return f.guard(func() error {
		for _, run := range runs {
			err := f.writeRun(run)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func (f *FTL) writeRun(run *pageRun) error {
	err := f.trans.writeRun(run)
	if !errors.Is(err, errNotAppendable) {
		return err
	}

	r, ok := f.trans.(relocator)
	if !ok {
		return err
	}

	return r.relocate(run)
}

// Discard drops the mapping of the pages fully covered by the n sectors
// starting at sector. Pages that are only partly covered keep their data.
func (f *FTL) Discard(sector int64, n int) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	req := f.startRequest(RequestDiscard, sector, n)

	err := f.discard(sector, n)

	f.endRequest(req, err)

	return err
}

func (f *FTL) discard(sector int64, n int) error {
	if f.corrupted {
		return ErrCorruptState
	}

	err := f.checkRange(sector, n, nil)
	if err != nil {
		return err
	}

	spp := f.geometry.SectorsPerPage()
	for _, u := range f.split(sector, n, nil) {
		if u.sectors != spp {
			continue
		}

		if f.trans.discardPage(u.lpn) {
			f.stats.DiscardedPages++
		}
	}

	return nil
}

func (f *FTL) checkRange(sector int64, n int, data []byte) error {
	total := f.geometry.TotalSectors()
	if sector < 0 || n <= 0 || sector > total-int64(n) {
		return fmt.Errorf("%w: %d sectors from sector %d of %d",
			ErrOutOfRange, n, sector, total)
	}

	if data != nil && len(data) != n*f.geometry.SectorSize {
		return fmt.Errorf("%w: %d bytes of data for %d sectors",
			ErrOutOfRange, len(data), n)
	}

	return nil
}

// split cuts a sector range into page units.
func (f *FTL) split(sector int64, n int, data []byte) []pageUnit {
	spp := int64(f.geometry.SectorsPerPage())
	ss := f.geometry.SectorSize

	units := make([]pageUnit, 0, int64(n)/spp+2)
	done := 0

	for done < n {
		s := sector + int64(done)
		leftSkip := int(s % spp)
		count := min(int(spp)-leftSkip, n-done)

		u := pageUnit{
			lpn:          LPN(s / spp),
			sectorOffset: leftSkip,
			sectors:      count,
		}

		if data != nil {
			u.data = data[done*ss : (done+count)*ss]
		}

		units = append(units, u)
		done += count
	}

	return units
}

// runs groups consecutive units that the translator handles together.
func (f *FTL) runs(units []pageUnit) []*pageRun {
	var (
		runs []*pageRun
		cur  *pageRun
		key  int64
	)

	for _, u := range units {
		k := f.trans.runKey(u.lpn)
		if cur == nil || k != key {
			cur = &pageRun{}
			runs = append(runs, cur)
			key = k
		}

		cur.units = append(cur.units, u)
	}

	return runs
}

// guard runs fn and flags the FTL corrupted if fn finds a broken invariant
// or fails after changing the mapping state.
func (f *FTL) guard(fn func() error) error {
	before := f.blocks.mutations

	err := fn()
	if err == nil {
		return nil
	}

	if f.blocks.mutations != before || errors.Is(err, ErrCorruptState) {
		f.corrupted = true
		f.logger.Error("operation failed after changing the mapping state",
			"err", err)
	}

	return err
}

func (f *FTL) startRequest(kind RequestKind, sector int64, n int) *Request {
	req := &Request{
		ID:      sim.GetIDGenerator().Generate(),
		Kind:    kind,
		Sector:  sector,
		Sectors: n,
	}

	tracing.StartTask(req.ID, "", f, RequestTaskKind, kind.String(), req)

	return req
}

func (f *FTL) endRequest(req *Request, err error) {
	req.Err = err

	switch req.Kind {
	case RequestRead:
		f.stats.Reads++
	case RequestWrite:
		f.stats.Writes++
	case RequestDiscard:
		f.stats.Discards++
	}

	if err != nil {
		f.stats.Failures++
		tracing.AddTaskStep(req.ID, f, "failed")
	}

	tracing.EndTask(req.ID, f)

	if f.NumHooks() > 0 {
		f.InvokeHook(simHookCtx(f, HookPosRequestDone, req))
	}
}

func simHookCtx(f *FTL, pos *sim.HookPos, item interface{}) sim.HookCtx {
	return sim.HookCtx{Domain: f, Pos: pos, Item: item}
}
