package nand

import (
	"sync"

	"github.com/sarchlab/ftlsim/sim"
)

// HookPosPageRead marks a completed page read.
var HookPosPageRead = &sim.HookPos{Name: "NAND Page Read"}

// HookPosPageProgram marks a completed page program.
var HookPosPageProgram = &sim.HookPos{Name: "NAND Page Program"}

// HookPosBlockErase marks a completed block erase.
var HookPosBlockErase = &sim.HookPos{Name: "NAND Block Erase"}

// OpKind tells which flash command an operation executes.
type OpKind int

// The flash commands.
const (
	OpRead OpKind = iota
	OpProgram
	OpPartialProgram
	OpErase
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpProgram:
		return "program"
	case OpPartialProgram:
		return "partial_program"
	case OpErase:
		return "erase"
	default:
		return "unknown"
	}
}

// Op is the record of a flash operation, carried as the item of hook calls.
type Op struct {
	Kind  OpKind
	Addr  PageAddr
	Start sim.VTimeInSec
	Done  sim.VTimeInSec
}

// Stats counts the operations a flash array has executed.
type Stats struct {
	PageReads       uint64         `json:"page_reads"`
	PagePrograms    uint64         `json:"page_programs"`
	PartialPrograms uint64         `json:"partial_programs"`
	BlockErases     uint64         `json:"block_erases"`
	StoredPages     int            `json:"stored_pages"`
	BusyUntil       sim.VTimeInSec `json:"busy_until"`
}

// Flash is a simulated NAND array. It keeps page payloads, rejects
// programming pages that are not erased, and models the time each
// operation takes on its channel and plane register.
type Flash struct {
	*sim.ComponentBase

	lock sync.Mutex

	geometry  Geometry
	clock     sim.TimeTeller
	storeData bool

	storage    *pageStorage
	programmed []uint64
	timeline   *timeline

	busyUntil  sim.VTimeInSec
	batchStart sim.VTimeInSec
	batchDone  sim.VTimeInSec

	stats Stats
}

// Geometry returns the organization of the array.
func (f *Flash) Geometry() Geometry {
	return f.geometry
}

// ReadPage returns the content of a page.
func (f *Flash) ReadPage(addr PageAddr) ([]byte, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if !f.geometry.ContainsPage(addr) {
		return nil, &Error{Op: OpRead.String(), Addr: addr, Err: ErrAddress}
	}

	now := f.now()
	done := f.timeline.read(addr.BlockAddr(), now)
	f.complete(Op{Kind: OpRead, Addr: addr, Start: now, Done: done})
	f.stats.PageReads++

	if !f.storeData {
		return nil, nil
	}

	return f.storage.read(f.ppnOf(addr)), nil
}

// WritePage programs an erased page.
func (f *Flash) WritePage(addr PageAddr, data []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	err := f.checkProgram(OpProgram, addr, data)
	if err != nil {
		return err
	}

	now := f.now()
	done := f.timeline.program(addr.BlockAddr(), now)
	f.markProgrammed(addr, data)
	f.complete(Op{Kind: OpProgram, Addr: addr, Start: now, Done: done})
	f.stats.PagePrograms++

	return nil
}

// PartialWrite reads src and programs dst with the read content, where the
// sectors starting at sectorOffset are replaced by data.
func (f *Flash) PartialWrite(
	src, dst PageAddr,
	sectorOffset int,
	data []byte,
) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	op := OpPartialProgram.String()
	if !f.geometry.ContainsPage(src) {
		return &Error{Op: op, Addr: src, Err: ErrAddress}
	}

	start := sectorOffset * f.geometry.SectorSize
	if sectorOffset < 0 || start+len(data) > f.geometry.PageSize {
		return &Error{Op: op, Addr: dst, Err: ErrPayloadSize}
	}

	err := f.checkProgram(OpPartialProgram, dst, nil)
	if err != nil {
		return err
	}

	now := f.now()
	fetched := f.timeline.read(src.BlockAddr(), now)
	done := f.timeline.program(dst.BlockAddr(), fetched)

	var merged []byte
	if f.storeData {
		merged = f.storage.read(f.ppnOf(src))
		copy(merged[start:], data)
	}

	f.markProgrammed(dst, merged)
	f.complete(Op{Kind: OpPartialProgram, Addr: dst, Start: now, Done: done})
	f.stats.PageReads++
	f.stats.PartialPrograms++

	return nil
}

// EraseBlock erases all the pages of a block.
func (f *Flash) EraseBlock(addr BlockAddr) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if !f.geometry.ContainsBlock(addr) {
		return &Error{
			Op:   OpErase.String(),
			Addr: PageAddr{Flash: addr.Flash, Block: addr.Block, Page: -1},
			Err:  ErrAddress,
		}
	}

	now := f.now()
	done := f.timeline.erase(addr, now)

	first := f.geometry.PPNOf(f.geometry.PBNOf(addr), 0)
	for i := 0; i < f.geometry.PagesPerBlock; i++ {
		f.clearProgrammed(first + PPN(i))
	}
	f.storage.eraseRange(first, f.geometry.PagesPerBlock)

	f.complete(Op{
		Kind:  OpErase,
		Addr:  PageAddr{Flash: addr.Flash, Block: addr.Block, Page: -1},
		Start: now,
		Done:  done,
	})
	f.stats.BlockErases++

	return nil
}

// IsProgrammed tells if a page has been programmed since its last erase.
func (f *Flash) IsProgrammed(addr PageAddr) bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.isProgrammed(f.ppnOf(addr))
}

// StartBatch marks the beginning of a group of operations, usually all the
// operations of one host request.
func (f *Flash) StartBatch() {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.batchStart = f.now()
	f.batchDone = f.batchStart
}

// BatchDone returns the time the last operation since StartBatch completes.
func (f *Flash) BatchDone() sim.VTimeInSec {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.batchDone
}

// CompletionTime returns the time all the issued operations complete.
func (f *Flash) CompletionTime() sim.VTimeInSec {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.busyUntil
}

// ResetTiming forgets the busy times of the channels and registers.
func (f *Flash) ResetTiming() {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.timeline.reset()
	f.busyUntil = 0
	f.batchStart = 0
	f.batchDone = 0
}

// Stats returns the operation counts.
func (f *Flash) Stats() Stats {
	f.lock.Lock()
	defer f.lock.Unlock()

	s := f.stats
	s.StoredPages = f.storage.len()
	s.BusyUntil = f.busyUntil

	return s
}

func (f *Flash) checkProgram(kind OpKind, addr PageAddr, data []byte) error {
	if !f.geometry.ContainsPage(addr) {
		return &Error{Op: kind.String(), Addr: addr, Err: ErrAddress}
	}

	if len(data) > f.geometry.PageSize {
		return &Error{Op: kind.String(), Addr: addr, Err: ErrPayloadSize}
	}

	if f.isProgrammed(f.ppnOf(addr)) {
		return &Error{Op: kind.String(), Addr: addr, Err: ErrProgramWithoutErase}
	}

	return nil
}

func (f *Flash) markProgrammed(addr PageAddr, data []byte) {
	ppn := f.ppnOf(addr)
	f.programmed[ppn/64] |= 1 << (uint64(ppn) % 64)

	if f.storeData {
		f.storage.write(ppn, data)
	}
}

func (f *Flash) clearProgrammed(ppn PPN) {
	f.programmed[ppn/64] &^= 1 << (uint64(ppn) % 64)
}

func (f *Flash) isProgrammed(ppn PPN) bool {
	return f.programmed[ppn/64]&(1<<(uint64(ppn)%64)) != 0
}

func (f *Flash) ppnOf(addr PageAddr) PPN {
	return f.geometry.PPNOf(f.geometry.PBNOf(addr.BlockAddr()), addr.Page)
}

func (f *Flash) now() sim.VTimeInSec {
	if f.clock == nil {
		return 0
	}

	return f.clock.CurrentTime()
}

func (f *Flash) complete(op Op) {
	f.busyUntil = later(f.busyUntil, op.Done)
	f.batchDone = later(f.batchDone, op.Done)

	pos := HookPosPageProgram
	switch op.Kind {
	case OpRead:
		pos = HookPosPageRead
	case OpErase:
		pos = HookPosBlockErase
	}

	if f.NumHooks() == 0 {
		return
	}

	f.InvokeHook(sim.HookCtx{
		Domain: f,
		Pos:    pos,
		Item:   op,
	})
}
