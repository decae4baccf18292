package ftl

import (
	"github.com/sarchlab/ftlsim/nand"
)

func (f *FTL) nandError(op string, addr nand.PageAddr, err error) error {
	f.logger.Warn("nand operation failed",
		"op", op, "flash", addr.Flash, "block", addr.Block, "page", addr.Page,
		"err", err)

	return &NandError{Op: op, Addr: addr, Err: err}
}

func (f *FTL) pageAddr(l location) nand.PageAddr {
	return f.geometry.PageAddrOf(l.pbn, int(l.page))
}

// program writes a host unit into a page. A unit that covers part of a page
// is merged with the old copy when there is one.
func (f *FTL) program(dst location, u pageUnit, old location) error {
	addr := f.pageAddr(dst)
	spp := f.geometry.SectorsPerPage()

	var err error
	switch {
	case u.sectors == spp:
		err = f.device.WritePage(addr, u.data)
	case old.exists():
		err = f.device.PartialWrite(f.pageAddr(old), addr, u.sectorOffset, u.data)
		f.stats.PartialWrites++
	default:
		var page []byte
		if u.data != nil {
			page = make([]byte, f.geometry.PageSize)
			copy(page[u.sectorOffset*f.geometry.SectorSize:], u.data)
		}
		err = f.device.WritePage(addr, page)
	}

	if err != nil {
		return f.nandError("program", addr, err)
	}

	f.stats.HostWritePages++

	return nil
}

// copyPage moves a valid page to dst and moves its validity along.
func (f *FTL) copyPage(src, dst location) error {
	srcAddr := f.pageAddr(src)
	data, err := f.device.ReadPage(srcAddr)
	if err != nil {
		return f.nandError("read", srcAddr, err)
	}

	dstAddr := f.pageAddr(dst)
	err = f.device.WritePage(dstAddr, data)
	if err != nil {
		return f.nandError("program", dstAddr, err)
	}

	f.blocks.invalidate(src.pbn, src.page)
	f.blocks.validate(dst.pbn, dst.page)
	f.stats.CopiedPages++

	return nil
}

// eraseBlock erases a data block and returns it to the pool. Erasing an
// empty block does nothing.
func (f *FTL) eraseBlock(pbn nand.PBN) error {
	if f.blocks.get(pbn).Type == BlockEmpty {
		return nil
	}

	addr := f.geometry.BlockAddrOf(pbn)
	err := f.device.EraseBlock(addr)
	if err != nil {
		return f.nandError("erase",
			nand.PageAddr{Flash: addr.Flash, Block: addr.Block, Page: -1}, err)
	}

	f.blocks.reset(pbn)
	f.pool.release(pbn)
	f.stats.BlockErases++

	return nil
}

// allocateBlock takes an empty block and claims it for a logical block.
func (f *FTL) allocateBlock(owner LBN, start PageOffset) (nand.PBN, error) {
	pbn, err := f.pool.allocate(VictimOverall, 0)
	if err != nil {
		return nand.NoBlock, err
	}

	f.blocks.claim(pbn, owner, start, false)

	return pbn, nil
}
