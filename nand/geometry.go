package nand

import (
	"errors"
	"fmt"
	"log"
)

// Geometry describes the physical organization of a NAND array.
type Geometry struct {
	PageSize       int `json:"page_size"`
	SectorSize     int `json:"sector_size"`
	PagesPerBlock  int `json:"pages_per_block"`
	BlocksPerFlash int `json:"blocks_per_flash"`
	FlashCount     int `json:"flash_count"`
	PlanesPerFlash int `json:"planes_per_flash"`
	ChannelCount   int `json:"channel_count"`
}

// Validate checks that the geometry describes a usable device.
func (g Geometry) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"page size", g.PageSize},
		{"sector size", g.SectorSize},
		{"pages per block", g.PagesPerBlock},
		{"blocks per flash", g.BlocksPerFlash},
		{"flash count", g.FlashCount},
		{"planes per flash", g.PlanesPerFlash},
		{"channel count", g.ChannelCount},
	}

	var errs []error
	for _, f := range fields {
		if f.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d",
				f.name, f.value))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if g.PageSize%g.SectorSize != 0 {
		errs = append(errs, fmt.Errorf(
			"page size %d is not a multiple of sector size %d",
			g.PageSize, g.SectorSize))
	}

	if g.BlocksPerFlash%g.PlanesPerFlash != 0 {
		errs = append(errs, fmt.Errorf(
			"blocks per flash %d is not a multiple of planes per flash %d",
			g.BlocksPerFlash, g.PlanesPerFlash))
	}

	if g.TotalBlocks() < 2 {
		errs = append(errs, errors.New(
			"at least two blocks are needed, one is reserved for metadata"))
	}

	return errors.Join(errs...)
}

// SectorsPerPage returns how many sectors a page holds.
func (g Geometry) SectorsPerPage() int {
	return g.PageSize / g.SectorSize
}

// TotalBlocks returns the number of blocks across all flash chips.
func (g Geometry) TotalBlocks() int {
	return g.FlashCount * g.BlocksPerFlash
}

// TotalPages returns the number of pages across all flash chips.
func (g Geometry) TotalPages() int64 {
	return int64(g.TotalBlocks()) * int64(g.PagesPerBlock)
}

// TotalSectors returns the number of sectors across all flash chips.
func (g Geometry) TotalSectors() int64 {
	return g.TotalPages() * int64(g.SectorsPerPage())
}

// RegisterCount returns the number of page registers, one per plane.
func (g Geometry) RegisterCount() int {
	return g.FlashCount * g.PlanesPerFlash
}

// BlockAddrOf converts a PBN into a block address.
func (g Geometry) BlockAddrOf(pbn PBN) BlockAddr {
	g.mustHaveBlock(pbn)

	return BlockAddr{
		Flash: int(pbn) / g.BlocksPerFlash,
		Block: int(pbn) % g.BlocksPerFlash,
	}
}

// PBNOf converts a block address into a PBN.
func (g Geometry) PBNOf(addr BlockAddr) PBN {
	if !g.ContainsBlock(addr) {
		log.Panicf("block address %s is out of range", addr)
	}

	return PBN(addr.Flash*g.BlocksPerFlash + addr.Block)
}

// PageAddrOf returns the address of a page of a block.
func (g Geometry) PageAddrOf(pbn PBN, page int) PageAddr {
	b := g.BlockAddrOf(pbn)
	g.mustHavePage(page)

	return PageAddr{Flash: b.Flash, Block: b.Block, Page: page}
}

// PPNOf returns the physical page number of a page of a block.
func (g Geometry) PPNOf(pbn PBN, page int) PPN {
	g.mustHaveBlock(pbn)
	g.mustHavePage(page)

	return PPN(int64(pbn)*int64(g.PagesPerBlock) + int64(page))
}

// SplitPPN returns the block and the in-block page of a PPN.
func (g Geometry) SplitPPN(ppn PPN) (PBN, int) {
	if ppn < 0 || int64(ppn) >= g.TotalPages() {
		log.Panicf("ppn %d is out of range", ppn)
	}

	return PBN(int64(ppn) / int64(g.PagesPerBlock)),
		int(int64(ppn) % int64(g.PagesPerBlock))
}

// PlaneOf returns the plane a block belongs to.
func (g Geometry) PlaneOf(pbn PBN) int {
	return g.BlockAddrOf(pbn).Block % g.PlanesPerFlash
}

// ChannelOf returns the channel a flash chip is attached to.
func (g Geometry) ChannelOf(flash int) int {
	return flash % g.ChannelCount
}

// RegisterOf returns the page register that serves a block.
func (g Geometry) RegisterOf(addr BlockAddr) int {
	return addr.Flash*g.PlanesPerFlash + addr.Block%g.PlanesPerFlash
}

// ContainsBlock tells if a block address exists in the array.
func (g Geometry) ContainsBlock(addr BlockAddr) bool {
	return addr.Flash >= 0 && addr.Flash < g.FlashCount &&
		addr.Block >= 0 && addr.Block < g.BlocksPerFlash
}

// ContainsPage tells if a page address exists in the array.
func (g Geometry) ContainsPage(addr PageAddr) bool {
	return g.ContainsBlock(addr.BlockAddr()) &&
		addr.Page >= 0 && addr.Page < g.PagesPerBlock
}

func (g Geometry) mustHaveBlock(pbn PBN) {
	if pbn < 0 || int(pbn) >= g.TotalBlocks() {
		log.Panicf("pbn %d is out of range [0, %d)", pbn, g.TotalBlocks())
	}
}

func (g Geometry) mustHavePage(page int) {
	if page < 0 || page >= g.PagesPerBlock {
		log.Panicf("page %d is out of range [0, %d)", page, g.PagesPerBlock)
	}
}
