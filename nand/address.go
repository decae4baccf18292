package nand

import "fmt"

// PBN is a physical block number, unique across all flash chips.
type PBN int64

// PPN is a physical page number, unique across all flash chips.
type PPN int64

const (
	// NoBlock marks a PBN slot that does not refer to any block.
	NoBlock PBN = -1

	// NoPage marks a PPN slot that does not refer to any page.
	NoPage PPN = -1
)

// A BlockAddr locates an erase block on a flash chip.
type BlockAddr struct {
	Flash int
	Block int
}

func (a BlockAddr) String() string {
	return fmt.Sprintf("flash %d block %d", a.Flash, a.Block)
}

// A PageAddr locates a page within an erase block.
type PageAddr struct {
	Flash int
	Block int
	Page  int
}

// BlockAddr returns the address of the block that holds the page.
func (a PageAddr) BlockAddr() BlockAddr {
	return BlockAddr{Flash: a.Flash, Block: a.Block}
}

func (a PageAddr) String() string {
	return fmt.Sprintf("flash %d block %d page %d", a.Flash, a.Block, a.Page)
}
