package ftl

import (
	"log"

	"github.com/sarchlab/ftlsim/nand"
)

// metaBlock is reserved for the drive metadata and never allocated.
const metaBlock nand.PBN = 0

// allocator keeps the empty blocks in one FIFO list per plane of each chip.
// List i holds the blocks of plane i/FlashCount on chip i%FlashCount.
type allocator struct {
	geometry nand.Geometry
	lists    [][]nand.PBN
	pooled   []bool
	cursor   int
	count    int
}

func newAllocator(g nand.Geometry) *allocator {
	a := &allocator{
		geometry: g,
		lists:    make([][]nand.PBN, g.FlashCount*g.PlanesPerFlash),
		pooled:   make([]bool, g.TotalBlocks()),
	}

	for plane := 0; plane < g.PlanesPerFlash; plane++ {
		for flash := 0; flash < g.FlashCount; flash++ {
			for block := plane; block < g.BlocksPerFlash; block += g.PlanesPerFlash {
				pbn := g.PBNOf(nand.BlockAddr{Flash: flash, Block: block})
				if pbn == metaBlock {
					continue
				}

				a.release(pbn)
			}
		}
	}

	return a
}

func (a *allocator) listIndex(pbn nand.PBN) int {
	addr := a.geometry.BlockAddrOf(pbn)
	plane := addr.Block % a.geometry.PlanesPerFlash

	return plane*a.geometry.FlashCount + addr.Flash
}

// Len returns the number of empty blocks.
func (a *allocator) Len() int {
	return a.count
}

func (a *allocator) listLen(index int) int {
	return len(a.lists[index])
}

// allocate takes an empty block. With VictimInChip, the block comes from the
// given list or another plane of the same chip.
func (a *allocator) allocate(
	policy VictimPolicy,
	index int,
) (nand.PBN, error) {
	switch policy {
	case VictimOverall:
		return a.allocateOverall()
	case VictimInChip:
		return a.allocateInChip(index)
	default:
		log.Panicf("unknown victim policy %d", policy)
	}

	return nand.NoBlock, nil
}

// allocateNear prefers the given list and falls back to any list.
func (a *allocator) allocateNear(
	policy VictimPolicy,
	index int,
) (nand.PBN, error) {
	if policy == VictimInChip {
		pbn, err := a.allocateInChip(index)
		if err == nil {
			return pbn, nil
		}
	}

	return a.allocateOverall()
}

func (a *allocator) allocateOverall() (nand.PBN, error) {
	n := len(a.lists)
	for i := 0; i < n; i++ {
		index := (a.cursor + i) % n
		if len(a.lists[index]) == 0 {
			continue
		}

		a.cursor = (index + 1) % n

		return a.take(index), nil
	}

	return nand.NoBlock, ErrOutOfSpace
}

func (a *allocator) allocateInChip(index int) (nand.PBN, error) {
	if index < 0 || index >= len(a.lists) {
		log.Panicf("empty block list %d does not exist", index)
	}

	if len(a.lists[index]) > 0 {
		return a.take(index), nil
	}

	flash := index % a.geometry.FlashCount
	for plane := 0; plane < a.geometry.PlanesPerFlash; plane++ {
		sibling := plane*a.geometry.FlashCount + flash
		if len(a.lists[sibling]) > 0 {
			return a.take(sibling), nil
		}
	}

	return nand.NoBlock, ErrOutOfSpace
}

func (a *allocator) take(index int) nand.PBN {
	pbn := a.lists[index][0]
	a.lists[index] = a.lists[index][1:]
	a.pooled[pbn] = false
	a.count--

	return pbn
}

// release returns a block to the tail of its list. Releasing a block that is
// already in the pool does nothing.
func (a *allocator) release(pbn nand.PBN) bool {
	if a.pooled[pbn] {
		return false
	}

	index := a.listIndex(pbn)
	a.lists[index] = append(a.lists[index], pbn)
	a.pooled[pbn] = true
	a.count++

	return true
}

func (a *allocator) contains(pbn nand.PBN) bool {
	return a.pooled[pbn]
}
