package ftl

import "github.com/sarchlab/ftlsim/nand"

// A pageUnit is the part of a request that falls into one logical page.
type pageUnit struct {
	lpn          LPN
	sectorOffset int
	sectors      int
	data         []byte
}

// A pageRun is a sequence of units that one translator call handles, such as
// the units that fall into the same logical block.
type pageRun struct {
	units []pageUnit
}

func (r *pageRun) first() LPN {
	return r.units[0].lpn
}

func (r *pageRun) last() LPN {
	return r.units[len(r.units)-1].lpn
}

// location is a physical page.
type location struct {
	pbn  nand.PBN
	page PageOffset
}

var nowhere = location{pbn: nand.NoBlock, page: NoOffset}

func (l location) exists() bool {
	return l.pbn != nand.NoBlock
}

// translator maps logical pages of one scheme.
type translator interface {
	// locate returns the page that holds the latest copy of lpn.
	locate(lpn LPN) (location, bool)

	// runKey groups units; a run never spans two keys.
	runKey(lpn LPN) int64

	// writeRun programs a run and updates the mapping.
	writeRun(run *pageRun) error

	// discardPage drops the mapping of a logical page.
	discardPage(lpn LPN) bool

	// blocksNeeded estimates the empty blocks writing the runs needs.
	blocksNeeded(runs []*pageRun) int

	// isCandidate tells if collecting a data block may reclaim space.
	isCandidate(pbn nand.PBN, s *BlockState) bool

	// collect reclaims a block and returns the number of pages freed.
	collect(pbn nand.PBN) (int, error)

	// checkMapping verifies that the mapping agrees with the block states.
	checkMapping() []error
}

// relocator is a translator that moves a logical block when a write cannot
// be appended.
type relocator interface {
	relocate(run *pageRun) error
}
