package ftl

import (
	"log"

	"github.com/sarchlab/ftlsim/nand"
)

// BlockType tells if a block holds data.
type BlockType int

// The block types.
const (
	BlockEmpty BlockType = iota
	BlockData
)

func (t BlockType) String() string {
	if t == BlockData {
		return "data"
	}

	return "empty"
}

// MarshalText writes the type by name.
func (t BlockType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// BlockState is the bookkeeping of one physical block.
type BlockState struct {
	Type       BlockType `json:"type"`
	Owner      LBN       `json:"owner"`
	ValidPages int       `json:"valid_pages"`

	// StartOffset is the logical offset stored in the first page of the
	// block. A logical offset o lives at page o-StartOffset.
	StartOffset PageOffset `json:"start_offset"`

	// WriteLimit is the highest page written since the last erase.
	WriteLimit PageOffset `json:"write_limit"`

	// Replacement links a block-mapped root to its replacement block, and
	// Root links back.
	Replacement nand.PBN `json:"replacement"`
	Root        nand.PBN `json:"root"`

	PageMapped bool `json:"page_mapped"`

	pageOwners []LPN
}

func emptyBlockState() BlockState {
	return BlockState{
		Type:        BlockEmpty,
		Owner:       NoLBN,
		StartOffset: NoOffset,
		WriteLimit:  NoOffset,
		Replacement: nand.NoBlock,
		Root:        nand.NoBlock,
	}
}

// HasReplacement tells if a root block is linked to a replacement block.
func (s *BlockState) HasReplacement() bool {
	return s.Replacement != nand.NoBlock
}

// IsReplacement tells if the block serves as the replacement of a root.
func (s *BlockState) IsReplacement() bool {
	return s.Root != nand.NoBlock
}

// pageOf returns the page that holds a logical offset, or NoOffset when the
// block cannot hold it.
func (s *BlockState) pageOf(off PageOffset) PageOffset {
	if s.StartOffset == NoOffset || off < s.StartOffset {
		return NoOffset
	}

	return off - s.StartOffset
}

// canAppend tells if a logical offset lands right after the last written
// page.
func (s *BlockState) canAppend(off PageOffset) bool {
	page := s.pageOf(off)
	return page != NoOffset && page == s.WriteLimit+1
}

func (s *BlockState) clone() BlockState {
	c := *s
	if s.pageOwners != nil {
		c.pageOwners = append([]LPN(nil), s.pageOwners...)
	}

	return c
}

// blockTable keeps the states of all the blocks and the valid bitmap. Every
// change to either is counted, so callers can tell if a failed operation
// left anything behind.
type blockTable struct {
	pagesPerBlock int
	states        []BlockState
	valid         *ValidBitmap
	mutations     uint64
}

func newBlockTable(g nand.Geometry) *blockTable {
	t := &blockTable{
		pagesPerBlock: g.PagesPerBlock,
		states:        make([]BlockState, g.TotalBlocks()),
		valid:         NewValidBitmap(g.TotalBlocks(), g.PagesPerBlock),
	}

	for i := range t.states {
		t.states[i] = emptyBlockState()
	}

	return t
}

func (t *blockTable) get(pbn nand.PBN) *BlockState {
	if pbn < 0 || int(pbn) >= len(t.states) {
		log.Panicf("pbn %d is out of range [0, %d)", pbn, len(t.states))
	}

	return &t.states[pbn]
}

// claim turns a freshly allocated block into a data block.
func (t *blockTable) claim(
	pbn nand.PBN,
	owner LBN,
	start PageOffset,
	pageMapped bool,
) *BlockState {
	s := t.get(pbn)
	if s.Type != BlockEmpty {
		log.Panicf("claiming block %d that holds data", pbn)
	}

	*s = emptyBlockState()
	s.Type = BlockData
	s.Owner = owner
	s.StartOffset = start
	s.PageMapped = pageMapped

	if pageMapped {
		s.pageOwners = make([]LPN, t.pagesPerBlock)
		for i := range s.pageOwners {
			s.pageOwners[i] = NoLPN
		}
	}

	t.mutations++

	return s
}

// validate marks a freshly programmed page valid.
func (t *blockTable) validate(pbn nand.PBN, page PageOffset) {
	if t.valid.Test(pbn, page) {
		log.Panicf("page %d of block %d is already valid", page, pbn)
	}

	s := t.get(pbn)
	t.valid.Set(pbn, page)
	s.ValidPages++

	if page > s.WriteLimit {
		s.WriteLimit = page
	}

	t.mutations++
}

// invalidate marks a page invalid. It reports false if the page was not
// valid.
func (t *blockTable) invalidate(pbn nand.PBN, page PageOffset) bool {
	if !t.valid.Test(pbn, page) {
		return false
	}

	s := t.get(pbn)
	t.valid.Clear(pbn, page)
	s.ValidPages--

	if s.pageOwners != nil {
		s.pageOwners[page] = NoLPN
	}

	t.mutations++

	return true
}

func (t *blockTable) isValid(pbn nand.PBN, page PageOffset) bool {
	return t.valid.Test(pbn, page)
}

// holds tells if a block holds a valid copy of a logical offset, and at
// which page.
func (t *blockTable) holds(pbn nand.PBN, off PageOffset) (PageOffset, bool) {
	page := t.get(pbn).pageOf(off)
	if page == NoOffset || int(page) >= t.pagesPerBlock {
		return NoOffset, false
	}

	return page, t.valid.Test(pbn, page)
}

func (t *blockTable) reset(pbn nand.PBN) {
	*t.get(pbn) = emptyBlockState()
	t.valid.ClearBlock(pbn)
	t.mutations++
}
