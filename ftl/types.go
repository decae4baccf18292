package ftl

import (
	"fmt"
	"strings"
)

// LPN is a logical page number, the sector address divided by the number of
// sectors per page.
type LPN int64

// LBN is a logical block number.
type LBN int64

// PageOffset is the position of a page inside a block.
type PageOffset int

const (
	// NoLPN marks a physical page that no logical page owns.
	NoLPN LPN = -1

	// NoLBN marks a block that no logical block owns.
	NoLBN LBN = -1

	// NoOffset marks an offset that was never set.
	NoOffset PageOffset = -1
)

// Scheme selects how logical addresses are mapped to flash.
type Scheme int

// The mapping schemes.
const (
	// SchemePageMap maps every logical page independently.
	SchemePageMap Scheme = iota

	// SchemeBlockMap maps logical blocks onto physical blocks, keeping pages
	// in their natural order.
	SchemeBlockMap

	// SchemeHybrid page-maps the low sectors and block-maps the rest, with a
	// replacement block per logical block.
	SchemeHybrid
)

func (s Scheme) String() string {
	switch s {
	case SchemePageMap:
		return "page"
	case SchemeBlockMap:
		return "block"
	case SchemeHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// ParseScheme converts the name of a scheme into a Scheme.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "page", "pagemap", "page_map":
		return SchemePageMap, nil
	case "block", "blockmap", "block_map":
		return SchemeBlockMap, nil
	case "hybrid", "da_map", "damap":
		return SchemeHybrid, nil
	default:
		return 0, fmt.Errorf("unknown mapping scheme %q", name)
	}
}

// VictimPolicy selects which empty-block list a new block comes from.
type VictimPolicy int

// The allocation policies.
const (
	// VictimOverall takes blocks from every list in turn.
	VictimOverall VictimPolicy = iota

	// VictimInChip takes blocks from a given list, then from the other
	// planes of the same chip.
	VictimInChip
)

func (p VictimPolicy) String() string {
	switch p {
	case VictimOverall:
		return "overall"
	case VictimInChip:
		return "inchip"
	default:
		return fmt.Sprintf("VictimPolicy(%d)", int(p))
	}
}

// ParseVictimPolicy converts the name of a policy into a VictimPolicy.
func ParseVictimPolicy(name string) (VictimPolicy, error) {
	switch strings.ToLower(name) {
	case "overall", "":
		return VictimOverall, nil
	case "inchip", "in_chip":
		return VictimInChip, nil
	default:
		return 0, fmt.Errorf("unknown victim policy %q", name)
	}
}
