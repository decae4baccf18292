package ftl

// Stats counts what the FTL has done since it was built.
type Stats struct {
	Reads    uint64 `json:"reads"`
	Writes   uint64 `json:"writes"`
	Discards uint64 `json:"discards"`
	Failures uint64 `json:"failures"`

	HostReadPages  uint64 `json:"host_read_pages"`
	HostWritePages uint64 `json:"host_write_pages"`
	DiscardedPages uint64 `json:"discarded_pages"`
	PartialWrites  uint64 `json:"partial_writes"`

	CopiedPages uint64 `json:"copied_pages"`
	BlockErases uint64 `json:"block_erases"`
	GCRounds    uint64 `json:"gc_rounds"`

	Exchanges     uint64 `json:"exchanges"`
	SwitchMerges  uint64 `json:"switch_merges"`
	PartialMerges uint64 `json:"partial_merges"`
	FullMerges    uint64 `json:"full_merges"`
	Relocations   uint64 `json:"relocations"`

	EmptyBlocks int  `json:"empty_blocks"`
	Corrupted   bool `json:"corrupted"`
}

// WriteAmplification returns the pages programmed per page the host wrote.
func (s Stats) WriteAmplification() float64 {
	if s.HostWritePages == 0 {
		return 0
	}

	return float64(s.HostWritePages+s.CopiedPages) / float64(s.HostWritePages)
}
