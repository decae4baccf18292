package nand

// pageStorage keeps page payloads. Pages that were never programmed with a
// payload take no memory.
type pageStorage struct {
	pageSize int
	pages    map[PPN][]byte
}

func newPageStorage(pageSize int) *pageStorage {
	return &pageStorage{
		pageSize: pageSize,
		pages:    make(map[PPN][]byte),
	}
}

// read returns a copy of a page. Pages without a payload read as zeros.
func (s *pageStorage) read(ppn PPN) []byte {
	res := make([]byte, s.pageSize)

	if page, ok := s.pages[ppn]; ok {
		copy(res, page)
	}

	return res
}

// write replaces the payload of a page.
func (s *pageStorage) write(ppn PPN, data []byte) {
	if data == nil {
		delete(s.pages, ppn)
		return
	}

	page := make([]byte, s.pageSize)
	copy(page, data)
	s.pages[ppn] = page
}

// eraseRange drops the payloads of count pages starting at first.
func (s *pageStorage) eraseRange(first PPN, count int) {
	for i := 0; i < count; i++ {
		delete(s.pages, first+PPN(i))
	}
}

func (s *pageStorage) len() int {
	return len(s.pages)
}
