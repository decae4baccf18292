package nand

import (
	"errors"
	"fmt"
)

// Device is the set of flash operations a translation layer may issue.
type Device interface {
	// ReadPage returns the content of a page. Devices that do not keep
	// payloads return nil.
	ReadPage(addr PageAddr) ([]byte, error)

	// WritePage programs an erased page. A nil data programs the page
	// without a payload.
	WritePage(addr PageAddr, data []byte) error

	// PartialWrite programs dst with the content of src, with the sectors
	// starting at sectorOffset replaced by data.
	PartialWrite(src, dst PageAddr, sectorOffset int, data []byte) error

	// EraseBlock erases all the pages of a block.
	EraseBlock(addr BlockAddr) error
}

var (
	// ErrProgramWithoutErase is returned when programming a page that has
	// been programmed since the last erase of its block.
	ErrProgramWithoutErase = errors.New("page programmed without erase")

	// ErrAddress is returned for addresses outside of the array.
	ErrAddress = errors.New("address out of range")

	// ErrPayloadSize is returned when a payload does not fit its page.
	ErrPayloadSize = errors.New("payload does not fit the page")
)

// Error describes a failed flash operation.
type Error struct {
	Op   string
	Addr PageAddr
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("nand %s at %s: %v", e.Op, e.Addr, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
