package ftl

import (
	"errors"
	"fmt"

	"github.com/sarchlab/ftlsim/nand"
)

var (
	// ErrOutOfRange is returned when a request addresses sectors beyond the
	// device, or carries a payload of the wrong size.
	ErrOutOfRange = errors.New("sector range out of bounds")

	// ErrUnmapped is returned when reading a logical page that was never
	// written.
	ErrUnmapped = errors.New("logical page unmapped")

	// ErrOutOfSpace is returned when no empty block is left.
	ErrOutOfSpace = errors.New("no empty block available")

	// ErrCorruptState is returned when the mapping state breaks an
	// invariant. Once raised, the FTL refuses further requests.
	ErrCorruptState = errors.New("corrupt mapping state")

	errNotAppendable = errors.New("write is not at the block write frontier")
)

// NandError wraps a failure reported by the flash device.
type NandError struct {
	Op   string
	Addr nand.PageAddr
	Err  error
}

func (e *NandError) Error() string {
	return fmt.Sprintf("nand %s at %s failed: %v", e.Op, e.Addr, e.Err)
}

func (e *NandError) Unwrap() error {
	return e.Err
}

func corruptf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrCorruptState}, args...)...)
}
