package archive

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrSizeExceeded is returned by Writer.Write when the data would exceed the declared entry size. Nothing is
	// written and the writer remains usable.
	ErrSizeExceeded = errors.New("write exceeds declared entry size")

	// ErrSizeMismatch is returned by Writer.CloseEntry when fewer bytes than declared were written.
	ErrSizeMismatch = errors.New("entry data shorter than declared size")

	// ErrUnexpectedEndOfInput is returned when the source ends in the middle of a header, a long-name payload or
	// entry data.
	ErrUnexpectedEndOfInput = errors.New("unexpected end of archive input")

	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrClosed is returned for any operation on a closed reader or writer.
	ErrClosed = errors.New("archive already closed")
)

// Error describes a failed reader or writer operation: which operation, on which entry, at which byte offset of the
// archive stream. It unwraps to the underlying cause.
type Error struct {
	Op     string
	Name   string
	Offset int64
	Err    error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("tar %s (offset=%d): %v", e.Op, e.Offset, e.Err)
	}
	return fmt.Sprintf("tar %s entry=%q (offset=%d): %v", e.Op, e.Name, e.Offset, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
