package tarstream

import (
	"fmt"

	"github.com/anchore/tarstream/pkg/archive"
	"github.com/anchore/tarstream/pkg/header"
)

var ErrUnsupportedFormat = fmt.Errorf("unsupported archive format")

// errors raised while encoding or decoding headers
var (
	ErrChecksumMismatch = header.ErrChecksumMismatch
	ErrMalformedField   = header.ErrMalformedField
	ErrFieldOverflow    = header.ErrFieldOverflow
	ErrEndMarker        = header.ErrEndMarker
)

// errors raised by archive readers and writers
var (
	ErrSizeExceeded         = archive.ErrSizeExceeded
	ErrSizeMismatch         = archive.ErrSizeMismatch
	ErrUnexpectedEndOfInput = archive.ErrUnexpectedEndOfInput
	ErrInvalidState         = archive.ErrInvalidState
	ErrClosed               = archive.ErrClosed
)
