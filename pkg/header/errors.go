package header

import "github.com/pkg/errors"

var (
	// ErrEndMarker is returned when decoding an all-zero block. Two consecutive end markers terminate an archive.
	ErrEndMarker = errors.New("end of archive marker")

	// ErrChecksumMismatch is returned when the stored header checksum does not match the computed one.
	ErrChecksumMismatch = errors.New("header checksum mismatch")

	// ErrMalformedField is returned when a header field holds a byte pattern that cannot be parsed.
	ErrMalformedField = errors.New("malformed header field")

	// ErrFieldOverflow is returned when a value cannot be represented within the width of its header field.
	ErrFieldOverflow = errors.New("header field overflow")
)
