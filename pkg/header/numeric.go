package header

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// EncodeNumericField renders value into a field of the given width. Values that fit are written as zero-padded
// octal ASCII followed by a NUL. Larger (or negative) values fall back to big-endian base-256, flagged by the
// high bit of the first byte. ErrFieldOverflow is returned when neither form can hold the value.
func EncodeNumericField(value int64, width int) ([]byte, error) {
	if width < 2 {
		return nil, errors.Wrapf(ErrFieldOverflow, "width %d is too small for a numeric field", width)
	}
	b := make([]byte, width)
	switch {
	case fitsOctal(value, width):
		formatOctal(b, value)
	case fitsBase256(value, width):
		formatBase256(b, value)
	default:
		return nil, errors.Wrapf(ErrFieldOverflow, "value %d does not fit in %d bytes", value, width)
	}
	return b, nil
}

// IsBase256 reports whether a numeric field is in the binary (base-256) form.
func IsBase256(b []byte) bool {
	return len(b) > 0 && b[0]&0x80 != 0
}

// ParseNumericField is the inverse of EncodeNumericField. Octal fields may be padded with leading spaces or NULs
// and terminated by spaces or NULs; an empty field is 0.
func ParseNumericField(b []byte) (int64, error) {
	if IsBase256(b) {
		return parseBase256(b)
	}
	return parseOctal(b)
}

func fitsOctal(x int64, width int) bool {
	digits := width - 1
	if x < 0 {
		return false
	}
	if digits >= 21 {
		return true
	}
	return x < 1<<(3*uint(digits))
}

func fitsBase256(x int64, width int) bool {
	bits := uint(width-1) * 8
	if width >= 9 {
		return true
	}
	return x >= -1<<bits && x < 1<<bits
}

func formatOctal(b []byte, x int64) {
	s := strconv.FormatInt(x, 8)
	digits := len(b) - 1
	copy(b, strings.Repeat("0", digits-len(s))+s)
	b[digits] = 0
}

func formatBase256(b []byte, x int64) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(x)
		x >>= 8
	}
	b[0] |= 0x80
}

func parseBase256(b []byte) (int64, error) {
	// negative values are stored as two's complement; invert so the magnitude can be accumulated unsigned
	var inv byte
	if b[0]&0x40 != 0 {
		inv = 0xff
	}

	var x uint64
	for i, c := range b {
		c ^= inv
		if i == 0 {
			c &= 0x7f
		}
		if x>>56 > 0 {
			return 0, errors.Wrapf(ErrMalformedField, "base-256 value % x overflows int64", b)
		}
		x = x<<8 | uint64(c)
	}
	if x>>63 > 0 {
		return 0, errors.Wrapf(ErrMalformedField, "base-256 value % x overflows int64", b)
	}
	if inv == 0xff {
		return ^int64(x), nil
	}
	return int64(x), nil
}

func parseOctal(b []byte) (int64, error) {
	start := 0
	for start < len(b) && (b[start] == ' ' || b[start] == 0) {
		start++
	}
	end := start
	for end < len(b) && b[end] != ' ' && b[end] != 0 {
		end++
	}
	for _, c := range b[end:] {
		if c != ' ' && c != 0 {
			return 0, errors.Wrapf(ErrMalformedField, "unexpected data after octal value %q", b)
		}
	}

	digits := b[start:end]
	if len(digits) == 0 {
		return 0, nil
	}
	for _, c := range digits {
		if c < '0' || c > '7' {
			return 0, errors.Wrapf(ErrMalformedField, "invalid octal value %q", b)
		}
	}
	x, err := strconv.ParseInt(string(digits), 8, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedField, "invalid octal value %q: %v", b, err)
	}
	return x, nil
}
