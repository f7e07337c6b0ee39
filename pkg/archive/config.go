package archive

import (
	"fmt"

	"github.com/anchore/tarstream/pkg/header"
)

// SizePolicy decides what CloseEntry does when fewer bytes than declared were written.
type SizePolicy int

const (
	// StrictSize rejects a short entry with ErrSizeMismatch.
	StrictSize SizePolicy = iota
	// PadShortEntries fills the missing bytes with zeros.
	PadShortEntries
)

func (p SizePolicy) String() string {
	switch p {
	case StrictSize:
		return "strict"
	case PadShortEntries:
		return "pad"
	}
	return fmt.Sprintf("SizePolicy(%d)", int(p))
}

const (
	// DefaultRecordSize adds no padding beyond the end-of-archive blocks.
	DefaultRecordSize = header.BlockSize

	// DefaultMaxLongNameSize bounds the long-name payload the reader is willing to buffer.
	DefaultMaxLongNameSize = 1 << 20
)

type WriterConfig struct {
	// SizePolicy applied by CloseEntry
	SizePolicy SizePolicy
	// RecordSize is the blocking factor the archive length is padded to on Close (a multiple of the block size)
	RecordSize int
}

func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		SizePolicy: StrictSize,
		RecordSize: DefaultRecordSize,
	}
}

func (c WriterConfig) validate() error {
	if c.RecordSize <= 0 || c.RecordSize%header.BlockSize != 0 {
		return fmt.Errorf("record size must be a positive multiple of %d (got %d)", header.BlockSize, c.RecordSize)
	}
	switch c.SizePolicy {
	case StrictSize, PadShortEntries:
	default:
		return fmt.Errorf("unknown size policy: %s", c.SizePolicy)
	}
	return nil
}

type ReaderConfig struct {
	// MaxLongNameSize is the largest long-name payload accepted; larger records are rejected as malformed
	MaxLongNameSize int64
}

func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		MaxLongNameSize: DefaultMaxLongNameSize,
	}
}

func (c ReaderConfig) validate() error {
	if c.MaxLongNameSize <= 0 {
		return fmt.Errorf("max long-name size must be positive (got %d)", c.MaxLongNameSize)
	}
	return nil
}
