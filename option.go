package tarstream

import (
	"fmt"

	"github.com/anchore/tarstream/pkg/archive"
	"github.com/anchore/tarstream/pkg/header"
)

type Option func(*config) error

type config struct {
	Name            string
	SizePolicy      archive.SizePolicy
	RecordSize      int
	MaxLongNameSize int64
}

func defaultConfig() config {
	w := archive.DefaultWriterConfig()
	r := archive.DefaultReaderConfig()
	return config{
		SizePolicy:      w.SizePolicy,
		RecordSize:      w.RecordSize,
		MaxLongNameSize: r.MaxLongNameSize,
	}
}

func (c config) writerConfig() archive.WriterConfig {
	return archive.WriterConfig{
		SizePolicy: c.SizePolicy,
		RecordSize: c.RecordSize,
	}
}

func (c config) readerConfig() archive.ReaderConfig {
	return archive.ReaderConfig{
		MaxLongNameSize: c.MaxLongNameSize,
	}
}

func applyOptions(cfg *config, options ...Option) error {
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(cfg); err != nil {
			return fmt.Errorf("unable to parse option: %w", err)
		}
	}
	return nil
}

// WithName labels the archive in published events (e.g. a file path).
func WithName(name string) Option {
	return func(c *config) error {
		c.Name = name
		return nil
	}
}

// WithSizePolicy decides how a writer treats entries closed before all declared data was written.
func WithSizePolicy(policy archive.SizePolicy) Option {
	return func(c *config) error {
		switch policy {
		case archive.StrictSize, archive.PadShortEntries:
		default:
			return fmt.Errorf("unknown size policy: %s", policy)
		}
		c.SizePolicy = policy
		return nil
	}
}

// WithRecordSize sets the blocking factor a written archive is padded to; GNU tar uses 10240.
func WithRecordSize(size int) Option {
	return func(c *config) error {
		if size <= 0 || size%header.BlockSize != 0 {
			return fmt.Errorf("record size must be a positive multiple of %d (got %d)", header.BlockSize, size)
		}
		c.RecordSize = size
		return nil
	}
}

// WithMaxLongNameSize bounds the long-name records a reader accepts.
func WithMaxLongNameSize(size int64) Option {
	return func(c *config) error {
		if size <= 0 {
			return fmt.Errorf("max long-name size must be positive (got %d)", size)
		}
		c.MaxLongNameSize = size
		return nil
	}
}
