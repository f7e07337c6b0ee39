package tarstream

import (
	"io"
	"slices"

	"github.com/anchore/go-collections"

	"github.com/anchore/tarstream/pkg/archive"
)

const (
	TarFormat = "tar"
	UstarTag  = "ustar"
	GNUTarTag = "gnutar"
)

// Format knows how to open readers and writers for one archive layout.
type Format interface {
	Name() string
	NewWriter(w io.Writer, cfg archive.WriterConfig) (*archive.Writer, error)
	NewReader(r io.Reader, cfg archive.ReaderConfig) (*archive.Reader, error)
}

// tarFormat is the ustar layout with GNU long-name records and base-256 numbers.
type tarFormat struct{}

func (tarFormat) Name() string {
	return TarFormat
}

func (tarFormat) NewWriter(w io.Writer, cfg archive.WriterConfig) (*archive.Writer, error) {
	return archive.NewWriterWithConfig(w, cfg)
}

func (tarFormat) NewReader(r io.Reader, cfg archive.ReaderConfig) (*archive.Reader, error) {
	return archive.NewReaderWithConfig(r, cfg)
}

// Formats returns every supported archive format, tagged with the names it can be selected by.
func Formats() []collections.TaggedValue[Format] {
	return []collections.TaggedValue[Format]{
		taggedFormat(tarFormat{}, UstarTag, GNUTarTag),
	}
}

func taggedFormat(format Format, tags ...string) collections.TaggedValue[Format] {
	return collections.NewTaggedValue[Format](format, append([]string{format.Name()}, tags...)...)
}

// FormatNames lists every name a format can be selected by.
func FormatNames() []string {
	return collections.TaggedValueSet[Format]{}.Join(Formats()...).Tags()
}

func lookupFormat(name string) (Format, bool) {
	for _, f := range Formats() {
		if slices.Contains(f.Tags, name) {
			return f.Value, true
		}
	}
	return nil, false
}
