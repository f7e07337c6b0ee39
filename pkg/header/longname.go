package header

import (
	"time"

	"github.com/pkg/errors"

	"github.com/anchore/tarstream/pkg/entry"
)

// LongNameMarker is the placeholder name GNU tar stores in the header of a long-name record.
const LongNameMarker = "././@LongLink"

// NewLongNameMarker returns the header metadata announcing a long name of nameLen bytes. The recorded size
// includes the trailing NUL written after the name.
func NewLongNameMarker(nameLen int) entry.Entry {
	return entry.Entry{
		Name:     LongNameMarker,
		Size:     int64(nameLen) + 1,
		ModTime:  time.Unix(0, 0),
		TypeFlag: entry.TypeLongName,
	}
}

// EncodeLongName renders the complete long-name record for name: the marker header followed by the NUL terminated
// name zero-padded to a block boundary.
func EncodeLongName(name string) ([]byte, error) {
	marker := NewLongNameMarker(len(name))
	hdr, err := Encode(marker)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode long-name marker")
	}

	out := make([]byte, BlockSize+BlocksFor(marker.Size)*BlockSize)
	copy(out, hdr[:])
	copy(out[BlockSize:], name)
	return out, nil
}

// ParseLongName extracts the name from a long-name payload that has already been trimmed to the declared size.
func ParseLongName(payload []byte) string {
	return cString(payload)
}

// TruncateName cuts a name to fit the native name field; used for the header that follows a long-name record.
func TruncateName(name string) string {
	if FitsNativeName(name) {
		return name
	}
	return name[:NameSize]
}
