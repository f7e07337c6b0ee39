package header

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/anchore/tarstream/pkg/entry"
)

// FitsNativeName reports whether name can be stored in the native name field without a long-name record.
func FitsNativeName(name string) bool {
	return len(name) <= NameSize
}

// Encode renders the entry metadata as a header block. The checksum is computed last, once every other field is in
// place. Names longer than NameSize are rejected with ErrFieldOverflow; emitting a long-name record is up to the
// caller (see EncodeLongName).
func Encode(e entry.Entry) (*Block, error) {
	var b Block

	if e.Size < 0 {
		return nil, errors.Wrapf(ErrFieldOverflow, "field %q: negative size %d", fieldSize.name, e.Size)
	}

	for _, s := range []struct {
		f     field
		value string
	}{
		{fieldName, e.Name},
		{fieldLinkName, e.LinkName},
		{fieldUserName, e.UserName},
		{fieldGroupName, e.GroupName},
	} {
		if err := putString(&b, s.f, s.value); err != nil {
			return nil, err
		}
	}

	gnu := e.TypeFlag == entry.TypeLongName
	for _, n := range []struct {
		f     field
		value int64
	}{
		{fieldMode, e.Mode},
		{fieldUID, e.UserID},
		{fieldGID, e.GroupID},
		{fieldSize, e.Size},
		{fieldModTime, e.ModTime.Unix()},
		{fieldDevMajor, e.DevMajor},
		{fieldDevMinor, e.DevMinor},
	} {
		if err := putNumeric(&b, n.f, n.value); err != nil {
			return nil, err
		}
		if IsBase256(n.f.of(&b)) {
			gnu = true
		}
	}

	typeFlag := e.TypeFlag
	if typeFlag == entry.TypeRegularA {
		typeFlag = entry.TypeRegular
	}
	fieldTypeFlag.of(&b)[0] = byte(typeFlag)

	// base-256 numbers and long-name records are GNU extensions, so say so in the magic
	if gnu {
		copy(fieldMagic.of(&b), magicGNU)
		copy(fieldVersion.of(&b), versionGNU)
	} else {
		copy(fieldMagic.of(&b), magicPOSIX)
		copy(fieldVersion.of(&b), versionPOSIX)
	}

	// six octal digits, a NUL and a space
	copy(fieldChecksum.of(&b), fmt.Sprintf("%06o\x00 ", Checksum(&b)))

	return &b, nil
}

// Decode parses a header block into entry metadata. An all-zero block yields ErrEndMarker. The checksum is verified
// before any other field is interpreted.
func Decode(b *Block) (entry.Entry, error) {
	if b.IsZero() {
		return entry.Entry{}, ErrEndMarker
	}

	stored, err := ParseNumericField(fieldChecksum.of(b))
	if err != nil {
		return entry.Entry{}, errors.Wrapf(err, "field %q", fieldChecksum.name)
	}
	if computed := Checksum(b); stored != computed {
		return entry.Entry{}, errors.Wrapf(ErrChecksumMismatch, "stored=%d computed=%d", stored, computed)
	}

	var e entry.Entry
	for _, n := range []struct {
		f    field
		dest *int64
	}{
		{fieldMode, &e.Mode},
		{fieldUID, &e.UserID},
		{fieldGID, &e.GroupID},
		{fieldSize, &e.Size},
		{fieldDevMajor, &e.DevMajor},
		{fieldDevMinor, &e.DevMinor},
	} {
		if *n.dest, err = parseField(b, n.f); err != nil {
			return entry.Entry{}, err
		}
	}

	mtime, err := parseField(b, fieldModTime)
	if err != nil {
		return entry.Entry{}, err
	}
	e.ModTime = time.Unix(mtime, 0)

	if e.Size < 0 {
		return entry.Entry{}, errors.Wrapf(ErrMalformedField, "field %q: negative size %d", fieldSize.name, e.Size)
	}

	e.Name = cString(fieldName.of(b))
	e.LinkName = cString(fieldLinkName.of(b))
	e.UserName = cString(fieldUserName.of(b))
	e.GroupName = cString(fieldGroupName.of(b))

	e.TypeFlag = entry.TypeFlag(fieldTypeFlag.of(b)[0])
	if e.TypeFlag == entry.TypeRegularA {
		e.TypeFlag = entry.TypeRegular
	}

	// POSIX ustar archives may split long names between the prefix and name fields
	if string(fieldMagic.of(b)) == magicPOSIX {
		if prefix := cString(fieldPrefix.of(b)); prefix != "" {
			e.Name = prefix + entry.Separator + e.Name
		}
	}

	return e, nil
}

func putString(b *Block, f field, s string) error {
	if len(s) > f.width() {
		return errors.Wrapf(ErrFieldOverflow, "field %q: %d bytes exceeds width %d", f.name, len(s), f.width())
	}
	copy(f.of(b), s)
	return nil
}

func putNumeric(b *Block, f field, value int64) error {
	encoded, err := EncodeNumericField(value, f.width())
	if err != nil {
		return errors.Wrapf(err, "field %q", f.name)
	}
	copy(f.of(b), encoded)
	return nil
}

func parseField(b *Block, f field) (int64, error) {
	value, err := ParseNumericField(f.of(b))
	if err != nil {
		return 0, errors.Wrapf(err, "field %q", f.name)
	}
	return value, nil
}

// cString returns the bytes up to the first NUL (or the whole slice when there is none).
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
