package archive

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wagoodman/go-progress"

	"github.com/anchore/tarstream/pkg/entry"
	"github.com/anchore/tarstream/pkg/header"
)

func TestReader_Scenario(t *testing.T) {
	contents := []byte("<?xml version=\"1.0\"?>\n<test1/>\n")
	expected := entry.New("testdata/test1.xml",
		entry.WithSize(int64(len(contents))),
		entry.WithModTime(time.Unix(1568592000, 0)),
		entry.WithOwner(0, 0),
		entry.WithOwnerNames("avalon", "excalibur"),
		entry.WithMode(0o100000),
	)
	out := buildArchive(t, testEntry{entry: expected, data: contents})

	r := NewReader(bytes.NewReader(out))
	actual, err := r.Next()
	require.NoError(t, err)

	if d := cmp.Diff(expected, *actual); d != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", d)
	}

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, contents, data)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_Termination(t *testing.T) {
	single := buildArchive(t, fileEntry("file", []byte("data")))
	// header and one data block, without any end-of-archive marker
	body := single[:2*header.BlockSize]

	garbage := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, header.BlockSize/4)

	tests := []struct {
		name  string
		input []byte
	}{
		{
			name:  "two end blocks",
			input: single,
		},
		{
			name:  "no end blocks",
			input: body,
		},
		{
			name:  "single end block",
			input: append(append([]byte{}, body...), make([]byte, header.BlockSize)...),
		},
		{
			name:  "garbage after single end block",
			input: append(append(append([]byte{}, body...), make([]byte, header.BlockSize)...), garbage...),
		},
		{
			name:  "short garbage after single end block",
			input: append(append(append([]byte{}, body...), make([]byte, header.BlockSize)...), garbage[:10]...),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := NewReader(bytes.NewReader(test.input))

			e, err := r.Next()
			require.NoError(t, err)
			assert.Equal(t, "file", e.Name)

			_, err = r.Next()
			assert.ErrorIs(t, err, io.EOF)
			assert.NotErrorIs(t, err, ErrUnexpectedEndOfInput)

			// stays exhausted
			_, err = r.Next()
			assert.ErrorIs(t, err, io.EOF)
			assert.True(t, progress.IsCompleted(r.Progress()))
		})
	}
}

func TestReader_EmptyInput(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_InputEndsInsidePadding(t *testing.T) {
	out := buildArchive(t, fileEntry("file", []byte("0123456789")))
	input := out[:header.BlockSize+10+100]

	t.Run("after reading data", func(t *testing.T) {
		r := NewReader(bytes.NewReader(input))
		_, err := r.Next()
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("0123456789"), data)

		_, err = r.Next()
		assert.ErrorIs(t, err, io.EOF)
		assert.NotErrorIs(t, err, ErrUnexpectedEndOfInput)
	})

	t.Run("without reading data", func(t *testing.T) {
		r := NewReader(bytes.NewReader(input))
		_, err := r.Next()
		require.NoError(t, err)

		_, err = r.Next()
		assert.ErrorIs(t, err, io.EOF)
		assert.NotErrorIs(t, err, ErrUnexpectedEndOfInput)
	})
}

func TestReader_SkipsUnreadData(t *testing.T) {
	first := pattern(1500)
	second := []byte("second entry")
	out := buildArchive(t, fileEntry("first", first), fileEntry("second", second))

	r := NewReader(bytes.NewReader(out))
	_, err := r.Next()
	require.NoError(t, err)

	partial := make([]byte, 100)
	_, err = io.ReadFull(r, partial)
	require.NoError(t, err)
	assert.Equal(t, first[:100], partial)

	e, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "second", e.Name)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, second, data)
}

func TestReader_ReadIsBoundedByEntrySize(t *testing.T) {
	out := buildArchive(t, fileEntry("file", []byte("abc")))

	r := NewReader(bytes.NewReader(out))
	_, err := r.Next()
	require.NoError(t, err)

	buf := make([]byte, 4096)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("abc"), buf[:n])

	n, err = r.Read(buf)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	// the padding was not consumed by reading data
	assert.Equal(t, int64(header.BlockSize+3), r.Offset())
}

func TestReader_TruncatedData(t *testing.T) {
	out := buildArchive(t, fileEntry("file", pattern(1000)))
	input := out[:header.BlockSize+100]

	t.Run("while reading", func(t *testing.T) {
		r := NewReader(bytes.NewReader(input))
		_, err := r.Next()
		require.NoError(t, err)

		data, err := io.ReadAll(r)
		assert.ErrorIs(t, err, ErrUnexpectedEndOfInput)
		assert.Len(t, data, 100)

		// failures are sticky
		_, err = r.Next()
		assert.ErrorIs(t, err, ErrUnexpectedEndOfInput)
		_, err = r.Read(make([]byte, 1))
		assert.ErrorIs(t, err, ErrUnexpectedEndOfInput)
	})

	t.Run("while skipping", func(t *testing.T) {
		r := NewReader(bytes.NewReader(input))
		_, err := r.Next()
		require.NoError(t, err)

		_, err = r.Next()
		assert.ErrorIs(t, err, ErrUnexpectedEndOfInput)

		var archiveErr *Error
		require.ErrorAs(t, err, &archiveErr)
		assert.Equal(t, "next", archiveErr.Op)
		assert.Equal(t, "file", archiveErr.Name)
	})
}

func TestReader_PartialHeader(t *testing.T) {
	out := buildArchive(t, fileEntry("file", nil))

	r := NewReader(bytes.NewReader(out[:300]))
	_, err := r.Next()
	assert.ErrorIs(t, err, ErrUnexpectedEndOfInput)
}

func TestReader_CorruptHeaderIsFatal(t *testing.T) {
	out := buildArchive(t, fileEntry("first", []byte("1")), fileEntry("second", []byte("2")))
	// corrupt the name of the second header
	out[2*header.BlockSize+3] ^= 0xff

	r := NewReader(bytes.NewReader(out))
	_, err := r.Next()
	require.NoError(t, err)

	_, err = r.Next()
	assert.ErrorIs(t, err, header.ErrChecksumMismatch)

	var archiveErr *Error
	require.ErrorAs(t, err, &archiveErr)
	assert.Equal(t, int64(3*header.BlockSize), archiveErr.Offset)

	_, err = r.Next()
	assert.ErrorIs(t, err, header.ErrChecksumMismatch)
	assert.False(t, progress.IsCompleted(r.Progress()))
}

func TestReader_LongNameRecords(t *testing.T) {
	longA := strings.Repeat("a", 150)
	longB := strings.Repeat("b", 300)

	recordA, err := header.EncodeLongName(longA)
	require.NoError(t, err)
	recordB, err := header.EncodeLongName(longB)
	require.NoError(t, err)
	hdr, err := header.Encode(entry.New(header.TruncateName(longB)))
	require.NoError(t, err)
	end := make([]byte, 2*header.BlockSize)

	join := func(parts ...[]byte) []byte {
		return bytes.Join(parts, nil)
	}

	t.Run("second record replaces the first", func(t *testing.T) {
		r := NewReader(bytes.NewReader(join(recordA, recordB, hdr[:], end)))
		e, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, longB, e.Name)
	})

	t.Run("record followed by end of input", func(t *testing.T) {
		r := NewReader(bytes.NewReader(recordA))
		_, err := r.Next()
		assert.ErrorIs(t, err, ErrUnexpectedEndOfInput)
	})

	t.Run("record followed by end marker", func(t *testing.T) {
		r := NewReader(bytes.NewReader(join(recordA, end)))
		_, err := r.Next()
		assert.ErrorIs(t, err, ErrUnexpectedEndOfInput)
	})

	t.Run("truncated record payload", func(t *testing.T) {
		r := NewReader(bytes.NewReader(recordA[:header.BlockSize+10]))
		_, err := r.Next()
		assert.ErrorIs(t, err, ErrUnexpectedEndOfInput)
	})

	t.Run("record larger than the configured limit", func(t *testing.T) {
		r, err := NewReaderWithConfig(bytes.NewReader(join(recordA, hdr[:], end)), ReaderConfig{MaxLongNameSize: 64})
		require.NoError(t, err)
		_, err = r.Next()
		assert.ErrorIs(t, err, header.ErrMalformedField)
	})
}

func TestReader_StateMisuse(t *testing.T) {
	out := buildArchive(t, fileEntry("file", []byte("x")))
	source := &closableSource{Reader: bytes.NewReader(out)}
	r := NewReader(source)

	_, err := r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, r.Close())
	assert.Equal(t, 1, source.closed)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, r.Close())
	assert.Equal(t, 1, source.closed)
}

func TestNewReaderWithConfig_Invalid(t *testing.T) {
	r, err := NewReaderWithConfig(bytes.NewReader(nil), ReaderConfig{})
	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestReader_Progress(t *testing.T) {
	out := buildArchive(t, fileEntry("a", pattern(700)), fileEntry("b", pattern(3)))

	r := NewReader(bytes.NewReader(out))
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, int64(len(out)), r.Progress().Current())
	assert.Equal(t, int64(len(out)), r.Offset())
	assert.True(t, progress.IsCompleted(r.Progress()))
}

func TestReader_DirectoryFromFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("some/dir", 0o750))

	e, err := entry.FromPath(fs, "some/dir", "")
	require.NoError(t, err)

	out := buildArchive(t, testEntry{entry: e})

	r := NewReader(bytes.NewReader(out))
	actual, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "some/dir/", actual.Name)
	assert.True(t, actual.IsDirectory())
	assert.Zero(t, actual.Size)
	assert.Equal(t, int64(0o40750), actual.Mode)
}

func TestReader_EmptyLongNameRecord(t *testing.T) {
	hdr, err := header.Encode(entry.New("real.txt"))
	require.NoError(t, err)
	end := make([]byte, 2*header.BlockSize)

	emptyPayload, err := header.EncodeLongName("")
	require.NoError(t, err)

	zeroSize, err := header.Encode(entry.Entry{
		Name:     header.LongNameMarker,
		ModTime:  time.Unix(0, 0),
		TypeFlag: entry.TypeLongName,
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		record []byte
	}{
		{name: "only a terminator", record: emptyPayload},
		{name: "zero size", record: zeroSize[:]},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := NewReader(bytes.NewReader(bytes.Join([][]byte{test.record, hdr[:], end}, nil)))
			_, err := r.Next()
			assert.ErrorIs(t, err, header.ErrMalformedField)

			_, err = r.Next()
			assert.ErrorIs(t, err, header.ErrMalformedField)
		})
	}
}
