package archive

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anchore/tarstream/pkg/entry"
)

var errBoom = errors.New("boom")

type testEntry struct {
	entry entry.Entry
	data  []byte
}

func fileEntry(name string, data []byte, options ...entry.Option) testEntry {
	return testEntry{
		entry: entry.New(name, append([]entry.Option{entry.WithSize(int64(len(data)))}, options...)...),
		data:  data,
	}
}

// buildArchive writes the given entries with a default writer and returns the complete archive.
func buildArchive(t *testing.T, entries ...testEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, te := range entries {
		require.NoError(t, w.PutEntry(te.entry))
		if len(te.data) > 0 {
			_, err := w.Write(te.data)
			require.NoError(t, err)
		}
		require.NoError(t, w.CloseEntry())
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func pattern(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// recordingSink is an archive sink that tracks flush and close calls.
type recordingSink struct {
	bytes.Buffer
	flushed  int
	closed   int
	flushErr error
	closeErr error
}

func (s *recordingSink) Flush() error {
	s.flushed++
	return s.flushErr
}

func (s *recordingSink) Close() error {
	s.closed++
	return s.closeErr
}

// failingSink accepts limit bytes and then fails every write.
type failingSink struct {
	bytes.Buffer
	limit  int
	closed int
}

func (s *failingSink) Write(p []byte) (int, error) {
	room := s.limit - s.Len()
	if room >= len(p) {
		return s.Buffer.Write(p)
	}
	if room > 0 {
		s.Buffer.Write(p[:room])
		return room, errBoom
	}
	return 0, errBoom
}

func (s *failingSink) Close() error {
	s.closed++
	return nil
}

// closableSource is an archive source that tracks close calls.
type closableSource struct {
	*bytes.Reader
	closed int
}

func (s *closableSource) Close() error {
	s.closed++
	return nil
}
