package archive

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/wagoodman/go-progress"

	"github.com/anchore/tarstream/internal/log"
	"github.com/anchore/tarstream/pkg/entry"
	"github.com/anchore/tarstream/pkg/header"
)

type readerState int

const (
	readerBeforeEntry readerState = iota
	readerInEntry
	readerExhausted
	readerClosed
	readerFailed
)

func (s readerState) String() string {
	switch s {
	case readerBeforeEntry:
		return "before-entry"
	case readerInEntry:
		return "in-entry"
	case readerExhausted:
		return "exhausted"
	case readerClosed:
		return "closed"
	case readerFailed:
		return "failed"
	}
	return fmt.Sprintf("readerState(%d)", int(s))
}

// Reader walks the entries of a tar archive from an underlying stream. Next advances to the following entry
// (skipping whatever data of the current one was not consumed) and Read returns the data of the current entry.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	source    io.Reader
	config    ReaderConfig
	state     readerState
	current   entry.Entry
	remaining int64
	offset    int64
	failure   error
	block     header.Block
	prog      *progress.Manual
}

// NewReader returns a reader with the default configuration.
func NewReader(r io.Reader) *Reader {
	return newReader(r, DefaultReaderConfig())
}

// NewReaderWithConfig returns a reader using the given configuration, which is validated first.
func NewReaderWithConfig(r io.Reader, cfg ReaderConfig) (*Reader, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid reader config: %w", err)
	}
	return newReader(r, cfg), nil
}

func newReader(r io.Reader, cfg ReaderConfig) *Reader {
	return &Reader{
		source: r,
		config: cfg,
		prog:   progress.NewManual(-1),
	}
}

// Progress reports the number of bytes consumed from the source; it completes at the end of the archive.
func (r *Reader) Progress() progress.Progressable {
	return r.prog
}

// Offset is the number of bytes consumed from the source so far.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Next advances to the next entry and returns its metadata. At the end of the archive it returns io.EOF; this
// includes a source that simply ends on a block boundary without any end-of-archive marker. Long-name records are
// resolved here and never surface as entries. Malformed headers and truncated input are fatal: every later call
// returns the same failure.
func (r *Reader) Next() (*entry.Entry, error) {
	const op = "next"
	switch r.state {
	case readerExhausted:
		return nil, io.EOF
	case readerClosed:
		return nil, r.newError(op, "", ErrClosed)
	case readerFailed:
		return nil, r.newError(op, "", r.failure)
	case readerInEntry:
		done, err := r.skipCurrent(op)
		if err != nil {
			return nil, err
		}
		if done {
			return nil, io.EOF
		}
	}

	var longName *string
	for {
		n, err := io.ReadFull(r.source, r.block[:])
		r.advance(n)
		switch {
		case errors.Is(err, io.EOF):
			if longName != nil {
				return nil, r.fail(op, *longName, errors.Wrap(ErrUnexpectedEndOfInput, "long-name record not followed by a header"))
			}
			log.Debugf("tar reader: input ended without end-of-archive marker (offset=%d)", r.offset)
			r.exhaust()
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, r.fail(op, "", errors.Wrapf(ErrUnexpectedEndOfInput, "partial header block (%d of %d bytes)", n, header.BlockSize))
		case err != nil:
			return nil, r.fail(op, "", err)
		}

		e, err := header.Decode(&r.block)
		if errors.Is(err, header.ErrEndMarker) {
			if longName != nil {
				return nil, r.fail(op, *longName, errors.Wrap(ErrUnexpectedEndOfInput, "long-name record followed by end-of-archive marker"))
			}
			r.discardTrailer()
			return nil, io.EOF
		}
		if err != nil {
			return nil, r.fail(op, "", err)
		}

		if e.IsLongNameMarker() {
			name, err := r.readLongName(op, e.Size)
			if err != nil {
				return nil, err
			}
			// a second marker simply replaces the pending name
			longName = &name
			continue
		}

		if longName != nil {
			e.Name = *longName
		}

		r.current = e
		r.remaining = e.Size
		r.state = readerInEntry

		log.Tracef("tar reader: entry=%q type=%s size=%d", e.Name, e.TypeFlag, e.Size)
		return &e, nil
	}
}

// Read reads data of the current entry, never past its declared size. It returns io.EOF once the entry data is
// exhausted; block padding is not part of the data and is skipped by Next.
func (r *Reader) Read(p []byte) (int, error) {
	const op = "read"
	switch r.state {
	case readerInEntry:
	case readerExhausted:
		return 0, io.EOF
	case readerClosed:
		return 0, r.newError(op, r.current.Name, ErrClosed)
	case readerFailed:
		return 0, r.newError(op, r.current.Name, r.failure)
	default:
		return 0, r.newError(op, "", errors.Wrapf(ErrInvalidState, "reader is %s, needs %s", r.state, readerInEntry))
	}

	if r.remaining == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}

	n, err := r.source.Read(p)
	r.remaining -= int64(n)
	r.advance(n)

	switch {
	case errors.Is(err, io.EOF):
		if r.remaining > 0 {
			return n, r.fail(op, r.current.Name, errors.Wrapf(ErrUnexpectedEndOfInput, "entry data truncated (%d bytes missing)", r.remaining))
		}
		return n, nil
	case err != nil:
		return n, r.fail(op, r.current.Name, err)
	}
	return n, nil
}

// Close releases the underlying stream if it is closable. Close is idempotent.
func (r *Reader) Close() error {
	if r.state == readerClosed {
		return nil
	}
	if r.state != readerFailed {
		r.prog.SetCompleted()
	}
	r.state = readerClosed

	if closer, ok := r.source.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return r.newError("close", "", fmt.Errorf("unable to close archive stream: %w", err))
		}
	}
	return nil
}

// skipCurrent discards the unread data and the padding of the current entry. Input that ends inside the padding is
// treated as the end of the archive, in which case done is true.
func (r *Reader) skipCurrent(op string) (done bool, err error) {
	name := r.current.Name

	if r.remaining > 0 {
		n, err := io.CopyN(io.Discard, r.source, r.remaining)
		r.remaining -= n
		r.advance64(n)
		switch {
		case errors.Is(err, io.EOF):
			return false, r.fail(op, name, errors.Wrapf(ErrUnexpectedEndOfInput, "entry data truncated (%d bytes missing)", r.remaining))
		case err != nil:
			return false, r.fail(op, name, err)
		}
	}

	padding := header.PaddingFor(r.current.Size)
	if padding > 0 {
		n, err := io.CopyN(io.Discard, r.source, padding)
		r.advance64(n)
		switch {
		case errors.Is(err, io.EOF):
			log.Debugf("tar reader: input ended inside padding of entry=%q (offset=%d)", name, r.offset)
			r.exhaust()
			return true, nil
		case err != nil:
			return false, r.fail(op, name, err)
		}
	}

	r.state = readerBeforeEntry
	return false, nil
}

func (r *Reader) readLongName(op string, size int64) (string, error) {
	if size > r.config.MaxLongNameSize {
		return "", r.fail(op, header.LongNameMarker, errors.Wrapf(header.ErrMalformedField, "long-name record of %d bytes exceeds limit of %d", size, r.config.MaxLongNameSize))
	}

	buf := make([]byte, header.BlocksFor(size)*header.BlockSize)
	n, err := io.ReadFull(r.source, buf)
	r.advance(n)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "", r.fail(op, header.LongNameMarker, errors.Wrapf(ErrUnexpectedEndOfInput, "long-name record truncated (%d of %d bytes)", n, len(buf)))
	case err != nil:
		return "", r.fail(op, header.LongNameMarker, err)
	}

	name := header.ParseLongName(buf[:size])
	if name == "" {
		return "", r.fail(op, header.LongNameMarker, errors.Wrapf(header.ErrMalformedField, "empty long-name record (size %d)", size))
	}
	return name, nil
}

// discardTrailer consumes the block following the first end-of-archive marker. Whatever it holds (a second
// marker, garbage or nothing at all) is never interpreted.
func (r *Reader) discardTrailer() {
	n, err := io.ReadFull(r.source, r.block[:])
	r.advance(n)
	switch {
	case err != nil:
		log.Debugf("tar reader: single end-of-archive marker (offset=%d): %v", r.offset, err)
	case !r.block.IsZero():
		log.Debugf("tar reader: ignoring non-zero block after end-of-archive marker (offset=%d)", r.offset)
	}
	r.exhaust()
}

func (r *Reader) exhaust() {
	r.state = readerExhausted
	r.prog.SetCompleted()
}

func (r *Reader) fail(op, name string, err error) error {
	r.failure = err
	r.state = readerFailed
	r.prog.SetError(err)
	log.Errorf("tar reader: failed entry=%q offset=%d: %+v", name, r.offset, err)
	return r.newError(op, name, err)
}

func (r *Reader) advance(n int) {
	r.advance64(int64(n))
}

func (r *Reader) advance64(n int64) {
	r.offset += n
	r.prog.Set(r.offset)
}

func (r *Reader) newError(op, name string, err error) *Error {
	return &Error{
		Op:     op,
		Name:   name,
		Offset: r.offset,
		Err:    err,
	}
}
