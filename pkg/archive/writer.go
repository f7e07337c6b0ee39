package archive

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/wagoodman/go-progress"

	"github.com/anchore/tarstream/internal/log"
	"github.com/anchore/tarstream/pkg/entry"
	"github.com/anchore/tarstream/pkg/header"
)

type writerState int

const (
	writerIdle writerState = iota
	writerEntryOpen
	writerClosed
	writerFailed
)

func (s writerState) String() string {
	switch s {
	case writerIdle:
		return "idle"
	case writerEntryOpen:
		return "entry-open"
	case writerClosed:
		return "closed"
	case writerFailed:
		return "failed"
	}
	return fmt.Sprintf("writerState(%d)", int(s))
}

// zeros is the shared source for all padding written by the writer.
var zeros [16 * header.BlockSize]byte

// flusher is implemented by buffered sinks (e.g. *bufio.Writer) that must be flushed before they are closed.
type flusher interface {
	Flush() error
}

// Writer produces a tar archive on an underlying stream one entry at a time: PutEntry writes the header, Write
// supplies the data and CloseEntry pads it to a block boundary. Close terminates the archive.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	sink    io.Writer
	config  WriterConfig
	state   writerState
	current entry.Entry
	written int64
	offset  int64
	failure error
	prog    *progress.Manual
}

// NewWriter returns a writer with the default configuration (strict entry sizes, no record padding).
func NewWriter(w io.Writer) *Writer {
	return newWriter(w, DefaultWriterConfig())
}

// NewWriterWithConfig returns a writer using the given configuration, which is validated first.
func NewWriterWithConfig(w io.Writer, cfg WriterConfig) (*Writer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid writer config: %w", err)
	}
	return newWriter(w, cfg), nil
}

func newWriter(w io.Writer, cfg WriterConfig) *Writer {
	return &Writer{
		sink:   w,
		config: cfg,
		prog:   progress.NewManual(-1),
	}
}

// Progress reports the number of bytes emitted so far; it completes when the writer is closed.
func (w *Writer) Progress() progress.Progressable {
	return w.prog
}

// Offset is the number of bytes successfully handed to the underlying stream.
func (w *Writer) Offset() int64 {
	return w.offset
}

// PutEntry writes the header (and a long-name record if the name does not fit the native field) for the given
// entry and opens it for data. The entry is normalized first. All records are encoded before anything is written,
// so a field overflow leaves the stream untouched and the writer idle.
func (w *Writer) PutEntry(e entry.Entry) error {
	const op = "put-entry"
	if err := w.expect(op, e.Name, writerIdle); err != nil {
		return err
	}

	e = e.Normalized()
	name := e.Name

	// long-name records are emitted by the writer itself; a caller-made one would rename the next entry
	if e.IsLongNameMarker() {
		return w.newError(op, name, errors.Wrapf(header.ErrMalformedField, "type %s cannot be written as an entry", e.TypeFlag))
	}

	var out []byte
	if !header.FitsNativeName(name) {
		record, err := header.EncodeLongName(name)
		if err != nil {
			return w.newError(op, name, err)
		}
		out = record
		e.Name = header.TruncateName(name)
	}

	hdr, err := header.Encode(e)
	if err != nil {
		return w.newError(op, name, err)
	}
	out = append(out, hdr[:]...)

	if _, err := w.write(op, name, out); err != nil {
		return err
	}

	e.Name = name
	w.current = e
	w.written = 0
	w.state = writerEntryOpen

	log.Tracef("tar writer: entry=%q type=%s size=%d", name, e.TypeFlag, e.Size)
	return nil
}

// Write appends data to the open entry. Data beyond the declared size is rejected as a whole with ErrSizeExceeded
// and nothing is written; the writer remains usable.
func (w *Writer) Write(p []byte) (int, error) {
	const op = "write"
	if err := w.expect(op, w.current.Name, writerEntryOpen); err != nil {
		return 0, err
	}

	if w.written+int64(len(p)) > w.current.Size {
		return 0, w.newError(op, w.current.Name, errors.Wrapf(ErrSizeExceeded, "%d bytes written, %d more requested, size is %d", w.written, len(p), w.current.Size))
	}

	n, err := w.write(op, w.current.Name, p)
	w.written += int64(n)
	return n, err
}

// CloseEntry completes the open entry by padding its data to the next block boundary. When fewer bytes than
// declared were written the configured SizePolicy decides: StrictSize returns ErrSizeMismatch and leaves the entry
// open, PadShortEntries fills the gap with zeros.
func (w *Writer) CloseEntry() error {
	const op = "close-entry"
	if err := w.expect(op, w.current.Name, writerEntryOpen); err != nil {
		return err
	}

	name := w.current.Name
	size := w.current.Size

	if missing := size - w.written; missing > 0 {
		if w.config.SizePolicy != PadShortEntries {
			return w.newError(op, name, errors.Wrapf(ErrSizeMismatch, "wrote %d of %d bytes", w.written, size))
		}
		log.Warnf("tar writer: padding short entry=%q with %d zero bytes (wrote %d of %d)", name, missing, w.written, size)
		if err := w.writeZeros(op, name, missing); err != nil {
			return err
		}
		w.written = size
	}

	if err := w.writeZeros(op, name, header.PaddingFor(size)); err != nil {
		return err
	}

	w.state = writerIdle
	return nil
}

// Close terminates the archive with two zero blocks, pads it to the configured record size, flushes and closes the
// underlying stream. Closing with an entry still open or after a failed write releases the stream without writing
// anything further. Close is idempotent.
func (w *Writer) Close() error {
	const op = "close"
	switch w.state {
	case writerClosed:
		return nil
	case writerEntryOpen:
		return w.release(w.newError(op, w.current.Name, errors.Wrapf(ErrInvalidState, "entry still open (wrote %d of %d bytes)", w.written, w.current.Size)))
	case writerFailed:
		return w.release(w.newError(op, "", w.failure))
	}

	if err := w.writeZeros(op, "", 2*header.BlockSize); err != nil {
		return w.release(err)
	}

	record := int64(w.config.RecordSize)
	if pad := (record - w.offset%record) % record; pad > 0 {
		if err := w.writeZeros(op, "", pad); err != nil {
			return w.release(err)
		}
	}

	if f, ok := w.sink.(flusher); ok {
		if err := f.Flush(); err != nil {
			return w.release(w.newError(op, "", fmt.Errorf("unable to flush archive: %w", err)))
		}
	}

	log.Debugf("tar writer: archive closed (bytes=%d)", w.offset)
	return w.release(nil)
}

// release closes the underlying stream (when it is closable) and marks the writer closed, combining any close
// failure with the given error.
func (w *Writer) release(err error) error {
	w.state = writerClosed

	var closeErr error
	if closer, ok := w.sink.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			closeErr = w.newError("close", "", fmt.Errorf("unable to close archive stream: %w", cerr))
		}
	}

	switch {
	case err == nil && closeErr == nil:
		w.prog.SetCompleted()
		return nil
	case closeErr == nil:
		w.prog.SetError(err)
		return err
	case err == nil:
		w.prog.SetError(closeErr)
		return closeErr
	}

	errs := multierror.Append(err, closeErr)
	w.prog.SetError(errs)
	return errs
}

func (w *Writer) expect(op, name string, want writerState) error {
	switch w.state {
	case want:
		return nil
	case writerClosed:
		return w.newError(op, name, ErrClosed)
	case writerFailed:
		return w.newError(op, name, w.failure)
	}
	return w.newError(op, name, errors.Wrapf(ErrInvalidState, "writer is %s, needs %s", w.state, want))
}

// write hands bytes to the sink; any failure makes the writer fail permanently.
func (w *Writer) write(op, name string, p []byte) (int, error) {
	n, err := w.sink.Write(p)
	w.offset += int64(n)
	w.prog.Set(w.offset)

	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		w.failure = err
		w.state = writerFailed
		w.prog.SetError(err)
		log.Errorf("tar writer: write failed entry=%q offset=%d: %+v", name, w.offset, err)
		return n, w.newError(op, name, err)
	}
	return n, nil
}

func (w *Writer) writeZeros(op, name string, n int64) error {
	for n > 0 {
		chunk := int64(len(zeros))
		if n < chunk {
			chunk = n
		}
		if _, err := w.write(op, name, zeros[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

func (w *Writer) newError(op, name string, err error) *Error {
	return &Error{
		Op:     op,
		Name:   name,
		Offset: w.offset,
		Err:    err,
	}
}
