package tarstream

import (
	"fmt"
	"io"

	"github.com/anchore/go-logger"
	"github.com/wagoodman/go-partybus"

	"github.com/anchore/tarstream/internal/bus"
	"github.com/anchore/tarstream/internal/log"
	"github.com/anchore/tarstream/pkg/archive"
	"github.com/anchore/tarstream/pkg/event"
)

// NewWriter returns an archive writer of the named format (see FormatNames) on top of w. Closing the writer
// closes w when it is closable.
func NewWriter(format string, w io.Writer, options ...Option) (*archive.Writer, error) {
	cfg := defaultConfig()
	if err := applyOptions(&cfg, options...); err != nil {
		return nil, err
	}

	f, ok := lookupFormat(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnsupportedFormat, format, FormatNames())
	}

	aw, err := f.NewWriter(w, cfg.writerConfig())
	if err != nil {
		return nil, err
	}

	log.Debugf("writing %s archive name=%q policy=%s record-size=%d", f.Name(), cfg.Name, cfg.SizePolicy, cfg.RecordSize)
	bus.Publish(partybus.Event{
		Type:   event.WriteArchive,
		Source: cfg.Name,
		Value:  aw.Progress(),
	})

	return aw, nil
}

// NewReader returns an archive reader of the named format (see FormatNames) on top of r. Closing the reader
// closes r when it is closable.
func NewReader(format string, r io.Reader, options ...Option) (*archive.Reader, error) {
	cfg := defaultConfig()
	if err := applyOptions(&cfg, options...); err != nil {
		return nil, err
	}

	f, ok := lookupFormat(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnsupportedFormat, format, FormatNames())
	}

	ar, err := f.NewReader(r, cfg.readerConfig())
	if err != nil {
		return nil, err
	}

	log.Debugf("reading %s archive name=%q", f.Name(), cfg.Name)
	bus.Publish(partybus.Event{
		Type:   event.ReadArchive,
		Source: cfg.Name,
		Value:  ar.Progress(),
	})

	return ar, nil
}

func SetLogger(l logger.Logger) {
	log.Log = l
}

func SetBus(b *partybus.Bus) {
	if b == nil {
		// avoid storing a typed nil as the publisher
		bus.SetPublisher(nil)
		return
	}
	bus.SetPublisher(b)
}
