package event

import (
	"github.com/wagoodman/go-partybus"
)

const (
	// ReadArchive is published when a reader is opened; the value is the byte progress of the source.
	ReadArchive partybus.EventType = "read-archive-event"
	// WriteArchive is published when a writer is opened; the value is the byte progress of the output.
	WriteArchive partybus.EventType = "write-archive-event"
)
