package parsers

import (
	"fmt"

	"github.com/wagoodman/go-partybus"
	"github.com/wagoodman/go-progress"

	"github.com/anchore/tarstream/pkg/event"
)

type ErrBadPayload struct {
	Type  partybus.EventType
	Field string
	Value interface{}
}

func (e *ErrBadPayload) Error() string {
	return fmt.Sprintf("event='%s' has bad event payload field='%v': '%+v'", string(e.Type), e.Field, e.Value)
}

func newPayloadErr(t partybus.EventType, field string, value interface{}) error {
	return &ErrBadPayload{
		Type:  t,
		Field: field,
		Value: value,
	}
}

func checkEventType(actual, expected partybus.EventType) error {
	if actual != expected {
		return newPayloadErr(expected, "Type", actual)
	}
	return nil
}

func ParseReadArchive(e partybus.Event) (string, progress.Progressable, error) {
	return parseArchiveEvent(e, event.ReadArchive)
}

func ParseWriteArchive(e partybus.Event) (string, progress.Progressable, error) {
	return parseArchiveEvent(e, event.WriteArchive)
}

func parseArchiveEvent(e partybus.Event, expected partybus.EventType) (string, progress.Progressable, error) {
	if err := checkEventType(e.Type, expected); err != nil {
		return "", nil, err
	}

	name, ok := e.Source.(string)
	if !ok {
		return "", nil, newPayloadErr(e.Type, "Source", e.Source)
	}

	prog, ok := e.Value.(progress.Progressable)
	if !ok {
		return "", nil, newPayloadErr(e.Type, "Value", e.Value)
	}

	return name, prog, nil
}
