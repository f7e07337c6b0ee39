package bus

import "github.com/wagoodman/go-partybus"

var publisher partybus.Publisher
var active bool

// SetPublisher sets the singleton event bus publisher. Passing nil disables publishing.
func SetPublisher(p partybus.Publisher) {
	publisher = p
	active = p != nil
}

// Publish an event onto the bus. If there is no bus set by the calling application, this does nothing.
func Publish(event partybus.Event) {
	if active {
		publisher.Publish(event)
	}
}
