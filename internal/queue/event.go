// Package queue defines the change events exchanged over the message broker
// and the consumer that feeds them back into this replica.
package queue

import (
	"encoding/json"
	"time"
)

// Event names broadcast to live boards.
const (
	EventQueueUpdated       = "queue-updated"
	EventCheckStatusUpdated = "check-status-updated"
	EventSectionAdded       = "section-added"
	EventSectionUpdated     = "section-updated"
	EventSectionDeleted     = "section-deleted"
	EventCustomerUploaded   = "customer-uploaded"
)

// Event is the envelope published after a committed mutation.  Section is
// set for queue events so subscribers can refresh a single board; Data
// carries the event-specific payload, already encoded.
type Event struct {
	Name    string          `json:"event"`
	Section string          `json:"section,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	At      time.Time       `json:"at"`
}

// NewEvent builds an event stamped with the current UTC time.  data may be
// nil.
func NewEvent(name, section string, data any) Event {
	ev := Event{Name: name, Section: section, At: time.Now().UTC()}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			ev.Data = b
		}
	}
	return ev
}

// QueueUpdated is emitted after any change to a section's ticket list or
// serving marker.
func QueueUpdated(section string) Event {
	return NewEvent(EventQueueUpdated, section, map[string]string{"section": section})
}

// CheckStatusUpdated is emitted after any ledger mutation.
func CheckStatusUpdated() Event {
	return NewEvent(EventCheckStatusUpdated, "", nil)
}
