package timersync

import (
	"time"

	"github.com/SmitUplenchwar2687/splitghost/internal/splits"
)

// EventKind identifies what an Event reports.
type EventKind string

const (
	EventStatus     EventKind = "status"
	EventSent       EventKind = "sent"
	EventReceived   EventKind = "received"
	EventSuppressed EventKind = "suppressed"
	EventDropped    EventKind = "dropped"
)

// Event is a client lifecycle or traffic notification.
type Event struct {
	Kind    EventKind      `json:"kind"`
	Status  Status         `json:"status"`
	Line    string         `json:"line,omitempty"`
	Command splits.Command `json:"command,omitempty"`
	Time    time.Time      `json:"time"`
}
