// Package events defines the wire structures published to the
// notification dispatcher boundary.
package events

import (
	"time"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/store"
)

// SchemaVersion is the current alert event schema version.
const SchemaVersion = 1

// Event types.
const (
	TypeCreated  = "created"
	TypeResolved = "resolved"
)

// AlertEvent is published whenever an alert instance is created or
// resolved. Downstream delivery (channels, batching, rate limiting) is the
// dispatcher's responsibility.
type AlertEvent struct {
	Type          string      `json:"type"`
	SchemaVersion int         `json:"schema_version"`
	EventTS       int64       `json:"event_ts"`
	Alert         store.Alert `json:"alert"`
}

// NewCreated builds a created event for the alert.
func NewCreated(a store.Alert, now time.Time) AlertEvent {
	return AlertEvent{
		Type:          TypeCreated,
		SchemaVersion: SchemaVersion,
		EventTS:       now.Unix(),
		Alert:         a,
	}
}

// NewResolved builds a resolved event for the alert.
func NewResolved(a store.Alert, now time.Time) AlertEvent {
	return AlertEvent{
		Type:          TypeResolved,
		SchemaVersion: SchemaVersion,
		EventTS:       now.Unix(),
		Alert:         a,
	}
}
