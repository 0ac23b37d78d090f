package engine

import (
	"time"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/events"
)

// EventSink receives alert lifecycle events for downstream delivery.
// Implementations must not block: delivery failures are the dispatcher's
// problem and never roll back engine state.
type EventSink interface {
	Enqueue(ev events.AlertEvent)
}

// MetricsRecorder records engine metrics. A no-op implementation is used
// when metrics are disabled.
type MetricsRecorder interface {
	RecordScan(duration time.Duration, entities int)
	RecordAlertCreated()
	RecordAlertResolved()
	RecordRuleFailure()
}

// NoOpMetrics is a MetricsRecorder that does nothing.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordScan(time.Duration, int) {}
func (NoOpMetrics) RecordAlertCreated()           {}
func (NoOpMetrics) RecordAlertResolved()          {}
func (NoOpMetrics) RecordRuleFailure()            {}

// noOpSink drops events when no dispatcher is wired.
type noOpSink struct{}

func (noOpSink) Enqueue(events.AlertEvent) {}
