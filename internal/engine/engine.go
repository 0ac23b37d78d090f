// Package engine runs the rule catalog against entity snapshots, dedupes
// alerts against the store, and emits lifecycle events. Evaluation is
// stateless and parallel across entities; each rule x entity pair is
// isolated so one failing predicate never aborts the rest of the scan.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/events"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/rules"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/store"
)

const (
	// DefaultWorkers bounds the per-scan worker pool.
	DefaultWorkers = 8
	// DefaultPredicateTimeout bounds a single predicate evaluation; a
	// slower predicate counts as a failed rule for that entity.
	DefaultPredicateTimeout = 50 * time.Millisecond
)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Workers          int
	PredicateTimeout time.Duration
	Clock            func() time.Time
	Sink             EventSink
	Metrics          MetricsRecorder
}

// Engine evaluates the rule catalog against snapshots and keeps the alert
// store consistent with the current entity state.
type Engine struct {
	catalog []rules.Rule
	store   *store.Store
	sink    EventSink
	metrics MetricsRecorder
	now     func() time.Time
	workers int
	timeout time.Duration
}

// New creates an engine over the given catalog and store.
func New(catalog []rules.Rule, st *store.Store, opts Options) *Engine {
	e := &Engine{
		catalog: catalog,
		store:   st,
		sink:    opts.Sink,
		metrics: opts.Metrics,
		now:     opts.Clock,
		workers: opts.Workers,
		timeout: opts.PredicateTimeout,
	}
	if e.sink == nil {
		e.sink = noOpSink{}
	}
	if e.metrics == nil {
		e.metrics = NoOpMetrics{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.workers <= 0 {
		e.workers = DefaultWorkers
	}
	if e.timeout <= 0 {
		e.timeout = DefaultPredicateTimeout
	}
	return e
}

// Scan evaluates every applicable rule against every snapshot, syncs the
// alert store, and returns the live alerts ordered by severity then
// urgency. Cancellation is honored between entities, never mid-entity.
func (e *Engine) Scan(ctx context.Context, snapshots []*entity.Entity) ([]store.Alert, error) {
	start := e.now()
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup

	for _, snap := range snapshots {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(snap *entity.Entity) {
			defer wg.Done()
			defer func() { <-sem }()
			e.EvaluateEntity(snap)
		}(snap)
	}
	wg.Wait()

	e.metrics.RecordScan(time.Since(start), len(snapshots))
	return e.store.List(store.Filter{}), nil
}

// EvaluateEntity runs every applicable rule against one snapshot and syncs
// the store: a newly true predicate creates an alert, a still-true one
// refreshes the live instance in place (preserving read/dismiss state), and
// a now-false one resolves it.
func (e *Engine) EvaluateEntity(snap *entity.Entity) {
	now := e.now().UTC()

	for i := range e.catalog {
		rule := &e.catalog[i]
		if !rule.AppliesTo(snap.Kind) {
			continue
		}

		fired, err := e.runPredicate(rule, snap, now)
		if err != nil {
			// Failed rules produce no alert and resolve nothing; the
			// existing instance, if any, stays as-is until a clean
			// evaluation.
			e.metrics.RecordRuleFailure()
			slog.Error("Rule evaluation failed",
				"rule_id", rule.ID,
				"entity_id", snap.ID,
				"entity_kind", snap.Kind,
				"error", err,
			)
			continue
		}

		if fired {
			e.recordFiring(rule, snap, now)
		} else if resolved, ok := e.store.Resolve(snap.ID, rule.ID); ok {
			e.metrics.RecordAlertResolved()
			e.sink.Enqueue(events.NewResolved(resolved, now))
			slog.Info("Alert resolved",
				"alert_id", resolved.AlertID,
				"rule_id", rule.ID,
				"entity_id", snap.ID,
			)
		}
	}
}

// recordFiring creates or refreshes the alert instance for a true predicate.
func (e *Engine) recordFiring(rule *rules.Rule, snap *entity.Entity, now time.Time) {
	severity := rule.EffectiveSeverity(snap, now)
	message := rule.Message(snap, now)
	fingerprint := Fingerprint(rule, snap)
	urgency := snap.DaysOpen(now)

	if _, ok := e.store.Refresh(snap.ID, rule.ID, severity, message, fingerprint, urgency); ok {
		return
	}

	alert := store.Alert{
		AlertID:        uuid.NewString(),
		EntityID:       snap.ID,
		EntityKind:     snap.Kind,
		RuleID:         rule.ID,
		Severity:       severity,
		Title:          rule.Title,
		Message:        message,
		CreatedAt:      now,
		ActionRequired: rule.ActionRequired,
		Fingerprint:    fingerprint,
		Urgency:        urgency,
	}
	e.store.Put(alert)
	e.metrics.RecordAlertCreated()
	e.sink.Enqueue(events.NewCreated(alert, now))
	slog.Info("Alert created",
		"alert_id", alert.AlertID,
		"rule_id", rule.ID,
		"entity_id", snap.ID,
		"severity", severity,
	)
}

// runPredicate evaluates one predicate against a snapshot clone with a
// bounded timeout and panic isolation.
func (e *Engine) runPredicate(rule *rules.Rule, snap *entity.Entity, now time.Time) (fired bool, err error) {
	type outcome struct {
		fired bool
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("predicate panicked: %v", r)}
			}
		}()
		done <- outcome{fired: rule.Predicate(snap.Clone(), now)}
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.fired, out.err
	case <-timer.C:
		return false, fmt.Errorf("predicate timed out after %s", e.timeout)
	}
}
