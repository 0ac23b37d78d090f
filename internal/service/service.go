// Package service orchestrates the engine: it serializes transitions per
// entity, commits them with optimistic-conflict retries, re-evaluates the
// affected entity synchronously, and drives the periodic scan backstop.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/database"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/engine"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/store"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/transition"
)

const (
	// maxConflictRetries caps re-fetch-and-retry attempts on version
	// conflicts before surfacing ConflictUnresolvedError.
	maxConflictRetries = 3
	// DefaultScanInterval is the periodic scan backstop.
	DefaultScanInterval = 60 * time.Second
	// SystemActor is recorded on transitions the scan applies itself.
	SystemActor = "system"
)

// SnapshotProvider supplies current entity state. The service treats it as
// read-only and re-fetches on every scan.
type SnapshotProvider interface {
	GetEntities(ctx context.Context, kind entity.Kind) ([]*entity.Entity, error)
	GetEntity(ctx context.Context, entityID string) (*entity.Entity, error)
}

// Persistence commits a validated transition atomically per entity.
type Persistence interface {
	CommitTransition(ctx context.Context, updated *entity.Entity, expectedVersion int, entry transition.TimelineEntry) (*entity.Entity, error)
}

// MetricsRecorder records transition outcomes.
type MetricsRecorder interface {
	RecordTransition()
	RecordConflict()
}

// NoOpMetrics is a MetricsRecorder that does nothing.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordTransition() {}
func (NoOpMetrics) RecordConflict()   {}

// Service wires the snapshot provider, persistence, validator, engine and
// alert store together.
type Service struct {
	provider     SnapshotProvider
	persist      Persistence
	validator    *transition.Validator
	engine       *engine.Engine
	alerts       *store.Store
	metrics      MetricsRecorder
	scanInterval time.Duration

	// locks serializes transitions per entity: one in flight at a time
	// for the same entity, independent across entities.
	locks sync.Map // entityID -> *sync.Mutex

	// scanTrigger nudges the run loop after a committed mutation.
	scanTrigger chan struct{}
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	ScanInterval time.Duration
	Metrics      MetricsRecorder
}

// New creates a service.
func New(provider SnapshotProvider, persist Persistence, validator *transition.Validator, eng *engine.Engine, alerts *store.Store, opts Options) *Service {
	s := &Service{
		provider:     provider,
		persist:      persist,
		validator:    validator,
		engine:       eng,
		alerts:       alerts,
		metrics:      opts.Metrics,
		scanInterval: opts.ScanInterval,
		scanTrigger:  make(chan struct{}, 1),
	}
	if s.metrics == nil {
		s.metrics = NoOpMetrics{}
	}
	if s.scanInterval <= 0 {
		s.scanInterval = DefaultScanInterval
	}
	return s
}

// RequestTransition validates and commits a status change for one entity,
// then re-evaluates that entity synchronously so the returned alerts are
// consistent with the new state. Conflicting commits are retried against a
// fresh snapshot up to the cap.
func (s *Service) RequestTransition(ctx context.Context, entityID string, to entity.Status, actor string, override bool) (*entity.Entity, []store.Alert, error) {
	lock := s.entityLock(entityID)
	lock.Lock()
	defer lock.Unlock()

	var committed *entity.Entity
	for attempt := 0; ; attempt++ {
		current, err := s.provider.GetEntity(ctx, entityID)
		if err != nil {
			return nil, nil, err
		}

		updated, entry, err := s.validator.Apply(current, to, actor, override)
		if err != nil {
			return nil, nil, err
		}

		committed, err = s.persist.CommitTransition(ctx, updated, current.Version, entry)
		if err == nil {
			break
		}
		if !errors.Is(err, database.ErrVersionConflict) {
			return nil, nil, err
		}

		s.metrics.RecordConflict()
		if attempt+1 >= maxConflictRetries {
			authoritative := current.Status
			if fresh, ferr := s.provider.GetEntity(ctx, entityID); ferr == nil {
				authoritative = fresh.Status
			}
			return nil, nil, &ConflictUnresolvedError{
				EntityID: entityID,
				Current:  authoritative,
				Attempts: attempt + 1,
			}
		}
		slog.Warn("Transition commit lost version race, retrying",
			"entity_id", entityID,
			"attempt", attempt+1,
		)
	}

	s.metrics.RecordTransition()
	slog.Info("Transition committed",
		"entity_id", entityID,
		"status", committed.Status,
		"actor", actor,
	)

	// The caller must see alerts consistent with the new state before this
	// returns; dispatch stays asynchronous behind the engine's sink.
	s.engine.EvaluateEntity(committed)
	alerts := s.alerts.List(store.Filter{EntityID: entityID})

	s.nudgeScan()
	return committed, alerts, nil
}

// ScanAll expires overdue referrals, then evaluates every entity of every
// kind against the rule catalog.
func (s *Service) ScanAll(ctx context.Context) ([]store.Alert, error) {
	now := time.Now().UTC()
	s.expireDueReferrals(ctx, now)

	var snapshots []*entity.Entity
	for _, kind := range entity.Kinds {
		ents, err := s.provider.GetEntities(ctx, kind)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, ents...)
	}
	return s.engine.Scan(ctx, snapshots)
}

// Run drives periodic scans until ctx is cancelled. Committed transitions
// nudge an immediate scan; the ticker is the backstop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	slog.Info("Starting scan loop", "interval", s.scanInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Scan loop stopped")
			return nil
		case <-ticker.C:
		case <-s.scanTrigger:
		}

		if _, err := s.ScanAll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("Scan failed", "error", err)
		}
	}
}

// ListAlerts exposes the alert store's filtered listing.
func (s *Service) ListAlerts(f store.Filter) []store.Alert {
	return s.alerts.List(f)
}

// MarkRead marks an alert read.
func (s *Service) MarkRead(alertID string) error {
	return s.alerts.MarkRead(alertID)
}

// Dismiss dismisses an alert.
func (s *Service) Dismiss(alertID string) error {
	return s.alerts.Dismiss(alertID)
}

// GetEntities exposes snapshots for the surrounding dashboard.
func (s *Service) GetEntities(ctx context.Context, kind entity.Kind) ([]*entity.Entity, error) {
	return s.provider.GetEntities(ctx, kind)
}

func (s *Service) entityLock(entityID string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(entityID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (s *Service) nudgeScan() {
	select {
	case s.scanTrigger <- struct{}{}:
	default:
	}
}

// expireDueReferrals transitions pending referrals past the expiry window
// to expired, as the system actor. Failures are logged and skipped; the
// next scan retries.
func (s *Service) expireDueReferrals(ctx context.Context, now time.Time) {
	referrals, err := s.provider.GetEntities(ctx, entity.KindReferral)
	if err != nil {
		slog.Error("Failed to fetch referrals for expiry check", "error", err)
		return
	}
	for _, ref := range referrals {
		if !s.validator.ExpiryDue(ref, now) {
			continue
		}
		if _, _, err := s.RequestTransition(ctx, ref.ID, entity.StatusExpired, SystemActor, false); err != nil {
			slog.Warn("Failed to expire referral",
				"entity_id", ref.ID,
				"error", err,
			)
		}
	}
}
