// Package store tracks the lifecycle of emitted alerts: live/resolved,
// read/unread, and dismissal. It is the engine's only shared mutable
// resource; every mutation goes through a single mutex so the
// at-most-one-live-alert invariant holds under concurrent scans and
// transitions.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/rules"
)

// ErrAlertNotFound is returned when an alert ID does not reference a live
// or dismissed alert instance.
var ErrAlertNotFound = errors.New("alert not found")

// Alert is one emitted alert instance. At most one non-resolved instance
// exists per (EntityID, RuleID) pair at any time.
type Alert struct {
	AlertID        string         `json:"alert_id"`
	EntityID       string         `json:"entity_id"`
	EntityKind     entity.Kind    `json:"entity_kind"`
	RuleID         string         `json:"rule_id"`
	Severity       rules.Severity `json:"severity"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	CreatedAt      time.Time      `json:"created_at"`
	IsRead         bool           `json:"is_read"`
	ActionRequired bool           `json:"action_required"`
	Dismissed      bool           `json:"dismissed"`

	// Fingerprint is the deterministic hash of the rule-relevant entity
	// state the alert was derived from.
	Fingerprint string `json:"fingerprint"`

	// Urgency is the entity's age/urgency metric (days open) at the last
	// evaluation, used as the secondary sort key.
	Urgency int `json:"urgency"`
}

type key struct {
	entityID string
	ruleID   string
}

// Store is the in-memory alert store.
type Store struct {
	mu      sync.Mutex
	alerts  map[key]*Alert
	byID    map[string]key
	created uint64
	expired uint64
}

// New creates an empty alert store.
func New() *Store {
	return &Store{
		alerts: make(map[key]*Alert),
		byID:   make(map[string]key),
	}
}

// Get returns a copy of the current instance for (entityID, ruleID),
// dismissed or not, and whether one exists.
func (s *Store) Get(entityID, ruleID string) (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[key{entityID, ruleID}]
	if !ok {
		return Alert{}, false
	}
	return *a, true
}

// GetByID returns a copy of the alert with the given ID.
func (s *Store) GetByID(alertID string) (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.byID[alertID]
	if !ok {
		return Alert{}, false
	}
	return *s.alerts[k], true
}

// Put inserts a freshly created alert instance. If an instance already
// exists for the pair it is replaced; callers are expected to check with
// Get first and use Refresh for live instances.
func (s *Store) Put(a Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{a.EntityID, a.RuleID}
	if old, ok := s.alerts[k]; ok {
		delete(s.byID, old.AlertID)
	}
	stored := a
	s.alerts[k] = &stored
	s.byID[a.AlertID] = k
	s.created++
}

// Refresh updates the mutable presentation fields of an existing instance
// while preserving its identity, creation time, and read/dismiss state.
// It reports whether an instance existed.
func (s *Store) Refresh(entityID, ruleID string, severity rules.Severity, message, fingerprint string, urgency int) (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[key{entityID, ruleID}]
	if !ok {
		return Alert{}, false
	}
	a.Severity = severity
	a.Message = message
	a.Fingerprint = fingerprint
	a.Urgency = urgency
	return *a, true
}

// Resolve removes the instance for (entityID, ruleID) because its
// generating condition no longer holds. A later re-occurrence of the
// condition creates a brand new instance, regardless of whether this one
// had been dismissed. It returns the removed alert and whether one existed.
func (s *Store) Resolve(entityID, ruleID string) (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{entityID, ruleID}
	a, ok := s.alerts[k]
	if !ok {
		return Alert{}, false
	}
	delete(s.alerts, k)
	delete(s.byID, a.AlertID)
	s.expired++
	return *a, true
}

// MarkRead marks the alert read. Marking an already-read alert is a no-op.
func (s *Store) MarkRead(alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.byID[alertID]
	if !ok {
		return ErrAlertNotFound
	}
	s.alerts[k].IsRead = true
	return nil
}

// Dismiss permanently dismisses the alert instance. Dismissing an
// already-dismissed alert is a no-op and not an error.
func (s *Store) Dismiss(alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.byID[alertID]
	if !ok {
		return ErrAlertNotFound
	}
	s.alerts[k].Dismissed = true
	return nil
}

// Filter is the AND-composed criteria for List. Zero values mean "no
// constraint" for that criterion.
type Filter struct {
	UnreadOnly         bool
	MinSeverity        rules.Severity
	ActionRequiredOnly bool
	EntityID           string
	Kind               entity.Kind
	Limit              int
	Offset             int
}

// List returns non-dismissed alerts matching the filter, ordered by
// severity descending then urgency descending, with alert ID as the final
// tiebreak for stable output.
func (s *Store) List(f Filter) []Alert {
	s.mu.Lock()
	out := make([]Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.Dismissed {
			continue
		}
		if f.UnreadOnly && a.IsRead {
			continue
		}
		if f.MinSeverity != "" && a.Severity.Rank() < f.MinSeverity.Rank() {
			continue
		}
		if f.ActionRequiredOnly && !a.ActionRequired {
			continue
		}
		if f.EntityID != "" && a.EntityID != f.EntityID {
			continue
		}
		if f.Kind != "" && a.EntityKind != f.Kind {
			continue
		}
		out = append(out, *a)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		if out[i].Urgency != out[j].Urgency {
			return out[i].Urgency > out[j].Urgency
		}
		return out[i].AlertID < out[j].AlertID
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []Alert{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out
}

// Counts returns lifetime created and resolved instance counts.
func (s *Store) Counts() (created, resolved uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created, s.expired
}
