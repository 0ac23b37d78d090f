// Package transition implements the per-kind lifecycle state machines.
// Each machine is data (an adjacency table), not branching code; the
// validator checks a requested move, computes derived field updates as pure
// functions of the transition, and produces the immutable timeline entry.
package transition

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
)

// IllegalTransitionError is returned when the requested status is not
// reachable from the entity's current status. It carries the authoritative
// current status so callers can reconcile without a second fetch.
type IllegalTransitionError struct {
	Kind      entity.Kind
	Current   entity.Status
	Requested entity.Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for %s: %s -> %s", e.Kind, e.Current, e.Requested)
}

// TimelineEntry is one immutable audit record appended per successful
// transition. Entries are never edited or deleted.
type TimelineEntry struct {
	EntryID    string            `json:"entry_id"`
	EntityID   string            `json:"entity_id"`
	FromStatus entity.Status     `json:"from_status"`
	ToStatus   entity.Status     `json:"to_status"`
	Timestamp  time.Time         `json:"timestamp"`
	Actor      string            `json:"actor"`
	Override   bool              `json:"override"`
	Derived    map[string]string `json:"derived,omitempty"`
}

// adjacency maps every non-terminal status to the statuses reachable from
// it. A status absent from its kind's table (or mapped to an empty set) is
// terminal.
var adjacency = map[entity.Kind]map[entity.Status][]entity.Status{
	entity.KindJob: {
		entity.StatusDraft:     {entity.StatusPublished},
		entity.StatusPublished: {entity.StatusOnHold, entity.StatusClosed},
		entity.StatusOnHold:    {entity.StatusPublished},
	},
	entity.KindCandidate: {
		entity.StatusApplied:     {entity.StatusPhoneScreen},
		entity.StatusPhoneScreen: {entity.StatusInterview},
		entity.StatusInterview:   {entity.StatusOffer},
		entity.StatusOffer:       {entity.StatusHired, entity.StatusRejected},
	},
	entity.KindReferral: {
		entity.StatusPending: {entity.StatusHired, entity.StatusExpired},
		entity.StatusHired:   {entity.StatusBonusPaid},
	},
}

// candidateStageOrder orders the candidate pipeline's active stages so
// backward (override) moves can be recognized. Terminal statuses are not
// stages.
var candidateStageOrder = map[entity.Status]int{
	entity.StatusApplied:     0,
	entity.StatusPhoneScreen: 1,
	entity.StatusInterview:   2,
	entity.StatusOffer:       3,
}

// Allowed returns the statuses reachable from the given status without an
// override. The returned slice is shared; callers must not mutate it.
func Allowed(kind entity.Kind, from entity.Status) []entity.Status {
	return adjacency[kind][from]
}

// IsTerminal reports whether the status has no outgoing transitions.
func IsTerminal(kind entity.Kind, s entity.Status) bool {
	return len(adjacency[kind][s]) == 0
}

// Config holds the tunable transition parameters.
type Config struct {
	// BonusEligibilityMonths is the window between a referral hire and
	// bonus eligibility.
	BonusEligibilityMonths int
	// ReferralExpiryDays is how long a referral may stay pending before
	// the scan expires it.
	ReferralExpiryDays int
}

// DefaultConfig returns the stock transition tuning.
func DefaultConfig() Config {
	return Config{
		BonusEligibilityMonths: 6,
		ReferralExpiryDays:     90,
	}
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if c.BonusEligibilityMonths <= 0 {
		return fmt.Errorf("bonus-eligibility-months must be > 0")
	}
	if c.ReferralExpiryDays <= 0 {
		return fmt.Errorf("referral-expiry-days must be > 0")
	}
	return nil
}

// Validator validates transitions and computes their side effects. The
// clock is injected for deterministic tests.
type Validator struct {
	cfg Config
	now func() time.Time
}

// NewValidator creates a validator. A nil clock defaults to time.Now.
func NewValidator(cfg Config, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{cfg: cfg, now: now}
}

// Apply validates the requested transition and, on success, returns the
// updated entity copy plus the timeline entry to append. The input entity
// is not mutated. Backward candidate moves are legal only when override is
// set; the override is recorded on the timeline entry, never inferred.
func (v *Validator) Apply(e *entity.Entity, to entity.Status, actor string, override bool) (*entity.Entity, TimelineEntry, error) {
	if !entity.ValidStatus(e.Kind, to) {
		return nil, TimelineEntry{}, &IllegalTransitionError{Kind: e.Kind, Current: e.Status, Requested: to}
	}

	legal := false
	for _, next := range adjacency[e.Kind][e.Status] {
		if next == to {
			legal = true
			break
		}
	}

	usedOverride := false
	if !legal && override && e.Kind == entity.KindCandidate {
		fromStage, fromOK := candidateStageOrder[e.Status]
		toStage, toOK := candidateStageOrder[to]
		if fromOK && toOK && toStage < fromStage {
			legal = true
			usedOverride = true
		}
	}

	if !legal || to == e.Status {
		return nil, TimelineEntry{}, &IllegalTransitionError{Kind: e.Kind, Current: e.Status, Requested: to}
	}

	now := v.now().UTC()
	updated := e.Clone()
	from := updated.Status
	updated.Status = to
	// Updated must stay monotonically non-decreasing even with a skewed
	// injected clock.
	if now.After(updated.UpdatedAt) {
		updated.UpdatedAt = now
	}

	derived := v.applyDerived(updated, from, to, now)

	entry := TimelineEntry{
		EntryID:    uuid.NewString(),
		EntityID:   e.ID,
		FromStatus: from,
		ToStatus:   to,
		Timestamp:  now,
		Actor:      actor,
		Override:   usedOverride,
		Derived:    derived,
	}
	return updated, entry, nil
}

// applyDerived mutates the updated copy with the derived field updates for
// the transition and returns a description of what changed for the audit
// entry.
func (v *Validator) applyDerived(e *entity.Entity, from, to entity.Status, now time.Time) map[string]string {
	derived := make(map[string]string)

	switch e.Kind {
	case entity.KindJob:
		if to == entity.StatusPublished && e.PublishedAt == nil {
			t := now
			e.PublishedAt = &t
			derived["published_at"] = t.Format(time.RFC3339)
		}
		if to == entity.StatusClosed && e.ClosedAt == nil {
			t := now
			e.ClosedAt = &t
			derived["closed_at"] = t.Format(time.RFC3339)
		}
	case entity.KindCandidate:
		t := now
		e.LastActivityAt = &t
		derived["last_activity_at"] = t.Format(time.RFC3339)
		if to == entity.StatusHired && e.HiredAt == nil {
			h := now
			e.HiredAt = &h
			derived["hired_at"] = h.Format(time.RFC3339)
		}
	case entity.KindReferral:
		if to == entity.StatusHired {
			if e.HiredAt == nil {
				h := now
				e.HiredAt = &h
				derived["hired_at"] = h.Format(time.RFC3339)
			}
			be := e.HiredAt.AddDate(0, v.cfg.BonusEligibilityMonths, 0)
			e.BonusEligibleAt = &be
			derived["bonus_eligible_at"] = be.Format(time.RFC3339)
		}
		if to == entity.StatusExpired && e.ClosedAt == nil {
			t := now
			e.ClosedAt = &t
			derived["closed_at"] = t.Format(time.RFC3339)
		}
	}

	if len(derived) == 0 {
		return nil
	}
	return derived
}

// ExpiryDue reports whether a pending referral has outlived the expiry
// window and should be expired by the scan.
func (v *Validator) ExpiryDue(e *entity.Entity, now time.Time) bool {
	if e.Kind != entity.KindReferral || e.Status != entity.StatusPending {
		return false
	}
	return now.Sub(e.CreatedAt) > time.Duration(v.cfg.ReferralExpiryDays)*24*time.Hour
}
