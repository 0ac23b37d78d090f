// Package entity defines the business records the engine operates on:
// job requisitions, candidate pipelines, and referrals, generalized into a
// single snapshot shape keyed by kind.
package entity

import (
	"fmt"
	"time"
)

// Kind identifies the type of a business entity.
type Kind string

const (
	KindJob       Kind = "job"
	KindCandidate Kind = "candidate"
	KindReferral  Kind = "referral"
)

// Kinds lists every known entity kind.
var Kinds = []Kind{KindJob, KindCandidate, KindReferral}

// Valid reports whether k is a known entity kind.
func (k Kind) Valid() bool {
	switch k {
	case KindJob, KindCandidate, KindReferral:
		return true
	}
	return false
}

// KindFromString parses a kind from its string representation.
func KindFromString(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown entity kind: %q", s)
	}
	return k, nil
}

// Status is a kind-specific lifecycle state.
type Status string

// Job statuses.
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusOnHold    Status = "on_hold"
	StatusClosed    Status = "closed"
)

// Candidate statuses.
const (
	StatusApplied     Status = "applied"
	StatusPhoneScreen Status = "phone_screen"
	StatusInterview   Status = "interview"
	StatusOffer       Status = "offer"
	StatusHired       Status = "hired"
	StatusRejected    Status = "rejected"
)

// Referral statuses.
const (
	StatusPending   Status = "pending"
	StatusBonusPaid Status = "bonus_paid"
	StatusExpired   Status = "expired"
)

// statusesByKind is the full status set per kind, in lifecycle order.
var statusesByKind = map[Kind][]Status{
	KindJob:       {StatusDraft, StatusPublished, StatusOnHold, StatusClosed},
	KindCandidate: {StatusApplied, StatusPhoneScreen, StatusInterview, StatusOffer, StatusHired, StatusRejected},
	KindReferral:  {StatusPending, StatusHired, StatusBonusPaid, StatusExpired},
}

// ValidStatus reports whether s is a known status for kind k.
func ValidStatus(k Kind, s Status) bool {
	for _, known := range statusesByKind[k] {
		if known == s {
			return true
		}
	}
	return false
}

// InitialStatus returns the initial lifecycle status for kind k.
func InitialStatus(k Kind) Status {
	return statusesByKind[k][0]
}

// Entity is a read-only snapshot of a business record at scan time.
// Derived metrics (days open, counts) are recomputed from snapshot fields
// on every evaluation and never written back by the engine.
type Entity struct {
	ID        string    `json:"entity_id"`
	Kind      Kind      `json:"kind"`
	Status    Status    `json:"status"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Milestone dates; nil when the milestone has not occurred.
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	HiredAt         *time.Time `json:"hired_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	BonusEligibleAt *time.Time `json:"bonus_eligible_at,omitempty"`
	LastActivityAt  *time.Time `json:"last_activity_at,omitempty"`

	// Pipeline counts supplied by the snapshot provider.
	CandidateCount int `json:"candidate_count"`
	AdvancedCount  int `json:"advanced_count"`

	// Filled marks a job requisition closed with a hire.
	Filled bool `json:"filled"`

	// Budget is the attached monetary balance; nil when none is attached.
	Budget *float64 `json:"budget,omitempty"`

	// RequiredAttributes lists attribute keys the entity's classification
	// demands; Attributes holds the values actually present.
	RequiredAttributes []string          `json:"required_attributes,omitempty"`
	Attributes         map[string]string `json:"attributes,omitempty"`
}

// OpenedAt returns the reference date for "how long has this been open":
// the publish date for jobs when set, the creation date otherwise.
func (e *Entity) OpenedAt() time.Time {
	if e.Kind == KindJob && e.PublishedAt != nil {
		return *e.PublishedAt
	}
	return e.CreatedAt
}

// DaysOpen returns whole days elapsed since the entity opened, as of now.
func (e *Entity) DaysOpen(now time.Time) int {
	d := now.Sub(e.OpenedAt())
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// IsOpen reports whether the entity is in an open/published working state.
func (e *Entity) IsOpen() bool {
	switch e.Kind {
	case KindJob:
		return e.Status == StatusPublished
	case KindCandidate:
		return e.Status != StatusHired && e.Status != StatusRejected
	case KindReferral:
		return e.Status == StatusPending || e.Status == StatusHired
	}
	return false
}

// IsDraft reports whether the entity sits in its initial/draft state.
func (e *Entity) IsDraft() bool {
	return e.Status == InitialStatus(e.Kind)
}

// ClosedSuccessfully reports whether the entity reached a successful
// terminal outcome.
func (e *Entity) ClosedSuccessfully() bool {
	switch e.Kind {
	case KindJob:
		return e.Status == StatusClosed && e.Filled
	case KindCandidate:
		return e.Status == StatusHired
	case KindReferral:
		return e.Status == StatusBonusPaid || e.Status == StatusHired
	}
	return false
}

// SuccessAt returns the date the successful outcome occurred, falling back
// through the milestone dates in precedence order.
func (e *Entity) SuccessAt() time.Time {
	if e.HiredAt != nil {
		return *e.HiredAt
	}
	if e.ClosedAt != nil {
		return *e.ClosedAt
	}
	return e.UpdatedAt
}

// MissingAttributes returns the required attribute keys with no value set.
func (e *Entity) MissingAttributes() []string {
	var missing []string
	for _, key := range e.RequiredAttributes {
		if v, ok := e.Attributes[key]; !ok || v == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Clone returns a deep copy of the snapshot. The engine hands clones to
// predicates so a misbehaving predicate cannot corrupt shared state.
func (e *Entity) Clone() *Entity {
	c := *e
	c.PublishedAt = cloneTime(e.PublishedAt)
	c.HiredAt = cloneTime(e.HiredAt)
	c.ClosedAt = cloneTime(e.ClosedAt)
	c.BonusEligibleAt = cloneTime(e.BonusEligibleAt)
	c.LastActivityAt = cloneTime(e.LastActivityAt)
	if e.Budget != nil {
		b := *e.Budget
		c.Budget = &b
	}
	if e.RequiredAttributes != nil {
		c.RequiredAttributes = append([]string(nil), e.RequiredAttributes...)
	}
	if e.Attributes != nil {
		c.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
