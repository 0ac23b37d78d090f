package transition

import (
	"errors"
	"testing"
	"time"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
)

var testNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newValidator() *Validator {
	return NewValidator(DefaultConfig(), fixedClock)
}

func testEntity(kind entity.Kind, status entity.Status) *entity.Entity {
	return &entity.Entity{
		ID:        "e-1",
		Kind:      kind,
		Status:    status,
		Name:      "Test",
		Version:   1,
		CreatedAt: testNow.Add(-30 * 24 * time.Hour),
		UpdatedAt: testNow.Add(-24 * time.Hour),
	}
}

func TestTransitionLegality(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name    string
		kind    entity.Kind
		from    entity.Status
		to      entity.Status
		wantErr bool
	}{
		// Job
		{"job draft to published", entity.KindJob, entity.StatusDraft, entity.StatusPublished, false},
		{"job draft to closed", entity.KindJob, entity.StatusDraft, entity.StatusClosed, true},
		{"job published to on_hold", entity.KindJob, entity.StatusPublished, entity.StatusOnHold, false},
		{"job published to closed", entity.KindJob, entity.StatusPublished, entity.StatusClosed, false},
		{"job on_hold to published", entity.KindJob, entity.StatusOnHold, entity.StatusPublished, false},
		{"job on_hold to closed", entity.KindJob, entity.StatusOnHold, entity.StatusClosed, true},
		{"job published back to draft", entity.KindJob, entity.StatusPublished, entity.StatusDraft, true},
		{"job out of closed", entity.KindJob, entity.StatusClosed, entity.StatusPublished, true},
		{"job self transition", entity.KindJob, entity.StatusPublished, entity.StatusPublished, true},
		{"job to candidate status", entity.KindJob, entity.StatusPublished, entity.StatusOffer, true},
		// Candidate
		{"candidate applied to phone_screen", entity.KindCandidate, entity.StatusApplied, entity.StatusPhoneScreen, false},
		{"candidate phone_screen to interview", entity.KindCandidate, entity.StatusPhoneScreen, entity.StatusInterview, false},
		{"candidate interview to offer", entity.KindCandidate, entity.StatusInterview, entity.StatusOffer, false},
		{"candidate offer to hired", entity.KindCandidate, entity.StatusOffer, entity.StatusHired, false},
		{"candidate offer to rejected", entity.KindCandidate, entity.StatusOffer, entity.StatusRejected, false},
		{"candidate applied skips to offer", entity.KindCandidate, entity.StatusApplied, entity.StatusOffer, true},
		{"candidate backward without override", entity.KindCandidate, entity.StatusOffer, entity.StatusInterview, true},
		{"candidate out of hired", entity.KindCandidate, entity.StatusHired, entity.StatusOffer, true},
		{"candidate out of rejected", entity.KindCandidate, entity.StatusRejected, entity.StatusApplied, true},
		// Referral
		{"referral pending to hired", entity.KindReferral, entity.StatusPending, entity.StatusHired, false},
		{"referral pending to expired", entity.KindReferral, entity.StatusPending, entity.StatusExpired, false},
		{"referral hired to bonus_paid", entity.KindReferral, entity.StatusHired, entity.StatusBonusPaid, false},
		{"referral pending to bonus_paid", entity.KindReferral, entity.StatusPending, entity.StatusBonusPaid, true},
		{"referral out of expired", entity.KindReferral, entity.StatusExpired, entity.StatusPending, true},
		{"referral out of bonus_paid", entity.KindReferral, entity.StatusBonusPaid, entity.StatusHired, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEntity(tt.kind, tt.from)
			updated, entry, err := v.Apply(e, tt.to, "recruiter-7", false)
			if tt.wantErr {
				var illegal *IllegalTransitionError
				if !errors.As(err, &illegal) {
					t.Fatalf("Apply() error = %v, want IllegalTransitionError", err)
				}
				if illegal.Current != tt.from {
					t.Errorf("error current status = %v, want %v", illegal.Current, tt.from)
				}
				if e.Status != tt.from {
					t.Errorf("input entity status mutated to %v", e.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if updated.Status != tt.to {
				t.Errorf("updated status = %v, want %v", updated.Status, tt.to)
			}
			if e.Status != tt.from {
				t.Errorf("input entity mutated: status = %v", e.Status)
			}
			if entry.FromStatus != tt.from || entry.ToStatus != tt.to {
				t.Errorf("entry statuses = %v->%v, want %v->%v", entry.FromStatus, entry.ToStatus, tt.from, tt.to)
			}
			if entry.Actor != "recruiter-7" {
				t.Errorf("entry actor = %q", entry.Actor)
			}
			if entry.EntryID == "" {
				t.Error("entry ID is empty")
			}
			if entry.Override {
				t.Error("entry marked override for a forward move")
			}
		})
	}
}

func TestCandidateBackwardOverride(t *testing.T) {
	v := newValidator()

	e := testEntity(entity.KindCandidate, entity.StatusOffer)
	updated, entry, err := v.Apply(e, entity.StatusInterview, "recruiter-7", true)
	if err != nil {
		t.Fatalf("Apply() with override error = %v", err)
	}
	if updated.Status != entity.StatusInterview {
		t.Errorf("status = %v, want interview", updated.Status)
	}
	if !entry.Override {
		t.Error("backward move must record override on the timeline entry")
	}

	// Override never unlocks non-backward illegal moves.
	e = testEntity(entity.KindCandidate, entity.StatusApplied)
	if _, _, err := v.Apply(e, entity.StatusOffer, "recruiter-7", true); err == nil {
		t.Error("override must not allow skipping stages forward")
	}

	// Override is candidate-only.
	job := testEntity(entity.KindJob, entity.StatusPublished)
	if _, _, err := v.Apply(job, entity.StatusDraft, "recruiter-7", true); err == nil {
		t.Error("override must not allow job published -> draft")
	}

	// Terminal statuses are not stages; no override escape.
	e = testEntity(entity.KindCandidate, entity.StatusHired)
	if _, _, err := v.Apply(e, entity.StatusOffer, "recruiter-7", true); err == nil {
		t.Error("override must not reopen a hired candidate")
	}
}

func TestJobDerivedFields(t *testing.T) {
	v := newValidator()

	t.Run("publish sets publish date once", func(t *testing.T) {
		e := testEntity(entity.KindJob, entity.StatusDraft)
		updated, entry, err := v.Apply(e, entity.StatusPublished, "recruiter-7", false)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if updated.PublishedAt == nil || !updated.PublishedAt.Equal(testNow) {
			t.Errorf("PublishedAt = %v, want %v", updated.PublishedAt, testNow)
		}
		if _, ok := entry.Derived["published_at"]; !ok {
			t.Error("derived updates missing published_at")
		}

		// Republishing from on_hold keeps the original date.
		held := updated.Clone()
		held.Status = entity.StatusOnHold
		republished, _, err := v.Apply(held, entity.StatusPublished, "recruiter-7", false)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !republished.PublishedAt.Equal(testNow) {
			t.Errorf("republish changed PublishedAt to %v", republished.PublishedAt)
		}
	})

	t.Run("close sets close date only if unset", func(t *testing.T) {
		e := testEntity(entity.KindJob, entity.StatusPublished)
		updated, _, err := v.Apply(e, entity.StatusClosed, "recruiter-7", false)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if updated.ClosedAt == nil || !updated.ClosedAt.Equal(testNow) {
			t.Errorf("ClosedAt = %v, want %v", updated.ClosedAt, testNow)
		}

		preset := testEntity(entity.KindJob, entity.StatusPublished)
		existing := testNow.Add(-48 * time.Hour)
		preset.ClosedAt = &existing
		updated, entry, err := v.Apply(preset, entity.StatusClosed, "recruiter-7", false)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !updated.ClosedAt.Equal(existing) {
			t.Errorf("preset ClosedAt overwritten: %v", updated.ClosedAt)
		}
		if _, ok := entry.Derived["closed_at"]; ok {
			t.Error("derived updates must not report an unchanged close date")
		}
	})
}

func TestCandidateLastActivity(t *testing.T) {
	v := newValidator()
	e := testEntity(entity.KindCandidate, entity.StatusApplied)
	updated, _, err := v.Apply(e, entity.StatusPhoneScreen, "recruiter-7", false)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if updated.LastActivityAt == nil || !updated.LastActivityAt.Equal(testNow) {
		t.Errorf("LastActivityAt = %v, want %v", updated.LastActivityAt, testNow)
	}
}

func TestReferralBonusEligibility(t *testing.T) {
	v := newValidator()

	t.Run("hire date preset", func(t *testing.T) {
		e := testEntity(entity.KindReferral, entity.StatusPending)
		hired := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		e.HiredAt = &hired

		updated, _, err := v.Apply(e, entity.StatusHired, "recruiter-7", false)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		want := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
		if updated.BonusEligibleAt == nil || !updated.BonusEligibleAt.Equal(want) {
			t.Errorf("BonusEligibleAt = %v, want %v", updated.BonusEligibleAt, want)
		}
	})

	t.Run("hire date derived from clock", func(t *testing.T) {
		e := testEntity(entity.KindReferral, entity.StatusPending)
		updated, _, err := v.Apply(e, entity.StatusHired, "recruiter-7", false)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if updated.HiredAt == nil || !updated.HiredAt.Equal(testNow) {
			t.Errorf("HiredAt = %v, want %v", updated.HiredAt, testNow)
		}
		want := testNow.AddDate(0, 6, 0)
		if updated.BonusEligibleAt == nil || !updated.BonusEligibleAt.Equal(want) {
			t.Errorf("BonusEligibleAt = %v, want %v", updated.BonusEligibleAt, want)
		}
	})

	t.Run("deterministic across repeated runs", func(t *testing.T) {
		hired := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		var first *entity.Entity
		for i := 0; i < 5; i++ {
			e := testEntity(entity.KindReferral, entity.StatusPending)
			e.HiredAt = &hired
			updated, _, err := v.Apply(e, entity.StatusHired, "recruiter-7", false)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if first == nil {
				first = updated
				continue
			}
			if !updated.BonusEligibleAt.Equal(*first.BonusEligibleAt) {
				t.Fatalf("run %d produced %v, first run produced %v", i, updated.BonusEligibleAt, first.BonusEligibleAt)
			}
		}
	})
}

func TestUpdatedAtMonotonic(t *testing.T) {
	v := newValidator()
	e := testEntity(entity.KindJob, entity.StatusDraft)
	e.UpdatedAt = testNow.Add(time.Hour) // ahead of the injected clock

	updated, _, err := v.Apply(e, entity.StatusPublished, "recruiter-7", false)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if updated.UpdatedAt.Before(e.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v -> %v", e.UpdatedAt, updated.UpdatedAt)
	}
}

func TestExpiryDue(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name       string
		kind       entity.Kind
		status     entity.Status
		createdAgo time.Duration
		want       bool
	}{
		{"pending past window", entity.KindReferral, entity.StatusPending, 91 * 24 * time.Hour, true},
		{"pending inside window", entity.KindReferral, entity.StatusPending, 30 * 24 * time.Hour, false},
		{"hired referral", entity.KindReferral, entity.StatusHired, 91 * 24 * time.Hour, false},
		{"job", entity.KindJob, entity.StatusPublished, 91 * 24 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEntity(tt.kind, tt.status)
			e.CreatedAt = testNow.Add(-tt.createdAgo)
			if got := v.ExpiryDue(e, testNow); got != tt.want {
				t.Errorf("ExpiryDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminals := []struct {
		kind   entity.Kind
		status entity.Status
	}{
		{entity.KindJob, entity.StatusClosed},
		{entity.KindCandidate, entity.StatusHired},
		{entity.KindCandidate, entity.StatusRejected},
		{entity.KindReferral, entity.StatusBonusPaid},
		{entity.KindReferral, entity.StatusExpired},
	}
	for _, tt := range terminals {
		if !IsTerminal(tt.kind, tt.status) {
			t.Errorf("IsTerminal(%s, %s) = false, want true", tt.kind, tt.status)
		}
	}
	if IsTerminal(entity.KindJob, entity.StatusPublished) {
		t.Error("published must not be terminal")
	}
}
