// Package rules holds the declarative alert rule catalog. Each rule is a
// pure predicate plus a message template; the engine decides when and how
// to evaluate them. Rules never depend on each other's results.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
)

// Rule is a declarative alert rule: a pure, stateless predicate over an
// entity snapshot plus templates for the resulting alert.
type Rule struct {
	ID             string
	Kinds          []entity.Kind
	Severity       Severity
	ActionRequired bool
	Title          string

	// Predicate reports whether the rule fires for the snapshot. The
	// current time is injected for testability; predicates must not read
	// the wall clock themselves.
	Predicate func(e *entity.Entity, now time.Time) bool

	// Message renders the alert body from entity fields.
	Message func(e *entity.Entity, now time.Time) string

	// SeverityFor optionally overrides Severity per entity, used for
	// threshold escalation. Nil means the static severity applies.
	SeverityFor func(e *entity.Entity, now time.Time) Severity

	// StateFields returns the rule-relevant snapshot fields that feed the
	// alert fingerprint. Nil means the entity status alone is relevant.
	StateFields func(e *entity.Entity) []string
}

// AppliesTo reports whether the rule evaluates entities of kind k.
func (r *Rule) AppliesTo(k entity.Kind) bool {
	for _, kind := range r.Kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// EffectiveSeverity returns the severity the rule assigns to this entity,
// applying per-entity escalation when defined.
func (r *Rule) EffectiveSeverity(e *entity.Entity, now time.Time) Severity {
	if r.SeverityFor != nil {
		return r.SeverityFor(e, now)
	}
	return r.Severity
}

// Thresholds are the tunable parameters of the built-in catalog. The
// defaults mirror the dashboard's historical literals; deployments override
// them per client via flags.
type Thresholds struct {
	// StaleOpenDays is how long an entity may stay open before the
	// stale-open rule fires; at twice this value severity escalates.
	StaleOpenDays int
	// DraftStaleDays is how long an entity may sit in its initial status.
	DraftStaleDays int
	// StagnantPipelineSize is the candidate count above which a pipeline
	// with nobody advanced past intake is flagged.
	StagnantPipelineSize int
	// FastCloseDays is the target duration for a successful close.
	FastCloseDays int
	// BudgetFloor is the monetary balance below which budget-low fires.
	BudgetFloor float64
}

// DefaultThresholds returns the stock tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StaleOpenDays:        30,
		DraftStaleDays:       7,
		StagnantPipelineSize: 10,
		FastCloseDays:        15,
		BudgetFloor:          1000,
	}
}

// Validate checks the thresholds are usable.
func (t Thresholds) Validate() error {
	if t.StaleOpenDays <= 0 {
		return fmt.Errorf("stale-open-days must be > 0")
	}
	if t.DraftStaleDays <= 0 {
		return fmt.Errorf("draft-stale-days must be > 0")
	}
	if t.StagnantPipelineSize <= 0 {
		return fmt.Errorf("stagnant-pipeline-size must be > 0")
	}
	if t.FastCloseDays <= 0 {
		return fmt.Errorf("fast-close-days must be > 0")
	}
	if t.BudgetFloor < 0 {
		return fmt.Errorf("budget-floor must be >= 0")
	}
	return nil
}

// Rule IDs of the built-in catalog.
const (
	RuleStaleOpen        = "stale-open"
	RuleNoEngagement     = "no-engagement"
	RuleStagnantPipeline = "stagnant-pipeline"
	RuleMissingAttribute = "missing-required-attribute"
	RuleBudgetLow        = "budget-low"
	RuleDraftStale       = "draft-stale"
	RulePositiveOutcome  = "positive-outcome"
)

// Catalog builds the built-in rule set with the given thresholds. The
// returned order is stable but carries no semantic weight: rules are
// independent by construction.
func Catalog(th Thresholds) []Rule {
	return []Rule{
		{
			ID:             RuleStaleOpen,
			Kinds:          []entity.Kind{entity.KindJob},
			Severity:       SeverityHigh,
			ActionRequired: true,
			Title:          "Requisition open too long",
			Predicate: func(e *entity.Entity, now time.Time) bool {
				return e.Status == entity.StatusPublished && e.DaysOpen(now) > th.StaleOpenDays
			},
			Message: func(e *entity.Entity, now time.Time) string {
				return fmt.Sprintf("%s has been open for %d days (target %d)", e.Name, e.DaysOpen(now), th.StaleOpenDays)
			},
			SeverityFor: func(e *entity.Entity, now time.Time) Severity {
				if e.DaysOpen(now) >= 2*th.StaleOpenDays {
					return SeverityHigh.Escalate()
				}
				return SeverityHigh
			},
		},
		{
			ID:             RuleNoEngagement,
			Kinds:          []entity.Kind{entity.KindJob},
			Severity:       SeverityMedium,
			ActionRequired: true,
			Title:          "No candidates",
			Predicate: func(e *entity.Entity, now time.Time) bool {
				return e.Status == entity.StatusPublished && e.CandidateCount == 0
			},
			Message: func(e *entity.Entity, now time.Time) string {
				return fmt.Sprintf("%s is published but has no candidates", e.Name)
			},
			StateFields: func(e *entity.Entity) []string {
				return []string{string(e.Status), fmt.Sprint(e.CandidateCount)}
			},
		},
		{
			ID:             RuleStagnantPipeline,
			Kinds:          []entity.Kind{entity.KindJob},
			Severity:       SeverityMedium,
			ActionRequired: true,
			Title:          "Pipeline stagnant",
			Predicate: func(e *entity.Entity, now time.Time) bool {
				return e.CandidateCount > th.StagnantPipelineSize && e.AdvancedCount == 0
			},
			Message: func(e *entity.Entity, now time.Time) string {
				return fmt.Sprintf("%s has %d candidates but none advanced past intake", e.Name, e.CandidateCount)
			},
			StateFields: func(e *entity.Entity) []string {
				return []string{fmt.Sprint(e.CandidateCount), fmt.Sprint(e.AdvancedCount)}
			},
		},
		{
			ID:             RuleMissingAttribute,
			Kinds:          []entity.Kind{entity.KindJob, entity.KindCandidate},
			Severity:       SeverityHigh,
			ActionRequired: true,
			Title:          "Required attribute missing",
			Predicate: func(e *entity.Entity, now time.Time) bool {
				return e.IsOpen() && len(e.MissingAttributes()) > 0
			},
			Message: func(e *entity.Entity, now time.Time) string {
				return fmt.Sprintf("%s is missing required attributes: %s", e.Name, strings.Join(e.MissingAttributes(), ", "))
			},
			StateFields: func(e *entity.Entity) []string {
				return append([]string{string(e.Status)}, e.MissingAttributes()...)
			},
		},
		{
			ID:             RuleBudgetLow,
			Kinds:          []entity.Kind{entity.KindJob},
			Severity:       SeverityHigh,
			ActionRequired: true,
			Title:          "Budget low",
			Predicate: func(e *entity.Entity, now time.Time) bool {
				return e.IsOpen() && e.Budget != nil && *e.Budget < th.BudgetFloor
			},
			Message: func(e *entity.Entity, now time.Time) string {
				return fmt.Sprintf("%s budget balance %.2f is below the floor of %.2f", e.Name, *e.Budget, th.BudgetFloor)
			},
			StateFields: func(e *entity.Entity) []string {
				if e.Budget == nil {
					return []string{string(e.Status)}
				}
				return []string{string(e.Status), fmt.Sprintf("%.2f", *e.Budget)}
			},
		},
		{
			ID:             RuleDraftStale,
			Kinds:          []entity.Kind{entity.KindJob, entity.KindCandidate, entity.KindReferral},
			Severity:       SeverityLow,
			ActionRequired: false,
			Title:          "Sitting in draft",
			Predicate: func(e *entity.Entity, now time.Time) bool {
				return e.IsDraft() && now.Sub(e.CreatedAt) > time.Duration(th.DraftStaleDays)*24*time.Hour
			},
			Message: func(e *entity.Entity, now time.Time) string {
				days := int(now.Sub(e.CreatedAt).Hours() / 24)
				return fmt.Sprintf("%s has been in %s for %d days", e.Name, e.Status, days)
			},
		},
		{
			ID:             RulePositiveOutcome,
			Kinds:          []entity.Kind{entity.KindJob, entity.KindCandidate, entity.KindReferral},
			Severity:       SeverityLow,
			ActionRequired: false,
			Title:          "Fast successful close",
			Predicate: func(e *entity.Entity, now time.Time) bool {
				if !e.ClosedSuccessfully() {
					return false
				}
				return e.SuccessAt().Sub(e.OpenedAt()) <= time.Duration(th.FastCloseDays)*24*time.Hour
			},
			Message: func(e *entity.Entity, now time.Time) string {
				days := int(e.SuccessAt().Sub(e.OpenedAt()).Hours() / 24)
				return fmt.Sprintf("%s closed successfully in %d days", e.Name, days)
			},
		},
	}
}
