package service

import (
	"fmt"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
)

// ConflictUnresolvedError is returned when a transition kept losing the
// optimistic-concurrency race past the retry cap. It carries the
// authoritative current status so the caller can reconcile UI state
// without a second round trip.
type ConflictUnresolvedError struct {
	EntityID string
	Current  entity.Status
	Attempts int
}

func (e *ConflictUnresolvedError) Error() string {
	return fmt.Sprintf("transition for %s unresolved after %d attempts; current status is %s",
		e.EntityID, e.Attempts, e.Current)
}
