package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/rules"
)

// Fingerprint derives the deterministic identity of an alert condition
// from the rule, the entity, and the rule-relevant state fields. Identical
// state always produces an identical fingerprint.
func Fingerprint(r *rules.Rule, e *entity.Entity) string {
	fields := []string{string(e.Status)}
	if r.StateFields != nil {
		fields = r.StateFields(e)
	}
	h := sha256.New()
	h.Write([]byte(e.ID))
	h.Write([]byte{0})
	h.Write([]byte(r.ID))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
