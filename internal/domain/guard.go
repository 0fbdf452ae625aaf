package domain

import (
	"strings"

	"github.com/google/uuid"
)

// IDCanonicalizer is implemented by stores whose native identifier type has a
// canonical textual form different from the default.
type IDCanonicalizer interface {
	CanonicalID(id string) string
}

// CanonicalID is the default identifier normalisation: UUIDs compare by value,
// everything else compares exactly.
func CanonicalID(id string) string {
	id = strings.TrimSpace(id)
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return id
}

// Guard decides whether a caller may mutate an activity.
type Guard struct {
	canonical func(string) string
}

// NewGuard builds a Guard. A nil canonicalizer falls back to CanonicalID.
func NewGuard(canonical func(string) string) Guard {
	if canonical == nil {
		canonical = CanonicalID
	}
	return Guard{canonical: canonical}
}

// IsOwner reports whether callerID identifies the owner of a.
func (g Guard) IsOwner(a Activity, callerID string) bool {
	if strings.TrimSpace(callerID) == "" || a.OwnerID == "" {
		return false
	}
	return g.canon(a.OwnerID) == g.canon(callerID)
}

// Canonical returns the canonical form of id.
func (g Guard) Canonical(id string) string {
	return g.canon(id)
}

func (g Guard) canon(id string) string {
	if g.canonical == nil {
		return CanonicalID(id)
	}
	return g.canonical(id)
}
