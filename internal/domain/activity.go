package domain

import (
	"strings"
	"time"
)

// Activity represents one logged environmental action owned by a single user.
type Activity struct {
	ID           string
	OwnerID      string
	ActivityType string
	Quantity     float64
	Unit         string
	Date         *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateActivityInput captures the payload from the API layer.
type CreateActivityInput struct {
	OwnerID      string
	ActivityType string
	Quantity     *float64
	Unit         string
	Date         *time.Time
}

// Validate reports the first missing required field.
func (in CreateActivityInput) Validate() error {
	if strings.TrimSpace(in.OwnerID) == "" {
		return NewValidationError("ownerId", "owner is required")
	}
	if strings.TrimSpace(in.ActivityType) == "" {
		return NewValidationError("activityType", "activityType is required")
	}
	if in.Quantity == nil {
		return NewValidationError("quantity", "quantity is required")
	}
	if strings.TrimSpace(in.Unit) == "" {
		return NewValidationError("unit", "unit is required")
	}
	return nil
}

// ActivityPatch describes a partial update. A nil field was not supplied.
type ActivityPatch struct {
	ActivityType *string
	Quantity     *float64
	Unit         *string
	Date         *time.Time
}

// Apply merges the patch into a copy of the activity. Quantity replaces whenever
// supplied, zero included. Strings replace only when supplied and not blank,
// the same rule CreateActivityInput.Validate applies.
func (p ActivityPatch) Apply(a Activity) Activity {
	if present(p.ActivityType) {
		a.ActivityType = *p.ActivityType
	}
	if p.Quantity != nil {
		a.Quantity = *p.Quantity
	}
	if present(p.Unit) {
		a.Unit = *p.Unit
	}
	if p.Date != nil {
		d := p.Date.UTC()
		a.Date = &d
	}
	return a
}

// Empty reports whether the patch would leave every field untouched.
func (p ActivityPatch) Empty() bool {
	return !present(p.ActivityType) && p.Quantity == nil && !present(p.Unit) && p.Date == nil
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
