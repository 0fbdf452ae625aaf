// Package memory stores activities in process memory for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/domain"
)

// Repository is an in-memory domain.ActivityRepository.
type Repository struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{activities: make(map[string]domain.Activity)}
}

// ListByOwner implements domain.ActivityRepository.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Activity, 0)
	for _, a := range r.activities {
		if a.OwnerID == ownerID {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Create implements domain.ActivityRepository.
func (r *Repository) Create(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Activity{}, err
	}
	if activity.OwnerID == "" {
		return domain.Activity{}, domain.NewValidationError("ownerId", "owner is required")
	}
	if activity.ActivityType == "" {
		return domain.Activity{}, domain.NewValidationError("activityType", "activityType is required")
	}
	if activity.Unit == "" {
		return domain.Activity{}, domain.NewValidationError("unit", "unit is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	activity.ID = uuid.NewString()
	r.activities[activity.ID] = clone(activity)
	return clone(activity), nil
}

// Get implements domain.ActivityRepository.
func (r *Repository) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.activities[activityID]
	if !ok {
		return nil, nil
	}
	out := clone(a)
	return &out, nil
}

// Update implements domain.ActivityRepository.
func (r *Repository) Update(ctx context.Context, activity domain.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.activities[activity.ID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	activity.OwnerID = existing.OwnerID
	activity.CreatedAt = existing.CreatedAt
	r.activities[activity.ID] = clone(activity)
	return nil
}

// Delete implements domain.ActivityRepository.
func (r *Repository) Delete(ctx context.Context, activity domain.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.activities[activity.ID]; !ok {
		return domain.ErrActivityNotFound
	}
	delete(r.activities, activity.ID)
	return nil
}

// Len reports the number of stored activities.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activities)
}

func clone(a domain.Activity) domain.Activity {
	if a.Date != nil {
		d := *a.Date
		a.Date = &d
	}
	return a
}
