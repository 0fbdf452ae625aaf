// Package domain defines the business logic for the activity service.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/observability"
)

// ActivityRepository captures persistence operations.
type ActivityRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]Activity, error)
	Create(ctx context.Context, activity Activity) (Activity, error)
	Get(ctx context.Context, activityID string) (*Activity, error)
	Update(ctx context.Context, activity Activity) error
	Delete(ctx context.Context, activity Activity) error
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates activity workflows.
type Service struct {
	repo   ActivityRepository
	guard  Guard
	logger *zap.Logger
	now    func() time.Time
}

// NewService constructs a Service. The ownership guard uses the repository's
// native identifier form when it provides one.
func NewService(repo ActivityRepository, opts ...Option) *Service {
	var canonical func(string) string
	if c, ok := repo.(IDCanonicalizer); ok {
		canonical = c.CanonicalID
	}
	s := &Service{
		repo:   repo,
		guard:  NewGuard(canonical),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListActivities returns every activity owned by ownerID. An owner with no
// records gets an empty, non-nil slice.
func (s *Service) ListActivities(ctx context.Context, ownerID string) (result []Activity, err error) {
	defer s.observe("list", time.Now(), &err)

	if strings.TrimSpace(ownerID) == "" {
		return nil, NewValidationError("ownerId", "owner is required")
	}

	activities, err := s.repo.ListByOwner(ctx, s.guard.Canonical(ownerID))
	if err != nil {
		return nil, wrapStoreErr("list activities", err)
	}
	if activities == nil {
		activities = []Activity{}
	}
	return activities, nil
}

// CreateActivity persists a new activity owned by input.OwnerID.
func (s *Service) CreateActivity(ctx context.Context, input CreateActivityInput) (result *Activity, err error) {
	defer s.observe("create", time.Now(), &err)

	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	activity := Activity{
		OwnerID:      s.guard.Canonical(input.OwnerID),
		ActivityType: input.ActivityType,
		Quantity:     *input.Quantity,
		Unit:         input.Unit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if input.Date != nil {
		d := input.Date.UTC()
		activity.Date = &d
	}

	created, err := s.repo.Create(ctx, activity)
	if err != nil {
		return nil, wrapStoreErr("create activity", err)
	}

	s.logger.Info("activity created",
		zap.String("activity_id", created.ID),
		zap.String("owner_id", created.OwnerID),
		zap.String("activity_type", created.ActivityType))
	observability.RecordActivityPersisted(created.UpdatedAt)
	return &created, nil
}

// UpdateActivity applies patch to the activity when callerID owns it. An empty
// patch returns the stored activity without writing or emitting an event.
func (s *Service) UpdateActivity(ctx context.Context, activityID, callerID string, patch ActivityPatch) (result *Activity, err error) {
	defer s.observe("update", time.Now(), &err)

	existing, err := s.loadOwned(ctx, activityID, callerID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return existing, nil
	}

	updated := patch.Apply(*existing)
	updated.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, wrapStoreErr("update activity", err)
	}

	s.logger.Info("activity updated",
		zap.String("activity_id", updated.ID),
		zap.String("owner_id", updated.OwnerID))
	observability.RecordActivityPersisted(updated.UpdatedAt)
	return &updated, nil
}

// DeleteActivity removes the activity when callerID owns it.
func (s *Service) DeleteActivity(ctx context.Context, activityID, callerID string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	existing, err := s.loadOwned(ctx, activityID, callerID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, *existing); err != nil {
		return wrapStoreErr("delete activity", err)
	}

	s.logger.Info("activity deleted",
		zap.String("activity_id", existing.ID),
		zap.String("owner_id", existing.OwnerID))
	observability.RecordActivityPersisted(s.now().UTC())
	return nil
}

// loadOwned fetches the activity, checking existence before ownership.
func (s *Service) loadOwned(ctx context.Context, activityID, callerID string) (*Activity, error) {
	if strings.TrimSpace(activityID) == "" {
		return nil, ErrActivityNotFound
	}

	existing, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return nil, wrapStoreErr("get activity", err)
	}
	if existing == nil {
		return nil, ErrActivityNotFound
	}
	if !s.guard.IsOwner(*existing, callerID) {
		s.logger.Warn("ownership check failed",
			zap.String("activity_id", existing.ID),
			zap.String("caller_id", callerID))
		return nil, ErrNotOwner
	}
	return existing, nil
}

func (s *Service) observe(operation string, start time.Time, errp *error) {
	outcome := observability.OutcomeOK
	if errp != nil && *errp != nil {
		err := *errp
		switch {
		case errors.Is(err, ErrActivityNotFound):
			outcome = observability.OutcomeNotFound
		case errors.Is(err, ErrNotOwner):
			outcome = observability.OutcomeUnauthorized
		case errors.Is(err, ErrValidation):
			outcome = observability.OutcomeInvalid
		default:
			outcome = observability.OutcomeError
			s.logger.Error("activity operation failed", zap.String("operation", operation), zap.Error(err))
		}
	}
	observability.RecordOperation(operation, outcome, time.Since(start))
}
