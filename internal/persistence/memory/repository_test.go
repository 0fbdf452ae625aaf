package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/domain"
)

func TestListOrdersByCreation(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	second, err := repo.Create(ctx, domain.Activity{OwnerID: "u1", ActivityType: "Gas", Unit: "kWh", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	first, err := repo.Create(ctx, domain.Activity{OwnerID: "u1", ActivityType: "Travel", Unit: "km", CreatedAt: base})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.Activity{OwnerID: "u2", ActivityType: "Water", Unit: "liters", CreatedAt: base})
	require.NoError(t, err)

	listed, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, first.ID, listed[0].ID)
	require.Equal(t, second.ID, listed[1].ID)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	date := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	created, err := repo.Create(ctx, domain.Activity{OwnerID: "u1", ActivityType: "Travel", Unit: "km", Date: &date})
	require.NoError(t, err)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	*got.Date = got.Date.Add(48 * time.Hour)

	again, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, date.Equal(*again.Date))
}

func TestUpdateKeepsOwnerAndCreation(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	created, err := repo.Create(ctx, domain.Activity{OwnerID: "u1", ActivityType: "Travel", Unit: "km", CreatedAt: time.Unix(10, 0)})
	require.NoError(t, err)

	changed := created
	changed.OwnerID = "intruder"
	changed.CreatedAt = time.Unix(99, 0)
	changed.Quantity = 7
	require.NoError(t, repo.Update(ctx, changed))

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "u1", got.OwnerID)
	require.True(t, got.CreatedAt.Equal(time.Unix(10, 0)))
	require.Equal(t, 7.0, got.Quantity)
}

func TestMissingRecords(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	got, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, got)
	require.ErrorIs(t, repo.Update(ctx, domain.Activity{ID: "missing"}), domain.ErrActivityNotFound)
	require.ErrorIs(t, repo.Delete(ctx, domain.Activity{ID: "missing"}), domain.ErrActivityNotFound)
}

func TestCreateRejectsBlankFields(t *testing.T) {
	repo := NewRepository()

	_, err := repo.Create(context.Background(), domain.Activity{OwnerID: "u1", ActivityType: "Travel"})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Zero(t, repo.Len())
}

func TestCancelledContext(t *testing.T) {
	repo := NewRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListByOwner(ctx, "u1")
	require.ErrorIs(t, err, context.Canceled)
}
