package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPatchApply(t *testing.T) {
	date := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)
	base := Activity{ID: "a1", OwnerID: "u1", ActivityType: "Travel", Quantity: 10, Unit: "km"}

	typ := "Gas"
	got := ActivityPatch{ActivityType: &typ, Date: &date}.Apply(base)
	require.Equal(t, "Gas", got.ActivityType)
	require.Equal(t, 10.0, got.Quantity)
	require.Equal(t, "km", got.Unit)
	require.True(t, date.Equal(*got.Date))
	require.Equal(t, "u1", got.OwnerID)
	require.Equal(t, "a1", got.ID)

	require.Equal(t, base, ActivityPatch{}.Apply(base))

	blank := " \t"
	require.Equal(t, base, ActivityPatch{ActivityType: &blank, Unit: &blank}.Apply(base))
}

func TestPatchEmpty(t *testing.T) {
	empty := ""
	zero := 0.0
	require.True(t, ActivityPatch{}.Empty())
	blank := "  "
	require.True(t, ActivityPatch{Unit: &empty}.Empty())
	require.True(t, ActivityPatch{ActivityType: &blank, Unit: &blank}.Empty())
	require.False(t, ActivityPatch{Quantity: &zero}.Empty())
}
