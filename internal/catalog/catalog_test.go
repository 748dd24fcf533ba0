package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidpoints/internal/models"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestBuiltinsCoverEveryCategory(t *testing.T) {
	seen := make(map[models.Category]int)
	ids := make(map[string]bool)
	for _, a := range Builtins() {
		require.False(t, ids[a.ID], "duplicate builtin id %s", a.ID)
		ids[a.ID] = true
		seen[a.Category()]++

		switch a.Type {
		case models.ActionGood:
			assert.Greater(t, a.Value, 0.0, a.ID)
		case models.ActionBad:
			assert.Less(t, a.Value, 0.0, a.ID)
		default:
			t.Errorf("builtin %s has invalid type %q", a.ID, a.Type)
		}
		assert.GreaterOrEqual(t, abs(a.Value), 0.5, a.ID)
		assert.LessOrEqual(t, abs(a.Value), 3.0, a.ID)
	}
	for _, c := range models.Categories {
		assert.NotZero(t, seen[c], "no builtin for category %s", c)
	}
	assert.Zero(t, seen[models.CategoryOther])
}

func TestAddNormalizesSign(t *testing.T) {
	c := New()

	x, err := c.Add("X", models.ActionBad, 1.0, "hy")
	require.NoError(t, err)
	assert.Equal(t, -1.0, x.Value)
	assert.Equal(t, models.CategoryHygiene, x.Category())

	y, err := c.Add("Y", models.ActionGood, -2.0, "sc")
	require.NoError(t, err)
	assert.Equal(t, 2.0, y.Value)

	_, err = c.Add("Z", models.ActionType("neutral"), 1, "sc")
	assert.Error(t, err)
}

func TestAddIDsAreMonotonic(t *testing.T) {
	c := New()
	c.now = fixedClock(1_700_000_000_000)

	a, _ := c.Add("A", models.ActionGood, 1, "hm")
	b, _ := c.Add("B", models.ActionGood, 1, "hm")
	assert.Equal(t, "hm_1700000000000", a.ID)
	assert.Equal(t, "hm_1700000000001", b.ID)

	got, ok := c.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, "B", got.Label)
}

func TestDeleteHidesBuiltinAndSnapshotRestores(t *testing.T) {
	c := New()
	c.now = fixedClock(5000)

	custom, _ := c.Add("Fed the cat", models.ActionGood, 0.5, "hm")
	require.True(t, c.Delete("sc_1"))
	assert.False(t, c.Delete("sc_1"), "second delete is a no-op")
	assert.False(t, c.Delete("missing"))

	_, ok := c.Get("sc_1")
	assert.False(t, ok)

	snap := c.Snapshot()
	assert.Equal(t, []string{"sc_1"}, snap.Hidden)
	assert.Equal(t, []models.Action{custom}, snap.Custom)

	restored := New()
	restored.Restore(snap)
	assert.Equal(t, c.List(), restored.List())

	next, _ := restored.Add("Another", models.ActionGood, 1, "hm")
	assert.Greater(t, idStamp(next.ID), idStamp(custom.ID))

	require.True(t, restored.Delete(custom.ID))
	_, ok = restored.Get(custom.ID)
	assert.False(t, ok)
}

func TestFromActions(t *testing.T) {
	all := Builtins()
	legacy := append(all[1:], models.Action{ID: "bh_99", Label: "Custom", Type: models.ActionGood, Value: 1})

	snap := FromActions(legacy)
	assert.Equal(t, []string{all[0].ID}, snap.Hidden)
	require.Len(t, snap.Custom, 1)
	assert.Equal(t, "bh_99", snap.Custom[0].ID)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
