package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidpoints/internal/catalog"
	"kidpoints/internal/models"
)

var monday = time.Date(2024, time.March, 11, 18, 30, 0, 0, time.UTC)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	n := 0
	return New(catalog.New(),
		WithClock(func() time.Time { return monday }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
}

func mustAction(t *testing.T, l *Ledger, label string, typ models.ActionType, value float64, prefix string) models.Action {
	t.Helper()
	a, err := l.AddAction(label, typ, value, prefix)
	require.NoError(t, err)
	return a
}

func TestAddChild(t *testing.T) {
	l := newTestLedger(t)

	c := l.AddChild("Léa", "🦊")
	assert.Equal(t, models.InitialScore, c.Score)
	assert.Empty(t, c.History)
	assert.NotNil(t, c.History)

	got, ok := l.Child(c.ID)
	require.True(t, ok)
	assert.Equal(t, c, got)
}

func TestScoreFloor(t *testing.T) {
	l := newTestLedger(t)
	big := mustAction(t, l, "Broke a window", models.ActionBad, 3, "bh")
	c := l.AddChild("Tom", "")

	for i := 0; i < 5; i++ {
		_, fb, err := l.LogAction(c.ID, big.ID)
		require.NoError(t, err)
		assert.Equal(t, FeedbackNegative, fb)
	}

	got, _ := l.Child(c.ID)
	assert.Equal(t, 0.0, got.Score)
}

func TestLogDeleteSymmetry(t *testing.T) {
	l := newTestLedger(t)
	good := mustAction(t, l, "Homework", models.ActionGood, 1.5, "sc")
	c := l.AddChild("Tom", "")

	entry, fb, err := l.LogAction(c.ID, good.ID)
	require.NoError(t, err)
	assert.Equal(t, FeedbackPositive, fb)
	assert.Equal(t, 1.5, entry.Value)

	got, _ := l.Child(c.ID)
	assert.Equal(t, 11.5, got.Score)

	removed, err := l.DeleteLog(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry, removed)

	got, _ = l.Child(c.ID)
	assert.Equal(t, 10.0, got.Score)
	assert.Empty(t, l.Logs())
}

func TestDeleteLogAcrossFloorIsNotSymmetric(t *testing.T) {
	l := newTestLedger(t)
	big := mustAction(t, l, "Tantrum", models.ActionBad, 3, "bh")
	c := l.AddChild("Tom", "")

	var last models.LogEntry
	for i := 0; i < 4; i++ {
		last, _, _ = l.LogAction(c.ID, big.ID)
	}
	got, _ := l.Child(c.ID)
	require.Equal(t, 0.0, got.Score)

	_, err := l.DeleteLog(last.ID)
	require.NoError(t, err)
	got, _ = l.Child(c.ID)
	assert.Equal(t, 3.0, got.Score)
}

func TestNotFound(t *testing.T) {
	l := newTestLedger(t)
	good := mustAction(t, l, "Homework", models.ActionGood, 1, "sc")
	c := l.AddChild("Tom", "")

	_, _, err := l.LogAction(c.ID, "nope")
	assert.ErrorIs(t, err, ErrActionNotFound)
	_, _, err = l.LogAction("ghost", good.ID)
	assert.ErrorIs(t, err, ErrChildNotFound)
	_, err = l.DeleteLog("nope")
	assert.ErrorIs(t, err, ErrLogNotFound)
	assert.ErrorIs(t, l.RemoveChild("ghost"), ErrChildNotFound)
	assert.ErrorIs(t, l.DeleteAction("nope"), ErrActionNotFound)
	_, _, err = l.ValidateWeek("ghost")
	assert.ErrorIs(t, err, ErrChildNotFound)

	got, _ := l.Child(c.ID)
	assert.Equal(t, models.InitialScore, got.Score)
	assert.Empty(t, l.Logs())
}

func TestLogActionBatch(t *testing.T) {
	l := newTestLedger(t)
	a := mustAction(t, l, "A", models.ActionGood, 1, "sc")
	b := mustAction(t, l, "B", models.ActionBad, 0.5, "hm")
	c := mustAction(t, l, "C", models.ActionGood, 2, "tb")
	kid := l.AddChild("Tom", "")

	entries, fb, err := l.LogActionBatch(kid.ID, []string{a.ID, "unknown", b.ID, c.ID})
	require.NoError(t, err)
	assert.Equal(t, FeedbackPositive, fb)
	require.Len(t, entries, 3)
	assert.Equal(t, []float64{1, -0.5, 2}, []float64{entries[0].Value, entries[1].Value, entries[2].Value})

	got, _ := l.Child(kid.ID)
	assert.Equal(t, 12.5, got.Score)

	entries, fb, err = l.LogActionBatch(kid.ID, []string{"unknown"})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, FeedbackNone, fb)

	_, fb, _ = l.LogActionBatch(kid.ID, []string{b.ID, b.ID})
	assert.Equal(t, FeedbackNegative, fb)
}

func TestValidateWeekScenario(t *testing.T) {
	l := newTestLedger(t)
	plus := mustAction(t, l, "Made bed", models.ActionGood, 1, "hm")
	minus := mustAction(t, l, "Shouted", models.ActionBad, 2, "bh")
	kid := l.AddChild("Léa", "")
	other := l.AddChild("Tom", "")

	for i := 0; i < 3; i++ {
		_, _, err := l.LogAction(kid.ID, plus.ID)
		require.NoError(t, err)
	}
	_, _, err := l.LogAction(kid.ID, minus.ID)
	require.NoError(t, err)
	_, _, err = l.LogAction(other.ID, minus.ID)
	require.NoError(t, err)

	entry, fb, err := l.ValidateWeek(kid.ID)
	require.NoError(t, err)
	assert.Equal(t, FeedbackVictory, fb)
	assert.Equal(t, models.HistoryEntry{Date: "11/03/2024", Score: 11}, entry)

	got, _ := l.Child(kid.ID)
	assert.Equal(t, 10.0, got.Score)
	assert.Equal(t, []models.HistoryEntry{{Date: "11/03/2024", Score: 11}}, got.History)
	assert.Empty(t, l.ChildLogs(kid.ID))

	untouched, _ := l.Child(other.ID)
	assert.Equal(t, 8.0, untouched.Score)
	assert.Len(t, l.ChildLogs(other.ID), 1)
}

func TestValidateWeekBelowThreshold(t *testing.T) {
	l := newTestLedger(t)
	minus := mustAction(t, l, "Lied", models.ActionBad, 1, "bh")
	kid := l.AddChild("Tom", "")
	_, _, _ = l.LogAction(kid.ID, minus.ID)

	entry, fb, err := l.ValidateWeek(kid.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.0, entry.Score)
	assert.Equal(t, FeedbackNone, fb)
}

func TestValidateWeekCustomLayout(t *testing.T) {
	l := New(catalog.New(), WithClock(func() time.Time { return monday }), WithDateLayout("2006-01-02"))
	kid := l.AddChild("Tom", "")

	entry, _, err := l.ValidateWeek(kid.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", entry.Date)
}

func TestResetScores(t *testing.T) {
	l := newTestLedger(t)
	plus := mustAction(t, l, "Read", models.ActionGood, 2, "sc")
	a := l.AddChild("A", "")
	b := l.AddChild("B", "")
	_, _, _ = l.LogAction(a.ID, plus.ID)
	_, _, _ = l.LogAction(b.ID, plus.ID)

	l.ResetScores()

	for _, k := range l.Kids() {
		assert.Equal(t, models.InitialScore, k.Score)
	}
	assert.Empty(t, l.Logs())
}

func TestOrphanLogs(t *testing.T) {
	l := newTestLedger(t)
	plus := mustAction(t, l, "Read", models.ActionGood, 1, "sc")
	kid := l.AddChild("Tom", "")
	entry, _, _ := l.LogAction(kid.ID, plus.ID)

	require.NoError(t, l.RemoveChild(kid.ID))

	assert.Len(t, l.Logs(), 1, "raw collection keeps orphans")
	assert.Empty(t, l.ChildLogs(kid.ID))
	assert.Zero(t, l.Stats("").Good)

	_, err := l.DeleteLog(entry.ID)
	require.NoError(t, err)
	assert.Empty(t, l.Logs())
}

func TestIdenticalConsecutiveLogs(t *testing.T) {
	l := newTestLedger(t)
	plus := mustAction(t, l, "Read", models.ActionGood, 1, "sc")
	kid := l.AddChild("Tom", "")

	first, _, _ := l.LogAction(kid.ID, plus.ID)
	second, _, _ := l.LogAction(kid.ID, plus.ID)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Value, second.Value)
	assert.Len(t, l.ChildLogs(kid.ID), 2)
}

func TestDeleteActionKeepsLogValue(t *testing.T) {
	l := newTestLedger(t)
	plus := mustAction(t, l, "Read", models.ActionGood, 2, "sc")
	kid := l.AddChild("Tom", "")
	entry, _, _ := l.LogAction(kid.ID, plus.ID)

	require.NoError(t, l.DeleteAction(plus.ID))
	_, ok := l.Action(plus.ID)
	assert.False(t, ok)

	_, err := l.DeleteLog(entry.ID)
	require.NoError(t, err)
	got, _ := l.Child(kid.ID)
	assert.Equal(t, 10.0, got.Score)
}

func TestChildLogsNewestFirst(t *testing.T) {
	now := monday
	l := New(catalog.New(), WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))
	plus := mustAction(t, l, "Read", models.ActionGood, 1, "sc")
	kid := l.AddChild("Tom", "")
	first, _, _ := l.LogAction(kid.ID, plus.ID)
	second, _, _ := l.LogAction(kid.ID, plus.ID)

	logs := l.ChildLogs(kid.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, second.ID, logs[0].ID)
	assert.Equal(t, first.ID, logs[1].ID)
}

func TestObservers(t *testing.T) {
	l := newTestLedger(t)
	var changes []Change
	unsubscribe := l.Subscribe(func(c Change) { changes = append(changes, c) })

	plus := mustAction(t, l, "Read", models.ActionGood, 1, "sc")
	kid := l.AddChild("Tom", "")
	_, _, _ = l.LogAction(kid.ID, plus.ID)
	l.ReplaceKids(l.Kids(), OriginRemote)

	require.Len(t, changes, 4)
	assert.Equal(t, Change{Scope: ScopeActions, Feedback: FeedbackNone, Origin: OriginLocal}, changes[0])
	assert.True(t, changes[1].Scope.Has(ScopeKids))
	assert.Equal(t, FeedbackPositive, changes[2].Feedback)
	assert.True(t, changes[2].Scope.Has(ScopeLogs))
	assert.Equal(t, OriginRemote, changes[3].Origin)

	unsubscribe()
	l.ResetScores()
	assert.Len(t, changes, 4)
}

func TestLoadAndSnapshot(t *testing.T) {
	l := newTestLedger(t)
	plus := mustAction(t, l, "Read", models.ActionGood, 1, "sc")
	kid := l.AddChild("Tom", "")
	_, _, _ = l.LogAction(kid.ID, plus.ID)

	state := l.Snapshot()

	other := New(catalog.New())
	var origin Origin
	other.Subscribe(func(c Change) { origin = c.Origin })
	other.Load(state, OriginLoad)

	assert.Equal(t, OriginLoad, origin)
	assert.Equal(t, l.Kids(), other.Kids())
	assert.Equal(t, l.Logs(), other.Logs())
	_, ok := other.Action(plus.ID)
	assert.True(t, ok)
}

func TestStatsAndRecap(t *testing.T) {
	l := newTestLedger(t)
	read := mustAction(t, l, "Read", models.ActionGood, 1, "sc")
	tidy := mustAction(t, l, "Tidy", models.ActionGood, 0.5, "hm")
	shout := mustAction(t, l, "Shout", models.ActionBad, 1, "bh")
	kid := l.AddChild("Tom", "")

	_, _, _ = l.LogActionBatch(kid.ID, []string{tidy.ID, read.ID, read.ID, shout.ID})

	st := l.Stats(kid.ID)
	assert.Equal(t, 3, st.Good)
	assert.Equal(t, 1, st.Bad)
	assert.Equal(t, 2.5, st.Gained)
	assert.Equal(t, 1.0, st.Lost)
	assert.Equal(t, 2, st.ByCategory[models.CategorySchool])
	assert.Equal(t, 1, st.ByCategory[models.CategoryHome])
	assert.Equal(t, 1, st.ByCategory[models.CategoryBehavior])

	recap, err := l.Recap(kid.ID)
	require.NoError(t, err)
	require.NotNil(t, recap.TopGood)
	assert.Equal(t, read.ID, recap.TopGood.ActionID)
	assert.Equal(t, "Read", recap.TopGood.Label)
	assert.Equal(t, 2, recap.TopGood.Count)
	require.NotNil(t, recap.TopBad)
	assert.Equal(t, shout.ID, recap.TopBad.ActionID)

	_, err = l.Recap("ghost")
	assert.ErrorIs(t, err, ErrChildNotFound)
}

func TestConcurrentLogging(t *testing.T) {
	l := New(catalog.New())
	plus := mustAction(t, l, "Read", models.ActionGood, 0.5, "sc")
	kid := l.AddChild("Tom", "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = l.LogAction(kid.ID, plus.ID)
		}()
	}
	wg.Wait()

	got, _ := l.Child(kid.ID)
	assert.Equal(t, 20.0, got.Score)
	assert.Len(t, l.Logs(), 20)
}
