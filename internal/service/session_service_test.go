package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kidpoints/internal/kvstore"
	"kidpoints/internal/models"
	"kidpoints/internal/remote"
	"kidpoints/internal/repository"
	"kidpoints/internal/security"
)

func newSessionFixture(t *testing.T) (*syncFixture, *SessionService) {
	t.Helper()
	f := newSyncFixture(t)
	return f, NewSessionService(f.ledger, f.sync, f.local, f.remote, nil, zap.NewNop())
}

func TestSessionResume(t *testing.T) {
	t.Run("guest by default", func(t *testing.T) {
		_, s := newSessionFixture(t)
		require.NoError(t, s.Resume(context.Background()))
		assert.Equal(t, models.ModeGuest, s.Mode())
	})

	t.Run("saved family code", func(t *testing.T) {
		f, s := newSessionFixture(t)
		ctx := context.Background()
		f.remote.put(models.FamilyRecord{ID: "ABC123", Kids: []models.Child{{ID: "k", Name: "Shared"}}})
		require.NoError(t, f.local.Set(ctx, kvstore.KeyFamilyID, "ABC123"))

		require.NoError(t, s.Resume(ctx))
		assert.Equal(t, models.ModeFamilyCode, s.Mode())
		assert.Equal(t, "ABC123", s.State().FamilyID)
		assert.Equal(t, "Shared", f.ledger.Kids()[0].Name)
	})
}

func TestSessionJoinFamilyCode(t *testing.T) {
	f, s := newSessionFixture(t)
	ctx := context.Background()
	f.remote.put(models.FamilyRecord{ID: "XYZ789", Kids: []models.Child{{ID: "k", Name: "Shared"}}, Pin: strPtr("4444")})

	tests := []struct {
		name string
		code string
	}{
		{"too short", "XY"},
		{"bad characters", "XYZ-78"},
		{"unknown code", "AAAAAA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.JoinFamilyCode(ctx, tt.code)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, models.ModeGuest, s.Mode())
		})
	}

	ok, err := s.JoinFamilyCode(ctx, " xyz789 ")
	require.NoError(t, err)
	require.True(t, ok)
	f.flush(t)

	state := s.State()
	assert.Equal(t, models.ModeFamilyCode, state.Mode)
	assert.Equal(t, "XYZ789", state.FamilyID)
	assert.True(t, state.HasPin)
	assert.Equal(t, "Shared", f.ledger.Kids()[0].Name)

	var saved string
	require.True(t, getLocal(t, f.local, kvstore.KeyFamilyID, &saved))
	assert.Equal(t, "XYZ789", saved)
}

func TestSessionCreateFamilyCode(t *testing.T) {
	f, s := newSessionFixture(t)
	ctx := context.Background()
	f.remote.put(models.FamilyRecord{ID: "TAKEN1"})

	codes := []string{"TAKEN1", "FRESH2"}
	s.newCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	f.ledger.AddChild("Emma", "")
	require.NoError(t, s.SetPin(strPtr("1234")))

	code, err := s.CreateFamilyCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "FRESH2", code)
	assert.Equal(t, models.ModeFamilyCode, s.Mode())

	rec, ok := f.remote.record("FRESH2")
	require.True(t, ok)
	require.Len(t, rec.Kids, 1)
	assert.Equal(t, "Emma", rec.Kids[0].Name)
	assert.Equal(t, "1234", *rec.Pin)
	assert.Len(t, f.ledger.Kids(), 1, "creating keeps the local roster")
}

func TestSessionCreateFamilyCodeRetriesTakenCodeOnSQL(t *testing.T) {
	db := openTestDB(t)
	f := newSyncFixture(t)
	ctx := context.Background()
	logger := zap.NewNop()
	shared := remote.NewStore(remote.NewSQLRecords(repository.NewFamilyRepository(db), logger), remote.NopNotifier{}, "device-a", logger)
	s := NewSessionService(f.ledger, f.sync, f.local, shared, nil, logger)

	existing := []models.Child{{ID: "k", Name: "Theirs", Score: 10, History: []models.HistoryEntry{}}}
	require.NoError(t, shared.Insert(ctx, models.FamilyRecord{ID: "AAAAAA", Kids: existing}))

	codes := []string{"AAAAAA", "BBBBBB"}
	s.newCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}
	f.ledger.AddChild("Emma", "")

	code, err := s.CreateFamilyCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", code)

	taken, err := shared.Fetch(ctx, "AAAAAA")
	require.NoError(t, err)
	require.NotNil(t, taken)
	assert.Equal(t, "Theirs", taken.Kids[0].Name, "the taken code keeps its record")

	created, err := shared.Fetch(ctx, "BBBBBB")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "Emma", created.Kids[0].Name)
}

func TestSessionLogoutReloadsLocal(t *testing.T) {
	f, s := newSessionFixture(t)
	ctx := context.Background()

	f.ledger.AddChild("Local", "")
	f.flush(t)

	f.remote.put(models.FamilyRecord{ID: "XYZ789", Kids: []models.Child{{ID: "k", Name: "Shared"}}})
	ok, err := s.JoinFamilyCode(ctx, "XYZ789")
	require.NoError(t, err)
	require.True(t, ok)
	f.ledger.AddChild("Added remotely", "")
	f.flush(t)

	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, models.ModeGuest, s.Mode())
	assert.Empty(t, s.State().FamilyID)

	kids := f.ledger.Kids()
	require.Len(t, kids, 1)
	assert.Equal(t, "Local", kids[0].Name)

	v, err := f.local.Get(ctx, kvstore.KeyFamilyID)
	require.NoError(t, err)
	assert.False(t, v.Present())
}

func TestSessionWithoutAccounts(t *testing.T) {
	_, s := newSessionFixture(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "a@b.co", "password1", "Parent")
	assert.ErrorIs(t, err, ErrAuthUnavailable)
	_, err = s.Login(ctx, "a@b.co", "password1")
	assert.ErrorIs(t, err, ErrAuthUnavailable)
}

func TestSessionWithoutRemote(t *testing.T) {
	f := newSyncFixture(t)
	s := NewSessionService(f.ledger, f.sync, f.local, nil, nil, zap.NewNop())
	ctx := context.Background()

	_, err := s.JoinFamilyCode(ctx, "ABC123")
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	_, err = s.CreateFamilyCode(ctx)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestSessionOnboarding(t *testing.T) {
	f, s := newSessionFixture(t)
	ctx := context.Background()

	required, err := s.OnboardingRequired(ctx)
	require.NoError(t, err)
	assert.True(t, required)

	f.ledger.AddChild("Emma", "")
	required, err = s.OnboardingRequired(ctx)
	require.NoError(t, err)
	assert.False(t, required, "a roster skips onboarding")

	_, s2 := newSessionFixture(t)
	require.NoError(t, s2.CompleteOnboarding(ctx))
	required, err = s2.OnboardingRequired(ctx)
	require.NoError(t, err)
	assert.False(t, required)
}

func TestSessionPinGate(t *testing.T) {
	_, s := newSessionFixture(t)
	ctx := context.Background()

	runs := 0
	action := func() (any, error) { runs++; return runs, nil }

	_, err := s.Guard(ctx, "log", action)
	require.NoError(t, err)
	assert.Equal(t, 1, runs, "no pin runs immediately")

	assert.Error(t, s.SetPin(strPtr("12a4")))
	require.NoError(t, s.SetPin(strPtr("1234")))
	assert.True(t, s.State().HasPin)

	_, err = s.Guard(ctx, "log", action)
	assert.ErrorIs(t, err, security.ErrPinRequired)
	name, pending := s.PendingAction()
	assert.True(t, pending)
	assert.Equal(t, "log", name)

	_, err = s.ConfirmPin("0000")
	assert.ErrorIs(t, err, security.ErrPinIncorrect)
	assert.Equal(t, 1, runs)
	res, err := s.ConfirmPin("1234")
	require.NoError(t, err)
	assert.Equal(t, 2, res)

	_, err = s.Guard(security.WithPin(ctx, "1234"), "log", action)
	require.NoError(t, err)
	assert.Equal(t, 3, runs)

	_, err = s.Guard(ctx, "validate", action)
	assert.ErrorIs(t, err, security.ErrPinRequired)
	require.NoError(t, s.SetPin(nil))
	_, pending = s.PendingAction()
	assert.False(t, pending, "clearing the pin drops the parked action")
	assert.False(t, s.State().HasPin)
}
