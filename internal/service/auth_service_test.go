package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kidpoints/internal/catalog"
	"kidpoints/internal/kvstore"
	"kidpoints/internal/ledger"
	"kidpoints/internal/models"
	"kidpoints/internal/repository"
	"kidpoints/internal/security"
)

func newAuthService(t *testing.T, local kvstore.Store) *AuthService {
	t.Helper()
	db := openTestDB(t)
	tokens := security.NewTokenIssuer("test-secret", time.Hour)
	return NewAuthService(repository.NewUserRepository(db), tokens, local, zap.NewNop())
}

func TestAuthRegisterAndLogin(t *testing.T) {
	local := kvstore.NewMemoryStore()
	auth := newAuthService(t, local)
	ctx := context.Background()

	var seen []*models.Session
	auth.Subscribe(func(s *models.Session) { seen = append(seen, s) })

	session, user, err := auth.Register(ctx, " Parent@Example.com ", "password123", "Parent")
	require.NoError(t, err)
	assert.Equal(t, "parent@example.com", user.Email)
	assert.Equal(t, user.ID, session.UserID)
	assert.Equal(t, session, auth.CurrentSession())

	var token string
	require.True(t, getLocal(t, local, kvstore.KeyAuthToken, &token))
	assert.Equal(t, session.Token, token)

	_, _, err = auth.Register(ctx, "parent@example.com", "password123", "Other")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, _, err = auth.Login(ctx, "parent@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = auth.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, loggedIn, err := auth.Login(ctx, "PARENT@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	require.NoError(t, auth.Logout(ctx))
	assert.Nil(t, auth.CurrentSession())
	require.Len(t, seen, 3)
	assert.Nil(t, seen[2])
}

func TestAuthRegisterValidation(t *testing.T) {
	auth := newAuthService(t, kvstore.NewMemoryStore())
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		userName string
	}{
		{"bad email", "not-an-email", "password123", "Parent"},
		{"short password", "a@example.com", "short", "Parent"},
		{"short name", "a@example.com", "password123", "P"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := auth.Register(ctx, tt.email, tt.password, tt.userName)
			assert.Error(t, err)
		})
	}
}

func TestAuthRestore(t *testing.T) {
	local := kvstore.NewMemoryStore()
	auth := newAuthService(t, local)
	ctx := context.Background()

	session, err := auth.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, session, "nothing saved")

	issued, _, err := auth.Register(ctx, "parent@example.com", "password123", "Parent")
	require.NoError(t, err)

	restored, err := auth.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, issued.UserID, restored.UserID)

	require.NoError(t, local.Set(ctx, kvstore.KeyAuthToken, "garbage"))
	restored, err = auth.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, restored)

	v, err := local.Get(ctx, kvstore.KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, v.Present(), "stale token removed")
}

func TestAuthOAuthLogin(t *testing.T) {
	auth := newAuthService(t, kvstore.NewMemoryStore())
	ctx := context.Background()

	_, created, err := auth.OAuthLogin(ctx, "google", "sub-1", "kid.parent@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "kid.parent", created.Name)

	_, again, err := auth.OAuthLogin(ctx, "google", "sub-1", "kid.parent@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	_, local, err := auth.Register(ctx, "linked@example.com", "password123", "Linked")
	require.NoError(t, err)
	_, linked, err := auth.OAuthLogin(ctx, "google", "sub-2", "linked@example.com", "Linked")
	require.NoError(t, err)
	assert.Equal(t, local.ID, linked.ID, "existing email is linked")

	_, _, err = auth.OAuthLogin(ctx, "", "sub-3", "x@example.com", "X")
	assert.Error(t, err)
}

func TestSessionAccountMode(t *testing.T) {
	f := newSyncFixture(t)
	auth := newAuthService(t, f.local)
	s := NewSessionService(f.ledger, f.sync, f.local, f.remote, auth, zap.NewNop())
	ctx := context.Background()

	f.ledger.AddChild("Emma", "")

	session, err := s.Register(ctx, "parent@example.com", "password123", "Parent")
	require.NoError(t, err)
	f.flush(t)

	state := s.State()
	assert.Equal(t, models.ModeAccount, state.Mode)
	assert.Equal(t, session.UserID, state.UserID)
	assert.Equal(t, session.UserID, state.FamilyID, "the identity is the family key")

	rec, ok := f.remote.record(session.UserID)
	require.True(t, ok, "first sign-in seeds the remote record")
	assert.Equal(t, "Emma", rec.Kids[0].Name)

	_, err = s.JoinFamilyCode(ctx, "ABC123")
	assert.ErrorIs(t, err, ErrFamilyCodeWithIdentity)
	_, err = s.CreateFamilyCode(ctx)
	assert.ErrorIs(t, err, ErrFamilyCodeWithIdentity)

	// a restart resumes the account
	restarted := ledger.New(catalog.New())
	syncSvc := NewSyncService(restarted, f.local, f.remote, SyncOptions{}, zap.NewNop())
	defer syncSvc.Close()
	s2 := NewSessionService(restarted, syncSvc, f.local, f.remote, auth, zap.NewNop())
	require.NoError(t, s2.Resume(ctx))
	assert.Equal(t, models.ModeAccount, s2.Mode())
	require.Len(t, restarted.Kids(), 1)
	assert.Equal(t, "Emma", restarted.Kids()[0].Name)

	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, models.ModeGuest, s.Mode())
	assert.Nil(t, auth.CurrentSession())
}
