package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"kidpoints/internal/credentials"
	"kidpoints/internal/kvstore"
	"kidpoints/internal/ledger"
	"kidpoints/internal/models"
	"kidpoints/internal/remote"
	"kidpoints/internal/security"
	"kidpoints/internal/validation"
)

var (
	ErrFamilyCodeWithIdentity = errors.New("family codes cannot be used while signed in")
	ErrRemoteUnavailable      = errors.New("no shared store configured")
	ErrAuthUnavailable        = errors.New("accounts are not configured")
)

const familyCodeAttempts = 5

// SessionService owns the identity/family mode of the device and the PIN gate
// in front of score mutations.
type SessionService struct {
	ledger *ledger.Ledger
	sync   *SyncService
	local  kvstore.Store
	remote RemoteStore
	auth   *AuthService
	gate   *security.PinGate
	logger *zap.Logger

	newCode func() (string, error)

	mu     sync.RWMutex
	mode   models.SyncMode
	userID string
}

// NewSessionService wires the session state machine. remoteStore and auth may be nil.
func NewSessionService(l *ledger.Ledger, syncSvc *SyncService, local kvstore.Store, remoteStore RemoteStore, auth *AuthService, logger *zap.Logger) *SessionService {
	s := &SessionService{
		ledger:  l,
		sync:    syncSvc,
		local:   local,
		remote:  remoteStore,
		auth:    auth,
		logger:  logger,
		newCode: credentials.GenerateFamilyCode,
		mode:    models.ModeGuest,
	}
	s.gate = security.NewPinGate(func() (string, bool) {
		if pin := syncSvc.Pin(); pin != nil {
			return *pin, true
		}
		return "", false
	})
	return s
}

// Resume restores the previous session: a saved identity first, then a saved
// family code, else guest mode.
func (s *SessionService) Resume(ctx context.Context) error {
	if s.auth != nil && s.remote != nil {
		session, err := s.auth.Restore(ctx)
		if err != nil {
			s.logger.Warn("Failed to restore session", zap.Error(err))
		}
		if session != nil {
			s.enterAccount(ctx, session.UserID)
			return nil
		}
	}

	v, err := s.local.Get(ctx, kvstore.KeyFamilyID)
	if err != nil {
		return fmt.Errorf("failed to read family code: %w", err)
	}
	var code string
	_ = v.Decode(&code)
	if code != "" && s.remote != nil {
		s.setMode(models.ModeFamilyCode, "")
		s.sync.EnterCloud(ctx, code, nil)
		return nil
	}

	s.setMode(models.ModeGuest, "")
	return nil
}

// Register creates an account and enters account mode
func (s *SessionService) Register(ctx context.Context, email, password, name string) (*models.Session, error) {
	if err := s.checkCanSignIn(); err != nil {
		return nil, err
	}
	session, _, err := s.auth.Register(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	s.enterAccount(ctx, session.UserID)
	return session, nil
}

// Login signs in and enters account mode
func (s *SessionService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	if err := s.checkCanSignIn(); err != nil {
		return nil, err
	}
	session, _, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.enterAccount(ctx, session.UserID)
	return session, nil
}

// OAuthLogin signs in through a provider identity and enters account mode
func (s *SessionService) OAuthLogin(ctx context.Context, provider, subject, email, name string) (*models.Session, error) {
	if err := s.checkCanSignIn(); err != nil {
		return nil, err
	}
	session, _, err := s.auth.OAuthLogin(ctx, provider, subject, email, name)
	if err != nil {
		return nil, err
	}
	s.enterAccount(ctx, session.UserID)
	return session, nil
}

func (s *SessionService) checkCanSignIn() error {
	if s.auth == nil || s.remote == nil {
		return ErrAuthUnavailable
	}
	if s.Mode() == models.ModeFamilyCode {
		return ErrFamilyCodeWithIdentity
	}
	return nil
}

// enterAccount uses the identity as the family key and reconciles with it
func (s *SessionService) enterAccount(ctx context.Context, userID string) {
	s.setMode(models.ModeAccount, userID)
	s.sync.EnterCloud(ctx, userID, nil)
}

// Logout leaves account or family-code mode and reloads local state
func (s *SessionService) Logout(ctx context.Context) error {
	mode := s.Mode()
	if mode == models.ModeGuest {
		return nil
	}
	if mode == models.ModeAccount && s.auth != nil {
		if err := s.auth.Logout(ctx); err != nil {
			return err
		}
	}
	if err := s.local.Remove(ctx, kvstore.KeyFamilyID); err != nil {
		s.logger.Warn("Failed to clear family code", zap.Error(err))
	}

	err := s.sync.LeaveCloud(ctx)
	s.setMode(models.ModeGuest, "")
	s.gate.Cancel()
	return err
}

// JoinFamilyCode looks code up and, when it exists, enters cloud mode with it.
// It reports false when no record has that code.
func (s *SessionService) JoinFamilyCode(ctx context.Context, code string) (bool, error) {
	if s.Mode() == models.ModeAccount {
		return false, ErrFamilyCodeWithIdentity
	}
	if s.remote == nil {
		return false, ErrRemoteUnavailable
	}
	code = validation.NormalizeFamilyCode(code)
	if err := validation.ValidateFamilyCode(code); err != nil {
		return false, nil
	}

	rec, err := s.remote.Fetch(ctx, code)
	if err != nil {
		return false, fmt.Errorf("failed to look up family code: %w", err)
	}
	if rec == nil {
		return false, nil
	}

	s.saveFamilyCode(ctx, code)
	s.setMode(models.ModeFamilyCode, "")
	s.sync.EnterCloud(ctx, code, rec)
	return true, nil
}

// CreateFamilyCode publishes the local kids and pin under a fresh code and
// enters cloud mode with it
func (s *SessionService) CreateFamilyCode(ctx context.Context) (string, error) {
	if s.Mode() == models.ModeAccount {
		return "", ErrFamilyCodeWithIdentity
	}
	if s.remote == nil {
		return "", ErrRemoteUnavailable
	}

	rec := models.FamilyRecord{Kids: s.ledger.Kids(), Pin: s.sync.Pin()}
	for attempt := 0; attempt < familyCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate family code: %w", err)
		}
		rec.ID = code
		err = s.remote.Insert(ctx, rec)
		if errors.Is(err, remote.ErrRecordExists) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create family: %w", err)
		}

		s.saveFamilyCode(ctx, code)
		s.setMode(models.ModeFamilyCode, "")
		s.sync.EnterCloud(ctx, code, &rec)
		return code, nil
	}
	return "", fmt.Errorf("failed to create family: %w", remote.ErrRecordExists)
}

func (s *SessionService) saveFamilyCode(ctx context.Context, code string) {
	if err := s.local.Set(ctx, kvstore.KeyFamilyID, code); err != nil {
		s.logger.Warn("Failed to save family code", zap.Error(err))
	}
}

// OnboardingRequired reports whether the household has no children and never
// completed onboarding
func (s *SessionService) OnboardingRequired(ctx context.Context) (bool, error) {
	if len(s.ledger.Kids()) > 0 {
		return false, nil
	}
	v, err := s.local.Get(ctx, kvstore.KeyOnboardingCompleted)
	if err != nil {
		return false, fmt.Errorf("failed to read onboarding flag: %w", err)
	}
	var done bool
	_ = v.Decode(&done)
	return !done, nil
}

// CompleteOnboarding records that onboarding was completed
func (s *SessionService) CompleteOnboarding(ctx context.Context) error {
	if err := s.local.Set(ctx, kvstore.KeyOnboardingCompleted, true); err != nil {
		return fmt.Errorf("failed to save onboarding flag: %w", err)
	}
	return nil
}

// SetPin sets the household PIN, or clears it when pin is nil
func (s *SessionService) SetPin(pin *string) error {
	if pin != nil {
		if err := validation.ValidatePin(*pin); err != nil {
			return err
		}
	}
	s.sync.SetPin(pin)
	if pin == nil {
		s.gate.Cancel()
	}
	return nil
}

// Guard runs fn behind the PIN gate
func (s *SessionService) Guard(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	return s.gate.Guard(ctx, name, fn)
}

// ConfirmPin runs the action waiting for the PIN and returns its result
func (s *SessionService) ConfirmPin(pin string) (any, error) {
	return s.gate.Confirm(pin)
}

// CancelPin drops the action waiting for the PIN
func (s *SessionService) CancelPin() {
	s.gate.Cancel()
}

// PendingAction names the action waiting for the PIN
func (s *SessionService) PendingAction() (string, bool) {
	return s.gate.Pending()
}

func (s *SessionService) Mode() models.SyncMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// State is a snapshot of the observable session state
func (s *SessionService) State() models.SessionState {
	s.mu.RLock()
	mode, userID := s.mode, s.userID
	s.mu.RUnlock()

	return models.SessionState{
		Theme:    s.sync.Theme(),
		HasPin:   s.sync.Pin() != nil,
		FamilyID: s.sync.FamilyID(),
		UserID:   userID,
		Mode:     mode,
	}
}

func (s *SessionService) setMode(mode models.SyncMode, userID string) {
	s.mu.Lock()
	s.mode = mode
	s.userID = userID
	s.mu.Unlock()
	s.logger.Info("Session mode changed", zap.String("mode", string(mode)))
}
