package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kidpoints/internal/kvstore"
	"kidpoints/internal/models"
	"kidpoints/internal/repository"
	"kidpoints/internal/security"
	"kidpoints/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
)

// AuthService handles identities and the device's current session.
// The session token is kept under the auth_token key so it survives restarts.
type AuthService struct {
	userRepo *repository.UserRepository
	tokens   *security.TokenIssuer
	local    kvstore.Store
	logger   *zap.Logger

	mu        sync.RWMutex
	current   *models.Session
	observers []func(*models.Session)
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo *repository.UserRepository, tokens *security.TokenIssuer, local kvstore.Store, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		local:    local,
		logger:   logger,
	}
}

// Register creates a new user account and signs it in
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*models.Session, *models.User, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, nil, err
	}
	email = normalizeEmail(email)

	existingUser, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, email, passwordHash, strings.TrimSpace(name))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.signIn(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// Login authenticates a user and creates a session
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !security.CheckPassword(user.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.signIn(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// OAuthLogin authenticates or creates a user using an OAuth provider
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email, name string) (*models.Session, *models.User, error) {
	if provider == "" || subject == "" {
		return nil, nil, errors.New("missing oauth provider information")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}
	email = normalizeEmail(email)

	user, err := s.userRepo.GetUserByOAuth(ctx, provider, subject)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lookup oauth user: %w", err)
	}

	if user == nil {
		existingUser, err := s.userRepo.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check existing user: %w", err)
		}
		if existingUser != nil {
			if existingUser.OAuthProvider != "" && existingUser.OAuthProvider != provider {
				return nil, nil, ErrEmailTaken
			}
			user = existingUser
		} else {
			if name == "" {
				name = strings.Split(email, "@")[0]
			}
			randomPasswordHash, err := security.HashPassword(uuid.NewString())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to generate oauth password hash: %w", err)
			}
			user, err = s.userRepo.CreateUser(ctx, email, randomPasswordHash, name)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create oauth user: %w", err)
			}
		}
		if err := s.userRepo.LinkOAuthProvider(ctx, user.ID, provider, subject); err != nil {
			return nil, nil, fmt.Errorf("failed to link oauth provider: %w", err)
		}
		user.OAuthProvider = provider
		user.OAuthSubject = subject
	}

	session, err := s.signIn(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// ValidateToken checks a session token and returns the associated user
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*models.Session, *models.User, error) {
	session, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil, ErrSessionExpired
	}
	user, err := s.userRepo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrSessionNotFound
	}
	return session, user, nil
}

// Restore reloads the saved session token. It returns nil when there is none
// or it is no longer valid, in which case the stale token is removed.
func (s *AuthService) Restore(ctx context.Context) (*models.Session, error) {
	v, err := s.local.Get(ctx, kvstore.KeyAuthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}
	var token string
	if err := v.Decode(&token); err != nil || token == "" {
		return nil, nil
	}

	session, _, err := s.ValidateToken(ctx, token)
	if err != nil {
		s.logger.Info("Discarding saved session", zap.Error(err))
		if rmErr := s.local.Remove(ctx, kvstore.KeyAuthToken); rmErr != nil {
			s.logger.Warn("Failed to remove saved session", zap.Error(rmErr))
		}
		return nil, nil
	}

	s.setCurrent(session)
	return session, nil
}

// Logout forgets the current session
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.local.Remove(ctx, kvstore.KeyAuthToken); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	s.setCurrent(nil)
	return nil
}

// CurrentSession returns the signed-in session, or nil
func (s *AuthService) CurrentSession() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn to be called on every sign-in and sign-out
func (s *AuthService) Subscribe(fn func(*models.Session)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *AuthService) signIn(ctx context.Context, user *models.User) (*models.Session, error) {
	session, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.local.Set(ctx, kvstore.KeyAuthToken, session.Token); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	s.setCurrent(session)
	return session, nil
}

func (s *AuthService) setCurrent(session *models.Session) {
	s.mu.Lock()
	s.current = session
	observers := append([]func(*models.Session){}, s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(session)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
