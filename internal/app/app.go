// Package app owns the single household instance: the ledger, its persistence
// and the session, constructed once at process start and torn down at shutdown.
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"kidpoints/internal/catalog"
	"kidpoints/internal/config"
	"kidpoints/internal/database"
	"kidpoints/internal/kvstore"
	"kidpoints/internal/ledger"
	"kidpoints/internal/remote"
	"kidpoints/internal/repository"
	"kidpoints/internal/security"
	"kidpoints/internal/service"
)

// Deps are the stores an Application runs on
type Deps struct {
	// DB is the device database; the users table lives here
	DB *database.DB
	// Local defaults to a kv store on DB
	Local kvstore.Store
	// Remote is nil when no shared store is configured
	Remote *remote.Store
	// Email is optional
	Email *service.EmailService
}

type Application struct {
	config *config.Config
	logger *zap.Logger

	db     *database.DB
	remote *remote.Store

	ledger  *ledger.Ledger
	sync    *service.SyncService
	session *service.SessionService
	auth    *service.AuthService
	email   *service.EmailService
	reports *service.ReportService
	backups *service.BackupService

	cron *cron.Cron
}

// New opens the device database and the configured remote store, then wires
// every service on top of them
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Application, error) {
	db, err := database.Open(cfg.Local)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	local := kvstore.NewSQLStore(repository.NewKVRepository(db))

	deviceID, err := resolveDeviceID(ctx, cfg.DeviceID, local)
	if err != nil {
		db.Close()
		return nil, err
	}

	remoteStore, err := remote.Open(ctx, cfg.Remote, deviceID, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	email, err := service.NewEmailService(ctx, cfg.Email, logger)
	if err != nil {
		logger.Warn("Email service unavailable", zap.Error(err))
		email = nil
	}

	a, err := NewWithDeps(cfg, Deps{DB: db, Local: local, Remote: remoteStore, Email: email}, logger)
	if err != nil {
		if remoteStore != nil {
			remoteStore.Close()
		}
		db.Close()
		return nil, err
	}
	logger.Info("Application ready",
		zap.String("device_id", deviceID),
		zap.String("remote_backend", cfg.Remote.Backend),
		zap.String("notifier", cfg.Remote.Notifier),
	)
	return a, nil
}

// NewWithDeps wires the services on already opened stores
func NewWithDeps(cfg *config.Config, deps Deps, logger *zap.Logger) (*Application, error) {
	local := deps.Local
	if local == nil {
		local = kvstore.NewSQLStore(repository.NewKVRepository(deps.DB))
	}

	// a typed nil store must not reach the services as a non-nil interface
	var remoteStore service.RemoteStore
	if deps.Remote != nil {
		remoteStore = deps.Remote
	}

	l := ledger.New(catalog.New(), ledger.WithDateLayout(cfg.DateLayout))
	syncSvc := service.NewSyncService(l, local, remoteStore, service.SyncOptions{Timeout: cfg.Remote.Timeout}, logger)

	var auth *service.AuthService
	if cfg.Auth.JWTSecret != "" && deps.DB != nil {
		tokens := security.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionDuration)
		auth = service.NewAuthService(repository.NewUserRepository(deps.DB), tokens, local, logger)
	} else {
		logger.Info("Accounts disabled: JWT_SECRET not configured")
	}

	a := &Application{
		config:  cfg,
		logger:  logger,
		db:      deps.DB,
		remote:  deps.Remote,
		ledger:  l,
		sync:    syncSvc,
		session: service.NewSessionService(l, syncSvc, local, remoteStore, auth, logger),
		auth:    auth,
		email:   deps.Email,
		reports: service.NewReportService(l, logger),
		cron:    cron.New(),
	}
	if deps.DB != nil {
		a.backups = service.NewBackupService(deps.DB, cfg.Local.Type, logger)
	}

	if err := a.setupCronJobs(); err != nil {
		syncSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) setupCronJobs() error {
	schedule := a.config.Schedule.WeeklyValidation
	if schedule == "" {
		return nil
	}
	_, err := a.cron.AddFunc(schedule, func() {
		a.ValidateAllWeeks(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid weekly validation schedule %q: %w", schedule, err)
	}
	a.logger.Info("Weekly validation scheduled", zap.String("schedule", schedule))
	return nil
}

// Start loads the household from local storage, resumes the previous session
// and starts the scheduler
func (a *Application) Start(ctx context.Context) error {
	if err := a.sync.LoadLocal(ctx); err != nil {
		return fmt.Errorf("failed to load local state: %w", err)
	}
	if err := a.session.Resume(ctx); err != nil {
		return fmt.Errorf("failed to resume session: %w", err)
	}
	a.cron.Start()

	a.logger.Info("Application started",
		zap.String("mode", string(a.session.Mode())),
		zap.Int("children", len(a.ledger.Kids())),
	)
	return nil
}

// Stop waits for running jobs and pending writes, then closes every store
func (a *Application) Stop(ctx context.Context) error {
	a.logger.Info("Stopping application")

	select {
	case <-a.cron.Stop().Done():
	case <-ctx.Done():
	}

	if err := a.sync.Flush(ctx); err != nil {
		a.logger.Warn("Failed to flush pending writes", zap.Error(err))
	}
	a.sync.Close()

	if a.remote != nil {
		if err := a.remote.Close(); err != nil {
			a.logger.Warn("Failed to close remote store", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", zap.Error(err))
		}
	}

	a.logger.Info("Application stopped")
	return nil
}

// Flush waits for queued writes
func (a *Application) Flush(ctx context.Context) error {
	return a.sync.Flush(ctx)
}

func (a *Application) Reports() *service.ReportService { return a.reports }

// Backups is nil when the application runs without a database
func (a *Application) Backups() *service.BackupService { return a.backups }

// AccountsEnabled reports whether sign-in is configured
func (a *Application) AccountsEnabled() bool {
	return a.auth != nil && a.remote != nil
}

// resolveDeviceID returns the configured device id, or the one saved on a
// previous run, generating and saving one the first time
func resolveDeviceID(ctx context.Context, configured string, local kvstore.Store) (string, error) {
	if configured != "" {
		return configured, nil
	}
	v, err := local.Get(ctx, kvstore.KeyDeviceID)
	if err != nil {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}
	var id string
	if err := v.Decode(&id); err == nil && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := local.Set(ctx, kvstore.KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("failed to save device id: %w", err)
	}
	return id, nil
}
