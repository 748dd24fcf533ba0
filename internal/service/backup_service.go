package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"kidpoints/internal/database"
	"kidpoints/internal/models"
	"kidpoints/internal/repository"
)

const backupVersion = "1.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version      string            `json:"version"`
	ExportedAt   time.Time         `json:"exported_at"`
	DatabaseType string            `json:"database_type"`
	KV           map[string]string `json:"kv"`
	Families     []FamilyBackup    `json:"families"`
	Users        []UserBackup      `json:"users"`
}

// FamilyBackup represents a families row for backup
type FamilyBackup struct {
	ID        string          `json:"id"`
	Kids      json.RawMessage `json:"kids"`
	Pin       *string         `json:"pin"`
	Writer    string          `json:"writer"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UserBackup represents a user record for backup
type UserBackup struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"password_hash"`
	Name          string    `json:"name"`
	OAuthProvider string    `json:"oauth_provider"`
	OAuthSubject  string    `json:"oauth_subject"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db     *database.DB
	dbType string
	logger *zap.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, dbType string, logger *zap.Logger) *BackupService {
	return &BackupService{db: db, dbType: dbType, logger: logger}
}

// Export writes a complete backup of the database to w
func (s *BackupService) Export(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup := &BackupData{
		Version:      backupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.dbType,
	}

	kv, err := repository.NewKVRepository(s.db).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export kv store: %w", err)
	}
	backup.KV = kv

	rows, err := repository.NewFamilyRepository(s.db).ListFamilyRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export families: %w", err)
	}
	for _, row := range rows {
		kids := json.RawMessage(row.Kids)
		if !json.Valid(kids) {
			kids, _ = json.Marshal(row.Kids)
		}
		backup.Families = append(backup.Families, FamilyBackup{
			ID:        row.ID,
			Kids:      kids,
			Pin:       row.Pin,
			Writer:    row.Writer,
			UpdatedAt: row.UpdatedAt,
		})
	}

	users, err := repository.NewUserRepository(s.db).ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	for _, u := range users {
		backup.Users = append(backup.Users, UserBackup(u))
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	s.logger.Info("Database exported",
		zap.Int("kv", len(backup.KV)),
		zap.Int("families", len(backup.Families)),
		zap.Int("users", len(backup.Users)),
	)
	return backup, nil
}

// Import restores a backup read from r in a single transaction.
// Existing keys and families are overwritten; existing users are kept.
func (s *BackupService) Import(ctx context.Context, r io.Reader) (*BackupData, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != backupVersion {
		return nil, fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	s.logger.Info("Importing backup",
		zap.String("version", backup.Version),
		zap.Time("exported_at", backup.ExportedAt),
	)

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		kvRepo := repository.NewKVRepository(tx)
		for k, v := range backup.KV {
			if err := kvRepo.Set(ctx, k, v); err != nil {
				return fmt.Errorf("failed to import kv store: %w", err)
			}
		}

		familyRepo := repository.NewFamilyRepository(tx)
		for _, f := range backup.Families {
			row := repository.FamilyRow{
				ID:        f.ID,
				Kids:      decodeBackupKids(f.Kids),
				Pin:       f.Pin,
				Writer:    f.Writer,
				UpdatedAt: f.UpdatedAt,
			}
			if err := familyRepo.UpsertFamilyRow(ctx, row); err != nil {
				return fmt.Errorf("failed to import families: %w", err)
			}
		}

		userRepo := repository.NewUserRepository(tx)
		for _, u := range backup.Users {
			existing, err := userRepo.GetUserByID(ctx, u.ID)
			if err != nil {
				return fmt.Errorf("failed to import users: %w", err)
			}
			if existing != nil {
				continue
			}
			if err := userRepo.InsertUser(ctx, models.User(u)); err != nil {
				return fmt.Errorf("failed to import users: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Database import completed")
	return &backup, nil
}

// decodeBackupKids keeps the kids payload in the text form stored in the table
func decodeBackupKids(raw json.RawMessage) string {
	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested
	}
	if len(raw) == 0 {
		return "[]"
	}
	return string(raw)
}
