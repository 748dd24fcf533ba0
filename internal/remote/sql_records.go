package remote

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"kidpoints/internal/models"
	"kidpoints/internal/repository"
)

// SQLRecords keeps family records in a families table on a shared database
type SQLRecords struct {
	repo   *repository.FamilyRepository
	logger *zap.Logger
}

func NewSQLRecords(repo *repository.FamilyRepository, logger *zap.Logger) *SQLRecords {
	return &SQLRecords{repo: repo, logger: logger}
}

func (s *SQLRecords) Fetch(ctx context.Context, id string) (*models.FamilyRecord, error) {
	row, err := s.repo.GetFamilyRow(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}

	rec := &models.FamilyRecord{
		ID:        row.ID,
		Pin:       row.Pin,
		Writer:    row.Writer,
		UpdatedAt: row.UpdatedAt,
	}
	kids, err := DecodeKids([]byte(row.Kids))
	if err != nil {
		s.logger.Warn("Ignoring malformed kids payload",
			zap.String("family_id", id),
			zap.Error(err),
		)
		return rec, nil
	}
	rec.Kids = kids
	return rec, nil
}

func (s *SQLRecords) Insert(ctx context.Context, rec models.FamilyRecord) error {
	err := s.repo.InsertFamily(ctx, rec)
	if errors.Is(err, repository.ErrFamilyExists) {
		return ErrRecordExists
	}
	return err
}

func (s *SQLRecords) Upsert(ctx context.Context, rec models.FamilyRecord) error {
	return s.repo.UpsertFamily(ctx, rec)
}
