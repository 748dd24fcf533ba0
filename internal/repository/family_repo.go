package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kidpoints/internal/database"
	"kidpoints/internal/models"
)

var ErrFamilyExists = errors.New("family already exists")

// FamilyRow is a families row with the kids payload still encoded
type FamilyRow struct {
	ID        string
	Kids      string
	Pin       *string
	Writer    string
	UpdatedAt time.Time
}

// FamilyRepository handles the shared families table
type FamilyRepository struct {
	db database.DBTX
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db database.DBTX) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// GetFamilyRow retrieves a family by id. It returns nil when no row exists.
func (r *FamilyRepository) GetFamilyRow(ctx context.Context, id string) (*FamilyRow, error) {
	query := "SELECT id, kids, pin, writer, updated_at FROM families WHERE id = ?"
	row := &FamilyRow{}
	var pin sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&row.ID, &row.Kids, &pin, &row.Writer, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	if pin.Valid {
		row.Pin = &pin.String
	}
	return row, nil
}

// InsertFamily creates a new family record. It returns ErrFamilyExists and
// leaves the stored row alone when the id is taken.
func (r *FamilyRepository) InsertFamily(ctx context.Context, rec models.FamilyRecord) error {
	kids, err := encodeKids(rec.Kids)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, r.db.GetDialect().InsertFamily(), rec.ID, kids, rec.Pin, rec.Writer, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert family: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert family: %w", err)
	}
	if n == 0 {
		return ErrFamilyExists
	}
	return nil
}

// UpsertFamily replaces the whole family record
func (r *FamilyRepository) UpsertFamily(ctx context.Context, rec models.FamilyRecord) error {
	kids, err := encodeKids(rec.Kids)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, r.db.GetDialect().UpsertFamily(), rec.ID, kids, rec.Pin, rec.Writer, rec.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert family: %w", err)
	}
	return nil
}

// UpsertFamilyRow writes a row whose kids payload is already encoded
func (r *FamilyRepository) UpsertFamilyRow(ctx context.Context, row FamilyRow) error {
	if _, err := r.db.ExecContext(ctx, r.db.GetDialect().UpsertFamily(), row.ID, row.Kids, row.Pin, row.Writer, row.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert family: %w", err)
	}
	return nil
}

// ListFamilyRows returns every family, ordered by id
func (r *FamilyRepository) ListFamilyRows(ctx context.Context) ([]FamilyRow, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, kids, pin, writer, updated_at FROM families ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	defer rows.Close()

	var out []FamilyRow
	for rows.Next() {
		var row FamilyRow
		var pin sql.NullString
		if err := rows.Scan(&row.ID, &row.Kids, &pin, &row.Writer, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		if pin.Valid {
			row.Pin = &pin.String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func encodeKids(kids []models.Child) (string, error) {
	if kids == nil {
		kids = []models.Child{}
	}
	b, err := json.Marshal(kids)
	if err != nil {
		return "", fmt.Errorf("failed to encode kids: %w", err)
	}
	return string(b), nil
}
