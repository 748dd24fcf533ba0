// Package remote reaches the shared family record store and its change feed.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kidpoints/internal/models"
)

var ErrMalformedKids = errors.New("malformed kids payload")

// Records is the shared families table. Fetch returns nil when no record exists.
// A fetched record whose kids payload could not be decoded has nil Kids.
type Records interface {
	Fetch(ctx context.Context, id string) (*models.FamilyRecord, error)
	Insert(ctx context.Context, rec models.FamilyRecord) error
	Upsert(ctx context.Context, rec models.FamilyRecord) error
}

// wireRecord is the JSON shape shared by the REST backend and notifications
type wireRecord struct {
	ID        string          `json:"id"`
	Kids      json.RawMessage `json:"kids"`
	Pin       *string         `json:"pin"`
	Writer    string          `json:"writer,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DecodeKids accepts a JSON array of children or a JSON string holding one
func DecodeKids(raw []byte) ([]models.Child, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrMalformedKids
	}

	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		raw = []byte(nested)
	}

	kids := []models.Child{}
	if err := json.Unmarshal(raw, &kids); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKids, err)
	}
	for i := range kids {
		if kids[i].History == nil {
			kids[i].History = []models.HistoryEntry{}
		}
	}
	return kids, nil
}

// EncodeRecord marshals a record for the wire
func EncodeRecord(rec models.FamilyRecord) ([]byte, error) {
	kids := rec.Kids
	if kids == nil {
		kids = []models.Child{}
	}
	rawKids, err := json.Marshal(kids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode kids: %w", err)
	}
	return json.Marshal(wireRecord{
		ID:        rec.ID,
		Kids:      rawKids,
		Pin:       rec.Pin,
		Writer:    rec.Writer,
		UpdatedAt: rec.UpdatedAt,
	})
}

// DecodeRecord parses a wire record. A bad kids payload leaves Kids nil and
// is reported alongside the record.
func DecodeRecord(data []byte) (*models.FamilyRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode family record: %w", err)
	}
	return fromWire(w)
}

func fromWire(w wireRecord) (*models.FamilyRecord, error) {
	rec := &models.FamilyRecord{
		ID:        w.ID,
		Pin:       w.Pin,
		Writer:    w.Writer,
		UpdatedAt: w.UpdatedAt,
	}
	kids, err := DecodeKids(w.Kids)
	if err != nil {
		return rec, err
	}
	rec.Kids = kids
	return rec, nil
}
