package models

import "time"

// FamilyRecord is the shared remote record keyed by identity or family code
type FamilyRecord struct {
	ID        string    `json:"id"`
	Kids      []Child   `json:"kids"`
	Pin       *string   `json:"pin"`
	Writer    string    `json:"writer,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
