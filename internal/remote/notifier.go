package remote

import (
	"context"

	"kidpoints/internal/models"
)

// Handler receives a family record pushed by another writer
type Handler func(rec models.FamilyRecord)

// Notifier publishes record updates and delivers them to subscribers of a family id
type Notifier interface {
	Publish(ctx context.Context, rec models.FamilyRecord) error
	// Subscribe starts delivery for familyID. The returned func stops it.
	Subscribe(ctx context.Context, familyID string, handler Handler) (func(), error)
	Close() error
}

// NopNotifier is used when no change feed is configured
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, models.FamilyRecord) error { return nil }

func (NopNotifier) Subscribe(context.Context, string, Handler) (func(), error) {
	return func() {}, nil
}

func (NopNotifier) Close() error { return nil }
