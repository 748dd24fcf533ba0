package kvstore

import (
	"context"

	"kidpoints/internal/repository"
)

// SQLStore persists entries in the kv_store table of the device database
type SQLStore struct {
	repo *repository.KVRepository
}

// NewSQLStore creates a store over the given repository
func NewSQLStore(repo *repository.KVRepository) *SQLStore {
	return &SQLStore{repo: repo}
}

func (s *SQLStore) Get(ctx context.Context, key string) (Value, error) {
	raw, ok, err := s.repo.Get(ctx, key)
	if err != nil || !ok {
		return Value{}, err
	}
	return NewValue(raw), nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value any) error {
	raw, err := Encode(value)
	if err != nil {
		return err
	}
	return s.repo.Set(ctx, key, raw)
}

func (s *SQLStore) Remove(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}

func (s *SQLStore) Clear(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}
