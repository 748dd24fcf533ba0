package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kidpoints/internal/models"
	"kidpoints/internal/repository"
)

func TestBackupExportImport(t *testing.T) {
	ctx := context.Background()
	src := openTestDB(t)

	require.NoError(t, repository.NewKVRepository(src).Set(ctx, "theme", "dark"))
	require.NoError(t, repository.NewFamilyRepository(src).UpsertFamily(ctx, models.FamilyRecord{
		ID:        "ABC123",
		Kids:      []models.Child{{ID: "k1", Name: "Emma", Score: 12}},
		Pin:       strPtr("1234"),
		Writer:    "device-a",
		UpdatedAt: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
	}))
	user, err := repository.NewUserRepository(src).CreateUser(ctx, "parent@example.com", "hash", "Parent")
	require.NoError(t, err)

	var buf bytes.Buffer
	exported, err := NewBackupService(src, "sqlite", zap.NewNop()).Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, "1.0", exported.Version)
	assert.Equal(t, "dark", exported.KV["theme"])
	require.Len(t, exported.Families, 1)
	assert.True(t, json.Valid(exported.Families[0].Kids))
	require.Len(t, exported.Users, 1)

	dst := openTestDB(t)
	imported, err := NewBackupService(dst, "sqlite", zap.NewNop()).Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Len(t, imported.Users, 1)

	theme, ok, err := repository.NewKVRepository(dst).Get(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", theme)

	row, err := repository.NewFamilyRepository(dst).GetFamilyRow(ctx, "ABC123")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "1234", *row.Pin)
	assert.Contains(t, row.Kids, `"Emma"`)

	restored, err := repository.NewUserRepository(dst).GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, "parent@example.com", restored.Email)

	// importing twice keeps existing users and overwrites the rest
	_, err = NewBackupService(dst, "sqlite", zap.NewNop()).Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
}

func TestBackupImportRejects(t *testing.T) {
	svc := NewBackupService(nil, "sqlite", zap.NewNop())

	_, err := svc.Import(context.Background(), strings.NewReader("{"))
	assert.Error(t, err)

	_, err = svc.Import(context.Background(), strings.NewReader(`{"version":"9.9"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported backup version")
}

func TestDecodeBackupKids(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"array", `[{"id":"k"}]`, `[{"id":"k"}]`},
		{"string wrapped", `"[{\"id\":\"k\"}]"`, `[{"id":"k"}]`},
		{"empty", ``, `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeBackupKids(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("decodeBackupKids() = %v, want %v", got, tt.want)
			}
		})
	}
}
