package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kidpoints/internal/catalog"
	"kidpoints/internal/database"
	"kidpoints/internal/kvstore"
	"kidpoints/internal/ledger"
	"kidpoints/internal/models"
	"kidpoints/internal/remote"
)

// fakeRemote keeps family records in memory and delivers notifications
// synchronously to subscribers.
type fakeRemote struct {
	mu       sync.Mutex
	records  map[string]models.FamilyRecord
	handlers map[string]remote.Handler
	upserts  []models.FamilyRecord
	fetchErr error

	// when set, Fetch signals fetching and waits for release
	fetching chan struct{}
	release  chan struct{}
}

// holdFetch makes the next fetches block until the returned func is called
func (f *fakeRemote) holdFetch() (started <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetching = make(chan struct{}, 1)
	f.release = make(chan struct{})
	return f.fetching, func() { close(f.release) }
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		records:  make(map[string]models.FamilyRecord),
		handlers: make(map[string]remote.Handler),
	}
}

func (f *fakeRemote) Fetch(_ context.Context, id string) (*models.FamilyRecord, error) {
	f.mu.Lock()
	fetching, release := f.fetching, f.release
	f.mu.Unlock()
	if release != nil {
		select {
		case fetching <- struct{}{}:
		default:
		}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	rec.Kids = models.CloneChildren(rec.Kids)
	return &rec, nil
}

func (f *fakeRemote) Insert(_ context.Context, rec models.FamilyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[rec.ID]; ok {
		return remote.ErrRecordExists
	}
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeRemote) Upsert(_ context.Context, rec models.FamilyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ID] = rec
	f.upserts = append(f.upserts, rec)
	return nil
}

func (f *fakeRemote) Subscribe(_ context.Context, familyID string, handler remote.Handler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[familyID] = handler
	return func() {
		f.mu.Lock()
		delete(f.handlers, familyID)
		f.mu.Unlock()
	}, nil
}

// push simulates an update written by another device
func (f *fakeRemote) push(rec models.FamilyRecord) {
	f.mu.Lock()
	f.records[rec.ID] = rec
	h := f.handlers[rec.ID]
	f.mu.Unlock()
	if h != nil {
		h(rec)
	}
}

func (f *fakeRemote) record(id string) (models.FamilyRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	return rec, ok
}

func (f *fakeRemote) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

func (f *fakeRemote) subscribed(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[id]
	return ok
}

type syncFixture struct {
	ledger *ledger.Ledger
	local  *kvstore.MemoryStore
	remote *fakeRemote
	sync   *SyncService
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		ledger: ledger.New(catalog.New()),
		local:  kvstore.NewMemoryStore(),
		remote: newFakeRemote(),
	}
	f.sync = NewSyncService(f.ledger, f.local, f.remote, SyncOptions{Timeout: time.Second}, zap.NewNop())
	t.Cleanup(f.sync.Close)
	return f
}

func (f *syncFixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.sync.Flush(ctx))
}

func getLocal(t *testing.T, store kvstore.Store, key string, dst any) bool {
	t.Helper()
	v, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	if !v.Present() {
		return false
	}
	require.NoError(t, v.Decode(dst))
	return true
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping sqlite test in short mode")
	}
	db, err := database.Initialize(filepath.Join(t.TempDir(), "kidpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(zap.NewNop()))
	return db
}

func strPtr(s string) *string { return &s }

func (f *fakeRemote) put(rec models.FamilyRecord) {
	f.mu.Lock()
	f.records[rec.ID] = rec
	f.mu.Unlock()
}

func (f *fakeRemote) handler(id string) remote.Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[id]
}
