package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"kidpoints/internal/catalog"
	"kidpoints/internal/kvstore"
	"kidpoints/internal/ledger"
	"kidpoints/internal/models"
	"kidpoints/internal/remote"
)

var ErrSyncClosed = errors.New("sync service closed")

// RemoteStore is the shared family record store as consumed by sync.
// *remote.Store satisfies it.
type RemoteStore interface {
	Fetch(ctx context.Context, id string) (*models.FamilyRecord, error)
	Insert(ctx context.Context, rec models.FamilyRecord) error
	Upsert(ctx context.Context, rec models.FamilyRecord) error
	Subscribe(ctx context.Context, familyID string, handler remote.Handler) (func(), error)
}

type persistTarget uint8

const (
	persistKids persistTarget = 1 << iota
	persistLogs
	persistActions
	persistPin
	persistTheme
)

type persistJob struct {
	epoch     uint64
	targets   persistTarget
	localOnly bool
	flushed   chan struct{}
}

// SyncOptions tunes a SyncService
type SyncOptions struct {
	Strategy ReconcileStrategy
	// Timeout bounds every local and remote call made by the worker
	Timeout time.Duration
	// QueueSize is the persistence queue capacity
	QueueSize int
}

// SyncService persists the ledger and preferences to local storage or to the
// shared remote record, and keeps local state reconciled with the remote one.
//
// Writes are fire-and-forget: they go through one ordered worker and failures
// are logged. Every mode switch starts a new epoch; queued writes, fetch
// results and notifications belonging to an older epoch are dropped.
//
// Entering cloud mode leaves the epoch unreconciled until a remote record
// (or its absence) has been applied. Until then no roster or PIN is written
// to the remote record, so an edit made while the fetch is in flight cannot
// overwrite the family's roster with this device's.
type SyncService struct {
	ledger   *ledger.Ledger
	local    kvstore.Store
	remote   RemoteStore
	strategy ReconcileStrategy
	timeout  time.Duration
	logger   *zap.Logger

	// mode guards familyID, reconciled and the subscription. It is held
	// exclusively while a mode switch applies its result and shared while
	// the worker persists.
	mode        sync.RWMutex
	epoch       atomic.Uint64
	familyID    string
	reconciled  bool
	unsubscribe func()

	prefs sync.Mutex
	pin   *string
	theme models.Theme

	queueMu sync.RWMutex
	closed  bool
	jobs    chan persistJob
	done    chan struct{}

	stopObserving func()
}

// NewSyncService wires persistence for l. remoteStore may be nil when no
// shared store is configured.
func NewSyncService(l *ledger.Ledger, local kvstore.Store, remoteStore RemoteStore, opts SyncOptions, logger *zap.Logger) *SyncService {
	if opts.Strategy == nil {
		opts.Strategy = RemoteWins{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	s := &SyncService{
		ledger:     l,
		local:      local,
		remote:     remoteStore,
		strategy:   opts.Strategy,
		timeout:    opts.Timeout,
		logger:     logger,
		theme:      models.ThemeLight,
		reconciled: true,
		jobs:       make(chan persistJob, opts.QueueSize),
		done:       make(chan struct{}),
	}
	s.stopObserving = l.Subscribe(s.onLedgerChange)
	go s.run()
	return s
}

// LoadLocal replaces the ledger and preferences with what local storage holds
func (s *SyncService) LoadLocal(ctx context.Context) error {
	state := ledger.State{}

	v, err := s.local.Get(ctx, kvstore.KeyKids)
	if err != nil {
		return fmt.Errorf("failed to load kids: %w", err)
	}
	if err := v.Decode(&state.Kids); err != nil {
		s.logger.Warn("Ignoring unreadable local kids", zap.Error(err))
		state.Kids = nil
	}

	v, err = s.local.Get(ctx, kvstore.KeyLogs)
	if err != nil {
		return fmt.Errorf("failed to load logs: %w", err)
	}
	if err := v.Decode(&state.Logs); err != nil {
		s.logger.Warn("Ignoring unreadable local logs", zap.Error(err))
		state.Logs = nil
	}

	v, err = s.local.Get(ctx, kvstore.KeyActions)
	if err != nil {
		return fmt.Errorf("failed to load actions: %w", err)
	}
	state.Actions = s.decodeActions(v)

	var theme string
	if v, err = s.local.Get(ctx, kvstore.KeyTheme); err == nil {
		_ = v.Decode(&theme)
	}
	var pin string
	hasPin := false
	if v, err = s.local.Get(ctx, kvstore.KeyPin); err == nil && v.Present() {
		hasPin = v.Decode(&pin) == nil && pin != ""
	}

	s.prefs.Lock()
	s.theme = models.ThemeLight
	if models.Theme(theme) == models.ThemeDark {
		s.theme = models.ThemeDark
	}
	s.pin = nil
	if hasPin {
		s.pin = &pin
	}
	s.prefs.Unlock()

	s.ledger.Load(state, ledger.OriginLoad)
	return nil
}

// decodeActions accepts the {custom, hidden} snapshot or a legacy flat list
func (s *SyncService) decodeActions(v kvstore.Value) catalog.Snapshot {
	if !v.Present() {
		return catalog.Snapshot{}
	}
	var raw json.RawMessage
	if err := v.Decode(&raw); err != nil || len(raw) == 0 {
		return catalog.Snapshot{}
	}
	if raw[0] == '[' {
		var legacy []models.Action
		if err := json.Unmarshal(raw, &legacy); err != nil {
			s.logger.Warn("Ignoring unreadable local actions", zap.Error(err))
			return catalog.Snapshot{}
		}
		return catalog.FromActions(legacy)
	}
	var snap catalog.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.logger.Warn("Ignoring unreadable local actions", zap.Error(err))
		return catalog.Snapshot{}
	}
	return snap
}

// EnterCloud switches persistence to the remote record familyID. known, when
// not nil, is a record the caller just read or wrote and replaces the fetch.
// Remote failures are logged; the mode switch itself always happens. After a
// failed fetch, remote writes stay suspended until Resync succeeds.
func (s *SyncService) EnterCloud(ctx context.Context, familyID string, known *models.FamilyRecord) {
	if s.remote == nil {
		s.logger.Warn("Cloud mode requested without a remote store", zap.String("family_id", familyID))
		return
	}

	epoch, stopOld := s.switchMode(familyID)
	if stopOld != nil {
		stopOld()
	}

	rec := known
	if rec == nil {
		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		fetched, err := s.remote.Fetch(fetchCtx, familyID)
		cancel()
		if err != nil {
			s.logger.Warn("Failed to fetch family record", zap.String("family_id", familyID), zap.Error(err))
		} else {
			s.reconcile(epoch, fetched)
		}
	} else {
		s.reconcile(epoch, rec)
	}

	stop, err := s.remote.Subscribe(ctx, familyID, s.notificationHandler(epoch))
	if err != nil {
		s.logger.Warn("Failed to subscribe to family updates", zap.String("family_id", familyID), zap.Error(err))
		return
	}

	s.mode.Lock()
	if s.epoch.Load() != epoch {
		s.mode.Unlock()
		stop()
		return
	}
	s.unsubscribe = stop
	s.mode.Unlock()

	s.logger.Info("Entered cloud mode", zap.String("family_id", familyID))
}

// LeaveCloud switches persistence back to local storage and reloads the
// ledger from it. The reload happens before any write of the new epoch is
// persisted, so the departing family's roster never lands in local storage.
func (s *SyncService) LeaveCloud(ctx context.Context) error {
	s.mode.Lock()
	s.epoch.Add(1)
	s.familyID = ""
	s.reconciled = true
	stop := s.unsubscribe
	s.unsubscribe = nil
	err := s.LoadLocal(ctx)
	s.mode.Unlock()

	if stop != nil {
		stop()
	}
	return err
}

// Resync re-runs reconciliation against the current remote record
func (s *SyncService) Resync(ctx context.Context) {
	if familyID := s.FamilyID(); familyID != "" {
		s.EnterCloud(ctx, familyID, nil)
	}
}

// FamilyID is the remote record currently synced, empty in local mode
func (s *SyncService) FamilyID() string {
	s.mode.RLock()
	defer s.mode.RUnlock()
	return s.familyID
}

func (s *SyncService) switchMode(familyID string) (uint64, func()) {
	s.mode.Lock()
	defer s.mode.Unlock()
	epoch := s.epoch.Add(1)
	s.familyID = familyID
	s.reconciled = familyID == ""
	stop := s.unsubscribe
	s.unsubscribe = nil
	return epoch, stop
}

func (s *SyncService) reconcile(epoch uint64, rec *models.FamilyRecord) {
	var jobs []persistJob

	s.mode.Lock()
	if s.epoch.Load() != epoch {
		s.mode.Unlock()
		s.logger.Debug("Dropping stale fetch result")
		return
	}
	res := s.strategy.Reconcile(s.ledger.Kids(), s.Pin(), rec)
	s.reconciled = true
	if res.ReplaceKids {
		s.ledger.ReplaceKids(res.Kids, ledger.OriginRemote)
	}
	if res.ReplacePin {
		s.setPin(res.Pin)
		jobs = append(jobs, persistJob{epoch: epoch, targets: persistPin, localOnly: true})
	}
	if res.Seed {
		jobs = append(jobs, persistJob{epoch: epoch, targets: persistKids | persistPin})
	}
	s.mode.Unlock()

	// enqueue outside the lock: the worker needs it to drain the queue
	for _, job := range jobs {
		s.enqueue(job)
	}
}

func (s *SyncService) notificationHandler(epoch uint64) remote.Handler {
	return func(rec models.FamilyRecord) {
		s.mode.RLock()
		if s.epoch.Load() != epoch || rec.ID != s.familyID {
			s.mode.RUnlock()
			return
		}
		if rec.Kids != nil {
			s.ledger.ReplaceKids(rec.Kids, ledger.OriginRemote)
		}
		s.setPin(rec.Pin)
		s.mode.RUnlock()

		s.enqueue(persistJob{epoch: epoch, targets: persistPin, localOnly: true})
	}
}

// Pin returns the current household PIN
func (s *SyncService) Pin() *string {
	s.prefs.Lock()
	defer s.prefs.Unlock()
	if s.pin == nil {
		return nil
	}
	pin := *s.pin
	return &pin
}

// SetPin sets or, with nil, clears the PIN and persists it
func (s *SyncService) SetPin(pin *string) {
	s.setPin(pin)
	s.enqueue(persistJob{epoch: s.epoch.Load(), targets: persistPin})
}

func (s *SyncService) setPin(pin *string) {
	s.prefs.Lock()
	defer s.prefs.Unlock()
	if pin == nil || *pin == "" {
		s.pin = nil
		return
	}
	p := *pin
	s.pin = &p
}

func (s *SyncService) Theme() models.Theme {
	s.prefs.Lock()
	defer s.prefs.Unlock()
	return s.theme
}

// ToggleTheme flips and persists the theme, returning the new one
func (s *SyncService) ToggleTheme() models.Theme {
	s.prefs.Lock()
	s.theme = s.theme.Toggle()
	theme := s.theme
	s.prefs.Unlock()

	s.enqueue(persistJob{epoch: s.epoch.Load(), targets: persistTheme})
	return theme
}

func (s *SyncService) onLedgerChange(c ledger.Change) {
	if c.Origin != ledger.OriginLocal {
		return
	}
	var targets persistTarget
	if c.Scope.Has(ledger.ScopeKids) {
		targets |= persistKids
	}
	if c.Scope.Has(ledger.ScopeLogs) {
		targets |= persistLogs
	}
	if c.Scope.Has(ledger.ScopeActions) {
		targets |= persistActions
	}
	s.enqueue(persistJob{epoch: s.epoch.Load(), targets: targets})
}

func (s *SyncService) enqueue(job persistJob) bool {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()
	if s.closed {
		return false
	}
	s.jobs <- job
	return true
}

// Flush waits until every write queued before the call has been attempted
func (s *SyncService) Flush(ctx context.Context) error {
	flushed := make(chan struct{})
	if !s.enqueue(persistJob{flushed: flushed}) {
		return ErrSyncClosed
	}
	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the worker and the remote subscription
func (s *SyncService) Close() {
	s.stopObserving()
	if _, stop := s.switchMode(""); stop != nil {
		stop()
	}

	s.queueMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.queueMu.Unlock()
	<-s.done
}

func (s *SyncService) run() {
	defer close(s.done)
	for job := range s.jobs {
		if job.flushed != nil {
			close(job.flushed)
			continue
		}
		s.persist(job)
	}
}

func (s *SyncService) persist(job persistJob) {
	s.mode.RLock()
	defer s.mode.RUnlock()
	if job.epoch != s.epoch.Load() {
		s.logger.Debug("Dropping write from previous sync mode")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	cloud := s.familyID != "" && s.remote != nil
	pin := s.Pin()

	if job.targets&persistKids != 0 && !cloud {
		s.setLocal(ctx, kvstore.KeyKids, s.ledger.Kids())
	}
	if job.targets&persistLogs != 0 {
		s.setLocal(ctx, kvstore.KeyLogs, s.ledger.Logs())
	}
	if job.targets&persistActions != 0 {
		s.setLocal(ctx, kvstore.KeyActions, s.ledger.Snapshot().Actions)
	}
	if job.targets&persistTheme != 0 {
		s.setLocal(ctx, kvstore.KeyTheme, string(s.Theme()))
	}
	if job.targets&persistPin != 0 {
		if pin == nil {
			if err := s.local.Remove(ctx, kvstore.KeyPin); err != nil {
				s.logger.Warn("Failed to clear local pin", zap.Error(err))
			}
		} else {
			s.setLocal(ctx, kvstore.KeyPin, *pin)
		}
	}

	if cloud && !job.localOnly && job.targets&(persistKids|persistPin) != 0 {
		if !s.reconciled {
			s.logger.Debug("Skipping family record write until reconciled", zap.String("family_id", s.familyID))
			return
		}
		rec := models.FamilyRecord{ID: s.familyID, Kids: s.ledger.Kids(), Pin: pin}
		if err := s.remote.Upsert(ctx, rec); err != nil {
			s.logger.Warn("Failed to sync family record", zap.String("family_id", s.familyID), zap.Error(err))
		}
	}
}

func (s *SyncService) setLocal(ctx context.Context, key string, value any) {
	if err := s.local.Set(ctx, key, value); err != nil {
		s.logger.Warn("Failed to persist locally", zap.String("key", key), zap.Error(err))
	}
}
