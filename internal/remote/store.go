package remote

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kidpoints/internal/config"
	"kidpoints/internal/database"
	"kidpoints/internal/models"
	"kidpoints/internal/repository"
)

// Store combines a records backend with a change feed. Writes are stamped
// with the device id and published after they succeed; notifications a
// device wrote itself are not delivered back to it.
type Store struct {
	records  Records
	notifier Notifier
	deviceID string
	logger   *zap.Logger
	now      func() time.Time
	closers  []func() error
}

func NewStore(records Records, notifier Notifier, deviceID string, logger *zap.Logger) *Store {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Store{
		records:  records,
		notifier: notifier,
		deviceID: deviceID,
		logger:   logger,
		now:      time.Now,
	}
}

// Open builds the store described by cfg. It returns nil when no backend is configured.
func Open(ctx context.Context, cfg config.RemoteConfig, deviceID string, logger *zap.Logger) (*Store, error) {
	var records Records
	var closers []func() error

	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "sql":
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open remote database: %w", err)
		}
		if err := db.RunMigrations(logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate remote database: %w", err)
		}
		records = NewSQLRecords(repository.NewFamilyRepository(db), logger)
		closers = append(closers, db.Close)
	case "rest":
		records = NewRESTRecords(cfg.RESTURL, cfg.APIKey, cfg.Timeout, logger)
	default:
		return nil, fmt.Errorf("unsupported remote backend: %s", cfg.Backend)
	}

	var notifier Notifier = NopNotifier{}
	switch cfg.Notifier {
	case "redis":
		client := NewRedisClient(cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis notifier unreachable, continuing", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		notifier = NewRedisNotifier(client, logger)
	case "mqtt":
		mqttCfg := cfg.MQTT
		if mqttCfg.ClientID == "" {
			mqttCfg.ClientID = "kidpoints-" + deviceID
		}
		n, err := NewMQTTNotifier(mqttCfg, logger)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, err
		}
		notifier = n
	}

	s := NewStore(records, notifier, deviceID, logger)
	s.closers = closers
	return s, nil
}

// DeviceID is the writer tag stamped on every record this store writes
func (s *Store) DeviceID() string {
	return s.deviceID
}

func (s *Store) Fetch(ctx context.Context, id string) (*models.FamilyRecord, error) {
	return s.records.Fetch(ctx, id)
}

func (s *Store) Insert(ctx context.Context, rec models.FamilyRecord) error {
	rec = s.stamp(rec)
	if err := s.records.Insert(ctx, rec); err != nil {
		return err
	}
	s.publish(ctx, rec)
	return nil
}

func (s *Store) Upsert(ctx context.Context, rec models.FamilyRecord) error {
	rec = s.stamp(rec)
	if err := s.records.Upsert(ctx, rec); err != nil {
		return err
	}
	s.publish(ctx, rec)
	return nil
}

// Subscribe delivers updates to familyID written by other devices
func (s *Store) Subscribe(ctx context.Context, familyID string, handler Handler) (func(), error) {
	return s.notifier.Subscribe(ctx, familyID, func(rec models.FamilyRecord) {
		if rec.ID != familyID {
			return
		}
		if rec.Writer != "" && rec.Writer == s.deviceID {
			return
		}
		handler(rec)
	})
}

func (s *Store) Close() error {
	err := s.notifier.Close()
	for _, c := range s.closers {
		if cerr := c(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Store) stamp(rec models.FamilyRecord) models.FamilyRecord {
	rec.Writer = s.deviceID
	rec.UpdatedAt = s.now().UTC()
	if rec.Kids == nil {
		rec.Kids = []models.Child{}
	}
	return rec
}

func (s *Store) publish(ctx context.Context, rec models.FamilyRecord) {
	if err := s.notifier.Publish(ctx, rec); err != nil {
		s.logger.Warn("Failed to publish family update", zap.String("family_id", rec.ID), zap.Error(err))
	}
}
