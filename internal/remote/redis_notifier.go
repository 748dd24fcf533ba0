package remote

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"kidpoints/internal/config"
	"kidpoints/internal/models"
)

// RedisNotifier fans out record updates over Redis pub/sub, one channel per family
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisClient creates a client from configuration
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

func redisChannel(familyID string) string {
	return "families:" + familyID
}

func (n *RedisNotifier) Publish(ctx context.Context, rec models.FamilyRecord) error {
	payload, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, redisChannel(rec.ID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish family update: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, familyID string, handler Handler) (func(), error) {
	pubsub := n.client.Subscribe(ctx, redisChannel(familyID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to family %s: %w", familyID, err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			rec, err := DecodeRecord([]byte(msg.Payload))
			if rec == nil {
				n.logger.Warn("Dropping undecodable family update", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if err != nil {
				n.logger.Warn("Ignoring malformed kids payload", zap.String("family_id", familyID), zap.Error(err))
			}
			handler(*rec)
		}
	}()

	return func() {
		if err := pubsub.Close(); err != nil {
			n.logger.Debug("Failed to close subscription", zap.String("family_id", familyID), zap.Error(err))
		}
	}, nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
