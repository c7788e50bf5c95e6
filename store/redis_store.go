package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// RedisStore persists snapshots as opaque string values and the experiment
// log as a per-session list. Suitable when several session hosts share one
// persistence backend.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "trioflow:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: prefix,
		logger:    logger.With(zap.String("component", "redis_store")),
	}, nil
}

func (s *RedisStore) snapshotKey(sessionID string) string {
	return s.keyPrefix + "snapshot:" + sessionID
}

func (s *RedisStore) experimentsKey(sessionID string) string {
	return s.keyPrefix + "experiments:" + sessionID
}

func (s *RedisStore) SaveSnapshot(ctx context.Context, sessionID string, blob []byte) error {
	return s.client.Set(ctx, s.snapshotKey(sessionID), blob, 0).Err()
}

func (s *RedisStore) LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	blob, err := s.client.Get(ctx, s.snapshotKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func (s *RedisStore) AppendExperiment(ctx context.Context, rec ExperimentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal experiment record: %w", err)
	}
	return s.client.RPush(ctx, s.experimentsKey(rec.SessionID), data).Err()
}

func (s *RedisStore) ListExperiments(ctx context.Context, sessionID string) ([]ExperimentRecord, error) {
	raw, err := s.client.LRange(ctx, s.experimentsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ExperimentRecord, 0, len(raw))
	for _, item := range raw {
		var rec ExperimentRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode experiment record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
