package tenantctx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/clearvault/clearvault/internal/common/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"time"
)

// RedisStore implements SelectionStore using Redis, so tenant selections
// survive process restarts and are shared across replicas.
type RedisStore struct {
	logger *zap.Logger
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ SelectionStore = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-based selection store
func NewRedisStore(logger *zap.Logger, cfg config.SessionRedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "tenant_selection"
	}

	return &RedisStore{
		logger: logger.Named("tenantctx.store.redis"),
		client: client,
		prefix: prefix + ":",
		ttl:    cfg.TTL,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (uint, error) {
	val, err := s.client.Get(ctx, s.prefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNoSelection
		}
		return 0, fmt.Errorf("failed to get tenant selection from Redis: %w", err)
	}

	tenantID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		// A corrupt value is as good as no selection; drop it.
		s.logger.Warn("dropping malformed tenant selection",
			zap.String("session_id", sessionID),
			zap.String("value", val))
		_ = s.client.Del(ctx, s.prefix+sessionID).Err()
		return 0, ErrNoSelection
	}
	return uint(tenantID), nil
}

func (s *RedisStore) Set(ctx context.Context, sessionID string, tenantID uint) error {
	key := s.prefix + sessionID
	if err := s.client.Set(ctx, key, strconv.FormatUint(uint64(tenantID), 10), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store tenant selection in Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.prefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to clear tenant selection from Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
