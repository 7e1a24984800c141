package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"focus-service/internal/models"

	"github.com/go-redis/redis/v8"
)

var ErrNotFound = errors.New("snapshot not found")

const keyPrefix = "focus:session:"

func latestKey(sessionID string) string {
	return keyPrefix + sessionID + ":latest"
}

type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, addr string, ttl time.Duration) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	// Проверка соединения
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", addr, err)
	}

	return &RedisClient{client: client, ttl: ttl}, nil
}

// StoreResult overwrites the session's latest snapshot. Only the newest
// result is kept.
func (r *RedisClient) StoreResult(ctx context.Context, snap models.StateSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := r.client.Set(ctx, latestKey(snap.SessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot in Redis: %w", err)
	}
	return nil
}

func (r *RedisClient) GetLatest(ctx context.Context, sessionID string) (models.StateSnapshot, error) {
	var snap models.StateSnapshot

	data, err := r.client.Get(ctx, latestKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func (r *RedisClient) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, latestKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
