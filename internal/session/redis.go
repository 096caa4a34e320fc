package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions and backups as JSON values in Redis. Keys live
// for the retention period after their last write, so an expired session is
// still reported as expired for a while instead of vanishing.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(ctx context.Context, redisURL string, retention time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisStore{client: client, retention: retention}, nil
}

func sessionKey(id string) string { return "session:" + id }
func backupKey(id string) string { return "backup:" + id }

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	var st Session
	if err := s.get(ctx, sessionKey(id), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *RedisStore) Put(ctx context.Context, st *Session) error {
	return s.set(ctx, sessionKey(st.ID), st)
}

func (s *RedisStore) GetBackup(ctx context.Context, id string) (*Backup, error) {
	var b Backup
	if err := s.get(ctx, backupKey(id), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *RedisStore) PutBackup(ctx context.Context, b *Backup) error {
	return s.set(ctx, backupKey(b.ID), b)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) get(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, s.retention).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
