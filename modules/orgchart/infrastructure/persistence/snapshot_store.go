package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/orgflow/modules/orgchart/services"
)

// RedisSnapshotStore keeps one forest snapshot per dataset as a JSON string.
type RedisSnapshotStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSnapshotStore(client *redis.Client, prefix string, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{redis: client, prefix: prefix, ttl: ttl}
}

func (s *RedisSnapshotStore) Save(ctx context.Context, snap *services.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	if err := s.redis.Set(ctx, s.key(snap.Dataset), b, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "store snapshot")
	}
	return nil
}

func (s *RedisSnapshotStore) Load(ctx context.Context, dataset string) (*services.Snapshot, error) {
	b, err := s.redis.Get(ctx, s.key(dataset)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, services.ErrSnapshotNotFound
		}
		return nil, errors.Wrap(err, "load snapshot")
	}
	var snap services.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return &snap, nil
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, dataset string) error {
	return s.redis.Del(ctx, s.key(dataset)).Err()
}

func (s *RedisSnapshotStore) key(dataset string) string {
	return fmt.Sprintf("%s:%s", s.prefix, dataset)
}
