package staging

import (
	"context"
	"encoding/json"
	"time"

	pkgerrors "github.com/minhvodev/storefront-backend/pkg/errors"
	"github.com/minhvodev/storefront-backend/pkg/redis"
)

// RedisStore shares staged orders across API instances. Expiry rides on the
// key TTL, so Redis discards abandoned checkouts on its own and Sweep is a
// no-op kept only to satisfy the Store contract.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore builds a staging store backed by the shared Redis client.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "redis client required")
	}
	return &RedisStore{client: client, now: time.Now}, nil
}

func (s *RedisStore) Stage(ctx context.Context, temp *TempOrder) error {
	if temp == nil || temp.Key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "staged order requires a key")
	}
	ttl := temp.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "staged order already expired")
	}
	payload, err := json.Marshal(temp)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode staged order")
	}
	if err := s.client.Set(ctx, s.client.StagingKey(temp.Key), payload, ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stage order")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*TempOrder, error) {
	raw, err := s.client.Get(ctx, s.client.StagingKey(key))
	if err != nil {
		if redis.IsNil(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "staged order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load staged order")
	}
	var temp TempOrder
	if err := json.Unmarshal([]byte(raw), &temp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode staged order")
	}
	return &temp, nil
}

func (s *RedisStore) Discard(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.client.StagingKey(key)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "discard staged order")
	}
	return nil
}

func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
