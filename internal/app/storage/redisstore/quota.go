// Package redisstore implements the quota ledger over Redis. INCR gives the
// atomic per-user increment the ledger requires without any locking on our
// side.
package redisstore

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/potipress/insideout/internal/app/domain/quota"
	"github.com/potipress/insideout/internal/app/storage"
	apperrors "github.com/potipress/insideout/internal/errors"
)

const keyPrefix = "insideout:api_count:"

// QuotaStore tracks per-user call counters in Redis.
type QuotaStore struct {
	client *redis.Client
}

var _ storage.QuotaStore = (*QuotaStore)(nil)

// NewQuotaStore wraps an existing Redis client.
func NewQuotaStore(client *redis.Client) *QuotaStore {
	return &QuotaStore{client: client}
}

func (s *QuotaStore) IncrementQuota(ctx context.Context, userID string) (int, error) {
	count, err := s.client.Incr(ctx, keyPrefix+userID).Result()
	if err != nil {
		return 0, apperrors.Persistence("Failed to update api count", err)
	}
	return int(count), nil
}

func (s *QuotaStore) GetQuota(ctx context.Context, userID string) (quota.Record, error) {
	count, err := s.client.Get(ctx, keyPrefix+userID).Int()
	if err != nil {
		if err == redis.Nil {
			return quota.Record{UserID: userID}, nil
		}
		return quota.Record{}, apperrors.Persistence("Failed to read api count", err)
	}
	return quota.Record{UserID: userID, CallCount: count}, nil
}
