// Package quota accounts API usage against the per-user free call limit.
package quota

import (
	"context"
	"strings"

	"github.com/potipress/insideout/internal/app/domain/quota"
	"github.com/potipress/insideout/internal/app/storage"
	apperrors "github.com/potipress/insideout/internal/errors"
	"github.com/potipress/insideout/pkg/logger"
)

// Usage is the outcome of accounting one request.
type Usage struct {
	Count      int
	MaxReached bool
}

// Service is the quota ledger. All atomicity lives in the store's
// IncrementQuota; the service adds validation and the limit policy.
type Service struct {
	store storage.QuotaStore
	log   *logger.Logger
}

// New constructs a quota service.
func New(store storage.QuotaStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("quota")
	}
	return &Service{store: store, log: log}
}

// Account increments the user's counter and evaluates the limit. The limit
// is a soft warning: requests past it are flagged, never rejected.
func (s *Service) Account(ctx context.Context, userID string) (Usage, error) {
	if strings.TrimSpace(userID) == "" {
		return Usage{}, apperrors.Validation("User ID not provided.")
	}

	count, err := s.store.IncrementQuota(ctx, userID)
	if err != nil {
		return Usage{}, err
	}

	usage := Usage{Count: count, MaxReached: quota.MaxReached(count)}
	if usage.MaxReached {
		s.log.Infof("user %s past free call limit (%d)", userID, count)
	}
	return usage, nil
}

// Count reads the user's current counter without incrementing. Unknown users
// report zero.
func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, apperrors.Validation("User ID not provided.")
	}

	rec, err := s.store.GetQuota(ctx, userID)
	if err != nil {
		return 0, err
	}
	return rec.CallCount, nil
}
