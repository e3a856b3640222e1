package storage

import (
	"context"

	"github.com/potipress/insideout/internal/app/domain/audit"
	"github.com/potipress/insideout/internal/app/domain/emotion"
	"github.com/potipress/insideout/internal/app/domain/quota"
)

// OverrideStore persists per-user emotion color overrides.
type OverrideStore interface {
	// CreateOverride inserts an override. It fails with a conflict error
	// when one already exists for the (user, emotion) pair.
	CreateOverride(ctx context.Context, ov emotion.Override) (emotion.Override, error)
	GetOverride(ctx context.Context, userID string, e emotion.Emotion) (emotion.Override, error)
	UpdateOverride(ctx context.Context, ov emotion.Override) (emotion.Override, error)
	DeleteOverride(ctx context.Context, userID string, e emotion.Emotion) error
}

// QuotaStore persists per-user call counters.
type QuotaStore interface {
	// IncrementQuota atomically adds one to the user's counter, creating it
	// at 1 when absent, and returns the post-increment count. Two concurrent
	// increments for the same user must never observe the same count.
	IncrementQuota(ctx context.Context, userID string) (int, error)
	// GetQuota returns the user's record with CallCount 0 when unseen.
	GetQuota(ctx context.Context, userID string) (quota.Record, error)
}

// AuditStore appends API activity records.
type AuditStore interface {
	AppendAudit(ctx context.Context, rec audit.Record) error
}
