// Package memory provides a thread-safe in-memory persistence layer
// implementing the storage interfaces. It is intended for tests and for
// running without a configured backend.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/potipress/insideout/internal/app/domain/audit"
	"github.com/potipress/insideout/internal/app/domain/emotion"
	"github.com/potipress/insideout/internal/app/domain/quota"
	"github.com/potipress/insideout/internal/app/storage"
	apperrors "github.com/potipress/insideout/internal/errors"
)

type overrideKey struct {
	userID  string
	emotion emotion.Emotion
}

// Store is an in-memory implementation of all storage interfaces.
type Store struct {
	mu        sync.RWMutex
	overrides map[overrideKey]emotion.Override
	counts    map[string]int
	records   []audit.Record
}

var _ storage.OverrideStore = (*Store)(nil)
var _ storage.QuotaStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		overrides: make(map[overrideKey]emotion.Override),
		counts:    make(map[string]int),
	}
}

// OverrideStore implementation ------------------------------------------------

func (s *Store) CreateOverride(_ context.Context, ov emotion.Override) (emotion.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := overrideKey{userID: ov.UserID, emotion: ov.Emotion}
	if _, exists := s.overrides[key]; exists {
		return emotion.Override{}, apperrors.Conflict("Emotion already exists for this user.")
	}

	now := time.Now().UTC()
	ov.CreatedAt = now
	ov.UpdatedAt = now
	s.overrides[key] = ov
	return ov, nil
}

func (s *Store) GetOverride(_ context.Context, userID string, e emotion.Emotion) (emotion.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ov, ok := s.overrides[overrideKey{userID: userID, emotion: e}]
	if !ok {
		return emotion.Override{}, apperrors.NotFound("Emotion not found.")
	}
	return ov, nil
}

func (s *Store) UpdateOverride(_ context.Context, ov emotion.Override) (emotion.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := overrideKey{userID: ov.UserID, emotion: ov.Emotion}
	existing, ok := s.overrides[key]
	if !ok {
		return emotion.Override{}, apperrors.NotFound("Emotion not found.")
	}

	existing.RGB = ov.RGB
	existing.UpdatedAt = time.Now().UTC()
	s.overrides[key] = existing
	return existing, nil
}

func (s *Store) DeleteOverride(_ context.Context, userID string, e emotion.Emotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := overrideKey{userID: userID, emotion: e}
	if _, ok := s.overrides[key]; !ok {
		return apperrors.NotFound("Emotion not found.")
	}
	delete(s.overrides, key)
	return nil
}

// QuotaStore implementation ---------------------------------------------------

func (s *Store) IncrementQuota(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[userID]++
	return s.counts[userID], nil
}

func (s *Store) GetQuota(_ context.Context, userID string) (quota.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return quota.Record{UserID: userID, CallCount: s.counts[userID]}, nil
}

// AuditStore implementation ---------------------------------------------------

func (s *Store) AppendAudit(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.records = append(s.records, rec)
	return nil
}

// AuditRecords returns a copy of all appended records, oldest first. Used by
// tests to assert audit behavior.
func (s *Store) AuditRecords() []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Record, len(s.records))
	copy(out, s.records)
	return out
}
