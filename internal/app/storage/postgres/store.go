// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/potipress/insideout/internal/app/domain/audit"
	"github.com/potipress/insideout/internal/app/domain/emotion"
	"github.com/potipress/insideout/internal/app/domain/quota"
	"github.com/potipress/insideout/internal/app/storage"
	apperrors "github.com/potipress/insideout/internal/errors"
)

const uniqueViolation = "23505"

// Store implements the storage interfaces over a database handle.
type Store struct {
	db *sql.DB
}

var _ storage.OverrideStore = (*Store)(nil)
var _ storage.QuotaStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- OverrideStore -----------------------------------------------------------

func (s *Store) CreateOverride(ctx context.Context, ov emotion.Override) (emotion.Override, error) {
	now := time.Now().UTC()
	ov.CreatedAt = now
	ov.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emotions (user_id, emotion, rgb, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ov.UserID, string(ov.Emotion), ov.RGB, ov.CreatedAt, ov.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return emotion.Override{}, apperrors.Conflict("Emotion already exists for this user.")
		}
		return emotion.Override{}, apperrors.Persistence("Failed to add emotion", err)
	}
	return ov, nil
}

func (s *Store) GetOverride(ctx context.Context, userID string, e emotion.Emotion) (emotion.Override, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, emotion, rgb, created_at, updated_at
		FROM emotions
		WHERE user_id = $1 AND emotion = $2
	`, userID, string(e))

	var (
		ov    emotion.Override
		label string
	)
	if err := row.Scan(&ov.UserID, &label, &ov.RGB, &ov.CreatedAt, &ov.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return emotion.Override{}, apperrors.NotFound("Emotion not found.")
		}
		return emotion.Override{}, apperrors.Persistence("Failed to retrieve emotion", err)
	}
	ov.Emotion = emotion.Emotion(label)
	return ov, nil
}

func (s *Store) UpdateOverride(ctx context.Context, ov emotion.Override) (emotion.Override, error) {
	ov.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE emotions
		SET rgb = $3, updated_at = $4
		WHERE user_id = $1 AND emotion = $2
	`, ov.UserID, string(ov.Emotion), ov.RGB, ov.UpdatedAt)
	if err != nil {
		return emotion.Override{}, apperrors.Persistence("Failed to update emotion", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return emotion.Override{}, apperrors.NotFound("Emotion not found.")
	}
	return ov, nil
}

func (s *Store) DeleteOverride(ctx context.Context, userID string, e emotion.Emotion) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM emotions
		WHERE user_id = $1 AND emotion = $2
	`, userID, string(e))
	if err != nil {
		return apperrors.Persistence("Failed to delete emotion", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NotFound("Emotion not found.")
	}
	return nil
}

// --- QuotaStore --------------------------------------------------------------

// IncrementQuota relies on a single upsert statement so concurrent requests
// for the same user serialize on the row and never lose an update.
func (s *Store) IncrementQuota(ctx context.Context, userID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO api_counts (user_id, api_count)
		VALUES ($1, 1)
		ON CONFLICT (user_id)
		DO UPDATE SET api_count = api_counts.api_count + 1
		RETURNING api_count
	`, userID)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, apperrors.Persistence("Failed to update api count", err)
	}
	return count, nil
}

func (s *Store) GetQuota(ctx context.Context, userID string) (quota.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT api_count FROM api_counts WHERE user_id = $1
	`, userID)

	rec := quota.Record{UserID: userID}
	if err := row.Scan(&rec.CallCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, nil
		}
		return quota.Record{}, apperrors.Persistence("Failed to read api count", err)
	}
	return rec, nil
}

// --- AuditStore --------------------------------------------------------------

func (s *Store) AppendAudit(ctx context.Context, rec audit.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var userID sql.NullString
	if rec.UserID != "" {
		userID = sql.NullString{String: rec.UserID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_calls (id, user_id, http_method, endpoint, status_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, userID, rec.HTTPMethod, rec.Endpoint, rec.StatusCode, rec.CreatedAt)
	if err != nil {
		return apperrors.Persistence("Failed to record api call", err)
	}
	return nil
}
