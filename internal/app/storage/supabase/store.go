// Package supabase implements the storage interfaces over the Supabase REST
// API. The quota increment goes through the increment_api_count database
// function so it stays atomic on the server side.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/potipress/insideout/internal/app/domain/audit"
	"github.com/potipress/insideout/internal/app/domain/emotion"
	"github.com/potipress/insideout/internal/app/domain/quota"
	"github.com/potipress/insideout/internal/app/storage"
	"github.com/potipress/insideout/internal/database"
	apperrors "github.com/potipress/insideout/internal/errors"
)

// Store implements the storage interfaces against Supabase tables.
type Store struct {
	client *database.Client
}

var _ storage.OverrideStore = (*Store)(nil)
var _ storage.QuotaStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New wraps an existing Supabase client.
func New(client *database.Client) *Store {
	return &Store{client: client}
}

type overrideRow struct {
	UserID    string    `json:"user_id"`
	Emotion   string    `json:"emotion"`
	RGB       string    `json:"rgb"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (r overrideRow) toDomain() emotion.Override {
	return emotion.Override{
		UserID:    r.UserID,
		Emotion:   emotion.Emotion(r.Emotion),
		RGB:       r.RGB,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func overrideFilter(userID string, e emotion.Emotion) string {
	return fmt.Sprintf("user_id=eq.%s&emotion=eq.%s", url.QueryEscape(userID), url.QueryEscape(string(e)))
}

// OverrideStore implementation ------------------------------------------------

func (s *Store) CreateOverride(ctx context.Context, ov emotion.Override) (emotion.Override, error) {
	row := overrideRow{UserID: ov.UserID, Emotion: string(ov.Emotion), RGB: ov.RGB}

	body, err := s.client.Request(ctx, http.MethodPost, "emotions", row, "")
	if err != nil {
		var apiErr *database.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			return emotion.Override{}, apperrors.Conflict("Emotion already exists for this user.")
		}
		return emotion.Override{}, apperrors.Persistence("Failed to add emotion", err)
	}

	var rows []overrideRow
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		return ov, nil
	}
	return rows[0].toDomain(), nil
}

func (s *Store) GetOverride(ctx context.Context, userID string, e emotion.Emotion) (emotion.Override, error) {
	query := overrideFilter(userID, e) + "&select=*"

	body, err := s.client.Request(ctx, http.MethodGet, "emotions", nil, query)
	if err != nil {
		return emotion.Override{}, apperrors.Persistence("Failed to retrieve emotion", err)
	}

	var rows []overrideRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return emotion.Override{}, apperrors.Persistence("Failed to decode emotion", err)
	}
	if len(rows) == 0 {
		return emotion.Override{}, apperrors.NotFound("Emotion not found.")
	}
	return rows[0].toDomain(), nil
}

func (s *Store) UpdateOverride(ctx context.Context, ov emotion.Override) (emotion.Override, error) {
	patch := map[string]string{"rgb": ov.RGB}

	body, err := s.client.Request(ctx, http.MethodPatch, "emotions", patch, overrideFilter(ov.UserID, ov.Emotion))
	if err != nil {
		return emotion.Override{}, apperrors.Persistence("Failed to update emotion", err)
	}

	var rows []overrideRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return emotion.Override{}, apperrors.Persistence("Failed to decode emotion", err)
	}
	if len(rows) == 0 {
		return emotion.Override{}, apperrors.NotFound("Emotion not found.")
	}
	return rows[0].toDomain(), nil
}

func (s *Store) DeleteOverride(ctx context.Context, userID string, e emotion.Emotion) error {
	body, err := s.client.Request(ctx, http.MethodDelete, "emotions", nil, overrideFilter(userID, e))
	if err != nil {
		return apperrors.Persistence("Failed to delete emotion", err)
	}

	var rows []overrideRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return apperrors.Persistence("Failed to decode emotion", err)
	}
	if len(rows) == 0 {
		return apperrors.NotFound("Emotion not found.")
	}
	return nil
}

// QuotaStore implementation ---------------------------------------------------

func (s *Store) IncrementQuota(ctx context.Context, userID string) (int, error) {
	payload := map[string]string{"p_user_id": userID}

	body, err := s.client.Request(ctx, http.MethodPost, "rpc/increment_api_count", payload, "")
	if err != nil {
		return 0, apperrors.Persistence("Failed to update api count", err)
	}

	var count int
	if err := json.Unmarshal(body, &count); err != nil {
		return 0, apperrors.Persistence("Failed to decode api count", err)
	}
	return count, nil
}

func (s *Store) GetQuota(ctx context.Context, userID string) (quota.Record, error) {
	query := "user_id=eq." + url.QueryEscape(userID) + "&select=api_count"

	body, err := s.client.Request(ctx, http.MethodGet, "api_counts", nil, query)
	if err != nil {
		return quota.Record{}, apperrors.Persistence("Failed to read api count", err)
	}

	var rows []struct {
		APICount int `json:"api_count"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return quota.Record{}, apperrors.Persistence("Failed to decode api count", err)
	}

	rec := quota.Record{UserID: userID}
	if len(rows) > 0 {
		rec.CallCount = rows[0].APICount
	}
	return rec, nil
}

// AuditStore implementation ---------------------------------------------------

func (s *Store) AppendAudit(ctx context.Context, rec audit.Record) error {
	row := map[string]interface{}{
		"http_method": rec.HTTPMethod,
		"endpoint":    rec.Endpoint,
		"status_code": rec.StatusCode,
	}
	if rec.UserID != "" {
		row["user_id"] = rec.UserID
	}
	if rec.ID != "" {
		row["id"] = rec.ID
	}

	if _, err := s.client.Request(ctx, http.MethodPost, "api_calls", row, ""); err != nil {
		return apperrors.Persistence("Failed to record api call", err)
	}
	return nil
}
