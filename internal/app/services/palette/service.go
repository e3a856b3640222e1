// Package palette resolves the color for a detected emotion and manages
// per-user color overrides.
package palette

import (
	"context"
	"strings"

	"github.com/potipress/insideout/internal/app/domain/emotion"
	"github.com/potipress/insideout/internal/app/storage"
	apperrors "github.com/potipress/insideout/internal/errors"
	"github.com/potipress/insideout/pkg/logger"
)

// Service resolves emotion colors and manages overrides.
type Service struct {
	store storage.OverrideStore
	log   *logger.Logger
}

// New constructs a palette service.
func New(store storage.OverrideStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("palette")
	}
	return &Service{store: store, log: log}
}

// Resolve fills in the color for a classification result: the user's
// override when one exists, else the fixed default. Unknown propagates
// untouched without a store lookup. Resolution is a pure read.
func (s *Service) Resolve(ctx context.Context, userID string, result emotion.Result) emotion.Result {
	if !result.Emotion.IsKnown() {
		return emotion.UnknownResult()
	}

	ov, err := s.store.GetOverride(ctx, userID, result.Emotion)
	if err == nil {
		result.Color = ov.RGB
		return result
	}
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		// A failing store must not take the pipeline down; fall back to
		// the default mapping.
		s.log.WithError(err).Warn("override lookup failed; using default color")
	}

	result.Color = emotion.DefaultColor(result.Emotion)
	return result
}

// CreateOverride stores a new (user, emotion) color override.
func (s *Service) CreateOverride(ctx context.Context, userID, label, rgb string) (emotion.Override, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(label) == "" || strings.TrimSpace(rgb) == "" {
		return emotion.Override{}, apperrors.Validation("Missing user ID, emotion or RGB value")
	}

	e := emotion.Parse(label)
	if !e.IsKnown() {
		return emotion.Override{}, apperrors.Validation("Emotion must be one of the seven canonical labels")
	}

	ov, err := s.store.CreateOverride(ctx, emotion.Override{UserID: userID, Emotion: e, RGB: rgb})
	if err != nil {
		return emotion.Override{}, err
	}
	s.log.Infof("override created for user %s emotion %s", userID, e)
	return ov, nil
}

// GetOverride fetches an override by user and emotion label.
func (s *Service) GetOverride(ctx context.Context, userID, label string) (emotion.Override, error) {
	if strings.TrimSpace(userID) == "" {
		return emotion.Override{}, apperrors.Validation("User ID not provided.")
	}
	return s.store.GetOverride(ctx, userID, emotion.Parse(label))
}

// UpdateOverride changes the color of an existing override.
func (s *Service) UpdateOverride(ctx context.Context, userID, label, rgb string) (emotion.Override, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(rgb) == "" {
		return emotion.Override{}, apperrors.Validation("Missing user ID or RGB value.")
	}
	return s.store.UpdateOverride(ctx, emotion.Override{UserID: userID, Emotion: emotion.Parse(label), RGB: rgb})
}

// DeleteOverride removes an override.
func (s *Service) DeleteOverride(ctx context.Context, userID, label string) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.Validation("User ID not provided.")
	}
	if err := s.store.DeleteOverride(ctx, userID, emotion.Parse(label)); err != nil {
		return err
	}
	s.log.Infof("override deleted for user %s emotion %s", userID, label)
	return nil
}
