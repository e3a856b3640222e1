// Package assistant orchestrates the photo-to-reply pipeline: quota
// accounting, image decoding, emotion classification, color resolution and
// response synthesis.
package assistant

import (
	"context"

	"github.com/potipress/insideout/internal/app/domain/emotion"
	"github.com/potipress/insideout/internal/app/metrics"
	"github.com/potipress/insideout/internal/app/services/palette"
	"github.com/potipress/insideout/internal/app/services/quota"
	"github.com/potipress/insideout/internal/app/services/respond"
	"github.com/potipress/insideout/internal/app/services/vision"
	"github.com/potipress/insideout/pkg/logger"
)

// Reply is the outcome of one processed photo.
type Reply struct {
	Response   string
	Color      string
	APICount   int
	MaxReached bool
}

// Service runs the full pipeline for a user request.
type Service struct {
	vision    *vision.Adapter
	palette   *palette.Service
	responder *respond.Synthesizer
	quota     *quota.Service
	collector *metrics.Collector
	log       *logger.Logger
}

// New creates the pipeline service. The metrics collector may be nil.
func New(v *vision.Adapter, p *palette.Service, r *respond.Synthesizer, q *quota.Service, c *metrics.Collector, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("assistant")
	}
	return &Service{vision: v, palette: p, responder: r, quota: q, collector: c, log: log}
}

// Process accounts the call, decodes the photo and produces a reply. The
// call is counted even when the image cannot be decoded; only a missing user
// id or a quota persistence failure produce an error.
func (s *Service) Process(ctx context.Context, userID, imagePayload string) (Reply, error) {
	usage, err := s.quota.Account(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if usage.MaxReached && s.collector != nil {
		s.collector.RecordQuotaExceeded()
	}

	reply := Reply{APICount: usage.Count, MaxReached: usage.MaxReached}

	frame, err := vision.Normalize(imagePayload)
	if err != nil {
		s.log.WithError(err).WithFields(map[string]interface{}{"user_id": userID}).Warn("image decode failed")
		s.recordFailure("decode")
		reply.Response = vision.DecodeFailureMessage
		reply.Color = emotion.ColorUnknown
		return reply, nil
	}

	result := s.vision.Detect(ctx, frame)
	result = s.palette.Resolve(ctx, userID, result)
	if s.collector != nil {
		s.collector.RecordPipelineResult(string(result.Emotion))
	}

	reply.Response = s.responder.Compose(ctx, result)
	reply.Color = result.Color
	return reply, nil
}

func (s *Service) recordFailure(stage string) {
	if s.collector != nil {
		s.collector.RecordUpstreamFailure(stage)
	}
}
