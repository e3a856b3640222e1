package respond

import (
	"context"
	"fmt"
	"strings"

	"github.com/potipress/insideout/internal/app/domain/emotion"
	apperrors "github.com/potipress/insideout/internal/errors"
	"github.com/potipress/insideout/pkg/logger"
)

const (
	// UnableToDetectMessage is returned whenever the detected emotion is
	// Unknown. The generation engine is never invoked in that case.
	UnableToDetectMessage = "I'm sorry, I'm unable to detect your emotion at the moment. Could you try again?"

	// FallbackMessage replaces the generated text when the engine fails.
	FallbackMessage = "I'm sorry, I'm unable to process your request at the moment."

	promptTemplate  = "Respond empathetically to someone feeling %s."
	messageTemplate = "I detect that you are feeling %s. The color code associated with this emotion is %s. %s"
)

// Synthesizer composes the user-facing reply for a resolved emotion result.
type Synthesizer struct {
	gen Generator
	log *logger.Logger
}

// NewSynthesizer wraps a generation engine.
func NewSynthesizer(gen Generator, log *logger.Logger) *Synthesizer {
	if log == nil {
		log = logger.NewDefault("respond")
	}
	return &Synthesizer{gen: gen, log: log}
}

// Compose builds the reply for a result whose color has been resolved.
// Engine failures degrade to the fixed fallback text instead of failing the
// request.
func (s *Synthesizer) Compose(ctx context.Context, result emotion.Result) string {
	if !result.Emotion.IsKnown() {
		return UnableToDetectMessage
	}

	prompt := fmt.Sprintf(promptTemplate, strings.ToLower(string(result.Emotion)))
	generated := s.generate(ctx, prompt)

	return fmt.Sprintf(messageTemplate, result.Emotion.Display(), result.Color, generated)
}

func (s *Synthesizer) generate(ctx context.Context, prompt string) string {
	if s.gen == nil {
		s.log.Warn("no generation engine configured")
		return FallbackMessage
	}

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.log.WithError(apperrors.Upstream("text generation failed", err)).Warn("generation degraded to fallback")
		return FallbackMessage
	}
	return text
}
