package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/potipress/insideout/internal/app/domain/emotion"
	apperrors "github.com/potipress/insideout/internal/errors"
	"github.com/potipress/insideout/pkg/logger"
)

// Observation is the raw engine output for one face.
type Observation struct {
	DominantEmotion string
	Confidence      float64
}

// Classifier invokes the external emotion classification engine.
type Classifier interface {
	Classify(ctx context.Context, frame Frame) (Observation, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, frame Frame) (Observation, error)

func (f ClassifierFunc) Classify(ctx context.Context, frame Frame) (Observation, error) {
	if f == nil {
		return Observation{}, fmt.Errorf("no classifier configured")
	}
	return f(ctx, frame)
}

// HTTPClassifier calls a detector sidecar over HTTP. Detection is requested
// in permissive mode so the engine yields a best-effort result instead of
// failing when no face is confidently located.
type HTTPClassifier struct {
	client   *http.Client
	endpoint *url.URL
	log      *logger.Logger
}

// NewHTTPClassifier constructs a classifier for the given sidecar endpoint.
func NewHTTPClassifier(client *http.Client, endpoint string, log *logger.Logger) (*HTTPClassifier, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("classifier endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse classifier endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("vision-classifier")
	}
	return &HTTPClassifier{client: client, endpoint: parsed, log: log}, nil
}

func (c *HTTPClassifier) Classify(ctx context.Context, frame Frame) (Observation, error) {
	payload := map[string]interface{}{
		"image":             base64.StdEncoding.EncodeToString(frame.Pix),
		"width":             frame.Width,
		"height":            frame.Height,
		"actions":           []string{"emotion"},
		"enforce_detection": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Observation{}, fmt.Errorf("marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return Observation{}, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Observation{}, fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Observation{}, fmt.Errorf("classifier status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Observation{}, fmt.Errorf("read classify response: %w", err)
	}

	return parseObservation(raw)
}

// parseObservation normalizes the engine's heterogeneous result shape: a
// single result object or a list of per-face results. Lists collapse to
// their first element (single-face assumption).
func parseObservation(raw []byte) (Observation, error) {
	result := gjson.ParseBytes(raw)
	if result.IsArray() {
		items := result.Array()
		if len(items) == 0 {
			return Observation{}, fmt.Errorf("empty classifier result")
		}
		result = items[0]
	}

	dominant := result.Get("dominant_emotion")
	if !dominant.Exists() {
		return Observation{}, fmt.Errorf("classifier result missing dominant_emotion")
	}

	obs := Observation{DominantEmotion: dominant.String()}
	if score := result.Get("emotion." + strings.ToLower(obs.DominantEmotion)); score.Exists() {
		obs.Confidence = score.Float()
	}
	return obs, nil
}

// Adapter maps raw engine observations onto the canonical emotion set.
// Classification failure is never fatal: every error path degrades to the
// Unknown result.
type Adapter struct {
	engine Classifier
	log    *logger.Logger
}

// NewAdapter wraps a classification engine.
func NewAdapter(engine Classifier, log *logger.Logger) *Adapter {
	if log == nil {
		log = logger.NewDefault("vision")
	}
	return &Adapter{engine: engine, log: log}
}

// Detect classifies a frame and returns the canonical result. The color is
// left unresolved (ColorUnknown) for the palette service to fill in.
func (a *Adapter) Detect(ctx context.Context, frame Frame) emotion.Result {
	if a.engine == nil {
		a.log.Warn("no classification engine configured")
		return emotion.UnknownResult()
	}

	obs, err := a.engine.Classify(ctx, frame)
	if err != nil {
		a.log.WithError(apperrors.Upstream("emotion detection failed", err)).Warn("classification degraded to Unknown")
		return emotion.UnknownResult()
	}

	e := emotion.Parse(obs.DominantEmotion)
	if !e.IsKnown() {
		a.log.Infof("label %q outside canonical set", obs.DominantEmotion)
		return emotion.UnknownResult()
	}

	a.log.WithFields(map[string]interface{}{
		"emotion":    string(e),
		"confidence": obs.Confidence,
	}).Debug("emotion detected")

	return emotion.Result{Emotion: e, Color: emotion.ColorUnknown}
}
