// Package emotion defines the canonical emotion vocabulary and the
// emotion-to-color mapping used across the service.
package emotion

import (
	"strings"
	"time"
)

// Emotion is one of the seven canonical facial emotions, or Unknown.
type Emotion string

const (
	Angry    Emotion = "angry"
	Happy    Emotion = "happy"
	Sad      Emotion = "sad"
	Fear     Emotion = "fear"
	Disgust  Emotion = "disgust"
	Neutral  Emotion = "neutral"
	Surprise Emotion = "surprise"

	// Unknown marks a label outside the canonical set or a failed
	// classification. Unknown short-circuits color resolution and
	// response synthesis.
	Unknown Emotion = "Unknown"

	// ColorUnknown is the color reported alongside Unknown.
	ColorUnknown = "Unknown"
)

// Canonical lists the seven recognized emotions in a stable order.
func Canonical() []Emotion {
	return []Emotion{Angry, Happy, Sad, Fear, Disgust, Neutral, Surprise}
}

var defaultColors = map[Emotion]string{
	Angry:    "Red",
	Happy:    "Green",
	Sad:      "Blue",
	Fear:     "Purple",
	Disgust:  "Brown",
	Neutral:  "Gray",
	Surprise: "Yellow",
}

// Parse lower-cases a raw label and matches it against the canonical set.
// Anything else comes back as Unknown.
func Parse(label string) Emotion {
	e := Emotion(strings.ToLower(strings.TrimSpace(label)))
	if _, ok := defaultColors[e]; ok {
		return e
	}
	return Unknown
}

// DefaultColor returns the fixed color for a canonical emotion, or
// ColorUnknown for anything else. The mapping is total over the seven labels.
func DefaultColor(e Emotion) string {
	if c, ok := defaultColors[e]; ok {
		return c
	}
	return ColorUnknown
}

// Display renders an emotion for user-facing text ("happy" -> "Happy").
func (e Emotion) Display() string {
	s := string(e)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// IsKnown reports whether e is one of the seven canonical emotions.
func (e Emotion) IsKnown() bool {
	_, ok := defaultColors[e]
	return ok
}

// Result is the outcome of one classification, enriched with the resolved
// color. It is transient and never persisted.
type Result struct {
	Emotion Emotion
	Color   string
}

// UnknownResult is the degraded result used for every classification failure.
func UnknownResult() Result {
	return Result{Emotion: Unknown, Color: ColorUnknown}
}

// Override is a per-user customization of the emotion-to-color mapping.
// Unique per (UserID, Emotion) pair.
type Override struct {
	UserID    string
	Emotion   Emotion
	RGB       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
