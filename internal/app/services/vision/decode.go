// Package vision turns an encoded image payload into a pixel buffer and runs
// it through the external emotion classification engine.
package vision

import (
	"bytes"
	"encoding/base64"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	apperrors "github.com/potipress/insideout/internal/errors"
)

// DecodeFailureMessage is the fixed user-facing text for an undecodable
// payload.
const DecodeFailureMessage = "Failed to decode image."

// Frame is a decoded image in BGR channel order, the layout the
// classification engine expects.
type Frame struct {
	Width  int
	Height int
	Pix    []byte // len = Width*Height*3, B G R per pixel
}

// Normalize decodes a base64 image payload into a Frame. A corrupt or
// truncated payload comes back as a decode failure, never a panic.
func Normalize(payload string) (Frame, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Frame{}, apperrors.Decode(DecodeFailureMessage, nil)
	}

	// Browsers often prepend a data URL header; the engine only wants the
	// raw payload after the comma.
	if idx := strings.IndexByte(payload, ','); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Frame{}, apperrors.Decode(DecodeFailureMessage, err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Frame{}, apperrors.Decode(DecodeFailureMessage, err)
	}

	return toBGR(img), nil
}

func toBGR(img image.Image) Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	pix := make([]byte, 0, w*h*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pix = append(pix, byte(b>>8), byte(g>>8), byte(r>>8))
		}
	}

	return Frame{Width: w, Height: h, Pix: pix}
}
