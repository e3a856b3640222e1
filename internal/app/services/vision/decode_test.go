package vision

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	apperrors "github.com/potipress/insideout/internal/errors"
)

// encodePNG builds a small solid-color image and returns its base64 PNG
// encoding, the shape /process payloads carry.
func encodePNG(t *testing.T, w, h int, c color.RGBA) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestNormalize(t *testing.T) {
	payload := encodePNG(t, 4, 3, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	frame, err := Normalize(payload)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if frame.Width != 4 || frame.Height != 3 {
		t.Fatalf("unexpected dimensions %dx%d", frame.Width, frame.Height)
	}
	if len(frame.Pix) != 4*3*3 {
		t.Fatalf("unexpected buffer length %d", len(frame.Pix))
	}
	// BGR order: blue first.
	if frame.Pix[0] != 50 || frame.Pix[1] != 100 || frame.Pix[2] != 200 {
		t.Fatalf("expected BGR channel order, got %v", frame.Pix[:3])
	}
}

func TestNormalizeDataURL(t *testing.T) {
	payload := "data:image/png;base64," + encodePNG(t, 2, 2, color.RGBA{A: 255})

	if _, err := Normalize(payload); err != nil {
		t.Fatalf("normalize with data URL prefix: %v", err)
	}
}

func TestNormalizeFailures(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"not base64", "!!!not-base64!!!"},
		{"not an image", base64.StdEncoding.EncodeToString([]byte("plain text"))},
		{"truncated png", encodePNG(t, 8, 8, color.RGBA{A: 255})[:20]},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.payload)
			if !apperrors.IsCode(err, apperrors.CodeDecode) {
				t.Fatalf("expected decode failure, got %v", err)
			}
		})
	}
}
