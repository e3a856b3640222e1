package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	quotadomain "github.com/potipress/insideout/internal/app/domain/quota"
	"github.com/potipress/insideout/internal/app/services/assistant"
	"github.com/potipress/insideout/internal/app/services/auditlog"
	"github.com/potipress/insideout/internal/app/services/palette"
	"github.com/potipress/insideout/internal/app/services/quota"
	"github.com/potipress/insideout/internal/app/services/respond"
	"github.com/potipress/insideout/internal/app/services/vision"
	"github.com/potipress/insideout/internal/app/storage/memory"
	"github.com/potipress/insideout/internal/middleware"
)

type fixture struct {
	store   *memory.Store
	handler http.Handler
}

func newFixture(t *testing.T, label string, authSecret string) *fixture {
	t.Helper()
	store := memory.New()

	classify := vision.ClassifierFunc(func(_ context.Context, _ vision.Frame) (vision.Observation, error) {
		return vision.Observation{DominantEmotion: label, Confidence: 0.9}, nil
	})
	gen := respond.GeneratorFunc(func(_ context.Context, _ string) (string, error) {
		return "Keep going.", nil
	})

	paletteSvc := palette.New(store, nil)
	quotaSvc := quota.New(store, nil)
	pipeline := assistant.New(
		vision.NewAdapter(classify, nil),
		paletteSvc,
		respond.NewSynthesizer(gen, nil),
		quotaSvc,
		nil,
		nil,
	)
	h := NewHandler(pipeline, paletteSvc, quotaSvc, auditlog.New(store, nil), nil)
	router := NewRouter(h, nil, nil, RouterConfig{AuthSecret: authSecret})

	return &fixture{store: store, handler: router}
}

func pngPayload(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 10, G: 200, B: 30, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func (f *fixture) assertAudited(t *testing.T, wantCount int, wantLastStatus int) {
	t.Helper()
	records := f.store.AuditRecords()
	if len(records) != wantCount {
		t.Fatalf("audit records = %d, want %d", len(records), wantCount)
	}
	if wantCount > 0 {
		last := records[len(records)-1]
		if last.StatusCode != wantLastStatus {
			t.Fatalf("last audit status = %d, want %d", last.StatusCode, wantLastStatus)
		}
	}
}

func TestProcessHappyFace(t *testing.T) {
	f := newFixture(t, "happy", "")

	rec := f.do(t, http.MethodPost, "/process", map[string]string{
		"user_id": "u1", "image": pngPayload(t),
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp processResponse
	decodeBody(t, rec, &resp)
	if resp.Color != "Green" {
		t.Fatalf("color = %q, want Green", resp.Color)
	}
	if resp.APICount != 1 || resp.MaxReached {
		t.Fatalf("usage = %d/%v, want 1/false", resp.APICount, resp.MaxReached)
	}
	want := "I detect that you are feeling Happy. The color code associated with this emotion is Green. Keep going."
	if resp.Response != want {
		t.Fatalf("response = %q, want %q", resp.Response, want)
	}
	f.assertAudited(t, 1, http.StatusOK)
}

func TestProcessMissingFields(t *testing.T) {
	f := newFixture(t, "happy", "")

	rec := f.do(t, http.MethodPost, "/process", map[string]string{"image": pngPayload(t)}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing user_id", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/process", map[string]string{"user_id": "u1"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing image", rec.Code)
	}

	// Both failures must land in the audit trail.
	f.assertAudited(t, 2, http.StatusBadRequest)

	// Validation failures never touch the quota counter.
	countRec := f.do(t, http.MethodGet, "/api_count?user_id=u1", nil, nil)
	var count apiCountResponse
	decodeBody(t, countRec, &count)
	if count.APICount != 0 {
		t.Fatalf("api count = %d, want 0 after rejected requests", count.APICount)
	}
}

func TestProcessMalformedImageStillAccounted(t *testing.T) {
	f := newFixture(t, "happy", "")

	rec := f.do(t, http.MethodPost, "/process", map[string]string{
		"user_id": "u1", "image": "@@not-base64@@",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 degraded response", rec.Code)
	}

	var resp processResponse
	decodeBody(t, rec, &resp)
	if resp.Response != vision.DecodeFailureMessage {
		t.Fatalf("response = %q, want %q", resp.Response, vision.DecodeFailureMessage)
	}
	if resp.Color != "Unknown" {
		t.Fatalf("color = %q, want Unknown", resp.Color)
	}
	if resp.APICount != 1 {
		t.Fatalf("api count = %d, want 1 (failed decode still accounted)", resp.APICount)
	}
	f.assertAudited(t, 1, http.StatusOK)
}

func TestProcessQuotaThreshold(t *testing.T) {
	f := newFixture(t, "happy", "")
	payload := pngPayload(t)

	var resp processResponse
	for i := 1; i <= 21; i++ {
		rec := f.do(t, http.MethodPost, "/process", map[string]string{
			"user_id": "u1", "image": payload,
		}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: status = %d", i, rec.Code)
		}
		decodeBody(t, rec, &resp)
	}
	if resp.APICount != 21 || !resp.MaxReached {
		t.Fatalf("21st call usage = %d/%v, want 21/true", resp.APICount, resp.MaxReached)
	}
}

func TestAPICountUnknownUser(t *testing.T) {
	f := newFixture(t, "happy", "")

	rec := f.do(t, http.MethodGet, "/api_count?user_id=nobody", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp apiCountResponse
	decodeBody(t, rec, &resp)
	if resp.APICount != 0 {
		t.Fatalf("api count = %d, want 0", resp.APICount)
	}

	rec = f.do(t, http.MethodGet, "/api_count", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without user_id", rec.Code)
	}
}

func TestOverrideTakesPrecedence(t *testing.T) {
	f := newFixture(t, "happy", "")

	rec := f.do(t, http.MethodPost, "/v1/emotions", map[string]string{
		"user_id": "u1", "emotion": "happy", "rgb": "#00FF00",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}

	procRec := f.do(t, http.MethodPost, "/process", map[string]string{
		"user_id": "u1", "image": pngPayload(t),
	}, nil)
	var resp processResponse
	decodeBody(t, procRec, &resp)
	if resp.Color != "#00FF00" {
		t.Fatalf("color = %q, want #00FF00", resp.Color)
	}
}

func TestOverrideLifecycle(t *testing.T) {
	f := newFixture(t, "happy", "")

	// Duplicate create conflicts.
	body := map[string]string{"user_id": "u1", "emotion": "sad", "rgb": "#111111"}
	if rec := f.do(t, http.MethodPost, "/v1/emotions", body, nil); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/v1/emotions", body, nil); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", rec.Code)
	}

	// Read it back.
	rec := f.do(t, http.MethodGet, "/v1/emotions/sad?user_id=u1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var ov overrideResponse
	decodeBody(t, rec, &ov)
	if ov.Emotion != "sad" || ov.RGB != "#111111" {
		t.Fatalf("override = %+v", ov)
	}

	// Update.
	rec = f.do(t, http.MethodPatch, "/v1/emotions/sad", map[string]string{
		"user_id": "u1", "rgb": "#222222",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &ov)
	if ov.RGB != "#222222" {
		t.Fatalf("updated rgb = %q", ov.RGB)
	}

	// Delete, then reads miss.
	if rec := f.do(t, http.MethodDelete, "/v1/emotions/sad?user_id=u1", nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/emotions/sad?user_id=u1", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/v1/emotions/sad?user_id=u1", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestOverrideValidation(t *testing.T) {
	f := newFixture(t, "happy", "")

	cases := []map[string]string{
		{"emotion": "happy", "rgb": "#00FF00"},
		{"user_id": "u1", "rgb": "#00FF00"},
		{"user_id": "u1", "emotion": "happy"},
		{"user_id": "u1", "emotion": "ecstatic", "rgb": "#00FF00"},
	}
	for i, body := range cases {
		if rec := f.do(t, http.MethodPost, "/v1/emotions", body, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("case %d: status = %d, want 400", i, rec.Code)
		}
	}
}

func TestEveryOutcomeAudited(t *testing.T) {
	f := newFixture(t, "happy", "")

	f.do(t, http.MethodPost, "/process", map[string]string{"user_id": "u1", "image": pngPayload(t)}, nil) // 200
	f.do(t, http.MethodPost, "/process", map[string]string{"user_id": "u1"}, nil)                         // 400
	f.do(t, http.MethodGet, "/v1/emotions/sad?user_id=u1", nil, nil)                                      // 404
	body := map[string]string{"user_id": "u1", "emotion": "sad", "rgb": "#111111"}
	f.do(t, http.MethodPost, "/v1/emotions", body, nil) // 201
	f.do(t, http.MethodPost, "/v1/emotions", body, nil) // 409

	records := f.store.AuditRecords()
	want := []int{200, 400, 404, 201, 409}
	if len(records) != len(want) {
		t.Fatalf("audit records = %d, want %d", len(records), len(want))
	}
	for i, status := range want {
		if records[i].StatusCode != status {
			t.Fatalf("record %d status = %d, want %d", i, records[i].StatusCode, status)
		}
	}
}

func TestV1RequiresAuthWhenConfigured(t *testing.T) {
	f := newFixture(t, "happy", "shh-secret")

	rec := f.do(t, http.MethodPost, "/v1/process", map[string]string{
		"user_id": "u1", "image": pngPayload(t),
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without token", rec.Code)
	}

	// Legacy surface stays open.
	rec = f.do(t, http.MethodPost, "/process", map[string]string{
		"user_id": "u1", "image": pngPayload(t),
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("legacy status = %d, want 200", rec.Code)
	}

	token := signToken(t, "shh-secret", "u1")
	rec = f.do(t, http.MethodPost, "/v1/process", map[string]string{
		"user_id": "u1", "image": pngPayload(t),
	}, map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d with token: %s", rec.Code, rec.Body.String())
	}
}

func signToken(t *testing.T, secret, userID string) string {
	t.Helper()
	now := time.Now()
	claims := middleware.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, "happy", "")
	rec := f.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProcessUnknownLabel(t *testing.T) {
	f := newFixture(t, "perplexed", "")

	rec := f.do(t, http.MethodPost, "/process", map[string]string{
		"user_id": "u1", "image": pngPayload(t),
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp processResponse
	decodeBody(t, rec, &resp)
	if resp.Response != respond.UnableToDetectMessage {
		t.Fatalf("response = %q, want %q", resp.Response, respond.UnableToDetectMessage)
	}
	if resp.Color != "Unknown" {
		t.Fatalf("color = %q, want Unknown", resp.Color)
	}
}

func TestProcessPersistenceFailure(t *testing.T) {
	store := memory.New()
	paletteSvc := palette.New(store, nil)
	quotaSvc := quota.New(failingQuota{}, nil)
	pipeline := assistant.New(
		vision.NewAdapter(nil, nil),
		paletteSvc,
		respond.NewSynthesizer(nil, nil),
		quotaSvc,
		nil,
		nil,
	)
	h := NewHandler(pipeline, paletteSvc, quotaSvc, auditlog.New(store, nil), nil)
	f := &fixture{store: store, handler: NewRouter(h, nil, nil, RouterConfig{})}

	rec := f.do(t, http.MethodPost, "/process", map[string]string{
		"user_id": "u1", "image": pngPayload(t),
	}, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error == "" {
		t.Fatal("500 body missing error message")
	}
	f.assertAudited(t, 1, http.StatusInternalServerError)
}

type failingQuota struct{}

func (failingQuota) IncrementQuota(context.Context, string) (int, error) {
	return 0, fmt.Errorf("store down")
}

func (failingQuota) GetQuota(context.Context, string) (quotadomain.Record, error) {
	return quotadomain.Record{}, fmt.Errorf("store down")
}
