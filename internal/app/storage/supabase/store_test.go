package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/potipress/insideout/internal/app/domain/audit"
	"github.com/potipress/insideout/internal/app/domain/emotion"
	"github.com/potipress/insideout/internal/database"
	apperrors "github.com/potipress/insideout/internal/errors"
)

func newTestStore(t *testing.T, handler http.Handler) *Store {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := database.NewClient(database.Config{URL: srv.URL, ServiceKey: "test-key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return New(client)
}

func TestCreateOverrideConflict(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/emotions" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505"}`))
	}))

	_, err := store.CreateOverride(context.Background(), emotion.Override{UserID: "u1", Emotion: emotion.Happy, RGB: "#00FF00"})
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestGetOverride(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_id"); got != "eq.u1" {
			t.Errorf("unexpected user filter %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]string{
			{"user_id": "u1", "emotion": "happy", "rgb": "#00FF00"},
		})
	}))

	ov, err := store.GetOverride(context.Background(), "u1", emotion.Happy)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ov.RGB != "#00FF00" || ov.Emotion != emotion.Happy {
		t.Fatalf("unexpected override %+v", ov)
	}
}

func TestGetOverrideNotFound(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))

	_, err := store.GetOverride(context.Background(), "u1", emotion.Sad)
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIncrementQuotaRPC(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/rpc/increment_api_count" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["p_user_id"] != "u1" {
			t.Errorf("unexpected payload %v", payload)
		}
		w.Write([]byte(`7`))
	}))

	count, err := store.IncrementQuota(context.Background(), "u1")
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7, got %d", count)
	}
}

func TestAppendAudit(t *testing.T) {
	var got map[string]interface{}
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/api_calls" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[]`))
	}))

	err := store.AppendAudit(context.Background(), audit.Record{
		HTTPMethod: "POST",
		Endpoint:   "/v1/process",
		StatusCode: 200,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if got["endpoint"] != "/v1/process" || got["status_code"] != float64(200) {
		t.Fatalf("unexpected row %v", got)
	}
	if _, present := got["user_id"]; present {
		t.Fatalf("expected user_id omitted for anonymous record")
	}
}
