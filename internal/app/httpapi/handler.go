// Package httpapi exposes the emotion-response pipeline and the color
// override catalogue over HTTP.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/potipress/insideout/internal/app/services/assistant"
	"github.com/potipress/insideout/internal/app/services/auditlog"
	"github.com/potipress/insideout/internal/app/services/palette"
	"github.com/potipress/insideout/internal/app/services/quota"
	apperrors "github.com/potipress/insideout/internal/errors"
	"github.com/potipress/insideout/internal/httputil"
	"github.com/potipress/insideout/pkg/logger"
)

// Handler holds the services behind the HTTP surface.
type Handler struct {
	assistant *assistant.Service
	palette   *palette.Service
	quota     *quota.Service
	audit     *auditlog.Recorder
	log       *logger.Logger
}

// NewHandler creates the API handler. The audit recorder may be nil, in
// which case calls are served without an audit trail.
func NewHandler(a *assistant.Service, p *palette.Service, q *quota.Service, rec *auditlog.Recorder, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{assistant: a, palette: p, quota: q, audit: rec, log: log}
}

type processRequest struct {
	UserID string `json:"user_id"`
	Image  string `json:"image"`
}

type processResponse struct {
	Response   string `json:"response"`
	Color      string `json:"color"`
	APICount   int    `json:"api_count"`
	MaxReached bool   `json:"max_reached"`
}

type apiCountResponse struct {
	APICount int `json:"api_count"`
}

type overrideRequest struct {
	UserID  string `json:"user_id"`
	Emotion string `json:"emotion"`
	RGB     string `json:"rgb"`
}

type overrideUpdateRequest struct {
	UserID string `json:"user_id"`
	RGB    string `json:"rgb"`
}

type overrideResponse struct {
	Emotion string `json:"emotion"`
	RGB     string `json:"rgb"`
}

// handleProcess runs the full photo pipeline: quota accounting, decode,
// classification, color resolution and response synthesis.
func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, "", apperrors.Validation("Invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		h.writeError(w, r, "", apperrors.Validation("User ID not provided."))
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		h.writeError(w, r, req.UserID, apperrors.Validation("Image not provided."))
		return
	}

	reply, err := h.assistant.Process(r.Context(), req.UserID, req.Image)
	if err != nil {
		h.writeError(w, r, req.UserID, err)
		return
	}

	h.writeJSON(w, r, req.UserID, http.StatusOK, processResponse{
		Response:   reply.Response,
		Color:      reply.Color,
		APICount:   reply.APICount,
		MaxReached: reply.MaxReached,
	})
}

// handleAPICount reports a user's accounted call total without incrementing.
func (h *Handler) handleAPICount(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		h.writeError(w, r, "", apperrors.Validation("User ID not provided."))
		return
	}

	count, err := h.quota.Count(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, userID, err)
		return
	}

	h.writeJSON(w, r, userID, http.StatusOK, apiCountResponse{APICount: count})
}

func (h *Handler) handleCreateOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, "", apperrors.Validation("Invalid JSON body"))
		return
	}

	ov, err := h.palette.CreateOverride(r.Context(), req.UserID, req.Emotion, req.RGB)
	if err != nil {
		h.writeError(w, r, req.UserID, err)
		return
	}

	h.writeJSON(w, r, req.UserID, http.StatusCreated, overrideResponse{
		Emotion: string(ov.Emotion),
		RGB:     ov.RGB,
	})
}

func (h *Handler) handleGetOverride(w http.ResponseWriter, r *http.Request) {
	label := mux.Vars(r)["emotion"]
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))

	ov, err := h.palette.GetOverride(r.Context(), userID, label)
	if err != nil {
		h.writeError(w, r, userID, err)
		return
	}

	h.writeJSON(w, r, userID, http.StatusOK, overrideResponse{
		Emotion: string(ov.Emotion),
		RGB:     ov.RGB,
	})
}

func (h *Handler) handleUpdateOverride(w http.ResponseWriter, r *http.Request) {
	label := mux.Vars(r)["emotion"]

	var req overrideUpdateRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, "", apperrors.Validation("Invalid JSON body"))
		return
	}

	ov, err := h.palette.UpdateOverride(r.Context(), req.UserID, label, req.RGB)
	if err != nil {
		h.writeError(w, r, req.UserID, err)
		return
	}

	h.writeJSON(w, r, req.UserID, http.StatusOK, overrideResponse{
		Emotion: string(ov.Emotion),
		RGB:     ov.RGB,
	})
}

func (h *Handler) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	label := mux.Vars(r)["emotion"]
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))

	if err := h.palette.DeleteOverride(r.Context(), userID, label); err != nil {
		h.writeError(w, r, userID, err)
		return
	}

	h.recordAudit(r, userID, http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes the response and appends the audit record for the call.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, userID string, status int, payload interface{}) {
	h.recordAudit(r, userID, status)
	httputil.WriteJSON(w, status, payload)
}

// writeError maps a service error to its HTTP shape and audits the outcome.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, userID string, err error) {
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil {
		svcErr = apperrors.Internal("Internal server error", err)
	}
	if svcErr.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithError(err).WithFields(map[string]interface{}{
			"path":   r.URL.Path,
			"method": r.Method,
		}).Error("request failed")
	}

	h.recordAudit(r, userID, svcErr.HTTPStatus)
	httputil.WriteErrorResponse(w, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
}

func (h *Handler) recordAudit(r *http.Request, userID string, status int) {
	if h.audit == nil {
		return
	}
	h.audit.Record(userID, r.Method, r.URL.Path, status)
}
