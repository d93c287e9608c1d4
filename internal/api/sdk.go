package api

import (
	"net/http"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/crash"
	"github.com/porkytheblack/oasis/internal/httpx"
	"github.com/porkytheblack/oasis/internal/metrics"
)

type submitFeedbackRequest struct {
	Message    string  `json:"message" validate:"required"`
	Email      *string `json:"email"`
	Rating     *int16  `json:"rating"`
	AppVersion *string `json:"app_version"`
	Platform   *string `json:"platform"`
}

// submitFeedback serves POST /sdk/<slug>/feedback (§6). Authority comes
// from the X-API-Key's bound app_id, never the URL slug (§4.8).
func (h *handlers) submitFeedback(w http.ResponseWriter, r *http.Request) {
	authed, ok := httpx.AuthedPublicKeyFromContext(r.Context())
	if !ok {
		httpx.WriteError(h.d.Log, w, apierrors.New(apierrors.KindUnauthorized, "missing authenticated key"))
		return
	}

	var req submitFeedbackRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	f, err := h.d.Crash.SubmitFeedback(r.Context(), authed.AppID, authed.KeyID, crash.FeedbackInput{
		Message: req.Message, Email: req.Email, Rating: req.Rating, AppVersion: req.AppVersion, Platform: req.Platform,
	})
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, f)
}

type crashFrameRequest struct {
	Function *string `json:"function"`
	File     *string `json:"file"`
	Line     *int    `json:"line"`
	IsNative bool    `json:"is_native"`
}

type submitCrashRequest struct {
	ErrorType    string              `json:"error_type" validate:"required"`
	ErrorMessage string              `json:"error_message" validate:"required"`
	StackTrace   []crashFrameRequest `json:"stack_trace"`
	AppVersion   string              `json:"app_version" validate:"required"`
	Platform     string              `json:"platform" validate:"required"`
	OSVersion    *string             `json:"os_version"`
	DeviceInfo   map[string]any      `json:"device_info"`
	AppState     map[string]any      `json:"app_state"`
	Breadcrumbs  []map[string]any    `json:"breadcrumbs"`
	UserID       *string             `json:"user_id"`
	Severity     string              `json:"severity"`
}

// submitCrash serves POST /sdk/<slug>/crashes (§6, §4.7).
func (h *handlers) submitCrash(w http.ResponseWriter, r *http.Request) {
	authed, ok := httpx.AuthedPublicKeyFromContext(r.Context())
	if !ok {
		httpx.WriteError(h.d.Log, w, apierrors.New(apierrors.KindUnauthorized, "missing authenticated key"))
		return
	}

	var req submitCrashRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(h.d.Log, w, apierrors.Wrap(apierrors.KindValidation, "invalid crash payload", err))
		return
	}

	severity := crash.Severity(req.Severity)
	if severity == "" {
		severity = crash.SeverityError
	}

	frames := make([]crash.Frame, len(req.StackTrace))
	for i, f := range req.StackTrace {
		frames[i] = crash.Frame{Function: f.Function, File: f.File, Line: f.Line, IsNative: f.IsNative}
	}

	report, group, err := h.d.Crash.Ingest(r.Context(), authed.AppID, authed.KeyID, crash.Event{
		ErrorType:    req.ErrorType,
		ErrorMessage: req.ErrorMessage,
		StackTrace:   frames,
		AppVersion:   req.AppVersion,
		Platform:     req.Platform,
		OSVersion:    req.OSVersion,
		DeviceInfo:   req.DeviceInfo,
		AppState:     req.AppState,
		Breadcrumbs:  req.Breadcrumbs,
		UserID:       req.UserID,
		Severity:     severity,
	})
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	metrics.RecordCrashIngest(group.OccurrenceCount == 1)
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"report": report, "group_id": group.ID, "fingerprint": group.Fingerprint})
}

