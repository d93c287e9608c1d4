// Package httpx holds the API edge's shared concerns: JSON response
// helpers, the single error-to-HTTP translator, and the auth
// middleware. WriteJSON/WriteError mirror the teacher's
// telemetry/state-ingest/pkg/server/handler.go Handler.writeJSON.
package httpx

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/porkytheblack/oasis/internal/apierrors"
)

// RFC3339 is the wire format for all timestamp fields in JSON responses.
const RFC3339 = "2006-01-02T15:04:05Z07:00"

// ErrorResponse is the wire shape for every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError is the single edge translator from §7's propagation
// policy: service functions raise typed *apierrors.Error, and this is
// the only place that maps Kind to an HTTP status and body.
func WriteError(log *zap.SugaredLogger, w http.ResponseWriter, err error) {
	apiErr, ok := apierrors.As(err)
	if !ok {
		log.Errorw("unmapped error reached the API edge", "error", err)
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	status := apierrors.HTTPStatus(apiErr.Kind)
	if status >= 500 {
		log.Errorw("request failed", "kind", apiErr.Kind, "message", apiErr.Message, "cause", apiErr.Cause)
	}
	WriteJSON(w, status, ErrorResponse{Error: apiErr.Message, Kind: string(apiErr.Kind)})
}

// DecodeJSON decodes the request body into v, mapping decode failures
// to a validation error.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierrors.Wrap(apierrors.KindValidation, "malformed request body", err)
	}
	return nil
}
