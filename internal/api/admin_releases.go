package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/httpx"
	"github.com/porkytheblack/oasis/internal/releases"
)

type createReleaseRequest struct {
	Version string  `json:"version" validate:"required"`
	Notes   *string `json:"notes"`
}

func (h *handlers) createRelease(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	if err := httpx.RequireAppScope(r.Context(), appID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	var req createReleaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(h.d.Log, w, apierrors.Wrap(apierrors.KindValidation, "invalid release payload", err))
		return
	}

	rel, err := h.d.Releases.Create(r.Context(), releases.CreateInput{AppID: appID, Version: req.Version, Notes: req.Notes})
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, rel)
}

func (h *handlers) listReleases(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	if err := httpx.RequireAppScope(r.Context(), appID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	limit, offset := pageParams(r)

	var status *releases.Status
	if v := r.URL.Query().Get("status"); v != "" {
		s := releases.Status(v)
		status = &s
	}

	result, err := h.d.Releases.List(r.Context(), appID, status, limit, offset)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// scopedRelease fetches a release and enforces §4.8's CI app-scope
// rule against its owning app before the caller mutates it.
func (h *handlers) scopedRelease(r *http.Request, releaseID string) (releases.Release, error) {
	rel, err := h.d.Releases.Get(r.Context(), releaseID)
	if err != nil {
		return releases.Release{}, err
	}
	if err := httpx.RequireAppScope(r.Context(), rel.AppID); err != nil {
		return releases.Release{}, err
	}
	return rel, nil
}

func (h *handlers) getRelease(w http.ResponseWriter, r *http.Request) {
	rel, err := h.scopedRelease(r, chi.URLParam(r, "releaseID"))
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rel)
}

type updateReleaseRequest struct {
	Notes *string `json:"notes"`
}

func (h *handlers) updateReleaseNotes(w http.ResponseWriter, r *http.Request) {
	releaseID := chi.URLParam(r, "releaseID")
	if _, err := h.scopedRelease(r, releaseID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	var req updateReleaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	rel, err := h.d.Releases.UpdateNotes(r.Context(), releaseID, req.Notes)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rel)
}

func (h *handlers) publishRelease(w http.ResponseWriter, r *http.Request) {
	releaseID := chi.URLParam(r, "releaseID")
	if _, err := h.scopedRelease(r, releaseID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	rel, err := h.d.Releases.Publish(r.Context(), releaseID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rel)
}

func (h *handlers) archiveRelease(w http.ResponseWriter, r *http.Request) {
	releaseID := chi.URLParam(r, "releaseID")
	if _, err := h.scopedRelease(r, releaseID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	rel, err := h.d.Releases.Archive(r.Context(), releaseID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rel)
}

func (h *handlers) deleteRelease(w http.ResponseWriter, r *http.Request) {
	releaseID := chi.URLParam(r, "releaseID")
	if _, err := h.scopedRelease(r, releaseID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := h.d.Releases.Delete(r.Context(), releaseID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
