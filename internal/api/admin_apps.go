package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/apps"
	"github.com/porkytheblack/oasis/internal/credentials"
	"github.com/porkytheblack/oasis/internal/httpx"
)

type createAppRequest struct {
	Slug        string  `json:"slug" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
	PublicKey   *string `json:"public_key"`
}

func (h *handlers) createApp(w http.ResponseWriter, r *http.Request) {
	if err := httpx.RequireAdminScope(r.Context()); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	var req createAppRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(h.d.Log, w, apierrors.Wrap(apierrors.KindValidation, "invalid app payload", err))
		return
	}

	a, err := h.d.Apps.Create(r.Context(), apps.CreateInput{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		PublicKey:   req.PublicKey,
	})
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

func (h *handlers) listApps(w http.ResponseWriter, r *http.Request) {
	if err := httpx.RequireAdminScope(r.Context()); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	limit, offset := pageParams(r)
	result, err := h.d.Apps.List(r.Context(), limit, offset)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *handlers) getApp(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	if err := httpx.RequireAppScope(r.Context(), appID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	a, err := h.d.Apps.Get(r.Context(), appID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

type updateAppRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PublicKey   *string `json:"public_key"`
}

func (h *handlers) updateApp(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	if err := httpx.RequireAppScope(r.Context(), appID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	var req updateAppRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	a, err := h.d.Apps.Update(r.Context(), appID, apps.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		PublicKey:   req.PublicKey,
	})
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

func (h *handlers) deleteApp(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	if err := httpx.RequireAppScope(r.Context(), appID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := h.d.Apps.Delete(r.Context(), appID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createKeyRequest struct {
	Name  string  `json:"name" validate:"required"`
	Scope string  `json:"scope" validate:"required,oneof=admin ci"`
	AppID *string `json:"app_id"`
}

// createAdminOrCIKey, listAdminOrCIKeys, and revokeAdminOrCIKey manage
// the global admin/CI credential table itself; they are restricted to
// admin-scoped keys since a CI key has no app-bound slot to compare
// against a global key-management operation (§4.8).
func (h *handlers) createAdminOrCIKey(w http.ResponseWriter, r *http.Request) {
	if err := httpx.RequireAdminScope(r.Context()); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	var req createKeyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(h.d.Log, w, apierrors.Wrap(apierrors.KindValidation, "invalid key payload", err))
		return
	}

	plaintext, rec, err := h.d.Credentials.CreateAdminOrCI(r.Context(), req.Name, credentials.Scope(req.Scope), req.AppID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"key": plaintext, "record": rec})
}

func (h *handlers) listAdminOrCIKeys(w http.ResponseWriter, r *http.Request) {
	if err := httpx.RequireAdminScope(r.Context()); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	var appID *string
	if v := r.URL.Query().Get("app_id"); v != "" {
		appID = &v
	}
	keys, err := h.d.Credentials.ListAdminOrCI(r.Context(), appID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, keys)
}

func (h *handlers) revokeAdminOrCIKey(w http.ResponseWriter, r *http.Request) {
	if err := httpx.RequireAdminScope(r.Context()); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := h.d.Credentials.RevokeAdminOrCI(r.Context(), chi.URLParam(r, "keyID")); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createPublicKeyRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *handlers) createPublicKey(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	if err := httpx.RequireAppScope(r.Context(), appID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	var req createPublicKeyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	a, err := h.d.Apps.Get(r.Context(), appID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	plaintext, rec, err := h.d.Credentials.CreatePublic(r.Context(), appID, a.Slug, req.Name)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"key": plaintext, "record": rec})
}

func (h *handlers) listPublicKeys(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	if err := httpx.RequireAppScope(r.Context(), appID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	keys, err := h.d.Credentials.ListPublic(r.Context(), appID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, keys)
}

func (h *handlers) revokePublicKey(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyID")
	rec, err := h.d.Credentials.GetPublic(r.Context(), keyID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := httpx.RequireAppScope(r.Context(), rec.AppID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := h.d.Credentials.RevokePublic(r.Context(), keyID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pageParams reads the conventional limit/offset pagination query
// params as-is (missing or malformed values become 0); defaulting and
// clamping are left to the store layers.
func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
