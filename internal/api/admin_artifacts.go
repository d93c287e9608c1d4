package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/apps"
	"github.com/porkytheblack/oasis/internal/artifacts"
	"github.com/porkytheblack/oasis/internal/httpx"
	"github.com/porkytheblack/oasis/internal/releases"
)

// releaseContext resolves a release and its owning app together, since
// the object-store key layout is keyed on app slug + release version,
// and enforces §4.8's CI app-scope rule against the owning app.
func (h *handlers) releaseContext(r *http.Request, releaseID string) (releases.Release, apps.App, error) {
	rel, err := h.d.Releases.Get(r.Context(), releaseID)
	if err != nil {
		return releases.Release{}, apps.App{}, err
	}
	if err := httpx.RequireAppScope(r.Context(), rel.AppID); err != nil {
		return releases.Release{}, apps.App{}, err
	}
	a, err := h.d.Apps.Get(r.Context(), rel.AppID)
	if err != nil {
		return releases.Release{}, apps.App{}, err
	}
	return rel, a, nil
}

type presignArtifactRequest struct {
	Platform        string  `json:"platform" validate:"required"`
	Filename        string  `json:"filename" validate:"required"`
	ContentType     string  `json:"content_type"`
	Signature       *string `json:"signature"`
	ReplaceExisting bool    `json:"replace_existing"`
}

func (h *handlers) presignArtifact(w http.ResponseWriter, r *http.Request) {
	releaseID := chi.URLParam(r, "releaseID")
	var req presignArtifactRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(h.d.Log, w, apierrors.Wrap(apierrors.KindValidation, "invalid presign payload", err))
		return
	}

	rel, a, err := h.releaseContext(r, releaseID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	result, err := h.d.Artifacts.PresignArtifact(r.Context(), artifacts.PresignInput{
		ReleaseID:       releaseID,
		AppSlug:         a.Slug,
		ReleaseVersion:  rel.Version,
		Platform:        artifacts.Platform(req.Platform),
		Filename:        req.Filename,
		ContentType:     req.ContentType,
		Signature:       req.Signature,
		ReplaceExisting: req.ReplaceExisting,
	})
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"presigned_url": result.UploadURL,
		"storage_key":   *result.Artifact.StorageKey,
		"artifact_id":   result.Artifact.ID,
		"expires_at":    result.ExpiresAt,
	})
}

type createDirectArtifactRequest struct {
	Platform        string  `json:"platform" validate:"required"`
	DownloadURL     string  `json:"download_url" validate:"required"`
	Signature       *string `json:"signature"`
	ReplaceExisting bool    `json:"replace_existing"`
}

// createDirectArtifact registers an externally-hosted artifact (§4.5
// "Direct creation"), bypassing the presign/confirm protocol entirely.
func (h *handlers) createDirectArtifact(w http.ResponseWriter, r *http.Request) {
	releaseID := chi.URLParam(r, "releaseID")
	var req createDirectArtifactRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(h.d.Log, w, apierrors.Wrap(apierrors.KindValidation, "invalid direct-artifact payload", err))
		return
	}

	if _, _, err := h.releaseContext(r, releaseID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	a, err := h.d.Artifacts.CreateDirect(r.Context(), artifacts.CreateDirectInput{
		ReleaseID:       releaseID,
		Platform:        artifacts.Platform(req.Platform),
		DownloadURL:     req.DownloadURL,
		Signature:       req.Signature,
		ReplaceExisting: req.ReplaceExisting,
	})
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

type confirmArtifactRequest struct {
	Signature *string `json:"signature"`
	Checksum  string  `json:"checksum"`
}

// scopedArtifact resolves an artifact's owning release and enforces
// §4.8's CI app-scope rule before confirm/delete act on it.
func (h *handlers) scopedArtifact(r *http.Request, artifactID string) (artifacts.Artifact, error) {
	a, err := h.d.Artifacts.Get(r.Context(), artifactID)
	if err != nil {
		return artifacts.Artifact{}, err
	}
	if _, _, err := h.releaseContext(r, a.ReleaseID); err != nil {
		return artifacts.Artifact{}, err
	}
	return a, nil
}

func (h *handlers) confirmArtifact(w http.ResponseWriter, r *http.Request) {
	artifactID := chi.URLParam(r, "artifactID")
	if _, err := h.scopedArtifact(r, artifactID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	var req confirmArtifactRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	a, err := h.d.Artifacts.ConfirmArtifact(r.Context(), artifactID, req.Checksum)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"confirmed": true, "artifact": a})
}

func (h *handlers) listArtifacts(w http.ResponseWriter, r *http.Request) {
	releaseID := chi.URLParam(r, "releaseID")
	if _, _, err := h.releaseContext(r, releaseID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	list, err := h.d.Artifacts.ListByRelease(r.Context(), releaseID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *handlers) deleteArtifact(w http.ResponseWriter, r *http.Request) {
	artifactID := chi.URLParam(r, "artifactID")
	if _, err := h.scopedArtifact(r, artifactID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	storageKey, err := h.d.Artifacts.Delete(r.Context(), artifactID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	h.bestEffortDelete(storageKey)
	w.WriteHeader(http.StatusNoContent)
}

// bestEffortDelete removes the backing object without ever surfacing
// a failure to the caller (§7 propagation policy: object deletion is
// best-effort).
func (h *handlers) bestEffortDelete(storageKey *string) {
	if storageKey == nil {
		return
	}
	go func() {
		if err := h.d.Store.Delete(context.Background(), *storageKey); err != nil {
			h.d.Log.Warnw("failed to delete object after row deletion", "storage_key", *storageKey, "error", err)
		}
	}()
}

type presignInstallerRequest struct {
	Platform        string  `json:"platform" validate:"required"`
	Filename        string  `json:"filename" validate:"required"`
	DisplayName     *string `json:"display_name"`
	ContentType     string  `json:"content_type"`
	ReplaceExisting bool    `json:"replace_existing"`
}

func (h *handlers) presignInstaller(w http.ResponseWriter, r *http.Request) {
	releaseID := chi.URLParam(r, "releaseID")
	var req presignInstallerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(h.d.Log, w, apierrors.Wrap(apierrors.KindValidation, "invalid presign payload", err))
		return
	}

	rel, a, err := h.releaseContext(r, releaseID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	result, err := h.d.Installers.Presign(r.Context(), artifacts.PresignInstallerInput{
		ReleaseID:       releaseID,
		AppSlug:         a.Slug,
		ReleaseVersion:  rel.Version,
		Platform:        artifacts.InstallerPlatform(req.Platform),
		Filename:        req.Filename,
		DisplayName:     req.DisplayName,
		ContentType:     req.ContentType,
		ReplaceExisting: req.ReplaceExisting,
	})
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"presigned_url": result.UploadURL,
		"storage_key":   *result.Installer.StorageKey,
		"installer_id":  result.Installer.ID,
		"expires_at":    result.ExpiresAt,
	})
}

type createDirectInstallerRequest struct {
	Platform        string  `json:"platform" validate:"required"`
	Filename        string  `json:"filename" validate:"required"`
	DisplayName     *string `json:"display_name"`
	DownloadURL     string  `json:"download_url" validate:"required"`
	ReplaceExisting bool    `json:"replace_existing"`
}

// createDirectInstaller is the installer counterpart to createDirectArtifact.
func (h *handlers) createDirectInstaller(w http.ResponseWriter, r *http.Request) {
	releaseID := chi.URLParam(r, "releaseID")
	var req createDirectInstallerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(h.d.Log, w, apierrors.Wrap(apierrors.KindValidation, "invalid direct-installer payload", err))
		return
	}

	if _, _, err := h.releaseContext(r, releaseID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	inst, err := h.d.Installers.CreateDirect(r.Context(), artifacts.CreateDirectInstallerInput{
		ReleaseID:       releaseID,
		Platform:        artifacts.InstallerPlatform(req.Platform),
		Filename:        req.Filename,
		DisplayName:     req.DisplayName,
		DownloadURL:     req.DownloadURL,
		ReplaceExisting: req.ReplaceExisting,
	})
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, inst)
}

type confirmInstallerRequest struct {
	Checksum string `json:"checksum"`
}

// scopedInstaller resolves an installer's owning release and enforces
// §4.8's CI app-scope rule before confirm/delete act on it.
func (h *handlers) scopedInstaller(r *http.Request, installerID string) (artifacts.Installer, error) {
	inst, err := h.d.Installers.Get(r.Context(), installerID)
	if err != nil {
		return artifacts.Installer{}, err
	}
	if _, _, err := h.releaseContext(r, inst.ReleaseID); err != nil {
		return artifacts.Installer{}, err
	}
	return inst, nil
}

func (h *handlers) confirmInstaller(w http.ResponseWriter, r *http.Request) {
	installerID := chi.URLParam(r, "installerID")
	if _, err := h.scopedInstaller(r, installerID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	var req confirmInstallerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	inst, err := h.d.Installers.Confirm(r.Context(), installerID, req.Checksum)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"confirmed": true, "installer": inst})
}

func (h *handlers) listInstallers(w http.ResponseWriter, r *http.Request) {
	releaseID := chi.URLParam(r, "releaseID")
	if _, _, err := h.releaseContext(r, releaseID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	list, err := h.d.Installers.ListByRelease(r.Context(), releaseID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *handlers) deleteInstaller(w http.ResponseWriter, r *http.Request) {
	installerID := chi.URLParam(r, "installerID")
	if _, err := h.scopedInstaller(r, installerID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	storageKey, err := h.d.Installers.Delete(r.Context(), installerID)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	h.bestEffortDelete(storageKey)
	w.WriteHeader(http.StatusNoContent)
}
