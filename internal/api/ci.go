// Handlers for the CI one-shot release surface (§6 "CI one-shot
// release"). Unlike the admin presign/confirm dance, this endpoint
// links objects the CI pipeline already uploaded directly, HEAD-ing
// each to populate size before marking it confirmed.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/artifacts"
	"github.com/porkytheblack/oasis/internal/httpx"
	"github.com/porkytheblack/oasis/internal/releases"
)

type ciArtifactSpec struct {
	Platform  string  `json:"platform" validate:"required"`
	Signature *string `json:"signature"`
	R2Key     string  `json:"r2_key" validate:"required"`
}

type ciInstallerSpec struct {
	Platform    string  `json:"platform" validate:"required"`
	Filename    string  `json:"filename" validate:"required"`
	DisplayName *string `json:"display_name"`
	R2Key       string  `json:"r2_key" validate:"required"`
}

type ciCreateReleaseRequest struct {
	Version     string            `json:"version" validate:"required"`
	Notes       *string           `json:"notes"`
	Artifacts   []ciArtifactSpec  `json:"artifacts" validate:"required,min=1,dive"`
	Installers  []ciInstallerSpec `json:"installers" validate:"dive"`
	AutoPublish bool              `json:"auto_publish"`
}

func (h *handlers) ciCreateRelease(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	a, err := h.d.Apps.GetBySlug(r.Context(), slug)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := httpx.RequireAppScope(r.Context(), a.ID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	var req ciCreateReleaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(h.d.Log, w, apierrors.Wrap(apierrors.KindValidation, "invalid ci release payload", err))
		return
	}

	rel, err := h.d.Releases.Create(r.Context(), releases.CreateInput{AppID: a.ID, Version: req.Version, Notes: req.Notes})
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	for _, spec := range req.Artifacts {
		if err := h.linkCIArtifact(r, rel, spec); err != nil {
			httpx.WriteError(h.d.Log, w, err)
			return
		}
	}
	for _, spec := range req.Installers {
		if err := h.linkCIInstaller(r, rel, spec); err != nil {
			httpx.WriteError(h.d.Log, w, err)
			return
		}
	}

	if req.AutoPublish {
		rel, err = h.d.Releases.Publish(r.Context(), rel.ID)
		if err != nil {
			httpx.WriteError(h.d.Log, w, err)
			return
		}
	}

	httpx.WriteJSON(w, http.StatusCreated, rel)
}

// linkCIArtifact registers an object the CI pipeline already PUT
// directly to spec.R2Key, skipping the presign/client-PUT round trip
// entirely since the object exists out-of-band.
func (h *handlers) linkCIArtifact(r *http.Request, rel releases.Release, spec ciArtifactSpec) error {
	if !artifacts.ValidPlatform(artifacts.Platform(spec.Platform)) {
		return apierrors.Validationf("unsupported platform %q", spec.Platform)
	}
	_, err := h.d.Artifacts.LinkExisting(r.Context(), rel.ID, artifacts.Platform(spec.Platform), spec.R2Key, spec.Signature, "")
	return err
}

func (h *handlers) linkCIInstaller(r *http.Request, rel releases.Release, spec ciInstallerSpec) error {
	if !artifacts.ValidInstallerPlatform(artifacts.InstallerPlatform(spec.Platform)) {
		return apierrors.Validationf("unsupported installer platform %q", spec.Platform)
	}
	_, err := h.d.Installers.LinkExisting(r.Context(), rel.ID, artifacts.InstallerPlatform(spec.Platform), spec.Filename, spec.DisplayName, spec.R2Key, "")
	return err
}
