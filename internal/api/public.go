package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/httpx"
	"github.com/porkytheblack/oasis/internal/metrics"
)

type manifestResponse struct {
	Version   string  `json:"version"`
	URL       string  `json:"url"`
	Notes     *string `json:"notes,omitempty"`
	PubDate   *string `json:"pub_date,omitempty"`
	Signature *string `json:"signature,omitempty"`
}

// resolveUpdate serves GET /<slug>/update/<target>/<current_version> (§6).
func (h *handlers) resolveUpdate(w http.ResponseWriter, r *http.Request) {
	h.doResolveUpdate(w, r, chi.URLParam(r, "target"), chi.URLParam(r, "currentVersion"))
}

// resolveUpdateOSArch serves the alternate <os>/<arch> route form (§6),
// joining the two segments into the os-arch target the resolver expects.
func (h *handlers) resolveUpdateOSArch(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "osName") + "-" + chi.URLParam(r, "arch")
	h.doResolveUpdate(w, r, target, chi.URLParam(r, "currentVersion"))
}

func (h *handlers) doResolveUpdate(w http.ResponseWriter, r *http.Request, target, currentVersion string) {
	slug := chi.URLParam(r, "slug")

	manifest, err := h.d.Resolver.Resolve(r.Context(), slug, target, currentVersion)
	if err != nil {
		if apierrors.Is(err, apierrors.KindNotFound) {
			metrics.RecordUpdateCheck("not_found")
		} else {
			metrics.RecordUpdateCheck("error")
		}
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	if manifest == nil {
		metrics.RecordUpdateCheck("no_update")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	metrics.RecordUpdateCheck("served")
	resp := manifestResponse{Version: manifest.Version, URL: manifest.URL, Notes: manifest.Notes, Signature: manifest.Signature}
	if manifest.PubDate != nil {
		s := manifest.PubDate.Format(httpx.RFC3339)
		resp.PubDate = &s
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type installerDescriptorResponse struct {
	ID           string  `json:"id"`
	Platform     string  `json:"platform"`
	Filename     string  `json:"filename"`
	DisplayName  *string `json:"display_name,omitempty"`
	DownloadURL  string  `json:"download_url"`
	FileSize     *int64  `json:"file_size,omitempty"`
	Version      string  `json:"version"`
	ReleaseNotes *string `json:"release_notes,omitempty"`
	PublishedAt  *string `json:"published_at,omitempty"`
}

// downloadInstaller serves GET /<slug>/download/<platform>[/<version>] (§6).
func (h *handlers) downloadInstaller(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	platform := chi.URLParam(r, "platform")
	version := chi.URLParam(r, "version")

	desc, err := h.d.Resolver.ResolveInstaller(r.Context(), slug, platform, version)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	if r.URL.Query().Get("format") != "json" {
		http.Redirect(w, r, desc.DownloadURL, http.StatusFound)
		return
	}

	resp := installerDescriptorResponse{
		ID: desc.ID, Platform: desc.Platform, Filename: desc.Filename, DisplayName: desc.DisplayName,
		DownloadURL: desc.DownloadURL, FileSize: desc.FileSize, Version: desc.Version, ReleaseNotes: desc.ReleaseNotes,
	}
	if desc.PublishedAt != nil {
		s := desc.PublishedAt.Format(httpx.RFC3339)
		resp.PublishedAt = &s
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
