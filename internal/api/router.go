// Package api wires the admin, CI, SDK, and public HTTP surfaces
// (§4.8-4.10) on top of chi. The middleware stack (logger, recoverer,
// metrics, CORS) and route-registration style follow the teacher's
// lake/api/main.go almost verbatim.
package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/porkytheblack/oasis/internal/apps"
	"github.com/porkytheblack/oasis/internal/artifacts"
	"github.com/porkytheblack/oasis/internal/crash"
	"github.com/porkytheblack/oasis/internal/credentials"
	"github.com/porkytheblack/oasis/internal/httpx"
	"github.com/porkytheblack/oasis/internal/metrics"
	"github.com/porkytheblack/oasis/internal/objectstore"
	"github.com/porkytheblack/oasis/internal/releases"
	"github.com/porkytheblack/oasis/internal/updater"
)

// Deps bundles every package the API surfaces depend on.
type Deps struct {
	Log         *zap.SugaredLogger
	Apps        *apps.Store
	Releases    *releases.Store
	Artifacts   *artifacts.Store
	Installers  *artifacts.InstallerStore
	Credentials *credentials.Store
	Crash       *crash.Store
	Resolver    *updater.Resolver
	Store       objectstore.Store
}

// NewRouter builds the full chi router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	corsOrigins := []string{"*"}
	if origins := os.Getenv("OASIS_CORS_ORIGINS"); origins != "" {
		corsOrigins = strings.Split(origins, ",")
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-API-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	h := &handlers{d: d}

	r.Route("/admin", func(r chi.Router) {
		r.Use(httpx.AdminAuth(d.Credentials, d.Log))

		r.Post("/apps", h.createApp)
		r.Get("/apps", h.listApps)
		r.Get("/apps/{appID}", h.getApp)
		r.Patch("/apps/{appID}", h.updateApp)
		r.Delete("/apps/{appID}", h.deleteApp)

		r.Post("/keys", h.createAdminOrCIKey)
		r.Get("/keys", h.listAdminOrCIKeys)
		r.Delete("/keys/{keyID}", h.revokeAdminOrCIKey)

		r.Post("/apps/{appID}/public-keys", h.createPublicKey)
		r.Get("/apps/{appID}/public-keys", h.listPublicKeys)
		r.Delete("/public-keys/{keyID}", h.revokePublicKey)

		r.Post("/apps/{appID}/releases", h.createRelease)
		r.Get("/apps/{appID}/releases", h.listReleases)
		r.Get("/releases/{releaseID}", h.getRelease)
		r.Patch("/releases/{releaseID}", h.updateReleaseNotes)
		r.Post("/releases/{releaseID}/publish", h.publishRelease)
		r.Post("/releases/{releaseID}/archive", h.archiveRelease)
		r.Delete("/releases/{releaseID}", h.deleteRelease)

		r.Post("/releases/{releaseID}/artifacts/presign", h.presignArtifact)
		r.Post("/releases/{releaseID}/artifacts/direct", h.createDirectArtifact)
		r.Post("/artifacts/{artifactID}/confirm", h.confirmArtifact)
		r.Get("/releases/{releaseID}/artifacts", h.listArtifacts)
		r.Delete("/artifacts/{artifactID}", h.deleteArtifact)

		r.Post("/releases/{releaseID}/installers/presign", h.presignInstaller)
		r.Post("/releases/{releaseID}/installers/direct", h.createDirectInstaller)
		r.Post("/installers/{installerID}/confirm", h.confirmInstaller)
		r.Get("/releases/{releaseID}/installers", h.listInstallers)
		r.Delete("/installers/{installerID}", h.deleteInstaller)

		r.Get("/apps/{appID}/crashes", h.listCrashGroups)
		r.Get("/apps/{appID}/crashes/stats", h.crashStats)
		r.Get("/crashes/{groupID}", h.getCrashGroup)
		r.Patch("/crashes/{groupID}", h.updateCrashGroup)
		r.Get("/apps/{appID}/feedback", h.listFeedback)
	})

	r.Route("/ci", func(r chi.Router) {
		r.Use(httpx.AdminAuth(d.Credentials, d.Log))
		r.Post("/apps/{slug}/releases", h.ciCreateRelease)
	})

	r.Route("/sdk", func(r chi.Router) {
		r.Use(httpx.PublicKeyAuth(d.Credentials, d.Log))
		r.Post("/{slug}/feedback", h.submitFeedback)
		r.Post("/{slug}/crashes", h.submitCrash)
	})

	r.Get("/{slug}/update/{target}/{currentVersion}", h.resolveUpdate)
	r.Get("/{slug}/update/{osName}/{arch}/{currentVersion}", h.resolveUpdateOSArch)
	r.Get("/{slug}/download/{platform}", h.downloadInstaller)
	r.Get("/{slug}/download/{platform}/{version}", h.downloadInstaller)

	return r
}

type handlers struct {
	d Deps
}
