// Package updater implements C6: Tauri update-manifest resolution and
// installer-download resolution. The "lookup, filter by semver, pick
// the winner" shape and the fire-and-forget telemetry emission are
// grounded on the teacher's telemetry/state-ingest pipeline, which
// likewise resolves a best match before recording an async event.
package updater

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/porkytheblack/oasis/internal/apierrors"
)

type Resolver struct {
	db  *pgxpool.Pool
	log *zap.SugaredLogger
}

func New(db *pgxpool.Pool, log *zap.SugaredLogger) *Resolver {
	return &Resolver{db: db, log: log}
}

// Manifest is the Tauri-compatible response body (§6).
type Manifest struct {
	Version   string
	URL       string
	Notes     *string
	PubDate   *time.Time
	Signature *string
}

type candidateRelease struct {
	releaseID string
	version   string
	pubDate   *time.Time
	notes     *string
}

// Resolve implements §4.6 steps 1-9. A nil Manifest with a nil error
// means "no update" (204); a non-nil error means the request failed
// outright (404/400).
func (r *Resolver) Resolve(ctx context.Context, appSlug, targetPlatform, currentVersion string) (*Manifest, error) {
	currentSV, err := semver.NewVersion(currentVersion)
	if err != nil {
		return nil, apierrors.Validationf("current_version %q is not valid semver", currentVersion)
	}
	platform := NormalizePlatform(targetPlatform)

	var appID string
	var publicKey *string
	err = r.db.QueryRow(ctx, `SELECT id, public_key FROM apps WHERE slug = $1`, appSlug).Scan(&appID, &publicKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.NotFoundf("unknown app %q", appSlug)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "lookup app", err)
	}

	// §4.6 steps 4-6: the semver winner is picked across ALL published
	// releases newer than current_version, independent of platform.
	// Only once a winner is chosen do we look up its artifact for the
	// requested platform — a winner with no matching artifact means
	// "no update for this platform" (204), never a fallback to a
	// lower-semver release that happens to have one.
	rows, err := r.db.Query(ctx, `
		SELECT id, version, pub_date, notes
		FROM releases
		WHERE app_id = $1 AND status = 'published'
	`, appID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "query candidate releases", err)
	}
	defer rows.Close()

	var best *candidateRelease
	var bestSV *semver.Version
	for rows.Next() {
		var c candidateRelease
		if err := rows.Scan(&c.releaseID, &c.version, &c.pubDate, &c.notes); err != nil {
			return nil, apierrors.Wrap(apierrors.KindInternal, "scan candidate release", err)
		}
		sv, err := semver.NewVersion(c.version)
		if err != nil {
			r.log.Warnw("release has unparseable semver, skipping", "release_id", c.releaseID, "version", c.version)
			continue
		}
		if !sv.GreaterThan(currentSV) {
			continue
		}
		if best == nil || isBetterCandidate(sv, c, bestSV, *best) {
			cc := c
			best = &cc
			bestSV = sv
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "iterate candidate releases", err)
	}
	if best == nil {
		return nil, nil
	}

	var artifactID string
	var downloadURL, signature *string
	err = r.db.QueryRow(ctx, `
		SELECT id, download_url, signature FROM artifacts
		WHERE release_id = $1 AND platform = $2 AND deleted_at IS NULL
	`, best.releaseID, platform).Scan(&artifactID, &downloadURL, &signature)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "lookup winning release artifact", err)
	}
	if downloadURL == nil {
		return nil, nil
	}
	if publicKey != nil && signature == nil {
		return nil, nil
	}

	r.emitTelemetry(artifactID, appID, platform, best.version)

	return &Manifest{
		Version:   best.version,
		URL:       *downloadURL,
		Notes:     best.notes,
		PubDate:   best.pubDate,
		Signature: signature,
	}, nil
}

// isBetterCandidate implements the tie-break from §4.6 step 5: highest
// semver, then pub_date desc, then id desc.
func isBetterCandidate(sv *semver.Version, c candidateRelease, bestSV *semver.Version, best candidateRelease) bool {
	if cmp := sv.Compare(bestSV); cmp != 0 {
		return cmp > 0
	}
	switch {
	case c.pubDate == nil && best.pubDate == nil:
	case c.pubDate == nil:
		return false
	case best.pubDate == nil:
		return true
	case !c.pubDate.Equal(*best.pubDate):
		return c.pubDate.After(*best.pubDate)
	}
	return c.releaseID > best.releaseID
}

// emitTelemetry records an async, best-effort update-check event. A
// generated UUID correlates the event; failure is only ever logged —
// it never affects the manifest response already sent to the caller.
func (r *Resolver) emitTelemetry(artifactID, appID, platform, version string) {
	eventID := uuid.New()
	go func() {
		r.log.Infow("update telemetry event",
			"event_id", eventID.String(),
			"artifact_id", artifactID,
			"app_id", appID,
			"platform", platform,
			"version", version,
		)
	}()
}
