package updater

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/porkytheblack/oasis/internal/apierrors"
)

// InstallerDescriptor is the §6 JSON descriptor for installer downloads.
type InstallerDescriptor struct {
	ID           string
	Platform     string
	Filename     string
	DisplayName  *string
	DownloadURL  string
	FileSize     *int64
	Version      string
	ReleaseNotes *string
	PublishedAt  *time.Time
}

// ResolveInstaller implements the installer-download half of §4.6:
// resolve the release (latest published, or a specific version), then
// walk the platform's fallback chain until a confirmed installer is found.
func (r *Resolver) ResolveInstaller(ctx context.Context, appSlug, platform, version string) (*InstallerDescriptor, error) {
	normalized := NormalizePlatform(platform)

	var appID string
	if err := r.db.QueryRow(ctx, `SELECT id FROM apps WHERE slug = $1`, appSlug).Scan(&appID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apierrors.NotFoundf("unknown app %q", appSlug)
		}
		return nil, apierrors.Wrap(apierrors.KindInternal, "lookup app", err)
	}

	releaseID, releaseVersion, notes, pubDate, err := resolveReleaseForInstaller(ctx, r.db, appID, version)
	if err != nil {
		return nil, err
	}

	for _, candidate := range InstallerFallbackChain(normalized) {
		desc, err := lookupInstaller(ctx, r.db, releaseID, candidate)
		if err != nil {
			if apierrors.Is(err, apierrors.KindNotFound) {
				continue
			}
			return nil, err
		}
		desc.Version = releaseVersion
		desc.ReleaseNotes = notes
		desc.PublishedAt = pubDate
		return desc, nil
	}
	return nil, apierrors.NotFoundf("no installer available for platform %q", platform)
}

func resolveReleaseForInstaller(ctx context.Context, db *pgxpool.Pool, appID, version string) (id, ver string, notes *string, pubDate *time.Time, err error) {
	if version != "" {
		err = db.QueryRow(ctx, `
			SELECT id, version, notes, pub_date FROM releases
			WHERE app_id = $1 AND version = $2 AND status = 'published'
		`, appID, version).Scan(&id, &ver, &notes, &pubDate)
	} else {
		err = db.QueryRow(ctx, `
			SELECT id, version, notes, pub_date FROM releases
			WHERE app_id = $1 AND status = 'published'
			ORDER BY pub_date DESC NULLS LAST, created_at DESC LIMIT 1
		`, appID).Scan(&id, &ver, &notes, &pubDate)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", nil, nil, apierrors.NotFoundf("no published release found")
	}
	if err != nil {
		return "", "", nil, nil, apierrors.Wrap(apierrors.KindInternal, "lookup release", err)
	}
	return id, ver, notes, pubDate, nil
}

func lookupInstaller(ctx context.Context, db *pgxpool.Pool, releaseID, platform string) (*InstallerDescriptor, error) {
	var d InstallerDescriptor
	var downloadURL *string
	err := db.QueryRow(ctx, `
		SELECT id, platform, filename, display_name, download_url, file_size
		FROM installers
		WHERE release_id = $1 AND platform = $2 AND deleted_at IS NULL AND download_url IS NOT NULL
	`, releaseID, platform).Scan(&d.ID, &d.Platform, &d.Filename, &d.DisplayName, &downloadURL, &d.FileSize)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.NotFoundf("no installer for platform %q", platform)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "lookup installer", err)
	}
	d.DownloadURL = *downloadURL
	return &d, nil
}
