// Package artifacts implements C5: the two-phase artifact/installer
// upload protocol (presign -> client PUT -> confirm) from §4.5 and
// §4.6. The presign/confirm split is grounded on the interaction
// between telemetry/state-ingest's handler.go (which issues a
// presigned PUT and records pending state) and controlplane/s3-uploader
// (which actually performs the PUT the server never sees).
package artifacts

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/idgen"
	"github.com/porkytheblack/oasis/internal/objectstore"
)

const presignTTL = 1 * time.Hour

// validFilename matches spec.md:59 - no path separators or traversal
// segments can reach the object-store key.
var validFilename = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// sanitize rejects filenames that could escape the <slug>/releases/<version>/
// object-key prefix (§7 "sanitization failure").
func sanitize(filename string) (string, error) {
	if !validFilename.MatchString(filename) {
		return "", apierrors.Validationf("filename %q contains invalid characters", filename)
	}
	return filename, nil
}

type Store struct {
	db    *pgxpool.Pool
	store objectstore.Store
	log   *zap.SugaredLogger
	clock clockwork.Clock
}

func New(db *pgxpool.Pool, store objectstore.Store, log *zap.SugaredLogger) *Store {
	return &Store{db: db, store: store, log: log, clock: clockwork.NewRealClock()}
}

// PresignInput describes the artifact being uploaded. AppSlug and
// ReleaseVersion are supplied by the caller (already resolved from the
// apps/releases stores) so this package never needs to join against them.
type PresignInput struct {
	ReleaseID       string
	AppSlug         string
	ReleaseVersion  string
	Platform        Platform
	Filename        string
	ContentType     string
	Signature       *string
	ReplaceExisting bool
}

// PresignResult is returned to the CI client.
type PresignResult struct {
	Artifact  Artifact
	UploadURL string
	ExpiresAt time.Time
}

// PresignArtifact creates an artifact row and returns a presigned PUT
// URL (§4.5 phase 1). If an artifact already occupies this
// (release, platform) slot, ReplaceExisting must be set or the call
// fails conflict; when set, the old object and row are best-effort
// torn down first and a fresh pending row takes its place.
func (s *Store) PresignArtifact(ctx context.Context, in PresignInput) (PresignResult, error) {
	if !ValidPlatform(in.Platform) {
		return PresignResult{}, apierrors.Validationf("unsupported platform %q", in.Platform)
	}

	existing, err := s.getByReleasePlatform(ctx, in.ReleaseID, in.Platform)
	if err != nil && !isNotFound(err) {
		return PresignResult{}, err
	}
	if err == nil {
		if !in.ReplaceExisting {
			return PresignResult{}, apierrors.Conflictf("artifact for platform %s already exists; set replace_existing to overwrite", in.Platform)
		}
		if existing.StorageKey != nil {
			s.deleteObjectBestEffort(*existing.StorageKey)
		}
		if _, err := s.db.Exec(ctx, `DELETE FROM artifacts WHERE id = $1`, existing.ID); err != nil {
			return PresignResult{}, apierrors.Wrap(apierrors.KindInternal, "remove replaced artifact row", err)
		}
	}

	filename, err := sanitize(in.Filename)
	if err != nil {
		return PresignResult{}, err
	}

	key := objectstore.BuildArtifactKey(in.AppSlug, in.ReleaseVersion, filename)
	url, err := s.store.PresignPut(ctx, key, presignTTL, in.ContentType)
	if err != nil {
		return PresignResult{}, apierrors.Wrap(apierrors.KindStorageUnavailable, "presign artifact upload", err)
	}

	a := Artifact{
		ID:         idgen.New(),
		ReleaseID:  in.ReleaseID,
		Platform:   in.Platform,
		Signature:  in.Signature,
		StorageKey: &key,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO artifacts (id, release_id, platform, signature, storage_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.ReleaseID, string(a.Platform), a.Signature, key, a.CreatedAt); err != nil {
		return PresignResult{}, apierrors.Wrap(apierrors.KindInternal, "insert artifact", err)
	}

	return PresignResult{Artifact: a, UploadURL: url, ExpiresAt: s.clock.Now().Add(presignTTL)}, nil
}

// CreateDirectInput describes an externally-hosted artifact (§4.5
// "Direct creation"): no object-store upload is involved at all.
type CreateDirectInput struct {
	ReleaseID       string
	Platform        Platform
	DownloadURL     string
	Signature       *string
	ReplaceExisting bool
}

// CreateDirect registers an artifact whose payload is hosted outside
// the managed object store. storage_key stays null, download_url is
// set up front, and the row is confirmed on insert — the two-phase
// presign/confirm protocol never applies to it.
func (s *Store) CreateDirect(ctx context.Context, in CreateDirectInput) (Artifact, error) {
	if !ValidPlatform(in.Platform) {
		return Artifact{}, apierrors.Validationf("unsupported platform %q", in.Platform)
	}
	if in.DownloadURL == "" {
		return Artifact{}, apierrors.Validationf("download_url is required")
	}

	existing, err := s.getByReleasePlatform(ctx, in.ReleaseID, in.Platform)
	if err != nil && !isNotFound(err) {
		return Artifact{}, err
	}
	if err == nil {
		if !in.ReplaceExisting {
			return Artifact{}, apierrors.Conflictf("artifact for platform %s already exists; set replace_existing to overwrite", in.Platform)
		}
		if existing.StorageKey != nil {
			s.deleteObjectBestEffort(*existing.StorageKey)
		}
		if _, err := s.db.Exec(ctx, `DELETE FROM artifacts WHERE id = $1`, existing.ID); err != nil {
			return Artifact{}, apierrors.Wrap(apierrors.KindInternal, "remove replaced artifact row", err)
		}
	}

	a := Artifact{
		ID:          idgen.New(),
		ReleaseID:   in.ReleaseID,
		Platform:    in.Platform,
		Signature:   in.Signature,
		DownloadURL: &in.DownloadURL,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO artifacts (id, release_id, platform, signature, download_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.ReleaseID, string(a.Platform), a.Signature, in.DownloadURL, a.CreatedAt); err != nil {
		return Artifact{}, apierrors.Wrap(apierrors.KindInternal, "insert direct artifact", err)
	}
	return a, nil
}

// deleteObjectBestEffort removes a backing object without surfacing a
// failure; only ever used on the replace-existing path, which already
// treats the prior object as superseded (§4.5, §7 propagation policy).
func (s *Store) deleteObjectBestEffort(storageKey string) {
	if err := s.store.Delete(context.Background(), storageKey); err != nil {
		s.log.Warnw("failed to delete replaced artifact object", "storage_key", storageKey, "error", err)
	}
}

// ConfirmArtifact verifies the object exists in storage (HEAD), then
// records size/checksum/download URL. Confirming an already-confirmed
// artifact is a conflict (§4.5 idempotency guard, SPEC_FULL.md §3).
func (s *Store) ConfirmArtifact(ctx context.Context, id string, checksum string) (Artifact, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return Artifact{}, err
	}
	if a.Confirmed() {
		return Artifact{}, apierrors.Conflictf("artifact already confirmed")
	}
	if a.StorageKey == nil {
		return Artifact{}, apierrors.Conflictf("artifact not in pending state")
	}

	head, err := s.store.Head(ctx, *a.StorageKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return Artifact{}, apierrors.NotFoundf("no object found at storage key")
		}
		return Artifact{}, apierrors.Wrap(apierrors.KindStorageUnavailable, "verify artifact upload", err)
	}

	downloadURL, ok := s.store.PublicURL(*a.StorageKey)
	if !ok {
		downloadURL, err = s.store.PresignGet(ctx, *a.StorageKey, 7*24*time.Hour)
		if err != nil {
			return Artifact{}, apierrors.Wrap(apierrors.KindStorageUnavailable, "presign artifact download", err)
		}
	}

	size := head.Size
	_, err = s.db.Exec(ctx, `
		UPDATE artifacts SET download_url = $2, file_size = $3, checksum = $4 WHERE id = $1
	`, id, downloadURL, size, checksum)
	if err != nil {
		return Artifact{}, apierrors.Wrap(apierrors.KindInternal, "confirm artifact", err)
	}
	return s.get(ctx, id)
}

// LinkExisting registers an object the caller already uploaded
// out-of-band (the CI one-shot release flow, §6) as a confirmed
// artifact: HEAD it for size, resolve its download URL, and insert
// directly in the confirmed state rather than going through presign.
func (s *Store) LinkExisting(ctx context.Context, releaseID string, platform Platform, storageKey string, signature *string, checksum string) (Artifact, error) {
	if !ValidPlatform(platform) {
		return Artifact{}, apierrors.Validationf("unsupported platform %q", platform)
	}

	if existing, err := s.getByReleasePlatform(ctx, releaseID, platform); err == nil {
		if existing.Confirmed() {
			return Artifact{}, apierrors.Conflictf("artifact for platform %s already uploaded", platform)
		}
	} else if !isNotFound(err) {
		return Artifact{}, err
	}

	head, err := s.store.Head(ctx, storageKey)
	if err != nil {
		return Artifact{}, apierrors.Wrap(apierrors.KindStorageUnavailable, "verify linked artifact upload", err)
	}
	downloadURL, ok := s.store.PublicURL(storageKey)
	if !ok {
		downloadURL, err = s.store.PresignGet(ctx, storageKey, 7*24*time.Hour)
		if err != nil {
			return Artifact{}, apierrors.Wrap(apierrors.KindStorageUnavailable, "presign linked artifact download", err)
		}
	}

	a := Artifact{
		ID:          idgen.New(),
		ReleaseID:   releaseID,
		Platform:    platform,
		Signature:   signature,
		StorageKey:  &storageKey,
		DownloadURL: &downloadURL,
		FileSize:    &head.Size,
		Checksum:    &checksum,
		CreatedAt:   s.clock.Now().UTC(),
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO artifacts (id, release_id, platform, signature, storage_key, download_url, file_size, checksum, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (release_id, platform) WHERE deleted_at IS NULL DO UPDATE SET
			signature = EXCLUDED.signature, storage_key = EXCLUDED.storage_key,
			download_url = EXCLUDED.download_url, file_size = EXCLUDED.file_size, checksum = EXCLUDED.checksum
	`, a.ID, a.ReleaseID, string(a.Platform), a.Signature, storageKey, downloadURL, head.Size, checksum, a.CreatedAt)
	if err != nil {
		return Artifact{}, apierrors.Wrap(apierrors.KindInternal, "link existing artifact", err)
	}
	return a, nil
}

// Get fetches a single artifact by id, used by the API layer to
// resolve its owning release (and in turn app) for scope checks.
func (s *Store) Get(ctx context.Context, id string) (Artifact, error) {
	return s.get(ctx, id)
}

// ListByRelease returns all non-deleted artifacts for a release.
func (s *Store) ListByRelease(ctx context.Context, releaseID string) ([]Artifact, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, release_id, platform, signature, storage_key, download_url, file_size, checksum, created_at, deleted_at
		FROM artifacts WHERE release_id = $1 AND deleted_at IS NULL
		ORDER BY platform ASC
	`, releaseID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "list artifacts", err)
	}
	defer rows.Close()

	out := []Artifact{}
	for rows.Next() {
		a, err := scanArtifactRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete soft-deletes the artifact row and returns its storage key (nil
// for a direct artifact). It does not touch the object store; the
// caller best-effort removes the backing object and logs any failure,
// which never blocks the row deletion (§4.1 fire-and-forget semantics).
func (s *Store) Delete(ctx context.Context, id string) (*string, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	tag, err := s.db.Exec(ctx, `UPDATE artifacts SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "delete artifact", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apierrors.NotFoundf("artifact not found")
	}
	return a.StorageKey, nil
}

func (s *Store) get(ctx context.Context, id string) (Artifact, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, release_id, platform, signature, storage_key, download_url, file_size, checksum, created_at, deleted_at
		FROM artifacts WHERE id = $1
	`, id)
	return scanArtifactRow(row)
}

func (s *Store) getByReleasePlatform(ctx context.Context, releaseID string, platform Platform) (Artifact, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, release_id, platform, signature, storage_key, download_url, file_size, checksum, created_at, deleted_at
		FROM artifacts WHERE release_id = $1 AND platform = $2 AND deleted_at IS NULL
	`, releaseID, string(platform))
	return scanArtifactRow(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifactRow(row rowScanner) (Artifact, error) {
	var a Artifact
	var platform string
	err := row.Scan(&a.ID, &a.ReleaseID, &platform, &a.Signature, &a.StorageKey, &a.DownloadURL, &a.FileSize, &a.Checksum, &a.CreatedAt, &a.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Artifact{}, apierrors.NotFoundf("artifact not found")
	}
	if err != nil {
		return Artifact{}, apierrors.Wrap(apierrors.KindInternal, "scan artifact", err)
	}
	a.Platform = Platform(platform)
	return a, nil
}

func isNotFound(err error) bool {
	return apierrors.Is(err, apierrors.KindNotFound)
}
