package artifacts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/idgen"
	"github.com/porkytheblack/oasis/internal/objectstore"
)

// InstallerStore manages the standalone-bundle variant of the
// two-phase upload protocol (§4.6). It is kept separate from Store
// because installers carry a required filename, an optional display_name,
// and a broader platform enum, but follows the identical presign/confirm shape.
type InstallerStore struct {
	db    *pgxpool.Pool
	store objectstore.Store
	log   *zap.SugaredLogger
	clock clockwork.Clock
}

func NewInstallerStore(db *pgxpool.Pool, store objectstore.Store, log *zap.SugaredLogger) *InstallerStore {
	return &InstallerStore{db: db, store: store, log: log, clock: clockwork.NewRealClock()}
}

type PresignInstallerInput struct {
	ReleaseID       string
	AppSlug         string
	ReleaseVersion  string
	Platform        InstallerPlatform
	Filename        string
	DisplayName     *string
	ContentType     string
	ReplaceExisting bool
}

type PresignInstallerResult struct {
	Installer Installer
	UploadURL string
	ExpiresAt time.Time
}

func (s *InstallerStore) Presign(ctx context.Context, in PresignInstallerInput) (PresignInstallerResult, error) {
	if !ValidInstallerPlatform(in.Platform) {
		return PresignInstallerResult{}, apierrors.Validationf("unsupported installer platform %q", in.Platform)
	}
	if in.Filename == "" {
		return PresignInstallerResult{}, apierrors.Validationf("filename is required")
	}

	existing, existErr := s.getByReleasePlatform(ctx, in.ReleaseID, in.Platform)
	if existErr != nil && !isNotFound(existErr) {
		return PresignInstallerResult{}, existErr
	}
	if existErr == nil {
		if !in.ReplaceExisting {
			return PresignInstallerResult{}, apierrors.Conflictf("installer for platform %s already exists; set replace_existing to overwrite", in.Platform)
		}
		if existing.StorageKey != nil {
			s.deleteObjectBestEffort(*existing.StorageKey)
		}
		if _, err := s.db.Exec(ctx, `DELETE FROM installers WHERE id = $1`, existing.ID); err != nil {
			return PresignInstallerResult{}, apierrors.Wrap(apierrors.KindInternal, "remove replaced installer row", err)
		}
	}

	filename, err := sanitize(in.Filename)
	if err != nil {
		return PresignInstallerResult{}, err
	}

	key := objectstore.BuildInstallerKey(in.AppSlug, in.ReleaseVersion, filename)
	url, err := s.store.PresignPut(ctx, key, presignTTL, in.ContentType)
	if err != nil {
		return PresignInstallerResult{}, apierrors.Wrap(apierrors.KindStorageUnavailable, "presign installer upload", err)
	}

	inst := Installer{
		ID:          idgen.New(),
		ReleaseID:   in.ReleaseID,
		Platform:    in.Platform,
		Filename:    filename,
		DisplayName: in.DisplayName,
		StorageKey:  &key,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO installers (id, release_id, platform, filename, display_name, storage_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, inst.ID, inst.ReleaseID, string(inst.Platform), inst.Filename, inst.DisplayName, key, inst.CreatedAt); err != nil {
		return PresignInstallerResult{}, apierrors.Wrap(apierrors.KindInternal, "insert installer", err)
	}

	return PresignInstallerResult{Installer: inst, UploadURL: url, ExpiresAt: s.clock.Now().Add(presignTTL)}, nil
}

// CreateDirectInstallerInput describes an externally-hosted installer
// (§4.5 "Direct creation"): no object-store upload is involved at all.
type CreateDirectInstallerInput struct {
	ReleaseID       string
	Platform        InstallerPlatform
	Filename        string
	DisplayName     *string
	DownloadURL     string
	ReplaceExisting bool
}

// CreateDirect is the installer counterpart to Store.CreateDirect.
func (s *InstallerStore) CreateDirect(ctx context.Context, in CreateDirectInstallerInput) (Installer, error) {
	if !ValidInstallerPlatform(in.Platform) {
		return Installer{}, apierrors.Validationf("unsupported installer platform %q", in.Platform)
	}
	if in.DownloadURL == "" {
		return Installer{}, apierrors.Validationf("download_url is required")
	}
	if in.Filename == "" {
		return Installer{}, apierrors.Validationf("filename is required")
	}

	existing, err := s.getByReleasePlatform(ctx, in.ReleaseID, in.Platform)
	if err != nil && !isNotFound(err) {
		return Installer{}, err
	}
	if err == nil {
		if !in.ReplaceExisting {
			return Installer{}, apierrors.Conflictf("installer for platform %s already exists; set replace_existing to overwrite", in.Platform)
		}
		if existing.StorageKey != nil {
			s.deleteObjectBestEffort(*existing.StorageKey)
		}
		if _, err := s.db.Exec(ctx, `DELETE FROM installers WHERE id = $1`, existing.ID); err != nil {
			return Installer{}, apierrors.Wrap(apierrors.KindInternal, "remove replaced installer row", err)
		}
	}

	inst := Installer{
		ID:          idgen.New(),
		ReleaseID:   in.ReleaseID,
		Platform:    in.Platform,
		Filename:    in.Filename,
		DisplayName: in.DisplayName,
		DownloadURL: &in.DownloadURL,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO installers (id, release_id, platform, filename, display_name, download_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, inst.ID, inst.ReleaseID, string(inst.Platform), inst.Filename, inst.DisplayName, in.DownloadURL, inst.CreatedAt); err != nil {
		return Installer{}, apierrors.Wrap(apierrors.KindInternal, "insert direct installer", err)
	}
	return inst, nil
}

// deleteObjectBestEffort removes a backing object without surfacing a
// failure; only ever used on the replace-existing path, which already
// treats the prior object as superseded (§4.5, §7 propagation policy).
func (s *InstallerStore) deleteObjectBestEffort(storageKey string) {
	if err := s.store.Delete(context.Background(), storageKey); err != nil {
		s.log.Warnw("failed to delete replaced installer object", "storage_key", storageKey, "error", err)
	}
}

// LinkExisting is the installer counterpart to Store.LinkExisting,
// used by the CI one-shot release flow (§6).
func (s *InstallerStore) LinkExisting(ctx context.Context, releaseID string, platform InstallerPlatform, filename string, displayName *string, storageKey string, checksum string) (Installer, error) {
	if !ValidInstallerPlatform(platform) {
		return Installer{}, apierrors.Validationf("unsupported installer platform %q", platform)
	}

	if existing, err := s.getByReleasePlatform(ctx, releaseID, platform); err == nil {
		if existing.Confirmed() {
			return Installer{}, apierrors.Conflictf("installer for platform %s already uploaded", platform)
		}
	} else if !isNotFound(err) {
		return Installer{}, err
	}

	head, err := s.store.Head(ctx, storageKey)
	if err != nil {
		return Installer{}, apierrors.Wrap(apierrors.KindStorageUnavailable, "verify linked installer upload", err)
	}
	downloadURL, ok := s.store.PublicURL(storageKey)
	if !ok {
		downloadURL, err = s.store.PresignGet(ctx, storageKey, 7*24*time.Hour)
		if err != nil {
			return Installer{}, apierrors.Wrap(apierrors.KindStorageUnavailable, "presign linked installer download", err)
		}
	}

	inst := Installer{
		ID: idgen.New(), ReleaseID: releaseID, Platform: platform, Filename: filename, DisplayName: displayName,
		StorageKey: &storageKey, DownloadURL: &downloadURL, FileSize: &head.Size, Checksum: &checksum, CreatedAt: s.clock.Now().UTC(),
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO installers (id, release_id, platform, filename, display_name, storage_key, download_url, file_size, checksum, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (release_id, platform) WHERE deleted_at IS NULL DO UPDATE SET
			filename = EXCLUDED.filename, display_name = EXCLUDED.display_name, storage_key = EXCLUDED.storage_key,
			download_url = EXCLUDED.download_url, file_size = EXCLUDED.file_size, checksum = EXCLUDED.checksum
	`, inst.ID, inst.ReleaseID, string(inst.Platform), inst.Filename, inst.DisplayName, storageKey, downloadURL, head.Size, checksum, inst.CreatedAt)
	if err != nil {
		return Installer{}, apierrors.Wrap(apierrors.KindInternal, "link existing installer", err)
	}
	return inst, nil
}

func (s *InstallerStore) Confirm(ctx context.Context, id string, checksum string) (Installer, error) {
	inst, err := s.get(ctx, id)
	if err != nil {
		return Installer{}, err
	}
	if inst.Confirmed() {
		return Installer{}, apierrors.Conflictf("installer already confirmed")
	}
	if inst.StorageKey == nil {
		return Installer{}, apierrors.Conflictf("installer not in pending state")
	}

	head, err := s.store.Head(ctx, *inst.StorageKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return Installer{}, apierrors.NotFoundf("no object found at storage key")
		}
		return Installer{}, apierrors.Wrap(apierrors.KindStorageUnavailable, "verify installer upload", err)
	}

	downloadURL, ok := s.store.PublicURL(*inst.StorageKey)
	if !ok {
		downloadURL, err = s.store.PresignGet(ctx, *inst.StorageKey, 7*24*time.Hour)
		if err != nil {
			return Installer{}, apierrors.Wrap(apierrors.KindStorageUnavailable, "presign installer download", err)
		}
	}

	_, err = s.db.Exec(ctx, `
		UPDATE installers SET download_url = $2, file_size = $3, checksum = $4 WHERE id = $1
	`, id, downloadURL, head.Size, checksum)
	if err != nil {
		return Installer{}, apierrors.Wrap(apierrors.KindInternal, "confirm installer", err)
	}
	return s.get(ctx, id)
}

// Get fetches a single installer by id, used by the API layer to
// resolve its owning release (and in turn app) for scope checks.
func (s *InstallerStore) Get(ctx context.Context, id string) (Installer, error) {
	return s.get(ctx, id)
}

func (s *InstallerStore) ListByRelease(ctx context.Context, releaseID string) ([]Installer, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, release_id, platform, filename, display_name, storage_key, download_url, file_size, checksum, created_at, deleted_at
		FROM installers WHERE release_id = $1 AND deleted_at IS NULL
		ORDER BY platform ASC
	`, releaseID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "list installers", err)
	}
	defer rows.Close()

	out := []Installer{}
	for rows.Next() {
		inst, err := scanInstallerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *InstallerStore) Delete(ctx context.Context, id string) (*string, error) {
	inst, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	tag, err := s.db.Exec(ctx, `UPDATE installers SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "delete installer", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apierrors.NotFoundf("installer not found")
	}
	return inst.StorageKey, nil
}

func (s *InstallerStore) get(ctx context.Context, id string) (Installer, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, release_id, platform, filename, display_name, storage_key, download_url, file_size, checksum, created_at, deleted_at
		FROM installers WHERE id = $1
	`, id)
	return scanInstallerRow(row)
}

func (s *InstallerStore) getByReleasePlatform(ctx context.Context, releaseID string, platform InstallerPlatform) (Installer, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, release_id, platform, filename, display_name, storage_key, download_url, file_size, checksum, created_at, deleted_at
		FROM installers WHERE release_id = $1 AND platform = $2 AND deleted_at IS NULL
	`, releaseID, string(platform))
	return scanInstallerRow(row)
}

func scanInstallerRow(row rowScanner) (Installer, error) {
	var inst Installer
	var platform string
	err := row.Scan(&inst.ID, &inst.ReleaseID, &platform, &inst.Filename, &inst.DisplayName, &inst.StorageKey, &inst.DownloadURL, &inst.FileSize, &inst.Checksum, &inst.CreatedAt, &inst.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Installer{}, apierrors.NotFoundf("installer not found")
	}
	if err != nil {
		return Installer{}, apierrors.Wrap(apierrors.KindInternal, "scan installer", err)
	}
	inst.Platform = InstallerPlatform(platform)
	return inst, nil
}
