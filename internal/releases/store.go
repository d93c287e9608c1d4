// Package releases implements C4: the release catalog and its
// draft -> published -> archived lifecycle. Query/scan shape follows
// the teacher's lake/api/handlers/sessions.go pagination idiom.
package releases

import (
	"context"
	"errors"

	"github.com/Masterminds/semver/v3"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/idgen"
)

type Store struct {
	db    *pgxpool.Pool
	clock clockwork.Clock
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db, clock: clockwork.NewRealClock()}
}

type CreateInput struct {
	AppID   string
	Version string
	Notes   *string
}

// Create inserts a draft Release. Version must parse as valid semver
// and be unique within the app (§4.4 create).
func (s *Store) Create(ctx context.Context, in CreateInput) (Release, error) {
	if _, err := semver.NewVersion(in.Version); err != nil {
		return Release{}, apierrors.Validationf("version %q is not valid semver: %v", in.Version, err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM releases WHERE app_id = $1 AND version = $2)
	`, in.AppID, in.Version).Scan(&exists); err != nil {
		return Release{}, apierrors.Wrap(apierrors.KindInternal, "check version uniqueness", err)
	}
	if exists {
		return Release{}, apierrors.Conflictf("release %s already exists for this app", in.Version)
	}

	now := s.clock.Now().UTC()
	r := Release{
		ID:        idgen.New(),
		AppID:     in.AppID,
		Version:   in.Version,
		Notes:     in.Notes,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO releases (id, app_id, version, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.AppID, r.Version, r.Notes, string(r.Status), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return Release{}, apierrors.Wrap(apierrors.KindInternal, "insert release", err)
	}
	return r, nil
}

func (s *Store) Get(ctx context.Context, id string) (Release, error) {
	var r Release
	var status string
	err := s.db.QueryRow(ctx, `
		SELECT id, app_id, version, notes, status, pub_date, created_at, updated_at
		FROM releases WHERE id = $1
	`, id).Scan(&r.ID, &r.AppID, &r.Version, &r.Notes, &status, &r.PubDate, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Release{}, apierrors.NotFoundf("release not found")
	}
	if err != nil {
		return Release{}, apierrors.Wrap(apierrors.KindInternal, "lookup release", err)
	}
	r.Status = Status(status)
	return r, nil
}

type ListResult struct {
	Releases []Release
	Total    int
	HasMore  bool
}

// List returns a paginated, optionally status-filtered view of an
// app's releases, newest first.
func (s *Store) List(ctx context.Context, appID string, status *Status, limit, offset int) (ListResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var statusFilter *string
	if status != nil {
		sv := string(*status)
		statusFilter = &sv
	}

	var total int
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM releases
		WHERE app_id = $1 AND ($2::VARCHAR IS NULL OR status = $2)
	`, appID, statusFilter).Scan(&total); err != nil {
		return ListResult{}, apierrors.Wrap(apierrors.KindInternal, "count releases", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, app_id, version, notes, status, pub_date, created_at, updated_at
		FROM releases
		WHERE app_id = $1 AND ($2::VARCHAR IS NULL OR status = $2)
		ORDER BY created_at DESC, id ASC
		LIMIT $3 OFFSET $4
	`, appID, statusFilter, limit, offset)
	if err != nil {
		return ListResult{}, apierrors.Wrap(apierrors.KindInternal, "list releases", err)
	}
	defer rows.Close()

	out := []Release{}
	for rows.Next() {
		var r Release
		var st string
		if err := rows.Scan(&r.ID, &r.AppID, &r.Version, &r.Notes, &st, &r.PubDate, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return ListResult{}, apierrors.Wrap(apierrors.KindInternal, "scan release", err)
		}
		r.Status = Status(st)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, apierrors.Wrap(apierrors.KindInternal, "iterate releases", err)
	}

	return ListResult{Releases: out, Total: total, HasMore: offset+len(out) < total}, nil
}

// UpdateNotes edits a release's notes regardless of status.
func (s *Store) UpdateNotes(ctx context.Context, id string, notes *string) (Release, error) {
	tag, err := s.db.Exec(ctx, `UPDATE releases SET notes = $2 WHERE id = $1`, id, notes)
	if err != nil {
		return Release{}, apierrors.Wrap(apierrors.KindInternal, "update release notes", err)
	}
	if tag.RowsAffected() == 0 {
		return Release{}, apierrors.NotFoundf("release not found")
	}
	return s.Get(ctx, id)
}

// Publish transitions a draft release to published (§4.4: allowed
// only from draft).
func (s *Store) Publish(ctx context.Context, id string) (Release, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Release{}, err
	}
	if r.Status == StatusPublished {
		return Release{}, apierrors.Conflictf("release is already published")
	}
	if r.Status == StatusArchived {
		return Release{}, apierrors.Conflictf("archived releases cannot be published")
	}

	now := s.clock.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE releases SET status = 'published', pub_date = $2
		WHERE id = $1 AND status = 'draft'
	`, id, now)
	if err != nil {
		return Release{}, apierrors.Wrap(apierrors.KindInternal, "publish release", err)
	}
	if tag.RowsAffected() == 0 {
		return Release{}, apierrors.Conflictf("release was concurrently modified")
	}
	return s.Get(ctx, id)
}

// Archive transitions a published (or draft) release to archived.
func (s *Store) Archive(ctx context.Context, id string) (Release, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Release{}, err
	}
	if r.Status == StatusArchived {
		return Release{}, apierrors.Conflictf("release is already archived")
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE releases SET status = 'archived' WHERE id = $1 AND status != 'archived'
	`, id)
	if err != nil {
		return Release{}, apierrors.Wrap(apierrors.KindInternal, "archive release", err)
	}
	if tag.RowsAffected() == 0 {
		return Release{}, apierrors.Conflictf("release was concurrently modified")
	}
	return s.Get(ctx, id)
}

// Delete removes a draft release. Published/archived releases must be
// archived-then-kept, never hard deleted, to preserve update history.
func (s *Store) Delete(ctx context.Context, id string) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != StatusDraft {
		return apierrors.Conflictf("only draft releases can be deleted; archive %s instead", r.Status)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM releases WHERE id = $1`, id)
	if err != nil {
		return apierrors.Wrap(apierrors.KindInternal, "delete release", err)
	}
	if tag.RowsAffected() == 0 {
		return apierrors.NotFoundf("release not found")
	}
	return nil
}
