// Package apps implements C3: the application registry. Listing
// follows the teacher's lake/api/handlers/sessions.go ListSessions
// shape — count query plus a limit/offset page, Total/HasMore in the
// response — adapted here to project release_count and latest_version
// per app instead of returning raw rows.
package apps

import (
	"context"
	"errors"
	"time"

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
	Slug        string
	Name        string
	Description *string
	PublicKey   *string
}

// Create inserts a new App, rejecting duplicate slugs with a Conflict.
func (s *Store) Create(ctx context.Context, in CreateInput) (App, error) {
	if !ValidSlug(in.Slug) {
		return App{}, apierrors.Validationf("slug %q must be 2-50 lowercase alphanumeric characters with single internal hyphens", in.Slug)
	}
	if in.Name == "" {
		return App{}, apierrors.Validationf("name is required")
	}
	if in.PublicKey != nil && *in.PublicKey == "" {
		return App{}, apierrors.Validationf("public_key must not be empty when set")
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM apps WHERE slug = $1)`, in.Slug).Scan(&exists); err != nil {
		return App{}, apierrors.Wrap(apierrors.KindInternal, "check slug uniqueness", err)
	}
	if exists {
		return App{}, apierrors.Conflictf("an app with slug %q already exists", in.Slug)
	}

	now := s.clock.Now().UTC()
	a := App{
		ID:          idgen.New(),
		Slug:        in.Slug,
		Name:        in.Name,
		Description: in.Description,
		PublicKey:   in.PublicKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO apps (id, slug, name, description, public_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.Slug, a.Name, a.Description, a.PublicKey, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return App{}, apierrors.Wrap(apierrors.KindInternal, "insert app", err)
	}
	return a, nil
}

// Get fetches an App by ID.
func (s *Store) Get(ctx context.Context, id string) (App, error) {
	return s.scanOne(ctx, `
		SELECT id, slug, name, description, public_key, created_at, updated_at
		FROM apps WHERE id = $1
	`, id)
}

// GetBySlug fetches an App by slug, used by the updater and SDK routes.
func (s *Store) GetBySlug(ctx context.Context, slug string) (App, error) {
	return s.scanOne(ctx, `
		SELECT id, slug, name, description, public_key, created_at, updated_at
		FROM apps WHERE slug = $1
	`, slug)
}

func (s *Store) scanOne(ctx context.Context, query string, arg string) (App, error) {
	var a App
	err := s.db.QueryRow(ctx, query, arg).Scan(&a.ID, &a.Slug, &a.Name, &a.Description, &a.PublicKey, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return App{}, apierrors.NotFoundf("app not found")
	}
	if err != nil {
		return App{}, apierrors.Wrap(apierrors.KindInternal, "lookup app", err)
	}
	return a, nil
}

type ListResult struct {
	Apps    []Summary
	Total   int
	HasMore bool
}

// List returns a paginated, projected view of the registry.
func (s *Store) List(ctx context.Context, limit, offset int) (ListResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM apps`).Scan(&total); err != nil {
		return ListResult{}, apierrors.Wrap(apierrors.KindInternal, "count apps", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.slug, a.name, a.description, a.public_key, a.created_at, a.updated_at,
		       COUNT(r.id) AS release_count
		FROM apps a
		LEFT JOIN releases r ON r.app_id = a.id
		GROUP BY a.id
		ORDER BY a.updated_at DESC, a.id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return ListResult{}, apierrors.Wrap(apierrors.KindInternal, "list apps", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Slug, &sm.Name, &sm.Description, &sm.PublicKey, &sm.CreatedAt, &sm.UpdatedAt, &sm.ReleaseCount); err != nil {
			return ListResult{}, apierrors.Wrap(apierrors.KindInternal, "scan app", err)
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, apierrors.Wrap(apierrors.KindInternal, "iterate apps", err)
	}

	if err := s.attachLatestVersions(ctx, out); err != nil {
		return ListResult{}, err
	}

	return ListResult{Apps: out, Total: total, HasMore: offset+len(out) < total}, nil
}

type publishedRelease struct {
	id      string
	version string
	pubDate *time.Time
}

// attachLatestVersions fills in each Summary's LatestVersion: the
// published release with the newest pub_date, ties broken by semver
// descending rather than insertion order (§4.3).
func (s *Store) attachLatestVersions(ctx context.Context, summaries []Summary) error {
	if len(summaries) == 0 {
		return nil
	}
	ids := make([]string, len(summaries))
	for i, sm := range summaries {
		ids[i] = sm.ID
	}

	rows, err := s.db.Query(ctx, `
		SELECT app_id, id, version, pub_date FROM releases
		WHERE app_id = ANY($1) AND status = 'published'
	`, ids)
	if err != nil {
		return apierrors.Wrap(apierrors.KindInternal, "list published releases", err)
	}
	defer rows.Close()

	best := make(map[string]publishedRelease)
	bestSV := make(map[string]*semver.Version)
	for rows.Next() {
		var appID string
		var rel publishedRelease
		if err := rows.Scan(&appID, &rel.id, &rel.version, &rel.pubDate); err != nil {
			return apierrors.Wrap(apierrors.KindInternal, "scan published release", err)
		}
		sv, svErr := semver.NewVersion(rel.version)
		cur, ok := best[appID]
		if !ok || isLatestRelease(rel, sv, cur, bestSV[appID]) {
			best[appID] = rel
			if svErr == nil {
				bestSV[appID] = sv
			} else {
				bestSV[appID] = nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return apierrors.Wrap(apierrors.KindInternal, "iterate published releases", err)
	}

	for i := range summaries {
		if rel, ok := best[summaries[i].ID]; ok {
			v := rel.version
			summaries[i].LatestVersion = &v
		}
	}
	return nil
}

// isLatestRelease implements the §4.3 tie-break: pub_date desc (nulls
// last), then semver desc, then release id desc.
func isLatestRelease(c publishedRelease, csv *semver.Version, best publishedRelease, bestSV *semver.Version) bool {
	switch {
	case c.pubDate == nil && best.pubDate == nil:
	case c.pubDate == nil:
		return false
	case best.pubDate == nil:
		return true
	case !c.pubDate.Equal(*best.pubDate):
		return c.pubDate.After(*best.pubDate)
	}
	if csv != nil && bestSV != nil {
		if cmp := csv.Compare(bestSV); cmp != 0 {
			return cmp > 0
		}
	} else if csv != nil {
		return true
	} else if bestSV != nil {
		return false
	}
	return c.id > best.id
}

type UpdateInput struct {
	Name        *string
	Description *string
	PublicKey   *string
}

// Update applies a partial update to an App's mutable fields.
func (s *Store) Update(ctx context.Context, id string, in UpdateInput) (App, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return App{}, err
	}
	if in.Name != nil {
		current.Name = *in.Name
	}
	if in.Description != nil {
		current.Description = in.Description
	}
	if in.PublicKey != nil {
		current.PublicKey = in.PublicKey
	}

	_, err = s.db.Exec(ctx, `
		UPDATE apps SET name = $2, description = $3, public_key = $4 WHERE id = $1
	`, id, current.Name, current.Description, current.PublicKey)
	if err != nil {
		return App{}, apierrors.Wrap(apierrors.KindInternal, "update app", err)
	}
	return s.Get(ctx, id)
}

// Delete removes an App, refusing if any release has been published
// (§4.3 delete guard — published artifacts must outlive accidental deletion).
func (s *Store) Delete(ctx context.Context, id string) error {
	var publishedCount int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM releases WHERE app_id = $1 AND status = 'published'
	`, id).Scan(&publishedCount)
	if err != nil {
		return apierrors.Wrap(apierrors.KindInternal, "check published releases", err)
	}
	if publishedCount > 0 {
		return apierrors.Conflictf("app has %d published release(s); archive them before deleting the app", publishedCount)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM apps WHERE id = $1`, id)
	if err != nil {
		return apierrors.Wrap(apierrors.KindInternal, "delete app", err)
	}
	if tag.RowsAffected() == 0 {
		return apierrors.NotFoundf("app not found")
	}
	return nil
}
