package crash

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/idgen"
)

const uniqueViolation = "23505"

type Store struct {
	db    *pgxpool.Pool
	log   *zap.SugaredLogger
	clock clockwork.Clock
}

func New(db *pgxpool.Pool, log *zap.SugaredLogger) *Store {
	return &Store{db: db, log: log, clock: clockwork.NewRealClock()}
}

// Ingest implements §4.7's upsert protocol: lookup-or-insert the group
// by fingerprint inside a transaction, retrying once on a unique-
// constraint race (two concurrent first-seen reports for the same
// fingerprint), then always inserts the report row.
func (s *Store) Ingest(ctx context.Context, appID, publicKeyID string, ev Event) (Report, Group, error) {
	fingerprint := Fingerprint(ev.ErrorType, ev.StackTrace)
	now := s.clock.Now().UTC()

	stackJSON, err := json.Marshal(ev.StackTrace)
	if err != nil {
		return Report{}, Group{}, apierrors.Wrap(apierrors.KindValidation, "encode stack trace", err)
	}
	deviceJSON, _ := json.Marshal(ev.DeviceInfo)
	stateJSON, _ := json.Marshal(ev.AppState)
	breadcrumbsJSON, err := json.Marshal(ev.Breadcrumbs)
	if err != nil {
		return Report{}, Group{}, apierrors.Wrap(apierrors.KindValidation, "encode breadcrumbs", err)
	}

	var group Group
	var report Report

	const maxAttempts = 2
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return Report{}, Group{}, apierrors.Wrap(apierrors.KindInternal, "begin crash ingest transaction", err)
		}

		group, err = upsertGroup(ctx, tx, appID, fingerprint, ev, now)
		if err != nil {
			tx.Rollback(ctx)
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && attempt < maxAttempts-1 {
				continue
			}
			return Report{}, Group{}, err
		}

		report = Report{
			ID:           idgen.New(),
			AppID:        appID,
			GroupID:      group.ID,
			PublicKeyID:  publicKeyID,
			ErrorType:    ev.ErrorType,
			ErrorMessage: ev.ErrorMessage,
			StackTrace:   ev.StackTrace,
			AppVersion:   ev.AppVersion,
			Platform:     ev.Platform,
			OSVersion:    ev.OSVersion,
			Fingerprint:  fingerprint,
			Severity:     ev.Severity,
			UserID:       ev.UserID,
			CreatedAt:    now,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO crash_reports (id, app_id, crash_group_id, public_key_id, error_type, error_message,
				stack_trace, app_version, platform, os_version, device_info, app_state, breadcrumbs,
				fingerprint, severity, user_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		`, report.ID, report.AppID, report.GroupID, report.PublicKeyID, report.ErrorType, report.ErrorMessage,
			stackJSON, report.AppVersion, report.Platform, report.OSVersion, nullableJSON(deviceJSON), nullableJSON(stateJSON),
			breadcrumbsJSON, report.Fingerprint, string(report.Severity), report.UserID, report.CreatedAt)
		if err != nil {
			tx.Rollback(ctx)
			return Report{}, Group{}, apierrors.Wrap(apierrors.KindInternal, "insert crash report", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return Report{}, Group{}, apierrors.Wrap(apierrors.KindInternal, "commit crash ingest", err)
		}
		return report, group, nil
	}
	return Report{}, Group{}, apierrors.Wrap(apierrors.KindInternal, "ingest crash after retry", errors.New("persistent fingerprint conflict"))
}

func nullableJSON(b []byte) []byte {
	if string(b) == "null" {
		return nil
	}
	return b
}

// upsertGroup implements §4.7 steps 2-3 inside an open transaction.
func upsertGroup(ctx context.Context, tx pgx.Tx, appID, fingerprint string, ev Event, now time.Time) (Group, error) {
	var g Group
	var status string
	var versionsJSON, platformsJSON []byte
	err := tx.QueryRow(ctx, `
		SELECT id, app_id, fingerprint, error_type, error_message, occurrence_count, affected_users_count,
			first_seen_at, last_seen_at, affected_versions, affected_platforms, status, resolved_at
		FROM crash_groups WHERE fingerprint = $1 FOR UPDATE
	`, fingerprint).Scan(&g.ID, &g.AppID, &g.Fingerprint, &g.ErrorType, &g.ErrorMessage, &g.OccurrenceCount,
		&g.AffectedUsersCount, &g.FirstSeenAt, &g.LastSeenAt, &versionsJSON, &platformsJSON, &status, &g.ResolvedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		versions, _ := json.Marshal([]string{ev.AppVersion})
		platforms, _ := json.Marshal([]string{ev.Platform})
		usersCount := int64(0)
		if ev.UserID != nil {
			usersCount = 1
		}
		g = Group{
			ID:                 idgen.New(),
			AppID:              appID,
			Fingerprint:        fingerprint,
			ErrorType:          ev.ErrorType,
			ErrorMessage:       ev.ErrorMessage,
			OccurrenceCount:    1,
			AffectedUsersCount: usersCount,
			FirstSeenAt:        now,
			LastSeenAt:         now,
			AffectedVersions:   []string{ev.AppVersion},
			AffectedPlatforms:  []string{ev.Platform},
			Status:             GroupNew,
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO crash_groups (id, app_id, fingerprint, error_type, error_message, occurrence_count,
				affected_users_count, first_seen_at, last_seen_at, affected_versions, affected_platforms, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, g.ID, g.AppID, g.Fingerprint, g.ErrorType, g.ErrorMessage, g.OccurrenceCount, g.AffectedUsersCount,
			g.FirstSeenAt, g.LastSeenAt, versions, platforms, string(g.Status))
		if err != nil {
			return Group{}, apierrors.Wrap(apierrors.KindInternal, "insert crash group", err)
		}
		return g, nil
	}
	if err != nil {
		return Group{}, apierrors.Wrap(apierrors.KindInternal, "lookup crash group", err)
	}
	g.Status = GroupStatus(status)
	_ = json.Unmarshal(versionsJSON, &g.AffectedVersions)
	_ = json.Unmarshal(platformsJSON, &g.AffectedPlatforms)

	var priorUser bool
	if ev.UserID != nil {
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM crash_reports WHERE crash_group_id = $1 AND user_id = $2)
		`, g.ID, *ev.UserID).Scan(&priorUser); err != nil {
			return Group{}, apierrors.Wrap(apierrors.KindInternal, "check prior affected user", err)
		}
	}

	g.OccurrenceCount++
	if ev.UserID != nil && !priorUser {
		g.AffectedUsersCount++
	}
	g.AffectedVersions = addUnique(g.AffectedVersions, ev.AppVersion)
	g.AffectedPlatforms = addUnique(g.AffectedPlatforms, ev.Platform)
	g.LastSeenAt = now
	reopened := g.Status == GroupResolved
	if reopened {
		g.Status = GroupNew
		g.ResolvedAt = nil
	}

	versions, _ := json.Marshal(g.AffectedVersions)
	platforms, _ := json.Marshal(g.AffectedPlatforms)
	_, err = tx.Exec(ctx, `
		UPDATE crash_groups SET occurrence_count = $2, affected_users_count = $3, last_seen_at = $4,
			affected_versions = $5, affected_platforms = $6, status = $7, resolved_at = $8
		WHERE id = $1
	`, g.ID, g.OccurrenceCount, g.AffectedUsersCount, g.LastSeenAt, versions, platforms, string(g.Status), g.ResolvedAt)
	if err != nil {
		return Group{}, apierrors.Wrap(apierrors.KindInternal, "update crash group", err)
	}
	return g, nil
}

func addUnique(set []string, v string) []string {
	for _, existing := range set {
		if existing == v {
			return set
		}
	}
	return append(set, v)
}

// GetGroup fetches a crash group by ID.
func (s *Store) GetGroup(ctx context.Context, id string) (Group, error) {
	var g Group
	var status string
	var versionsJSON, platformsJSON []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, app_id, fingerprint, error_type, error_message, occurrence_count, affected_users_count,
			first_seen_at, last_seen_at, affected_versions, affected_platforms, status, assignee,
			resolution_notes, resolved_at, created_at, updated_at
		FROM crash_groups WHERE id = $1
	`, id).Scan(&g.ID, &g.AppID, &g.Fingerprint, &g.ErrorType, &g.ErrorMessage, &g.OccurrenceCount,
		&g.AffectedUsersCount, &g.FirstSeenAt, &g.LastSeenAt, &versionsJSON, &platformsJSON, &status,
		&g.Assignee, &g.ResolutionNotes, &g.ResolvedAt, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, apierrors.NotFoundf("crash group not found")
	}
	if err != nil {
		return Group{}, apierrors.Wrap(apierrors.KindInternal, "lookup crash group", err)
	}
	g.Status = GroupStatus(status)
	_ = json.Unmarshal(versionsJSON, &g.AffectedVersions)
	_ = json.Unmarshal(platformsJSON, &g.AffectedPlatforms)
	return g, nil
}

type ListGroupsResult struct {
	Groups  []Group
	Total   int
	HasMore bool
}

// ListGroups returns an app's crash groups ordered by occurrence count.
func (s *Store) ListGroups(ctx context.Context, appID string, limit, offset int) (ListGroupsResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM crash_groups WHERE app_id = $1`, appID).Scan(&total); err != nil {
		return ListGroupsResult{}, apierrors.Wrap(apierrors.KindInternal, "count crash groups", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, app_id, fingerprint, error_type, error_message, occurrence_count, affected_users_count,
			first_seen_at, last_seen_at, affected_versions, affected_platforms, status, assignee,
			resolution_notes, resolved_at, created_at, updated_at
		FROM crash_groups WHERE app_id = $1
		ORDER BY occurrence_count DESC, id ASC
		LIMIT $2 OFFSET $3
	`, appID, limit, offset)
	if err != nil {
		return ListGroupsResult{}, apierrors.Wrap(apierrors.KindInternal, "list crash groups", err)
	}
	defer rows.Close()

	out := []Group{}
	for rows.Next() {
		var g Group
		var status string
		var versionsJSON, platformsJSON []byte
		if err := rows.Scan(&g.ID, &g.AppID, &g.Fingerprint, &g.ErrorType, &g.ErrorMessage, &g.OccurrenceCount,
			&g.AffectedUsersCount, &g.FirstSeenAt, &g.LastSeenAt, &versionsJSON, &platformsJSON, &status,
			&g.Assignee, &g.ResolutionNotes, &g.ResolvedAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return ListGroupsResult{}, apierrors.Wrap(apierrors.KindInternal, "scan crash group", err)
		}
		g.Status = GroupStatus(status)
		_ = json.Unmarshal(versionsJSON, &g.AffectedVersions)
		_ = json.Unmarshal(platformsJSON, &g.AffectedPlatforms)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return ListGroupsResult{}, apierrors.Wrap(apierrors.KindInternal, "iterate crash groups", err)
	}
	return ListGroupsResult{Groups: out, Total: total, HasMore: offset+len(out) < total}, nil
}

// UpdateGroupInput carries the mutable triage fields (§4.8-4.10 admin surface).
type UpdateGroupInput struct {
	Status          *GroupStatus
	Assignee        *string
	ResolutionNotes *string
}

// UpdateGroup applies a triage update, enforcing the
// status=resolved <=> resolved_at≠null invariant (§8).
func (s *Store) UpdateGroup(ctx context.Context, id string, in UpdateGroupInput) (Group, error) {
	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if in.Status != nil {
		g.Status = *in.Status
	}
	if in.Assignee != nil {
		g.Assignee = in.Assignee
	}
	if in.ResolutionNotes != nil {
		g.ResolutionNotes = in.ResolutionNotes
	}
	if g.Status == GroupResolved {
		now := s.clock.Now().UTC()
		g.ResolvedAt = &now
	} else {
		g.ResolvedAt = nil
	}

	_, err = s.db.Exec(ctx, `
		UPDATE crash_groups SET status = $2, assignee = $3, resolution_notes = $4, resolved_at = $5
		WHERE id = $1
	`, id, string(g.Status), g.Assignee, g.ResolutionNotes, g.ResolvedAt)
	if err != nil {
		return Group{}, apierrors.Wrap(apierrors.KindInternal, "update crash group triage", err)
	}
	return s.GetGroup(ctx, id)
}
