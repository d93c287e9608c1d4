package crash

import (
	"context"
	"time"

	"github.com/porkytheblack/oasis/internal/apierrors"
)

// Window is a rolling statistics window (§4.7).
type Window string

const (
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
	Window90d Window = "90d"
)

func (w Window) duration() (time.Duration, bool) {
	switch w {
	case Window24h:
		return 24 * time.Hour, true
	case Window7d:
		return 7 * 24 * time.Hour, true
	case Window30d:
		return 30 * 24 * time.Hour, true
	case Window90d:
		return 90 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// DayCount is one bucket of the by-day histogram.
type DayCount struct {
	Day   time.Time
	Count int64
}

// KeyCount is a generic (label, count) pair for the by-version and
// by-platform breakdowns.
type KeyCount struct {
	Key   string
	Count int64
}

// TopGroup is one row of the top-N-by-occurrence table.
type TopGroup struct {
	GroupID         string
	Fingerprint     string
	ErrorType       string
	OccurrenceCount int64
}

// Stats is the aggregate response for the crash-statistics endpoint
// (SPEC_FULL.md §3). This is a pure read path; it never mutates state.
type Stats struct {
	Window      Window
	Total       int64
	ByDay       []DayCount
	ByVersion   []KeyCount
	ByPlatform  []KeyCount
	TopGroups   []TopGroup
}

// Stats computes the rolling-window aggregate for an app.
func (s *Store) Stats(ctx context.Context, appID string, window Window) (Stats, error) {
	dur, ok := window.duration()
	if !ok {
		return Stats{}, apierrors.Validationf("unknown window %q", window)
	}
	since := s.clock.Now().UTC().Add(-dur)

	var total int64
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM crash_reports WHERE app_id = $1 AND created_at >= $2
	`, appID, since).Scan(&total); err != nil {
		return Stats{}, apierrors.Wrap(apierrors.KindInternal, "count crash reports", err)
	}

	byDay, err := s.queryKeyedCounts(ctx, `
		SELECT date_trunc('day', created_at)::date::timestamptz AS bucket, COUNT(*)
		FROM crash_reports WHERE app_id = $1 AND created_at >= $2
		GROUP BY bucket ORDER BY bucket ASC
	`, appID, since, true)
	if err != nil {
		return Stats{}, err
	}

	byVersion, err := s.queryStringCounts(ctx, `
		SELECT app_version, COUNT(*) FROM crash_reports WHERE app_id = $1 AND created_at >= $2
		GROUP BY app_version ORDER BY COUNT(*) DESC
	`, appID, since)
	if err != nil {
		return Stats{}, err
	}

	byPlatform, err := s.queryStringCounts(ctx, `
		SELECT platform, COUNT(*) FROM crash_reports WHERE app_id = $1 AND created_at >= $2
		GROUP BY platform ORDER BY COUNT(*) DESC
	`, appID, since)
	if err != nil {
		return Stats{}, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, fingerprint, error_type, occurrence_count FROM crash_groups
		WHERE app_id = $1 AND last_seen_at >= $2
		ORDER BY occurrence_count DESC LIMIT 10
	`, appID, since)
	if err != nil {
		return Stats{}, apierrors.Wrap(apierrors.KindInternal, "query top crash groups", err)
	}
	defer rows.Close()

	top := []TopGroup{}
	for rows.Next() {
		var g TopGroup
		if err := rows.Scan(&g.GroupID, &g.Fingerprint, &g.ErrorType, &g.OccurrenceCount); err != nil {
			return Stats{}, apierrors.Wrap(apierrors.KindInternal, "scan top crash group", err)
		}
		top = append(top, g)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, apierrors.Wrap(apierrors.KindInternal, "iterate top crash groups", err)
	}

	return Stats{
		Window:     window,
		Total:      total,
		ByDay:      byDay,
		ByVersion:  byVersion,
		ByPlatform: byPlatform,
		TopGroups:  top,
	}, nil
}

func (s *Store) queryKeyedCounts(ctx context.Context, query, appID string, since time.Time, _ bool) ([]DayCount, error) {
	rows, err := s.db.Query(ctx, query, appID, since)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "query by-day histogram", err)
	}
	defer rows.Close()

	out := []DayCount{}
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, apierrors.Wrap(apierrors.KindInternal, "scan by-day bucket", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) queryStringCounts(ctx context.Context, query, appID string, since time.Time) ([]KeyCount, error) {
	rows, err := s.db.Query(ctx, query, appID, since)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "query keyed counts", err)
	}
	defer rows.Close()

	out := []KeyCount{}
	for rows.Next() {
		var kc KeyCount
		if err := rows.Scan(&kc.Key, &kc.Count); err != nil {
			return nil, apierrors.Wrap(apierrors.KindInternal, "scan keyed count", err)
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}
