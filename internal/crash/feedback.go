package crash

import (
	"context"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/idgen"
)

// FeedbackInput is the inbound SDK feedback payload (SPEC_FULL.md §3).
type FeedbackInput struct {
	Message    string
	Email      *string
	Rating     *int16
	AppVersion *string
	Platform   *string
}

// SubmitFeedback inserts an ungrouped feedback row.
func (s *Store) SubmitFeedback(ctx context.Context, appID, publicKeyID string, in FeedbackInput) (Feedback, error) {
	if in.Message == "" {
		return Feedback{}, apierrors.Validationf("message is required")
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return Feedback{}, apierrors.Validationf("rating must be between 1 and 5")
	}

	f := Feedback{
		ID:          idgen.New(),
		AppID:       appID,
		PublicKeyID: publicKeyID,
		Message:     in.Message,
		Email:       in.Email,
		Rating:      in.Rating,
		AppVersion:  in.AppVersion,
		Platform:    in.Platform,
		CreatedAt:   s.clock.Now().UTC(),
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO feedback (id, app_id, public_key_id, message, email, rating, app_version, platform, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, f.ID, f.AppID, f.PublicKeyID, f.Message, f.Email, f.Rating, f.AppVersion, f.Platform, f.CreatedAt)
	if err != nil {
		return Feedback{}, apierrors.Wrap(apierrors.KindInternal, "insert feedback", err)
	}
	return f, nil
}

// ListFeedbackResult is the paginated view for admin listing.
type ListFeedbackResult struct {
	Items   []Feedback
	Total   int
	HasMore bool
}

// ListFeedback returns an app's feedback, newest first.
func (s *Store) ListFeedback(ctx context.Context, appID string, limit, offset int) (ListFeedbackResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM feedback WHERE app_id = $1`, appID).Scan(&total); err != nil {
		return ListFeedbackResult{}, apierrors.Wrap(apierrors.KindInternal, "count feedback", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, app_id, public_key_id, message, email, rating, app_version, platform, created_at
		FROM feedback WHERE app_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3
	`, appID, limit, offset)
	if err != nil {
		return ListFeedbackResult{}, apierrors.Wrap(apierrors.KindInternal, "list feedback", err)
	}
	defer rows.Close()

	out := []Feedback{}
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.AppID, &f.PublicKeyID, &f.Message, &f.Email, &f.Rating, &f.AppVersion, &f.Platform, &f.CreatedAt); err != nil {
			return ListFeedbackResult{}, apierrors.Wrap(apierrors.KindInternal, "scan feedback", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return ListFeedbackResult{}, apierrors.Wrap(apierrors.KindInternal, "iterate feedback", err)
	}
	return ListFeedbackResult{Items: out, Total: total, HasMore: offset+len(out) < total}, nil
}
