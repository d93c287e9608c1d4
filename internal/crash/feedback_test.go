package crash

import (
	"context"
	"testing"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/stretchr/testify/require"
)

// Both validation paths return before touching s.db, so a zero-value
// Store is safe here.

func TestSubmitFeedbackRejectsEmptyMessage(t *testing.T) {
	s := &Store{}
	_, err := s.SubmitFeedback(context.Background(), "app1", "key1", FeedbackInput{Message: ""})
	require.True(t, apierrors.Is(err, apierrors.KindValidation))
}

func TestSubmitFeedbackRejectsOutOfRangeRating(t *testing.T) {
	s := &Store{}
	bad := int16(6)
	_, err := s.SubmitFeedback(context.Background(), "app1", "key1", FeedbackInput{Message: "hi", Rating: &bad})
	require.True(t, apierrors.Is(err, apierrors.KindValidation))

	zero := int16(0)
	_, err = s.SubmitFeedback(context.Background(), "app1", "key1", FeedbackInput{Message: "hi", Rating: &zero})
	require.True(t, apierrors.Is(err, apierrors.KindValidation))
}
