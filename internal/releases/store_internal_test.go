package releases

import (
	"context"
	"testing"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/stretchr/testify/require"
)

// Create's semver check runs before any db access, so a zero-value
// Store is safe to exercise this validation path in isolation.
func TestCreateRejectsInvalidSemver(t *testing.T) {
	s := &Store{}
	_, err := s.Create(context.Background(), CreateInput{AppID: "app1", Version: "not-a-version"})
	require.True(t, apierrors.Is(err, apierrors.KindValidation))
}
