package artifacts

import (
	"context"
	"testing"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/stretchr/testify/require"
)

// Platform validation runs before any db/store access in both
// PresignArtifact and LinkExisting, so a zero-value Store is safe here.

func TestPresignArtifactRejectsUnsupportedPlatform(t *testing.T) {
	s := &Store{}
	_, err := s.PresignArtifact(context.Background(), PresignInput{Platform: Platform("plan9")})
	require.True(t, apierrors.Is(err, apierrors.KindValidation))
}

func TestLinkExistingRejectsUnsupportedPlatform(t *testing.T) {
	s := &Store{}
	_, err := s.LinkExisting(context.Background(), "rel1", Platform("plan9"), "key", nil, "")
	require.True(t, apierrors.Is(err, apierrors.KindValidation))
}

func TestInstallerLinkExistingRejectsUnsupportedPlatform(t *testing.T) {
	s := &InstallerStore{}
	_, err := s.LinkExisting(context.Background(), "rel1", InstallerPlatform("plan9"), "setup.exe", nil, "key", "")
	require.True(t, apierrors.Is(err, apierrors.KindValidation))
}

func TestInstallerPresignRejectsMissingFilename(t *testing.T) {
	s := &InstallerStore{}
	_, err := s.Presign(context.Background(), PresignInstallerInput{Platform: InstallerDarwinUniversal, Filename: ""})
	require.True(t, apierrors.Is(err, apierrors.KindValidation))
}
