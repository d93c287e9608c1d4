package updater

import (
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/require"
)

func TestIsBetterCandidatePrefersHigherSemver(t *testing.T) {
	best := candidateRelease{releaseID: "a"}
	c := candidateRelease{releaseID: "b"}
	bestSV := semver.MustParse("1.0.0")
	sv := semver.MustParse("1.1.0")
	require.True(t, isBetterCandidate(sv, c, bestSV, best))
	require.False(t, isBetterCandidate(bestSV, best, sv, c))
}

func TestIsBetterCandidateTiesBreakOnPubDateDesc(t *testing.T) {
	sv := semver.MustParse("1.0.0")
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	best := candidateRelease{releaseID: "a", pubDate: &older}
	c := candidateRelease{releaseID: "b", pubDate: &newer}
	require.True(t, isBetterCandidate(sv, c, sv, best))
}

func TestIsBetterCandidateFallsBackToReleaseIDDesc(t *testing.T) {
	sv := semver.MustParse("1.0.0")
	same := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	best := candidateRelease{releaseID: "01J0000000000000000000001", pubDate: &same}
	c := candidateRelease{releaseID: "01J0000000000000000000002", pubDate: &same}
	require.True(t, isBetterCandidate(sv, c, sv, best))
	require.False(t, isBetterCandidate(sv, best, sv, c))
}

func TestIsBetterCandidateNilPubDateLosesToSet(t *testing.T) {
	sv := semver.MustParse("1.0.0")
	set := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	best := candidateRelease{releaseID: "a", pubDate: nil}
	c := candidateRelease{releaseID: "b", pubDate: &set}
	require.True(t, isBetterCandidate(sv, c, sv, best))
	require.False(t, isBetterCandidate(sv, best, sv, c))
}
