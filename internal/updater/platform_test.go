package updater

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePlatformAliases(t *testing.T) {
	cases := map[string]string{
		"macos":   "darwin",
		"OSX":     "darwin",
		"win":     "windows",
		"WIN64":   "windows-x86_64",
		"win32":   "windows-x86_64",
		"linux64": "linux-x86_64",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizePlatform(in), "input %q", in)
	}
}

func TestNormalizePlatformPassesThroughUnknown(t *testing.T) {
	require.Equal(t, "darwin-aarch64", NormalizePlatform(" Darwin-Aarch64 "))
}

func TestInstallerFallbackChainStartsWithExact(t *testing.T) {
	chain := InstallerFallbackChain("darwin-aarch64")
	require.Equal(t, []string{"darwin-aarch64", "darwin-universal"}, chain)
}

func TestInstallerFallbackChainWindowsAarch64(t *testing.T) {
	chain := InstallerFallbackChain("windows-aarch64")
	require.Equal(t, []string{"windows-aarch64", "windows-x86_64", "windows-x86"}, chain)
}

func TestInstallerFallbackChainNoFallbacksForUnlisted(t *testing.T) {
	chain := InstallerFallbackChain("linux-x86_64")
	require.Equal(t, []string{"linux-x86_64"}, chain)
}
