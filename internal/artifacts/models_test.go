package artifacts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidPlatform(t *testing.T) {
	require.True(t, ValidPlatform(DarwinAarch64))
	require.True(t, ValidPlatform(WindowsAarch64))
	require.False(t, ValidPlatform(Platform("plan9-x86")))
}

func TestValidInstallerPlatformIncludesUniversalAndX86(t *testing.T) {
	require.True(t, ValidInstallerPlatform(InstallerDarwinUniversal))
	require.True(t, ValidInstallerPlatform(InstallerWindowsX86))
	require.False(t, ValidInstallerPlatform(InstallerPlatform("darwin-universal2")))
}

func TestArtifactConfirmedRequiresDownloadURL(t *testing.T) {
	key := "k"
	url := "u"
	require.False(t, Artifact{}.Confirmed())
	require.False(t, Artifact{StorageKey: &key}.Confirmed())
	require.True(t, Artifact{DownloadURL: &url}.Confirmed())
	require.True(t, Artifact{StorageKey: &key, DownloadURL: &url}.Confirmed())
}

func TestInstallerConfirmedRequiresDownloadURL(t *testing.T) {
	key := "k"
	url := "u"
	require.False(t, Installer{}.Confirmed())
	require.True(t, Installer{StorageKey: &key, DownloadURL: &url}.Confirmed())
}
