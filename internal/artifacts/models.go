package artifacts

import "time"

// Platform is a Tauri updater target triple (§3 Artifact, §4.6).
type Platform string

const (
	DarwinAarch64  Platform = "darwin-aarch64"
	DarwinX8664    Platform = "darwin-x86_64"
	LinuxX8664     Platform = "linux-x86_64"
	LinuxAarch64   Platform = "linux-aarch64"
	WindowsX8664   Platform = "windows-x86_64"
	WindowsAarch64 Platform = "windows-aarch64"
)

var validArtifactPlatforms = map[Platform]bool{
	DarwinAarch64: true, DarwinX8664: true, LinuxX8664: true,
	LinuxAarch64: true, WindowsX8664: true, WindowsAarch64: true,
}

// ValidPlatform reports whether p is one of the six artifact platforms.
func ValidPlatform(p Platform) bool { return validArtifactPlatforms[p] }

// Artifact is a per-platform update payload attached to a release.
type Artifact struct {
	ID          string
	ReleaseID   string
	Platform    Platform
	Signature   *string
	StorageKey  *string
	DownloadURL *string
	FileSize    *int64
	Checksum    *string
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

// Confirmed reports whether the artifact is ready to serve: either the
// two-phase upload has completed, or it was created direct with an
// externally-hosted download_url and no storage_key at all (§3, §4.5).
func (a Artifact) Confirmed() bool { return a.DownloadURL != nil }

// InstallerPlatform broadens Platform with bundle-only targets (§3 Installer).
type InstallerPlatform string

const (
	InstallerDarwinAarch64   InstallerPlatform = "darwin-aarch64"
	InstallerDarwinX8664     InstallerPlatform = "darwin-x86_64"
	InstallerDarwinUniversal InstallerPlatform = "darwin-universal"
	InstallerLinuxX8664      InstallerPlatform = "linux-x86_64"
	InstallerLinuxAarch64    InstallerPlatform = "linux-aarch64"
	InstallerWindowsX8664    InstallerPlatform = "windows-x86_64"
	InstallerWindowsAarch64  InstallerPlatform = "windows-aarch64"
	InstallerWindowsX86      InstallerPlatform = "windows-x86"
	InstallerLinuxArmv7      InstallerPlatform = "linux-armv7"
)

var validInstallerPlatforms = map[InstallerPlatform]bool{
	InstallerDarwinAarch64: true, InstallerDarwinX8664: true, InstallerDarwinUniversal: true,
	InstallerLinuxX8664: true, InstallerLinuxAarch64: true, InstallerLinuxArmv7: true,
	InstallerWindowsX8664: true, InstallerWindowsAarch64: true, InstallerWindowsX86: true,
}

func ValidInstallerPlatform(p InstallerPlatform) bool { return validInstallerPlatforms[p] }

// Installer is a standalone platform bundle (e.g. .dmg, .msi) offered
// for fresh installs rather than delta updates.
type Installer struct {
	ID          string
	ReleaseID   string
	Platform    InstallerPlatform
	Filename    string
	DisplayName *string
	StorageKey  *string
	DownloadURL *string
	FileSize    *int64
	Checksum    *string
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

func (i Installer) Confirmed() bool { return i.DownloadURL != nil }
