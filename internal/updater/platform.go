package updater

import "strings"

// platformAliases is the closed normalisation table from §4.6. Anything
// not listed passes through lowercased, unchanged.
var platformAliases = map[string]string{
	"macos":   "darwin",
	"osx":     "darwin",
	"win":     "windows",
	"win64":   "windows-x86_64",
	"win32":   "windows-x86_64",
	"linux64": "linux-x86_64",
}

// NormalizePlatform lowercases and applies the alias table, preserving
// any os-arch form that isn't a known alias.
func NormalizePlatform(target string) string {
	t := strings.ToLower(strings.TrimSpace(target))
	if alias, ok := platformAliases[t]; ok {
		return alias
	}
	return t
}

// installerFallbacks is the closed fallback table for installer
// downloads from §4.6: when no installer exists for the exact
// platform, try these in order.
var installerFallbacks = map[string][]string{
	"darwin-aarch64":   {"darwin-universal"},
	"darwin-x86_64":    {"darwin-universal"},
	"windows-aarch64":  {"windows-x86_64", "windows-x86"},
}

// InstallerFallbackChain returns the platforms to try, in order,
// starting with the exact platform itself.
func InstallerFallbackChain(platform string) []string {
	chain := []string{platform}
	return append(chain, installerFallbacks[platform]...)
}
