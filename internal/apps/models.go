package apps

import (
	"regexp"
	"time"
)

// slugPattern matches spec §3: lowercase start/end alnum, internal
// hyphens allowed but never doubled, length 2..50.
var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,48}[a-z0-9]$`)

// App is the root entity (§3 App).
type App struct {
	ID          string
	Slug        string
	Name        string
	Description *string
	PublicKey   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Summary adds projected listing fields (§4.3 list).
type Summary struct {
	App
	ReleaseCount  int
	LatestVersion *string
}

// ValidSlug reports whether slug matches the required shape and
// contains no consecutive hyphens.
func ValidSlug(slug string) bool {
	if len(slug) < 2 || len(slug) > 50 {
		return false
	}
	if !slugPattern.MatchString(slug) {
		return false
	}
	for i := 0; i+1 < len(slug); i++ {
		if slug[i] == '-' && slug[i+1] == '-' {
			return false
		}
	}
	return true
}
