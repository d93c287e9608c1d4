package credentials

import "time"

// Scope distinguishes admin (global) keys from ci (single-app) keys.
type Scope string

const (
	ScopeAdmin Scope = "admin"
	ScopeCI    Scope = "ci"
)

// ApiKey is an admin/CI bearer credential (§3 ApiKey).
type ApiKey struct {
	ID         string
	Name       string
	KeyHash    string
	Scope      Scope
	AppID      *string
	LastUsedAt *time.Time
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

// Revoked reports whether the key has been revoked.
func (k ApiKey) Revoked() bool { return k.RevokedAt != nil }

// PublicApiKey is a per-app SDK credential (§3 PublicApiKey).
type PublicApiKey struct {
	ID         string
	AppID      string
	Name       string
	KeyHash    string
	KeyPrefix  string
	LastUsedAt *time.Time
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

func (k PublicApiKey) Revoked() bool { return k.RevokedAt != nil }

// AuthedKey is what authentication returns to middleware: the resolved
// identity and scope, never the plaintext.
type AuthedKey struct {
	ID    string
	Scope Scope
	AppID *string // nil for admin scope
}

// AuthedPublicKey is what public-key authentication returns.
type AuthedPublicKey struct {
	KeyID string
	AppID string
}
