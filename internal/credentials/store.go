// Package credentials implements C2: hashing, persisting, and
// validating the two key kinds (§4.2). The sentinel-error-plus-switch
// shape for authentication failures is adapted from the teacher's
// telemetry/state-ingest/pkg/server/auth.go, which verifies a different
// credential (an ed25519 device signature) with the same "typed error,
// map once at the edge" discipline.
package credentials

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/idgen"
)

const (
	adminPrefix  = "uk_live_"
	publicPrefix = "pk_"
)

var (
	// ErrNotFound signals no key matched the presented token's hash.
	ErrNotFound = errors.New("credentials: key not found")
	// ErrRevoked signals the matched key has been revoked.
	ErrRevoked = errors.New("credentials: key revoked")
	// ErrMalformedToken signals a token without the expected prefix.
	ErrMalformedToken = errors.New("credentials: malformed token")
)

// Store is C2's persistence + authentication surface.
type Store struct {
	db    *pgxpool.Pool
	log   *zap.SugaredLogger
	clock clockwork.Clock
}

// New builds a credentials Store.
func New(db *pgxpool.Pool, log *zap.SugaredLogger) *Store {
	return &Store{db: db, log: log, clock: clockwork.NewRealClock()}
}

// CreateAdminOrCI generates a uk_live_<32hex> secret, hashes it, and
// persists the record. The plaintext is returned exactly once.
func (s *Store) CreateAdminOrCI(ctx context.Context, name string, scope Scope, appID *string) (plaintext string, rec ApiKey, err error) {
	if scope == ScopeCI && (appID == nil || *appID == "") {
		return "", ApiKey{}, apierrors.Validationf("ci-scoped keys require an app_id")
	}
	if scope == ScopeAdmin && appID != nil {
		return "", ApiKey{}, apierrors.Validationf("admin-scoped keys must not carry an app_id")
	}

	raw, err := randomHex(16)
	if err != nil {
		return "", ApiKey{}, apierrors.Wrap(apierrors.KindInternal, "generate key material", err)
	}
	plaintext = adminPrefix + raw
	hash := hashToken(plaintext)

	rec = ApiKey{
		ID:        idgen.New(),
		Name:      name,
		KeyHash:   hash,
		Scope:     scope,
		AppID:     appID,
		CreatedAt: s.clock.Now().UTC(),
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO api_keys (id, name, key_hash, scope, app_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.Name, rec.KeyHash, string(rec.Scope), rec.AppID, rec.CreatedAt)
	if err != nil {
		return "", ApiKey{}, apierrors.Wrap(apierrors.KindInternal, "insert api key", err)
	}
	return plaintext, rec, nil
}

// CreatePublic generates a pk_<slug>_<16hex> SDK credential.
func (s *Store) CreatePublic(ctx context.Context, appID, appSlug, name string) (plaintext string, rec PublicApiKey, err error) {
	raw, err := randomHex(8)
	if err != nil {
		return "", PublicApiKey{}, apierrors.Wrap(apierrors.KindInternal, "generate key material", err)
	}
	plaintext = fmt.Sprintf("%s%s_%s", publicPrefix, appSlug, raw)
	hash := hashToken(plaintext)
	prefix := plaintext
	if len(prefix) > 24 {
		prefix = prefix[:24]
	}

	rec = PublicApiKey{
		ID:        idgen.New(),
		AppID:     appID,
		Name:      name,
		KeyHash:   hash,
		KeyPrefix: prefix,
		CreatedAt: s.clock.Now().UTC(),
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO public_api_keys (id, app_id, name, key_hash, key_prefix, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.AppID, rec.Name, rec.KeyHash, rec.KeyPrefix, rec.CreatedAt)
	if err != nil {
		return "", PublicApiKey{}, apierrors.Wrap(apierrors.KindInternal, "insert public api key", err)
	}
	return plaintext, rec, nil
}

// AuthenticateBearer validates a uk_live_ token and returns the authed
// identity. last_used_at is updated fire-and-forget per §4.2 / §9.
func (s *Store) AuthenticateBearer(ctx context.Context, token string) (*AuthedKey, error) {
	if !hasPrefix(token, adminPrefix) {
		return nil, ErrMalformedToken
	}
	hash := hashToken(token)

	var rec ApiKey
	var scope string
	err := s.db.QueryRow(ctx, `
		SELECT id, scope, app_id, revoked_at FROM api_keys WHERE key_hash = $1
	`, hash).Scan(&rec.ID, &scope, &rec.AppID, &rec.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "lookup api key", err)
	}
	if rec.RevokedAt != nil {
		return nil, ErrRevoked
	}

	s.touchLastUsed(rec.ID)

	return &AuthedKey{ID: rec.ID, Scope: Scope(scope), AppID: rec.AppID}, nil
}

// AuthenticatePublic validates a pk_ token. The embedded slug is never
// trusted for authorization; only the looked-up app_id is.
func (s *Store) AuthenticatePublic(ctx context.Context, token string) (*AuthedPublicKey, error) {
	if !hasPrefix(token, publicPrefix) {
		return nil, ErrMalformedToken
	}
	hash := hashToken(token)

	var id, appID string
	var revokedAt *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT id, app_id, revoked_at FROM public_api_keys WHERE key_hash = $1
	`, hash).Scan(&id, &appID, &revokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "lookup public api key", err)
	}
	if revokedAt != nil {
		return nil, ErrRevoked
	}

	s.touchPublicLastUsed(id)

	return &AuthedPublicKey{KeyID: id, AppID: appID}, nil
}

// touchLastUsed fires an async, best-effort last_used_at update. Races
// with revocation are accepted per §9 — this is never surfaced to callers.
func (s *Store) touchLastUsed(keyID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.db.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, keyID); err != nil {
			s.log.Warnw("failed to update api key last_used_at", "key_id", keyID, "error", err)
		}
	}()
}

func (s *Store) touchPublicLastUsed(keyID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.db.Exec(ctx, `UPDATE public_api_keys SET last_used_at = now() WHERE id = $1`, keyID); err != nil {
			s.log.Warnw("failed to update public api key last_used_at", "key_id", keyID, "error", err)
		}
	}()
}

// GetAdminOrCI fetches a single admin/CI key record by id. The revoke
// handler does not call it: admin/CI key revocation is gated by
// httpx.RequireAdminScope instead of a per-app scope check.
func (s *Store) GetAdminOrCI(ctx context.Context, id string) (ApiKey, error) {
	var k ApiKey
	var scope string
	err := s.db.QueryRow(ctx, `
		SELECT id, name, key_hash, scope, app_id, last_used_at, created_at, revoked_at
		FROM api_keys WHERE id = $1
	`, id).Scan(&k.ID, &k.Name, &k.KeyHash, &scope, &k.AppID, &k.LastUsedAt, &k.CreatedAt, &k.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ApiKey{}, apierrors.NotFoundf("api key not found")
	}
	if err != nil {
		return ApiKey{}, apierrors.Wrap(apierrors.KindInternal, "lookup api key", err)
	}
	k.Scope = Scope(scope)
	return k, nil
}

// GetPublic fetches a single public SDK key record, used to resolve
// its bound app_id before authorizing a revoke (§4.8 scope check).
func (s *Store) GetPublic(ctx context.Context, id string) (PublicApiKey, error) {
	var k PublicApiKey
	err := s.db.QueryRow(ctx, `
		SELECT id, app_id, name, key_hash, key_prefix, last_used_at, created_at, revoked_at
		FROM public_api_keys WHERE id = $1
	`, id).Scan(&k.ID, &k.AppID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.LastUsedAt, &k.CreatedAt, &k.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PublicApiKey{}, apierrors.NotFoundf("public api key not found")
	}
	if err != nil {
		return PublicApiKey{}, apierrors.Wrap(apierrors.KindInternal, "lookup public api key", err)
	}
	return k, nil
}

// ListAdminOrCI lists admin/CI keys, optionally scoped to an app.
func (s *Store) ListAdminOrCI(ctx context.Context, appID *string) ([]ApiKey, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, key_hash, scope, app_id, last_used_at, created_at, revoked_at
		FROM api_keys
		WHERE $1::CHAR(26) IS NULL OR app_id = $1
		ORDER BY created_at DESC
	`, appID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "list api keys", err)
	}
	defer rows.Close()

	var out []ApiKey
	for rows.Next() {
		var k ApiKey
		var scope string
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &scope, &k.AppID, &k.LastUsedAt, &k.CreatedAt, &k.RevokedAt); err != nil {
			return nil, apierrors.Wrap(apierrors.KindInternal, "scan api key", err)
		}
		k.Scope = Scope(scope)
		out = append(out, k)
	}
	return out, rows.Err()
}

// ListPublic lists an app's public SDK keys.
func (s *Store) ListPublic(ctx context.Context, appID string) ([]PublicApiKey, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, app_id, name, key_hash, key_prefix, last_used_at, created_at, revoked_at
		FROM public_api_keys
		WHERE app_id = $1
		ORDER BY created_at DESC
	`, appID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "list public api keys", err)
	}
	defer rows.Close()

	var out []PublicApiKey
	for rows.Next() {
		var k PublicApiKey
		if err := rows.Scan(&k.ID, &k.AppID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.LastUsedAt, &k.CreatedAt, &k.RevokedAt); err != nil {
			return nil, apierrors.Wrap(apierrors.KindInternal, "scan public api key", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RevokeAdminOrCI revokes an admin/CI key.
func (s *Store) RevokeAdminOrCI(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE api_keys SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return apierrors.Wrap(apierrors.KindInternal, "revoke api key", err)
	}
	if tag.RowsAffected() == 0 {
		return apierrors.NotFoundf("api key %s not found or already revoked", id)
	}
	return nil
}

// RevokePublic revokes a public SDK key.
func (s *Store) RevokePublic(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE public_api_keys SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return apierrors.Wrap(apierrors.KindInternal, "revoke public api key", err)
	}
	if tag.RowsAffected() == 0 {
		return apierrors.NotFoundf("public api key %s not found or already revoked", id)
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomHex(nBytes int) (string, error) {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
