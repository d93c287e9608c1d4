package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/porkytheblack/oasis/internal/apierrors"
	"github.com/porkytheblack/oasis/internal/credentials"
)

type ctxKey int

const (
	ctxAuthedKey ctxKey = iota
	ctxAuthedPublicKey
)

// AdminAuth authenticates `Authorization: Bearer uk_live_...` and
// stashes the resolved identity in the request context (§4.8-4.10).
func AdminAuth(store *credentials.Store, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				WriteError(log, w, apierrors.New(apierrors.KindUnauthorized, "missing or malformed Authorization header"))
				return
			}
			token := strings.TrimPrefix(header, prefix)

			authed, err := store.AuthenticateBearer(r.Context(), token)
			if err != nil {
				WriteError(log, w, mapAuthErr(err))
				return
			}

			ctx := context.WithValue(r.Context(), ctxAuthedKey, authed)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PublicKeyAuth authenticates `X-API-Key: pk_...` SDK requests.
func PublicKeyAuth(store *credentials.Store, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if token == "" {
				WriteError(log, w, apierrors.New(apierrors.KindUnauthorized, "missing X-API-Key header"))
				return
			}

			authed, err := store.AuthenticatePublic(r.Context(), token)
			if err != nil {
				WriteError(log, w, mapAuthErr(err))
				return
			}

			ctx := context.WithValue(r.Context(), ctxAuthedPublicKey, authed)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func mapAuthErr(err error) error {
	switch {
	case errors.Is(err, credentials.ErrMalformedToken):
		return apierrors.New(apierrors.KindUnauthorized, "malformed token")
	case errors.Is(err, credentials.ErrNotFound):
		return apierrors.New(apierrors.KindUnauthorized, "unknown key")
	case errors.Is(err, credentials.ErrRevoked):
		return apierrors.New(apierrors.KindUnauthorized, "key revoked")
	default:
		return err
	}
}

// AuthedKeyFromContext retrieves the admin/CI identity set by AdminAuth.
func AuthedKeyFromContext(ctx context.Context) (*credentials.AuthedKey, bool) {
	v, ok := ctx.Value(ctxAuthedKey).(*credentials.AuthedKey)
	return v, ok
}

// AuthedPublicKeyFromContext retrieves the SDK identity set by PublicKeyAuth.
func AuthedPublicKeyFromContext(ctx context.Context) (*credentials.AuthedPublicKey, bool) {
	v, ok := ctx.Value(ctxAuthedPublicKey).(*credentials.AuthedPublicKey)
	return v, ok
}

// RequireAppScope implements §4.8's CI-key scoping rule: a CI-scoped
// key may only act on the app_id it is bound to; admin-scoped keys
// may act on any app. resolvedAppID is the app_id that the route's
// app_slug/app_id path parameter resolved to.
func RequireAppScope(ctx context.Context, resolvedAppID string) error {
	authed, ok := AuthedKeyFromContext(ctx)
	if !ok {
		return apierrors.New(apierrors.KindUnauthorized, "no authenticated key in context")
	}
	if authed.Scope == credentials.ScopeAdmin {
		return nil
	}
	if authed.AppID == nil || *authed.AppID != resolvedAppID {
		return apierrors.New(apierrors.KindForbidden, "ci key is not authorized for this app")
	}
	return nil
}

// RequireAdminScope restricts an operation to full-privilege admin
// keys, rejecting CI-scoped keys outright. Used for operations that
// are not app-scoped at all (global app/key registry management),
// where there is no app_id to compare a CI key's binding against.
func RequireAdminScope(ctx context.Context) error {
	authed, ok := AuthedKeyFromContext(ctx)
	if !ok {
		return apierrors.New(apierrors.KindUnauthorized, "no authenticated key in context")
	}
	if authed.Scope != credentials.ScopeAdmin {
		return apierrors.New(apierrors.KindForbidden, "operation requires an admin-scoped key")
	}
	return nil
}
