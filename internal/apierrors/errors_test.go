package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAsExtractsWrappedError(t *testing.T) {
	base := Validationf("bad input")
	wrapped := fmt.Errorf("context: %w", base)

	got, ok := As(wrapped)
	require.True(t, ok)
	require.Equal(t, KindValidation, got.Kind)
}

func TestAsFailsForPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	require.False(t, ok)
}

func TestIsMatchesKind(t *testing.T) {
	err := NotFoundf("app %s not found", "demo")
	require.True(t, Is(err, KindNotFound))
	require.False(t, Is(err, KindConflict))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:         http.StatusBadRequest,
		KindUnauthorized:       http.StatusUnauthorized,
		KindForbidden:          http.StatusForbidden,
		KindNotFound:           http.StatusNotFound,
		KindConflict:           http.StatusConflict,
		KindStorageUnavailable: http.StatusBadGateway,
		KindInternal:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		require.Equal(t, want, HTTPStatus(kind), "kind %s", kind)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindInternal, "operation failed", cause)
	require.Contains(t, err.Error(), "boom")
	require.Contains(t, err.Error(), "operation failed")
	require.Equal(t, cause, err.Unwrap())
}
