package objectstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeHeadNotFoundBeforePut(t *testing.T) {
	f := NewFake()
	_, err := f.Head(context.Background(), "some/key")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestFakeHeadReturnsSizeAfterPut(t *testing.T) {
	f := NewFake()
	f.Put("app/releases/1.0.0/bin.tar.gz", 4096)

	got, err := f.Head(context.Background(), "app/releases/1.0.0/bin.tar.gz")
	require.NoError(t, err)
	require.Equal(t, int64(4096), got.Size)
}

func TestFakePublicURLDisabledByDefault(t *testing.T) {
	f := NewFake()
	_, ok := f.PublicURL("any/key")
	require.False(t, ok)
}

func TestFakePublicURLWithBase(t *testing.T) {
	f := NewFake().WithPublicURL("https://cdn.example.com/")
	url, ok := f.PublicURL("app/releases/1.0.0/bin.tar.gz")
	require.True(t, ok)
	require.Equal(t, "https://cdn.example.com/app/releases/1.0.0/bin.tar.gz", url)
}

func TestFakeExists(t *testing.T) {
	f := NewFake()
	ok, err := f.Exists(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)

	f.Put("present", 1)
	ok, err = f.Exists(context.Background(), "present")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFakeDeleteRemovesObject(t *testing.T) {
	f := NewFake()
	f.Put("key", 1)
	require.NoError(t, f.Delete(context.Background(), "key"))

	_, err := f.Head(context.Background(), "key")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestFakePresignGetRequiresExistingObject(t *testing.T) {
	f := NewFake()
	_, err := f.PresignGet(context.Background(), "missing", time.Minute)
	require.True(t, errors.Is(err, ErrNotFound))

	f.Put("present", 10)
	url, err := f.PresignGet(context.Background(), "present", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, url)
}

func TestBuildArtifactKeyLayout(t *testing.T) {
	require.Equal(t, "my-app/releases/1.2.3/bin.tar.gz", BuildArtifactKey("my-app", "1.2.3", "bin.tar.gz"))
}

func TestBuildInstallerKeyLayout(t *testing.T) {
	require.Equal(t, "my-app/installers/1.2.3/setup.msi", BuildInstallerKey("my-app", "1.2.3", "setup.msi"))
}
