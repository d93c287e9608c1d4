package apps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidSlugAccepts(t *testing.T) {
	for _, s := range []string{"ab", "my-app", "app2", "a-b-c-9"} {
		require.True(t, ValidSlug(s), "expected %q to be valid", s)
	}
}

func TestValidSlugRejectsTooShort(t *testing.T) {
	require.False(t, ValidSlug("a"))
}

func TestValidSlugRejectsUppercase(t *testing.T) {
	require.False(t, ValidSlug("MyApp"))
}

func TestValidSlugRejectsLeadingHyphen(t *testing.T) {
	require.False(t, ValidSlug("-app"))
}

func TestValidSlugRejectsTrailingHyphen(t *testing.T) {
	require.False(t, ValidSlug("app-"))
}

func TestValidSlugRejectsConsecutiveHyphens(t *testing.T) {
	require.False(t, ValidSlug("my--app"))
}

func TestValidSlugRejectsTooLong(t *testing.T) {
	long := make([]byte, 51)
	for i := range long {
		long[i] = 'a'
	}
	require.False(t, ValidSlug(string(long)))
}
