package crash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowDurationKnownValues(t *testing.T) {
	cases := map[Window]time.Duration{
		Window24h: 24 * time.Hour,
		Window7d:  7 * 24 * time.Hour,
		Window30d: 30 * 24 * time.Hour,
		Window90d: 90 * 24 * time.Hour,
	}
	for w, want := range cases {
		got, ok := w.duration()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
}

func TestWindowDurationRejectsUnknown(t *testing.T) {
	_, ok := Window("12h").duration()
	require.False(t, ok)
}

func TestAddUniqueSkipsDuplicates(t *testing.T) {
	set := []string{"1.0.0", "1.1.0"}
	set = addUnique(set, "1.0.0")
	require.Equal(t, []string{"1.0.0", "1.1.0"}, set)
}

func TestAddUniqueAppendsNewValue(t *testing.T) {
	set := []string{"1.0.0"}
	set = addUnique(set, "1.1.0")
	require.Equal(t, []string{"1.0.0", "1.1.0"}, set)
}

func TestAddUniqueOnEmptySet(t *testing.T) {
	var set []string
	set = addUnique(set, "darwin-aarch64")
	require.Equal(t, []string{"darwin-aarch64"}, set)
}
