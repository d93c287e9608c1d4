package idgen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewReturns26Chars(t *testing.T) {
	id := New()
	require.Len(t, id, 26)
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		require.False(t, seen[id], "duplicate id generated: %s", id)
		seen[id] = true
	}
}

func TestNewIsMonotonicallySortable(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		require.True(t, next > prev, "expected %q > %q", next, prev)
		prev = next
	}
}
