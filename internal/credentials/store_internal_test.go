package credentials

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashTokenIsDeterministic(t *testing.T) {
	require.Equal(t, hashToken("uk_live_abc"), hashToken("uk_live_abc"))
}

func TestHashTokenDiffersByInput(t *testing.T) {
	require.NotEqual(t, hashToken("uk_live_abc"), hashToken("uk_live_abd"))
}

func TestHashTokenProducesHex64(t *testing.T) {
	require.Len(t, hashToken("anything"), 64)
}

func TestRandomHexLength(t *testing.T) {
	hex, err := randomHex(16)
	require.NoError(t, err)
	require.Len(t, hex, 32)
}

func TestRandomHexIsRandom(t *testing.T) {
	a, err := randomHex(16)
	require.NoError(t, err)
	b, err := randomHex(16)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHasPrefix(t *testing.T) {
	require.True(t, hasPrefix("uk_live_deadbeef", adminPrefix))
	require.True(t, hasPrefix("pk_myapp_abc", publicPrefix))
	require.False(t, hasPrefix("uk_live", adminPrefix))
	require.False(t, hasPrefix("bogus", adminPrefix))
}
