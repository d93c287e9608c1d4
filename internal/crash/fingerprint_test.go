package crash

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }

func TestFingerprintFiltersNoiseFrames(t *testing.T) {
	frames := []Frame{
		{File: strptr("/app/node_modules/some-lib/index.js"), Function: strptr("wrapper")},
		{Function: strptr("init")},
	}
	got := Fingerprint("TypeError", frames)

	sum := sha256.Sum256([]byte("TypeError|init"))
	want := hex.EncodeToString(sum[:])[:32]
	require.Equal(t, want, got)
}

func TestFingerprintIsDeterministic(t *testing.T) {
	frames := []Frame{{Function: strptr("a")}, {Function: strptr("b")}}
	first := Fingerprint("Error", frames)
	second := Fingerprint("Error", frames)
	require.Equal(t, first, second)
}

func TestFingerprintTruncatesTo32Hex(t *testing.T) {
	got := Fingerprint("Error", nil)
	require.Len(t, got, 32)
}

func TestFingerprintCapsAtFiveFrames(t *testing.T) {
	many := make([]Frame, 10)
	for i := range many {
		many[i] = Frame{Function: strptr("frame")}
	}
	fewer := make([]Frame, 5)
	for i := range fewer {
		fewer[i] = Frame{Function: strptr("frame")}
	}
	require.Equal(t, Fingerprint("Error", fewer), Fingerprint("Error", many))
}

func TestIsNoiseFrameNativeAlwaysNoise(t *testing.T) {
	require.True(t, isNoiseFrame(Frame{IsNative: true}))
}

func TestIsNoiseFrameNodeInternalPrefix(t *testing.T) {
	require.True(t, isNoiseFrame(Frame{File: strptr("node:internal/process")}))
}

func TestIsNoiseFrameTauriMarkers(t *testing.T) {
	require.True(t, isNoiseFrame(Frame{File: strptr("@tauri-apps/api/event.js")}))
	require.True(t, isNoiseFrame(Frame{File: strptr("tauri:localhost/bundle.js")}))
}

func TestIsNoiseFrameOrdinaryFileIsNotNoise(t *testing.T) {
	require.False(t, isNoiseFrame(Frame{File: strptr("src/main.rs"), Line: intptr(42)}))
}

func TestFramePartPrefersFunction(t *testing.T) {
	f := Frame{Function: strptr("doThing"), File: strptr("main.rs"), Line: intptr(10)}
	require.Equal(t, "doThing", framePart(f))
}

func TestFramePartFallsBackToFileLine(t *testing.T) {
	f := Frame{File: strptr("main.rs"), Line: intptr(10)}
	require.Equal(t, "main.rs:10", framePart(f))
}

func TestFramePartFallsBackToFileOnly(t *testing.T) {
	f := Frame{File: strptr("main.rs")}
	require.Equal(t, "main.rs", framePart(f))
}

func TestFramePartUnknownWhenEmpty(t *testing.T) {
	require.Equal(t, "unknown", framePart(Frame{}))
}
