// Package crash implements C7: crash-report ingestion, deterministic
// fingerprint-based grouping, and the rolling-window statistics query.
package crash

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Frame is one entry in a crash report's stack trace.
type Frame struct {
	Function *string
	File     *string
	Line     *int
	IsNative bool
}

var noisyFileMarkers = []string{
	"node_modules", "tauri:", "@tauri-apps", "internal/", "webpack/", "vite/",
}

func isNoiseFrame(f Frame) bool {
	if f.IsNative {
		return true
	}
	if f.File == nil {
		return false
	}
	file := *f.File
	if strings.HasPrefix(file, "node:") {
		return true
	}
	for _, marker := range noisyFileMarkers {
		if strings.Contains(file, marker) {
			return true
		}
	}
	return false
}

// Fingerprint implements §4.7's deterministic, cross-platform
// grouping key: filter noise frames, take the first five survivors,
// join into a pipe-delimited string, SHA-256 it, keep the first 32
// hex characters (128 bits).
func Fingerprint(errorType string, frames []Frame) string {
	parts := []string{errorType}
	for _, f := range frames {
		if isNoiseFrame(f) {
			continue
		}
		parts = append(parts, framePart(f))
		if len(parts) == 6 { // error_type + 5 frames
			break
		}
	}
	joined := strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])[:32]
}

func framePart(f Frame) string {
	switch {
	case f.Function != nil && *f.Function != "":
		return *f.Function
	case f.File != nil && *f.File != "" && f.Line != nil:
		return *f.File + ":" + strconv.Itoa(*f.Line)
	case f.File != nil && *f.File != "":
		return *f.File
	default:
		return "unknown"
	}
}
