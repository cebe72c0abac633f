package telemetry

import (
	"os"
)

// DefaultArtifactsDir holds events.jsonl unless AGT_ARTIFACTS_DIR is set.
const DefaultArtifactsDir = ".agent"

var observeEnabled bool

func init() {
	// Read once at process start. Mid-run environment changes have no effect,
	// except that AGT_OBSERVE_JSON=1 is always honoured (see ObserveEnabled).
	observeEnabled = os.Getenv("AGT_OBSERVE_JSON") == "1"
}

// ObserveEnabled reports whether JSONL emission is on.
func ObserveEnabled() bool {
	// Preserve startup-evaluated default, but allow tests to enable mid-run via env override.
	if os.Getenv("AGT_OBSERVE_JSON") == "1" {
		return true
	}
	return observeEnabled
}

// ArtifactsDir returns the directory events are written under.
func ArtifactsDir() string {
	if v := os.Getenv("AGT_ARTIFACTS_DIR"); v != "" {
		return v
	}
	return DefaultArtifactsDir
}
