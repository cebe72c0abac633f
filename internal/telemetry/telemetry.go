package telemetry

import (
	"context"
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/petasbytes/turnkit/internal/logger"
)

// EventsFile is the name of the JSONL file under ArtifactsDir.
const EventsFile = "events.jsonl"

var writeMu sync.Mutex

// Emit writes a single JSON line to <ArtifactsDir>/events.jsonl when
// observation is enabled. It augments fields with RFC3339Nano time and the
// event name. Failures are logged as warnings and never returned.
func Emit(name string, fields map[string]any) {
	if !ObserveEnabled() {
		return
	}

	// Make a shallow copy so callers' maps aren't mutated.
	m := make(map[string]any, len(fields)+2)
	maps.Copy(m, fields)
	m["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	m["event"] = name

	b, err := json.Marshal(m)
	if err != nil {
		warn("marshal", name, err)
		return
	}

	dir := ArtifactsDir()
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		warn("mkdir", dir, err)
		return
	}

	path := filepath.Join(dir, EventsFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		warn("open", path, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		warn("write", path, err)
	}
}

func warn(op, target string, err error) {
	logger.FromContext(context.Background()).Warn("Telemetry emit failed", "op", op, "target", target, "error", err)
}
