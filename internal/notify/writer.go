package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EventWriter writes notification event files to a shared directory.
type EventWriter struct {
	dir string
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, "events")}
}

// Notify writes one event file. Safe to call concurrently.
func (w *EventWriter) Notify(evt Event) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	if evt.Time == 0 {
		evt.Time = time.Now().UnixNano()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	// Write then rename so the watcher never sees a half-written file.
	name := fmt.Sprintf("%d-%s-%s", evt.Time, evt.Type, shortID(evt.Fingerprint))
	tmp := filepath.Join(w.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("notify: write %s: %w", tmp, err)
	}
	return os.Rename(tmp, filepath.Join(w.dir, name+".event"))
}

// shortID keeps filenames short and safe; fingerprints are hex already.
func shortID(fp string) string {
	out := make([]byte, 0, 12)
	for i := 0; i < len(fp) && len(out) < 12; i++ {
		c := fp[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return "none"
	}
	return string(out)
}
