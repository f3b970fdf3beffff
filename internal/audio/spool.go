package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Spool archives every uploaded clip under <dir>/<sessionID>/ with a
// timestamped name, so recordings survive the transient session and the
// watcher can pick up clips written by external capture tools.
type Spool struct {
	dir string
	now func() time.Time
}

func NewSpool(dir string) *Spool {
	return &Spool{dir: dir, now: time.Now}
}

func (s *Spool) Dir() string { return s.dir }

// Save writes the clip and returns its path. ext carries the dot, e.g. ".wav".
func (s *Spool) Save(sessionID string, clip []byte, ext string) (string, error) {
	if ext == "" {
		ext = ".wav"
	}
	dir := filepath.Join(s.dir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}
	// The "api-" prefix tells the spool watcher this clip was already
	// transcribed through the answer endpoint.
	name := "api-" + s.now().UTC().Format("20060102T150405.000000000") + ext
	path := filepath.Join(dir, name)

	// Write via a temp name so the watcher never sees a partial clip.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, clip, 0o644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("publish clip: %w", err)
	}
	return path, nil
}
